package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MiladJoodi/WebRTC-Video-Conference/internal/app"
	"github.com/MiladJoodi/WebRTC-Video-Conference/internal/config"
	"github.com/MiladJoodi/WebRTC-Video-Conference/internal/log"
)

var (
	flagServeAddr     string
	flagServeLogLevel string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling server",
	RunE: func(cmd *cobra.Command, args []string) error {
		bootLogger := log.New("info")
		cfg, path, err := config.Load(bootLogger, flagConfigPath)
		if err != nil {
			return err
		}
		cfg.UpdateFrom(config.Config{
			Addr:     flagServeAddr,
			LogLevel: flagServeLogLevel,
		})

		logger := log.New(cfg.LogLevel)
		logger.Info().Str("config", path).Msg("configuration loaded")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application := app.New(&cfg, logger)
		if err := application.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("server exited with error")
			return err
		}
		logger.Info().Msg("server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagServeAddr, "addr", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().StringVar(&flagServeLogLevel, "log-level", "", "log level (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
