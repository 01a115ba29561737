package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MiladJoodi/WebRTC-Video-Conference/internal/client"
	"github.com/MiladJoodi/WebRTC-Video-Conference/internal/core"
	"github.com/MiladJoodi/WebRTC-Video-Conference/internal/log"
	"github.com/MiladJoodi/WebRTC-Video-Conference/internal/peer/pion"
)

var (
	flagJoinServer   string
	flagJoinName     string
	flagJoinLogLevel string
)

var joinCmd = &cobra.Command{
	Use:   "join <room-id>",
	Short: "Join a room as a headless, receive-only participant",
	Long: `join connects to a room without capturing any local media.
Peers in the room still call this participant; their audio and video
are negotiated and received but not rendered.

Useful for smoke-testing a deployment from the terminal.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return joinRoom(args[0])
	},
}

func joinRoom(roomID string) error {
	logger := log.New(flagJoinLogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	api := client.NewAPIClient(flagJoinServer)
	if err := api.Authenticate(apiCtx, flagJoinName); err != nil {
		return err
	}
	info, err := api.JoinRoom(apiCtx, roomID)
	if err != nil {
		return err
	}
	logger.Info().Str("room", info.RoomID).Str("url", info.URL).Msg("room resolved")

	engine := pion.New(pion.Config{
		STUNServers: info.STUNServers,
		Meta:        core.Metadata{Name: info.Name},
	}, logger)

	hooks := client.Hooks{
		PeerJoined: func(userID, name string) {
			logger.Info().Str("peer", userID).Str("name", name).Msg("participant connected")
		},
		PeerLeft: func(userID string) {
			logger.Info().Str("peer", userID).Msg("participant left")
		},
	}

	adapter := client.New(client.Config{
		URL:  info.URL,
		Room: info.RoomID,
		Name: info.Name,
	}, engine, client.NoMedia{}, hooks, logger)
	defer adapter.Close()

	if err := adapter.Connect(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	return nil
}

func init() {
	joinCmd.Flags().StringVar(&flagJoinServer, "server", "http://localhost:5000", "base URL of the signaling server")
	joinCmd.Flags().StringVar(&flagJoinName, "name", "guest", "display name shown to other participants")
	joinCmd.Flags().StringVar(&flagJoinLogLevel, "log-level", "info", "log level")
	rootCmd.AddCommand(joinCmd)
}
