package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var flagConfigPath string

var rootCmd = &cobra.Command{
	Use:   "conference",
	Short: "WebRTC video-conference signaling server and headless client",
	Long: `conference runs the signaling relay that brokers room presence for
WebRTC video calls, or joins a room as a headless participant.

The server never touches media: it relays join, leave and negotiation
messages so participants can connect to each other directly.`,
}

// Execute runs the selected subcommand.
func Execute() {
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to config file")
}
