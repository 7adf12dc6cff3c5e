package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/circle/internal/seed"
)

var reconnectCmd = &cobra.Command{
	Use:   "reconnect",
	Short: "Print who to reach out to next",
	Long:  "Reconnect asks a running Circle API for the user's contacts ordered by longest time since last interaction.",
	RunE:  runReconnect,
}

var (
	reconnectURL     string
	reconnectUser    string
	reconnectLimit   int
	reconnectTimeout time.Duration
)

func init() {
	reconnectCmd.Flags().StringVar(&reconnectURL, "url", "http://localhost:9080", "Base URL of the Circle API")
	reconnectCmd.Flags().StringVarP(&reconnectUser, "user", "u", "", "User ID whose contacts are listed (required)")
	reconnectCmd.Flags().IntVarP(&reconnectLimit, "limit", "n", 10, "Maximum number of contacts; 0 uses the server maximum")
	reconnectCmd.Flags().DurationVar(&reconnectTimeout, "timeout", 10*time.Second, "Overall request timeout")

	if err := reconnectCmd.MarkFlagRequired("user"); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(reconnectCmd)
}

func runReconnect(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), reconnectTimeout)
	defer cancel()

	client := seed.NewClient(reconnectURL, seed.WithTimeout(reconnectTimeout))
	views, err := client.Reconnect(ctx, reconnectUser, reconnectLimit)
	if err != nil {
		return err
	}
	return seed.WriteReconnect(cmd.OutOrStdout(), views)
}
