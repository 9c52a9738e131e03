package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maristed/tether/pkg/api"
	"github.com/maristed/tether/pkg/logger"
)

var sendCmd = &cobra.Command{
	Use:   "send [message]",
	Short: "Send a chat message to the agent",
	Long: `Send a chat message to the running session. The message shows up in
the transcript when the server echoes it back through the feed. A failed
send is reported and never retried; resubmit it yourself.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		defer logger.Close()

		client := api.NewClient(cfg.Server.URL, cfg.Server.Timeout)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
		defer cancel()

		if err := client.SendMessage(ctx, strings.Join(args, " ")); err != nil {
			return fmt.Errorf("sending message: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
}
