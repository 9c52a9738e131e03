package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maristed/tether/pkg/api"
	"github.com/maristed/tether/pkg/logger"
)

var (
	cancelReason     string
	cancelToolCallID string
)

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the turn in progress",
	Long: `Cancel the agent's current turn, or a single tool call when
--tool-call is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		defer logger.Close()

		client := api.NewClient(cfg.Server.URL, cfg.Server.Timeout)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
		defer cancel()

		req := api.CancelRequest{Reason: cancelReason, ToolCallID: cancelToolCallID}
		if err := client.Cancel(ctx, req); err != nil {
			return fmt.Errorf("cancelling: %w", err)
		}
		return nil
	},
}

func init() {
	cancelCmd.Flags().StringVar(&cancelReason, "reason", "", "reason for the cancellation")
	cancelCmd.Flags().StringVar(&cancelToolCallID, "tool-call", "", "cancel only this tool call")
	rootCmd.AddCommand(cancelCmd)
}
