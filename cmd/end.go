package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maristed/tether/pkg/api"
	"github.com/maristed/tether/pkg/logger"
)

var endReason string

var endCmd = &cobra.Command{
	Use:   "end",
	Short: "End the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		defer logger.Close()

		client := api.NewClient(cfg.Server.URL, cfg.Server.Timeout)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
		defer cancel()

		if err := client.End(ctx, api.EndRequest{Reason: endReason}); err != nil {
			return fmt.Errorf("ending session: %w", err)
		}
		return nil
	},
}

func init() {
	endCmd.Flags().StringVar(&endReason, "reason", "", "reason for ending the session")
	rootCmd.AddCommand(endCmd)
}
