package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maristed/tether/pkg/api"
	"github.com/maristed/tether/pkg/logger"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print a one-shot session state snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		defer logger.Close()

		client := api.NewClient(cfg.Server.URL, cfg.Server.Timeout)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
		defer cancel()

		st, err := client.State(ctx)
		if err != nil {
			return fmt.Errorf("fetching state: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	},
}

func init() {
	rootCmd.AddCommand(stateCmd)
}
