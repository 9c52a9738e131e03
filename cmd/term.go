package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maristed/tether/pkg/logger"
	"github.com/maristed/tether/pkg/term"
)

var termCmd = &cobra.Command{
	Use:   "term [id]",
	Short: "Stream a session terminal to stdout",
	Long: `Attach read-only to one of the session's terminals (IDs 1-9) and
stream its output until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if !term.ValidID(id) {
			return fmt.Errorf("invalid terminal id %q (expected 1-9)", id)
		}

		cfg, err := setup()
		if err != nil {
			return err
		}
		defer logger.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client := term.NewClient(cfg.Server.URL)
		err = client.StreamOutput(ctx, id, func(chunk []byte) error {
			_, werr := os.Stdout.Write(chunk)
			return werr
		})
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("streaming terminal: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(termCmd)
}
