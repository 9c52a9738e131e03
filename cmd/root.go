package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/maristed/tether/pkg/config"
	"github.com/maristed/tether/pkg/logger"
	"github.com/maristed/tether/pkg/monitor"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "tether",
	Short: "Follow a live coding-agent session",
	Long: `tether mirrors a running coding-agent session in the terminal:
chat messages, tool invocations, git commits, and CI workflow results,
streamed live from the session server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if noMarkdown, _ := cmd.Flags().GetBool("no-markdown"); noMarkdown {
			viper.Set("display.markdown", false)
		}
		cfg, err := setup()
		if err != nil {
			return err
		}
		defer logger.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		m := monitor.New(cfg, os.Stdout)
		if history, _ := cmd.Flags().GetInt("history"); history > 0 {
			if err := m.BackfillRecent(ctx, history); err != nil {
				return err
			}
		}
		return m.Run(ctx)
	},
}

// setup loads config and initializes logging; shared by every command
func setup() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := logger.Init(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is .tether/settings.yaml)")

	rootCmd.PersistentFlags().StringP("server", "s", "", "session server base URL")
	viper.BindPFlag("server.url", rootCmd.PersistentFlags().Lookup("server"))

	rootCmd.PersistentFlags().StringP("log-level", "l", "", "log level (debug, info, warn, error)")
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.Flags().Bool("no-markdown", false, "disable markdown rendering of agent messages")

	rootCmd.Flags().Int("history", 0, "prefetch the last N transcript entries before following")

	rootCmd.Flags().Bool("show-hidden", false, "show messages from nested sub-conversations")
	viper.BindPFlag("display.show_hidden", rootCmd.Flags().Lookup("show-hidden"))
}
