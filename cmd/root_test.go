package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	t.Run("registers the session subcommands", func(t *testing.T) {
		names := map[string]bool{}
		for _, c := range rootCmd.Commands() {
			names[c.Name()] = true
		}

		for _, want := range []string{"send", "cancel", "end", "state", "term"} {
			assert.True(t, names[want], "missing subcommand %q", want)
		}
	})

	t.Run("root exposes connection flags", func(t *testing.T) {
		require.NotNil(t, rootCmd.PersistentFlags().Lookup("server"))
		require.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
		require.NotNil(t, rootCmd.PersistentFlags().Lookup("log-level"))
	})

	t.Run("follow mode exposes history prefetch", func(t *testing.T) {
		require.NotNil(t, rootCmd.Flags().Lookup("history"))
	})

	t.Run("cancel exposes tool call targeting", func(t *testing.T) {
		require.NotNil(t, cancelCmd.Flags().Lookup("tool-call"))
		require.NotNil(t, cancelCmd.Flags().Lookup("reason"))
	})
}
