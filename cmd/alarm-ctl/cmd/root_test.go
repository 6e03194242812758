package cmd

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestChangedArgs_OnlySetFlags(t *testing.T) {
	t.Parallel()

	fs := pflag.NewFlagSet("daily", pflag.ContinueOnError)
	fs.String("title", "", "")
	fs.String("body", "", "")
	fs.Int("hour", 0, "")
	fs.Int("minute", 0, "")
	fs.Int("id", 0, "")
	fs.String("config", "", "")

	require.NoError(t, fs.Parse([]string{"--title", "Standup", "--hour", "7", "--config", "x.yaml"}))

	require.Equal(t, map[string]any{"title": "Standup", "hour": 7}, changedArgs(fs))
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	t.Parallel()

	names := make([]string, 0)
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}

	require.Subset(t, names, []string{"once", "daily", "cancel", "list"})
}
