package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCommand_RegistersExpectedSubcommands(t *testing.T) {
	app := NewCommand()

	names := make([]string, 0, len(app.Commands))
	for _, sub := range app.Commands {
		names = append(names, sub.Name)
	}

	require.ElementsMatch(t, []string{"status", "run", "list"}, names)
}

func TestNewCommand_StatusHasCurrentFlag(t *testing.T) {
	app := NewCommand()

	var status *struct{ found bool }
	for _, sub := range app.Commands {
		if sub.Name != "status" {
			continue
		}
		for _, flag := range sub.Flags {
			if flag.Names()[0] == "current" {
				status = &struct{ found bool }{true}
			}
		}
	}

	require.NotNil(t, status)
	require.True(t, status.found)
}
