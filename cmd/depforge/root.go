package main

import (
	"github.com/spf13/cobra"

	"github.com/nsoperations/depforge/observability"
	"github.com/nsoperations/depforge/restore"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "depforge",
		Short: "Dependency resolver and build planner",
		Long: `depforge resolves versioned dependency graphs to a single consistent
assignment and plans the order the resolved dependencies build in.

It operates on a JSON dependency index, see the store command help for
the format.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	cmd.PersistentFlags().String("store", "depforge.index.json", "Dependency index to resolve against")
	cmd.PersistentFlags().String("verbosity", "normal", "Display verbosity (quiet, normal, detailed)")
	return cmd
}

func consoleFor(cmd *cobra.Command) restore.Console {
	return restore.NewConsole(cmd.OutOrStdout(), cmd.ErrOrStderr())
}

func loggerFor(cmd *cobra.Command) observability.Logger {
	verbosity, _ := cmd.Flags().GetString("verbosity")
	level := observability.InfoLevel
	switch verbosity {
	case "quiet":
		level = observability.ErrorLevel
	case "detailed":
		level = observability.VerboseLevel
	}
	return observability.NewLogger(cmd.ErrOrStderr(), level)
}
