package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), fullVersion())
			return nil
		},
	}
}

func fullVersion() string {
	return fmt.Sprintf("depforge %s (commit %s, built %s)", buildVersion, buildCommit, buildDate)
}
