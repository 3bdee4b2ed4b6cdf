package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nsoperations/depforge/core"
	"github.com/nsoperations/depforge/restore"
)

type planOptions struct {
	resolvedPath string
	only         []string
}

func newPlanCommand() *cobra.Command {
	opts := &planOptions{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compute the build order for a resolution",
		Long: `Plan reads a resolution file and prints the order its dependencies
build in, batched into levels that can build concurrently.

With --only, the plan is restricted to the named dependencies and
everything they require.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.resolvedPath, "resolved", "depforge.resolved.json", "Resolution file to plan from")
	cmd.Flags().StringSliceVar(&opts.only, "only", nil, "Restrict the plan to the named dependencies")
	return cmd
}

func runPlan(cmd *cobra.Command, opts *planOptions) error {
	console := consoleFor(cmd)
	log := loggerFor(cmd)

	storePath, _ := cmd.Flags().GetString("store")
	store, err := core.LoadStoreFile(storePath)
	if err != nil {
		return fmt.Errorf("loading dependency index: %w", err)
	}

	resolved, err := core.ReadResolutionFile(opts.resolvedPath)
	if err != nil {
		return fmt.Errorf("loading resolution: %w", err)
	}
	if len(resolved) == 0 {
		console.Printf("Nothing to plan\n")
		return nil
	}

	planner := restore.NewPlanner(core.NewCachedRetriever(store), restore.WithLogger(log))
	plan, err := planner.Plan(cmd.Context(), resolved, opts.only)
	if err != nil {
		restore.RenderError(console, err)
		return fmt.Errorf("planning failed")
	}

	restore.RenderPlan(console, plan)
	return nil
}
