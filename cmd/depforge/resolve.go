package main

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nsoperations/depforge/core"
	"github.com/nsoperations/depforge/core/resolver"
	"github.com/nsoperations/depforge/restore"
	"github.com/nsoperations/depforge/version"
)

type resolveOptions struct {
	resolvedPath string
	outputPath   string
	update       []string
}

func newResolveCommand() *cobra.Command {
	opts := &resolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the dependency index to pinned versions",
		Long: `Resolve computes one consistent pinned version for every dependency the
index's root manifest transitively requires.

With --resolved and --update, dependencies not named for update keep
their previously resolved versions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.resolvedPath, "resolved", "", "Previously written resolution file")
	cmd.Flags().StringVar(&opts.outputPath, "output", "", "Write the resolution to this file")
	cmd.Flags().StringSliceVar(&opts.update, "update", nil, "Only update the named dependencies, keep the rest pinned")
	return cmd
}

func runResolve(cmd *cobra.Command, opts *resolveOptions) error {
	console := consoleFor(cmd)
	log := loggerFor(cmd)

	storePath, _ := cmd.Flags().GetString("store")
	store, err := core.LoadStoreFile(storePath)
	if err != nil {
		return fmt.Errorf("loading dependency index: %w", err)
	}

	manifest := make(map[core.Dependency]version.Specifier)
	for _, req := range store.Root() {
		manifest[req.Dependency] = req.Specifier
	}
	if len(manifest) == 0 {
		console.Printf("Nothing to resolve\n")
		return nil
	}

	var lastResolved map[core.Dependency]version.Pinned
	var toUpdate []string
	if opts.resolvedPath != "" {
		lastResolved, err = core.ReadResolutionFile(opts.resolvedPath)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("loading prior resolution: %w", err)
		}
		if lastResolved != nil && len(opts.update) > 0 {
			toUpdate = opts.update
		}
	} else if len(opts.update) > 0 {
		return fmt.Errorf("--update requires --resolved")
	}

	r := resolver.New(core.NewCachedRetriever(store),
		resolver.WithLogger(log),
		resolver.WithEventSink(resolver.LoggingSink(log)))

	resolved, err := r.Resolve(cmd.Context(), manifest, lastResolved, toUpdate)
	if err != nil {
		restore.RenderError(console, err)
		return fmt.Errorf("resolution failed")
	}

	order := make([]core.Dependency, 0, len(resolved))
	for dep := range resolved {
		order = append(order, dep)
	}
	slices.SortFunc(order, func(a, b core.Dependency) int {
		return strings.Compare(a.Key(), b.Key())
	})
	console.Printf("Resolved %d dependencies\n", len(resolved))
	restore.RenderResolution(console, resolved, order)

	if opts.outputPath != "" {
		if err := core.WriteResolutionFile(opts.outputPath, resolved); err != nil {
			return fmt.Errorf("writing resolution: %w", err)
		}
		console.Printf("Wrote %s\n", opts.outputPath)
	}
	return nil
}
