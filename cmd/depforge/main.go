// cmd/depforge/main.go
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information (set via ldflags during build)
var (
	buildVersion = "0.0.0-dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

func main() {
	root := newRootCommand()
	root.AddCommand(newResolveCommand())
	root.AddCommand(newPlanCommand())
	root.AddCommand(newVersionCommand())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		os.Exit(130) // 128 + SIGINT
	}()

	if err := root.Execute(); err != nil {
		// SilenceErrors is set on the root command, so print here.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
