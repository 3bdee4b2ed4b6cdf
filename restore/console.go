package restore

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/nsoperations/depforge/core"
	"github.com/nsoperations/depforge/core/resolver"
	"github.com/nsoperations/depforge/version"
)

// Console interface for output (injected from CLI).
type Console interface {
	Printf(format string, args ...any)
	Error(format string, args ...any)
	Warning(format string, args ...any)
}

// Color scheme shared with the CLI.
var (
	colorHeader  = color.New(color.Bold, color.FgWhite)
	colorName    = color.New(color.FgGreen)
	colorVersion = color.New(color.FgCyan)
	colorError   = color.New(color.FgRed)
	colorWarning = color.New(color.FgYellow)
)

type writerConsole struct {
	out io.Writer
	err io.Writer
}

// NewConsole creates a Console writing normal output to out and errors
// and warnings to errOut. Colorization follows the global color.NoColor
// setting.
func NewConsole(out, errOut io.Writer) Console {
	return &writerConsole{out: out, err: errOut}
}

func (c *writerConsole) Printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *writerConsole) Error(format string, args ...any) {
	colorError.Fprintf(c.err, format, args...)
}

func (c *writerConsole) Warning(format string, args ...any) {
	colorWarning.Fprintf(c.err, format, args...)
}

// RenderPlan prints a build plan batch by batch.
func RenderPlan(console Console, plan *Plan) {
	batches := plan.Batches()
	for level, batch := range batches {
		console.Printf("%s\n", colorHeader.Sprintf("Batch %d", level))
		for _, step := range batch {
			console.Printf("  %s %s\n",
				colorName.Sprint(step.Dependency.Name()),
				colorVersion.Sprint(step.Version.Commitish))
		}
	}
	console.Printf("%d dependencies in %d batches\n", len(plan.Steps), len(batches))
}

// RenderResolution prints a finished resolution in a stable order.
func RenderResolution(console Console, resolved map[core.Dependency]version.Pinned, order []core.Dependency) {
	for _, dep := range order {
		console.Printf("  %s %s\n",
			colorName.Sprint(dep.Name()),
			colorVersion.Sprint(resolved[dep].Commitish))
	}
}

// RenderError prints a resolution failure, expanding the conflict
// explanation when the error carries one.
func RenderError(console Console, err error) {
	var conflict *resolver.RequiredVersionNotFoundError
	if errors.As(err, &conflict) {
		console.Error("no available version satisfies all requirements for %s\n", conflict.Dependency)
		for _, def := range conflict.Conflict {
			console.Printf("  %s\n", def)
		}
		return
	}
	console.Error("%v\n", err)
}
