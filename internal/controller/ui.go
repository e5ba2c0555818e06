// Package controller provides output adapters for displaying compaction
// progress and results.
package controller

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	m "stlcrunch.dev/pkg/stlcrunch/internal/model"
)

// UI is how a running compaction reports to the operator. Implementations
// can render plain text or a live terminal view.
//
// Pump blocks while the UI consumes events and returns when Close is called;
// callers run it on its own goroutine next to the workflow.
type UI interface {
	Start(ctx context.Context) error
	Pump(ctx context.Context) error
	Close(ctx context.Context)

	DisplayRunInfo(ctx context.Context, runID string, algorithm m.Algorithm, policy m.AcceptancePolicy, sources, candidates int)
	DisplayBaseline(ctx context.Context, baseline m.Measurement)
	DisplayDecision(ctx context.Context, decision m.Decision, done, total int)
	DisplaySummary(ctx context.Context, summary *m.RunSummary)
}

// NewUI picks the UI implementation: the live view on an interactive
// terminal, plain line output everywhere else.
func NewUI(cmd *cobra.Command, interactive bool) UI {
	if interactive {
		return NewTUI(cmd.OutOrStdout())
	}

	return NewSimpleUI(cmd)
}

// IsTTY reports whether f is an interactive terminal.
func IsTTY(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
