package controller

import (
	"bytes"
	"context"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	m "stlcrunch.dev/pkg/stlcrunch/internal/model"
)

// SimpleUI implements UI using cobra Command's output, one line per event.
// It is the fallback for non-interactive terminals and CI logs.
type SimpleUI struct {
	cmd *cobra.Command
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context) error {
	return ctx.Err()
}

// Pump returns immediately; SimpleUI prints synchronously from the Display
// methods and has no event loop.
func (s *SimpleUI) Pump(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return nil
}

// Close finalizes the UI (no-op for SimpleUI).
func (s *SimpleUI) Close(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
}

// DisplayRunInfo prints the run header.
func (s *SimpleUI) DisplayRunInfo(ctx context.Context, runID string, algorithm m.Algorithm, policy m.AcceptancePolicy, sources, candidates int) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.printf("run %s: algorithm=%s policy=%s sources=%d candidates=%d\n", runID, algorithm, policy, sources, candidates)
}

// DisplayBaseline prints the baseline measurement.
func (s *SimpleUI) DisplayBaseline(ctx context.Context, baseline m.Measurement) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.printf("baseline: %s\n", baseline)
}

// DisplayDecision prints one accept/restore decision.
func (s *SimpleUI) DisplayDecision(ctx context.Context, decision m.Decision, done, total int) {
	if err := ctx.Err(); err != nil {
		return
	}

	if decision.Result.Ok() {
		s.printf("[%d/%d] %s %s %s (best %s)\n",
			done, total, decision.Action, decision.Unit.String(), decision.Result.Status, decision.Best)
		return
	}

	s.printf("[%d/%d] %s %s %s in %s: %s\n",
		done, total, decision.Action, decision.Unit.String(), decision.Result.Status, decision.Result.Phase, decision.Result.Diagnostic)
}

// DisplaySummary renders the final per-file table and run totals.
func (s *SimpleUI) DisplaySummary(ctx context.Context, summary *m.RunSummary) {
	if err := ctx.Err(); err != nil || summary == nil {
		return
	}

	s.printf("\n%s", renderSummaryTable(summary))
	s.printf("baseline: tat=%g coverage=%g\n", summary.BaselineTaT, summary.BaselineCoverage)
	s.printf("best:     tat=%g coverage=%g\n", summary.BestTaT, summary.BestCoverage)
	s.printf("decisions: %d kept, %d restored, %d evaluation errors\n", summary.Kept, summary.Restored, summary.Errors)

	if summary.Aborted {
		s.printf("run aborted: %s\n", summary.AbortReason)
	}
}

// SurveyRow is one source file in the candidate survey.
type SurveyRow struct {
	File       m.Path
	Lines      int
	Candidates int
}

// DisplaySurvey renders the per-file candidate counts of a dry listing.
func (s *SimpleUI) DisplaySurvey(ctx context.Context, rows []SurveyRow) {
	if err := ctx.Err(); err != nil {
		return
	}

	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"File", "Lines", "Candidates"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_CENTER,
	})

	totalLines, totalCandidates := 0, 0

	for _, row := range rows {
		table.Append([]string{
			string(row.File),
			fmt.Sprintf("%d", row.Lines),
			fmt.Sprintf("%d", row.Candidates),
		})

		totalLines += row.Lines
		totalCandidates += row.Candidates
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total Files %d", len(rows)),
		fmt.Sprintf("%d", totalLines),
		fmt.Sprintf("%d", totalCandidates),
	})

	table.Render()

	s.printf("%s", tableBuffer.String())
}

func renderSummaryTable(summary *m.RunSummary) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"File", "Lines", "Removed", "Final"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_CENTER,
	})

	totalOriginal, totalRemoved, totalFinal := 0, 0, 0

	for _, file := range summary.Files {
		table.Append([]string{
			string(file.Path),
			fmt.Sprintf("%d", file.OriginalLines),
			fmt.Sprintf("%d", file.RemovedLines),
			fmt.Sprintf("%d", file.FinalLines),
		})

		totalOriginal += file.OriginalLines
		totalRemoved += file.RemovedLines
		totalFinal += file.FinalLines
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total Files %d", len(summary.Files)),
		fmt.Sprintf("%d", totalOriginal),
		fmt.Sprintf("%d", totalRemoved),
		fmt.Sprintf("%d", totalFinal),
	})

	table.Render()

	return tableBuffer.String()
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}
