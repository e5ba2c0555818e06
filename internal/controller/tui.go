package controller

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	m "stlcrunch.dev/pkg/stlcrunch/internal/model"
)

const (
	tuiMaxBarWidth = 60
	tuiPadding     = 2
)

var (
	tuiTitleStyle    = lipgloss.NewStyle().Bold(true)
	tuiDimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	tuiKeptStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	tuiRestoredStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	tuiErrorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// TUI implements UI with a live Bubble Tea view: a progress bar over the
// visited units plus running accept/restore counters.
type TUI struct {
	program *tea.Program
}

// NewTUI creates a TUI rendering to output.
func NewTUI(output io.Writer) *TUI {
	return &TUI{
		program: tea.NewProgram(newRunModel(), tea.WithOutput(output)),
	}
}

// Start initializes the UI.
func (t *TUI) Start(ctx context.Context) error {
	return ctx.Err()
}

// Pump runs the Bubble Tea event loop until Close or the user quits. The
// final frame stays on the terminal after exit.
func (t *TUI) Pump(_ context.Context) error {
	_, err := t.program.Run()
	return err
}

// Close stops the event loop.
func (t *TUI) Close(_ context.Context) {
	t.program.Quit()
}

// DisplayRunInfo feeds the run header into the view.
func (t *TUI) DisplayRunInfo(ctx context.Context, runID string, algorithm m.Algorithm, policy m.AcceptancePolicy, sources, candidates int) {
	if ctx.Err() != nil {
		return
	}

	t.program.Send(runInfoMsg{
		runID:      runID,
		algorithm:  algorithm,
		policy:     policy,
		sources:    sources,
		candidates: candidates,
	})
}

// DisplayBaseline feeds the baseline measurement into the view.
func (t *TUI) DisplayBaseline(ctx context.Context, baseline m.Measurement) {
	if ctx.Err() != nil {
		return
	}

	t.program.Send(baselineMsg{baseline: baseline})
}

// DisplayDecision feeds one decision into the view.
func (t *TUI) DisplayDecision(ctx context.Context, decision m.Decision, done, total int) {
	if ctx.Err() != nil {
		return
	}

	t.program.Send(decisionMsg{decision: decision, done: done, total: total})
}

// DisplaySummary feeds the final summary into the view.
func (t *TUI) DisplaySummary(ctx context.Context, summary *m.RunSummary) {
	if ctx.Err() != nil {
		return
	}

	t.program.Send(summaryMsg{summary: summary})
}

type runInfoMsg struct {
	runID      string
	algorithm  m.Algorithm
	policy     m.AcceptancePolicy
	sources    int
	candidates int
}

type baselineMsg struct {
	baseline m.Measurement
}

type decisionMsg struct {
	decision m.Decision
	done     int
	total    int
}

type summaryMsg struct {
	summary *m.RunSummary
}

// runModel is the Bubble Tea model behind the live view.
type runModel struct {
	bar progress.Model

	info         string
	baseline     m.Measurement
	haveBaseline bool
	best         m.Measurement

	done  int
	total int

	kept     int
	restored int
	errors   int

	lastLine string
	summary  *m.RunSummary
	width    int
}

func newRunModel() runModel {
	return runModel{
		bar: progress.New(progress.WithDefaultGradient()),
	}
}

// Init implements tea.Model.
func (rm runModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (rm runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return rm, tea.Quit
		}

		return rm, nil

	case tea.WindowSizeMsg:
		rm.width = msg.Width

		rm.bar.Width = msg.Width - tuiPadding*2
		if rm.bar.Width > tuiMaxBarWidth {
			rm.bar.Width = tuiMaxBarWidth
		}

		return rm, nil

	case runInfoMsg:
		rm.info = fmt.Sprintf("run %s: %s, policy %s, %d source(s), %d candidate(s)",
			msg.runID, msg.algorithm, msg.policy, msg.sources, msg.candidates)

		return rm, nil

	case baselineMsg:
		rm.baseline = msg.baseline
		rm.haveBaseline = true
		rm.best = msg.baseline

		return rm, nil

	case decisionMsg:
		return rm.applyDecision(msg)

	case summaryMsg:
		rm.summary = msg.summary
		return rm, nil

	case progress.FrameMsg:
		bar, cmd := rm.bar.Update(msg)
		if b, ok := bar.(progress.Model); ok {
			rm.bar = b
		}

		return rm, cmd
	}

	return rm, nil
}

func (rm runModel) applyDecision(msg decisionMsg) (tea.Model, tea.Cmd) {
	rm.done = msg.done
	rm.total = msg.total
	rm.best = msg.decision.Best

	switch {
	case !msg.decision.Result.Ok():
		rm.errors++
		rm.restored++
		rm.lastLine = tuiErrorStyle.Render(fmt.Sprintf("%s %s in %s: %s",
			msg.decision.Unit.String(), msg.decision.Result.Status, msg.decision.Result.Phase, msg.decision.Result.Diagnostic))
	case msg.decision.Action == m.ActionKept:
		rm.kept++
		rm.lastLine = tuiKeptStyle.Render(fmt.Sprintf("kept %s (%s)", msg.decision.Unit.String(), msg.decision.Best))
	default:
		rm.restored++
		rm.lastLine = tuiRestoredStyle.Render(fmt.Sprintf("restored %s", msg.decision.Unit.String()))
	}

	var percent float64
	if msg.total > 0 {
		percent = float64(msg.done) / float64(msg.total)
	}

	return rm, rm.bar.SetPercent(percent)
}

// View implements tea.Model.
func (rm runModel) View() string {
	var b strings.Builder

	pad := strings.Repeat(" ", tuiPadding)

	b.WriteString("\n")
	b.WriteString(pad + tuiTitleStyle.Render("stlcrunch") + "\n")

	if rm.info != "" {
		b.WriteString(pad + tuiDimStyle.Render(rm.info) + "\n")
	}

	if rm.haveBaseline {
		b.WriteString(pad + fmt.Sprintf("baseline %s, best %s", rm.baseline, rm.best) + "\n")
	}

	b.WriteString("\n" + pad + rm.bar.View() + "\n")
	b.WriteString(pad + fmt.Sprintf("%d/%d units", rm.done, rm.total) + "\n\n")

	b.WriteString(pad + tuiKeptStyle.Render(fmt.Sprintf("%d kept", rm.kept)))
	b.WriteString(tuiDimStyle.Render(" | "))
	b.WriteString(tuiRestoredStyle.Render(fmt.Sprintf("%d restored", rm.restored)))
	b.WriteString(tuiDimStyle.Render(" | "))
	b.WriteString(tuiErrorStyle.Render(fmt.Sprintf("%d errors", rm.errors)))
	b.WriteString("\n")

	if rm.lastLine != "" {
		b.WriteString(pad + rm.lastLine + "\n")
	}

	if rm.summary != nil {
		b.WriteString("\n" + renderSummaryTable(rm.summary))
		b.WriteString(pad + fmt.Sprintf("baseline tat=%g coverage=%g -> best tat=%g coverage=%g\n",
			rm.summary.BaselineTaT, rm.summary.BaselineCoverage, rm.summary.BestTaT, rm.summary.BestCoverage))

		if rm.summary.Aborted {
			b.WriteString(pad + tuiErrorStyle.Render("run aborted: "+rm.summary.AbortReason) + "\n")
		}
	}

	return b.String()
}
