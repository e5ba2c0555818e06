package domain

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stlcrunch.dev/pkg/stlcrunch/internal/adapter"
	m "stlcrunch.dev/pkg/stlcrunch/internal/model"
)

const testRunID = "run-0001"

// recordingUI captures every UI call the workflow makes.
type recordingUI struct {
	runID      string
	candidates int
	baseline   m.Measurement
	decisions  []m.Decision
	summary    *m.RunSummary

	onDecision func()
}

func (u *recordingUI) Start(context.Context) error { return nil }
func (u *recordingUI) Pump(context.Context) error  { return nil }
func (u *recordingUI) Close(context.Context)       {}

func (u *recordingUI) DisplayRunInfo(_ context.Context, runID string, _ m.Algorithm, _ m.AcceptancePolicy, _, candidates int) {
	u.runID = runID
	u.candidates = candidates
}

func (u *recordingUI) DisplayBaseline(_ context.Context, baseline m.Measurement) {
	u.baseline = baseline
}

func (u *recordingUI) DisplayDecision(_ context.Context, decision m.Decision, _, _ int) {
	u.decisions = append(u.decisions, decision)

	if u.onDecision != nil {
		u.onDecision()
	}
}

func (u *recordingUI) DisplaySummary(_ context.Context, summary *m.RunSummary) {
	u.summary = summary
}

func writeSourceFixture(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

type workflowEnv struct {
	boot   string
	outDir string
	ui     *recordingUI
	flow   Workflow
	args   CompactArgs
}

// newWorkflowEnv lays out one STL source plus a mnemonic file in a temp dir
// and wires a workflow with the real filesystem and artifact adapters.
func newWorkflowEnv(t *testing.T, evaluator *scriptedEvaluator, source string) *workflowEnv {
	t.Helper()

	tmp := t.TempDir()
	boot := filepath.Join(tmp, "boot.s")
	writeSourceFixture(t, boot, source)

	mnemonics := filepath.Join(tmp, "mnemonics.txt")
	writeSourceFixture(t, mnemonics, "# candidate instructions\nNOP\nADD\nSW\nLW\nXOR\n")

	ui := &recordingUI{}

	return &workflowEnv{
		boot:   boot,
		outDir: filepath.Join(tmp, "out"),
		ui:     ui,
		flow: NewWorkflow(
			adapter.NewLocalSourceFS(),
			evaluator,
			adapter.NewCSVStats(),
			adapter.NewYAMLSummaryStore(),
			ui,
			FixedIDGenerator{ID: testRunID},
		),
		args: CompactArgs{
			Sources:          []m.Path{m.Path(boot)},
			Mnemonics:        m.Path(mnemonics),
			Algorithm:        m.AlgorithmA0,
			Policy:           m.PolicyMaximize,
			SegmentDimension: 2,
			Restoration:      m.RestoreForward,
			FailureCeiling:   5,
			OutDir:           m.Path(filepath.Join(tmp, "out")),
		},
	}
}

func readStats(t *testing.T, runDir string) [][]string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(runDir, StatsFileName))
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)

	return rows
}

func TestWorkflowCompact_EndToEnd(t *testing.T) {
	evaluator := &scriptedEvaluator{outcomes: []evalOutcome{
		pass(100, 90), // baseline
		pass(95, 90),  // NOP removed: better TaT, kept
		failAt(m.PhaseCompile, m.StatusCompileError), // ADD removed: restored
		pass(95, 89), // SW removed: coverage drops, restored
	}}

	env := newWorkflowEnv(t, evaluator, "start:\nNOP\nADD x1, x2, x3\nSW x1, 0(x2)\n")
	env.args.CopySourcesTo = m.Path(filepath.Join(env.outDir, "compacted"))

	summary, err := env.flow.Compact(context.Background(), env.args)
	require.NoError(t, err)
	require.NotNil(t, summary)

	assert.Equal(t, testRunID, summary.RunID)
	assert.Equal(t, m.AlgorithmA0, summary.Algorithm)
	assert.Equal(t, 3, summary.Candidates)
	assert.Equal(t, 1, summary.Kept)
	assert.Equal(t, 2, summary.Restored)
	assert.Equal(t, 1, summary.Errors)
	assert.False(t, summary.Aborted)
	assert.Equal(t, 100.0, summary.BaselineTaT)
	assert.Equal(t, 90.0, summary.BaselineCoverage)
	assert.Equal(t, 95.0, summary.BestTaT)
	assert.Equal(t, 90.0, summary.BestCoverage)
	assert.False(t, summary.StartedAt.IsZero())
	assert.False(t, summary.FinishedAt.Before(summary.StartedAt))

	require.Len(t, summary.Files, 1)
	file := summary.Files[0]
	assert.Equal(t, 4, file.OriginalLines)
	assert.Equal(t, 3, file.FinalLines)
	assert.Equal(t, 1, file.RemovedLines)
	assert.Contains(t, file.Diff, "-NOP")

	// The source was compacted in place.
	compacted, err := os.ReadFile(env.boot)
	require.NoError(t, err)
	assert.Equal(t, "start:\nADD x1, x2, x3\nSW x1, 0(x2)\n", string(compacted))

	// The copy directory got the same rendering.
	copied, err := os.ReadFile(filepath.Join(env.outDir, "compacted", "boot.s"))
	require.NoError(t, err)
	assert.Equal(t, compacted, copied)

	// The UI saw the whole run.
	assert.Equal(t, testRunID, env.ui.runID)
	assert.Equal(t, 3, env.ui.candidates)
	assert.Equal(t, m.Measurement{TaT: 100, Coverage: 90}, env.ui.baseline)
	assert.Len(t, env.ui.decisions, 3)
	require.NotNil(t, env.ui.summary)

	runDir := filepath.Join(env.outDir, testRunID)

	// The stats log has a header, the baseline and one row per decision.
	rows := readStats(t, runDir)
	require.Len(t, rows, 5)
	assert.Equal(t, "baseline", rows[1][7])
	assert.Equal(t, "-", rows[1][1])
	assert.Equal(t, "100", rows[1][4])

	assert.True(t, strings.HasSuffix(rows[2][1], "boot.s:1"), "row %v", rows[2])
	assert.Equal(t, []string{"yes", "yes", "95", "yes", "90", "kept"}, rows[2][2:])
	assert.Equal(t, []string{"no", "-", "-", "-", "-", "restored"}, rows[3][2:])
	assert.Equal(t, []string{"yes", "yes", "95", "yes", "89", "restored"}, rows[4][2:])

	// The backup zip preserves the original program.
	archive, err := zip.OpenReader(filepath.Join(runDir, BackupFileName))
	require.NoError(t, err)
	defer archive.Close()

	require.Len(t, archive.File, 1)
	assert.Equal(t, "boot.s", archive.File[0].Name)

	entry, err := archive.File[0].Open()
	require.NoError(t, err)
	defer entry.Close()

	original, err := io.ReadAll(entry)
	require.NoError(t, err)
	assert.Equal(t, "start:\nNOP\nADD x1, x2, x3\nSW x1, 0(x2)\n", string(original))

	// The summary round-trips through the store.
	stored, err := adapter.NewYAMLSummaryStore().Load(m.Path(runDir))
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, stored.RunID)
	assert.Equal(t, summary.BestTaT, stored.BestTaT)
}

func TestWorkflowCompact_NoSources(t *testing.T) {
	env := newWorkflowEnv(t, &scriptedEvaluator{}, "NOP\n")
	env.args.Sources = nil

	_, err := env.flow.Compact(context.Background(), env.args)

	var confErr *m.ConfigurationError
	require.ErrorAs(t, err, &confErr)
}

func TestWorkflowCompact_UnknownAlgorithm(t *testing.T) {
	env := newWorkflowEnv(t, &scriptedEvaluator{}, "NOP\n")
	env.args.Algorithm = m.Algorithm("a9")

	_, err := env.flow.Compact(context.Background(), env.args)

	var confErr *m.ConfigurationError
	require.ErrorAs(t, err, &confErr)
}

func TestWorkflowCompact_BaselineFailureAbortsBeforeWalk(t *testing.T) {
	evaluator := &scriptedEvaluator{outcomes: []evalOutcome{
		failAt(m.PhaseCompile, m.StatusCompileError),
	}}

	env := newWorkflowEnv(t, evaluator, "start:\nNOP\n")

	summary, err := env.flow.Compact(context.Background(), env.args)
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.Contains(t, err.Error(), "baseline evaluation failed")
	assert.Contains(t, err.Error(), "compile_error")

	// The stats log was opened but holds only the header; no summary was
	// written.
	runDir := filepath.Join(env.outDir, testRunID)
	rows := readStats(t, runDir)
	assert.Len(t, rows, 1)

	_, err = os.Stat(filepath.Join(runDir, adapter.SummaryFileName))
	assert.ErrorIs(t, err, os.ErrNotExist)

	// The source is untouched.
	content, err := os.ReadFile(env.boot)
	require.NoError(t, err)
	assert.Equal(t, "start:\nNOP\n", string(content))
}

func TestWorkflowCompact_FatalAbortStillWritesArtifacts(t *testing.T) {
	evaluator := &scriptedEvaluator{outcomes: []evalOutcome{
		pass(100, 90),
		failAt(m.PhaseCompile, m.StatusCompileError),
		failAt(m.PhaseCompile, m.StatusCompileError),
	}}

	env := newWorkflowEnv(t, evaluator, "start:\nNOP\nADD x1, x2, x3\nSW x1, 0(x2)\n")
	env.args.FailureCeiling = 1

	summary, err := env.flow.Compact(context.Background(), env.args)

	var fatal *m.FatalEvaluationError
	require.ErrorAs(t, err, &fatal)
	require.NotNil(t, summary)

	assert.True(t, summary.Aborted)
	assert.Contains(t, summary.AbortReason, "consecutive failures")
	assert.Equal(t, 0, summary.Kept)
	assert.Equal(t, 2, summary.Restored)
	assert.Equal(t, 2, summary.Errors)

	// The summary still landed on disk.
	stored, err := adapter.NewYAMLSummaryStore().Load(m.Path(filepath.Join(env.outDir, testRunID)))
	require.NoError(t, err)
	assert.True(t, stored.Aborted)

	// Everything was restored before the abort.
	content, err := os.ReadFile(env.boot)
	require.NoError(t, err)
	assert.Equal(t, "start:\nNOP\nADD x1, x2, x3\nSW x1, 0(x2)\n", string(content))
}

func TestWorkflowCompact_CancelKeepsLastAcceptedProgram(t *testing.T) {
	evaluator := &scriptedEvaluator{outcomes: []evalOutcome{
		pass(100, 90),
		pass(99, 90),
	}}

	env := newWorkflowEnv(t, evaluator, "start:\nNOP\nADD x1, x2, x3\nSW x1, 0(x2)\n")

	ctx, cancel := context.WithCancel(context.Background())
	env.ui.onDecision = cancel

	summary, err := env.flow.Compact(ctx, env.args)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)

	assert.True(t, summary.Aborted)
	assert.Equal(t, "canceled", summary.AbortReason)
	assert.Equal(t, 1, summary.Kept)
	assert.Equal(t, 99.0, summary.BestTaT)

	// The on-disk program is the last accepted state.
	content, err := os.ReadFile(env.boot)
	require.NoError(t, err)
	assert.Equal(t, "start:\nADD x1, x2, x3\nSW x1, 0(x2)\n", string(content))
}

func TestUUIDv7Generator_TimeOrderedIDs(t *testing.T) {
	id := UUIDv7Generator{}.NewID()

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}
