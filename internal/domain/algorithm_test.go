package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "stlcrunch.dev/pkg/stlcrunch/internal/model"
)

// evalOutcome scripts what one full pipeline pass produces. For failures,
// phase names the failing stage; for successes it is ignored.
type evalOutcome struct {
	status     m.EvalStatus
	phase      m.Phase
	tat        float64
	coverage   float64
	diagnostic string
}

func pass(tat, coverage float64) evalOutcome {
	return evalOutcome{status: m.StatusSuccess, tat: tat, coverage: coverage}
}

func failAt(phase m.Phase, status m.EvalStatus) evalOutcome {
	return evalOutcome{status: status, phase: phase, diagnostic: "scripted failure"}
}

// scriptedEvaluator plays back outcomes in order, one per pipeline pass. It
// advances when the scripted failing phase reports, or in Coverage on a full
// pass. Unscripted passes fail loudly.
type scriptedEvaluator struct {
	outcomes []evalOutcome
	calls    int
}

func (f *scriptedEvaluator) current() evalOutcome {
	if f.calls >= len(f.outcomes) {
		return evalOutcome{status: m.StatusSimulationError, phase: m.PhaseCompile, diagnostic: "unscripted evaluation"}
	}

	return f.outcomes[f.calls]
}

func (f *scriptedEvaluator) Compile(_ context.Context) m.EvaluationResult {
	out := f.current()
	if out.phase == m.PhaseCompile && out.status != m.StatusSuccess {
		f.calls++
		return m.EvaluationResult{Status: out.status, Phase: m.PhaseCompile, Diagnostic: out.diagnostic}
	}

	return m.EvaluationResult{Status: m.StatusSuccess, Phase: m.PhaseCompile}
}

func (f *scriptedEvaluator) LogicSimulate(_ context.Context) m.EvaluationResult {
	out := f.current()
	if out.phase == m.PhaseLogicSim && out.status != m.StatusSuccess {
		f.calls++
		return m.EvaluationResult{Status: out.status, Phase: m.PhaseLogicSim, Diagnostic: out.diagnostic}
	}

	return m.EvaluationResult{Status: m.StatusSuccess, Phase: m.PhaseLogicSim, TaT: out.tat, TaTValid: true}
}

func (f *scriptedEvaluator) FaultSimulate(_ context.Context) m.EvaluationResult {
	out := f.current()
	if out.phase == m.PhaseFaultSim && out.status != m.StatusSuccess {
		f.calls++
		return m.EvaluationResult{Status: out.status, Phase: m.PhaseFaultSim, Diagnostic: out.diagnostic}
	}

	return m.EvaluationResult{Status: m.StatusSuccess, Phase: m.PhaseFaultSim}
}

func (f *scriptedEvaluator) Coverage() (float64, error) {
	out := f.current()
	f.calls++

	if out.phase == m.PhaseCoverage && out.status != m.StatusSuccess {
		return 0, errors.New(out.diagnostic)
	}

	return out.coverage, nil
}

// memoryFS records materialized writes; loading is not its business in
// algorithm tests.
type memoryFS struct {
	writes map[m.Path][]byte
}

func newMemoryFS() *memoryFS {
	return &memoryFS{writes: map[m.Path][]byte{}}
}

func (f *memoryFS) LoadSources(_ []m.Path) ([]m.SourceFile, error) {
	return nil, errors.New("not implemented")
}

func (f *memoryFS) LoadMnemonics(_ m.Path) (*m.MnemonicSet, error) {
	return nil, errors.New("not implemented")
}

func (f *memoryFS) WriteFileAtomic(path m.Path, data []byte) error {
	f.writes[path] = append([]byte(nil), data...)
	return nil
}

func (f *memoryFS) EnsureDir(_ m.Path) error { return nil }

func (f *memoryFS) BackupZip(_ m.Path, _ []m.Path) error { return nil }

// newTestRun assembles a Run over one file of candidate lines.
func newTestRun(t *testing.T, baseline m.Measurement, policy m.AcceptancePolicy, evaluator *scriptedEvaluator, lines ...string) (*Run, *memoryFS) {
	t.Helper()

	program, err := NewProgram([]m.SourceFile{sourceFile(t, 0, "stl/test.s", lines...)})
	require.NoError(t, err)

	fs := newMemoryFS()

	return &Run{
		Program:   program,
		Mnemonics: testMnemonics(),
		Evaluator: evaluator,
		Sources:   fs,
		State:     m.NewCompactionState(baseline),
		Policy:    policy,
	}, fs
}

func TestAccepted_Maximize(t *testing.T) {
	state := m.NewCompactionState(m.Measurement{TaT: 100, Coverage: 90})

	tests := []struct {
		name      string
		candidate m.Measurement
		want      bool
	}{
		{"tat better coverage equal", m.Measurement{TaT: 99, Coverage: 90}, true},
		{"coverage better tat equal", m.Measurement{TaT: 100, Coverage: 91}, true},
		{"both better", m.Measurement{TaT: 99, Coverage: 91}, true},
		{"both equal", m.Measurement{TaT: 100, Coverage: 90}, false},
		{"tat worse coverage better", m.Measurement{TaT: 101, Coverage: 95}, false},
		{"coverage worse tat better", m.Measurement{TaT: 95, Coverage: 89}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, accepted(m.PolicyMaximize, state, tt.candidate))
		})
	}
}

func TestAccepted_Threshold(t *testing.T) {
	// Best has drifted ahead of the baseline; threshold compares TaT to
	// best and coverage to the baseline.
	state := m.NewCompactionState(m.Measurement{TaT: 100, Coverage: 90})
	state.Best = m.Measurement{TaT: 95, Coverage: 92}

	tests := []struct {
		name      string
		candidate m.Measurement
		want      bool
	}{
		{"tat equal best coverage at baseline", m.Measurement{TaT: 95, Coverage: 90}, true},
		{"tat below best coverage above baseline", m.Measurement{TaT: 90, Coverage: 91}, true},
		{"coverage below best but at baseline", m.Measurement{TaT: 95, Coverage: 90.5}, true},
		{"tat above best", m.Measurement{TaT: 96, Coverage: 99}, false},
		{"coverage below baseline", m.Measurement{TaT: 90, Coverage: 89.9}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, accepted(m.PolicyThreshold, state, tt.candidate))
		})
	}
}

func TestNoteOutcome_CeilingDisabled(t *testing.T) {
	run := &Run{FailureCeiling: 0}
	failure := m.EvaluationResult{Status: m.StatusCompileError, Phase: m.PhaseCompile}

	for i := 0; i < 50; i++ {
		require.NoError(t, run.noteOutcome(failure))
	}
}

func TestNoteOutcome_SuccessResetsStreak(t *testing.T) {
	run := &Run{FailureCeiling: 2}
	failure := m.EvaluationResult{Status: m.StatusTimeout, Phase: m.PhaseLogicSim}
	success := m.EvaluationResult{Status: m.StatusSuccess}

	require.NoError(t, run.noteOutcome(failure))
	require.NoError(t, run.noteOutcome(failure))
	require.NoError(t, run.noteOutcome(success))
	require.NoError(t, run.noteOutcome(failure))
	require.NoError(t, run.noteOutcome(failure))

	// Third consecutive failure crosses the ceiling of 2.
	err := run.noteOutcome(failure)
	require.Error(t, err)

	var fatal *m.FatalEvaluationError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, 3, fatal.Consecutive)
	assert.Equal(t, 2, fatal.Ceiling)
	assert.Equal(t, m.StatusTimeout, fatal.Last.Status)
}

func TestRunEvaluate_ShortCircuitsOnCompileError(t *testing.T) {
	evaluator := &scriptedEvaluator{outcomes: []evalOutcome{failAt(m.PhaseCompile, m.StatusCompileError)}}
	run := &Run{Evaluator: evaluator}

	res, err := run.evaluate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, m.StatusCompileError, res.Status)
	assert.Equal(t, m.PhaseCompile, res.Phase)
	assert.False(t, res.Ok())
	assert.Equal(t, 1, evaluator.calls)
}

func TestRunEvaluate_FaultSimFailureKeepsTaT(t *testing.T) {
	evaluator := &scriptedEvaluator{outcomes: []evalOutcome{
		{status: m.StatusTimeout, phase: m.PhaseFaultSim, tat: 84.5},
	}}
	run := &Run{Evaluator: evaluator}

	res, err := run.evaluate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, m.StatusTimeout, res.Status)
	assert.Equal(t, m.PhaseFaultSim, res.Phase)
	assert.True(t, res.TaTValid)
	assert.Equal(t, 84.5, res.TaT)
	assert.False(t, res.CoverageValid)
}

func TestRunEvaluate_CoverageErrorIsSimulationError(t *testing.T) {
	evaluator := &scriptedEvaluator{outcomes: []evalOutcome{
		{status: m.StatusSimulationError, phase: m.PhaseCoverage, tat: 77, diagnostic: "report missing"},
	}}
	run := &Run{Evaluator: evaluator}

	res, err := run.evaluate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, m.StatusSimulationError, res.Status)
	assert.Equal(t, m.PhaseCoverage, res.Phase)
	assert.Equal(t, "report missing", res.Diagnostic)
	assert.True(t, res.TaTValid)
	assert.Equal(t, 77.0, res.TaT)
}

func TestRunEvaluate_FullPass(t *testing.T) {
	evaluator := &scriptedEvaluator{outcomes: []evalOutcome{pass(88, 92.5)}}
	run := &Run{Evaluator: evaluator}

	res, err := run.evaluate(context.Background())
	require.NoError(t, err)

	require.True(t, res.Ok())

	measurement, ok := res.Measurement()
	require.True(t, ok)
	assert.Equal(t, m.Measurement{TaT: 88, Coverage: 92.5}, measurement)
}

func TestRunEvaluate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run := &Run{Evaluator: &scriptedEvaluator{}}

	_, err := run.evaluate(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
