package adapter

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "stlcrunch.dev/pkg/stlcrunch/internal/model"
)

func statsRows(t *testing.T, path string) [][]string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)

	return rows
}

func TestCSVStats_Lifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.csv")

	stats := NewCSVStats()
	require.NoError(t, stats.Open(m.Path(path), []m.Path{"stl/boot.s", "stl/alu.s"}))

	require.NoError(t, stats.Baseline(m.Measurement{TaT: 100.5, Coverage: 91.25}))

	kept := m.Decision{
		Unit:   m.SingleLine("stl/boot.s", m.CodelineID{File: 0, Line: 4}),
		Action: m.ActionKept,
		Result: m.EvaluationResult{
			Status: m.StatusSuccess, Phase: m.PhaseCoverage,
			TaT: 95, TaTValid: true, Coverage: 90, CoverageValid: true,
		},
	}
	require.NoError(t, stats.Record(kept))

	compileFailure := m.Decision{
		Unit:   m.SingleLine("stl/boot.s", m.CodelineID{File: 0, Line: 5}),
		Action: m.ActionRestored,
		Result: m.EvaluationResult{Status: m.StatusCompileError, Phase: m.PhaseCompile},
	}
	require.NoError(t, stats.Record(compileFailure))

	fsimTimeout := m.Decision{
		Unit:   m.SingleLine("stl/alu.s", m.CodelineID{File: 1, Line: 2}),
		Action: m.ActionRestored,
		Result: m.EvaluationResult{
			Status: m.StatusTimeout, Phase: m.PhaseFaultSim,
			TaT: 84.5, TaTValid: true,
		},
	}
	require.NoError(t, stats.Record(fsimTimeout))

	coverageFailure := m.Decision{
		Unit:   m.SingleLine("stl/alu.s", m.CodelineID{File: 1, Line: 3}),
		Action: m.ActionRestored,
		Result: m.EvaluationResult{
			Status: m.StatusSimulationError, Phase: m.PhaseCoverage,
			TaT: 86, TaTValid: true,
		},
	}
	require.NoError(t, stats.Record(coverageFailure))

	require.NoError(t, stats.Close())

	assert.Equal(t, [][]string{
		{"asm_sources", "removed_unit", "compiles", "lsim_ok", "tat", "fsim_ok", "coverage", "verdict"},
		{"stl/boot.s stl/alu.s", "-", "yes", "yes", "100.5", "yes", "91.25", "baseline"},
		{"stl/boot.s stl/alu.s", "stl/boot.s:4", "yes", "yes", "95", "yes", "90", "kept"},
		{"stl/boot.s stl/alu.s", "stl/boot.s:5", "no", "-", "-", "-", "-", "restored"},
		{"stl/boot.s stl/alu.s", "stl/alu.s:2", "yes", "yes", "84.5", "timeout", "-", "restored"},
		{"stl/boot.s stl/alu.s", "stl/alu.s:3", "yes", "yes", "86", "yes", "-", "restored"},
	}, statsRows(t, path))
}

func TestCSVStats_RowsSurviveWithoutClose(t *testing.T) {
	// An aborted run never calls Close; every row must already be flushed.
	path := filepath.Join(t.TempDir(), "stats.csv")

	stats := NewCSVStats()
	require.NoError(t, stats.Open(m.Path(path), []m.Path{"stl/boot.s"}))
	require.NoError(t, stats.Baseline(m.Measurement{TaT: 100, Coverage: 90}))

	rows := statsRows(t, path)
	assert.Len(t, rows, 2)

	require.NoError(t, stats.Close())
}

func TestCSVStats_OpenTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.csv")

	stats := NewCSVStats()
	require.NoError(t, stats.Open(m.Path(path), nil))
	defer stats.Close()

	err := stats.Open(m.Path(path), nil)
	assert.ErrorContains(t, err, "already open")
}

func TestCSVStats_NotOpen(t *testing.T) {
	stats := NewCSVStats()

	assert.ErrorContains(t, stats.Baseline(m.Measurement{}), "not open")
	assert.ErrorContains(t, stats.Record(m.Decision{}), "not open")

	// Close without Open is a no-op, and closing twice is safe.
	assert.NoError(t, stats.Close())
	assert.NoError(t, stats.Close())
}
