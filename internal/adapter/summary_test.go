package adapter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "stlcrunch.dev/pkg/stlcrunch/internal/model"
)

func testSummary() *m.RunSummary {
	return &m.RunSummary{
		RunID:      "run-0001",
		Algorithm:  m.AlgorithmA0,
		Policy:     "maximize",
		StartedAt:  time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 2, 14, 10, 15, 0, 0, time.UTC),

		BaselineTaT:      100.5,
		BaselineCoverage: 91.25,
		BestTaT:          84,
		BestCoverage:     91.5,

		Candidates: 40,
		Kept:       12,
		Restored:   28,
		Errors:     3,

		Files: []m.FileSummary{
			{Path: "stl/boot.s", OriginalLines: 120, FinalLines: 108, RemovedLines: 12, Diff: "-NOP\n"},
		},
	}
}

func TestYAMLSummaryStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewYAMLSummaryStore()
	summary := testSummary()

	require.NoError(t, store.Save(m.Path(dir), summary))

	raw, err := os.ReadFile(filepath.Join(dir, SummaryFileName))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "run_id: run-0001")
	assert.Contains(t, string(raw), "baseline_tat: 100.5")

	stored, err := store.Load(m.Path(dir))
	require.NoError(t, err)

	assert.Equal(t, summary.RunID, stored.RunID)
	assert.Equal(t, summary.Algorithm, stored.Algorithm)
	assert.Equal(t, summary.BestTaT, stored.BestTaT)
	assert.Equal(t, summary.Candidates, stored.Candidates)
	assert.Equal(t, summary.Files, stored.Files)
	assert.True(t, stored.StartedAt.Equal(summary.StartedAt))
	assert.True(t, stored.FinishedAt.Equal(summary.FinishedAt))
}

func TestYAMLSummaryStore_LoadErrors(t *testing.T) {
	store := NewYAMLSummaryStore()

	_, err := store.Load(m.Path(filepath.Join(t.TempDir(), "no-such-run")))
	assert.ErrorContains(t, err, "summary: read")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SummaryFileName), []byte("\tnot yaml"), 0o600))

	_, err = store.Load(m.Path(dir))
	assert.ErrorContains(t, err, "summary: parse")
}

func TestRenderDiff(t *testing.T) {
	original := []byte("start:\nNOP\nADD x1, x2, x3\nSW x1, 0(x2)\n")
	compacted := []byte("start:\nADD x1, x2, x3\nSW x1, 0(x2)\n")

	diff, err := RenderDiff("stl/boot.s", original, compacted)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "boot_diff", []byte(diff))
}

func TestRenderDiff_IdenticalContent(t *testing.T) {
	content := []byte("start:\nNOP\n")

	diff, err := RenderDiff("stl/boot.s", content, content)
	require.NoError(t, err)
	assert.Empty(t, diff)
}
