package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"stlcrunch.dev/pkg/stlcrunch/internal/adapter"
	"stlcrunch.dev/pkg/stlcrunch/internal/controller"
	m "stlcrunch.dev/pkg/stlcrunch/internal/model"
)

// Artifact names inside a run directory.
const (
	StatsFileName  = "stats.csv"
	BackupFileName = "backup.zip"
)

// IDGenerator produces run identifiers.
type IDGenerator interface {
	NewID() string
}

// UUIDv7Generator generates time-ordered UUIDs, so run directories sort by
// start time.
type UUIDv7Generator struct{}

// NewID implements IDGenerator.
func (UUIDv7Generator) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedIDGenerator always returns the same ID. Handy in tests.
type FixedIDGenerator struct {
	ID string
}

// NewID implements IDGenerator.
func (g FixedIDGenerator) NewID() string {
	return g.ID
}

// CompactArgs carries everything one compaction run needs to know.
type CompactArgs struct {
	Sources   []m.Path
	Mnemonics m.Path

	Algorithm        m.Algorithm
	Policy           m.AcceptancePolicy
	SegmentDimension int
	Restoration      m.RestorationOrder
	Seed             int64
	FailureCeiling   int

	// OutDir is where run artifacts land, one subdirectory per run ID.
	OutDir m.Path

	// CopySourcesTo optionally receives a copy of the compacted sources;
	// the originals are always rewritten in place (the external flow reads
	// them from their configured locations).
	CopySourcesTo m.Path
}

// Workflow drives complete compaction runs.
type Workflow interface {
	Compact(ctx context.Context, args CompactArgs) (*m.RunSummary, error)
}

type workflow struct {
	sources   adapter.SourceFS
	evaluator adapter.Evaluator
	stats     adapter.StatsWriter
	summaries adapter.SummaryStore
	ui        controller.UI
	ids       IDGenerator
	now       func() time.Time
}

// NewWorkflow creates a Workflow instance with the provided dependencies.
func NewWorkflow(
	sources adapter.SourceFS,
	evaluator adapter.Evaluator,
	stats adapter.StatsWriter,
	summaries adapter.SummaryStore,
	ui controller.UI,
	ids IDGenerator,
) Workflow {
	return &workflow{
		sources:   sources,
		evaluator: evaluator,
		stats:     stats,
		summaries: summaries,
		ui:        ui,
		ids:       ids,
		now:       time.Now,
	}
}

// Compact runs one compaction: load, backup, baseline, candidate walk,
// artifacts. A FatalEvaluationError or cancellation aborts the walk but the
// stats log, the summary and the last known-good program still land on
// disk; the error is returned alongside the summary.
func (w *workflow) Compact(ctx context.Context, args CompactArgs) (*m.RunSummary, error) {
	if len(args.Sources) == 0 {
		return nil, m.NewConfigurationError("no STL sources configured")
	}

	algorithm, err := NewAlgorithm(args)
	if err != nil {
		return nil, err
	}

	mnemonics, err := w.sources.LoadMnemonics(args.Mnemonics)
	if err != nil {
		return nil, err
	}

	files, err := w.sources.LoadSources(args.Sources)
	if err != nil {
		return nil, err
	}

	program, err := NewProgram(files)
	if err != nil {
		return nil, err
	}

	candidates := program.Candidates(mnemonics)
	runID := w.ids.NewID()
	startedAt := w.now()

	slog.Info("starting compaction run",
		"run_id", runID,
		"algorithm", string(args.Algorithm),
		"policy", string(args.Policy),
		"sources", len(files),
		"candidates", len(candidates),
	)

	runDir := m.Path(filepath.Join(string(args.OutDir), runID))
	if err := w.sources.EnsureDir(runDir); err != nil {
		return nil, fmt.Errorf("create run directory %s: %w", runDir, err)
	}

	// Archive the originals before the first mutation touches disk.
	if err := w.sources.BackupZip(m.Path(filepath.Join(string(runDir), BackupFileName)), args.Sources); err != nil {
		return nil, err
	}

	if err := w.stats.Open(m.Path(filepath.Join(string(runDir), StatsFileName)), args.Sources); err != nil {
		return nil, err
	}
	defer w.stats.Close()

	w.ui.DisplayRunInfo(ctx, runID, args.Algorithm, args.Policy, len(files), len(candidates))

	baseline, err := w.measureBaseline(ctx)
	if err != nil {
		return nil, err
	}

	if err := w.stats.Baseline(baseline); err != nil {
		return nil, err
	}

	w.ui.DisplayBaseline(ctx, baseline)

	state := m.NewCompactionState(baseline)
	run := &Run{
		Program:        program,
		Mnemonics:      mnemonics,
		Evaluator:      w.evaluator,
		Sources:        w.sources,
		State:          state,
		Policy:         args.Policy,
		FailureCeiling: args.FailureCeiling,
		Observe: func(decision m.Decision, done, total int) {
			if err := w.stats.Record(decision); err != nil {
				slog.Error("stats row dropped", "error", err, "unit", decision.Unit.String())
			}

			w.ui.DisplayDecision(ctx, decision, done, total)
		},
	}

	walkErr := algorithm.Compact(ctx, run)
	if walkErr != nil {
		slog.Error("compaction walk aborted", "run_id", runID, "error", walkErr)
	}

	if err := w.copySources(program, args.CopySourcesTo); err != nil {
		return nil, err
	}

	summary := w.buildSummary(runID, args, startedAt, state, program, len(candidates), walkErr)

	if err := w.summaries.Save(runDir, summary); err != nil {
		return nil, err
	}

	w.ui.DisplaySummary(ctx, summary)

	slog.Info("compaction run finished",
		"run_id", runID,
		"kept", summary.Kept,
		"restored", summary.Restored,
		"errors", summary.Errors,
		"aborted", summary.Aborted,
	)

	return summary, walkErr
}

// measureBaseline evaluates the unmodified program. The run cannot proceed
// if the pristine STL does not pass its own flow.
func (w *workflow) measureBaseline(ctx context.Context) (m.Measurement, error) {
	run := &Run{Evaluator: w.evaluator}

	res, err := run.evaluate(ctx)
	if err != nil {
		return m.Measurement{}, err
	}

	measurement, ok := res.Measurement()
	if !res.Ok() || !ok {
		return m.Measurement{}, fmt.Errorf("baseline evaluation failed: %s in %s: %s", res.Status, res.Phase, res.Diagnostic)
	}

	slog.Info("baseline measured", "tat", measurement.TaT, "coverage", measurement.Coverage)

	return measurement, nil
}

func (w *workflow) copySources(program *Program, dir m.Path) error {
	if dir == "" {
		return nil
	}

	if err := w.sources.EnsureDir(dir); err != nil {
		return fmt.Errorf("create copy directory %s: %w", dir, err)
	}

	for _, file := range program.Files() {
		target := m.Path(filepath.Join(string(dir), filepath.Base(string(file.Path))))
		if err := w.sources.WriteFileAtomic(target, file.Render()); err != nil {
			return err
		}
	}

	return nil
}

func (w *workflow) buildSummary(
	runID string,
	args CompactArgs,
	startedAt time.Time,
	state *m.CompactionState,
	program *Program,
	candidates int,
	walkErr error,
) *m.RunSummary {
	summary := &m.RunSummary{
		RunID:      runID,
		Algorithm:  args.Algorithm,
		Policy:     string(args.Policy),
		StartedAt:  startedAt,
		FinishedAt: w.now(),

		BaselineTaT:      state.Baseline.TaT,
		BaselineCoverage: state.Baseline.Coverage,
		BestTaT:          state.Best.TaT,
		BestCoverage:     state.Best.Coverage,

		Candidates: candidates,
		Kept:       state.Kept(),
		Restored:   state.Restored(),
	}

	for _, decision := range state.Decisions {
		if !decision.Result.Ok() {
			summary.Errors++
		}
	}

	if walkErr != nil {
		summary.Aborted = true
		summary.AbortReason = walkErr.Error()

		if errors.Is(walkErr, context.Canceled) {
			summary.AbortReason = "canceled"
		}
	}

	for _, file := range program.Files() {
		original := file.RenderOriginal()
		compacted := file.Render()

		diff, err := adapter.RenderDiff(file.Path, original, compacted)
		if err != nil {
			slog.Error("diff rendering failed", "path", file.Path, "error", err)
			diff = ""
		}

		summary.Files = append(summary.Files, m.FileSummary{
			Path:          file.Path,
			OriginalLines: len(file.Lines),
			FinalLines:    file.VisibleLines(),
			RemovedLines:  len(file.Lines) - file.VisibleLines(),
			Diff:          diff,
		})
	}

	return summary
}
