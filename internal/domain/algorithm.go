package domain

import (
	"context"
	"log/slog"

	"stlcrunch.dev/pkg/stlcrunch/internal/adapter"
	m "stlcrunch.dev/pkg/stlcrunch/internal/model"
)

// Algorithm is one compaction search strategy. Compact walks the program's
// candidate units, driving removals through the Run environment until every
// unit has been decided or the run dies.
type Algorithm interface {
	Name() m.Algorithm
	Compact(ctx context.Context, run *Run) error
}

// Run bundles the per-run collaborators an algorithm works against. The
// workflow assembles one Run per compaction and hands it to the algorithm.
type Run struct {
	Program   *Program
	Mnemonics *m.MnemonicSet
	Evaluator adapter.Evaluator
	Sources   adapter.SourceFS
	State     *m.CompactionState
	Policy    m.AcceptancePolicy

	// FailureCeiling aborts the run after this many consecutive evaluation
	// failures. Zero disables the ceiling.
	FailureCeiling int

	// Observe is called once per recorded decision with the number of
	// finished units and the unit total.
	Observe func(decision m.Decision, done, total int)

	unitsDone  int
	unitsTotal int
	failures   int
}

// evaluate runs the full pipeline against the current on-disk program:
// compile, logic simulation, fault simulation, coverage. The first failing
// phase short-circuits. The returned error is reserved for context
// cancellation; pipeline failures are ordinary results.
func (r *Run) evaluate(ctx context.Context) (m.EvaluationResult, error) {
	if err := ctx.Err(); err != nil {
		return m.EvaluationResult{}, err
	}

	res := r.Evaluator.Compile(ctx)
	if !res.Ok() {
		return res, ctx.Err()
	}

	lsim := r.Evaluator.LogicSimulate(ctx)
	if !lsim.Ok() {
		return lsim, ctx.Err()
	}

	fsim := r.Evaluator.FaultSimulate(ctx)
	if !fsim.Ok() {
		// Keep the TaT the logic simulation already produced.
		fsim.TaT = lsim.TaT
		fsim.TaTValid = lsim.TaTValid

		return fsim, ctx.Err()
	}

	coverage, err := r.Evaluator.Coverage()
	if err != nil {
		return m.EvaluationResult{
			Status:     m.StatusSimulationError,
			Phase:      m.PhaseCoverage,
			TaT:        lsim.TaT,
			TaTValid:   lsim.TaTValid,
			Diagnostic: err.Error(),
		}, ctx.Err()
	}

	return m.EvaluationResult{
		Status:        m.StatusSuccess,
		Phase:         m.PhaseCoverage,
		TaT:           lsim.TaT,
		TaTValid:      true,
		Coverage:      coverage,
		CoverageValid: true,
	}, nil
}

// accepts applies the run's acceptance policy to a successful result.
func (r *Run) accepts(res m.EvaluationResult) bool {
	measurement, ok := res.Measurement()
	if !res.Ok() || !ok {
		return false
	}

	return accepted(r.Policy, r.State, measurement)
}

// accepted judges a candidate measurement against the run's accounting.
//
// Maximize accepts strict Pareto improvements over current best: neither
// metric worse, at least one strictly better. Threshold accepts any TaT not
// above current best as long as coverage has not fallen below the baseline.
func accepted(policy m.AcceptancePolicy, state *m.CompactionState, candidate m.Measurement) bool {
	switch policy {
	case m.PolicyMaximize:
		if candidate.TaT > state.Best.TaT || candidate.Coverage < state.Best.Coverage {
			return false
		}

		return candidate.TaT < state.Best.TaT || candidate.Coverage > state.Best.Coverage

	case m.PolicyThreshold:
		return candidate.TaT <= state.Best.TaT && candidate.Coverage >= state.Baseline.Coverage

	default:
		return false
	}
}

// materialize writes the current rendering of one file to disk.
func (r *Run) materialize(fileIdx int) error {
	file := r.Program.File(fileIdx)
	return r.Sources.WriteFileAtomic(file.Path, file.Render())
}

// removeUnit removes ids from the program and materializes the file.
func (r *Run) removeUnit(fileIdx int, ids ...m.CodelineID) error {
	if err := r.Program.Remove(ids...); err != nil {
		return err
	}

	return r.materialize(fileIdx)
}

// restoreUnit restores ids and materializes the file.
func (r *Run) restoreUnit(fileIdx int, ids ...m.CodelineID) error {
	if len(ids) == 0 {
		return nil
	}

	if err := r.Program.Restore(ids...); err != nil {
		return err
	}

	return r.materialize(fileIdx)
}

// recordKept books an accepted decision and notifies the observer.
func (r *Run) recordKept(unit m.Unit, res m.EvaluationResult) {
	decision := r.State.RecordKept(unit, res)
	slog.Info("kept removal", "unit", unit.String(), "best", r.State.Best.String())
	r.notify(decision)
}

// recordRestored books a rejected decision and notifies the observer.
func (r *Run) recordRestored(unit m.Unit, res m.EvaluationResult) {
	decision := r.State.RecordRestored(unit, res)

	if res.Ok() {
		slog.Debug("restored unit", "unit", unit.String(), "tat", res.TaT, "coverage", res.Coverage)
	} else {
		slog.Warn("candidate evaluation failed",
			"unit", unit.String(),
			"phase", string(res.Phase),
			"status", res.Status.String(),
			"diagnostic", res.Diagnostic,
		)
	}

	r.notify(decision)
}

func (r *Run) notify(decision m.Decision) {
	if r.Observe != nil {
		r.Observe(decision, r.unitsDone, r.unitsTotal)
	}
}

// finishUnit marks one candidate unit as fully decided.
func (r *Run) finishUnit() {
	r.unitsDone++
}

// setUnitsTotal seeds the progress denominator before the walk starts.
func (r *Run) setUnitsTotal(total int) {
	r.unitsTotal = total
}

// noteOutcome tracks consecutive evaluation failures against the ceiling.
// Any success resets the streak; crossing the ceiling is fatal.
func (r *Run) noteOutcome(res m.EvaluationResult) error {
	if res.Ok() {
		r.failures = 0
		return nil
	}

	r.failures++

	if r.FailureCeiling > 0 && r.failures > r.FailureCeiling {
		return &m.FatalEvaluationError{
			Consecutive: r.failures,
			Ceiling:     r.FailureCeiling,
			Last:        res,
		}
	}

	return nil
}

// NewAlgorithm builds the Algorithm selected by args.
func NewAlgorithm(args CompactArgs) (Algorithm, error) {
	switch args.Algorithm {
	case m.AlgorithmA0:
		return NewA0(), nil
	case m.AlgorithmA1xx:
		return NewA1xx(args.SegmentDimension, args.Restoration, args.Seed)
	default:
		return nil, m.NewConfigurationError("unknown algorithm %q", args.Algorithm)
	}
}
