package domain

import (
	"context"

	m "stlcrunch.dev/pkg/stlcrunch/internal/model"
)

// a0 is the per-line pass: every candidate line is removed on its own,
// measured, and kept or restored before the next line is visited. Candidates
// are walked in ascending (file, line) order so runs are reproducible.
type a0 struct{}

// NewA0 creates the per-line algorithm.
func NewA0() Algorithm {
	return &a0{}
}

// Name implements Algorithm.
func (a *a0) Name() m.Algorithm {
	return m.AlgorithmA0
}

// Compact implements Algorithm.
func (a *a0) Compact(ctx context.Context, run *Run) error {
	candidates := run.Program.Candidates(run.Mnemonics)
	run.setUnitsTotal(len(candidates))

	for _, id := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := a.visit(ctx, run, id); err != nil {
			return err
		}

		run.finishUnit()
	}

	return nil
}

// visit removes one line, measures the result and either keeps the removal
// or puts the line back. A cancelled evaluation rolls the line back before
// the error propagates, so the on-disk program always matches the last
// decided state.
func (a *a0) visit(ctx context.Context, run *Run, id m.CodelineID) error {
	file := run.Program.File(id.File)
	unit := m.SingleLine(file.Path, id)

	if err := run.removeUnit(id.File, id); err != nil {
		return err
	}

	res, err := run.evaluate(ctx)
	if err != nil {
		if restoreErr := run.restoreUnit(id.File, id); restoreErr != nil {
			return restoreErr
		}

		return err
	}

	if run.accepts(res) {
		run.recordKept(unit, res)
		return run.noteOutcome(res)
	}

	if err := run.restoreUnit(id.File, id); err != nil {
		return err
	}

	run.recordRestored(unit, res)

	return run.noteOutcome(res)
}
