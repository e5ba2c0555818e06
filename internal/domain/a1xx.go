package domain

import (
	"context"
	"math/rand"
	"sort"

	m "stlcrunch.dev/pkg/stlcrunch/internal/model"
)

// a1xx is the segment pass: candidate lines are removed in fixed-size
// contiguous groups. A rejected segment is not simply put back; its lines
// are restored one at a time in the configured order, re-measuring after
// each restoration, until an intermediate state is accepted or the segment
// is fully restored.
type a1xx struct {
	dimension int
	order     m.RestorationOrder
	rng       *rand.Rand
}

// NewA1xx creates the segment algorithm. dimension is the number of
// candidate lines per segment; seed drives the random restoration order and
// is ignored for the deterministic orders.
func NewA1xx(dimension int, order m.RestorationOrder, seed int64) (Algorithm, error) {
	if dimension < 1 {
		return nil, m.NewConfigurationError("segment dimension must be at least 1, got %d", dimension)
	}

	switch order {
	case m.RestoreForward, m.RestoreBackward, m.RestoreRandom:
	default:
		return nil, m.NewConfigurationError("unknown restoration order %q", order)
	}

	return &a1xx{
		dimension: dimension,
		order:     order,
		rng:       rand.New(rand.NewSource(seed)),
	}, nil
}

// Name implements Algorithm.
func (a *a1xx) Name() m.Algorithm {
	return m.AlgorithmA1xx
}

// Compact implements Algorithm.
func (a *a1xx) Compact(ctx context.Context, run *Run) error {
	segments := run.Program.Segments(run.Mnemonics, a.dimension)
	run.setUnitsTotal(len(segments))

	for _, segment := range segments {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := a.visit(ctx, run, segment); err != nil {
			return err
		}

		run.finishUnit()
	}

	return nil
}

// visit removes a whole segment and measures it. On rejection it walks the
// restoration order: each step puts one line back and re-measures what is
// still removed, stopping at the first accepted state. Restoring the last
// line recreates the previously accepted program, so that state is never
// re-measured.
func (a *a1xx) visit(ctx context.Context, run *Run, segment m.Segment) error {
	fileIdx := segment.IDs[0].File

	if err := run.removeUnit(fileIdx, segment.IDs...); err != nil {
		return err
	}

	res, err := run.evaluate(ctx)
	if err != nil {
		if restoreErr := run.restoreUnit(fileIdx, segment.IDs...); restoreErr != nil {
			return restoreErr
		}

		return err
	}

	if run.accepts(res) {
		run.recordKept(m.SegmentUnit(segment), res)
		return run.noteOutcome(res)
	}

	run.recordRestored(m.SegmentUnit(segment), res)

	if err := run.noteOutcome(res); err != nil {
		if restoreErr := run.restoreUnit(fileIdx, segment.IDs...); restoreErr != nil {
			return restoreErr
		}

		return err
	}

	return a.restoreWalk(ctx, run, segment)
}

func (a *a1xx) restoreWalk(ctx context.Context, run *Run, segment m.Segment) error {
	fileIdx := segment.IDs[0].File
	removed := make(map[m.CodelineID]struct{}, len(segment.IDs))

	for _, id := range segment.IDs {
		removed[id] = struct{}{}
	}

	for _, id := range a.restorationOrder(segment) {
		if err := run.restoreUnit(fileIdx, id); err != nil {
			return err
		}

		delete(removed, id)

		if len(removed) == 0 {
			// Fully restored: the program equals the last accepted state,
			// nothing new to measure.
			return nil
		}

		res, err := run.evaluate(ctx)
		if err != nil {
			if restoreErr := run.restoreUnit(fileIdx, sortedIDs(removed)...); restoreErr != nil {
				return restoreErr
			}

			return err
		}

		unit := m.Unit{File: segment.File, IDs: sortedIDs(removed)}

		if run.accepts(res) {
			run.recordKept(unit, res)
			return run.noteOutcome(res)
		}

		run.recordRestored(unit, res)

		if err := run.noteOutcome(res); err != nil {
			if restoreErr := run.restoreUnit(fileIdx, sortedIDs(removed)...); restoreErr != nil {
				return restoreErr
			}

			return err
		}
	}

	return nil
}

// restorationOrder yields the segment's IDs in the order they get restored.
func (a *a1xx) restorationOrder(segment m.Segment) []m.CodelineID {
	ids := make([]m.CodelineID, len(segment.IDs))
	copy(ids, segment.IDs)

	switch a.order {
	case m.RestoreBackward:
		for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
			ids[i], ids[j] = ids[j], ids[i]
		}

	case m.RestoreRandom:
		a.rng.Shuffle(len(ids), func(i, j int) {
			ids[i], ids[j] = ids[j], ids[i]
		})
	}

	return ids
}

func sortedIDs(set map[m.CodelineID]struct{}) []m.CodelineID {
	ids := make([]m.CodelineID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i].Before(ids[j]) })

	return ids
}
