package model

import "fmt"

// Action is the fate of a visited unit.
type Action string

const (
	// ActionKept indicates the removal was accepted and stays in effect.
	ActionKept Action = "kept"
	// ActionRestored indicates the removal was rejected and undone.
	ActionRestored Action = "restored"
)

// Unit is the thing one decision is about: a single candidate line or a
// whole segment, always within one file. IDs are in ascending Line order.
type Unit struct {
	File Path
	IDs  []CodelineID
}

// SingleLine builds the unit for one candidate line.
func SingleLine(file Path, id CodelineID) Unit {
	return Unit{File: file, IDs: []CodelineID{id}}
}

// SegmentUnit builds the unit for a whole segment.
func SegmentUnit(s Segment) Unit {
	return Unit{File: s.File, IDs: s.IDs}
}

func (u Unit) String() string {
	switch len(u.IDs) {
	case 0:
		return string(u.File)
	case 1:
		return fmt.Sprintf("%s:%d", u.File, u.IDs[0].Line)
	default:
		return fmt.Sprintf("%s:%d-%d", u.File, u.IDs[0].Line, u.IDs[len(u.IDs)-1].Line)
	}
}

// Decision is one entry of the run's ordered decision log.
type Decision struct {
	Seq    int
	Unit   Unit
	Action Action
	Result EvaluationResult
	// Best is current_best after this decision took effect.
	Best Measurement
}

// CompactionState is the run's accounting: the baseline measurement, the
// monotonically improving current best, and the ordered decision log. It is
// mutated only by the algorithm's accept/reject transitions.
type CompactionState struct {
	Baseline  Measurement
	Best      Measurement
	Decisions []Decision
}

// NewCompactionState seeds the state with the baseline measurement, which is
// also the initial current best.
func NewCompactionState(baseline Measurement) *CompactionState {
	return &CompactionState{Baseline: baseline, Best: baseline}
}

// RecordKept appends an accepted decision and advances current best to the
// accepted measurement. The caller guarantees the result is a success.
func (s *CompactionState) RecordKept(u Unit, r EvaluationResult) Decision {
	m, ok := r.Measurement()
	if ok {
		s.Best = m
	}
	return s.append(u, ActionKept, r)
}

// RecordRestored appends a rejected decision; current best is untouched.
func (s *CompactionState) RecordRestored(u Unit, r EvaluationResult) Decision {
	return s.append(u, ActionRestored, r)
}

func (s *CompactionState) append(u Unit, a Action, r EvaluationResult) Decision {
	d := Decision{
		Seq:    len(s.Decisions),
		Unit:   u,
		Action: a,
		Result: r,
		Best:   s.Best,
	}
	s.Decisions = append(s.Decisions, d)
	return d
}

// Kept returns how many decisions kept a removal.
func (s *CompactionState) Kept() int { return s.count(ActionKept) }

// Restored returns how many decisions restored a unit.
func (s *CompactionState) Restored() int { return s.count(ActionRestored) }

func (s *CompactionState) count(a Action) int {
	n := 0
	for _, d := range s.Decisions {
		if d.Action == a {
			n++
		}
	}
	return n
}
