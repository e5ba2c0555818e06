package model

import "fmt"

// Measurement is one quality sample of the program: test application time
// (lower is better) and fault coverage (higher is better).
type Measurement struct {
	TaT      float64
	Coverage float64
}

func (m Measurement) String() string {
	return fmt.Sprintf("tat=%g coverage=%g", m.TaT, m.Coverage)
}

// EvalStatus is the outcome class of one Evaluator call.
type EvalStatus int

const (
	// StatusSuccess indicates all phases completed and a measurement exists.
	StatusSuccess EvalStatus = iota
	// StatusCompileError indicates the candidate program failed to assemble.
	StatusCompileError
	// StatusSimulationError indicates a simulator rejected the run or its
	// output did not match the configured success shape.
	StatusSimulationError
	// StatusTimeout indicates a phase exceeded its deadline and was killed.
	StatusTimeout
)

func (s EvalStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusCompileError:
		return "compile_error"
	case StatusSimulationError:
		return "simulation_error"
	case StatusTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("EvalStatus(%d)", int(s))
	}
}

// Phase names the pipeline stage an Evaluator outcome belongs to.
type Phase string

const (
	PhaseCompile  Phase = "compile"
	PhaseLogicSim Phase = "logic_simulate"
	PhaseFaultSim Phase = "fault_simulate"
	PhaseCoverage Phase = "coverage"
)

// EvaluationResult is the Evaluator's verdict on one candidate program
// state. TaT is valid from the logic simulation phase onward, Coverage only
// on full success; the Valid flags track which fields carry data.
type EvaluationResult struct {
	Status        EvalStatus
	Phase         Phase // last phase reached
	TaT           float64
	TaTValid      bool
	Coverage      float64
	CoverageValid bool
	Diagnostic    string
}

// Ok reports whether all phases succeeded and a full measurement exists.
func (r EvaluationResult) Ok() bool { return r.Status == StatusSuccess }

// Measurement returns the (TaT, coverage) pair carried by a successful
// result. The second return is false when either metric is absent.
func (r EvaluationResult) Measurement() (Measurement, bool) {
	if !r.TaTValid || !r.CoverageValid {
		return Measurement{}, false
	}
	return Measurement{TaT: r.TaT, Coverage: r.Coverage}, true
}
