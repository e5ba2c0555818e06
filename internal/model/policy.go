package model

import "strings"

// AcceptancePolicy selects how a candidate measurement is judged against the
// run's accounting.
type AcceptancePolicy string

const (
	// PolicyMaximize accepts only Pareto improvements over current best.
	PolicyMaximize AcceptancePolicy = "maximize"
	// PolicyThreshold accepts any TaT not above current best while coverage
	// stays at or above the baseline.
	PolicyThreshold AcceptancePolicy = "threshold"
)

// ParseAcceptancePolicy maps a config string to a policy. Input is
// case-insensitive.
func ParseAcceptancePolicy(s string) (AcceptancePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(PolicyMaximize):
		return PolicyMaximize, nil
	case string(PolicyThreshold):
		return PolicyThreshold, nil
	default:
		return "", NewConfigurationError("unknown acceptance policy %q (want maximize or threshold)", s)
	}
}

// RestorationOrder selects the order in which a rejected segment's lines are
// restored one by one.
type RestorationOrder string

const (
	// RestoreForward restores in ascending original line order.
	RestoreForward RestorationOrder = "F"
	// RestoreBackward restores in descending original line order.
	RestoreBackward RestorationOrder = "B"
	// RestoreRandom restores in a permutation drawn from a seeded generator.
	RestoreRandom RestorationOrder = "R"
)

// ParseRestorationOrder maps a config string to an order. Input is
// case-insensitive.
func ParseRestorationOrder(s string) (RestorationOrder, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(RestoreForward):
		return RestoreForward, nil
	case string(RestoreBackward):
		return RestoreBackward, nil
	case string(RestoreRandom):
		return RestoreRandom, nil
	default:
		return "", NewConfigurationError("unknown restoration order %q (want F, B or R)", s)
	}
}

// Algorithm selects the compaction search strategy.
type Algorithm string

const (
	// AlgorithmA0 removes one candidate line at a time.
	AlgorithmA0 Algorithm = "a0"
	// AlgorithmA1xx removes fixed-size segments with partial restoration.
	AlgorithmA1xx Algorithm = "a1xx"
)

// ParseAlgorithm maps a config string to an algorithm. Input is
// case-insensitive.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(AlgorithmA0):
		return AlgorithmA0, nil
	case string(AlgorithmA1xx):
		return AlgorithmA1xx, nil
	default:
		return "", NewConfigurationError("unknown algorithm %q (want a0 or a1xx)", s)
	}
}
