package adapter

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	m "stlcrunch.dev/pkg/stlcrunch/internal/model"
)

// StatsWriter streams the per-candidate accounting of a run. One row per
// evaluator-measured program state, flushed as it happens so a crashed run
// still leaves a usable log.
type StatsWriter interface {
	// Open creates the stats file and writes the header. sources appear in
	// every row so the log is self-describing.
	Open(path m.Path, sources []m.Path) error

	// Baseline records the measurement of the unmodified program.
	Baseline(measurement m.Measurement) error

	// Record appends one decision row.
	Record(decision m.Decision) error

	// Close flushes and closes the stats file.
	Close() error
}

var statsHeader = []string{
	"asm_sources",
	"removed_unit",
	"compiles",
	"lsim_ok",
	"tat",
	"fsim_ok",
	"coverage",
	"verdict",
}

// CSVStats is the file-backed StatsWriter.
type CSVStats struct {
	file    *os.File
	writer  *csv.Writer
	sources string
}

// NewCSVStats constructs an unopened CSVStats.
func NewCSVStats() *CSVStats {
	return &CSVStats{}
}

// Open creates path and writes the header row.
func (s *CSVStats) Open(path m.Path, sources []m.Path) error {
	if s.file != nil {
		return fmt.Errorf("stats: already open")
	}

	f, err := os.Create(string(path))
	if err != nil {
		return fmt.Errorf("stats: create %s: %w", path, err)
	}

	parts := make([]string, 0, len(sources))
	for _, src := range sources {
		parts = append(parts, string(src))
	}

	s.file = f
	s.writer = csv.NewWriter(f)
	s.sources = strings.Join(parts, " ")

	return s.append(statsHeader)
}

// Baseline writes the row for the unmodified program.
func (s *CSVStats) Baseline(measurement m.Measurement) error {
	return s.append([]string{
		s.sources,
		"-",
		"yes",
		"yes",
		formatMetric(measurement.TaT, true),
		"yes",
		formatMetric(measurement.Coverage, true),
		"baseline",
	})
}

// Record writes one decision row. Metrics a failed phase never produced are
// written as "-".
func (s *CSVStats) Record(decision m.Decision) error {
	r := decision.Result

	return s.append([]string{
		s.sources,
		decision.Unit.String(),
		phaseVerdict(r, m.PhaseCompile),
		phaseVerdict(r, m.PhaseLogicSim),
		formatMetric(r.TaT, r.TaTValid),
		phaseVerdict(r, m.PhaseFaultSim),
		formatMetric(r.Coverage, r.CoverageValid),
		string(decision.Action),
	})
}

// Close flushes pending rows and closes the file.
func (s *CSVStats) Close() error {
	if s.file == nil {
		return nil
	}

	s.writer.Flush()
	flushErr := s.writer.Error()

	closeErr := s.file.Close()
	s.file = nil
	s.writer = nil

	if flushErr != nil {
		return fmt.Errorf("stats: flush: %w", flushErr)
	}

	if closeErr != nil {
		return fmt.Errorf("stats: close: %w", closeErr)
	}

	return nil
}

func (s *CSVStats) append(row []string) error {
	if s.writer == nil {
		return fmt.Errorf("stats: not open")
	}

	if err := s.writer.Write(row); err != nil {
		return fmt.Errorf("stats: write row: %w", err)
	}

	// Flush per row: the log must survive an aborted run.
	s.writer.Flush()

	if err := s.writer.Error(); err != nil {
		return fmt.Errorf("stats: flush row: %w", err)
	}

	return nil
}

// phaseVerdict reports how far the result got relative to phase: "yes" when
// the phase was passed, "no"/"timeout" when it failed there, "-" when the
// flow never reached it.
func phaseVerdict(r m.EvaluationResult, phase m.Phase) string {
	if r.Ok() {
		return "yes"
	}

	order := map[m.Phase]int{
		m.PhaseCompile:  0,
		m.PhaseLogicSim: 1,
		m.PhaseFaultSim: 2,
		m.PhaseCoverage: 3,
	}

	reached, failed := order[phase], order[r.Phase]

	switch {
	case reached < failed:
		return "yes"
	case reached > failed:
		return "-"
	case r.Status == m.StatusTimeout:
		return "timeout"
	default:
		return "no"
	}
}

func formatMetric(v float64, valid bool) string {
	if !valid {
		return "-"
	}

	return strconv.FormatFloat(v, 'g', -1, 64)
}
