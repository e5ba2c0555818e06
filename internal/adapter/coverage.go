package adapter

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"stlcrunch.dev/pkg/stlcrunch/internal/formula"
	m "stlcrunch.dev/pkg/stlcrunch/internal/model"
)

// CoverageSource extracts the fault coverage of the last fault simulation
// from the flow's report files. Reports are re-read on every call because
// the flow rewrites them per candidate.
type CoverageSource interface {
	Coverage() (float64, error)
}

// SummaryCellConfig points at one cell of a summary CSV report. Row and
// column are 1-based, matching how simulator reports are usually eyeballed.
type SummaryCellConfig struct {
	Path m.Path
	Row  int
	Col  int
}

type summaryCellSource struct {
	cfg SummaryCellConfig
}

// NewSummaryCellSource builds a CoverageSource reading a single summary
// report cell. A trailing percent sign in the cell is stripped.
func NewSummaryCellSource(cfg SummaryCellConfig) (CoverageSource, error) {
	if cfg.Path == "" {
		return nil, m.NewConfigurationError("coverage: summary report path is required")
	}

	if cfg.Row < 1 || cfg.Col < 1 {
		return nil, m.NewConfigurationError("coverage: summary cell row and column are 1-based, got row=%d col=%d", cfg.Row, cfg.Col)
	}

	return &summaryCellSource{cfg: cfg}, nil
}

func (s *summaryCellSource) Coverage() (float64, error) {
	rows, err := readCSV(s.cfg.Path)
	if err != nil {
		return 0, err
	}

	if s.cfg.Row > len(rows) {
		return 0, fmt.Errorf("coverage: summary %s has %d rows, want row %d", s.cfg.Path, len(rows), s.cfg.Row)
	}

	row := rows[s.cfg.Row-1]
	if s.cfg.Col > len(row) {
		return 0, fmt.Errorf("coverage: summary %s row %d has %d columns, want column %d", s.cfg.Path, s.cfg.Row, len(row), s.cfg.Col)
	}

	cell := strings.TrimSpace(row[s.cfg.Col-1])
	cell = strings.TrimSuffix(cell, "%")

	value, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return 0, fmt.Errorf("coverage: summary cell %d:%d %q is not numeric", s.cfg.Row, s.cfg.Col, row[s.cfg.Col-1])
	}

	return value, nil
}

// StatusFormulaConfig computes coverage from a fault list CSV. The status
// attribute column is tallied per value, optional groups merge statuses
// under a new name, and the expression is evaluated over the counts.
type StatusFormulaConfig struct {
	Path            m.Path
	StatusAttribute string
	Groups          map[string][]string
	Expression      string
}

type statusFormulaSource struct {
	cfg StatusFormulaConfig
}

// NewStatusFormulaSource builds a CoverageSource computing a formula over
// fault status counts. The expression is parsed once up front so malformed
// formulas surface before the first candidate.
func NewStatusFormulaSource(cfg StatusFormulaConfig) (CoverageSource, error) {
	if cfg.Path == "" {
		return nil, m.NewConfigurationError("coverage: fault list path is required")
	}

	if strings.TrimSpace(cfg.StatusAttribute) == "" {
		return nil, m.NewConfigurationError("coverage: status attribute is required")
	}

	if strings.TrimSpace(cfg.Expression) == "" {
		return nil, m.NewConfigurationError("coverage: formula expression is required")
	}

	idents, err := formula.Identifiers(cfg.Expression)
	if err != nil {
		return nil, m.WrapConfigurationError(err, "coverage: bad formula %q", cfg.Expression)
	}

	if len(idents) == 0 {
		// A constant expression never reflects the fault list.
		return nil, m.NewConfigurationError("coverage: formula %q references no status counters", cfg.Expression)
	}

	return &statusFormulaSource{cfg: cfg}, nil
}

func (s *statusFormulaSource) Coverage() (float64, error) {
	rows, err := readCSV(s.cfg.Path)
	if err != nil {
		return 0, err
	}

	if len(rows) == 0 {
		return 0, fmt.Errorf("coverage: fault list %s is empty", s.cfg.Path)
	}

	statusCol := -1

	for i, name := range rows[0] {
		if strings.TrimSpace(name) == s.cfg.StatusAttribute {
			statusCol = i
			break
		}
	}

	if statusCol < 0 {
		return 0, fmt.Errorf("coverage: fault list %s has no %q column", s.cfg.Path, s.cfg.StatusAttribute)
	}

	vars := make(map[string]float64)

	for _, row := range rows[1:] {
		if statusCol >= len(row) {
			continue
		}

		status := strings.TrimSpace(row[statusCol])
		if status == "" {
			continue
		}

		vars[status]++
	}

	for group, members := range s.cfg.Groups {
		var sum float64
		for _, member := range members {
			sum += vars[member]
		}

		vars[group] = sum
	}

	value, err := formula.Eval(s.cfg.Expression, vars)
	if err != nil {
		return 0, fmt.Errorf("coverage: %w", err)
	}

	return value, nil
}

func readCSV(path m.Path) ([][]string, error) {
	f, err := os.Open(string(path))
	if err != nil {
		return nil, fmt.Errorf("coverage: open report %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("coverage: parse report %s: %w", path, err)
	}

	return rows, nil
}
