package model

import "time"

// FileSummary is the before/after accounting for one source file.
type FileSummary struct {
	Path          Path   `yaml:"path"`
	OriginalLines int    `yaml:"original_lines"`
	FinalLines    int    `yaml:"final_lines"`
	RemovedLines  int    `yaml:"removed_lines"`
	Diff          string `yaml:"diff,omitempty"`
}

// RunSummary is the durable description of one compaction run, serialized as
// YAML next to the stats log.
type RunSummary struct {
	RunID      string    `yaml:"run_id"`
	Algorithm  Algorithm `yaml:"algorithm"`
	Policy     string    `yaml:"policy"`
	StartedAt  time.Time `yaml:"started_at"`
	FinishedAt time.Time `yaml:"finished_at"`

	BaselineTaT      float64 `yaml:"baseline_tat"`
	BaselineCoverage float64 `yaml:"baseline_coverage"`
	BestTaT          float64 `yaml:"best_tat"`
	BestCoverage     float64 `yaml:"best_coverage"`

	Candidates int `yaml:"candidates"`
	Kept       int `yaml:"kept"`
	Restored   int `yaml:"restored"`
	Errors     int `yaml:"errors"`

	Aborted     bool   `yaml:"aborted"`
	AbortReason string `yaml:"abort_reason,omitempty"`

	Files []FileSummary `yaml:"files"`
}
