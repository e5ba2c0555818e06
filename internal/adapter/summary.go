package adapter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"

	m "stlcrunch.dev/pkg/stlcrunch/internal/model"
)

// SummaryFileName is the run summary artifact written into each run
// directory.
const SummaryFileName = "summary.yaml"

// SummaryStore persists the durable description of a finished run.
type SummaryStore interface {
	Save(dir m.Path, summary *m.RunSummary) error
	Load(dir m.Path) (*m.RunSummary, error)
}

// YAMLSummaryStore writes the run summary as YAML.
type YAMLSummaryStore struct{}

// NewYAMLSummaryStore constructs a YAMLSummaryStore.
func NewYAMLSummaryStore() *YAMLSummaryStore {
	return &YAMLSummaryStore{}
}

// Save marshals summary into dir/summary.yaml.
func (s *YAMLSummaryStore) Save(dir m.Path, summary *m.RunSummary) error {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("summary: marshal: %w", err)
	}

	path := filepath.Join(string(dir), SummaryFileName)

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("summary: write %s: %w", path, err)
	}

	return nil
}

// Load reads dir/summary.yaml back.
func (s *YAMLSummaryStore) Load(dir m.Path) (*m.RunSummary, error) {
	path := filepath.Join(string(dir), SummaryFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("summary: read %s: %w", path, err)
	}

	var summary m.RunSummary
	if err := yaml.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("summary: parse %s: %w", path, err)
	}

	return &summary, nil
}

// RenderDiff produces a unified diff between the original and compacted
// content of one source file.
func RenderDiff(path m.Path, original, compacted []byte) (string, error) {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(original)),
		B:        difflib.SplitLines(string(compacted)),
		FromFile: string(path),
		ToFile:   string(path) + " (compacted)",
		Context:  3,
	})
	if err != nil {
		return "", fmt.Errorf("summary: diff %s: %w", path, err)
	}

	return diff, nil
}
