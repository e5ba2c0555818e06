// Package domain holds the compaction core: the program model, the removal
// algorithms, and the run workflow.
package domain

import (
	"strings"

	m "stlcrunch.dev/pkg/stlcrunch/internal/model"
)

// Program is the in-memory state of the STL under compaction: every loaded
// line of every source file plus its removal flag. All reads and writes go
// through CodelineIDs assigned at load time, so line identity survives any
// number of removals and restorations.
type Program struct {
	files []m.SourceFile
}

// NewProgram builds a Program over the loaded files. IDs must match the
// position of each line (file index, 0-based line number), which is how the
// source loader assigns them.
func NewProgram(files []m.SourceFile) (*Program, error) {
	for fileIdx := range files {
		for lineIdx := range files[fileIdx].Lines {
			id := files[fileIdx].Lines[lineIdx].ID
			if id.File != fileIdx || id.Line != lineIdx {
				return nil, m.NewConfigurationError("program: codeline id %s does not match position %d:%d", id, fileIdx, lineIdx)
			}
		}
	}

	return &Program{files: files}, nil
}

// Files returns the program's source files in load order.
func (p *Program) Files() []m.SourceFile {
	return p.files
}

// File returns the source file at index.
func (p *Program) File(index int) *m.SourceFile {
	return &p.files[index]
}

// Line returns the codeline behind id.
func (p *Program) Line(id m.CodelineID) (m.Codeline, error) {
	if !p.knows(id) {
		return m.Codeline{}, &m.StateError{Op: "lookup", ID: id}
	}

	return p.files[id.File].Lines[id.Line], nil
}

// Candidates returns the IDs of all removable lines: lines whose leading
// token is a known instruction mnemonic. Labels, directives, comments and
// blank lines never qualify. The order is ascending (file, line) and stable
// across calls.
func (p *Program) Candidates(mnemonics *m.MnemonicSet) []m.CodelineID {
	var ids []m.CodelineID

	for fileIdx := range p.files {
		for lineIdx := range p.files[fileIdx].Lines {
			line := &p.files[fileIdx].Lines[lineIdx]
			if isCandidate(line.Text, mnemonics) {
				ids = append(ids, line.ID)
			}
		}
	}

	return ids
}

// Segments partitions each file's candidate lines into runs of up to
// dimension consecutive candidates. Non-candidate lines between two
// candidates do not break a run; a file's trailing partial run keeps its
// actual length. Segments never span files.
func (p *Program) Segments(mnemonics *m.MnemonicSet, dimension int) []m.Segment {
	var segments []m.Segment

	for fileIdx := range p.files {
		file := &p.files[fileIdx]

		var ids []m.CodelineID

		for lineIdx := range file.Lines {
			if isCandidate(file.Lines[lineIdx].Text, mnemonics) {
				ids = append(ids, file.Lines[lineIdx].ID)
			}
		}

		for start := 0; start < len(ids); start += dimension {
			end := start + dimension
			if end > len(ids) {
				end = len(ids)
			}

			segments = append(segments, m.Segment{File: file.Path, IDs: ids[start:end]})
		}
	}

	return segments
}

// Remove marks every id as removed. Removing an unknown or already removed
// line is a StateError and leaves the program untouched.
func (p *Program) Remove(ids ...m.CodelineID) error {
	for _, id := range ids {
		if !p.knows(id) || p.files[id.File].Lines[id.Line].Removed {
			return &m.StateError{Op: "remove", ID: id}
		}
	}

	for _, id := range ids {
		p.files[id.File].Lines[id.Line].Removed = true
	}

	return nil
}

// Restore clears the removed flag on every id. Restoring an unknown or
// non-removed line is a StateError and leaves the program untouched.
func (p *Program) Restore(ids ...m.CodelineID) error {
	for _, id := range ids {
		if !p.knows(id) || !p.files[id.File].Lines[id.Line].Removed {
			return &m.StateError{Op: "restore", ID: id}
		}
	}

	for _, id := range ids {
		p.files[id.File].Lines[id.Line].Removed = false
	}

	return nil
}

// RemovedCount returns how many lines are currently removed across all
// files.
func (p *Program) RemovedCount() int {
	n := 0

	for fileIdx := range p.files {
		n += len(p.files[fileIdx].Lines) - p.files[fileIdx].VisibleLines()
	}

	return n
}

func (p *Program) knows(id m.CodelineID) bool {
	return id.File >= 0 && id.File < len(p.files) &&
		id.Line >= 0 && id.Line < len(p.files[id.File].Lines)
}

// isCandidate classifies one line by its leading token. The text itself is
// never modified; only the token extraction trims whitespace.
func isCandidate(text string, mnemonics *m.MnemonicSet) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}

	return mnemonics.Contains(fields[0])
}
