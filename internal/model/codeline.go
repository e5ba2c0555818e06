// Package model defines the data structures for STL compaction.
package model

import (
	"bytes"
	"fmt"
)

// Path represents a file system path.
type Path string

// CodelineID identifies one line of one source file for the whole run.
// File is the index of the file in the run's ordered source list, Line the
// 0-based line number at load time. Neither changes after load; the current
// position of a line is always derived from the ordered non-removed sequence,
// never stored.
type CodelineID struct {
	File int
	Line int
}

func (id CodelineID) String() string {
	return fmt.Sprintf("%d:%d", id.File, id.Line)
}

// Before reports whether id precedes other in the canonical candidate order,
// ascending (File, Line).
func (id CodelineID) Before(other CodelineID) bool {
	if id.File != other.File {
		return id.File < other.File
	}
	return id.Line < other.Line
}

// Codeline is one source line with its removal state. Text is kept verbatim
// as read from disk, without the trailing newline.
type Codeline struct {
	ID      CodelineID
	Text    string
	Removed bool
}

// SourceFile is the ordered line content of one STL source file at load
// time. TrailingNewline records whether the file ended with a newline so a
// full restore renders the original bytes exactly.
type SourceFile struct {
	Path            Path
	Lines           []Codeline
	TrailingNewline bool
}

// Render returns the file content with removed lines elided. Restoring every
// removed line makes Render byte-identical to the loaded file.
func (f *SourceFile) Render() []byte {
	var b bytes.Buffer
	first := true
	for _, line := range f.Lines {
		if line.Removed {
			continue
		}
		if !first {
			b.WriteByte('\n')
		}
		b.WriteString(line.Text)
		first = false
	}
	if !first && f.TrailingNewline {
		b.WriteByte('\n')
	}
	return b.Bytes()
}

// RenderOriginal returns the file content as loaded, ignoring removal state.
func (f *SourceFile) RenderOriginal() []byte {
	var b bytes.Buffer
	for i, line := range f.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line.Text)
	}
	if len(f.Lines) > 0 && f.TrailingNewline {
		b.WriteByte('\n')
	}
	return b.Bytes()
}

// VisibleLines returns how many lines are not removed.
func (f *SourceFile) VisibleLines() int {
	n := 0
	for _, line := range f.Lines {
		if !line.Removed {
			n++
		}
	}
	return n
}

// Segment is a contiguous run of candidate lines within one file, the unit
// of removal for the segment algorithm. IDs are in ascending Line order.
type Segment struct {
	File Path
	IDs  []CodelineID
}

// Dimension returns the number of candidate lines in the segment.
func (s Segment) Dimension() int { return len(s.IDs) }
