// Package adapter contains infrastructure adapters for the stlcrunch CLI.
package adapter

import (
	"archive/zip"
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	m "stlcrunch.dev/pkg/stlcrunch/internal/model"
)

// SourceFS abstracts the filesystem operations the compaction core relies
// on: loading STL sources and mnemonic files, rewriting candidate programs
// in place, and archiving the originals before the first mutation. It hides
// direct `os` access so the workflow logic can be tested without touching
// the disk layout of a real simulation flow.
type SourceFS interface {
	// LoadSources reads each STL file verbatim and splits it into codelines.
	// Codeline IDs are assigned from the position in paths and the 0-based
	// line number at load time.
	LoadSources(paths []m.Path) ([]m.SourceFile, error)

	// LoadMnemonics reads an instruction mnemonic file: one token per line,
	// '#' starts a comment line, blank lines are skipped. A line holding
	// more than one token is a configuration error.
	LoadMnemonics(path m.Path) (*m.MnemonicSet, error)

	// WriteFileAtomic replaces the file at path with content. The write goes
	// through a temporary file in the same directory followed by a rename,
	// so an external flow never observes a half-written program.
	WriteFileAtomic(path m.Path, content []byte) error

	// EnsureDir creates the directory and any missing parents.
	EnsureDir(path m.Path) error

	// BackupZip archives the given files into a zip at archive, storing each
	// entry under its base name.
	BackupZip(archive m.Path, sources []m.Path) error
}

// LocalSourceFS is the disk-backed SourceFS implementation.
type LocalSourceFS struct{}

// NewLocalSourceFS constructs a LocalSourceFS ready to be wired into the
// workflow.
func NewLocalSourceFS() *LocalSourceFS {
	return &LocalSourceFS{}
}

// LoadSources reads every path into an m.SourceFile, keeping line text
// verbatim and recording whether the file ended with a newline.
func (a *LocalSourceFS) LoadSources(paths []m.Path) ([]m.SourceFile, error) {
	files := make([]m.SourceFile, 0, len(paths))

	for fileIdx, path := range paths {
		data, err := os.ReadFile(string(path))
		if err != nil {
			return nil, m.WrapConfigurationError(err, "read source %s", path)
		}

		files = append(files, splitSource(fileIdx, path, data))
	}

	return files, nil
}

func splitSource(fileIdx int, path m.Path, data []byte) m.SourceFile {
	file := m.SourceFile{Path: path}
	if len(data) == 0 {
		return file
	}

	text := string(data)
	file.TrailingNewline = strings.HasSuffix(text, "\n")
	if file.TrailingNewline {
		text = text[:len(text)-1]
	}

	raw := strings.Split(text, "\n")
	file.Lines = make([]m.Codeline, 0, len(raw))

	for lineno, lineText := range raw {
		file.Lines = append(file.Lines, m.Codeline{
			ID:   m.CodelineID{File: fileIdx, Line: lineno},
			Text: lineText,
		})
	}

	return file
}

// LoadMnemonics parses the ISA mnemonic file into a set.
func (a *LocalSourceFS) LoadMnemonics(path m.Path) (*m.MnemonicSet, error) {
	f, err := os.Open(string(path))
	if err != nil {
		return nil, m.WrapConfigurationError(err, "open mnemonics %s", path)
	}
	defer f.Close()

	var tokens []string

	scanner := bufio.NewScanner(f)
	lineno := 0

	for scanner.Scan() {
		lineno++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 1 {
			return nil, m.NewConfigurationError("mnemonics %s:%d: want one token per line, got %d", path, lineno, len(fields))
		}

		tokens = append(tokens, fields[0])
	}

	if err := scanner.Err(); err != nil {
		return nil, m.WrapConfigurationError(err, "read mnemonics %s", path)
	}

	if len(tokens) == 0 {
		return nil, m.NewConfigurationError("mnemonics %s holds no tokens", path)
	}

	return m.NewMnemonicSet(tokens), nil
}

// WriteFileAtomic writes content to a temp file next to path, fsyncs it and
// renames it over the target.
func (a *LocalSourceFS) WriteFileAtomic(path m.Path, content []byte) error {
	dir := filepath.Dir(string(path))

	tmp, err := os.CreateTemp(dir, filepath.Base(string(path))+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("write temp for %s: %w", path, err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("sync temp for %s: %w", path, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", path, err)
	}

	if err := os.Rename(tmpName, string(path)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp over %s: %w", path, err)
	}

	return nil
}

// EnsureDir creates path and any missing parents.
func (a *LocalSourceFS) EnsureDir(path m.Path) error {
	return os.MkdirAll(string(path), 0o750)
}

// BackupZip archives sources into a zip file at archive.
func (a *LocalSourceFS) BackupZip(archive m.Path, sources []m.Path) error {
	out, err := os.Create(string(archive))
	if err != nil {
		return fmt.Errorf("create backup %s: %w", archive, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	for _, src := range sources {
		if err := addZipEntry(zw, src); err != nil {
			zw.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize backup %s: %w", archive, err)
	}

	return out.Sync()
}

func addZipEntry(zw *zip.Writer, src m.Path) error {
	f, err := os.Open(string(src))
	if err != nil {
		return fmt.Errorf("open %s for backup: %w", src, err)
	}
	defer f.Close()

	entry, err := zw.Create(filepath.Base(string(src)))
	if err != nil {
		return fmt.Errorf("add %s to backup: %w", src, err)
	}

	if _, err := io.Copy(entry, f); err != nil {
		return fmt.Errorf("copy %s into backup: %w", src, err)
	}

	return nil
}
