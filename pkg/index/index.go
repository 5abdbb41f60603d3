// Package index implements the staging ledger: an append-only text file
// with one "<hash> <path>" record per staged file.
package index

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/odvcencio/snap/pkg/object"
)

// Entry is one staged file.
type Entry struct {
	Hash object.Hash
	Path string
}

// Index is the staging ledger stored at a single file path.
type Index struct {
	path string
}

// New returns an Index backed by the file at path. The file is created on
// the first Append.
func New(path string) *Index {
	return &Index{path: path}
}

// Path returns the ledger file location.
func (ix *Index) Path() string {
	return ix.path
}

// Append writes one record to the end of the ledger. Existing records are
// never rewritten, so staging a path twice leaves two records.
func (ix *Index) Append(e Entry) error {
	if e.Path == "" {
		return fmt.Errorf("index append: empty path")
	}
	if strings.ContainsAny(e.Path, "\r\n") {
		return fmt.Errorf("index append: path %q contains a line break", e.Path)
	}
	if !e.Hash.Valid() {
		return fmt.Errorf("index append %q: invalid hash %q", e.Path, e.Hash)
	}

	f, err := os.OpenFile(ix.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("index append: open: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%s %s\n", e.Hash, e.Path); err != nil {
		f.Close()
		return fmt.Errorf("index append: write: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("index append: close: %w", err)
	}
	return nil
}

// ReadAll returns every well-formed record in append order. Lines that do
// not parse as "<hash> <path>" are skipped. A missing ledger reads as empty.
func (ix *Index) ReadAll() ([]Entry, error) {
	f, err := os.Open(ix.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("index read: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		e, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("index read: %w", err)
	}
	return entries, nil
}

func parseLine(line string) (Entry, bool) {
	hash, path, ok := strings.Cut(strings.TrimRight(line, "\r"), " ")
	if !ok || path == "" {
		return Entry{}, false
	}
	h := object.Hash(hash)
	if !h.Valid() {
		return Entry{}, false
	}
	return Entry{Hash: h, Path: path}, true
}

// Len returns the number of well-formed records.
func (ix *Index) Len() (int, error) {
	entries, err := ix.ReadAll()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Clear truncates the ledger to zero length. The file stays in place.
func (ix *Index) Clear() error {
	f, err := os.OpenFile(ix.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("index clear: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("index clear: close: %w", err)
	}
	return nil
}
