package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// FileSource reads a dataset from disk. Files ending in .xlsx are read from
// their first sheet and returned as CSV; anything else is returned as is.
type FileSource struct {
	name string
	path string
}

// NewFileSource creates a FileSource for path.
func NewFileSource(name, path string) *FileSource {
	return &FileSource{name: name, path: path}
}

func (f *FileSource) Name() string { return f.name }

// Path returns the file location.
func (f *FileSource) Path() string { return f.path }

func (f *FileSource) isXLSX() bool {
	return strings.EqualFold(filepath.Ext(f.path), ".xlsx")
}

func (f *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s not found", ErrNoSource, f.path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}

	if f.isXLSX() {
		return XLSXToCSV(data)
	}
	return data, nil
}

// Store replaces the file with body. The write goes to a temporary file in
// the same directory and is renamed into place, so readers never see a
// partial snapshot. Identical content is left untouched and reported as
// ErrNotModified.
func (f *FileSource) Store(body []byte) error {
	if f.isXLSX() {
		return fmt.Errorf("store %s: spreadsheet snapshots are read-only", f.path)
	}

	if existing, err := os.ReadFile(f.path); err == nil && bytes.Equal(existing, body) {
		return ErrNotModified
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(body); err != nil {
		tmp.Close() //nolint:errcheck // write error takes precedence
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// XLSXToCSV converts the first sheet of a workbook into CSV bytes.
func XLSXToCSV(data []byte) ([]byte, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close() //nolint:errcheck // read-only workbook

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("encode sheet %q: %w", sheets[0], err)
	}
	return buf.Bytes(), nil
}
