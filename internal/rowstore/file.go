// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

package rowstore

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// document is the on-disk layout of a File store.
type document struct {
	Tables map[string][]Row `yaml:"tables"`
}

// File is a set of tables persisted as a single YAML document. Every write
// rewrites the document through a temporary file and a rename, so readers of
// the file never observe a partial write.
//
// Several processes may open the same path. Writes hold an exclusive lock on
// a sibling ".lock" file and apply their change to the document as it is on
// disk at that moment. Reads reload the document whenever the file has been
// replaced since it was last read.
type File struct {
	path     string
	lockPath string

	mu      sync.Mutex
	tables  map[string][]Row
	columns map[string][]string
	loaded  os.FileInfo
}

// OpenFile loads the store at path. A missing file is an empty store; it is
// created on the first write.
func OpenFile(path string) (*File, error) {
	f := &File{
		path:     path,
		lockPath: path + ".lock",
		tables:   make(map[string][]Row),
		columns:  make(map[string][]string),
	}
	tables, info, err := readDocument(path)
	if err != nil {
		return nil, oops.Code("ROWSTORE_OPEN_FAILED").With("path", path).Wrap(err)
	}
	f.tables, f.loaded = tables, info
	return f, nil
}

// Path returns the document location.
func (f *File) Path() string { return f.path }

// Table returns a handle on the named table. Rows already stored keep only
// the declared columns.
func (f *File) Table(name string, columns ...string) *FileTable {
	f.mu.Lock()
	defer f.mu.Unlock()
	cols := slices.Clone(columns)
	f.columns[name] = cols
	if rows, ok := f.tables[name]; ok {
		for i, r := range rows {
			rows[i] = normalize(cols, r)
		}
	}
	return &FileTable{store: f, name: name, columns: cols}
}

// readDocument returns the tables stored at path and the file they were read
// from. A missing file yields no tables and a nil FileInfo.
func readDocument(path string) (map[string][]Row, os.FileInfo, error) {
	tables := make(map[string][]Row)

	fh, err := os.Open(path) //nolint:gosec // path comes from operator configuration
	if errors.Is(err, fs.ErrNotExist) {
		return tables, nil, nil
	}
	if err != nil {
		return nil, nil, err //nolint:wrapcheck // callers attach the store code
	}
	defer func() { _ = fh.Close() }() //nolint:errcheck // read-only handle

	info, err := fh.Stat()
	if err != nil {
		return nil, nil, err //nolint:wrapcheck // callers attach the store code
	}
	data, err := io.ReadAll(fh)
	if err != nil {
		return nil, nil, err //nolint:wrapcheck // callers attach the store code
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, oops.With("operation", "decode document").Wrap(err)
	}
	for name, rows := range doc.Tables {
		tables[name] = rows
	}
	return tables, info, nil
}

// sameFile reports whether a and b describe the same, unmodified document.
func sameFile(a, b os.FileInfo) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return os.SameFile(a, b) && a.ModTime().Equal(b.ModTime()) && a.Size() == b.Size()
}

// adoptLocked replaces the cached tables, keeping declared columns only.
func (f *File) adoptLocked(tables map[string][]Row, info os.FileInfo) {
	for name, cols := range f.columns {
		rows := tables[name]
		for i, r := range rows {
			rows[i] = normalize(cols, r)
		}
	}
	f.tables, f.loaded = tables, info
}

// refreshLocked reloads the document if another writer replaced it.
func (f *File) refreshLocked() error {
	info, err := os.Stat(f.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		info = nil
	case err != nil:
		return oops.Code("ROWSTORE_READ_FAILED").With("path", f.path).Wrap(err)
	}
	if sameFile(info, f.loaded) {
		return nil
	}

	tables, info, err := readDocument(f.path)
	if err != nil {
		return oops.Code("ROWSTORE_READ_FAILED").With("path", f.path).Wrap(err)
	}
	f.adoptLocked(tables, info)
	return nil
}

// mutate applies fn to the named table as currently stored on disk and
// persists the result. The in-memory state only changes once the document is
// written.
func (f *File) mutate(ctx context.Context, name string, fn func(rows []Row) ([]Row, int)) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	unlock, err := lockPath(ctx, f.lockPath)
	if err != nil {
		return 0, err
	}
	defer unlock()

	tables, info, err := readDocument(f.path)
	if err != nil {
		return 0, oops.Code("ROWSTORE_READ_FAILED").With("path", f.path).Wrap(err)
	}
	f.adoptLocked(tables, info)

	rows, n := fn(snapshot(f.tables[name]))
	if n == 0 {
		return 0, nil
	}

	next := make(map[string][]Row, len(f.tables)+1)
	for k, v := range f.tables {
		next[k] = v
	}
	next[name] = rows

	if err := f.writeLocked(next); err != nil {
		return 0, err
	}
	written, err := os.Stat(f.path)
	if err != nil {
		written = nil
	}
	f.tables, f.loaded = next, written
	return n, nil
}

func (f *File) writeLocked(tables map[string][]Row) error {
	data, err := yaml.Marshal(document{Tables: tables})
	if err != nil {
		return oops.Code("ROWSTORE_WRITE_FAILED").With("operation", "encode document").Wrap(err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return oops.Code("ROWSTORE_WRITE_FAILED").With("path", f.path).Wrap(err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() //nolint:errcheck // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close() //nolint:errcheck // write error takes precedence
		return oops.Code("ROWSTORE_WRITE_FAILED").With("path", tmpName).Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return oops.Code("ROWSTORE_WRITE_FAILED").With("path", tmpName).Wrap(err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return oops.Code("ROWSTORE_WRITE_FAILED").With("path", f.path).Wrap(err)
	}
	return nil
}

// FileTable is one table of a File store.
type FileTable struct {
	store   *File
	name    string
	columns []string
}

// Name implements Table.
func (t *FileTable) Name() string { return t.name }

// Scan implements Table.
func (t *FileTable) Scan(ctx context.Context) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // context errors pass through unchanged
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if err := t.store.refreshLocked(); err != nil {
		return nil, err
	}
	return snapshot(t.store.tables[t.name]), nil
}

// Append implements Table.
func (t *FileTable) Append(ctx context.Context, row Row) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // context errors pass through unchanged
	}
	if err := validateColumns(t.name, t.columns, row); err != nil {
		return err
	}
	_, err := t.store.mutate(ctx, t.name, func(rows []Row) ([]Row, int) {
		return append(rows, normalize(t.columns, row)), 1
	})
	return err
}

// Update implements Table.
func (t *FileTable) Update(ctx context.Context, key Key, row Row) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err //nolint:wrapcheck // context errors pass through unchanged
	}
	if err := validateColumns(t.name, t.columns, row); err != nil {
		return 0, err
	}
	return t.store.mutate(ctx, t.name, func(rows []Row) ([]Row, int) {
		return rows, updateRows(rows, key, row)
	})
}

// Delete implements Table.
func (t *FileTable) Delete(ctx context.Context, key Key) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err //nolint:wrapcheck // context errors pass through unchanged
	}
	return t.store.mutate(ctx, t.name, deleteFunc(key))
}

func deleteFunc(key Key) func([]Row) ([]Row, int) {
	return func(rows []Row) ([]Row, int) {
		return deleteRows(rows, key)
	}
}

var _ Table = (*FileTable)(nil)
