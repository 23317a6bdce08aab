// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

package rowstore

import (
	"context"
	"slices"
	"sync"
)

// Memory is an in-process Table. It is safe for concurrent use.
type Memory struct {
	name    string
	columns []string

	mu   sync.RWMutex
	rows []Row
}

// NewMemory creates an empty in-memory table with the given columns.
func NewMemory(name string, columns ...string) *Memory {
	return &Memory{name: name, columns: slices.Clone(columns)}
}

// Name implements Table.
func (m *Memory) Name() string { return m.name }

// Columns returns the declared columns.
func (m *Memory) Columns() []string { return slices.Clone(m.columns) }

// Scan implements Table.
func (m *Memory) Scan(ctx context.Context) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // context errors pass through unchanged
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return snapshot(m.rows), nil
}

// Append implements Table.
func (m *Memory) Append(ctx context.Context, row Row) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // context errors pass through unchanged
	}
	if err := validateColumns(m.name, m.columns, row); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, normalize(m.columns, row))
	return nil
}

// Update implements Table.
func (m *Memory) Update(ctx context.Context, key Key, row Row) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err //nolint:wrapcheck // context errors pass through unchanged
	}
	if err := validateColumns(m.name, m.columns, row); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return updateRows(m.rows, key, row), nil
}

// Delete implements Table.
func (m *Memory) Delete(ctx context.Context, key Key) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err //nolint:wrapcheck // context errors pass through unchanged
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	m.rows, n = deleteRows(m.rows, key)
	return n, nil
}

var _ Table = (*Memory)(nil)
