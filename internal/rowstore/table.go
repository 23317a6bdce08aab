// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

// Package rowstore provides a generic tabular store: named tables of rows with
// string-valued columns, no indexes and no transactions.
//
// Callers scan whole tables and match rows themselves. Update and Delete act on
// every row whose key column equals the given value.
package rowstore

import (
	"context"
	"maps"
	"slices"

	"github.com/samber/oops"
)

// Row is one record keyed by column name.
type Row map[string]string

// Clone returns a copy of r.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	return maps.Clone(r)
}

// Key selects rows whose Column equals Value.
type Key struct {
	Column string
	Value  string
}

// Matches reports whether r is selected by k.
func (k Key) Matches(r Row) bool {
	return r[k.Column] == k.Value
}

// Table is the persistence contract consumed by the credential and token stores.
type Table interface {
	// Name returns the table name.
	Name() string
	// Scan returns a snapshot of every row in insertion order.
	Scan(ctx context.Context) ([]Row, error)
	// Append adds a row at the end of the table.
	Append(ctx context.Context, row Row) error
	// Update merges the columns in row into every row matching key and
	// returns the number of rows changed.
	Update(ctx context.Context, key Key, row Row) (int, error)
	// Delete removes every row matching key and returns the number removed.
	Delete(ctx context.Context, key Key) (int, error)
}

// ErrUnknownColumn is returned when a row names a column the table does not have.
var ErrUnknownColumn = oops.Code("ROWSTORE_UNKNOWN_COLUMN").Errorf("unknown column")

// validateColumns checks that every column of row is declared.
func validateColumns(table string, columns []string, row Row) error {
	for col := range row {
		if !slices.Contains(columns, col) {
			return oops.Code("ROWSTORE_UNKNOWN_COLUMN").
				With("table", table).
				With("column", col).
				Wrap(ErrUnknownColumn)
		}
	}
	return nil
}

// normalize returns a copy of row carrying exactly the declared columns.
func normalize(columns []string, row Row) Row {
	out := make(Row, len(columns))
	for _, col := range columns {
		out[col] = row[col]
	}
	return out
}

// updateRows merges patch into every row matching key, in place.
func updateRows(rows []Row, key Key, patch Row) int {
	n := 0
	for _, r := range rows {
		if !key.Matches(r) {
			continue
		}
		maps.Copy(r, patch)
		n++
	}
	return n
}

// deleteRows removes rows matching key and returns the remaining rows.
func deleteRows(rows []Row, key Key) ([]Row, int) {
	kept := rows[:0]
	removed := 0
	for _, r := range rows {
		if key.Matches(r) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	clear(rows[len(kept):])
	return kept, removed
}

// snapshot deep-copies rows so callers can mutate the result freely.
func snapshot(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}
