// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

// Package tabular implements auth.CredentialStore and auth.TokenStore over
// rowstore tables. Every lookup is a full scan of the table.
package tabular

import "github.com/tradejournal/tradejournal/internal/rowstore"

// NewMemory returns stores backed by fresh in-memory tables.
func NewMemory() (*CredentialStore, *TokenStore) {
	return NewCredentialStore(rowstore.NewMemory(UserTable, UserColumns...)),
		NewTokenStore(rowstore.NewMemory(TokenTable, TokenColumns...))
}

// NewFile returns stores backed by the user and token tables of f.
func NewFile(f *rowstore.File) (*CredentialStore, *TokenStore) {
	return NewCredentialStore(f.Table(UserTable, UserColumns...)),
		NewTokenStore(f.Table(TokenTable, TokenColumns...))
}
