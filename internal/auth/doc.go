// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

// Package auth authenticates TradeJournal users and manages their session tokens.
//
// # Domain Types
//
//   - User - an employee credential record (role, status, password hash, rotation flags)
//   - Token - an opaque session credential, at most one per user, revoked only explicitly
//   - Session - a verified token paired with its user for the duration of one request
//
// # Collaborators
//
// CredentialStore and TokenStore are the persistence contracts. The tabular
// subpackage implements them over a rowstore.Table with linear scans; the
// postgres subpackage implements them over indexed tables.
//
// # Services
//
//   - Hasher - deterministic SHA-256 password derivation and verification
//   - Service - login, logout, forced password change, password reset
//   - AccessGate - bearer-token authentication and account-level authorization
//
// Services are created with constructors that validate their dependencies.
package auth
