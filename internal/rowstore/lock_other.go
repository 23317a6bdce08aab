// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package rowstore

import "os"

// Without flock only writers inside one process are serialized.
func tryLock(*os.File) error { return nil }

func unlock(*os.File) error { return nil }
