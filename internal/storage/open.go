// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"path/filepath"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendPebble = "pebble"
	BackendMemory = "memory"
)

// Backends lists the accepted backend names.
var Backends = []string{BackendFile, BackendSQLite, BackendPebble, BackendMemory}

// OpenKV opens the named backend rooted at dir.
func OpenKV(backend, dir string) (KV, error) {
	switch backend {
	case BackendFile, "":
		return NewFileKV(dir)
	case BackendSQLite:
		return NewSQLiteKV(filepath.Join(dir, "chatflow.db"))
	case BackendPebble:
		return NewPebbleKV(filepath.Join(dir, "pebble"))
	case BackendMemory:
		return NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// Open opens the named backend and wraps it in a Store.
func Open(backend, dir string) (*Store, error) {
	kv, err := OpenKV(backend, dir)
	if err != nil {
		return nil, err
	}
	return NewStore(kv), nil
}
