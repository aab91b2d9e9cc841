// Package backend opens the persistence layer named in the configuration.
package backend

import (
	"fmt"

	"spendwise/internal/storage"
)

// BackendType names a store implementation.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// ParseType accepts the values of SPENDWISE_DATA_BACKEND.
func ParseType(s string) (BackendType, error) {
	switch t := BackendType(s); t {
	case SQLiteBackend, MemoryBackend:
		return t, nil
	default:
		return "", fmt.Errorf("unknown data backend %q (want %q or %q)", s, SQLiteBackend, MemoryBackend)
	}
}

// CleanupFunc releases whatever the backend opened.
type CleanupFunc func() error

// BackendResult is an open store plus the function that closes it.
type BackendResult struct {
	Store   storage.Store
	Cleanup CleanupFunc
	// SchemaVersion is the applied migration version; zero for memory.
	SchemaVersion uint
}
