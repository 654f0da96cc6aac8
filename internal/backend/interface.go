// Package backend selects and assembles the persistence stack.
package backend

import (
	"context"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/amqp"
	"github.com/w97xqz5xm9-sketch/debt-guard/internal/store"
)

// CleanupFunc releases backend resources on shutdown.
type CleanupFunc func() error

// BackendResult contains the assembled store and optional extras.
type BackendResult struct {
	Store store.Store

	// Events is non-nil when AMQP is configured on a sqlite backend.
	Events *amqp.Client

	Cleanup CleanupFunc
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// BackendType represents the type of backend.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
