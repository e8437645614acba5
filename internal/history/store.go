// Package history keeps a ledger of page builds in SQLite.
package history

import (
	"context"
	"time"
)

// Status values of a recorded build.
const (
	StatusSuccess  = "success"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
)

// Entry is one build of a page.
type Entry struct {
	ID         int64
	BuildID    string
	Page       string
	Version    string
	Timestamp  string
	Status     string
	StartedAt  time.Time
	DurationMS int64
	Error      string
}

// Stats summarizes the recorded builds of a page.
type Stats struct {
	Total       int
	Succeeded   int
	Failed      int
	Canceled    int
	LastSuccess *Entry
}

// Store persists and queries build entries.
type Store interface {
	// Record appends an entry. ID is assigned by the store.
	Record(ctx context.Context, e Entry) error

	// Recent returns up to limit entries of page, newest first.
	Recent(ctx context.Context, page string, limit int) ([]Entry, error)

	// Stats summarizes every entry of page.
	Stats(ctx context.Context, page string) (Stats, error)

	// Close releases the store.
	Close() error
}
