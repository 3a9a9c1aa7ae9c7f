// Package state records transform history in SQLite.
//
// Every transform served by the CLI or the HTTP API can be stored with
// the manifest hash it ran against, the input and rewritten SQL, the
// error and the duration. The schema is managed by goose migrations
// embedded in the binary.
package state

import (
	"context"
	"time"
)

// Record is one recorded transform.
type Record struct {
	ID           string
	ManifestHash string
	SQL          string
	Rewritten    string
	Error        string
	Duration     time.Duration
	CreatedAt    time.Time
}

// Failed reports whether the transform returned an error.
func (r *Record) Failed() bool { return r.Error != "" }

// ListOptions filters List.
type ListOptions struct {
	// Limit caps the number of records, newest first. Zero means 50.
	Limit int
	// ManifestHash restricts the records to one manifest.
	ManifestHash string
	// FailedOnly keeps only failed transforms.
	FailedOnly bool
}

// Store persists transform records.
type Store interface {
	Record(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, opts ListOptions) ([]*Record, error)
	Clear(ctx context.Context) (int64, error)
	Close() error
}
