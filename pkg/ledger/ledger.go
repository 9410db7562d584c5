// Package ledger records what has already been archived so later runs can
// skip network work. Two implementations exist: SQLite for persistent runs
// and Nop for stateless runs that rely on on-disk files only.
package ledger

import (
	"context"
	"time"
)

// PostRecord is the stored reconciliation state of one post
type PostRecord struct {
	ID          int64
	Title       string
	FanclubID   int64
	PostedAt    time.Time
	ConvertedAt time.Time
	Complete    bool
	Touched     time.Time
}

// ContentRecord describes one archived content item
type ContentRecord struct {
	ID       int64
	PostID   int64
	Title    string
	Category string
	Price    int64
	Currency string
}

// Ledger is the persistent dedup store. Every method must be safe to call
// on the Nop implementation.
type Ledger interface {
	IsURLDownloaded(ctx context.Context, url string) (bool, error)
	RecordURL(ctx context.Context, url string) error

	// FindPost returns nil, nil when the post has no row
	FindPost(ctx context.Context, id int64) (*PostRecord, error)
	// InsertPost replaces any existing row with an incomplete one
	InsertPost(ctx context.Context, p PostRecord) error
	SetPostComplete(ctx context.Context, id int64, complete bool) error
	UpdatePostConvertedAt(ctx context.Context, id int64, convertedAt time.Time) error

	IsContentDownloaded(ctx context.Context, id int64) (bool, error)
	RecordContent(ctx context.Context, c ContentRecord) error

	// Persistent reports whether state survives the process
	Persistent() bool
	Close() error
}

// Open returns a SQLite ledger at path, or a Nop ledger when path is empty
func Open(ctx context.Context, path string) (Ledger, error) {
	if path == "" {
		return Nop{}, nil
	}
	return OpenSQLite(ctx, path)
}
