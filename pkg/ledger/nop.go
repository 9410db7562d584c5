package ledger

import (
	"context"
	"time"
)

// Nop remembers nothing
type Nop struct{}

func (Nop) IsURLDownloaded(context.Context, string) (bool, error)         { return false, nil }
func (Nop) RecordURL(context.Context, string) error                       { return nil }
func (Nop) FindPost(context.Context, int64) (*PostRecord, error)          { return nil, nil }
func (Nop) InsertPost(context.Context, PostRecord) error                  { return nil }
func (Nop) SetPostComplete(context.Context, int64, bool) error            { return nil }
func (Nop) UpdatePostConvertedAt(context.Context, int64, time.Time) error { return nil }
func (Nop) IsContentDownloaded(context.Context, int64) (bool, error)      { return false, nil }
func (Nop) RecordContent(context.Context, ContentRecord) error            { return nil }
func (Nop) Persistent() bool                                              { return false }
func (Nop) Close() error                                                  { return nil }
