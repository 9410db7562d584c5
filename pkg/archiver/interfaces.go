package archiver

import (
	"context"

	"fantiadl/internal/downloader"
	"fantiadl/pkg/fantia"
)

// ListingSource yields the paginated listings of the platform
type ListingSource interface {
	FanclubPostsPage(ctx context.Context, fanclubID int64, page int) ([]fantia.ListedPost, error)
	PaidFanclubsPage(ctx context.Context, page int) ([]int64, error)
	FollowedFanclubs(ctx context.Context) ([]int64, error)
	TimelinePage(ctx context.Context, page int) ([]int64, bool, error)
}

// Platform defines the platform operations the archiver uses
type Platform interface {
	ListingSource
	FetchPost(ctx context.Context, id int64) (*fantia.Post, error)
	FetchFanclub(ctx context.Context, id int64) (*fantia.Fanclub, error)
	Classify(content fantia.Content) (fantia.Payload, error)
}

// Fetcher retrieves single files
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, target string, useServerName bool) (downloader.Outcome, string, error)
	ProbeExtension(ctx context.Context, rawURL string) (string, error)
}

// Output receives the human readable lines of a run
type Output interface {
	Printf(format string, args ...interface{})
}

var (
	_ Platform = (*fantia.Client)(nil)
	_ Fetcher  = (*downloader.Engine)(nil)
)
