package archiver

import (
	"context"

	"fantiadl/pkg/logger"
)

// Paginator collects the post ids of a fanclub listing
type Paginator struct {
	source ListingSource
	out    Output
	logger logger.Logger
}

// NewPaginator creates a paginator over source
func NewPaginator(source ListingSource, out Output, log logger.Logger) *Paginator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Paginator{source: source, out: out, logger: log}
}

// FetchPosts walks the listing from page 1 and returns matching post ids in
// listing order. Without a month every listed post matches.
//
// The walk ends on a page without posts, or on a page that adds no match
// once an earlier page has matched: listings are newest first, so the
// month's posts form one contiguous run.
func (p *Paginator) FetchPosts(ctx context.Context, fanclubID int64, month *Month) ([]int64, error) {
	p.out.Printf("Collecting fanclub posts...\n")

	var all []int64
	found := false
	for page := 1; ; page++ {
		listed, err := p.source.FanclubPostsPage(ctx, fanclubID, page)
		if err != nil {
			return nil, err
		}

		var fresh []int64
		for _, post := range listed {
			if month == nil || month.Contains(post.Date) {
				found = true
				fresh = append(fresh, post.ID)
			}
		}
		all = append(all, fresh...)

		p.logger.DebugWithFields("listing page fetched", map[string]interface{}{
			"fanclub_id": fanclubID,
			"page":       page,
			"listed":     len(listed),
			"matched":    len(fresh),
		})

		if len(listed) == 0 || (len(fresh) == 0 && found) {
			p.out.Printf("Collected %d posts.\n", len(all))
			return all, nil
		}
	}
}

// PaidFanclubs collects the fanclubs backed on a paid plan, page by page
// until a page lists none.
func (p *Paginator) PaidFanclubs(ctx context.Context) ([]int64, error) {
	p.out.Printf("Collecting paid fanclubs...\n")

	var all []int64
	for page := 1; ; page++ {
		ids, err := p.source.PaidFanclubsPage(ctx, page)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			break
		}
		all = append(all, ids...)
	}
	p.out.Printf("Collected %d fanclubs.\n", len(all))
	return all, nil
}

// FollowedFanclubs returns every followed fanclub
func (p *Paginator) FollowedFanclubs(ctx context.Context) ([]int64, error) {
	return p.source.FollowedFanclubs(ctx)
}

// TimelinePosts collects up to limit post ids from the new posts timeline
func (p *Paginator) TimelinePosts(ctx context.Context, limit int) ([]int64, error) {
	var all []int64
	hasNext := true
	for page := 1; hasNext && len(all) < limit; page++ {
		var ids []int64
		var err error
		ids, hasNext, err = p.source.TimelinePage(ctx, page)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if len(all) >= limit {
				break
			}
			all = append(all, id)
		}
		if len(ids) == 0 {
			break
		}
	}
	return all, nil
}
