package archiver

import (
	"context"
	"fmt"
	"strconv"

	"fantiadl/pkg/fantia"
)

// Resolver hydrates posts and classifies their content
type Resolver struct {
	platform Platform
}

// NewResolver creates a resolver
func NewResolver(platform Platform) *Resolver {
	return &Resolver{platform: platform}
}

// ResolvePost fetches a post with all of its content items
func (r *Resolver) ResolvePost(ctx context.Context, postID int64) (*fantia.Post, error) {
	return r.platform.FetchPost(ctx, postID)
}

// Classify returns the typed payload of a content item
func (r *Resolver) Classify(content fantia.Content) (fantia.Payload, error) {
	return r.platform.Classify(content)
}

// ContentTitles returns one display title per content item, in order. A
// missing title falls back to the parent post title, then to the id;
// repeated titles get _2, _3, ... suffixes.
func ContentTitles(post *fantia.Post) []string {
	titles := make([]string, 0, len(post.Contents))
	seen := make(map[string]bool, len(post.Contents))
	for _, c := range post.Contents {
		candidate := c.Title
		if candidate == "" {
			candidate = c.ParentPost.Title
		}
		if candidate == "" {
			candidate = strconv.FormatInt(c.ID, 10)
		}

		title := candidate
		for n := 2; seen[title]; n++ {
			title = fmt.Sprintf("%s_%d", candidate, n)
		}
		seen[title] = true
		titles = append(titles, title)
	}
	return titles
}
