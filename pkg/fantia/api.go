package fantia

import (
	"context"
	"net/http"
)

// FetchPost loads a post. The JSON API only answers with the csrf token of
// the post's HTML page, so this is two requests.
func (c *Client) FetchPost(ctx context.Context, id int64) (*Post, error) {
	doc, err := c.GetDocument(ctx, c.PostPageURL(id))
	if err != nil {
		return nil, err
	}
	token, err := ParseCSRFToken(doc)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("X-CSRF-Token", token)
	header.Set("X-Requested-With", "XMLHttpRequest")
	body, err := c.GetBody(ctx, c.PostAPIURL(id), header)
	if err != nil {
		return nil, err
	}
	return ParsePostResponse(body)
}

// FetchFanclub loads fanclub metadata
func (c *Client) FetchFanclub(ctx context.Context, id int64) (*Fanclub, error) {
	body, err := c.GetBody(ctx, c.FanclubAPIURL(id), nil)
	if err != nil {
		return nil, err
	}
	return ParseFanclubResponse(body)
}

// FanclubPostsPage returns the posts listed on one page of a fanclub
func (c *Client) FanclubPostsPage(ctx context.Context, fanclubID int64, page int) ([]ListedPost, error) {
	doc, err := c.GetDocument(ctx, c.FanclubPostsURL(fanclubID, page))
	if err != nil {
		return nil, err
	}
	return ParseListingPage(doc)
}

// PaidFanclubsPage returns the fanclub ids on one page of paid plans
func (c *Client) PaidFanclubsPage(ctx context.Context, page int) ([]int64, error) {
	doc, err := c.GetDocument(ctx, c.PaidFanclubsURL(page))
	if err != nil {
		return nil, err
	}
	return ParsePaidFanclubs(doc), nil
}

// FollowedFanclubs returns the ids of every followed fanclub
func (c *Client) FollowedFanclubs(ctx context.Context) ([]int64, error) {
	var resp followedResponse
	if err := c.GetJSON(ctx, c.FollowedFanclubsURL(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.FanclubIDs, nil
}

// TimelinePage returns the post ids of one page of the new posts timeline
func (c *Client) TimelinePage(ctx context.Context, page int) ([]int64, bool, error) {
	var resp timelineResponse
	if err := c.GetJSON(ctx, c.TimelineURL(page), nil, &resp); err != nil {
		return nil, false, err
	}
	ids := make([]int64, 0, len(resp.Posts))
	for _, p := range resp.Posts {
		ids = append(ids, p.ID)
	}
	return ids, resp.HasNext, nil
}
