package fantia

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
)

const (
	// BaseURL is the site root every endpoint is resolved against
	BaseURL = "https://fantia.jp/"

	mePath               = "/api/v1/me"
	fanclubAPIPath       = "/api/v1/fanclubs/%d"
	followedFanclubsPath = "/api/v1/me/fanclubs"
	paidFanclubsPath     = "/mypage/users/plans"
	fanclubPostsPath     = "/fanclubs/%d/posts"
	postAPIPath          = "/api/v1/posts/%d"
	postPagePath         = "/posts/%d"
	postsPath            = "/posts"
	timelinePath         = "/api/v1/me/timelines/posts"

	// TimelinePageSize is the number of posts the timeline returns per page
	TimelinePageSize = 24
)

// TargetKind is the kind of object a target URL names
type TargetKind string

const (
	TargetFanclub TargetKind = "fanclubs"
	TargetPost    TargetKind = "posts"
)

// Target is a parsed fanclub or post URL
type Target struct {
	Kind TargetKind
	ID   int64
}

var targetRE = regexp.MustCompile(`^https?://(?:www\.)?fantia\.jp/(fanclubs|posts)/([0-9]+)`)

// ParseURL extracts the kind and id from a fanclub or post URL
func ParseURL(raw string) (Target, error) {
	m := targetRE.FindStringSubmatch(raw)
	if m == nil {
		return Target{}, fmt.Errorf("not a fanclub or post URL: %s", raw)
	}
	id, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return Target{}, fmt.Errorf("invalid id in %s: %w", raw, err)
	}
	return Target{Kind: TargetKind(m[1]), ID: id}, nil
}

func (c *Client) endpoint(p string, query url.Values) string {
	u := c.baseURL.ResolveReference(&url.URL{Path: p})
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// MeURL is used to validate the session
func (c *Client) MeURL() string {
	return c.endpoint(mePath, nil)
}

func (c *Client) FanclubAPIURL(id int64) string {
	return c.endpoint(fmt.Sprintf(fanclubAPIPath, id), nil)
}

func (c *Client) FollowedFanclubsURL() string {
	return c.endpoint(followedFanclubsPath, nil)
}

func (c *Client) PaidFanclubsURL(page int) string {
	return c.endpoint(paidFanclubsPath, url.Values{
		"type": {"not_free"},
		"page": {strconv.Itoa(page)},
	})
}

func (c *Client) FanclubPostsURL(id int64, page int) string {
	return c.endpoint(fmt.Sprintf(fanclubPostsPath, id), url.Values{"page": {strconv.Itoa(page)}})
}

func (c *Client) PostAPIURL(id int64) string {
	return c.endpoint(fmt.Sprintf(postAPIPath, id), nil)
}

func (c *Client) PostPageURL(id int64) string {
	return c.endpoint(fmt.Sprintf(postPagePath, id), nil)
}

func (c *Client) TimelineURL(page int) string {
	return c.endpoint(timelinePath, url.Values{
		"page": {strconv.Itoa(page)},
		"per":  {strconv.Itoa(TimelinePageSize)},
	})
}

// ResolveReference resolves ref against the site root
func (c *Client) ResolveReference(ref string) (string, error) {
	return resolve(c.baseURL, ref)
}

// ResolveDownloadURI resolves an attachment download_uri the way the site
// links do, relative to the posts listing.
func (c *Client) ResolveDownloadURI(ref string) (string, error) {
	return resolve(c.baseURL.ResolveReference(&url.URL{Path: postsPath}), ref)
}

func resolve(base *url.URL, ref string) (string, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid reference %q: %w", ref, err)
	}
	return base.ResolveReference(r).String(), nil
}
