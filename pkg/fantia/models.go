package fantia

import (
	"encoding/json"
	"fmt"
	"time"

	errs "fantiadl/pkg/errors"
)

// VisibleStatus is the visibility value of content the session may read
const VisibleStatus = "visible"

// Image is an image object with its full size variant
type Image struct {
	Original string `json:"original"`
}

// FanclubSummary is the fanclub embedded in a post
type FanclubSummary struct {
	ID          int64  `json:"id"`
	CreatorName string `json:"creator_name"`
}

// ParentPost is the back reference a content item carries
type ParentPost struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Photo is one gallery photo
type Photo struct {
	ID  int64 `json:"id"`
	URL Image `json:"url"`
}

// Content is one content item of a post as returned by the post API
type Content struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	Category         string     `json:"category"`
	VisibleStatus    string     `json:"visible_status"`
	Comment          string     `json:"comment"`
	Filename         string     `json:"filename"`
	DownloadURI      string     `json:"download_uri"`
	EmbedURL         string     `json:"embed_url"`
	Photos           []Photo    `json:"post_content_photos"`
	ParentPost       ParentPost `json:"parent_post"`
	ForeignPlanPrice float64    `json:"foreign_plan_price"`
	CurrencyCode     string     `json:"currency_code"`
}

// Visible reports whether the current plan grants access
func (c Content) Visible() bool {
	return c.VisibleStatus == VisibleStatus
}

// Post is a hydrated post. Raw keeps the full JSON object for metadata dumps.
type Post struct {
	ID             int64          `json:"id"`
	Title          string         `json:"title"`
	Comment        string         `json:"comment"`
	RawPostedAt    string         `json:"posted_at"`
	RawConvertedAt string         `json:"converted_at"`
	Fanclub        FanclubSummary `json:"fanclub"`
	Thumb          *Image         `json:"thumb"`
	Contents       []Content      `json:"post_contents"`

	PostedAt    time.Time       `json:"-"`
	ConvertedAt time.Time       `json:"-"`
	Raw         json.RawMessage `json:"-"`
}

// Fanclub is the fanclub object of the fanclub API
type Fanclub struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	CreatorName string          `json:"creator_name"`
	Cover       *Image          `json:"cover"`
	Icon        *Image          `json:"icon"`
	Background  json.RawMessage `json:"background"`

	Raw json.RawMessage `json:"-"`
}

// BackgroundURL returns the custom background image, which the API sends as
// a bare string or null.
func (f *Fanclub) BackgroundURL() string {
	var s string
	if err := json.Unmarshal(f.Background, &s); err != nil {
		return ""
	}
	return s
}

// ParsePostResponse decodes the post API envelope {"post": {...}}
func ParsePostResponse(body []byte) (*Post, error) {
	var envelope struct {
		Post json.RawMessage `json:"post"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errs.Wrap(err, errs.ErrorTypeParsing, "invalid post response")
	}
	if len(envelope.Post) == 0 || string(envelope.Post) == "null" {
		return nil, errs.New(errs.ErrorTypeParsing, 0, "post response has no post object")
	}

	var post Post
	if err := json.Unmarshal(envelope.Post, &post); err != nil {
		return nil, errs.Wrap(err, errs.ErrorTypeParsing, "invalid post object")
	}
	post.Raw = envelope.Post

	posted, err := parsePostedAt(post.RawPostedAt)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrorTypeParsing, "post %d has an invalid posted_at", post.ID)
	}
	post.PostedAt = posted
	post.ConvertedAt = posted
	if post.RawConvertedAt != "" {
		converted, err := time.Parse(time.RFC3339, post.RawConvertedAt)
		if err != nil {
			return nil, errs.Wrap(err, errs.ErrorTypeParsing, "post %d has an invalid converted_at", post.ID)
		}
		post.ConvertedAt = converted
	}
	return &post, nil
}

func parsePostedAt(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// ParseFanclubResponse decodes the fanclub API envelope {"fanclub": {...}}.
// Raw holds the whole envelope.
func ParseFanclubResponse(body []byte) (*Fanclub, error) {
	var envelope struct {
		Fanclub *Fanclub `json:"fanclub"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errs.Wrap(err, errs.ErrorTypeParsing, "invalid fanclub response")
	}
	if envelope.Fanclub == nil {
		return nil, errs.New(errs.ErrorTypeParsing, 0, "fanclub response has no fanclub object")
	}
	envelope.Fanclub.Raw = json.RawMessage(body)
	return envelope.Fanclub, nil
}

type followedResponse struct {
	FanclubIDs []int64 `json:"fanclub_ids"`
}

type timelineResponse struct {
	Posts []struct {
		ID int64 `json:"id"`
	} `json:"posts"`
	HasNext bool `json:"has_next"`
}
