package fantia

import (
	"strconv"
	"strings"
	"time"

	errs "fantiadl/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

// ListingDateLayout is the date format of the fanclub post listing
const ListingDateLayout = "2006-01-02 15:04"

// Listing dates are shown in Japan time
var listingLocation = time.FixedZone("JST", 9*60*60)

// ListedPost is one entry of a fanclub listing page. Date is zero when the
// page did not show a parsable date.
type ListedPost struct {
	ID   int64
	Date time.Time
}

// ParseListingPage extracts the posts of one fanclub listing page in page order
func ParseListingPage(doc *goquery.Document) ([]ListedPost, error) {
	var (
		posts []ListedPost
		err   error
	)
	doc.Find("div.post").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Find("a.link-block").First().Attr("href")
		if !ok {
			return true
		}
		id, convErr := parseIDPath(href, "/posts/")
		if convErr != nil {
			err = errs.Wrap(convErr, errs.ErrorTypeParsing, "unexpected post link %q", href)
			return false
		}

		dateSel := s.Find(".post-date .mr-5").First()
		if dateSel.Length() == 0 {
			dateSel = s.Find(".post-date").First()
		}
		date, _ := time.ParseInLocation(ListingDateLayout, strings.TrimSpace(dateSel.Text()), listingLocation)

		posts = append(posts, ListedPost{ID: id, Date: date})
		return true
	})
	return posts, err
}

// ParseCSRFToken reads the csrf-token meta tag of a post page
func ParseCSRFToken(doc *goquery.Document) (string, error) {
	token, ok := doc.Find(`meta[name="csrf-token"]`).First().Attr("content")
	if !ok || token == "" {
		return "", errs.New(errs.ErrorTypeParsing, 0, "post page has no csrf token")
	}
	return token, nil
}

// ParsePaidFanclubs extracts the fanclub ids of a paid plans page
func ParsePaidFanclubs(doc *goquery.Document) []int64 {
	var ids []int64
	doc.Find(`div.mb-5-children > div:nth-of-type(1) a[href^="/fanclubs"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if id, err := parseIDPath(href, "/fanclubs/"); err == nil {
			ids = append(ids, id)
		}
	})
	return ids
}

func parseIDPath(href, prefix string) (int64, error) {
	rest := strings.TrimPrefix(href, prefix)
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return strconv.ParseInt(rest, 10, 64)
}
