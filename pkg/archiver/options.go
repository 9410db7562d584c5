package archiver

import (
	"fmt"
	"time"
)

// MonthLayout is the textual form of a month filter
const MonthLayout = "2006-01"

// Month restricts fanclub listings to posts of one calendar month
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth parses "YYYY-MM". An empty string means no filter.
func ParseMonth(s string) (*Month, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid month %q, expected YYYY-MM", s)
	}
	return &Month{Year: t.Year(), Month: t.Month()}, nil
}

// Contains reports whether t falls in the month, in t's own location
func (m Month) Contains(t time.Time) bool {
	return !t.IsZero() && t.Year() == m.Year && t.Month() == m.Month
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Options is the immutable behaviour of one run
type Options struct {
	// Limit caps the posts downloaded per fanclub; 0 means all
	Limit              int
	DumpMetadata       bool
	ParseExternalLinks bool
	DownloadThumbnail  bool
	UseServerFilenames bool
	MarkIncomplete     bool
	ContinueOnError    bool
	// BypassPostCheck skips posts the ledger marks complete without
	// asking the platform whether they changed
	BypassPostCheck bool
	Month           *Month
}

// DefaultNewPostsLimit is the number of timeline posts fetched when no
// limit is given
const DefaultNewPostsLimit = 24
