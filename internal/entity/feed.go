package entity

import (
	"fmt"
	"time"
)

// FeedStatus defines refresh eligibility of the feed
type FeedStatus string

const (
	FeedStatusActive    FeedStatus = "active"
	FeedStatusCompleted FeedStatus = "completed"
	FeedStatusSuspended FeedStatus = "suspended"
	FeedStatusBroken    FeedStatus = "broken"
)

// FeedFormat is the syndication format observed on the last successful parse
type FeedFormat string

const (
	FeedFormatRSS  FeedFormat = "rss"
	FeedFormatAtom FeedFormat = "atom"
	FeedFormatJSON FeedFormat = "json"
)

// FeedFormatFromContentType maps the first Content-Type token (without parameters)
// to a feed format. Unknown types return false.
func FeedFormatFromContentType(contentType string) (FeedFormat, bool) {
	switch contentType {
	case "application/rss+xml", "application/rss", "text/xml", "text/rss+xml":
		return FeedFormatRSS, true
	case "application/atom+xml", "application/atom", "text/atom+xml", "text/atom":
		return FeedFormatAtom, true
	case "application/json", "text/json":
		return FeedFormatJSON, true
	default:
		return "", false
	}
}

// FeedItemEnclosure is an attached media file of a feed item (image, audio etc)
type FeedItemEnclosure struct {
	URL      string `json:"url"`
	Length   int32  `json:"length"`
	MimeType string `json:"mime_type"`
}

// Feed defines single feed record. The feed can be RSS, Atom or JSON Feed,
// the format only records the last observed kind.
// swagger:model
type Feed struct {
	ID     int64      `json:"id"`
	Status FeedStatus `json:"status"`
	Format FeedFormat `json:"format"`
	// URL of the feed that is actually polled
	Link   string  `json:"link"`
	Domain *string `json:"domain"`

	Title       string  `json:"title"`
	Description string  `json:"description"`
	Icon        *string `json:"icon"`
	Language    *string `json:"language"`

	// Publisher declared blackout windows, persisted but not used for scheduling
	SkipHours      []int32 `json:"skip_hours"`
	SkipDaysOfWeek []int32 `json:"skip_days_of_week"`
	// Publisher declared minimum refresh interval
	TTLInMinutes *int32 `json:"ttl_in_minutes"`
	// Opaque validator from the last successful response
	ETag *string `json:"etag"`

	CreatedAt time.Time `json:"created_at"`
	// Last time the content changed
	UpdatedAt time.Time `json:"updated_at"`
	// Last fetch attempt
	FetchedAt time.Time `json:"fetched_at"`
	// Last fetch that returned 2xx/304
	SuccessfulFetchAt time.Time `json:"successful_fetch_at"`
	// Scheduled wake time, never unset once the feed exists
	NextFetchAt time.Time `json:"next_fetch_at"`
}

func (f *Feed) String() string {
	return fmt.Sprintf("ID: %d, Status: %s, Format: %s, URL: %s", f.ID, f.Status, f.Format, f.Link)
}

// FeedUpdate is a sparse patch over the feed row. Nil field means "leave the
// stored value unchanged", set field overwrites the column. Items is nil when
// the update carries no item reconciliation, an allocated (possibly empty)
// slice otherwise.
type FeedUpdate struct {
	Status *FeedStatus
	Format *FeedFormat

	Link        *string
	Domain      *string
	Title       *string
	Description *string
	Icon        *string
	Language    *string

	SkipHours      []int32
	SkipDaysOfWeek []int32
	TTLInMinutes   *int32
	ETag           *string

	FetchedAt         *time.Time
	SuccessfulFetchAt *time.Time
	NextFetchAt       *time.Time

	Items []ParsedFeedItem
}
