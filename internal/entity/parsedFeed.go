package entity

import "time"

// ParsedFeed is the normalized result of decoding one RSS/Atom/JSON Feed document
type ParsedFeed struct {
	Format FeedFormat
	Link   string
	Domain *string

	Title       string
	Description string
	Icon        *string
	Language    *string

	SkipHours      []int32
	SkipDaysOfWeek []int32
	// Time of the last content change declared by the publisher, if any
	UpdatedAt *time.Time

	TTLInMinutes int32
	Items        []ParsedFeedItem
}

// ParsedFeedItem is one normalized entry of a parsed feed.
// GUID is the stable identity within the feed, derived from the source document.
type ParsedFeedItem struct {
	GUID        string
	Title       string
	Link        *string
	Description *string
	Enclosure   *FeedItemEnclosure
	Content     *string
	Categories  []string
	// Link to the comments page of the item
	CommentsLink *string
	PublishedAt  *time.Time
}
