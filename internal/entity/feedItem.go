package entity

import (
	"fmt"
	"time"
)

// FeedItem defines single stored item of a feed, identified by (feed_id, guid)
type FeedItem struct {
	ID          int64  `json:"id"`
	FeedID      int64  `json:"feed_id"`
	GUID        string `json:"guid"`
	IndexInFeed int32  `json:"index_in_feed"`

	Title       string             `json:"title"`
	Link        *string            `json:"link"`
	Description *string            `json:"description"`
	Enclosure   *FeedItemEnclosure `json:"enclosure"`
	Content     *string            `json:"content"`
	ContentType *string            `json:"content_type"`
	BaseLink    *string            `json:"base_link"`

	Categories   []string   `json:"categories"`
	CommentsLink *string    `json:"comments_link"`
	PublishedAt  *time.Time `json:"published_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (i *FeedItem) String() string {
	return fmt.Sprintf("ID: %d, FeedID: %d, GUID: %s, Title: %s", i.ID, i.FeedID, i.GUID, i.Title)
}

// NewFeedItemFromParsed builds the row for a first-seen parsed item
func NewFeedItemFromParsed(parsed *ParsedFeedItem, feedID int64, indexInFeed int32, now time.Time) *FeedItem {
	return &FeedItem{
		FeedID:       feedID,
		GUID:         parsed.GUID,
		IndexInFeed:  indexInFeed,
		Title:        parsed.Title,
		Link:         parsed.Link,
		Description:  parsed.Description,
		Enclosure:    parsed.Enclosure,
		Content:      parsed.Content,
		Categories:   parsed.Categories,
		CommentsLink: parsed.CommentsLink,
		PublishedAt:  parsed.PublishedAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// MergeParsed folds a freshly parsed item into the stored one.
// Title and categories always follow the parse, nullable fields only
// overwrite when the parse carries a value. Content type and base link are
// not present in feed documents and survive as is. Returns true if any
// stored field changed.
func (i *FeedItem) MergeParsed(parsed *ParsedFeedItem, indexInFeed int32) bool {
	changed := false

	if i.Title != parsed.Title {
		i.Title = parsed.Title
		changed = true
	}
	if !equalStrings(i.Categories, parsed.Categories) {
		i.Categories = parsed.Categories
		changed = true
	}
	if parsed.Link != nil && !equalStringPtr(i.Link, parsed.Link) {
		i.Link = parsed.Link
		changed = true
	}
	if parsed.Description != nil && !equalStringPtr(i.Description, parsed.Description) {
		i.Description = parsed.Description
		changed = true
	}
	if parsed.Enclosure != nil && !equalEnclosure(i.Enclosure, parsed.Enclosure) {
		i.Enclosure = parsed.Enclosure
		changed = true
	}
	if parsed.Content != nil && !equalStringPtr(i.Content, parsed.Content) {
		i.Content = parsed.Content
		changed = true
	}
	if parsed.CommentsLink != nil && !equalStringPtr(i.CommentsLink, parsed.CommentsLink) {
		i.CommentsLink = parsed.CommentsLink
		changed = true
	}
	if parsed.PublishedAt != nil && !equalTimePtr(i.PublishedAt, parsed.PublishedAt) {
		i.PublishedAt = parsed.PublishedAt
		changed = true
	}
	if i.IndexInFeed != indexInFeed {
		i.IndexInFeed = indexInFeed
		changed = true
	}
	return changed
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for n := range a {
		if a[n] != b[n] {
			return false
		}
	}
	return true
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func equalEnclosure(a, b *FeedItemEnclosure) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
