package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func parsedItem() *ParsedFeedItem {
	published := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)
	return &ParsedFeedItem{
		GUID:        "item-1",
		Title:       "A Brief History of Code Signing at Mozilla",
		Link:        strPtr("https://example.com/item1"),
		Description: strPtr("Item 1 description"),
		Categories:  []string{},
		PublishedAt: &published,
	}
}

func TestNewFeedItemFromParsed(t *testing.T) {
	now := time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)
	item := NewFeedItemFromParsed(parsedItem(), 42, 3, now)

	assert.Equal(t, int64(42), item.FeedID)
	assert.Equal(t, "item-1", item.GUID)
	assert.Equal(t, int32(3), item.IndexInFeed)
	assert.Equal(t, now, item.CreatedAt)
	assert.Equal(t, now, item.UpdatedAt)
}

func TestMergeParsedIsIdempotent(t *testing.T) {
	now := time.Now()
	item := NewFeedItemFromParsed(parsedItem(), 1, 0, now)

	// merging the exact same parse again must not report a change
	changed := item.MergeParsed(parsedItem(), 0)
	assert.False(t, changed)
}

func TestMergeParsedRestoresEditedTitle(t *testing.T) {
	now := time.Now()
	item := NewFeedItemFromParsed(parsedItem(), 1, 0, now)
	item.Title = "Hello World"

	changed := item.MergeParsed(parsedItem(), 0)
	assert.True(t, changed)
	assert.Equal(t, "A Brief History of Code Signing at Mozilla", item.Title)
}

func TestMergeParsedKeepsStoredValueWhenParseHasNone(t *testing.T) {
	now := time.Now()
	item := NewFeedItemFromParsed(parsedItem(), 1, 0, now)
	item.Content = strPtr("stored content")
	item.ContentType = strPtr("text/html")
	item.BaseLink = strPtr("https://example.com")

	parsed := parsedItem()
	parsed.Link = nil
	parsed.Description = nil
	parsed.PublishedAt = nil

	changed := item.MergeParsed(parsed, 0)
	assert.False(t, changed)
	// nullable fields survive a parse that does not carry them
	require.NotNil(t, item.Link)
	assert.Equal(t, "https://example.com/item1", *item.Link)
	require.NotNil(t, item.Content)
	assert.Equal(t, "stored content", *item.Content)
	require.NotNil(t, item.ContentType)
	require.NotNil(t, item.BaseLink)
}

func TestMergeParsedOverwritesChangedFields(t *testing.T) {
	now := time.Now()
	item := NewFeedItemFromParsed(parsedItem(), 1, 0, now)

	parsed := parsedItem()
	parsed.Description = strPtr("rewritten")
	parsed.Categories = []string{"news"}
	parsed.Enclosure = &FeedItemEnclosure{URL: "https://example.com/a.mp3", Length: 10, MimeType: "audio/mpeg"}

	changed := item.MergeParsed(parsed, 0)
	assert.True(t, changed)
	assert.Equal(t, "rewritten", *item.Description)
	assert.Equal(t, []string{"news"}, item.Categories)
	require.NotNil(t, item.Enclosure)
	assert.Equal(t, int32(10), item.Enclosure.Length)
}

func TestMergeParsedTracksIndexInFeed(t *testing.T) {
	now := time.Now()
	item := NewFeedItemFromParsed(parsedItem(), 1, 0, now)

	changed := item.MergeParsed(parsedItem(), 4)
	assert.True(t, changed)
	assert.Equal(t, int32(4), item.IndexInFeed)

	changed = item.MergeParsed(parsedItem(), 4)
	assert.False(t, changed)
}
