package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bind-labs/backend/internal/entity"
)

func TestParseJSONFeedSimple(t *testing.T) {
	feed := `{
		"version": "https://jsonfeed.org/version/1",
		"title": "Simple Feed",
		"home_page_url": "https://example.com/feed",
		"description": "Simple feed description",
		"items": []
	}`
	parsed, err := ParseJSONFeed([]byte(feed))
	require.NoError(t, err)

	assert.Equal(t, entity.FeedFormatJSON, parsed.Format)
	assert.Equal(t, "https://example.com/feed", parsed.Link)
	assert.Equal(t, "Simple Feed", parsed.Title)
	assert.Equal(t, "Simple feed description", parsed.Description)
	assert.Len(t, parsed.Items, 0)
	assert.Nil(t, parsed.Icon)
}

func TestParseJSONFeedPrefersFeedURL(t *testing.T) {
	feed := `{
		"version": "https://jsonfeed.org/version/1.1",
		"title": "My Example Feed",
		"home_page_url": "https://example.org/",
		"feed_url": "https://example.org/feed.json",
		"items": []
	}`
	parsed, err := ParseJSONFeed([]byte(feed))
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/feed.json", parsed.Link)
}

func TestParseJSONFeedWithItems(t *testing.T) {
	feed := `{
		"version": "https://jsonfeed.org/version/1.1",
		"title": "My Example Feed",
		"home_page_url": "https://example.org/",
		"feed_url": "https://example.org/feed.json",
		"items": [
			{
				"id": "2",
				"content_text": "This is a second item.",
				"url": "https://example.org/second-item",
				"tags": ["updates"],
				"external_url": "https://other.example.org/thread",
				"date_published": "2021-03-01T10:00:00Z",
				"attachments": [
					{"url": "https://example.org/a.mp3", "mime_type": "audio/mpeg", "size_in_bytes": 2048}
				]
			},
			{
				"id": "1",
				"title": "My Example Feed Item",
				"content_html": "<p>Hello, world!</p>",
				"url": "https://example.org/initial-post"
			}
		]
	}`
	parsed, err := ParseJSONFeed([]byte(feed))
	require.NoError(t, err)
	require.Len(t, parsed.Items, 2)

	first := parsed.Items[0]
	assert.Equal(t, "2", first.GUID)
	// no declared title, the content doubles as one
	assert.Equal(t, "This is a second item.", first.Title)
	require.NotNil(t, first.Content)
	assert.Equal(t, "This is a second item.", *first.Content)
	assert.Equal(t, []string{"updates"}, first.Categories)
	require.NotNil(t, first.CommentsLink)
	assert.Equal(t, "https://other.example.org/thread", *first.CommentsLink)
	require.NotNil(t, first.PublishedAt)
	require.NotNil(t, first.Enclosure)
	assert.Equal(t, entity.FeedItemEnclosure{URL: "https://example.org/a.mp3", Length: 2048, MimeType: "audio/mpeg"}, *first.Enclosure)

	second := parsed.Items[1]
	assert.Equal(t, "My Example Feed Item", second.Title)
	require.NotNil(t, second.Link)
	assert.Equal(t, "https://example.org/initial-post", *second.Link)
	require.NotNil(t, second.Content)
	assert.Equal(t, "<p>Hello, world!</p>", *second.Content)
}

func TestParseJSONFeedWithoutAnyURLRejected(t *testing.T) {
	feed := `{"version": "https://jsonfeed.org/version/1", "title": "No links", "items": []}`
	_, err := ParseJSONFeed([]byte(feed))
	var parseErr *Error
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, ErrSemanticParse, parseErr.Kind)
}

func TestParseJSONFeedItemWithoutTitleOrContentRejected(t *testing.T) {
	feed := `{
		"version": "https://jsonfeed.org/version/1",
		"title": "f",
		"feed_url": "https://example.org/feed.json",
		"items": [{"id": "1", "url": "https://example.org/post"}]
	}`
	_, err := ParseJSONFeed([]byte(feed))
	var parseErr *Error
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, ErrSemanticParse, parseErr.Kind)
}

func TestParseJSONFeedMalformedDocument(t *testing.T) {
	_, err := ParseJSONFeed([]byte("<xml?>"))
	var parseErr *Error
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, ErrJsonParse, parseErr.Kind)
}
