package discovery

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bind-labs/backend/internal/entity"
)

func TestDiscoverFeedLinks(t *testing.T) {
	page := `<!DOCTYPE html>
<html>
<head>
	<title>Example blog</title>
	<link rel="stylesheet" type="text/css" href="/style.css">
	<link rel="alternate" type="application/rss+xml" title="RSS" href="https://example.com/rss.xml">
	<link rel="alternate" type="application/atom+xml" title="Atom" href="/atom.xml">
	<link rel="alternate" type="application/json" title="JSON Feed" href="https://example.com/feed.json">
	<link rel="alternate" type="text/calendar" href="/events.ics">
</head>
<body></body>
</html>`

	feeds, err := DiscoverFeedLinks(strings.NewReader(page))
	require.NoError(t, err)
	require.Len(t, feeds, 3)

	assert.Equal(t, FeedInformation{Link: "https://example.com/rss.xml", Type: entity.FeedFormatRSS}, feeds[0])
	assert.Equal(t, FeedInformation{Link: "/atom.xml", Type: entity.FeedFormatAtom}, feeds[1])
	assert.Equal(t, FeedInformation{Link: "https://example.com/feed.json", Type: entity.FeedFormatJSON}, feeds[2])
}

func TestDiscoverFeedLinksIgnoresEmptyHref(t *testing.T) {
	page := `<html><head><link rel="alternate" type="application/rss+xml" href=""></head></html>`
	feeds, err := DiscoverFeedLinks(strings.NewReader(page))
	require.NoError(t, err)
	assert.Len(t, feeds, 0)
}

func TestDiscoverFeedLinksPlainPage(t *testing.T) {
	feeds, err := DiscoverFeedLinks(strings.NewReader("<html><body>nothing here</body></html>"))
	require.NoError(t, err)
	assert.Len(t, feeds, 0)
}
