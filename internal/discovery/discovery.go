// Package discovery finds syndication feeds advertised by an HTML page
package discovery

import (
	"io"

	"github.com/PuerkitoBio/goquery"

	"github.com/bind-labs/backend/internal/entity"
)

// FeedInformation is one feed advertised by a page
type FeedInformation struct {
	Link string            `json:"link"`
	Type entity.FeedFormat `json:"type"`
}

// DiscoverFeedLinks parses an HTML document and collects the feed links of
// all kinds, RSS, Atom and JSON Feed, from its typed link elements.
func DiscoverFeedLinks(html io.Reader) ([]FeedInformation, error) {
	document, err := goquery.NewDocumentFromReader(html)
	if err != nil {
		return nil, err
	}

	feeds := []FeedInformation{}
	document.Find("link[type]").Each(func(_ int, element *goquery.Selection) {
		link, ok := element.Attr("href")
		if !ok || link == "" {
			return
		}
		var feedType entity.FeedFormat
		switch element.AttrOr("type", "") {
		case "application/rss+xml":
			feedType = entity.FeedFormatRSS
		case "application/atom+xml":
			feedType = entity.FeedFormatAtom
		case "application/json", "application/feed+json":
			feedType = entity.FeedFormatJSON
		default:
			return
		}
		feeds = append(feeds, FeedInformation{Link: link, Type: feedType})
	})
	return feeds, nil
}
