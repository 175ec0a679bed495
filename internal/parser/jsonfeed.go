package parser

import (
	"bytes"
	"errors"
	"time"

	"github.com/mmcdole/gofeed/json"

	"github.com/bind-labs/backend/internal/entity"
)

// ParseJSONFeed decodes a JSON Feed document into the normalized feed model
func ParseJSONFeed(body []byte) (*entity.ParsedFeed, error) {
	feed, err := (&json.Parser{}).Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: ErrJsonParse, cause: err}
	}

	link := firstNonEmpty(feed.FeedURL, feed.HomePageURL)
	if link == "" {
		return nil, &Error{Kind: ErrSemanticParse, cause: errors.New("json feed without feed_url or home_page_url")}
	}

	items := make([]entity.ParsedFeedItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		parsed, err := jsonFeedItem(item)
		if err != nil {
			return nil, &Error{Kind: ErrSemanticParse, cause: err}
		}
		items = append(items, parsed)
	}

	var language *string
	if feed.Language != "" {
		lang := feed.Language
		language = &lang
	}

	return &entity.ParsedFeed{
		Format:         entity.FeedFormatJSON,
		Link:           link,
		Domain:         DomainFromLink(link),
		Title:          feed.Title,
		Description:    feed.Description,
		Icon:           optional(feed.Icon),
		Language:       language,
		SkipHours:      []int32{},
		SkipDaysOfWeek: []int32{},
		UpdatedAt:      nil,
		TTLInMinutes:   0,
		Items:          items,
	}, nil
}

func jsonFeedItem(item *json.Item) (entity.ParsedFeedItem, error) {
	if item.ID == "" {
		return entity.ParsedFeedItem{}, errors.New("json feed item without id")
	}

	content := firstNonEmpty(item.ContentText, item.ContentHTML)
	title := firstNonEmpty(item.Title, content)
	if title == "" {
		return entity.ParsedFeedItem{}, errors.New("json feed item without title or content")
	}

	var enclosure *entity.FeedItemEnclosure
	if item.Attachments != nil && len(*item.Attachments) > 0 {
		attachment := (*item.Attachments)[0]
		enclosure = &entity.FeedItemEnclosure{
			URL:      attachment.URL,
			Length:   int32(attachment.SizeInBytes),
			MimeType: attachment.MimeType,
		}
	}

	var publishedAt *time.Time
	if item.DatePublished != "" {
		at, err := time.Parse(time.RFC3339, item.DatePublished)
		if err != nil {
			return entity.ParsedFeedItem{}, errors.New("json feed item with unparseable date_published")
		}
		utc := at.UTC()
		publishedAt = &utc
	}

	categories := item.Tags
	if categories == nil {
		categories = []string{}
	}

	return entity.ParsedFeedItem{
		GUID:         item.ID,
		Title:        title,
		Link:         optional(item.URL),
		Description:  optional(item.Summary),
		Enclosure:    enclosure,
		Content:      optional(content),
		Categories:   categories,
		CommentsLink: optional(item.ExternalURL),
		PublishedAt:  publishedAt,
	}, nil
}
