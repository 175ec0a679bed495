package parser

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed/rss"

	"github.com/bind-labs/backend/internal/entity"
)

// skipDayNames maps RSS skipDays values to day-of-week numbers, Sunday first
var skipDayNames = map[string]int32{
	"sunday":    0,
	"monday":    1,
	"tuesday":   2,
	"wednesday": 3,
	"thursday":  4,
	"friday":    5,
	"saturday":  6,
}

// ParseRSS decodes an RSS channel into the normalized feed model
func ParseRSS(body []byte) (*entity.ParsedFeed, error) {
	channel, err := (&rss.Parser{}).Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: ErrRssParse, cause: err}
	}

	items := make([]entity.ParsedFeedItem, 0, len(channel.Items))
	for _, item := range channel.Items {
		parsed, err := rssItem(item)
		if err != nil {
			return nil, &Error{Kind: ErrSemanticParse, cause: err}
		}
		items = append(items, parsed)
	}

	skipHours := make([]int32, 0, len(channel.SkipHours))
	for _, raw := range channel.SkipHours {
		hour, err := strconv.ParseInt(raw, 10, 32)
		if err == nil && hour >= 0 && hour < 24 {
			skipHours = append(skipHours, int32(hour))
		}
	}
	skipDays := make([]int32, 0, len(channel.SkipDays))
	for _, raw := range channel.SkipDays {
		if day, ok := skipDayNames[strings.ToLower(raw)]; ok {
			skipDays = append(skipDays, day)
		}
	}

	var updatedAt *time.Time
	if channel.LastBuildDate != "" {
		if at, err := parseRFC2822(channel.LastBuildDate); err == nil {
			utc := at.UTC()
			updatedAt = &utc
		}
	}

	// The publisher TTL overrides the initial zero when it parses as minutes
	var ttlInMinutes int32
	if channel.TTL != "" {
		if ttl, err := strconv.ParseInt(channel.TTL, 10, 32); err == nil && ttl > 0 {
			ttlInMinutes = int32(ttl)
		}
	}

	var icon *string
	if channel.Image != nil && channel.Image.URL != "" {
		url := channel.Image.URL
		icon = &url
	}
	var language *string
	if channel.Language != "" {
		lang := channel.Language
		language = &lang
	}

	return &entity.ParsedFeed{
		Format:         entity.FeedFormatRSS,
		Link:           channel.Link,
		Domain:         DomainFromLink(channel.Link),
		Title:          channel.Title,
		Description:    channel.Description,
		Icon:           icon,
		Language:       language,
		SkipHours:      skipHours,
		SkipDaysOfWeek: skipDays,
		UpdatedAt:      updatedAt,
		TTLInMinutes:   ttlInMinutes,
		Items:          items,
	}, nil
}

func rssItem(item *rss.Item) (entity.ParsedFeedItem, error) {
	var guidValue string
	if item.GUID != nil {
		guidValue = item.GUID.Value
	}
	guid := firstNonEmpty(guidValue, item.Link, item.Title, item.Description)
	if guid == "" {
		return entity.ParsedFeedItem{}, errors.New("rss item without guid, link, title or description")
	}
	title := firstNonEmpty(item.Title, item.Description)
	if title == "" {
		return entity.ParsedFeedItem{}, errors.New("rss item without title or description")
	}

	var enclosure *entity.FeedItemEnclosure
	if item.Enclosure != nil {
		length, err := strconv.ParseInt(item.Enclosure.Length, 10, 32)
		if err != nil {
			length = 0
		}
		enclosure = &entity.FeedItemEnclosure{
			URL:      item.Enclosure.URL,
			Length:   int32(length),
			MimeType: item.Enclosure.Type,
		}
	}

	var publishedAt *time.Time
	if item.PubDate != "" {
		at, err := time.Parse(time.RFC3339, item.PubDate)
		if err != nil {
			return entity.ParsedFeedItem{}, errors.New("rss item with unparseable publication date")
		}
		utc := at.UTC()
		publishedAt = &utc
	}

	return entity.ParsedFeedItem{
		GUID:         guid,
		Title:        title,
		Link:         optional(item.Link),
		Description:  optional(item.Description),
		Enclosure:    enclosure,
		Content:      optional(item.Content),
		Categories:   []string{},
		CommentsLink: optional(item.Comments),
		PublishedAt:  publishedAt,
	}, nil
}

// parseRFC2822 accepts the date formats RSS publishers actually emit for
// lastBuildDate, with and without a named zone
func parseRFC2822(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822} {
		if at, err := time.Parse(layout, value); err == nil {
			return at, nil
		}
	}
	return time.Time{}, errors.New("unrecognized RFC 2822 date")
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
