package parser

import (
	"bytes"
	"strconv"
	"time"

	"github.com/mmcdole/gofeed/atom"

	"github.com/bind-labs/backend/internal/entity"
)

// ParseAtom decodes an Atom feed into the normalized feed model.
// The feed id doubles as the link, which is what Atom publishers put there
// in practice.
func ParseAtom(body []byte) (*entity.ParsedFeed, error) {
	feed, err := (&atom.Parser{}).Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: ErrAtomParse, cause: err}
	}

	items := make([]entity.ParsedFeedItem, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		items = append(items, atomEntry(entry))
	}

	var updatedAt *time.Time
	if feed.UpdatedParsed != nil {
		utc := feed.UpdatedParsed.UTC()
		updatedAt = &utc
	}

	var language *string
	if feed.Language != "" {
		lang := feed.Language
		language = &lang
	}

	return &entity.ParsedFeed{
		Format:         entity.FeedFormatAtom,
		Link:           feed.ID,
		Domain:         DomainFromLink(feed.ID),
		Title:          feed.Title,
		Description:    feed.Subtitle,
		Icon:           optional(feed.Icon),
		Language:       language,
		SkipHours:      []int32{},
		SkipDaysOfWeek: []int32{},
		UpdatedAt:      updatedAt,
		TTLInMinutes:   0,
		Items:          items,
	}, nil
}

func atomEntry(entry *atom.Entry) entity.ParsedFeedItem {
	var enclosure *entity.FeedItemEnclosure
	var commentsLink *string
	for _, link := range entry.Links {
		switch link.Rel {
		case "enclosure":
			if enclosure == nil {
				length, err := strconv.ParseInt(link.Length, 10, 32)
				if err != nil {
					length = 0
				}
				enclosure = &entity.FeedItemEnclosure{
					URL:      link.Href,
					Length:   int32(length),
					MimeType: link.Type,
				}
			}
		case "comments":
			if commentsLink == nil {
				href := link.Href
				commentsLink = &href
			}
		}
	}

	// Content either carries the value inline or points to it with src
	var content *string
	if entry.Content != nil {
		if entry.Content.Value != "" {
			content = &entry.Content.Value
		} else if entry.Content.Src != "" {
			content = &entry.Content.Src
		}
	}

	var publishedAt *time.Time
	if entry.PublishedParsed != nil {
		utc := entry.PublishedParsed.UTC()
		publishedAt = &utc
	}

	id := entry.ID
	return entity.ParsedFeedItem{
		GUID:         entry.ID,
		Title:        entry.Title,
		Link:         &id,
		Description:  optional(entry.Summary),
		Enclosure:    enclosure,
		Content:      content,
		Categories:   []string{},
		CommentsLink: commentsLink,
		PublishedAt:  publishedAt,
	}
}
