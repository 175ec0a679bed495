package postgresql

import (
	"context"
	"time"

	otLog "github.com/opentracing/opentracing-go/log"

	"github.com/jackc/pgx/v4"

	"github.com/bind-labs/backend/internal/entity"
)

// maxItemsPerFeed bounds the stored window per feed, the oldest rows by
// (updated_at, id) are pruned past it
const maxItemsPerFeed = 1000

const itemColumns = `id, feed_id, guid, index_in_feed, title, link, description,
	(enclosure).url, (enclosure).length, (enclosure).mime_type,
	categories, comments_link, published_at, content, content_type, base_link,
	created_at, updated_at`

func scanFeedItem(row feedRow) (*entity.FeedItem, error) {
	i := &entity.FeedItem{}
	var enclosureURL, enclosureMime *string
	var enclosureLength *int32
	err := row.Scan(&i.ID, &i.FeedID, &i.GUID, &i.IndexInFeed, &i.Title, &i.Link, &i.Description,
		&enclosureURL, &enclosureLength, &enclosureMime,
		&i.Categories, &i.CommentsLink, &i.PublishedAt, &i.Content, &i.ContentType, &i.BaseLink,
		&i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if enclosureURL != nil {
		enclosure := entity.FeedItemEnclosure{URL: *enclosureURL}
		if enclosureLength != nil {
			enclosure.Length = *enclosureLength
		}
		if enclosureMime != nil {
			enclosure.MimeType = *enclosureMime
		}
		i.Enclosure = &enclosure
	}
	if i.Categories == nil {
		i.Categories = []string{}
	}
	return i, nil
}

// GetItemsByFeed returns all stored items of one feed
func (repository *Repository) GetItemsByFeed(ctx context.Context, feedID int64) ([]entity.FeedItem, error) {
	query := "SELECT " + itemColumns + " FROM feed_item WHERE feed_id=$1 ORDER BY index_in_feed"
	span, ctx := repository.setupTracingSpan(ctx, "get-items-by-feed", query)
	defer span.Finish()
	rows, err := repository.pool.Query(ctx, query, feedID)
	if err != nil {
		span.LogFields(otLog.Error(err))
		return nil, err
	}
	defer rows.Close()

	items := []entity.FeedItem{}
	for rows.Next() {
		item, err := scanFeedItem(rows)
		if err != nil {
			span.LogFields(otLog.Error(err))
			return nil, err
		}
		items = append(items, *item)
	}
	if rows.Err() != nil {
		span.LogFields(otLog.Error(rows.Err()))
		return nil, rows.Err()
	}
	span.LogKV("items number", len(items))
	return items, nil
}

// applyFeedItemsUpdate reconciles parsed items with the stored rows inside
// the caller's transaction. Items are processed newest last so that the most
// recent entries receive the highest ids, the pruning delete relies on that
// ordering. Returns whether any row was inserted or changed.
func applyFeedItemsUpdate(ctx context.Context, tx pgx.Tx, feedID int64, items []entity.ParsedFeedItem) (bool, error) {
	existing, err := getItemsByFeedTx(ctx, tx, feedID)
	if err != nil {
		return false, err
	}
	byGUID := make(map[string]*entity.FeedItem, len(existing))
	for n := range existing {
		byGUID[existing[n].GUID] = &existing[n]
	}

	if len(items) > maxItemsPerFeed {
		items = items[:maxItemsPerFeed]
	}

	didUpdateItems := false
	now := time.Now()
	for n := len(items) - 1; n >= 0; n-- {
		parsed := &items[n]
		indexInFeed := int32(n)

		if existingItem, ok := byGUID[parsed.GUID]; ok {
			edited := *existingItem
			if !edited.MergeParsed(parsed, indexInFeed) {
				continue
			}
			edited.UpdatedAt = now
			if err := updateFeedItem(ctx, tx, &edited); err != nil {
				return false, err
			}
			didUpdateItems = true
		} else {
			item := entity.NewFeedItemFromParsed(parsed, feedID, indexInFeed, now)
			if err := insertFeedItem(ctx, tx, item); err != nil {
				return false, err
			}
			didUpdateItems = true
		}
	}

	// Prune the oldest rows, by updated_at and then by id, down to the window
	_, err = tx.Exec(ctx, `DELETE FROM feed_item WHERE id IN
		(SELECT id FROM feed_item WHERE feed_id = $1 ORDER BY updated_at DESC, id DESC OFFSET $2)`,
		feedID, maxItemsPerFeed)
	if err != nil {
		return false, err
	}
	return didUpdateItems, nil
}

func getItemsByFeedTx(ctx context.Context, tx pgx.Tx, feedID int64) ([]entity.FeedItem, error) {
	rows, err := tx.Query(ctx, "SELECT "+itemColumns+" FROM feed_item WHERE feed_id=$1", feedID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []entity.FeedItem{}
	for rows.Next() {
		item, err := scanFeedItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func insertFeedItem(ctx context.Context, tx pgx.Tx, item *entity.FeedItem) error {
	var enclosureURL, enclosureMime *string
	var enclosureLength *int32
	if item.Enclosure != nil {
		enclosureURL = &item.Enclosure.URL
		enclosureLength = &item.Enclosure.Length
		enclosureMime = &item.Enclosure.MimeType
	}
	_, err := tx.Exec(ctx, `INSERT INTO feed_item
		(feed_id, guid, index_in_feed, title, link, description, enclosure,
		 categories, comments_link, published_at, content, content_type, base_link,
		 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6,
		 CASE WHEN $7::text IS NULL THEN NULL ELSE ROW($7, $8, $9)::feed_item_enclosure END,
		 $10, $11, $12, $13, $14, $15, $16, $17)`,
		item.FeedID, item.GUID, item.IndexInFeed, item.Title, item.Link, item.Description,
		enclosureURL, enclosureLength, enclosureMime,
		item.Categories, item.CommentsLink, item.PublishedAt, item.Content, item.ContentType, item.BaseLink,
		item.CreatedAt, item.UpdatedAt)
	return err
}

func updateFeedItem(ctx context.Context, tx pgx.Tx, item *entity.FeedItem) error {
	var enclosureURL, enclosureMime *string
	var enclosureLength *int32
	if item.Enclosure != nil {
		enclosureURL = &item.Enclosure.URL
		enclosureLength = &item.Enclosure.Length
		enclosureMime = &item.Enclosure.MimeType
	}
	_, err := tx.Exec(ctx, `UPDATE feed_item SET
		index_in_feed = $2, title = $3, link = $4, description = $5,
		enclosure = CASE WHEN $6::text IS NULL THEN NULL ELSE ROW($6, $7, $8)::feed_item_enclosure END,
		categories = $9, comments_link = $10, published_at = $11, content = $12,
		updated_at = $13
		WHERE id = $1`,
		item.ID, item.IndexInFeed, item.Title, item.Link, item.Description,
		enclosureURL, enclosureLength, enclosureMime,
		item.Categories, item.CommentsLink, item.PublishedAt, item.Content,
		item.UpdatedAt)
	return err
}
