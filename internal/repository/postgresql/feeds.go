package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	otLog "github.com/opentracing/opentracing-go/log"

	"github.com/jackc/pgx/v4"

	"github.com/bind-labs/backend/internal/entity"
)

const feedColumns = `id, status, format, link, domain, title, description, icon, language,
	skip_hours, skip_days_of_week, ttl_in_minutes, etag,
	created_at, updated_at, fetched_at, successful_fetch_at, next_fetch_at`

type feedRow interface {
	Scan(dest ...interface{}) error
}

func scanFeed(row feedRow) (*entity.Feed, error) {
	f := &entity.Feed{}
	var status, format string
	err := row.Scan(&f.ID, &status, &format, &f.Link, &f.Domain, &f.Title, &f.Description, &f.Icon, &f.Language,
		&f.SkipHours, &f.SkipDaysOfWeek, &f.TTLInMinutes, &f.ETag,
		&f.CreatedAt, &f.UpdatedAt, &f.FetchedAt, &f.SuccessfulFetchAt, &f.NextFetchAt)
	if err != nil {
		return nil, err
	}
	f.Status = entity.FeedStatus(status)
	f.Format = entity.FeedFormat(format)
	return f, nil
}

// GetOutOfDateFeeds returns all active feeds whose wake time passed
func (repository *Repository) GetOutOfDateFeeds(ctx context.Context) ([]entity.Feed, error) {
	query := "SELECT " + feedColumns + " FROM feed WHERE next_fetch_at < NOW() AND status = 'active'"
	span, ctx := repository.setupTracingSpan(ctx, "get-out-of-date-feeds", query)
	defer span.Finish()
	rows, err := repository.pool.Query(ctx, query)
	if err != nil {
		span.LogFields(otLog.Error(err))
		return nil, err
	}
	defer rows.Close()

	feeds := []entity.Feed{}
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			span.LogFields(otLog.Error(err))
			return nil, err
		}
		feeds = append(feeds, *f)
	}
	if rows.Err() != nil {
		span.LogFields(otLog.Error(rows.Err()))
		return nil, rows.Err()
	}
	span.LogKV("feeds number", len(feeds))
	return feeds, nil
}

// GetByID returns single feed, nil if it doesn't exist
func (repository *Repository) GetByID(ctx context.Context, id int64) (*entity.Feed, error) {
	query := "SELECT " + feedColumns + " FROM feed WHERE id=$1"
	span, ctx := repository.setupTracingSpan(ctx, "get-feed-by-id", query)
	defer span.Finish()
	f, err := scanFeed(repository.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		span.LogKV("event", "feed not found")
		return nil, nil
	}
	if err != nil {
		span.LogFields(otLog.Error(err))
		return nil, err
	}
	span.LogKV("event", "got feed")
	return f, nil
}

// GetAll returns all feeds
func (repository *Repository) GetAll(ctx context.Context) ([]entity.Feed, error) {
	query := "SELECT " + feedColumns + " FROM feed"
	span, ctx := repository.setupTracingSpan(ctx, "get-all-feeds", query)
	defer span.Finish()
	rows, err := repository.pool.Query(ctx, query)
	if err != nil {
		span.LogFields(otLog.Error(err))
		return nil, err
	}
	defer rows.Close()

	feeds := []entity.Feed{}
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			span.LogFields(otLog.Error(err))
			return nil, err
		}
		feeds = append(feeds, *f)
	}
	if rows.Err() != nil {
		span.LogFields(otLog.Error(rows.Err()))
		return nil, rows.Err()
	}
	span.LogKV("feeds number", len(feeds))
	return feeds, nil
}

// CreateFeed inserts a bootstrapped feed with its initial items in one
// transaction. All initial items get index_in_feed zero, the first refresh
// assigns positions.
func (repository *Repository) CreateFeed(ctx context.Context, feed *entity.Feed, items []entity.ParsedFeedItem) (*entity.Feed, error) {
	query := `INSERT INTO feed (status, format, link, domain, title, description, icon, language,
		skip_hours, skip_days_of_week, ttl_in_minutes, etag,
		created_at, updated_at, fetched_at, successful_fetch_at, next_fetch_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id`
	span, ctx := repository.setupTracingSpan(ctx, "create-feed", query)
	defer span.Finish()

	tx, err := repository.pool.Begin(ctx)
	if err != nil {
		span.LogFields(otLog.Error(err))
		return nil, err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, query,
		string(feed.Status), string(feed.Format), feed.Link, feed.Domain, feed.Title, feed.Description, feed.Icon, feed.Language,
		feed.SkipHours, feed.SkipDaysOfWeek, feed.TTLInMinutes, feed.ETag,
		feed.CreatedAt, feed.UpdatedAt, feed.FetchedAt, feed.SuccessfulFetchAt, feed.NextFetchAt,
	).Scan(&feed.ID)
	if err != nil {
		span.LogFields(otLog.Error(err))
		return nil, err
	}

	now := time.Now()
	for n := range items {
		item := entity.NewFeedItemFromParsed(&items[n], feed.ID, 0, now)
		if err := insertFeedItem(ctx, tx, item); err != nil {
			span.LogFields(otLog.Error(err))
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		span.LogFields(otLog.Error(err))
		return nil, err
	}
	span.LogKV("event", "created feed")
	return feed, nil
}

// ApplyFeedUpdate commits the sparse patch for one feed in a single
// transaction: item reconciliation first, then the field by field merge of
// the feed row. The content change time only moves when an item changed.
func (repository *Repository) ApplyFeedUpdate(ctx context.Context, feed *entity.Feed, update *entity.FeedUpdate) error {
	query := `UPDATE feed SET
		status = $2, format = $3, link = $4, domain = $5, title = $6, description = $7,
		icon = $8, language = $9, skip_hours = $10, skip_days_of_week = $11,
		ttl_in_minutes = $12, etag = $13,
		updated_at = $14, fetched_at = $15, successful_fetch_at = $16, next_fetch_at = $17
		WHERE id = $1`
	span, ctx := repository.setupTracingSpan(ctx, "apply-feed-update", query)
	defer span.Finish()

	tx, err := repository.pool.Begin(ctx)
	if err != nil {
		span.LogFields(otLog.Error(err))
		return err
	}
	defer tx.Rollback(ctx)

	didUpdateItems := false
	if update.Items != nil {
		didUpdateItems, err = applyFeedItemsUpdate(ctx, tx, feed.ID, update.Items)
		if err != nil {
			span.LogFields(otLog.Error(err))
			return fmt.Errorf("couldn't reconcile feed items, %w", err)
		}
	}

	updatedAt := feed.UpdatedAt
	if didUpdateItems {
		updatedAt = time.Now()
	}

	_, err = tx.Exec(ctx, query,
		feed.ID,
		string(statusValue(update, feed)),
		string(formatValue(update, feed)),
		stringValue(update.Link, feed.Link),
		stringPtrValue(update.Domain, feed.Domain),
		stringValue(update.Title, feed.Title),
		stringValue(update.Description, feed.Description),
		stringPtrValue(update.Icon, feed.Icon),
		stringPtrValue(update.Language, feed.Language),
		int32SliceValue(update.SkipHours, feed.SkipHours),
		int32SliceValue(update.SkipDaysOfWeek, feed.SkipDaysOfWeek),
		int32PtrValue(update.TTLInMinutes, feed.TTLInMinutes),
		stringPtrValue(update.ETag, feed.ETag),
		updatedAt,
		timeValue(update.FetchedAt, feed.FetchedAt),
		timeValue(update.SuccessfulFetchAt, feed.SuccessfulFetchAt),
		timeValue(update.NextFetchAt, feed.NextFetchAt),
	)
	if err != nil {
		span.LogFields(otLog.Error(err))
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		span.LogFields(otLog.Error(err))
		return err
	}
	span.LogKV("event", "applied feed update")
	return nil
}

func statusValue(update *entity.FeedUpdate, feed *entity.Feed) entity.FeedStatus {
	if update.Status != nil {
		return *update.Status
	}
	return feed.Status
}

func formatValue(update *entity.FeedUpdate, feed *entity.Feed) entity.FeedFormat {
	if update.Format != nil {
		return *update.Format
	}
	return feed.Format
}

func stringValue(update *string, current string) string {
	if update != nil {
		return *update
	}
	return current
}

func stringPtrValue(update *string, current *string) *string {
	if update != nil {
		return update
	}
	return current
}

func int32PtrValue(update *int32, current *int32) *int32 {
	if update != nil {
		return update
	}
	return current
}

func int32SliceValue(update []int32, current []int32) []int32 {
	if update != nil {
		return update
	}
	if current == nil {
		return []int32{}
	}
	return current
}

func timeValue(update *time.Time, current time.Time) time.Time {
	if update != nil {
		return *update
	}
	return current
}
