package refresher

import (
	"errors"
	"time"

	"github.com/bind-labs/backend/internal/entity"
	"github.com/bind-labs/backend/internal/fetcher"
	"github.com/bind-labs/backend/internal/parser"
)

const (
	// minTimeBetweenUpdates is our floor for polling a single feed
	minTimeBetweenUpdates = 15 * time.Minute
	// maxTimeBetweenUpdates caps the interval for long dormant feeds
	maxTimeBetweenUpdates = 24 * time.Hour
	// brokenAfter demotes a feed that had no successful fetch for this long
	brokenAfter = 4 * 7 * 24 * time.Hour
	// rateLimitSafetyMargin is added on top of the server Retry-After
	rateLimitSafetyMargin = time.Minute
)

// NextUpdate is the scheduling decision for one feed, either a concrete
// wake time or demotion to broken.
type NextUpdate struct {
	Broken bool
	Time   time.Time
}

func (n NextUpdate) apply(update *entity.FeedUpdate) {
	if n.Broken {
		status := entity.FeedStatusBroken
		update.Status = &status
		return
	}
	at := n.Time
	update.NextFetchAt = &at
}

// NextFetchTime computes when the feed should be polled again.
// The interval grows linearly with content staleness, five minutes per day
// since the last observed change, clamped between the publisher floor and
// one day. A feed with no successful fetch for four weeks is broken.
// skip_hours and skip_days_of_week are persisted but not consulted here.
func NextFetchTime(feed *entity.Feed, cacheDuration *time.Duration, now time.Time) NextUpdate {
	if now.Sub(feed.SuccessfulFetchAt) > brokenAfter {
		return NextUpdate{Broken: true}
	}

	ageInDays := int64(now.Sub(feed.UpdatedAt).Hours() / 24)
	if ageInDays < 0 {
		ageInDays = 0
	}
	desired := time.Duration(ageInDays) * 5 * time.Minute

	// Respect the cache header or the publisher TTL, but never wait longer
	// than our own floor for it
	floor := minTimeBetweenUpdates
	if cacheDuration != nil {
		floor = *cacheDuration
	} else if feed.TTLInMinutes != nil {
		floor = time.Duration(*feed.TTLInMinutes) * time.Minute
	}
	if floor > minTimeBetweenUpdates {
		floor = minTimeBetweenUpdates
	}

	until := desired
	if until < floor {
		until = floor
	}
	if until > maxTimeBetweenUpdates {
		until = maxTimeBetweenUpdates
	}
	return NextUpdate{Time: now.Add(until)}
}

// GetFeedUpdate turns a fetch outcome into the sparse patch to commit for
// the feed. It is total: every outcome, including every error, produces an
// update, so a refresh job always commits exactly one transaction.
func GetFeedUpdate(fetch *fetcher.Fetch, fetchErr error, feed *entity.Feed, now time.Time) *entity.FeedUpdate {
	if fetchErr != nil {
		var rateLimited *fetcher.Error
		if errors.As(fetchErr, &rateLimited) && rateLimited.Kind == fetcher.ErrRateLimited {
			next := now.Add(rateLimited.RetryAfter + rateLimitSafetyMargin)
			at := now
			return &entity.FeedUpdate{FetchedAt: &at, NextFetchAt: &next}
		}
		return failureUpdate(feed, now)
	}

	switch fetch.Kind {
	case fetcher.Modified:
		cacheDuration := fetcher.ParseCacheControlMaxAge(fetch.Response.Header.Get("Cache-Control"))
		etag := fetcher.ParseETag(fetch.Response.Header.Get("ETag"))

		parsed, err := parser.ParseResponse(fetch.Response)
		if err != nil {
			return failureUpdate(feed, now)
		}

		// Content that is not newer than our last successful fetch, or an
		// unchanged validator, only refreshes the scheduling metadata
		stale := parsed.UpdatedAt != nil && !parsed.UpdatedAt.After(feed.SuccessfulFetchAt)
		sameETag := etag != nil && feed.ETag != nil && *etag == *feed.ETag
		if stale || sameETag {
			return touchUpdate(feed, etag, cacheDuration, now)
		}
		return contentUpdate(feed, parsed, etag, cacheDuration, now)

	case fetcher.NotModified:
		cacheDuration := fetcher.ParseCacheControlMaxAge(fetch.Response.Header.Get("Cache-Control"))
		etag := fetcher.ParseETag(fetch.Response.Header.Get("ETag"))
		fetch.Response.Body.Close()
		return touchUpdate(feed, etag, cacheDuration, now)

	case fetcher.Moved:
		// Rewrite the link and its domain only, the next tick fetches the new location
		location := fetch.Location
		update := &entity.FeedUpdate{Link: &location}
		if domain := parser.DomainFromLink(location); domain != nil {
			update.Domain = domain
		}
		return update

	default:
		return failureUpdate(feed, now)
	}
}

// touchUpdate bumps the validators and scheduling fields without touching content
func touchUpdate(feed *entity.Feed, etag *string, cacheDuration *time.Duration, now time.Time) *entity.FeedUpdate {
	at := now
	update := &entity.FeedUpdate{
		ETag:              etag,
		FetchedAt:         &at,
		SuccessfulFetchAt: &at,
	}
	NextFetchTime(feed, cacheDuration, now).apply(update)
	return update
}

// contentUpdate carries the full parse result plus the scheduling fields
func contentUpdate(feed *entity.Feed, parsed *entity.ParsedFeed, etag *string, cacheDuration *time.Duration, now time.Time) *entity.FeedUpdate {
	at := now
	format := parsed.Format
	link := parsed.Link
	title := parsed.Title
	description := parsed.Description
	ttl := parsed.TTLInMinutes
	update := &entity.FeedUpdate{
		Format:            &format,
		Link:              &link,
		Domain:            parsed.Domain,
		Title:             &title,
		Description:       &description,
		Icon:              parsed.Icon,
		Language:          parsed.Language,
		SkipHours:         parsed.SkipHours,
		SkipDaysOfWeek:    parsed.SkipDaysOfWeek,
		TTLInMinutes:      &ttl,
		ETag:              etag,
		FetchedAt:         &at,
		SuccessfulFetchAt: &at,
		Items:             parsed.Items,
	}
	if update.Items == nil {
		update.Items = []entity.ParsedFeedItem{}
	}
	NextFetchTime(feed, cacheDuration, now).apply(update)
	return update
}

// failureUpdate records the attempt and reschedules, without a successful fetch
func failureUpdate(feed *entity.Feed, now time.Time) *entity.FeedUpdate {
	at := now
	update := &entity.FeedUpdate{FetchedAt: &at}
	NextFetchTime(feed, nil, now).apply(update)
	return update
}
