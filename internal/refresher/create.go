package refresher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bind-labs/backend/internal/entity"
	"github.com/bind-labs/backend/internal/fetcher"
	"github.com/bind-labs/backend/internal/parser"
)

// CreationErrorKind enumerates bootstrap failures surfaced to the API
type CreationErrorKind int

const (
	// CreationNotModified means the server answered 304 to an unconditional GET
	CreationNotModified CreationErrorKind = iota
	// CreationRedirectLoop means the feed kept redirecting during creation
	CreationRedirectLoop
	// CreationNotFound means the feed does not exist
	CreationNotFound
	// CreationParsingError wraps a parser error
	CreationParsingError
	// CreationFetchError wraps any other fetch error
	CreationFetchError
	// CreationSQLError wraps a repository failure while inserting
	CreationSQLError
)

// CreationError is a failed feed bootstrap
type CreationError struct {
	Kind  CreationErrorKind
	cause error
}

func (e *CreationError) Error() string {
	switch e.Kind {
	case CreationNotModified:
		return "feed returned not modified during creation"
	case CreationRedirectLoop:
		return "feed redirected too many times"
	case CreationNotFound:
		return "feed does not exist"
	case CreationParsingError:
		return fmt.Sprintf("failure parsing feed: %v", e.cause)
	case CreationFetchError:
		return fmt.Sprintf("failure fetching feed: %v", e.cause)
	case CreationSQLError:
		return fmt.Sprintf("failure storing feed: %v", e.cause)
	default:
		return "unknown feed creation error"
	}
}

func (e *CreationError) Unwrap() error {
	return e.cause
}

// FeedsCreator persists a bootstrapped feed with its initial items in one transaction
type FeedsCreator interface {
	CreateFeed(ctx context.Context, feed *entity.Feed, items []entity.ParsedFeedItem) (*entity.Feed, error)
}

// Creator bundles the bootstrap client with the repository for callers that
// only need the single CreateFeed operation, e.g. the HTTP API.
type Creator struct {
	client     *http.Client
	repository FeedsCreator
}

func NewCreator(repository FeedsCreator) *Creator {
	return &Creator{client: fetcher.NewClient(fetcher.ModeBootstrap), repository: repository}
}

func (c *Creator) CreateFeed(ctx context.Context, link string) (*entity.Feed, error) {
	return CreateFeed(ctx, c.client, c.repository, link)
}

// CreateFeed bootstraps a feed from its link: unconditional GET in bootstrap
// redirect mode, parse, insert the feed row with its initial items.
// Every initial item is inserted with index_in_feed zero, the first refresh
// assigns real positions.
func CreateFeed(ctx context.Context, client *http.Client, repository FeedsCreator, link string) (*entity.Feed, error) {
	fetch, err := fetcher.FetchFeed(ctx, client, link, nil, nil)
	if err != nil {
		var fetchErr *fetcher.Error
		if errors.As(err, &fetchErr) {
			switch fetchErr.Kind {
			case fetcher.ErrNotFound:
				return nil, &CreationError{Kind: CreationNotFound, cause: err}
			case fetcher.ErrTransport:
				if errors.Is(err, fetcher.ErrTooManyRedirects) {
					return nil, &CreationError{Kind: CreationRedirectLoop, cause: err}
				}
			}
		}
		return nil, &CreationError{Kind: CreationFetchError, cause: err}
	}

	switch fetch.Kind {
	case fetcher.NotModified:
		fetch.Response.Body.Close()
		return nil, &CreationError{Kind: CreationNotModified}
	case fetcher.Moved:
		return nil, &CreationError{Kind: CreationRedirectLoop}
	}

	cacheDuration := fetcher.ParseCacheControlMaxAge(fetch.Response.Header.Get("Cache-Control"))
	etag := fetcher.ParseETag(fetch.Response.Header.Get("ETag"))

	parsed, err := parser.ParseResponse(fetch.Response)
	if err != nil {
		return nil, &CreationError{Kind: CreationParsingError, cause: err}
	}

	now := time.Now()
	feed := newFeedFromParsed(parsed, link, etag, cacheDuration, now)
	created, err := repository.CreateFeed(ctx, feed, parsed.Items)
	if err != nil {
		return nil, &CreationError{Kind: CreationSQLError, cause: err}
	}
	return created, nil
}

// newFeedFromParsed builds the initial feed row. The link written is the
// parsed self link, the domain is derived from the link the user supplied.
func newFeedFromParsed(parsed *entity.ParsedFeed, requestedLink string, etag *string, cacheDuration *time.Duration, now time.Time) *entity.Feed {
	var ttlInMinutes *int32
	interval := minTimeBetweenUpdates
	if cacheDuration != nil {
		minutes := int32(*cacheDuration / time.Minute)
		ttlInMinutes = &minutes
		interval = *cacheDuration
	}
	if interval < minTimeBetweenUpdates {
		interval = minTimeBetweenUpdates
	}
	if interval > maxTimeBetweenUpdates {
		interval = maxTimeBetweenUpdates
	}

	return &entity.Feed{
		Status:            entity.FeedStatusActive,
		Format:            parsed.Format,
		Link:              parsed.Link,
		Domain:            parser.DomainFromLink(requestedLink),
		Title:             parsed.Title,
		Description:       parsed.Description,
		Icon:              parsed.Icon,
		Language:          parsed.Language,
		SkipHours:         parsed.SkipHours,
		SkipDaysOfWeek:    parsed.SkipDaysOfWeek,
		TTLInMinutes:      ttlInMinutes,
		ETag:              etag,
		CreatedAt:         now,
		UpdatedAt:         now,
		FetchedAt:         now,
		SuccessfulFetchAt: now,
		NextFetchAt:       now.Add(interval),
	}
}
