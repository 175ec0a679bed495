package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies a successful fetch
type Kind int

const (
	// Modified means the server returned fresh content (200)
	Modified Kind = iota
	// NotModified means validators matched (304)
	NotModified
	// Moved means the feed moved permanently (301) and the link must be rewritten
	Moved
)

// Fetch is the outcome of one conditional GET. Response is set for Modified
// and NotModified (the caller owns closing the body), Location for Moved.
type Fetch struct {
	Kind     Kind
	Response *http.Response
	Location string
}

// ErrorKind enumerates protocol and transport fetch failures
type ErrorKind int

const (
	ErrNotFound ErrorKind = iota
	ErrBadRequest
	ErrForbidden
	ErrRateLimited
	ErrMovedWithoutLocation
	ErrServerError
	ErrUnexpectedError
	ErrTransport
)

// Error is a failed feed fetch. Status is set for ServerError and
// UnexpectedError, RetryAfter for RateLimited.
type Error struct {
	Kind       ErrorKind
	Status     int
	RetryAfter time.Duration
	cause      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrNotFound:
		return "feed no longer exists"
	case ErrBadRequest:
		return "sent a bad request to the server"
	case ErrForbidden:
		return "not allowed to access the feed"
	case ErrRateLimited:
		return fmt.Sprintf("feed is rate limited for %s", e.RetryAfter)
	case ErrMovedWithoutLocation:
		return "feed moved without providing a new location"
	case ErrServerError:
		return fmt.Sprintf("feed server failed with status code: %d", e.Status)
	case ErrUnexpectedError:
		return fmt.Sprintf("feed server responded with an unexpected status code: %d", e.Status)
	case ErrTransport:
		return fmt.Sprintf("feed request failed: %v", e.cause)
	default:
		return "unknown fetch error"
	}
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Expected reports whether the failure is routine for dead or throttling
// feeds and should not be logged as an error.
func (e *Error) Expected() bool {
	return e.Kind == ErrNotFound || e.Kind == ErrForbidden || e.Kind == ErrRateLimited
}

// defaultRateLimit applies when a 429 carries no usable Retry-After
const defaultRateLimit = time.Hour

// FetchFeed issues a conditional GET for the feed link. The stored updatedAt
// becomes If-Modified-Since, the stored etag becomes If-None-Match.
// Status dispatch is exhaustive: 200/304/301 are outcomes, everything else
// is a typed *Error.
func FetchFeed(ctx context.Context, client *http.Client, link string, updatedAt *time.Time, etag *string) (*Fetch, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, &Error{Kind: ErrTransport, cause: err}
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", userAgent())
	if updatedAt != nil {
		req.Header.Set("If-Modified-Since", updatedAt.UTC().Format(http.TimeFormat))
	}
	if etag != nil {
		req.Header.Set("If-None-Match", *etag)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{Kind: ErrTransport, cause: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return &Fetch{Kind: Modified, Response: resp}, nil
	case resp.StatusCode == http.StatusNotModified:
		return &Fetch{Kind: NotModified, Response: resp}, nil

	case resp.StatusCode == http.StatusMovedPermanently:
		defer resp.Body.Close()
		location := resp.Header.Get("Location")
		if location == "" {
			return nil, &Error{Kind: ErrMovedWithoutLocation}
		}
		return &Fetch{Kind: Moved, Location: location}, nil

	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, &Error{Kind: ErrNotFound}
	case resp.StatusCode == http.StatusBadRequest:
		resp.Body.Close()
		return nil, &Error{Kind: ErrBadRequest}
	case resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return nil, &Error{Kind: ErrForbidden}

	case resp.StatusCode == http.StatusTooManyRequests:
		defer resp.Body.Close()
		retryAfter := defaultRateLimit
		if d := ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()); d != nil {
			retryAfter = *d
		}
		return nil, &Error{Kind: ErrRateLimited, RetryAfter: retryAfter}

	case resp.StatusCode >= 500 && resp.StatusCode <= 599:
		resp.Body.Close()
		return nil, &Error{Kind: ErrServerError, Status: resp.StatusCode}

	default:
		resp.Body.Close()
		return nil, &Error{Kind: ErrUnexpectedError, Status: resp.StatusCode}
	}
}
