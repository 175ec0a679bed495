package fetcher

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bind-labs/backend/internal/version"
)

const (
	// acceptHeader prefers feed content types over generic XML
	acceptHeader = "application/rss+xml, application/xml, application/atom+xml, application/json, text/xml;q=0.9"
	// requestTimeout bounds a single feed retrieval, headers to full body
	requestTimeout = 30 * time.Second

	maxRefreshRedirects   = 5
	maxBootstrapRedirects = 20
)

// ErrTooManyRedirects is returned by the redirect policy when the hop limit is exceeded
var ErrTooManyRedirects = errors.New("too many redirects")

// ClientMode selects the redirect policy of the shared HTTP client
type ClientMode int

const (
	// ModeRefresh follows up to 5 temporary redirects and surfaces 301
	// so that the feed link can be rewritten
	ModeRefresh ClientMode = iota
	// ModeBootstrap follows up to 20 redirects of any kind during initial feed creation
	ModeBootstrap
)

// NewClient creates the shared feeds HTTP client. It is safe for concurrent use
// and is reused by all refresh workers.
func NewClient(mode ClientMode) *http.Client {
	checkRedirect := func(req *http.Request, via []*http.Request) error {
		if req.Response != nil && req.Response.StatusCode == http.StatusMovedPermanently {
			return http.ErrUseLastResponse
		}
		if len(via) > maxRefreshRedirects {
			return ErrTooManyRedirects
		}
		return nil
	}
	if mode == ModeBootstrap {
		checkRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) > maxBootstrapRedirects {
				return ErrTooManyRedirects
			}
			return nil
		}
	}
	return &http.Client{
		Timeout:       requestTimeout,
		CheckRedirect: checkRedirect,
	}
}

// userAgent identifies the product to feed publishers
func userAgent() string {
	return fmt.Sprintf("Bind/%s", version.Version)
}
