// Package parser decodes RSS, Atom and JSON Feed documents into the single
// normalized entity.ParsedFeed model. Dispatch is driven by the response
// Content-Type, not by sniffing the body.
package parser

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/bind-labs/backend/internal/entity"
)

// ErrorKind enumerates feed decoding failures
type ErrorKind int

const (
	ErrUnknownContentType ErrorKind = iota
	ErrCorruptContentType
	ErrCorruptResponseBody
	ErrRssParse
	ErrAtomParse
	ErrJsonParse
	// ErrSemanticParse is a normalization failure, e.g. an item without any
	// usable identity or title
	ErrSemanticParse
)

// Error is a failed feed parse
type Error struct {
	Kind  ErrorKind
	cause error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrUnknownContentType:
		return "unknown feed content type"
	case ErrCorruptContentType:
		return fmt.Sprintf("corrupt content type header: %v", e.cause)
	case ErrCorruptResponseBody:
		return fmt.Sprintf("failure reading response body: %v", e.cause)
	case ErrRssParse:
		return fmt.Sprintf("failure parsing RSS feed: %v", e.cause)
	case ErrAtomParse:
		return fmt.Sprintf("failure parsing Atom feed: %v", e.cause)
	case ErrJsonParse:
		return fmt.Sprintf("failure parsing JSON feed: %v", e.cause)
	case ErrSemanticParse:
		return fmt.Sprintf("failure normalizing feed: %v", e.cause)
	default:
		return "unknown parse error"
	}
}

func (e *Error) Unwrap() error {
	return e.cause
}

// ParseResponse reads the response body to completion and decodes it with
// the parser selected by the first Content-Type token.
func ParseResponse(response *http.Response) (*entity.ParsedFeed, error) {
	defer response.Body.Close()

	contentType := response.Header.Get("Content-Type")
	if contentType == "" {
		return nil, &Error{Kind: ErrUnknownContentType}
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, &Error{Kind: ErrCorruptContentType, cause: err}
	}
	format, ok := entity.FeedFormatFromContentType(mediaType)
	if !ok {
		return nil, &Error{Kind: ErrUnknownContentType}
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, &Error{Kind: ErrCorruptResponseBody, cause: err}
	}
	return ParseBody(format, body)
}

// ParseBody decodes raw feed bytes with the decoder for the given format
func ParseBody(format entity.FeedFormat, body []byte) (*entity.ParsedFeed, error) {
	switch format {
	case entity.FeedFormatRSS:
		return ParseRSS(body)
	case entity.FeedFormatAtom:
		return ParseAtom(body)
	case entity.FeedFormatJSON:
		return ParseJSONFeed(body)
	default:
		return nil, &Error{Kind: ErrUnknownContentType}
	}
}

// DomainFromLink extracts the host part of the feed URL, nil if the URL does not parse
func DomainFromLink(link string) *string {
	parsed, err := url.Parse(link)
	if err != nil {
		return nil
	}
	domain := parsed.Hostname()
	if domain == "" {
		return nil
	}
	return &domain
}
