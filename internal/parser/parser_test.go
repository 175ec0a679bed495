package parser

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bind-labs/backend/internal/entity"
)

func responseWith(contentType string, body string) *http.Response {
	header := http.Header{}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

const simpleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
	<channel>
		<title>Simple Feed</title>
		<link>https://example.com/feed</link>
		<description>Simple feed description</description>
	</channel>
</rss>`

func TestParseResponseDispatch(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		format      entity.FeedFormat
	}{
		{"rss", "application/rss+xml", entity.FeedFormatRSS},
		{"rss with charset", "application/rss+xml; charset=utf-8", entity.FeedFormatRSS},
		{"generic xml", "text/xml", entity.FeedFormatRSS},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParseResponse(responseWith(tt.contentType, simpleRSS))
			require.NoError(t, err)
			assert.Equal(t, tt.format, parsed.Format)
		})
	}
}

func TestParseResponseUnknownContentType(t *testing.T) {
	_, err := ParseResponse(responseWith("text/html", "<html></html>"))
	var parseErr *Error
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, ErrUnknownContentType, parseErr.Kind)
}

func TestParseResponseMissingContentType(t *testing.T) {
	_, err := ParseResponse(responseWith("", simpleRSS))
	var parseErr *Error
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, ErrUnknownContentType, parseErr.Kind)
}

func TestParseResponseCorruptContentType(t *testing.T) {
	_, err := ParseResponse(responseWith("application/;;;", simpleRSS))
	var parseErr *Error
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, ErrCorruptContentType, parseErr.Kind)
}

func TestFeedFormatFromContentType(t *testing.T) {
	tests := []struct {
		contentType string
		format      entity.FeedFormat
		known       bool
	}{
		{"application/rss+xml", entity.FeedFormatRSS, true},
		{"application/rss", entity.FeedFormatRSS, true},
		{"text/xml", entity.FeedFormatRSS, true},
		{"text/rss+xml", entity.FeedFormatRSS, true},
		{"application/atom+xml", entity.FeedFormatAtom, true},
		{"application/atom", entity.FeedFormatAtom, true},
		{"text/atom+xml", entity.FeedFormatAtom, true},
		{"text/atom", entity.FeedFormatAtom, true},
		{"application/json", entity.FeedFormatJSON, true},
		{"text/json", entity.FeedFormatJSON, true},
		{"text/html", "", false},
		{"application/octet-stream", "", false},
	}
	for _, tt := range tests {
		format, known := entity.FeedFormatFromContentType(tt.contentType)
		assert.Equal(t, tt.known, known, tt.contentType)
		assert.Equal(t, tt.format, format, tt.contentType)
	}
}

func TestDomainFromLink(t *testing.T) {
	domain := DomainFromLink("https://blog.example.com/feed.xml")
	require.NotNil(t, domain)
	assert.Equal(t, "blog.example.com", *domain)

	assert.Nil(t, DomainFromLink("not a url at all\x7f"))
	assert.Nil(t, DomainFromLink("relative/path"))
}
