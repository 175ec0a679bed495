package fetcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCacheControlMaxAge(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   *time.Duration
	}{
		{"single directive", "max-age=3600", durationPtr(time.Hour)},
		{"among directives", "public, max-age=900, must-revalidate", durationPtr(15 * time.Minute)},
		{"case insensitive", "Public, Max-Age=60", durationPtr(time.Minute)},
		{"zero", "max-age=0", durationPtr(0)},
		{"malformed value", "max-age=soon", nil},
		{"negative value", "max-age=-5", nil},
		{"missing directive", "no-cache, no-store", nil},
		{"empty header", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCacheControlMaxAge(tt.header)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestParseRetryAfterSeconds(t *testing.T) {
	now := time.Now()
	got := ParseRetryAfter("120", now)
	require.NotNil(t, got)
	assert.Equal(t, 2*time.Minute, *got)
}

func TestParseRetryAfterHTTPDate(t *testing.T) {
	now := time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)
	got := ParseRetryAfter(now.Add(30*time.Minute).Format("Mon, 02 Jan 2006 15:04:05 GMT"), now)
	require.NotNil(t, got)
	assert.Equal(t, 30*time.Minute, *got)
}

func TestParseRetryAfterUnparseable(t *testing.T) {
	assert.Nil(t, ParseRetryAfter("tomorrow", time.Now()))
	assert.Nil(t, ParseRetryAfter("", time.Now()))
}

func TestParseETag(t *testing.T) {
	assert.Nil(t, ParseETag(""))
	etag := ParseETag(`W/"xyzzy"`)
	require.NotNil(t, etag)
	// validators pass through verbatim, weak markers included
	assert.Equal(t, `W/"xyzzy"`, *etag)
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}
