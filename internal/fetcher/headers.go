package fetcher

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ParseCacheControlMaxAge scans the Cache-Control header for a max-age
// directive and returns it as duration. Directives are matched case
// insensitively, malformed values are ignored.
func ParseCacheControlMaxAge(header string) *time.Duration {
	for _, directive := range strings.Split(header, ",") {
		directive = strings.TrimSpace(directive)
		if !strings.HasPrefix(strings.ToLower(directive), "max-age=") {
			continue
		}
		parts := strings.SplitN(directive, "=", 2)
		if len(parts) != 2 {
			continue
		}
		age, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 32)
		if err != nil {
			continue
		}
		d := time.Duration(age) * time.Second
		return &d
	}
	return nil
}

// ParseRetryAfter reads a Retry-After header value, integer seconds first
// with HTTP-date fallback. Unparseable values return nil.
func ParseRetryAfter(header string, now time.Time) *time.Duration {
	if header == "" {
		return nil
	}
	if seconds, err := strconv.ParseInt(header, 10, 64); err == nil {
		d := time.Duration(seconds) * time.Second
		return &d
	}
	if at, err := http.ParseTime(header); err == nil {
		d := at.Sub(now)
		return &d
	}
	return nil
}

// ParseETag passes the validator through verbatim, no weak/strong normalization
func ParseETag(header string) *string {
	if header == "" {
		return nil
	}
	return &header
}
