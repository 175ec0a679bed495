package parser

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bind-labs/backend/internal/entity"
)

func TestParseRSSSimpleFeed(t *testing.T) {
	parsed, err := ParseRSS([]byte(simpleRSS))
	require.NoError(t, err)

	assert.Equal(t, entity.FeedFormatRSS, parsed.Format)
	assert.Equal(t, "https://example.com/feed", parsed.Link)
	require.NotNil(t, parsed.Domain)
	assert.Equal(t, "example.com", *parsed.Domain)
	assert.Equal(t, "Simple Feed", parsed.Title)
	assert.Equal(t, "Simple feed description", parsed.Description)
	assert.Len(t, parsed.Items, 0)
	assert.Nil(t, parsed.Icon)
	assert.Equal(t, int32(0), parsed.TTLInMinutes)
}

func TestParseRSSFeedWithItems(t *testing.T) {
	feed := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
	<channel>
		<title>Feed with items</title>
		<link>https://example.com/feed</link>
		<description>Feed with items description</description>
		<item>
			<title>A Brief History of Code Signing at Mozilla</title>
			<link>https://example.com/item1</link>
			<description>Item 1 description</description>
			<guid>item-1</guid>
		</item>
		<item>
			<title>Item 2</title>
			<link>https://example.com/item2</link>
			<description>Item 2 description</description>
			<enclosure url="https://example.com/item2.mp3" length="1024" type="audio/mpeg" />
		</item>
	</channel>
</rss>`
	parsed, err := ParseRSS([]byte(feed))
	require.NoError(t, err)
	require.Len(t, parsed.Items, 2)

	assert.Equal(t, "item-1", parsed.Items[0].GUID)
	assert.Equal(t, "A Brief History of Code Signing at Mozilla", parsed.Items[0].Title)

	second := parsed.Items[1]
	assert.Equal(t, "Item 2", second.Title)
	// no guid element, the link becomes the identity
	assert.Equal(t, "https://example.com/item2", second.GUID)
	require.NotNil(t, second.Link)
	assert.Equal(t, "https://example.com/item2", *second.Link)
	require.NotNil(t, second.Description)
	assert.Equal(t, "Item 2 description", *second.Description)
	require.NotNil(t, second.Enclosure)
	assert.Equal(t, entity.FeedItemEnclosure{URL: "https://example.com/item2.mp3", Length: 1024, MimeType: "audio/mpeg"}, *second.Enclosure)
}

func TestParseRSSChannelMetadata(t *testing.T) {
	feed := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
	<channel>
		<title>Full Feed</title>
		<link>https://example.com/feed</link>
		<description>desc</description>
		<language>en-us</language>
		<ttl>90</ttl>
		<lastBuildDate>Mon, 01 Mar 2021 12:00:00 +0000</lastBuildDate>
		<image>
			<url>https://example.com/icon.png</url>
			<title>Full Feed</title>
			<link>https://example.com</link>
		</image>
		<skipHours>
			<hour>0</hour>
			<hour>23</hour>
			<hour>24</hour>
			<hour>nope</hour>
		</skipHours>
		<skipDays>
			<day>Sunday</day>
			<day>monday</day>
			<day>SATURDAY</day>
			<day>Caturday</day>
		</skipDays>
	</channel>
</rss>`
	parsed, err := ParseRSS([]byte(feed))
	require.NoError(t, err)

	assert.Equal(t, []int32{0, 23}, parsed.SkipHours)
	assert.Equal(t, []int32{0, 1, 6}, parsed.SkipDaysOfWeek)
	assert.Equal(t, int32(90), parsed.TTLInMinutes)
	require.NotNil(t, parsed.Icon)
	assert.Equal(t, "https://example.com/icon.png", *parsed.Icon)
	require.NotNil(t, parsed.Language)
	assert.Equal(t, "en-us", *parsed.Language)
	require.NotNil(t, parsed.UpdatedAt)
	assert.Equal(t, time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC), parsed.UpdatedAt.UTC())
}

func TestParseRSSItemGuidFallbacks(t *testing.T) {
	// neither guid nor link, the title becomes the identity
	feed := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
	<channel>
		<title>f</title><link>https://example.com</link><description>d</description>
		<item><title>Only a title</title></item>
	</channel>
</rss>`
	parsed, err := ParseRSS([]byte(feed))
	require.NoError(t, err)
	require.Len(t, parsed.Items, 1)
	assert.Equal(t, "Only a title", parsed.Items[0].GUID)
}

func TestParseRSSItemWithoutIdentityRejected(t *testing.T) {
	feed := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
	<channel>
		<title>f</title><link>https://example.com</link><description>d</description>
		<item><comments>https://example.com/comments</comments></item>
	</channel>
</rss>`
	_, err := ParseRSS([]byte(feed))
	var parseErr *Error
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, ErrSemanticParse, parseErr.Kind)
}

func TestParseRSSItemInvalidEnclosureLength(t *testing.T) {
	feed := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
	<channel>
		<title>f</title><link>https://example.com</link><description>d</description>
		<item>
			<title>t</title>
			<enclosure url="https://example.com/a.mp3" length="huge" type="audio/mpeg" />
		</item>
	</channel>
</rss>`
	parsed, err := ParseRSS([]byte(feed))
	require.NoError(t, err)
	require.NotNil(t, parsed.Items[0].Enclosure)
	assert.Equal(t, int32(0), parsed.Items[0].Enclosure.Length)
}

func TestParseRSSItemPubDate(t *testing.T) {
	feed := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
	<channel>
		<title>f</title><link>https://example.com</link><description>d</description>
		<item><title>t</title><pubDate>2021-03-01T12:00:00Z</pubDate></item>
	</channel>
</rss>`
	parsed, err := ParseRSS([]byte(feed))
	require.NoError(t, err)
	require.NotNil(t, parsed.Items[0].PublishedAt)
	assert.Equal(t, time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC), parsed.Items[0].PublishedAt.UTC())
}

func TestParseRSSItemUnparseablePubDateRejected(t *testing.T) {
	feed := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
	<channel>
		<title>f</title><link>https://example.com</link><description>d</description>
		<item><title>t</title><pubDate>yesterday</pubDate></item>
	</channel>
</rss>`
	_, err := ParseRSS([]byte(feed))
	var parseErr *Error
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, ErrSemanticParse, parseErr.Kind)
}

func TestParseRSSMalformedDocument(t *testing.T) {
	_, err := ParseRSS([]byte("<not really xml"))
	var parseErr *Error
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, ErrRssParse, parseErr.Kind)
}
