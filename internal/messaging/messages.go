package messaging

const (
	// Enumeration type to specify Type in messages in order to efficiently unmarshal variable params messages
	FeedsRefreshOne MessageType = iota
	FeedsRefreshAll
)

// MessageType defines types of messages
//go:generate stringer -type=MessageType
type MessageType uint

// MessageEnvelope defines shared fields for message with message type as action key, any metadata (e.g. opentracing) and Msg as actual message body content
type MessageEnvelope struct {
	Type     MessageType       `json:"type,int"`
	Metadata map[string]string `json:"metadata,string"`
	Msg      interface{}
}

// FeedsRefreshOneMsg is used to trigger immediate refresh of one feed by its id
type FeedsRefreshOneMsg struct {
	FeedID int64 `json:"feed_id"`
}

// FeedsRefreshAllMsg is used to trigger refresh of all feeds
type FeedsRefreshAllMsg struct {
}

// NewFeedsRefreshOneMessage returns message envelope with action to refresh one feed
func NewFeedsRefreshOneMessage(feedID int64) *MessageEnvelope {
	return &MessageEnvelope{
		Type: FeedsRefreshOne,
		Msg:  FeedsRefreshOneMsg{FeedID: feedID},
	}
}

// NewFeedsRefreshAllMessage returns message with action to refresh all feeds
func NewFeedsRefreshAllMessage() *MessageEnvelope {
	return &MessageEnvelope{
		Type: FeedsRefreshAll,
		Msg:  FeedsRefreshAllMsg{},
	}
}
