package messaging

import (
	"context"
	"encoding/json"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	otLog "github.com/opentracing/opentracing-go/log"
)

// MessageProducer is used to publish messages
type MessageProducer interface {
	Publish([]byte) error
}

// NewFeedsRefreshProducer returns producer to publish feeds refresh messages
func NewFeedsRefreshProducer(producer MessageProducer, tracer opentracing.Tracer) *feedsRefreshProducer {
	return &feedsRefreshProducer{producer, tracer}
}

type feedsRefreshProducer struct {
	producer MessageProducer
	tracer   opentracing.Tracer
}

func (p *feedsRefreshProducer) setupTracingSpan(ctx context.Context, name string) (opentracing.Span, context.Context) {
	span, ctx := opentracing.StartSpanFromContextWithTracer(ctx, p.tracer, name)
	ext.Component.Set(span, "feedsRefreshProducer")
	return span, ctx
}

// SendRefreshOne publishes immediate refresh request for single feed
func (p *feedsRefreshProducer) SendRefreshOne(ctx context.Context, feedID int64) error {
	span, _ := p.setupTracingSpan(ctx, "send-refresh-one-feed")
	defer span.Finish()
	carrier := opentracing.TextMapCarrier{}
	err := span.Tracer().Inject(span.Context(), opentracing.TextMap, carrier)
	if err != nil {
		return err
	}
	span.SetTag("feed.id", feedID)
	message := NewFeedsRefreshOneMessage(feedID)
	message.Metadata = carrier
	msgbytes, err := json.Marshal(message)
	if err != nil {
		span.LogFields(
			otLog.Error(err),
		)
		return err
	}
	span.LogKV("event", "sent refresh one feed message")
	return p.producer.Publish(msgbytes)
}

// SendRefreshAll publishes refresh request for all feeds
func (p *feedsRefreshProducer) SendRefreshAll(ctx context.Context) error {
	span, _ := p.setupTracingSpan(ctx, "send-refresh-all-feeds")
	defer span.Finish()
	carrier := opentracing.TextMapCarrier{}
	err := span.Tracer().Inject(span.Context(), opentracing.TextMap, carrier)
	if err != nil {
		return err
	}
	message := NewFeedsRefreshAllMessage()
	message.Metadata = carrier
	msgbytes, err := json.Marshal(message)
	if err != nil {
		span.LogFields(
			otLog.Error(err),
		)
		return err
	}
	err = p.producer.Publish(msgbytes)
	if err != nil {
		span.LogFields(
			otLog.Error(err),
		)
		return err
	}
	span.LogKV("event", "sent refresh all feeds message")
	return err
}
