package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	otLog "github.com/opentracing/opentracing-go/log"

	"github.com/bind-labs/backend/internal/entity"
)

type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
}

// FeedsRefreshProducer provides methods to request feed refreshes via messaging subsystem
type FeedsRefreshProducer interface {
	SendRefreshOne(context.Context, int64) error
	SendRefreshAll(context.Context) error
}

// FeedsRepository defines repository methods used by the processor
type FeedsRepository interface {
	GetAll(context.Context) ([]entity.Feed, error)
}

// FeedsRefresher runs the actual refresh of a single feed
type FeedsRefresher interface {
	RefreshByID(ctx context.Context, id int64) error
}

// Handler for consumer
type feedsRefreshProcessor struct {
	repository FeedsRepository
	refresher  FeedsRefresher
	producer   FeedsRefreshProducer
	logger     Logger
	tracer     opentracing.Tracer
}

// NewFeedsRefreshProcessor creates processor for messaging feeds operations
func NewFeedsRefreshProcessor(repository FeedsRepository, refresher FeedsRefresher, producer FeedsRefreshProducer, logger Logger, tracer opentracing.Tracer) *feedsRefreshProcessor {
	return &feedsRefreshProcessor{
		repository,
		refresher,
		producer,
		logger,
		tracer,
	}
}

// Process is a gateway for message consumption - handles incoming data and calls related handlers.
// It uses json.RawMessage to delay the unmarshalling of message content - Type is unmarshalled first.
func (p *feedsRefreshProcessor) Process(data []byte) error {
	var msg json.RawMessage
	message := MessageEnvelope{Msg: &msg}
	if err := json.Unmarshal(data, &message); err != nil {
		return err
	}
	// Setup tracing span
	messageSpanContext, err := p.tracer.Extract(opentracing.TextMap, opentracing.TextMapCarrier(message.Metadata))
	if err != nil {
		p.logger.Debug("No tracing information in message metadata: ", err)
	}
	span := p.tracer.StartSpan("process-message", opentracing.FollowsFrom(messageSpanContext))
	defer span.Finish()
	ext.Component.Set(span, "feedsRefreshProcessor")
	ctx := opentracing.ContextWithSpan(context.Background(), span)

	switch message.Type {
	case FeedsRefreshOne:
		var msgContent FeedsRefreshOneMsg
		if err := json.Unmarshal(msg, &msgContent); err != nil {
			p.logger.Error("Failure unmarshalling FeedsRefreshOneMsg content: ", err)
			span.LogFields(
				otLog.Error(err),
			)
			return err
		}
		return p.refreshFeed(ctx, msgContent.FeedID)
	case FeedsRefreshAll:
		// No body here, just refresh
		return p.refreshAllFeeds(ctx)
	default:
		p.logger.Error("Undefined message type: ", message.Type)
		span.LogFields(
			otLog.Error(fmt.Errorf("undefined message type: %v", message.Type)),
		)
		return fmt.Errorf("undefined message type: %v", message.Type)
	}
}

// refreshFeed refreshes single feed immediately, bypassing its wake time
func (p *feedsRefreshProcessor) refreshFeed(ctx context.Context, feedID int64) error {
	span, ctx := p.setupTracingSpan(ctx, "refresh-feed")
	defer span.Finish()
	span.SetTag("feed.id", feedID)

	if err := p.refresher.RefreshByID(ctx, feedID); err != nil {
		span.LogFields(
			otLog.Error(err),
		)
		return err
	}
	span.LogKV("event", "refreshed feed")
	p.logger.Info("Successfully refreshed feed ", feedID)
	return nil
}

// refreshAllFeeds gets all feeds ids from db and pushes per-feed messages to process
func (p *feedsRefreshProcessor) refreshAllFeeds(ctx context.Context) error {
	span, ctx := p.setupTracingSpan(ctx, "refresh-all-feeds")
	defer span.Finish()

	dbFeeds, err := p.repository.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("couldn't get feeds from repository, %w", err)
	}
	if len(dbFeeds) == 0 {
		span.LogKV("event", "no feeds to refresh")
		return nil
	}
	p.logger.Debug("Got ", len(dbFeeds), " feeds to refresh from db")
	for _, dbFeed := range dbFeeds {
		if err := p.producer.SendRefreshOne(ctx, dbFeed.ID); err != nil {
			p.logger.Error("Failure publishing feed refresh for feed ", dbFeed.ID, ": ", err)
			continue
		}
		p.logger.Debug("Published feed refresh for feed ", dbFeed.ID)
	}
	span.LogKV("event", "finished sending feeds refresh")
	return nil
}

func (p *feedsRefreshProcessor) setupTracingSpan(ctx context.Context, name string) (opentracing.Span, context.Context) {
	span, ctx := opentracing.StartSpanFromContextWithTracer(ctx, p.tracer, name)
	ext.Component.Set(span, "feedsRefreshProcessor")
	return span, ctx
}
