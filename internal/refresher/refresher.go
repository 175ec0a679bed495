// Package refresher is the feed refresh engine: the periodic driver that
// selects due feeds, a bounded worker pool that fetches and parses them, the
// next fetch planner and the bootstrap path for first time feed creation.
package refresher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	otLog "github.com/opentracing/opentracing-go/log"

	"github.com/bind-labs/backend/internal/entity"
	"github.com/bind-labs/backend/internal/fetcher"
	"github.com/bind-labs/backend/internal/lease"
)

type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
}

// FeedsRepository defines the repository methods used by the refresh engine
type FeedsRepository interface {
	GetOutOfDateFeeds(ctx context.Context) ([]entity.Feed, error)
	GetByID(ctx context.Context, id int64) (*entity.Feed, error)
	ApplyFeedUpdate(ctx context.Context, feed *entity.Feed, update *entity.FeedUpdate) error
}

// Config defines refresher configuration, usable for Viper
type Config struct {
	TickIntervalSeconds int    `mapstructure:"tick_interval_seconds"`
	ConcurrentUpdates   int    `mapstructure:"concurrent_updates"`
	LeaseName           string `mapstructure:"lease_name"`
	LeaseNamespace      string `mapstructure:"lease_namespace"`
	MetricsAddress      string `mapstructure:"metrics_address"`
}

// Refresher drives periodic feed refreshes on exactly one replica at a time
type Refresher struct {
	repository        FeedsRepository
	client            *http.Client
	leaseHandle       lease.Lease
	logger            Logger
	tracer            opentracing.Tracer
	metrics           *Metrics
	tickInterval      time.Duration
	concurrentUpdates int
}

// New creates the refresher. leaseHandle may be nil, in that case every tick
// proceeds (single process deployment).
func New(config Config, repository FeedsRepository, leaseHandle lease.Lease, logger Logger, tracer opentracing.Tracer, metrics *Metrics) *Refresher {
	tickInterval := time.Duration(config.TickIntervalSeconds) * time.Second
	if tickInterval <= 0 {
		tickInterval = time.Minute
	}
	concurrentUpdates := config.ConcurrentUpdates
	if concurrentUpdates <= 0 {
		concurrentUpdates = 10
	}
	return &Refresher{
		repository:        repository,
		client:            fetcher.NewClient(fetcher.ModeRefresh),
		leaseHandle:       leaseHandle,
		logger:            logger,
		tracer:            tracer,
		metrics:           metrics,
		tickInterval:      tickInterval,
		concurrentUpdates: concurrentUpdates,
	}
}

// Run ticks until the context is cancelled. On shutdown the current tick is
// allowed to drain and the lease is stepped down, best effort.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()

	r.logger.Info("Started feeds refresher, tick interval ", r.tickInterval, ", concurrency ", r.concurrentUpdates)
	for {
		select {
		case <-ctx.Done():
			r.stepDown()
			r.logger.Info("Stopped feeds refresher")
			return
		case <-ticker.C:
			if !r.acquireLease(ctx) {
				continue
			}
			if err := r.RunOnce(ctx); err != nil {
				r.metrics.TicksSkipped.Inc()
				r.logger.Error("Failure running refresh tick: ", err)
			}
		}
	}
}

// acquireLease renews or acquires the configured lease, true when this
// replica may refresh. Without a configured lease it always proceeds.
func (r *Refresher) acquireLease(ctx context.Context) bool {
	if r.leaseHandle == nil {
		return true
	}
	acquired, err := r.leaseHandle.TryAcquireOrRenew(ctx)
	if err != nil {
		r.metrics.TicksSkipped.Inc()
		r.logger.Error("Failure acquiring refresher lease: ", err)
		return false
	}
	if !acquired {
		r.metrics.LeaseHeld.Set(0)
		r.metrics.TicksSkipped.Inc()
		r.logger.Debug("Refresher lease is held by another replica, skipping tick")
		return false
	}
	r.metrics.LeaseHeld.Set(1)
	return true
}

func (r *Refresher) stepDown() {
	if r.leaseHandle == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.leaseHandle.StepDown(ctx); err != nil {
		r.logger.Warn("Failure stepping down refresher lease: ", err)
	}
	r.metrics.LeaseHeld.Set(0)
}

// RunOnce selects all due feeds and refreshes them through the worker pool.
// It returns after the whole batch committed, so a failing batch surfaces on
// its own tick.
func (r *Refresher) RunOnce(ctx context.Context) error {
	span, ctx := r.setupTracingSpan(ctx, "refresh-due-feeds")
	defer span.Finish()

	feeds, err := r.repository.GetOutOfDateFeeds(ctx)
	if err != nil {
		span.LogFields(otLog.Error(err))
		return fmt.Errorf("couldn't get due feeds from repository, %w", err)
	}
	r.metrics.DueFeeds.Set(float64(len(feeds)))
	if len(feeds) == 0 {
		span.LogKV("event", "no due feeds")
		return nil
	}
	r.logger.Debug("Got ", len(feeds), " due feeds to refresh from db")

	// Shutdown only stops scheduling, jobs already dispatched run to completion
	jobCtx := context.WithoutCancel(ctx)
	sem := make(chan struct{}, r.concurrentUpdates)
	var wg sync.WaitGroup
	for n := range feeds {
		feed := feeds[n]
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			r.UpdateFeed(jobCtx, &feed)
		}()
	}
	wg.Wait()
	span.LogKV("event", "refreshed due feeds")
	return nil
}

// UpdateFeed runs one refresh job, fetch then plan then reconcile.
// Every error is absorbed into the committed update and logged, sibling
// feeds are unaffected.
func (r *Refresher) UpdateFeed(ctx context.Context, feed *entity.Feed) {
	span, ctx := r.setupTracingSpan(ctx, "update-feed")
	defer span.Finish()
	span.SetTag("feed.id", feed.ID)
	span.SetTag("feed.url", feed.Link)
	start := time.Now()

	updatedAt := feed.UpdatedAt
	fetch, fetchErr := fetcher.FetchFeed(ctx, r.client, feed.Link, &updatedAt, feed.ETag)
	if fetchErr != nil {
		span.LogFields(otLog.Error(fetchErr))
		var typed *fetcher.Error
		if errors.As(fetchErr, &typed) && typed.Expected() {
			r.logger.Debug("Feed ", feed.ID, " fetch skipped: ", fetchErr)
		} else {
			r.logger.Error("Failure fetching feed ", feed.ID, " from ", feed.Link, ": ", fetchErr)
		}
	}

	update := GetFeedUpdate(fetch, fetchErr, feed, time.Now())
	if err := r.repository.ApplyFeedUpdate(ctx, feed, update); err != nil {
		span.LogFields(otLog.Error(err))
		r.metrics.RefreshTotal.WithLabelValues("error").Inc()
		r.logger.Error("Failure applying update for feed ", feed.ID, ": ", err)
		return
	}

	r.metrics.RefreshTotal.WithLabelValues(outcomeLabel(fetch, fetchErr)).Inc()
	r.metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	span.LogKV("event", "applied feed update")
	r.logger.Debug("Refreshed feed ", feed.ID)
}

// RefreshByID refreshes one feed immediately, bypassing next_fetch_at.
// Used by the messaging consumer for manual refresh triggers.
func (r *Refresher) RefreshByID(ctx context.Context, id int64) error {
	feed, err := r.repository.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("couldn't get feed from repository, %w", err)
	}
	if feed == nil {
		return fmt.Errorf("repository doesn't have feed with id %d", id)
	}
	r.UpdateFeed(ctx, feed)
	return nil
}

func outcomeLabel(fetch *fetcher.Fetch, fetchErr error) string {
	if fetchErr != nil {
		var typed *fetcher.Error
		if errors.As(fetchErr, &typed) && typed.Kind == fetcher.ErrRateLimited {
			return "rate_limited"
		}
		return "fetch_error"
	}
	switch fetch.Kind {
	case fetcher.Modified:
		return "modified"
	case fetcher.NotModified:
		return "not_modified"
	case fetcher.Moved:
		return "moved"
	default:
		return "unknown"
	}
}

func (r *Refresher) setupTracingSpan(ctx context.Context, name string) (opentracing.Span, context.Context) {
	span, ctx := opentracing.StartSpanFromContextWithTracer(ctx, r.tracer, name)
	ext.Component.Set(span, "refresher")
	return span, ctx
}
