package refresher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bind-labs/backend/internal/entity"
)

type fakeFeedsRepo struct {
	mu      sync.Mutex
	feeds   []entity.Feed
	updates map[int64]*entity.FeedUpdate
	selects int
}

func newFakeFeedsRepo(feeds ...entity.Feed) *fakeFeedsRepo {
	return &fakeFeedsRepo{feeds: feeds, updates: map[int64]*entity.FeedUpdate{}}
}

func (r *fakeFeedsRepo) GetOutOfDateFeeds(ctx context.Context) ([]entity.Feed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selects++
	return r.feeds, nil
}

func (r *fakeFeedsRepo) GetByID(ctx context.Context, id int64) (*entity.Feed, error) {
	for n := range r.feeds {
		if r.feeds[n].ID == id {
			feed := r.feeds[n]
			return &feed, nil
		}
	}
	return nil, nil
}

func (r *fakeFeedsRepo) ApplyFeedUpdate(ctx context.Context, feed *entity.Feed, update *entity.FeedUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates[feed.ID] = update
	return nil
}

func (r *fakeFeedsRepo) selectCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selects
}

type fakeLease struct {
	mu        sync.Mutex
	acquired  bool
	attempts  int
	stepDowns int
}

func (l *fakeLease) TryAcquireOrRenew(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts++
	return l.acquired, nil
}

func (l *fakeLease) StepDown(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stepDowns++
	return nil
}

func testRefresher(repo FeedsRepository, leaseHandle *fakeLease, concurrency int) *Refresher {
	config := Config{TickIntervalSeconds: 1, ConcurrentUpdates: concurrency}
	metrics := NewMetricsOn(prometheus.NewRegistry())
	logger := zap.NewNop().Sugar()
	if leaseHandle == nil {
		return New(config, repo, nil, logger, opentracing.NoopTracer{}, metrics)
	}
	return New(config, repo, leaseHandle, logger, opentracing.NoopTracer{}, metrics)
}

func dueFeed(id int64, link string) entity.Feed {
	now := time.Now()
	return entity.Feed{
		ID:                id,
		Status:            entity.FeedStatusActive,
		Format:            entity.FeedFormatRSS,
		Link:              link,
		Title:             "Feed",
		UpdatedAt:         now.Add(-time.Hour),
		FetchedAt:         now.Add(-time.Hour),
		SuccessfulFetchAt: now.Add(-time.Hour),
		NextFetchAt:       now.Add(-time.Minute),
	}
}

func TestRunOnceBoundsConcurrency(t *testing.T) {
	var inFlight, maxInFlight int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt64(&inFlight, 1)
		for {
			max := atomic.LoadInt64(&maxInFlight)
			if current <= max || atomic.CompareAndSwapInt64(&maxInFlight, max, current) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(updateTestRSS))
	}))
	defer server.Close()

	feeds := make([]entity.Feed, 0, 6)
	for id := int64(1); id <= 6; id++ {
		feeds = append(feeds, dueFeed(id, server.URL))
	}
	repo := newFakeFeedsRepo(feeds...)
	r := testRefresher(repo, nil, 2)

	require.NoError(t, r.RunOnce(context.Background()))

	assert.LessOrEqual(t, atomic.LoadInt64(&maxInFlight), int64(2))
	assert.Len(t, repo.updates, 6)
}

func TestRunOnceIsolatesFailingFeeds(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(updateTestRSS))
	}))
	defer healthy.Close()
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	repo := newFakeFeedsRepo(dueFeed(1, failing.URL), dueFeed(2, healthy.URL))
	r := testRefresher(repo, nil, 4)

	require.NoError(t, r.RunOnce(context.Background()))
	require.Len(t, repo.updates, 2)

	// the failing feed only records the attempt
	assert.Nil(t, repo.updates[1].SuccessfulFetchAt)
	require.NotNil(t, repo.updates[1].FetchedAt)
	// the healthy sibling commits a full update
	require.NotNil(t, repo.updates[2].SuccessfulFetchAt)
	require.NotNil(t, repo.updates[2].Items)
}

func TestRunSkipsTicksWithoutLease(t *testing.T) {
	repo := newFakeFeedsRepo()
	leaseHandle := &fakeLease{acquired: false}
	r := testRefresher(repo, leaseHandle, 2)
	r.tickInterval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	assert.Greater(t, leaseHandle.attempts, 0)
	assert.Equal(t, 0, repo.selectCount())
	// shutdown always steps down, best effort
	assert.Equal(t, 1, leaseHandle.stepDowns)
}

func TestRunProceedsWithLease(t *testing.T) {
	repo := newFakeFeedsRepo()
	leaseHandle := &fakeLease{acquired: true}
	r := testRefresher(repo, leaseHandle, 2)
	r.tickInterval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	assert.Greater(t, repo.selectCount(), 0)
	assert.Equal(t, 1, leaseHandle.stepDowns)
}

func TestRefreshByID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(updateTestRSS))
	}))
	defer server.Close()

	repo := newFakeFeedsRepo(dueFeed(7, server.URL))
	r := testRefresher(repo, nil, 2)

	require.NoError(t, r.RefreshByID(context.Background(), 7))
	require.NotNil(t, repo.updates[7])

	err := r.RefreshByID(context.Background(), 999)
	assert.Error(t, err)
}
