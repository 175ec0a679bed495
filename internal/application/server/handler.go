package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bind-labs/backend/internal/discovery"
	"github.com/bind-labs/backend/internal/entity"
	"github.com/bind-labs/backend/internal/refresher"

	"github.com/asaskevich/govalidator"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	otLog "github.com/opentracing/opentracing-go/log"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
)

type contextKey string

const feedContextKey contextKey = "feed"

// FeedResponse defines Feed response with Body and any additional headers
// swagger:response
type FeedResponse struct {
	// in: body
	Body FeedResponseBody
}

// FeedResponseBody is returned on successfull operations to get or create feed.
type FeedResponseBody struct {
	// swagger:allOf
	*entity.Feed
}

// Render converts FeedResponseBody to json and sends it to client
func (fp *FeedResponse) Render(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, fp.Body)
}

// NewFeedResponse creates new response struct body for feed
func NewFeedResponse(f *entity.Feed) *FeedResponse {
	return &FeedResponse{Body: FeedResponseBody{
		Feed: f,
	}}
}

// Used as middleware to load an feed object from the URL parameters passed through as the request.
// If not found - 404
func (s *Server) feedCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		span, ctx := s.setupTracingSpan(r, "retrieve-feed-middleware")
		defer span.Finish()

		feedIDParam := chi.URLParam(r, "id")
		feedID, err := strconv.ParseInt(feedIDParam, 10, 64)
		if err != nil {
			ext.HTTPStatusCode.Set(span, http.StatusBadRequest)
			span.LogFields(
				otLog.Error(err),
			)
			ErrInvalidRequest(fmt.Errorf("wrong feed id format: %w", err)).Render(w, r)
			return
		}
		span.SetTag("feed.id", feedID)
		dbFeed, err := s.repository.GetByID(ctx, feedID)
		if err != nil {
			ext.HTTPStatusCode.Set(span, http.StatusInternalServerError)
			ErrInternal(err).Render(w, r)
			return
		}
		// empty result
		if dbFeed == nil {
			ext.HTTPStatusCode.Set(span, http.StatusNotFound)
			ErrNotFound.Render(w, r)
			return
		}
		span.LogKV("event", "got feed from repository")
		ctx = context.WithValue(ctx, feedContextKey, dbFeed)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

var isRequestableURL = validation.NewStringRuleWithError(
	govalidator.IsRequestURL,
	validation.NewError("validation_is_request_url", "must be an absolute URL with a scheme"))

// CreateFeedRequestBody defines data to bootstrap a feed
type CreateFeedRequestBody struct {
	Link string `json:"link"`
}

// Validate request body
func (b CreateFeedRequestBody) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Link, validation.Required, validation.Length(5, 2083), is.URL, isRequestableURL),
	)
}

// Bind implements Bind interface for chi Bind to map request body to request body struct
func (b *CreateFeedRequestBody) Bind(r *http.Request) error {
	return b.Validate()
}

// DiscoverFeedsRequestBody defines the page to search feed links on
type DiscoverFeedsRequestBody struct {
	Link string `json:"link"`
}

// Validate request body
func (b DiscoverFeedsRequestBody) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Link, validation.Required, validation.Length(5, 2083), is.URL, isRequestableURL),
	)
}

// Bind implements Bind interface for chi Bind to map request body to request body struct
func (b *DiscoverFeedsRequestBody) Bind(r *http.Request) error {
	return b.Validate()
}

// Response with all feeds
func (s *Server) getFeeds(w http.ResponseWriter, r *http.Request) {
	span, ctx := s.setupTracingSpan(r, "get-feeds")
	defer span.Finish()
	feeds, err := s.repository.GetAll(ctx)
	if err != nil {
		ext.HTTPStatusCode.Set(span, http.StatusInternalServerError)
		ErrInternal(err).Render(w, r)
		return
	}
	ext.HTTPStatusCode.Set(span, http.StatusOK)
	span.LogKV("event", "got feeds")
	render.JSON(w, r, feeds)
}

// Response with single feed
func (s *Server) getFeed(w http.ResponseWriter, r *http.Request) {
	span, _ := s.setupTracingSpan(r, "get-feed")
	defer span.Finish()
	dbFeed := r.Context().Value(feedContextKey).(*entity.Feed)
	ext.HTTPStatusCode.Set(span, http.StatusOK)
	span.LogKV("event", "got feed")
	NewFeedResponse(dbFeed).Render(w, r)
}

// Response with stored items of single feed
func (s *Server) getFeedItems(w http.ResponseWriter, r *http.Request) {
	span, ctx := s.setupTracingSpan(r, "get-feed-items")
	defer span.Finish()
	dbFeed := r.Context().Value(feedContextKey).(*entity.Feed)
	items, err := s.repository.GetItemsByFeed(ctx, dbFeed.ID)
	if err != nil {
		ext.HTTPStatusCode.Set(span, http.StatusInternalServerError)
		ErrInternal(err).Render(w, r)
		return
	}
	ext.HTTPStatusCode.Set(span, http.StatusOK)
	span.LogKV("event", "got feed items")
	render.JSON(w, r, items)
}

// createFeed bootstraps the feed: fetch with redirects, parse, insert feed and initial items
func (s *Server) createFeed(w http.ResponseWriter, r *http.Request) {
	span, ctx := s.setupTracingSpan(r, "create-feed")
	defer span.Finish()
	body := new(CreateFeedRequestBody)
	if err := render.Bind(r, body); err != nil {
		s.logger.Error("Failure accepting input for creating feed with error: ", err)
		ext.HTTPStatusCode.Set(span, http.StatusBadRequest)
		span.LogFields(
			otLog.Error(err),
		)
		ErrInvalidRequest(err).Render(w, r)
		return
	}
	span.SetTag("feed.url", body.Link)

	feed, err := s.creator.CreateFeed(ctx, body.Link)
	if err != nil {
		s.logger.Error("Failure creating feed from ", body.Link, " with error: ", err)
		response := creationErrorResponse(err)
		ext.HTTPStatusCode.Set(span, uint16(response.HTTPStatusCode))
		span.LogFields(
			otLog.Error(err),
		)
		response.Render(w, r)
		return
	}
	// return 201 on create
	ext.HTTPStatusCode.Set(span, http.StatusCreated)
	span.LogKV("event", "created feed")
	render.Status(r, http.StatusCreated)
	NewFeedResponse(feed).Render(w, r)
}

// creationErrorResponse maps bootstrap failures to HTTP statuses
func creationErrorResponse(err error) *ErrResponse {
	var creationErr *refresher.CreationError
	if !errors.As(err, &creationErr) {
		return ErrInternal(err)
	}
	switch creationErr.Kind {
	case refresher.CreationNotModified, refresher.CreationRedirectLoop:
		return ErrConflict(err)
	case refresher.CreationNotFound:
		return ErrNotFound
	case refresher.CreationParsingError:
		return ErrUnprocessable(err)
	case refresher.CreationFetchError:
		return ErrBadGateway(err)
	default:
		return ErrInternal(err)
	}
}

// discoverFeeds fetches an HTML page and returns the feed links it advertises
func (s *Server) discoverFeeds(w http.ResponseWriter, r *http.Request) {
	span, ctx := s.setupTracingSpan(r, "discover-feeds")
	defer span.Finish()
	body := new(DiscoverFeedsRequestBody)
	if err := render.Bind(r, body); err != nil {
		ext.HTTPStatusCode.Set(span, http.StatusBadRequest)
		span.LogFields(
			otLog.Error(err),
		)
		ErrInvalidRequest(err).Render(w, r)
		return
	}
	span.SetTag("page.url", body.Link)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, body.Link, nil)
	if err != nil {
		ErrInvalidRequest(err).Render(w, r)
		return
	}
	resp, err := s.pageClient.Do(req)
	if err != nil {
		ext.HTTPStatusCode.Set(span, http.StatusBadGateway)
		span.LogFields(
			otLog.Error(err),
		)
		ErrBadGateway(err).Render(w, r)
		return
	}
	defer resp.Body.Close()

	feeds, err := discovery.DiscoverFeedLinks(resp.Body)
	if err != nil {
		ext.HTTPStatusCode.Set(span, http.StatusUnprocessableEntity)
		span.LogFields(
			otLog.Error(err),
		)
		ErrUnprocessable(err).Render(w, r)
		return
	}
	ext.HTTPStatusCode.Set(span, http.StatusOK)
	span.LogKV("event", "discovered feed links")
	render.JSON(w, r, feeds)
}

// refreshFeed requests refresh of single feed via messaging
func (s *Server) refreshFeed(w http.ResponseWriter, r *http.Request) {
	span, ctx := s.setupTracingSpan(r, "refresh-feed")
	defer span.Finish()
	dbFeed := r.Context().Value(feedContextKey).(*entity.Feed)
	if err := s.producer.SendRefreshOne(ctx, dbFeed.ID); err != nil {
		s.logger.Error("Failure publishing refresh for feed ", dbFeed.ID, ": ", err)
		ext.HTTPStatusCode.Set(span, http.StatusInternalServerError)
		ErrInternal(err).Render(w, r)
		return
	}
	ext.HTTPStatusCode.Set(span, http.StatusNoContent)
	span.LogKV("event", "requested feed refresh")
	render.NoContent(w, r)
}

// refreshAllFeeds requests refresh of all feeds via messaging
func (s *Server) refreshAllFeeds(w http.ResponseWriter, r *http.Request) {
	span, ctx := s.setupTracingSpan(r, "refresh-all-feeds")
	defer span.Finish()
	if err := s.producer.SendRefreshAll(ctx); err != nil {
		s.logger.Error("Failure publishing refresh for all feeds: ", err)
		ext.HTTPStatusCode.Set(span, http.StatusInternalServerError)
		ErrInternal(err).Render(w, r)
		return
	}
	ext.HTTPStatusCode.Set(span, http.StatusNoContent)
	span.LogKV("event", "requested all feeds refresh")
	render.NoContent(w, r)
}

func (s *Server) setupTracingSpan(r *http.Request, name string) (opentracing.Span, context.Context) {
	span, ctx := opentracing.StartSpanFromContextWithTracer(r.Context(), s.tracer, name)
	ext.Component.Set(span, "server")
	ext.HTTPMethod.Set(span, r.Method)
	ext.HTTPUrl.Set(span, r.URL.Path)
	return span, ctx
}
