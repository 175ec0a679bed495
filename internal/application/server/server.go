package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bind-labs/backend/internal/entity"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/go-chi/stampede"
	"github.com/opentracing/opentracing-go"
)

// Server defines HTTP application
type Server struct {
	httpServer *http.Server
	logger     Logger
	repository FeedsRepository
	producer   FeedsRefreshProducer
	creator    FeedCreator
	pageClient *http.Client
	tracer     opentracing.Tracer
}

// FeedsRefreshProducer provides methods to request refresh (pull of content) of feeds via messaging subsystem
type FeedsRefreshProducer interface {
	SendRefreshOne(context.Context, int64) error
	SendRefreshAll(context.Context) error
}

// FeedsRepository defines repository methods used to serve feeds
type FeedsRepository interface {
	GetAll(context.Context) ([]entity.Feed, error)
	GetByID(context.Context, int64) (*entity.Feed, error)
	GetItemsByFeed(context.Context, int64) ([]entity.FeedItem, error)
	Healthcheck(context.Context) error
}

// FeedCreator bootstraps a feed from its link, fetch, parse and insert
type FeedCreator interface {
	CreateFeed(ctx context.Context, link string) (*entity.Feed, error)
}

// Config defines webserver configuration
type Config struct {
	Address        string `mapstructure:"address"`
	RequestTimeout int    `mapstructure:"request_timeout"`
}

// New creates new server configuration and configurates middleware
func New(serverConfig Config, logger Logger, tracer opentracing.Tracer, feedRepository FeedsRepository, messageProducer FeedsRefreshProducer, feedCreator FeedCreator, pageClient *http.Client) *Server {
	r := chi.NewRouter()
	s := &Server{
		httpServer: &http.Server{Addr: serverConfig.Address, Handler: r},
		logger:     logger,
		repository: feedRepository,
		producer:   messageProducer,
		creator:    feedCreator,
		pageClient: pageClient,
		tracer:     tracer,
	}
	r.Use(middleware.RequestID)
	r.Use(middlewareLogger(logger))
	// Basic CORS to allow API calls from browsers (Swagger-UI)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))
	r.Use(middleware.AllowContentType("application/json"))
	r.Use(middleware.Recoverer)
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Use(middleware.Timeout(time.Duration(serverConfig.RequestTimeout) * time.Second))
	// Healthcheck could be moved back to middleware in case of auth meddling
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		if err := s.repository.Healthcheck(r.Context()); err != nil {
			s.logger.Error("Healthcheck: repository check failed with: ", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Repository is unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("."))
	},
	)
	// Create a route along /doc that will serve contents from
	// the ./swaggerui directory.
	workDir, _ := os.Getwd()
	filesDir := http.Dir(filepath.Join(workDir, "swaggerui"))
	FileServer(r, "/doc", filesDir)
	r.Route("/feeds", func(r chi.Router) {
		// Set 1 second caching and requests coalescing to avoid requests stampede. Beware of any user specific responses.
		cached := stampede.Handler(512, 1*time.Second)

		// swagger:operation GET /feeds getFeeds
		// Returns all feeds registered in db
		// ---
		// responses:
		//   '200':
		//     description: list all feeds
		//     schema:
		//       type: array
		//       items:
		//         $ref: "#/definitions/FeedResponseBody"
		r.With(cached).Get("/", s.getFeeds)

		// swagger:operation POST /feeds createFeed
		// Bootstraps feed from its link: fetches, parses and stores it with initial items
		// ---
		// parameters:
		//  - $ref: "#/definitions/CreateFeedRequestBody"
		// responses:
		//    '201':
		//      $ref: "#/responses/FeedResponse"
		//    default:
		//      $ref: "#/responses/ErrResponse"
		r.Post("/", s.createFeed)

		// swagger:operation POST /feeds/discover discoverFeeds
		// Finds feed links advertised by an HTML page
		// ---
		// parameters:
		//  - $ref: "#/definitions/DiscoverFeedsRequestBody"
		// responses:
		//    '200':
		//      description: list of discovered feed links
		//    default:
		//      $ref: "#/responses/ErrResponse"
		r.Post("/discover", s.discoverFeeds)

		r.Route("/{id}", func(r chi.Router) {
			r.Use(s.feedCtx) // handle feed id

			// swagger:operation GET /feeds/{id} getFeed
			// Gets single feed using its id as parameter
			// ---
			// parameters:
			//  - name: id
			//    in: path
			//    description: feed id to get
			//    required: true
			//    type: integer
			// responses:
			//    '200':
			//      $ref: "#/responses/FeedResponse"
			//    default:
			//      $ref: "#/responses/ErrResponse"
			r.Get("/", s.getFeed)

			// swagger:operation GET /feeds/{id}/items getFeedItems
			// Gets stored items of single feed
			// ---
			// parameters:
			//  - name: id
			//    in: path
			//    description: feed id
			//    required: true
			//    type: integer
			// responses:
			//    '200':
			//      description: list of feed items
			//    default:
			//      $ref: "#/responses/ErrResponse"
			r.Get("/items", s.getFeedItems)
		})
	})
	r.Route("/refreshFeeds", func(r chi.Router) {
		// Set 10 second caching and requests coalescing to avoid requests stampede for all feeds refresh
		cachedAll := stampede.Handler(512, 10*time.Second)
		// Set 10 second caching and requests coalescing to avoid requests stampede for one feed refresh
		cachedOne := stampede.Handler(512, 10*time.Second)
		// swagger:operation PUT /refreshFeeds refreshFeeds
		// Triggers refresh (pull of content) for all feeds
		// ---
		// responses:
		//    '204':
		//      description: Send success
		//    default:
		//      description: Error payload
		//      schema:
		//        $ref: "#/responses/ErrResponse"
		r.With(cachedAll).Put("/", s.refreshAllFeeds)
		// swagger:operation PUT /refreshFeeds/{id} refreshFeed
		// Triggers refresh (pull of content) for single feed
		// ---
		// parameters:
		//  - name: id
		//    in: path
		//    description: feed id to refresh
		//    required: true
		//    type: integer
		// responses:
		//    '204':
		//      description: Send success
		//    default:
		//      $ref: "#/responses/ErrResponse"
		r.Route("/{id}", func(r chi.Router) {
			r.Use(s.feedCtx) // handle feed id
			r.With(cachedOne).Put("/", s.refreshFeed)
		})
	})
	return s
}

// StartAndServe configures routers and starts http server
func (s *Server) StartAndServe() {
	s.logger.Info("Server is ready to serve on ", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Fatal(fmt.Sprint("Server startup failed: ", err))
	}
}

// FileServer conveniently sets up a http.FileServer handler to serve
// static files from a http.FileSystem. Used for Swagger-UI and swagger.json files.
func FileServer(r chi.Router, path string, root http.FileSystem) {
	if strings.ContainsAny(path, "{}*") {
		panic("FileServer does not permit any URL parameters.")
	}

	if path != "/" && path[len(path)-1] != '/' {
		r.Get(path, http.RedirectHandler(path+"/", 301).ServeHTTP)
		path += "/"
	}
	path += "*"

	r.Get(path, func(w http.ResponseWriter, r *http.Request) {
		rctx := chi.RouteContext(r.Context())
		pathPrefix := strings.TrimSuffix(rctx.RoutePattern(), "/*")
		fs := http.StripPrefix(pathPrefix, http.FileServer(root))
		fs.ServeHTTP(w, r)
	})
}
