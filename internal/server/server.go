package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/shelfkeeper/apiserver/config"
	"github.com/shelfkeeper/apiserver/internal/auth"
	"github.com/shelfkeeper/apiserver/internal/db"
	"github.com/shelfkeeper/apiserver/internal/handlers"
	"github.com/shelfkeeper/apiserver/internal/logging"
	"github.com/shelfkeeper/apiserver/internal/metrics"
	"github.com/shelfkeeper/apiserver/internal/mq"
	"github.com/shelfkeeper/apiserver/internal/services"
	"github.com/shelfkeeper/apiserver/internal/storage"
	"github.com/shelfkeeper/apiserver/internal/store"
	"github.com/shelfkeeper/apiserver/internal/validation"
)

const requestTimeout = 60 * time.Second

// Server wraps the HTTP server, its router and the connections it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	logger     zerolog.Logger
	closers    []func(context.Context) error
}

// Repositories is the persistence layer selected by DB_DRIVER.
type Repositories struct {
	Users services.UserRepository
	Books services.BookRepository
}

// Dependencies are the collaborators the router is built from. Covers and
// Events are nil when the corresponding backend is disabled.
type Dependencies struct {
	Config       config.Config
	Logger       zerolog.Logger
	Repositories Repositories
	Covers       services.CoverStorage
	Events       services.EventPublisher
}

// New connects to the configured backends and constructs a Server.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{logger: logger}
	deps := Dependencies{Config: cfg, Logger: logger}

	repos, err := s.openRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}
	deps.Repositories = repos

	covers, err := storage.Open(ctx, cfg.Storage)
	switch {
	case errors.Is(err, storage.ErrDisabled):
		logger.Info().Msg("cover storage disabled")
	case err != nil:
		_ = s.closeAll(ctx)
		return nil, err
	default:
		logger.Info().Str("backend", cfg.Storage.Backend).Str("bucket", covers.Bucket()).Msg("cover storage ready")
		s.closers = append(s.closers, func(context.Context) error { return covers.Close() })
		deps.Covers = covers
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	switch {
	case errors.Is(err, mq.ErrDisabled):
		logger.Info().Msg("book events disabled")
	case err != nil:
		_ = s.closeAll(ctx)
		return nil, err
	default:
		logger.Info().Str("backend", cfg.MQ.Backend).Str("channel", cfg.MQ.Channel).Msg("book events enabled")
		s.closers = append(s.closers, func(context.Context) error { return broker.Close() })
		deps.Events = mq.NewBookEvents(broker, cfg.MQ.Channel)
	}

	s.router = NewRouter(deps)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) openRepositories(ctx context.Context, cfg config.Config) (Repositories, error) {
	switch cfg.Database.Driver {
	case config.DriverMongo:
		database, err := db.OpenMongo(ctx, cfg)
		if err != nil {
			return Repositories{}, fmt.Errorf("connect mongo: %w", err)
		}
		s.closers = append(s.closers, database.Client().Disconnect)
		if err := store.EnsureIndexes(ctx, database); err != nil {
			_ = s.closeAll(ctx)
			return Repositories{}, err
		}
		s.logger.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongo")
		return Repositories{
			Users: store.NewMongoUserRepository(database),
			Books: store.NewMongoBookRepository(database),
		}, nil
	default:
		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return Repositories{}, fmt.Errorf("connect postgres: %w", err)
		}
		s.closers = append(s.closers, func(context.Context) error { return dbConn.Close() })
		s.logger.Info().Str("host", cfg.Database.Host).Str("database", cfg.Database.DBName).Msg("connected to postgres")
		return PostgresRepositories(dbConn), nil
	}
}

// PostgresRepositories builds the relational repositories over dbConn.
func PostgresRepositories(dbConn *sql.DB) Repositories {
	return Repositories{
		Users: store.NewUserRepository(dbConn),
		Books: store.NewBookRepository(dbConn),
	}
}

// NewRouter assembles middleware and routes.
func NewRouter(deps Dependencies) *chi.Mux {
	cfg := deps.Config
	tokens := auth.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
	validator := validation.New()

	userService := services.NewUserService(deps.Repositories.Users, tokens, validator)
	bookService := services.NewBookService(deps.Repositories.Books, validator, deps.Covers, deps.Events, deps.Logger)

	authMiddleware := handlers.RequireAuth(tokens)

	metrics.Init()

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.Middleware(deps.Logger),
		metrics.HTTPMetricsMiddleware,
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: false,
			MaxAge:           300,
		}),
		middleware.Timeout(requestTimeout),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Handle("/metrics", metrics.Handler())
	router.Route("/api/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, authMiddleware)
	})
	router.Route("/api/books", func(r chi.Router) {
		handlers.BookRouter(r, bookService, authMiddleware)
	})

	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, waits for in-flight requests until
// ctx expires, then releases backend connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if closeErr := s.closeAll(ctx); err == nil {
		err = closeErr
	}
	return err
}

func (s *Server) closeAll(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
