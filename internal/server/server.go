package server

import (
	"context"
	"time"

	"chatlens/internal/config"
	"chatlens/internal/handlers"
	"chatlens/internal/webhook"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
)

// Dependencies are the services the routes delegate to. A nil Jobs
// disables the job endpoints; a nil Broker reports the queue as down.
type Dependencies struct {
	Publisher handlers.Publisher
	Broker    handlers.BrokerStatus
	Verifier  *webhook.Verifier
	Sessions  handlers.SessionReader
	Analyzer  handlers.SessionAnalyzer
	Batch     handlers.BatchRunner
	Vectors   handlers.VectorService
	Insights  handlers.InsightsGenerator
	Analytics handlers.AnalyticsReader
	Jobs      handlers.JobLauncher
}

// Server represents the application server
type Server struct {
	echo   *echo.Echo
	db     *sqlx.DB
	config *config.Config
	logger zerolog.Logger
	deps   Dependencies
}

// New creates a new server instance
func New(cfg *config.Config, db *sqlx.DB, deps Dependencies, logger zerolog.Logger) *Server {
	return &Server{
		config: cfg,
		db:     db,
		logger: logger.With().Str("component", "http").Logger(),
		deps:   deps,
	}
}

// zerologMiddleware creates a zerolog-based logging middleware for Echo
func (s *Server) zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			s.logger.Info().
				Str("method", req.Method).
				Str("uri", req.RequestURI).
				Str("remote_ip", c.RealIP()).
				Int("status", res.Status).
				Int64("latency_ms", time.Since(start).Milliseconds()).
				Str("user_agent", req.UserAgent()).
				Msg("HTTP request")

			return err
		}
	}
}

// Initialize sets up the Echo framework with middleware and routes
func (s *Server) Initialize() {
	s.echo = echo.New()

	s.echo.Use(s.zerologMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORS())

	s.echo.HideBanner = true

	s.setupRoutes()
}

// Echo exposes the router, mainly for tests
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// setupRoutes configures all the application routes
func (s *Server) setupRoutes() {
	d := s.deps
	log := s.logger

	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	// Health endpoints (keep at root level for monitoring)
	s.echo.GET("/healthz", handlers.HealthHandler(s.config.Version))
	s.echo.GET("/healthz/db", handlers.DBHealthHandler(s.db, log))
	s.echo.GET("/healthz/queue", handlers.QueueHealthHandler(d.Broker))

	s.echo.POST("/webhook/crisp", handlers.CrispWebhookHandler(d.Publisher, log), d.Verifier.Middleware(log))

	api := s.echo.Group("/api")
	api.GET("/", handlers.RootHandler(s.config.Version))

	api.GET("/sessions", handlers.ListSessionsHandler(d.Sessions, log))
	api.GET("/sessions/:sessionKey", handlers.GetSessionHandler(d.Sessions, log))

	api.POST("/analysis/sessions/:sessionKey", handlers.AnalyzeSessionHandler(d.Analyzer, log))
	api.POST("/analysis/batch", handlers.BatchAnalysisHandler(d.Batch, log))

	vector := api.Group("/vector")
	vector.GET("/similar-conversations/:sessionKey", handlers.SimilarConversationsHandler(d.Vectors, log))
	vector.GET("/similar-customers/:customerKey", handlers.SimilarCustomersHandler(d.Vectors, log))
	vector.POST("/semantic-search", handlers.SemanticSearchHandler(d.Vectors, log))
	vector.GET("/conversation-clusters", handlers.ConversationClustersHandler(d.Vectors, log))
	vector.POST("/update-embeddings", handlers.UpdateEmbeddingsHandler(d.Vectors, log))

	api.GET("/insights/daily", handlers.DailyInsightsHandler(d.Insights, log))
	api.GET("/insights/daily/:date", handlers.DailyInsightsHandler(d.Insights, log))

	api.GET("/analytics", handlers.AnalyticsHandler(d.Analytics, log))

	api.POST("/jobs", handlers.TriggerJobHandler(d.Jobs, log))
	api.GET("/jobs/:name", handlers.JobStatusHandler(d.Jobs, log))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info().Str("port", s.config.Port).Msg("Server starting")
	return s.echo.Start(":" + s.config.Port)
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
