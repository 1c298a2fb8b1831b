// Package server serves the admin dashboard: login and logout, the gated
// HTML pages and JSON API over the catalog, and the verdict event stream.
package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/campusnotes/notes-admin/internal/authbus"
	"github.com/campusnotes/notes-admin/internal/backend"
	"github.com/campusnotes/notes-admin/internal/catalog"
	"github.com/campusnotes/notes-admin/internal/config"
	"github.com/campusnotes/notes-admin/internal/credential"
	"github.com/campusnotes/notes-admin/internal/gate"
	"github.com/campusnotes/notes-admin/internal/metrics"
	"github.com/campusnotes/notes-admin/internal/profile"
	"github.com/campusnotes/notes-admin/internal/tasks"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Deps are the collaborators the server is built from
type Deps struct {
	Config      *config.Config
	Logger      zerolog.Logger
	Catalog     *catalog.Service
	Auth        *backend.Auth
	Profiles    profile.Store
	Credentials credential.Cache
	Bus         *authbus.Bus
	Gates       *gate.Registry
	Metrics     *metrics.Metrics

	// Tasks is nil when auditing is disabled
	Tasks tasks.Enqueuer
	// Gatherer backs /metrics. Defaults to the global registry.
	Gatherer prometheus.Gatherer
	// Monitor is mounted under /monitoring when set
	Monitor http.Handler

	Version string
}

// Server represents the HTTP server
type Server struct {
	router      *gin.Engine
	config      *config.Config
	logger      zerolog.Logger
	catalog     *catalog.Service
	auth        *backend.Auth
	profiles    profile.Store
	credentials credential.Cache
	bus         *authbus.Bus
	gates       *gate.Registry
	metrics     *metrics.Metrics
	tasks       tasks.Enqueuer
	gatherer    prometheus.Gatherer
	monitor     http.Handler
	version     string
}

// New creates a new server instance
func New(d Deps) (*Server, error) {
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	m := d.Metrics
	if m == nil {
		m = metrics.NewNop()
	}

	server := &Server{
		config:      d.Config,
		logger:      d.Logger,
		catalog:     d.Catalog,
		auth:        d.Auth,
		profiles:    d.Profiles,
		credentials: d.Credentials,
		bus:         d.Bus,
		gates:       d.Gates,
		metrics:     m,
		tasks:       d.Tasks,
		gatherer:    gatherer,
		monitor:     d.Monitor,
		version:     d.Version,
	}

	server.setupRouter(tmpl)
	return server, nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter(tmpl *template.Template) {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()
	s.router.SetHTMLTemplate(tmpl)

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	// cors refuses a config without origins
	if len(s.config.HTTP.AllowedOrigins) > 0 {
		s.router.Use(cors.New(cors.Config{
			AllowOrigins:     s.config.HTTP.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Public endpoints
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	public := s.router.Group("/")
	public.Use(BrowserIDMiddleware(s.config.HTTP.CookieSecure))
	{
		public.GET("/login", s.loginPage)
		public.POST("/login", s.login)
		public.POST("/logout", s.logout)
		public.GET("/gate/events", s.gateEvents)
	}

	// Gated HTML pages
	pages := s.router.Group("/")
	pages.Use(BrowserIDMiddleware(s.config.HTTP.CookieSecure), s.RequireAdmin(pageResponder{}))
	{
		pages.GET("/", s.dashboardPage)
		pages.GET("/audit", s.auditPage)
		pages.POST("/notes/:id/approval", s.setNoteApprovalForm)
		for _, r := range s.resources() {
			r.registerPages(s, pages)
		}
		if s.monitor != nil {
			pages.Any("/monitoring/*path", gin.WrapH(s.monitor))
		}
	}

	// Gated JSON API
	api := s.router.Group("/api")
	api.Use(BrowserIDMiddleware(s.config.HTTP.CookieSecure), s.RequireAdmin(jsonResponder{}))
	{
		api.GET("/session", s.getSession)
		api.GET("/stats", s.getStats)
		api.GET("/system/info", s.getSystemInfo)
		api.PATCH("/notes/:id/approval", s.setNoteApproval)
		for _, r := range s.resources() {
			r.registerAPI(s, api)
		}
	}
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

// @Router /health [get]
// @Success 200 {object} map[string]interface{}
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "notes-admin",
		"version":   s.version,
	})
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until SIGINT or SIGTERM, then shuts down gracefully
func (s *Server) Start() error {
	port := ":" + s.config.Port

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              port,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		// no WriteTimeout: /gate/events streams for as long as the page is open
		IdleTimeout: 120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Str("port", port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("http server failed: %w", err)
	case <-sigChan:
	}
	s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")

	// Unmount every gate so open event streams end
	s.gates.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	s.logger.Info().Msg("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	s.logger.Info().Msg("Server shutdown complete")
	return nil
}
