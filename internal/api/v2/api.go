// Package api serves the v2 REST API over echo.
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/transformer-inspect/internal/annotation"
	"github.com/tphakala/transformer-inspect/internal/buildinfo"
	"github.com/tphakala/transformer-inspect/internal/inventory"
	"github.com/tphakala/transformer-inspect/internal/logger"
	"github.com/tphakala/transformer-inspect/internal/observability"
)

// Detector produces annotation candidates for an image.
type Detector interface {
	Detect(ctx context.Context, fileName string, image io.Reader, threshold float64) ([]annotation.Candidate, error)
}

// Pinger checks that the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the HTTP boundary settings.
type Config struct {
	// BodyLimit is an echo size string such as "12M"
	BodyLimit      string
	AllowedOrigins []string
	// RateLimit is the sustained requests per second per client on upload and
	// detect routes. Zero disables limiting.
	RateLimit float64
	RateBurst int
	// DiskPath is reported by the health endpoint, usually the upload directory
	DiskPath string
}

// Deps are the services behind the routes. Detector, Metrics and Summary may be nil.
type Deps struct {
	Inventory   *inventory.Service
	Annotations *annotation.Manager
	Detector    Detector
	DB          Pinger
	Metrics     *observability.Metrics
	Summary     *SummaryCache
	BuildInfo   buildinfo.BuildInfo
}

// Controller manages the API routes and handlers
type Controller struct {
	Echo  *echo.Echo
	Group *echo.Group

	inventory   *inventory.Service
	annotations *annotation.Manager
	detector    Detector
	db          Pinger
	metrics     *observability.Metrics
	summary     *SummaryCache
	build       buildinfo.BuildInfo

	config    Config
	log       logger.Logger
	startTime time.Time
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithLogger sets the parent logger; the controller logs under the "api" module.
func WithLogger(l logger.Logger) Option { return func(c *Controller) { c.log = l } }

// New wires middleware and routes onto e under /api/v2.
func New(e *echo.Echo, deps Deps, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		Echo:        e,
		inventory:   deps.Inventory,
		annotations: deps.Annotations,
		detector:    deps.Detector,
		db:          deps.DB,
		metrics:     deps.Metrics,
		summary:     deps.Summary,
		build:       deps.BuildInfo,
		config:      cfg,
		startTime:   time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)
	}
	c.log = c.log.Module("api")
	if c.summary == nil {
		c.summary = NewSummaryCache(0)
	}
	if c.build == nil {
		c.build = buildinfo.Current()
	}
	if c.config.BodyLimit == "" {
		c.config.BodyLimit = "12M"
	}
	if len(c.config.AllowedOrigins) == 0 {
		c.config.AllowedOrigins = []string{"*"}
	}

	e.HTTPErrorHandler = c.httpErrorHandler

	if c.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}

	c.Group = e.Group("/api/v2")
	c.Group.Use(middleware.Recover())
	c.Group.Use(c.CorrelationIDMiddleware())
	c.Group.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: c.config.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
	}))
	c.Group.Use(middleware.BodyLimit(c.config.BodyLimit))
	c.Group.Use(c.LoggingMiddleware())
	if c.metrics != nil {
		c.Group.Use(c.MetricsMiddleware())
	}

	c.initRoutes()
	return c
}

// initRoutes registers all API endpoints
func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)
	c.Group.GET("/summary", c.GetSummary)

	limited := c.RateLimitMiddleware()

	c.initTransformerRoutes()
	c.initInspectionRoutes()
	c.initImageRoutes(limited)
	c.initAnnotationRoutes()
}

// InvalidateSummary drops the cached dashboard summary.
func (c *Controller) InvalidateSummary() {
	c.summary.Invalidate()
}

// GetSummary handles GET /api/v2/summary
func (c *Controller) GetSummary(ctx echo.Context) error {
	summary, err := c.summary.Get(ctx.Request().Context(), c.inventory.Summary)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to build summary")
	}
	return ctx.JSON(http.StatusOK, summary)
}
