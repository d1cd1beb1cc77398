package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/tphakala/transformer-inspect/internal/logger"
)

// rateLimiterExpiry is how long an idle client's limiter is kept.
const rateLimiterExpiry = 3 * time.Minute

// CorrelationIDMiddleware reuses an incoming X-Request-ID or generates one.
// The id is echoed in the response header, put into error bodies and attached
// to the request context as the log trace id.
func (c *Controller) CorrelationIDMiddleware() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: generateCorrelationID,
		RequestIDHandler: func(ctx echo.Context, id string) {
			ctx.Set(correlationIDKey, id)
			req := ctx.Request()
			ctx.SetRequest(req.WithContext(logger.WithTraceID(req.Context(), id)))
		},
	})
}

// LoggingMiddleware logs one line per request.
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(ctx echo.Context, v middleware.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.String("ip", v.RemoteIP),
				logger.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, logger.Error(v.Error))
			}
			c.log.WithContext(ctx.Request().Context()).Info("request", fields...)
			return nil
		},
	})
}

// MetricsMiddleware records request counts, latency and response sizes by route template.
func (c *Controller) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			m := c.metrics.HTTP
			m.RequestStarted()
			defer m.RequestFinished()

			start := time.Now()
			err := next(ctx)
			if err != nil {
				// Let the error handler write the body so the status below is final.
				ctx.Error(err)
			}

			req, res := ctx.Request(), ctx.Response()
			path := routePath(ctx)
			m.RecordHTTPRequest(req.Method, path, res.Status, time.Since(start).Seconds())
			m.RecordHTTPResponseSize(req.Method, path, res.Size)
			return nil
		}
	}
}

// RateLimitMiddleware limits expensive routes per client IP. It is a no-op
// when no rate is configured.
func (c *Controller) RateLimitMiddleware() echo.MiddlewareFunc {
	if c.config.RateLimit <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	burst := c.config.RateBurst
	if burst <= 0 {
		burst = max(1, int(c.config.RateLimit))
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(c.config.RateLimit),
		Burst:     burst,
		ExpiresIn: rateLimiterExpiry,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(ctx echo.Context, err error) error {
			return c.HandleError(ctx, err, "Unable to identify client", http.StatusForbidden)
		},
		DenyHandler: func(ctx echo.Context, _ string, err error) error {
			return c.HandleError(ctx, err, "Too many requests, slow down", http.StatusTooManyRequests)
		},
	})
}

func routePath(ctx echo.Context) string {
	if p := ctx.Path(); p != "" {
		return p
	}
	return "unmatched"
}
