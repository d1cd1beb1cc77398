package api

import (
	"crypto/rand"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/transformer-inspect/internal/datastore/repository"
	"github.com/tphakala/transformer-inspect/internal/detector"
	"github.com/tphakala/transformer-inspect/internal/errors"
	"github.com/tphakala/transformer-inspect/internal/logger"
	"github.com/tphakala/transformer-inspect/internal/storage"
)

const correlationIDKey = "correlation_id"

// ErrorResponse is the body of every error answer.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // Unique identifier for tracking this error
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int, correlationID string) *ErrorResponse {
	if correlationID == "" {
		correlationID = generateCorrelationID()
	}
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: correlationID,
	}
}

// generateCorrelationID creates a short random identifier for error tracking
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// StatusFor maps the error taxonomy onto HTTP status codes.
func StatusFor(err error) int {
	var he *echo.HTTPError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrReferenceNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, repository.ErrInvalidInput), errors.Is(err, storage.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, detector.ErrUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorType labels an error for metrics.
func errorType(err error, code int) string {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return string(ee.Category)
	}
	return fmt.Sprintf("http_%d", code)
}

// HandleError writes an error body with the given status.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	id, _ := ctx.Get(correlationIDKey).(string)
	resp := NewErrorResponse(err, message, code, id)

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.String("error", resp.Error),
		logger.Int("code", code),
		logger.String("method", ctx.Request().Method),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("ip", ctx.RealIP()),
	}
	log := c.log.WithContext(ctx.Request().Context())
	if code >= http.StatusInternalServerError {
		log.Error("API error", fields...)
	} else {
		log.Warn("API error", fields...)
	}

	if c.metrics != nil {
		c.metrics.HTTP.RecordHTTPRequestError(ctx.Request().Method, routePath(ctx), errorType(err, code))
	}
	return ctx.JSON(code, resp)
}

// HandleServiceError writes an error body with the status the error maps to.
func (c *Controller) HandleServiceError(ctx echo.Context, err error, message string) error {
	return c.HandleError(ctx, err, message, StatusFor(err))
}

// badRequest reports malformed parameters or bodies.
func (c *Controller) badRequest(ctx echo.Context, err error, message string) error {
	return c.HandleError(ctx, err, message, http.StatusBadRequest)
}

// httpErrorHandler renders errors returned by handlers and middleware in the
// common body, e.g. unknown routes, body limit and bind failures.
func (c *Controller) httpErrorHandler(err error, ctx echo.Context) {
	if ctx.Response().Committed {
		return
	}
	code := StatusFor(err)
	message := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if m, ok := he.Message.(string); ok {
			message = m
		}
		if he.Internal != nil {
			err = he.Internal
		}
	}
	if ctx.Request().Method == http.MethodHead {
		err = ctx.NoContent(code)
	} else {
		err = c.HandleError(ctx, err, message, code)
	}
	if err != nil {
		c.log.Error("failed to write error response", logger.Error(err))
	}
}
