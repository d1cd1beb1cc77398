package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/tphakala/transformer-inspect/internal/logger"
)

const (
	healthCheckTimeout = 3 * time.Second
	bytesPerMB         = 1 << 20
	bytesPerGB         = 1 << 30
)

// healthChecker is implemented by a detector that can report its own health.
type healthChecker interface {
	Health(ctx context.Context) error
}

// HealthCheck handles GET /api/v2/health. A database failure answers 503;
// a detector failure only degrades the status.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), healthCheckTimeout)
	defer cancel()

	response := map[string]any{
		"status":     "healthy",
		"version":    c.build.GetVersion(),
		"build_date": c.build.GetBuildDate(),
		"timestamp":  time.Now().Format(time.RFC3339),
	}
	code := http.StatusOK

	dbStatus := "connected"
	if c.db == nil {
		dbStatus = "unknown"
	} else if err := c.db.Ping(reqCtx); err != nil {
		dbStatus = "disconnected"
		response["database_error"] = err.Error()
		response["status"] = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	response["database_status"] = dbStatus

	detectorStatus := "disabled"
	if c.detector != nil {
		detectorStatus = "configured"
		if hc, ok := c.detector.(healthChecker); ok {
			detectorStatus = "available"
			if err := hc.Health(reqCtx); err != nil {
				detectorStatus = "unavailable"
				response["detector_error"] = err.Error()
				if code == http.StatusOK {
					response["status"] = "degraded"
				}
			}
		}
	}
	response["detector_status"] = detectorStatus

	uptime := time.Since(c.startTime)
	response["uptime"] = uptime.Round(time.Second).String()
	response["uptime_seconds"] = uptime.Seconds()
	response["system"] = c.systemMetrics(reqCtx)
	if c.metrics != nil {
		// Includes this request.
		response["requests_in_flight"] = c.metrics.HTTP.InFlight()
	}

	return ctx.JSON(code, response)
}

// systemMetrics reports host memory and the disk holding the upload directory.
// Collection failures are logged and leave the section out.
func (c *Controller) systemMetrics(ctx context.Context) map[string]any {
	system := make(map[string]any)

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		system["memory"] = map[string]any{
			"used_percent": vm.UsedPercent,
			"total_mb":     float64(vm.Total) / bytesPerMB,
			"used_mb":      float64(vm.Used) / bytesPerMB,
		}
	} else {
		c.log.Debug("memory stats unavailable", logger.Error(err))
	}

	path := c.config.DiskPath
	if path == "" {
		path = "."
	}
	if du, err := disk.UsageWithContext(ctx, path); err == nil {
		system["disk_space"] = map[string]any{
			"path":         path,
			"total_gb":     float64(du.Total) / bytesPerGB,
			"free_gb":      float64(du.Free) / bytesPerGB,
			"used_percent": du.UsedPercent,
		}
	} else {
		c.log.Debug("disk stats unavailable", logger.String("path", path), logger.Error(err))
	}

	return system
}
