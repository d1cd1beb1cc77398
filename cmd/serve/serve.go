// Package serve runs the HTTP API.
package serve

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	api "github.com/tphakala/transformer-inspect/internal/api/v2"
	"github.com/tphakala/transformer-inspect/internal/app"
	"github.com/tphakala/transformer-inspect/internal/buildinfo"
	"github.com/tphakala/transformer-inspect/internal/conf"
	"github.com/tphakala/transformer-inspect/internal/errors"
	"github.com/tphakala/transformer-inspect/internal/logger"
	"github.com/tphakala/transformer-inspect/internal/telemetry"
)

const (
	lockFileName     = "transformer-inspect.lock"
	reconnectBackoff = 30 * time.Second
	startupProbe     = 5 * time.Second
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the inspection API server",
		Long:  "Serve the v2 REST API backed by the configured database, upload directory and integrations.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(ctx, settings)
		},
	}

	if err := setupFlags(cmd); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("listen", ":8080", "Listen address of the HTTP server")
	cmd.Flags().Bool("detector", false, "Enable the detection service integration")
	cmd.Flags().String("detector-url", "http://localhost:8000", "Base URL of the detection service")

	for key, flag := range map[string]string{
		"webserver.listen": "listen",
		"detector.enabled": "detector",
		"detector.url":     "detector-url",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flags: %w", err)
		}
	}
	return nil
}

// Run serves until ctx is cancelled, then shuts the server down gracefully.
func Run(ctx context.Context, settings *conf.Settings) error {
	dataDir := app.DataDir(settings)
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	lock := flock.New(filepath.Join(dataDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return errors.Newf("another transformer-inspect server is already using %s", dataDir).
			Component(errors.ComponentConfig).
			Category(errors.CategoryState).
			Build()
	}
	defer func() { _ = lock.Unlock() }()

	a, err := app.Open(settings)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "error during shutdown: %v\n", err)
		}
	}()
	log := a.Log.Module("serve")

	build := buildinfo.Current()
	if id, err := telemetry.LoadOrCreateSystemID(dataDir); err != nil {
		log.Warn("system id unavailable", logger.Error(err))
	} else {
		build.SystemID = id
	}
	flushTelemetry, err := telemetry.Init(settings.Sentry, build, a.Log)
	if err != nil {
		log.Warn("telemetry disabled", logger.Error(err))
	} else {
		defer flushTelemetry()
	}

	e := newEcho(settings.WebServer)
	deps := api.Deps{
		Inventory:   a.Inventory,
		Annotations: a.Annotations,
		DB:          a.DB,
		Metrics:     a.Metrics,
		Summary:     a.Summary,
		BuildInfo:   build,
	}
	// A nil *detector.Client must not become a non-nil interface.
	if a.Detector != nil {
		deps.Detector = a.Detector
		probeDetector(ctx, a, log)
	}
	api.New(e, deps, api.Config{
		BodyLimit:      settings.WebServer.BodyLimit,
		AllowedOrigins: settings.WebServer.AllowedOrigins,
		RateLimit:      settings.WebServer.RateLimit.RequestsPerSecond,
		RateBurst:      settings.WebServer.RateLimit.Burst,
		DiskPath:       settings.Storage.UploadDir,
	}, api.WithLogger(a.Log))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP server starting",
			logger.String("listen", settings.WebServer.Listen),
			logger.String("version", build.GetVersion()),
			logger.String("database", a.DB.Path()))
		if err := e.Start(settings.WebServer.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.WebServer.ShutdownTimeout)
		defer cancel()
		log.Info("HTTP server shutting down")
		return e.Shutdown(shutdownCtx)
	})

	if a.Publisher != nil {
		g.Go(func() error {
			connectPublisher(gctx, a, log)
			return nil
		})
	}

	return g.Wait()
}

func newEcho(ws conf.WebServerSettings) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = ws.ReadTimeout
	e.Server.WriteTimeout = ws.WriteTimeout
	e.Server.ReadHeaderTimeout = 10 * time.Second
	return e
}

// probeDetector only logs; detect requests fail with 502 while the service is down.
func probeDetector(ctx context.Context, a *app.App, log logger.Logger) {
	probeCtx, cancel := context.WithTimeout(ctx, startupProbe)
	defer cancel()
	if err := a.Detector.Health(probeCtx); err != nil {
		log.Warn("detection service is not reachable", logger.String("url", a.Settings.Detector.URL), logger.Error(err))
		return
	}
	log.Info("detection service is reachable", logger.String("url", a.Settings.Detector.URL))
}

// connectPublisher retries the initial broker connection until it succeeds
// or ctx ends. After that the client reconnects on its own.
func connectPublisher(ctx context.Context, a *app.App, log logger.Logger) {
	for {
		err := a.Publisher.Connect(ctx)
		if err == nil {
			return
		}
		log.Warn("MQTT connection failed, annotation events are not published",
			logger.Error(err), logger.Duration("retry_in", reconnectBackoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectBackoff):
		}
	}
}
