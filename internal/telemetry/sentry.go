// Package telemetry provides opt-in, privacy-filtered error reporting through Sentry.
package telemetry

import (
	"fmt"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/transformer-inspect/internal/buildinfo"
	"github.com/tphakala/transformer-inspect/internal/conf"
	"github.com/tphakala/transformer-inspect/internal/errors"
	"github.com/tphakala/transformer-inspect/internal/logger"
)

const flushTimeout = 2 * time.Second

// Init configures Sentry and installs errors.SentryReporter when reporting
// is enabled. The returned function flushes pending events and detaches the
// reporter; it is safe to call when reporting is disabled.
func Init(settings conf.SentrySettings, build buildinfo.BuildInfo, log logger.Logger) (func(), error) {
	log = log.Module("telemetry")
	if !settings.Enabled {
		log.Info("Sentry telemetry is disabled (opt-in required)")
		return func() {}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      settings.Environment,
		// Clear server name to prevent hostname leakage.
		ServerName: "",
		Release:    fmt.Sprintf("transformer-inspect@%s", build.GetVersion()),
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return nil, errors.New(fmt.Errorf("sentry initialization failed: %w", err)).
			Component(errors.ComponentConfig).
			Category(errors.CategoryConfiguration).
			Build()
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("system_id", build.GetSystemID())
		scope.SetContext("platform", map[string]any{
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
			"num_cpu":    runtime.NumCPU(),
			"go_version": runtime.Version(),
		})
	})

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	log.Info("Sentry telemetry initialized",
		logger.String("environment", settings.Environment),
		logger.String("system_id", build.GetSystemID()))

	return func() {
		errors.SetTelemetryReporter(nil)
		sentry.Flush(flushTimeout)
	}, nil
}

// applyPrivacyFilters strips user, host and runtime details from an event.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}
	return event
}
