// Package app assembles the service graph shared by the CLI commands:
// logging, metrics, the database, the blob store and the domain services.
package app

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tphakala/transformer-inspect/internal/annotation"
	api "github.com/tphakala/transformer-inspect/internal/api/v2"
	"github.com/tphakala/transformer-inspect/internal/conf"
	"github.com/tphakala/transformer-inspect/internal/datastore"
	"github.com/tphakala/transformer-inspect/internal/datastore/repository"
	"github.com/tphakala/transformer-inspect/internal/detector"
	"github.com/tphakala/transformer-inspect/internal/errors"
	"github.com/tphakala/transformer-inspect/internal/events"
	"github.com/tphakala/transformer-inspect/internal/inventory"
	"github.com/tphakala/transformer-inspect/internal/logger"
	"github.com/tphakala/transformer-inspect/internal/observability"
	"github.com/tphakala/transformer-inspect/internal/storage"
)

// App holds every long-lived component. Detector and Publisher are nil when
// their integrations are disabled.
type App struct {
	Settings *conf.Settings
	Logger   *logger.CentralLogger
	Log      logger.Logger
	Metrics  *observability.Metrics

	DB      datastore.Manager
	Repos   *repository.Repositories
	Store   *storage.LocalStore
	Summary *api.SummaryCache

	Inventory   *inventory.Service
	Annotations *annotation.Manager
	Detector    *detector.Client
	Publisher   *events.Publisher
}

// Open builds the application from settings and migrates the schema.
// On failure everything opened so far is closed again.
func Open(settings *conf.Settings) (a *App, err error) {
	logCfg := settings.Logging
	if settings.Debug {
		logCfg.DefaultLevel = "debug"
	}
	central, err := logger.NewCentralLogger(&logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	a = &App{Settings: settings, Logger: central, Log: central.Root()}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	if a.Metrics, err = observability.NewMetrics(); err != nil {
		return a, err
	}
	if a.DB, err = openDatabase(settings, a.Log.Module("datastore"), a.Metrics); err != nil {
		return a, err
	}
	if err = a.DB.Initialize(); err != nil {
		return a, err
	}
	a.Repos = repository.New(a.DB.DB()).WithTxRecorder(a.Metrics.Datastore)

	a.Store, err = storage.NewLocalStore(settings.Storage.UploadDir,
		storage.WithLogger(a.Log),
		storage.WithRecorder(a.Metrics.Datastore))
	if err != nil {
		return a, err
	}

	a.Summary = api.NewSummaryCache(settings.Cache.SummaryTTL)

	if settings.MQTT.Enabled {
		a.Publisher, err = events.NewPublisher(events.Config{
			Broker:   settings.MQTT.Broker,
			ClientID: settings.MQTT.ClientID,
			Username: settings.MQTT.Username,
			Password: settings.MQTT.Password,
			Topic:    settings.MQTT.Topic,
			QoS:      byte(settings.MQTT.QoS),
			Retain:   settings.MQTT.Retain,
		}, events.WithLogger(a.Log))
		if err != nil {
			return a, err
		}
	}

	if settings.Detector.Enabled {
		a.Detector, err = detector.New(detector.Config{
			BaseURL:   settings.Detector.URL,
			Timeout:   settings.Detector.Timeout,
			Threshold: settings.Detector.Threshold,
		}, detector.WithLogger(a.Log.Module("detector")), detector.WithRecorder(a.Metrics.Annotation))
		if err != nil {
			return a, errors.New(err).
				Component(errors.ComponentDetector).
				Category(errors.CategoryConfiguration).
				Build()
		}
	}

	a.Inventory = inventory.New(a.Repos, a.Store,
		inventory.WithLogger(a.Log),
		inventory.WithUploadLimits(settings.Storage.MaxFileSize, settings.Storage.AllowedExtensions),
		inventory.WithChangeHook(a.Summary.Invalidate))

	annotationOpts := []annotation.Option{
		annotation.WithLogger(a.Log),
		annotation.WithRecorder(a.Metrics.Annotation),
		annotation.WithChangeHook(a.Summary.Invalidate),
	}
	if a.Publisher != nil {
		annotationOpts = append(annotationOpts, annotation.WithPublisher(a.Publisher))
	}
	a.Annotations = annotation.NewManager(a.Repos, annotationOpts...)

	return a, nil
}

// NewDatabase opens the configured database without touching the schema.
// Commands that need no services use it with their own logger.
func NewDatabase(settings *conf.Settings, log logger.Logger) (datastore.Manager, error) {
	return openDatabase(settings, log, nil)
}

func openDatabase(settings *conf.Settings, log logger.Logger, m *observability.Metrics) (datastore.Manager, error) {
	cfg := datastore.Config{
		Debug:              settings.Debug,
		SlowQueryThreshold: settings.Database.SlowQuery,
		Logger:             log,
	}
	if m != nil {
		cfg.Recorder = m.Datastore
	}

	switch strings.ToLower(settings.Database.Type) {
	case conf.DatabaseMySQL:
		my := settings.Database.MySQL
		m, err := datastore.NewMySQLManager(&datastore.MySQLConfig{
			Host:     my.Host,
			Port:     my.Port,
			Username: my.Username,
			Password: my.Password,
			Database: my.Database,
		}, cfg)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		cfg.DataDir = filepath.Dir(settings.Database.SQLite.Path)
		cfg.FileName = filepath.Base(settings.Database.SQLite.Path)
		m, err := datastore.NewSQLiteManager(cfg)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

// DataDir is where runtime state such as the lock and system id files lives.
// For MySQL deployments it falls back to the upload directory.
func DataDir(settings *conf.Settings) string {
	if strings.EqualFold(settings.Database.Type, conf.DatabaseMySQL) {
		return settings.Storage.UploadDir
	}
	return filepath.Dir(settings.Database.SQLite.Path)
}

// Close releases everything in reverse order of Open.
func (a *App) Close() error {
	var errs []error
	if a.Publisher != nil {
		a.Publisher.Close()
	}
	if a.Detector != nil {
		a.Detector.Close()
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if a.Logger != nil {
		errs = append(errs, a.Logger.Close())
	}
	return errors.Join(errs...)
}
