// Package datastore opens and migrates the inspection database.
//
// SQLite is the default backend; MySQL is supported for shared deployments.
// Both managers run with TranslateError enabled so unique and foreign key
// violations surface as gorm.ErrDuplicatedKey and gorm.ErrForeignKeyViolated.
package datastore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
	"github.com/tphakala/transformer-inspect/internal/logger"
)

// DefaultDBFileName is the SQLite file created inside the data directory.
const DefaultDBFileName = "transformers.db"

// Manager defines the interface for database lifecycle operations.
type Manager interface {
	// Initialize creates or upgrades the schema.
	Initialize() error
	// DB returns the underlying GORM database.
	DB() *gorm.DB
	// Path returns the database location (file path for SQLite, host/db for MySQL).
	Path() string
	// Ping verifies the connection is usable.
	Ping(ctx context.Context) error
	// Close closes the database connection.
	Close() error
	// Delete removes the database (file for SQLite, tables for MySQL).
	Delete() error
	// Exists checks if the schema exists.
	Exists() bool
	// IsMySQL returns true if this is a MySQL manager.
	IsMySQL() bool
}

// Config holds options shared by both managers.
type Config struct {
	// DataDir is the directory containing the SQLite file.
	DataDir string
	// FileName overrides DefaultDBFileName.
	FileName string
	// Debug routes every SQL statement to the log at debug level.
	Debug bool
	// SlowQueryThreshold logs statements slower than this at WARN. Zero disables.
	SlowQueryThreshold time.Duration
	// Logger receives GORM output. Nil falls back to a stdout logger.
	Logger logger.Logger
	// Recorder receives per-statement metrics. Nil disables instrumentation.
	Recorder OperationRecorder
	// NowFunc overrides the clock used for autoCreateTime/autoUpdateTime.
	NowFunc func() time.Time
}

func (c *Config) gormConfig() *gorm.Config {
	log := c.Logger
	if log == nil {
		level := logger.LogLevelInfo
		if c.Debug {
			level = logger.LogLevelTrace
		}
		log = logger.NewSlogLogger(nil, level, nil)
	}
	gc := &gorm.Config{
		Logger:         logger.NewGormLoggerAdapter(log, c.SlowQueryThreshold),
		TranslateError: true,
	}
	// Timestamps are stored in UTC because SQLite compares them as text.
	gc.NowFunc = func() time.Time { return time.Now().UTC() }
	if c.NowFunc != nil {
		gc.NowFunc = c.NowFunc
	}
	return gc
}

// SQLiteManager handles the SQLite database file.
type SQLiteManager struct {
	db     *gorm.DB
	dbPath string
}

// NewSQLiteManager opens DataDir/FileName with WAL, a busy timeout, foreign keys
// and immediate write transactions so concurrent writers queue instead of failing.
func NewSQLiteManager(cfg Config) (*SQLiteManager, error) {
	name := cfg.FileName
	if name == "" {
		name = DefaultDBFileName
	}
	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	dbPath := filepath.Join(cfg.DataDir, name)

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON&_txlock=immediate", dbPath)

	db, err := gorm.Open(sqlite.Open(dsn), cfg.gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.Recorder != nil {
		if err := Instrument(db, cfg.Recorder); err != nil {
			return nil, err
		}
	}

	return &SQLiteManager{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Initialize creates the schema.
func (m *SQLiteManager) Initialize() error {
	return migrate(m.db)
}

// DB returns the underlying GORM database.
func (m *SQLiteManager) DB() *gorm.DB {
	return m.db
}

// Path returns the database file path.
func (m *SQLiteManager) Path() string {
	return m.dbPath
}

// Ping verifies the connection.
func (m *SQLiteManager) Ping(ctx context.Context) error {
	return ping(ctx, m.db)
}

// Close closes the database connection.
func (m *SQLiteManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

// Delete closes the connection and removes the database file with its WAL and SHM files.
func (m *SQLiteManager) Delete() error {
	if err := m.Close(); err != nil {
		return fmt.Errorf("failed to close database before deletion: %w", err)
	}
	if err := os.Remove(m.dbPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete database file: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(m.dbPath + suffix)
	}
	return nil
}

// Exists checks if the database file exists.
func (m *SQLiteManager) Exists() bool {
	_, err := os.Stat(m.dbPath)
	return err == nil
}

// IsMySQL returns false for SQLite manager.
func (m *SQLiteManager) IsMySQL() bool {
	return false
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(entities.All()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
