package datastore

import (
	"context"
	"fmt"
	"slices"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
)

// MySQLConfig holds MySQL-specific connection settings.
type MySQLConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// DSN builds the go-sql-driver connection string.
func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

// MySQLManager handles a MySQL database.
type MySQLManager struct {
	db       *gorm.DB
	location string // host:port/database for display
}

// NewMySQLManager connects to MySQL and configures the connection pool.
func NewMySQLManager(mc *MySQLConfig, cfg Config) (*MySQLManager, error) {
	return openMySQL(mc.DSN(), fmt.Sprintf("%s:%s/%s", mc.Host, mc.Port, mc.Database), cfg)
}

// NewMySQLManagerFromDSN connects with a prepared DSN, as handed out by test containers.
func NewMySQLManagerFromDSN(dsn string, cfg Config) (*MySQLManager, error) {
	return openMySQL(dsn, "dsn", cfg)
}

func openMySQL(dsn, location string, cfg Config) (*MySQLManager, error) {
	db, err := gorm.Open(mysql.Open(dsn), cfg.gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if cfg.Recorder != nil {
		if err := Instrument(db, cfg.Recorder); err != nil {
			return nil, err
		}
	}

	return &MySQLManager{db: db, location: location}, nil
}

// Initialize creates the schema tables.
func (m *MySQLManager) Initialize() error {
	return migrate(m.db)
}

// DB returns the underlying GORM database.
func (m *MySQLManager) DB() *gorm.DB {
	return m.db
}

// Path returns host:port/database.
func (m *MySQLManager) Path() string {
	return m.location
}

// Ping verifies the connection.
func (m *MySQLManager) Ping(ctx context.Context) error {
	return ping(ctx, m.db)
}

// Close closes the database connection.
func (m *MySQLManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

// Delete drops all tables, children first so foreign keys never block.
func (m *MySQLManager) Delete() error {
	models := entities.All()
	slices.Reverse(models)
	for _, model := range models {
		if err := m.db.Migrator().DropTable(model); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}
	return nil
}

// Exists reports whether the schema has been created.
func (m *MySQLManager) Exists() bool {
	return m.db.Migrator().HasTable(&entities.Transformer{})
}

// IsMySQL returns true.
func (m *MySQLManager) IsMySQL() bool {
	return true
}
