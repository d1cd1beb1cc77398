package datastore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/transformer-inspect/internal/datastore"
	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
	"github.com/tphakala/transformer-inspect/internal/testutil"
)

// getMySQLConfig returns MySQL config from environment variables.
// Returns nil if MySQL is not configured for testing.
func getMySQLConfig() *datastore.MySQLConfig {
	host := os.Getenv("MYSQL_TEST_HOST")
	if host == "" {
		return nil
	}
	port := os.Getenv("MYSQL_TEST_PORT")
	if port == "" {
		port = "3306"
	}
	return &datastore.MySQLConfig{
		Host:     host,
		Port:     port,
		Username: os.Getenv("MYSQL_TEST_USER"),
		Password: os.Getenv("MYSQL_TEST_PASSWORD"),
		Database: os.Getenv("MYSQL_TEST_DATABASE"),
	}
}

// openMySQL prefers an externally provided server and falls back to a container.
func openMySQL(t *testing.T) *datastore.MySQLManager {
	t.Helper()
	cfg := datastore.Config{Logger: testutil.DiscardLogger()}

	if mc := getMySQLConfig(); mc != nil {
		mgr, err := datastore.NewMySQLManager(mc, cfg)
		require.NoError(t, err)
		return mgr
	}

	if testing.Short() {
		t.Skip("skipping MySQL container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	container, err := mysql.Run(ctx, "mysql:8.0.36",
		mysql.WithDatabase("inspect"),
		mysql.WithUsername("inspect"),
		mysql.WithPassword("inspect"),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "charset=utf8mb4", "parseTime=True", "loc=Local")
	require.NoError(t, err)

	mgr, err := datastore.NewMySQLManagerFromDSN(dsn, cfg)
	require.NoError(t, err)
	return mgr
}

func TestMySQLManagerSchemaAndConstraints(t *testing.T) {
	mgr := openMySQL(t)
	t.Cleanup(func() { _ = mgr.Close() })

	require.NoError(t, mgr.Initialize())
	assert.True(t, mgr.IsMySQL())
	assert.True(t, mgr.Exists())
	require.NoError(t, mgr.Ping(context.Background()))

	db := mgr.DB()
	require.NoError(t, db.Create(newTransformer("MX-1")).Error)
	assert.ErrorIs(t, db.Create(newTransformer("mx-1")).Error, gorm.ErrDuplicatedKey)

	err := db.Create(&entities.Inspection{InspectionNo: "MX-INS", TransformerID: 424242}).Error
	assert.ErrorIs(t, err, gorm.ErrForeignKeyViolated)

	require.NoError(t, mgr.Delete())
	assert.False(t, mgr.Exists())
}
