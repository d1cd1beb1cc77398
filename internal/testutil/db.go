package testutil

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tphakala/transformer-inspect/internal/datastore"
	"github.com/tphakala/transformer-inspect/internal/logger"
)

// TestClockStart is the first instant handed out by NewTestDB's clock.
var TestClockStart = time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

// NewTestDB opens and migrates a SQLite database under t.TempDir().
// A file is used rather than :memory: because pooled connections would each
// see a different in-memory database.
func NewTestDB(t *testing.T) (*datastore.SQLiteManager, *SteppingClock) {
	t.Helper()

	clock := NewSteppingClock(TestClockStart, time.Second)
	mgr, err := datastore.NewSQLiteManager(datastore.Config{
		DataDir: t.TempDir(),
		Logger:  logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC),
		NowFunc: clock.Now,
	})
	require.NoError(t, err)
	require.NoError(t, mgr.Initialize())
	t.Cleanup(func() { _ = mgr.Close() })

	return mgr, clock
}

// DiscardLogger returns a logger that drops everything below error.
func DiscardLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
}
