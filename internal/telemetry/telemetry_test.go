package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/transformer-inspect/internal/buildinfo"
	"github.com/tphakala/transformer-inspect/internal/conf"
	"github.com/tphakala/transformer-inspect/internal/errors"
	"github.com/tphakala/transformer-inspect/internal/testutil"
)

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(conf.SentrySettings{Enabled: false, DSN: "https://key@example.invalid/1"},
		buildinfo.NewContext("1.0.0", "", ""), testutil.DiscardLogger())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	shutdown()

	assert.Nil(t, errors.GetTelemetryReporter())
}

func TestApplyPrivacyFilters(t *testing.T) {
	event := &sentry.Event{
		ServerName: "inspect-01.grid.local",
		User:       sentry.User{ID: "alice", IPAddress: "10.0.0.7"},
		Contexts: map[string]sentry.Context{
			"os":       {"name": "linux"},
			"device":   {"arch": "amd64"},
			"platform": {"go_version": "go1.26"},
		},
		Extra: map[string]any{"component": "datastore", "query": "SELECT *", "error_type": "x"},
		Tags:  map[string]string{"hostname": "inspect-01", "category": "database"},
	}

	out := applyPrivacyFilters(event)

	assert.Empty(t, out.ServerName)
	assert.True(t, out.User.IsEmpty())
	assert.NotContains(t, out.Contexts, "os")
	assert.NotContains(t, out.Contexts, "device")
	assert.Contains(t, out.Contexts, "platform")
	assert.Equal(t, map[string]any{"component": "datastore", "error_type": "x"}, out.Extra)
	assert.Equal(t, map[string]string{"category": "database"}, out.Tags)
}

func TestSystemID(t *testing.T) {
	id, err := GenerateSystemID()
	require.NoError(t, err)
	assert.Regexp(t, systemIDPattern, id)

	dir := filepath.Join(t.TempDir(), "data")
	first, err := LoadOrCreateSystemID(dir)
	require.NoError(t, err)
	second, err := LoadOrCreateSystemID(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second, "the id is persisted")

	require.NoError(t, os.WriteFile(filepath.Join(dir, systemIDFile), []byte("not-an-id"), 0o600))
	replaced, err := LoadOrCreateSystemID(dir)
	require.NoError(t, err)
	assert.NotEqual(t, "not-an-id", replaced)
	assert.Regexp(t, systemIDPattern, replaced)
}
