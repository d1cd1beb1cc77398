package telemetry

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tphakala/transformer-inspect/internal/errors"
)

const systemIDFile = ".system_id"

var systemIDPattern = regexp.MustCompile(`^[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}$`)

// GenerateSystemID returns a random installation id formatted XXXX-XXXX-XXXX.
func GenerateSystemID() (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	id := strings.ToUpper(hex.EncodeToString(b))
	return id[0:4] + "-" + id[4:8] + "-" + id[8:12], nil
}

// LoadOrCreateSystemID reads the installation id kept in dir, creating a new
// one when the file is missing or malformed. The id only tags telemetry events.
func LoadOrCreateSystemID(dir string) (string, error) {
	path := filepath.Join(dir, systemIDFile)
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.ToUpper(strings.TrimSpace(string(data))); systemIDPattern.MatchString(id) {
			return id, nil
		}
	}

	id, err := GenerateSystemID()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", systemIDError(err, dir)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		return "", systemIDError(err, path)
	}
	return id, nil
}

func systemIDError(err error, path string) error {
	return errors.New(fmt.Errorf("failed to save system ID: %w", err)).
		Component(errors.ComponentConfig).
		Category(errors.CategoryFileIO).
		Context("path", path).
		Build()
}
