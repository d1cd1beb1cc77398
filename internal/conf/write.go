package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/tphakala/transformer-inspect/internal/errors"
)

// ErrConfigExists is returned by WriteDefaultConfig when the target exists.
var ErrConfigExists = errors.NewStd("config file already exists")

// WriteDefaultConfig writes the default settings as YAML to path. An
// existing file is only replaced when overwrite is set.
func WriteDefaultConfig(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
	}
	return SaveYAMLConfig(path, Defaults())
}

// SaveYAMLConfig writes settings to configPath. The file is replaced
// atomically, without preserving comments.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.New(err).
			Component(errors.ComponentConfig).
			Category(errors.CategoryFileIO).
			Context("path", dir).
			Build()
	}

	tempFile, err := os.CreateTemp(dir, "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer func() { _ = os.Remove(tempFileName) }()

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}
	if err := os.Rename(tempFileName, configPath); err != nil {
		return errors.New(fmt.Errorf("error replacing config file: %w", err)).
			Component(errors.ComponentConfig).
			Category(errors.CategoryFileIO).
			Context("path", configPath).
			Build()
	}
	return nil
}
