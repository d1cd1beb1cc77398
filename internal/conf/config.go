// Package conf loads the service configuration from YAML, .env files and
// TI_* environment variables through viper.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tphakala/transformer-inspect/internal/errors"
	"github.com/tphakala/transformer-inspect/internal/logger"
)

// EnvPrefix prefixes every environment override, e.g. TI_WEBSERVER_LISTEN.
const EnvPrefix = "TI"

const appDirName = "transformer-inspect"

// Settings is the complete service configuration.
type Settings struct {
	Debug bool `mapstructure:"debug" yaml:"debug"`

	WebServer WebServerSettings    `mapstructure:"webserver" yaml:"webserver"`
	Database  DatabaseSettings     `mapstructure:"database" yaml:"database"`
	Storage   StorageSettings      `mapstructure:"storage" yaml:"storage"`
	Detector  DetectorSettings     `mapstructure:"detector" yaml:"detector"`
	MQTT      MQTTSettings         `mapstructure:"mqtt" yaml:"mqtt"`
	Sentry    SentrySettings       `mapstructure:"sentry" yaml:"sentry"`
	Logging   logger.LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Cache     CacheSettings        `mapstructure:"cache" yaml:"cache"`
}

// WebServerSettings configures the HTTP listener and request limits.
type WebServerSettings struct {
	Listen          string            `mapstructure:"listen" yaml:"listen"`
	BodyLimit       string            `mapstructure:"bodylimit" yaml:"bodylimit"` // echo size string, e.g. 12M
	AllowedOrigins  []string          `mapstructure:"allowedorigins" yaml:"allowedorigins"`
	RateLimit       RateLimitSettings `mapstructure:"ratelimit" yaml:"ratelimit"`
	ReadTimeout     time.Duration     `mapstructure:"readtimeout" yaml:"readtimeout"`
	WriteTimeout    time.Duration     `mapstructure:"writetimeout" yaml:"writetimeout"`
	ShutdownTimeout time.Duration     `mapstructure:"shutdowntimeout" yaml:"shutdowntimeout"`
}

// RateLimitSettings limits upload and detect requests per client IP.
type RateLimitSettings struct {
	RequestsPerSecond float64 `mapstructure:"requestspersecond" yaml:"requestspersecond"` // 0 disables
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

// DatabaseSettings selects and configures the database backend.
type DatabaseSettings struct {
	Type      string         `mapstructure:"type" yaml:"type"` // sqlite or mysql
	SQLite    SQLiteSettings `mapstructure:"sqlite" yaml:"sqlite"`
	MySQL     MySQLSettings  `mapstructure:"mysql" yaml:"mysql"`
	SlowQuery time.Duration  `mapstructure:"slowquery" yaml:"slowquery"`
}

type SQLiteSettings struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type MySQLSettings struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`
}

// StorageSettings configures the image blob directory and upload policy.
type StorageSettings struct {
	UploadDir         string   `mapstructure:"uploaddir" yaml:"uploaddir"`
	MaxFileSize       int64    `mapstructure:"maxfilesize" yaml:"maxfilesize"`
	AllowedExtensions []string `mapstructure:"allowedextensions" yaml:"allowedextensions"`
}

// DetectorSettings points at the thermal anomaly detection service.
type DetectorSettings struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	URL       string        `mapstructure:"url" yaml:"url"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Threshold float64       `mapstructure:"threshold" yaml:"threshold"`
}

// MQTTSettings configures annotation event publishing.
type MQTTSettings struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Broker   string `mapstructure:"broker" yaml:"broker"`
	ClientID string `mapstructure:"clientid" yaml:"clientid"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	Topic    string `mapstructure:"topic" yaml:"topic"`
	QoS      int    `mapstructure:"qos" yaml:"qos"`
	Retain   bool   `mapstructure:"retain" yaml:"retain"`
}

// SentrySettings enables opt-in error reporting.
type SentrySettings struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	DSN         string `mapstructure:"dsn" yaml:"dsn"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

type CacheSettings struct {
	SummaryTTL time.Duration `mapstructure:"summaryttl" yaml:"summaryttl"`
}

// Load reads the configuration using the global viper instance, so flags
// bound with viper.BindPFlag take part. An empty configPath searches the
// default locations.
func Load(configPath string) (*Settings, error) {
	return LoadWith(viper.GetViper(), configPath)
}

// LoadWith reads the configuration into v. A .env file next to the config
// file (or in the working directory) is loaded first; it never overrides
// variables already set in the environment.
func LoadWith(v *viper.Viper, configPath string) (*Settings, error) {
	setDefaultConfig(v)

	if err := loadDotEnv(dotEnvDir(configPath)); err != nil {
		return nil, err
	}
	if err := bindEnvVars(v); err != nil {
		return nil, errors.New(err).
			Component(errors.ComponentConfig).
			Category(errors.CategoryConfiguration).
			Context("operation", "bind_env").
			Build()
	}

	if err := readConfig(v, configPath); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component(errors.ComponentConfig).
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// Defaults returns the settings produced by an empty configuration.
func Defaults() *Settings {
	v := viper.New()
	setDefaultConfig(v)
	settings := &Settings{}
	// Defaults are static values of the right types.
	_ = v.Unmarshal(settings)
	return settings
}

func readConfig(v *viper.Viper, configPath string) error {
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return errors.New(fmt.Errorf("error reading config file: %w", err)).
				Component(errors.ComponentConfig).
				Category(errors.CategoryConfiguration).
				Context("path", configPath).
				Build()
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range DefaultConfigPaths() {
		v.AddConfigPath(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// No file anywhere: run on defaults and environment.
			return nil
		}
		return errors.New(fmt.Errorf("fatal error reading config file: %w", err)).
			Component(errors.ComponentConfig).
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// DefaultConfigPaths lists the directories searched for config.yaml, in order.
func DefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", appDirName))
	}
	return append(paths, filepath.Join("/etc", appDirName))
}

func dotEnvDir(configPath string) string {
	if configPath == "" {
		return "."
	}
	return filepath.Dir(configPath)
}

func loadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.New(fmt.Errorf("error loading %s: %w", path, err)).
			Component(errors.ComponentConfig).
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// envKey maps a config key to its environment variable name.
func envKey(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
