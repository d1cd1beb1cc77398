package conf

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"

	"github.com/labstack/gommon/bytes"
)

// Database backends.
const (
	DatabaseSQLite = "sqlite"
	DatabaseMySQL  = "mysql"
)

var logLevels = []string{"trace", "debug", "info", "warn", "warning", "error"}

func validLogLevel(level string) bool {
	return slices.Contains(logLevels, strings.ToLower(strings.TrimSpace(level)))
}

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings checks every section and reports all problems at once.
// It normalizes the database type to lower case.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}
	for _, check := range []func(*Settings) []string{
		validateWebServerSettings,
		validateDatabaseSettings,
		validateStorageSettings,
		validateDetectorSettings,
		validateMQTTSettings,
		validateSentrySettings,
		validateLoggingSettings,
	} {
		ve.Errors = append(ve.Errors, check(settings)...)
	}
	if settings.Cache.SummaryTTL < 0 {
		ve.Errors = append(ve.Errors, "cache.summaryttl must not be negative")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateWebServerSettings(s *Settings) []string {
	var errs []string
	ws := &s.WebServer
	if _, _, err := net.SplitHostPort(ws.Listen); err != nil {
		errs = append(errs, fmt.Sprintf("webserver.listen %q must be host:port: %v", ws.Listen, err))
	}
	if _, err := bytes.Parse(ws.BodyLimit); err != nil || ws.BodyLimit == "" {
		errs = append(errs, fmt.Sprintf("webserver.bodylimit %q is not a size such as 12M", ws.BodyLimit))
	}
	if ws.RateLimit.RequestsPerSecond < 0 || ws.RateLimit.Burst < 0 {
		errs = append(errs, "webserver.ratelimit values must not be negative")
	}
	if ws.ReadTimeout < 0 || ws.WriteTimeout < 0 || ws.ShutdownTimeout < 0 {
		errs = append(errs, "webserver timeouts must not be negative")
	}
	return errs
}

func validateDatabaseSettings(s *Settings) []string {
	var errs []string
	db := &s.Database
	db.Type = strings.ToLower(strings.TrimSpace(db.Type))
	switch db.Type {
	case DatabaseSQLite:
		if strings.TrimSpace(db.SQLite.Path) == "" {
			errs = append(errs, "database.sqlite.path is required")
		}
	case DatabaseMySQL:
		if db.MySQL.Host == "" {
			errs = append(errs, "database.mysql.host is required")
		}
		if db.MySQL.Database == "" {
			errs = append(errs, "database.mysql.database is required")
		}
		if db.MySQL.Username == "" {
			errs = append(errs, "database.mysql.username is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.type %q must be %q or %q", db.Type, DatabaseSQLite, DatabaseMySQL))
	}
	if db.SlowQuery < 0 {
		errs = append(errs, "database.slowquery must not be negative")
	}
	return errs
}

func validateStorageSettings(s *Settings) []string {
	var errs []string
	if strings.TrimSpace(s.Storage.UploadDir) == "" {
		errs = append(errs, "storage.uploaddir is required")
	}
	if s.Storage.MaxFileSize <= 0 {
		errs = append(errs, "storage.maxfilesize must be positive")
	}
	for _, ext := range s.Storage.AllowedExtensions {
		if strings.ContainsAny(strings.TrimPrefix(ext, "."), `./\ `) || ext == "" {
			errs = append(errs, fmt.Sprintf("storage.allowedextensions entry %q is not an extension", ext))
		}
	}
	return errs
}

func validateDetectorSettings(s *Settings) []string {
	d := &s.Detector
	if !d.Enabled {
		return nil
	}
	var errs []string
	if u, err := url.Parse(d.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("detector.url %q must be an http(s) URL", d.URL))
	}
	if d.Timeout <= 0 {
		errs = append(errs, "detector.timeout must be positive")
	}
	if d.Threshold != 0 && (d.Threshold < 0.1 || d.Threshold > 1.0) {
		errs = append(errs, fmt.Sprintf("detector.threshold %g must be between 0.1 and 1.0", d.Threshold))
	}
	return errs
}

func validateMQTTSettings(s *Settings) []string {
	m := &s.MQTT
	if !m.Enabled {
		return nil
	}
	var errs []string
	if u, err := url.Parse(m.Broker); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("mqtt.broker %q must be a URL such as tcp://host:1883", m.Broker))
	}
	if strings.Trim(m.Topic, "/") == "" {
		errs = append(errs, "mqtt.topic is required")
	}
	if m.QoS < 0 || m.QoS > 2 {
		errs = append(errs, fmt.Sprintf("mqtt.qos %d must be 0, 1 or 2", m.QoS))
	}
	return errs
}

func validateSentrySettings(s *Settings) []string {
	if s.Sentry.Enabled && strings.TrimSpace(s.Sentry.DSN) == "" {
		return []string{"sentry.dsn is required when sentry is enabled"}
	}
	return nil
}

func validateLoggingSettings(s *Settings) []string {
	var errs []string
	if l := s.Logging.DefaultLevel; l != "" && !validLogLevel(l) {
		errs = append(errs, fmt.Sprintf("logging.default_level %q is unknown", l))
	}
	for module, l := range s.Logging.ModuleLevels {
		if !validLogLevel(l) {
			errs = append(errs, fmt.Sprintf("logging.module_levels.%s %q is unknown", module, l))
		}
	}
	slices.Sort(errs)
	return errs
}
