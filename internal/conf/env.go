package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding ties a config key to a validator for its environment override.
type envBinding struct {
	ConfigKey string
	Validate  func(string) error
}

// getEnvBindings lists the keys whose TI_* overrides are checked before use.
// Other keys are still overridable through AutomaticEnv.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", validateEnvBool},

		{"webserver.listen", validateEnvNonEmpty},
		{"webserver.ratelimit.requestspersecond", validateEnvNonNegativeFloat},
		{"webserver.ratelimit.burst", validateEnvNonNegativeInt},

		{"database.type", validateEnvDatabaseType},
		{"database.sqlite.path", validateEnvNonEmpty},
		{"database.mysql.host", nil},
		{"database.mysql.port", validateEnvPort},
		{"database.mysql.username", nil},
		{"database.mysql.password", nil},
		{"database.mysql.database", nil},

		{"storage.uploaddir", validateEnvNonEmpty},
		{"storage.maxfilesize", validateEnvPositiveInt},

		{"detector.enabled", validateEnvBool},
		{"detector.url", validateEnvURL},
		{"detector.timeout", validateEnvDuration},
		{"detector.threshold", validateEnvThreshold},

		{"mqtt.enabled", validateEnvBool},
		{"mqtt.broker", validateEnvURL},
		{"mqtt.username", nil},
		{"mqtt.password", nil},

		{"sentry.enabled", validateEnvBool},
		{"sentry.dsn", nil},

		{"logging.default_level", validateEnvLogLevel},
	}
}

// bindEnvVars sets up TI_* environment overrides and validates the ones that
// are set. All problems are reported together.
func bindEnvVars(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var warnings []string
	for _, binding := range getEnvBindings() {
		name := envKey(binding.ConfigKey)
		if err := v.BindEnv(binding.ConfigKey, name); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", name, err))
			continue
		}
		if binding.Validate == nil {
			continue
		}
		if value := os.Getenv(name); value != "" {
			if err := binding.Validate(value); err != nil {
				warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", name, value, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvNonEmpty(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("must not be blank")
	}
	return nil
}

func validateEnvNonNegativeFloat(value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid number: %w", err)
	}
	if f < 0 {
		return fmt.Errorf("must not be negative, got %g", f)
	}
	return nil
}

func validateEnvNonNegativeInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	if n < 0 {
		return fmt.Errorf("must not be negative, got %d", n)
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	if n <= 0 {
		return fmt.Errorf("must be positive, got %d", n)
	}
	return nil
}

func validateEnvDatabaseType(value string) error {
	switch strings.ToLower(value) {
	case DatabaseSQLite, DatabaseMySQL:
		return nil
	}
	return fmt.Errorf("must be %q or %q", DatabaseSQLite, DatabaseMySQL)
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("URL needs a scheme and host")
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("must be positive, got %s", d)
	}
	return nil
}

func validateEnvThreshold(value string) error {
	threshold, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid threshold: %w", err)
	}
	if threshold < 0.1 || threshold > 1.0 {
		return fmt.Errorf("threshold must be between 0.1 and 1.0, got %g", threshold)
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	if !validLogLevel(value) {
		return fmt.Errorf("unknown log level, want one of %s", strings.Join(logLevels, ", "))
	}
	return nil
}
