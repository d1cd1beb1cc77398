package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration. Every key has a default so
// that AutomaticEnv overrides reach Unmarshal.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("webserver.listen", ":8080")
	v.SetDefault("webserver.bodylimit", "12M")
	v.SetDefault("webserver.allowedorigins", []string{"*"})
	v.SetDefault("webserver.ratelimit.requestspersecond", 2.0)
	v.SetDefault("webserver.ratelimit.burst", 5)
	v.SetDefault("webserver.readtimeout", 30*time.Second)
	v.SetDefault("webserver.writetimeout", 2*time.Minute)
	v.SetDefault("webserver.shutdowntimeout", 10*time.Second)

	v.SetDefault("database.type", DatabaseSQLite)
	v.SetDefault("database.sqlite.path", "data/transformer-inspect.db")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", "3306")
	v.SetDefault("database.mysql.username", "")
	v.SetDefault("database.mysql.password", "")
	v.SetDefault("database.mysql.database", "transformer_inspect")
	v.SetDefault("database.slowquery", 200*time.Millisecond)

	v.SetDefault("storage.uploaddir", "uploads")
	v.SetDefault("storage.maxfilesize", int64(10<<20))
	v.SetDefault("storage.allowedextensions", []string{"jpg", "jpeg", "png", "tiff", "gif", "bmp", "webp"})

	v.SetDefault("detector.enabled", false)
	v.SetDefault("detector.url", "http://localhost:8000")
	v.SetDefault("detector.timeout", 60*time.Second)
	v.SetDefault("detector.threshold", 0.25)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.clientid", appDirName)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic", appDirName)
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.retain", false)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/transformer-inspect.log")
	v.SetDefault("logging.file_output.level", "info")
	v.SetDefault("logging.module_levels", map[string]string{})

	v.SetDefault("cache.summaryttl", 30*time.Second)
}
