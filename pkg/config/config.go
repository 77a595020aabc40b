package config

import "os"

// Config holds runtime configuration.
type Config struct {
	LogLevel       string
	DatabaseDriver string
	DatabaseDSN    string
	RedisAddr      string
	UpdaterKey     string
	ProfilePath    string
}

// Load loads configuration from environment variables.
func Load() *Config {
	logLevel := os.Getenv("RAIN_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	driver := os.Getenv("RAIN_DATABASE_DRIVER")
	if driver == "" {
		driver = "sqlite"
	}

	dsn := os.Getenv("RAIN_DATABASE_DSN")
	if dsn == "" {
		// Default to a local file database
		dsn = "file:rain.db"
	}

	key := os.Getenv("RAIN_UPDATER_KEY")
	if key == "" {
		// Development only; production deployments must set their own
		key = "rain-dev-updater-key-change-me!!"
	}

	return &Config{
		LogLevel:       logLevel,
		DatabaseDriver: driver,
		DatabaseDSN:    dsn,
		RedisAddr:      os.Getenv("RAIN_REDIS_ADDR"),
		UpdaterKey:     key,
		ProfilePath:    os.Getenv("RAIN_PROFILE"),
	}
}
