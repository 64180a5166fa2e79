// Package config loads process configuration from the environment, with
// sane local defaults, the same shape the rest of the fleet this engine
// was split out of uses.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server  ServerConfig
	Redis   RedisConfig
	Catalog CatalogConfig
	Archive ArchiveConfig
	Game    GameConfig
}

type ServerConfig struct {
	HTTPPort string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// CatalogConfig points at the Postgres-backed question bank the
// QuestionPipeline reads cached questions from and writes generated ones
// back into.
type CatalogConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// ArchiveConfig points at the RabbitMQ broker session outcome records are
// published to.
type ArchiveConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Queue    string
}

// GameConfig externalizes the tunable constants in the phase state
// machine and scoring formula so they can be adjusted per deployment
// without a recompile.
type GameConfig struct {
	CountdownDuration    time.Duration
	RevealDuration       time.Duration
	WinnerJingleDuration time.Duration
	HostReconnectWindow  time.Duration
	ProviderTimeout      time.Duration

	BaseScore      int
	StreakStep     int
	StreakCap      int
	TimeMultiplier float64
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: getEnv("HTTP_PORT", "8080"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "redis"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Catalog: CatalogConfig{
			Host:     getEnv("CATALOG_DB_HOST", "postgres"),
			Port:     getEnv("CATALOG_DB_PORT", "5432"),
			User:     getEnv("CATALOG_DB_USER", "queezy"),
			Password: getEnv("CATALOG_DB_PASSWORD", "queezy_password"),
			DBName:   getEnv("CATALOG_DB_NAME", "queezy"),
			SSLMode:  getEnv("CATALOG_DB_SSLMODE", "disable"),
		},
		Archive: ArchiveConfig{
			Host:     getEnv("ARCHIVE_MQ_HOST", "rabbitmq"),
			Port:     getEnv("ARCHIVE_MQ_PORT", "5672"),
			User:     getEnv("ARCHIVE_MQ_USER", "guest"),
			Password: getEnv("ARCHIVE_MQ_PASSWORD", "guest"),
			Queue:    getEnv("ARCHIVE_MQ_QUEUE", "game.session.events"),
		},
		Game: GameConfig{
			CountdownDuration:    time.Duration(getEnvAsInt("COUNTDOWN_DURATION_SEC", 3)) * time.Second,
			RevealDuration:       time.Duration(getEnvAsInt("REVEAL_DURATION_SEC", 5)) * time.Second,
			WinnerJingleDuration: time.Duration(getEnvAsInt("WINNER_JINGLE_DURATION_SEC", 3)) * time.Second,
			HostReconnectWindow:  time.Duration(getEnvAsInt("HOST_RECONNECT_WINDOW_SEC", 60)) * time.Second,
			ProviderTimeout:      time.Duration(getEnvAsInt("PROVIDER_TIMEOUT_SEC", 30)) * time.Second,
			BaseScore:            getEnvAsInt("SCORE_BASE", 1000),
			StreakStep:           getEnvAsInt("SCORE_STREAK_STEP", 100),
			StreakCap:            getEnvAsInt("SCORE_STREAK_CAP", 500),
			TimeMultiplier:       getEnvAsFloat("SCORE_TIME_MULTIPLIER", 0.5),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}
