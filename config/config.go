package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is passed explicitly into the pipeline so concurrent runs never observe
// each other's configuration.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	PostgresEnabled  bool

	MaxConcurrency int
	RenderPoolSize int
	RateLimitMs    int
	MaxRetries     int
	RetryBaseMs    int

	OutputDir      string
	DiagnosticsDir string
	SourcesPath    string
	ChromeBin      string
	LogLevel       string
	TopN           int
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "market_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresEnabled:  getEnvBool("POSTGRES_ENABLED", false),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 2),
		RenderPoolSize: getEnvInt("RENDER_POOL_SIZE", 2),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 2000),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		RetryBaseMs:    getEnvInt("RETRY_BASE_MS", 2000),

		OutputDir:      getEnv("OUTPUT_DIR", "./outputs"),
		DiagnosticsDir: getEnv("DIAGNOSTICS_DIR", "./outputs/diagnostics"),
		SourcesPath:    getEnv("SOURCES_PATH", "./sources.yaml"),
		ChromeBin:      getEnv("CHROME_BIN", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		TopN:           getEnvInt("TOP_N", 10),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
