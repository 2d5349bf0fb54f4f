package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the process needs. It is built once in main and
// passed explicitly to the components that use it.
type Config struct {
	Port string

	// GeminiAPIKey authenticates calls to the text-understanding model.
	GeminiAPIKey string
	// GeminiModel is the model name used for extraction.
	GeminiModel string

	// SheetID identifies the backing spreadsheet.
	SheetID string
	// CredentialsFile is the path to the Sheets service account JSON.
	// Empty means application default credentials.
	CredentialsFile string

	// ReadCacheTTL bounds how stale cached sheet reads may be.
	ReadCacheTTL time.Duration
}

// Load reads configuration from the environment, honoring a local .env file
// if one is present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:            getEnv("PORT", "8080"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		SheetID:         os.Getenv("GOOGLE_SHEET_ID"),
		CredentialsFile: os.Getenv("GOOGLE_SHEETS_CREDENTIALS"),
		ReadCacheTTL:    getEnvDuration("CACHE_TTL", 5*time.Minute),
	}

	if cfg.SheetID == "" {
		return Config{}, fmt.Errorf("config: GOOGLE_SHEET_ID is required")
	}
	if cfg.GeminiAPIKey == "" {
		return Config{}, fmt.Errorf("config: GEMINI_API_KEY is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// Accept bare seconds for convenience.
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
