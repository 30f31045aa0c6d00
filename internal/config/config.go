// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for the ingest service.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	RapidAPIKey string // optional; absent key only disables the JSearch source

	ScrapeIntervalHours int
	VerifyIntervalHours int
	SearchTerms         []string // default queries the scheduler cycles through
	ScrapeLockTTL       time.Duration

	BrowserEnabled   bool // the browser source needs a local Chrome install
	BrowserHeadless  bool
	ChromeProfileDir string
	CookiesFile      string
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	scrapeInterval, err := getEnvPositiveInt("SCRAPE_INTERVAL_HOURS", 6)
	if err != nil {
		return nil, err
	}
	verifyInterval, err := getEnvPositiveInt("VERIFY_INTERVAL_HOURS", 12)
	if err != nil {
		return nil, err
	}

	terms := []string{"Software Engineer", "Data Scientist", "Product Manager"}
	if s := os.Getenv("SEARCH_TERMS"); s != "" {
		terms = terms[:0]
		for _, t := range strings.Split(s, ",") {
			if t = strings.TrimSpace(t); t != "" {
				terms = append(terms, t)
			}
		}
	}

	return &Config{
		Port:                getEnvString("INGEST_PORT", "8080"),
		DatabaseURL:         dbURL,
		RedisURL:            redisURL,
		RapidAPIKey:         os.Getenv("RAPIDAPI_KEY"),
		ScrapeIntervalHours: scrapeInterval,
		VerifyIntervalHours: verifyInterval,
		SearchTerms:         terms,
		ScrapeLockTTL:       getEnvDuration("SCRAPE_LOCK_TTL", 30*time.Minute),
		BrowserEnabled:      getEnvBool("BROWSER_ENABLED", false),
		BrowserHeadless:     getEnvBool("BROWSER_HEADLESS", true),
		ChromeProfileDir:    getEnvString("CHROME_PROFILE_DIR", "chrome_profile"),
		CookiesFile:         getEnvString("COOKIES_FILE", "indeed_cookies.json"),
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvPositiveInt(key string, defaultValue int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, s)
	}
	return v, nil
}
