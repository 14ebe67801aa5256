// Package config loads caephub's runtime configuration from the environment,
// optionally via a .env file, applying the same defaults documented for the
// hub's tunables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the hub reads from the environment.
type Config struct {
	DataDir string

	MaxMessageContentChars int
	MaxMessageMetadataChars int
	MaxProtocolBlobChars    int

	DisallowFullInPolling bool
	DoneConfidenceFloor   float64
	IdempotencyRetention  time.Duration

	NamespaceKeywords  []string
	LeaseDefaultSeconds int

	LogLevel  string
	LogJSON   bool
	HTTPAddr  string
}

// Default returns the configuration the hub runs with when no environment
// overrides are present.
func Default() Config {
	return Config{
		DataDir:                 "./data",
		MaxMessageContentChars:  1024,
		MaxMessageMetadataChars: 1024,
		MaxProtocolBlobChars:    32768,
		DisallowFullInPolling:   true,
		DoneConfidenceFloor:     0.9,
		IdempotencyRetention:    24 * time.Hour,
		NamespaceKeywords:       []string{"orchestration", "orchestrator", "coordination"},
		LeaseDefaultSeconds:     300,
		LogLevel:                "info",
		LogJSON:                 true,
		HTTPAddr:                ":8761",
	}
}

// Load reads envFile (if it exists; a missing file is not an error) with
// godotenv, then overlays the process environment on top of Default().
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return Config{}, fmt.Errorf("loading env file %s: %w", envFile, err)
			}
		}
	}

	cfg := Default()

	if v := os.Getenv("HUB_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v, ok := getInt("MAX_MESSAGE_CONTENT_CHARS"); ok {
		cfg.MaxMessageContentChars = v
	}
	if v, ok := getInt("MAX_MESSAGE_METADATA_CHARS"); ok {
		cfg.MaxMessageMetadataChars = v
	}
	if v, ok := getInt("MAX_PROTOCOL_BLOB_CHARS"); ok {
		cfg.MaxProtocolBlobChars = v
	}
	if v := os.Getenv("DISALLOW_FULL_IN_POLLING"); v != "" {
		cfg.DisallowFullInPolling = v != "0"
	}
	if v, ok := getFloat("DONE_CONFIDENCE_FLOOR"); ok {
		cfg.DoneConfidenceFloor = v
	}
	if v := os.Getenv("IDEMPOTENCY_RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parsing IDEMPOTENCY_RETENTION: %w", err)
		}
		cfg.IdempotencyRetention = d
	}
	if v := os.Getenv("HUB_NAMESPACE_KEYWORDS"); v != "" {
		cfg.NamespaceKeywords = splitCSV(v)
	}
	if v, ok := getInt("HUB_LEASE_DEFAULT_SECONDS"); ok {
		cfg.LeaseDefaultSeconds = v
	}
	if v := os.Getenv("HUB_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("HUB_LOG_JSON"); v != "" {
		cfg.LogJSON = v != "0"
	}
	if v := os.Getenv("HUB_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}

	return cfg, nil
}

func getInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func getFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
