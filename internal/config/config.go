package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/firewatch-analytics/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// FIRMS area API access.
	FIRMSAPIKey  string
	FIRMSBaseURL string
	FIRMSArea    string
	Sources      []domain.Source

	// Historical dataset bounds for the initial load.
	HistoricalStart time.Time
	HistoricalEnd   time.Time

	// Local archive CSV substitution for dates the live API no longer serves.
	ArchivePath  string
	ArchiveStart time.Time
	ArchiveEnd   time.Time

	// Acquisition pacing and retry policy.
	RateLimitDelay   time.Duration
	FetchTimeout     time.Duration
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration

	// Derived-view cache.
	CacheTTL time.Duration

	// Hotspot clustering policy.
	HotspotGridSize        float64
	HotspotMediumThreshold int
	HotspotHighThreshold   int

	// Periodic refresh (disabled when RefreshInterval is zero).
	RefreshInterval time.Duration
	RefreshDays     int

	// Kafka detection sink (feature-flagged via KAFKA_ENABLED).
	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	apiKey := os.Getenv("FIRMS_API_KEY")
	if apiKey == "" {
		return nil, errors.New("FIRMS_API_KEY is required")
	}

	sources, err := parseSources(envOrDefault("SOURCES", string(domain.SourceMODIS)))
	if err != nil {
		return nil, err
	}

	histStart, err := parseDate("HISTORICAL_START", "2004-07-22")
	if err != nil {
		return nil, err
	}
	histEnd, err := parseDate("HISTORICAL_END", "2004-12-04")
	if err != nil {
		return nil, err
	}
	if histEnd.Before(histStart) {
		return nil, errors.New("HISTORICAL_END precedes HISTORICAL_START")
	}

	archiveStart, err := parseDate("ARCHIVE_START", histStart.Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	archiveEnd, err := parseDate("ARCHIVE_END", histEnd.Format(time.DateOnly))
	if err != nil {
		return nil, err
	}

	rateDelay, err := parseDuration("RATE_LIMIT_DELAY", "1s")
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	retryBase, err := parseDuration("RETRY_BASE_DELAY", "500ms")
	if err != nil {
		return nil, err
	}
	retryMax, err := parseDuration("RETRY_MAX_DELAY", "8s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("CACHE_TTL", "5m")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	retryAttempts, err := parseIntInRange("RETRY_MAX_ATTEMPTS", 4, 1, 10)
	if err != nil {
		return nil, err
	}

	gridSize, err := parsePositiveFloat("HOTSPOT_GRID_SIZE", 0.5)
	if err != nil {
		return nil, err
	}
	mediumThreshold, err := parseIntInRange("HOTSPOT_MEDIUM_THRESHOLD", 50, 1, 1_000_000)
	if err != nil {
		return nil, err
	}
	highThreshold, err := parseIntInRange("HOTSPOT_HIGH_THRESHOLD", 100, 1, 1_000_000)
	if err != nil {
		return nil, err
	}
	if highThreshold <= mediumThreshold {
		return nil, errors.New("HOTSPOT_HIGH_THRESHOLD must exceed HOTSPOT_MEDIUM_THRESHOLD")
	}

	refreshInterval := time.Duration(0)
	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		refreshInterval, err = time.ParseDuration(v)
		if err != nil || refreshInterval < 0 {
			return nil, errors.New("invalid REFRESH_INTERVAL")
		}
	}
	refreshDays, err := parseIntInRange("REFRESH_DAYS", 1, 1, 10)
	if err != nil {
		return nil, err
	}

	kafkaEnabled := false
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		FIRMSAPIKey:  apiKey,
		FIRMSBaseURL: envOrDefault("FIRMS_BASE_URL", "https://firms.modaps.eosdis.nasa.gov/api/area/csv"),
		FIRMSArea:    envOrDefault("FIRMS_AREA", "world"),
		Sources:      sources,

		HistoricalStart: histStart,
		HistoricalEnd:   histEnd,

		ArchivePath:  os.Getenv("ARCHIVE_PATH"),
		ArchiveStart: archiveStart,
		ArchiveEnd:   archiveEnd,

		RateLimitDelay:   rateDelay,
		FetchTimeout:     fetchTimeout,
		RetryMaxAttempts: retryAttempts,
		RetryBaseDelay:   retryBase,
		RetryMaxDelay:    retryMax,

		CacheTTL: cacheTTL,

		HotspotGridSize:        gridSize,
		HotspotMediumThreshold: mediumThreshold,
		HotspotHighThreshold:   highThreshold,

		RefreshInterval: refreshInterval,
		RefreshDays:     refreshDays,

		KafkaEnabled:   kafkaEnabled,
		KafkaBrokers:   parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: envOrDefault("KAFKA_SINK_TOPIC", "fire-detections"),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_SINK_TOPIC is not set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parseSources(s string) ([]domain.Source, error) {
	var sources []domain.Source
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		src, err := domain.ParseSource(part)
		if err != nil {
			return nil, fmt.Errorf("invalid SOURCES: %w", err)
		}
		sources = append(sources, src)
	}
	if len(sources) == 0 {
		return nil, errors.New("SOURCES is empty")
	}
	return sources, nil
}

func parseDate(key, fallback string) (time.Time, error) {
	s := envOrDefault(key, fallback)
	t, err := time.ParseInLocation(time.DateOnly, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return t, nil
}

func parseDuration(key, fallback string) (time.Duration, error) {
	s := envOrDefault(key, fallback)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseIntInRange(key string, fallback, min, max int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("invalid %s: %q (expected %d..%d)", key, s, min, max)
	}
	return n, nil
}

func parsePositiveFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return f, nil
}
