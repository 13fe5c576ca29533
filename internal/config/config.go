package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Fetch backends.
const (
	BackendNaver         = "naver"
	BackendElasticsearch = "elasticsearch"
	BackendRSS           = "rss"
)

// DotEnvPaths are searched in order for a .env file.
var DotEnvPaths = []string{".env", "../.env", "../../.env"}

// Naver holds Open API access settings.
type Naver struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
}

// Elasticsearch describes the news archive used by the elasticsearch backend.
type Elasticsearch struct {
	Addr  string
	Index string
}

// Fetch tunes outbound search calls.
type Fetch struct {
	Timeout     time.Duration
	Limit       int
	Concurrency int
	RatePerSec  float64
	Burst       int
}

// Audit configures search audit events. No brokers disables them.
type Audit struct {
	KafkaBrokers []string
	Topic        string
}

// API describes HTTP-layer configuration.
type API struct {
	BindAddr       string
	StaticDir      string
	Backend        string
	DefaultDisplay int
	RSSSearchURL   string
	Naver          Naver
	Elasticsearch  Elasticsearch
	Fetch          Fetch
	Audit          Audit
}

// LoadDotEnv loads the first .env file found in paths without overriding
// variables already set. It returns the loaded path, or "" when none exists.
func LoadDotEnv(paths ...string) (string, error) {
	if len(paths) == 0 {
		paths = DotEnvPaths
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", fmt.Errorf("stat %s: %w", path, err)
		}
		if err := godotenv.Load(path); err != nil {
			return "", fmt.Errorf("load %s: %w", path, err)
		}
		return path, nil
	}
	return "", nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{
		BindAddr:       getEnv("API_BIND_ADDR", "0.0.0.0:8000"),
		StaticDir:      getEnv("STATIC_DIR", ""),
		Backend:        strings.ToLower(getEnv("NEWS_BACKEND", BackendNaver)),
		DefaultDisplay: getInt("SEARCH_DEFAULT_DISPLAY", 50),
		RSSSearchURL:   getEnv("RSS_SEARCH_URL", "https://news.google.com/rss/search?q=%s&hl=ko&gl=KR&ceid=KR:ko"),
		Naver: Naver{
			ClientID:     strings.TrimSpace(os.Getenv("NAVER_CLIENT_ID")),
			ClientSecret: strings.TrimSpace(os.Getenv("NAVER_CLIENT_SECRET")),
			BaseURL:      getEnv("NAVER_API_URL", "https://openapi.naver.com/v1/search/news.json"),
		},
		Elasticsearch: Elasticsearch{
			Addr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
			Index: getEnv("ELASTICSEARCH_INDEX", "news"),
		},
		Fetch: Fetch{
			Timeout:     getDuration("FETCH_TIMEOUT", "10s"),
			Limit:       getInt("FETCH_LIMIT", 100),
			Concurrency: getInt("FETCH_CONCURRENCY", 4),
			RatePerSec:  getFloat("FETCH_RATE_PER_SEC", 10),
			Burst:       getInt("FETCH_BURST", 10),
		},
		Audit: Audit{
			KafkaBrokers: splitAndTrim(getEnv("KAFKA_BROKERS", "")),
			Topic:        getEnv("KAFKA_AUDIT_TOPIC", "news_searches"),
		},
	}

	switch c.Backend {
	case BackendNaver, BackendElasticsearch, BackendRSS:
	default:
		return nil, fmt.Errorf("NEWS_BACKEND must be one of %s, %s, %s", BackendNaver, BackendElasticsearch, BackendRSS)
	}

	if c.DefaultDisplay <= 0 {
		return nil, fmt.Errorf("SEARCH_DEFAULT_DISPLAY must be positive")
	}
	if c.Fetch.Timeout <= 0 {
		return nil, fmt.Errorf("FETCH_TIMEOUT must be positive")
	}
	if c.Fetch.Limit <= 0 || c.Fetch.Limit > 100 {
		return nil, fmt.Errorf("FETCH_LIMIT must be between 1 and 100")
	}
	if c.Fetch.Concurrency <= 0 {
		return nil, fmt.Errorf("FETCH_CONCURRENCY must be positive")
	}
	if c.Fetch.RatePerSec < 0 {
		return nil, fmt.Errorf("FETCH_RATE_PER_SEC cannot be negative")
	}
	if c.Fetch.RatePerSec > 0 && c.Fetch.Burst <= 0 {
		return nil, fmt.Errorf("FETCH_BURST must be positive when rate limiting is enabled")
	}
	if len(c.Audit.KafkaBrokers) > 0 && c.Audit.Topic == "" {
		return nil, fmt.Errorf("KAFKA_AUDIT_TOPIC must be set when KAFKA_BROKERS is")
	}

	return c, nil
}

// HasNaverCredentials reports whether both Naver keys are configured.
func (c *API) HasNaverCredentials() bool {
	return c.Naver.ClientID != "" && c.Naver.ClientSecret != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
