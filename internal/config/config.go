// Package config loads service settings from the environment and an optional
// config file. Keys map to upper-cased environment variables (kafka_broker ->
// KAFKA_BROKER).
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"product-crawler/internal/fetch"
	"product-crawler/internal/models"
)

// Config holds settings for every binary; each reads the keys it needs.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	KafkaBroker  string
	JobsTopic    string
	ResultsTopic string
	GroupID      string
	ResultsGroup string

	RedisAddr    string
	StatusPrefix string
	StatusTTL    time.Duration
	DedupeTTL    time.Duration
	AsyncEnabled bool

	// WorkerConcurrency caps the sessions one worker crawls at a time.
	WorkerConcurrency int

	FetchTimeout time.Duration
	MaxBodyBytes int64
	UserAgent    string
	ProxyURL     string
	ProxyPool    string

	Limits models.Limits

	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	LogLevel  string
	LogFormat string
}

// DefaultUserAgent identifies the crawler to the sites it visits.
const DefaultUserAgent = "ProductCrawler/1.0"

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("kafka_broker", "localhost:9092")
	v.SetDefault("kafka_jobs_topic", "product-crawler.crawl.jobs")
	v.SetDefault("kafka_results_topic", "product-crawler.crawl.results")
	v.SetDefault("kafka_group_id", "product-crawler-worker")
	v.SetDefault("kafka_results_group", "product-crawler-graph")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("status_prefix", "crawl:session:")
	v.SetDefault("status_ttl", "24h")
	v.SetDefault("dedupe_ttl", "24h")
	v.SetDefault("async_enabled", false)
	v.SetDefault("worker_concurrency", 2)
	v.SetDefault("fetch_timeout", "10s")
	v.SetDefault("max_body_bytes", 10<<20)
	v.SetDefault("user_agent", DefaultUserAgent)
	v.SetDefault("proxy_url", "")
	v.SetDefault("proxy_pool", "")
	v.SetDefault("max_pages", models.DefaultMaxPages)
	v.SetDefault("max_depth", models.DefaultMaxDepth)
	v.SetDefault("neo4j_uri", "neo4j://localhost:7687")
	v.SetDefault("neo4j_user", "neo4j")
	v.SetDefault("neo4j_password", "neo4j")
	v.SetDefault("neo4j_database", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

// Load reads the environment (and CONFIG_FILE, when set) into a Config.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg := Config{
		HTTPAddr:      v.GetString("http_addr"),
		MetricsAddr:   v.GetString("metrics_addr"),
		KafkaBroker:   v.GetString("kafka_broker"),
		JobsTopic:     v.GetString("kafka_jobs_topic"),
		ResultsTopic:  v.GetString("kafka_results_topic"),
		GroupID:       v.GetString("kafka_group_id"),
		ResultsGroup:  v.GetString("kafka_results_group"),
		RedisAddr:     v.GetString("redis_addr"),
		StatusPrefix:  v.GetString("status_prefix"),
		StatusTTL:     v.GetDuration("status_ttl"),
		DedupeTTL:     v.GetDuration("dedupe_ttl"),
		AsyncEnabled:  v.GetBool("async_enabled"),
		FetchTimeout:  v.GetDuration("fetch_timeout"),
		MaxBodyBytes:  v.GetInt64("max_body_bytes"),
		UserAgent:     v.GetString("user_agent"),
		ProxyURL:      v.GetString("proxy_url"),
		ProxyPool:     v.GetString("proxy_pool"),
		Limits:        models.Limits{MaxPages: v.GetInt("max_pages"), MaxDepth: v.GetInt("max_depth")},
		Neo4jURI:      v.GetString("neo4j_uri"),
		Neo4jUser:     v.GetString("neo4j_user"),
		Neo4jPassword: v.GetString("neo4j_password"),
		Neo4jDatabase: v.GetString("neo4j_database"),
		LogLevel:      v.GetString("log_level"),
		LogFormat:     v.GetString("log_format"),

		WorkerConcurrency: v.GetInt("worker_concurrency"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the fetch layer cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("fetch_timeout must be positive, got %s", c.FetchTimeout))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_body_bytes must be positive, got %d", c.MaxBodyBytes))
	}
	if c.WorkerConcurrency < 1 {
		errs = append(errs, fmt.Errorf("worker_concurrency must be at least 1, got %d", c.WorkerConcurrency))
	}
	return errors.Join(errs...)
}

// FetchOptions returns the fetch session settings.
func (c Config) FetchOptions() fetch.Options {
	return fetch.Options{
		Timeout:      c.FetchTimeout,
		MaxBodyBytes: c.MaxBodyBytes,
		UserAgent:    c.UserAgent,
		ProxyURL:     c.ProxyURL,
		ProxyPool:    c.ProxyPool,
	}
}
