package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Server
	Port string

	// Secrets
	InternalSharedSecret string
	AnalysisAPIKey       string

	// Analysis backend
	AnalysisAPIURL  string
	AnalysisModel   string
	AnalysisTimeout time.Duration

	// Limits
	MaxJSONBodyBytes int64
	MaxFileBytes     int64
	MaxWords         int

	// Concurrency
	MaxConcurrentRequests int64
	MaxAnalysisConcurrent int64

	// Server timeouts
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	// Request timeouts
	ExtractTimeout time.Duration

	// rate limiting (per IP)
	RateLimitEvery time.Duration
	RateLimitBurst int

	// housekeeping
	CleanupInterval time.Duration

	// health
	HealthDegradeRatio float64

	// http
	MaxHeaderBytes int
}

func Load() Config {
	cfg := Config{
		Port: envStr("PORT", "8080"),

		InternalSharedSecret: envStr("INTERNAL_SHARED_SECRET", ""),
		AnalysisAPIKey:       envStr("ANALYSIS_API_KEY", ""),

		AnalysisAPIURL:  envStr("ANALYSIS_API_URL", "https://api.openai.com/v1/chat/completions"),
		AnalysisModel:   envStr("ANALYSIS_MODEL", "gpt-4o-mini"),
		AnalysisTimeout: envDur("ANALYSIS_TIMEOUT", 60*time.Second),

		MaxJSONBodyBytes: int64(envInt("MAX_JSON_BODY_BYTES", 2<<20)),
		MaxFileBytes:     int64(envInt("MAX_FILE_BYTES", 10<<20)),
		MaxWords:         envInt("MAX_WORDS", 50000),

		MaxConcurrentRequests: int64(envInt("MAX_CONCURRENT_REQUESTS", 15)),
		MaxAnalysisConcurrent: int64(envInt("MAX_ANALYSIS_CONCURRENT", 3)),

		ReadHeaderTimeout: envDur("READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:       envDur("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:      envDur("WRITE_TIMEOUT", 180*time.Second),
		IdleTimeout:       envDur("IDLE_TIMEOUT", 60*time.Second),

		ExtractTimeout: envDur("EXTRACT_TIMEOUT", 120*time.Second),

		RateLimitEvery: envDur("RATE_LIMIT_EVERY", 600*time.Millisecond),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),

		CleanupInterval: envDur("CLEANUP_INTERVAL", 5*time.Minute),

		HealthDegradeRatio: envFloat("HEALTH_DEGRADE_RATIO", 0.9),

		MaxHeaderBytes: envInt("MAX_HEADER_BYTES", 1<<20),
	}

	if path := envStr("CONFIG_FILE", ""); path != "" {
		cfg.applyFile(path)
	}
	return cfg
}

func (c Config) Validate() error {
	if len(strings.TrimSpace(c.InternalSharedSecret)) < 32 {
		return fmt.Errorf("INTERNAL_SHARED_SECRET must be at least 32 characters")
	}
	return nil
}

// fileConfig is the optional YAML overlay for deploy-time overrides. Only
// non-secret settings may be set from the file; secrets stay env-only.
type fileConfig struct {
	Port            string `yaml:"port"`
	AnalysisAPIURL  string `yaml:"analysisApiUrl"`
	AnalysisModel   string `yaml:"analysisModel"`
	AnalysisTimeout string `yaml:"analysisTimeout"`
	MaxFileBytes    int64  `yaml:"maxFileBytes"`
	MaxWords        int    `yaml:"maxWords"`
}

func (c *Config) applyFile(path string) {
	b, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: config file %s not readable: %v\n", path, err)
		return
	}

	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		fmt.Fprintf(os.Stderr, "warning: config file %s not parseable: %v\n", path, err)
		return
	}

	if fc.Port != "" {
		c.Port = fc.Port
	}
	if fc.AnalysisAPIURL != "" {
		c.AnalysisAPIURL = fc.AnalysisAPIURL
	}
	if fc.AnalysisModel != "" {
		c.AnalysisModel = fc.AnalysisModel
	}
	if fc.AnalysisTimeout != "" {
		if d, err := time.ParseDuration(fc.AnalysisTimeout); err == nil && d > 0 {
			c.AnalysisTimeout = d
		}
	}
	if fc.MaxFileBytes > 0 {
		c.MaxFileBytes = fc.MaxFileBytes
	}
	if fc.MaxWords > 0 {
		c.MaxWords = fc.MaxWords
	}
}

func envStr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func envDur(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
