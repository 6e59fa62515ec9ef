package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Supabase  SupabaseConfig
	Archive   ArchiveConfig
	Scheduler SchedulerConfig
	Pipeline  PipelineConfig
	DBPath    string
	LogLevel  string
	Searches  map[string]*SearchConfig
}

type SupabaseConfig struct {
	URL        string
	ServiceKey string
	DBURL      string
}

// ArchiveConfig configures the optional raw-payload archive (S3-compatible).
type ArchiveConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != "" && a.AccessKeyID != ""
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

// PipelineConfig carries every tunable of the acquisition pipeline.
// Tunables live here, not in package globals.
type PipelineConfig struct {
	BaseURL        string
	UserAgent      string
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	MaxResults     int
	RatePerSec     float64
	RateBurst      int
}

// SearchConfig is a saved search the scheduler acquires on a cadence.
type SearchConfig struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	City        string   `yaml:"city"`
	State       string   `yaml:"state"`
	Keywords    []string `yaml:"keywords"`
	ListingType string   `yaml:"listing_type"`
	MaxRetries  int      `yaml:"max_retries"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Supabase: SupabaseConfig{
			URL:        os.Getenv("SUPABASE_URL"),
			ServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
			DBURL:      os.Getenv("SUPABASE_DB_URL"),
		},
		Archive: ArchiveConfig{
			Bucket:          os.Getenv("ARCHIVE_BUCKET"),
			Region:          getEnv("ARCHIVE_REGION", "us-east-1"),
			Endpoint:        os.Getenv("ARCHIVE_ENDPOINT"),
			AccessKeyID:     os.Getenv("ARCHIVE_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("ARCHIVE_SECRET_ACCESS_KEY"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("ACQUIRE_CRON"),
		},
		Pipeline: PipelineConfig{
			BaseURL:        getEnv("MARKETPLACE_BASE_URL", "https://www.redfin.com"),
			UserAgent:      getEnv("SCRAPE_USER_AGENT", defaultUserAgent),
			RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 20*time.Second),
			MaxRetries:     getEnvInt("MAX_RETRIES", 3),
			RetryBaseDelay: getEnvDuration("RETRY_BASE_DELAY", 2*time.Second),
			MaxResults:     getEnvInt("MAX_RESULTS", 50),
			RatePerSec:     getEnvFloat("RATE_PER_SEC", 1.0),
			RateBurst:      getEnvInt("RATE_BURST", 2),
		},
		DBPath:   getEnv("DB_PATH", "leads.db"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Searches: make(map[string]*SearchConfig),
	}

	if interval := os.Getenv("ACQUIRE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadSearchConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func (c *Config) loadSearchConfigs() error {
	configDir := "config/searches"
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var search SearchConfig
		if err := yaml.Unmarshal(data, &search); err != nil {
			return err
		}
		if search.MaxRetries == 0 {
			search.MaxRetries = c.Pipeline.MaxRetries
		}

		c.Searches[search.ID] = &search
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
