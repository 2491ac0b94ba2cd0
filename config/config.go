package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// defaultSearchURL is used when no search configs exist on disk.
const defaultSearchURL = "https://losangeles.craigslist.org/search/cta?query=honda+civic"

// defaultFilterKeywords exclude obviously damaged vehicles by title.
const defaultFilterKeywords = "salvage,rebuilt,flood,damaged,parts"

type Config struct {
	DatabaseURL string // postgres DSN; empty means SQLite at DBPath
	DBPath      string
	ListenAddr  string
	LogLevel    string

	Scheduler SchedulerConfig
	Scraper   ScraperConfig
	KBB       KBBConfig
	Export    ExportConfig

	FilterKeywords []string
	Searches       map[string]*SearchConfig
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type ScraperConfig struct {
	DelayMS  int
	MaxPages int
	Handler  string // "http" or "browser"
}

type KBBConfig struct {
	BatchSize int
	Interval  time.Duration
}

type ExportConfig struct {
	Cron            string
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

// SearchConfig describes one classifieds search to ingest.
type SearchConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	Handler     string `yaml:"handler"`
	RateLimitMS int    `yaml:"rate_limit_ms"`
	MaxPages    int    `yaml:"max_pages"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBPath:      getEnv("DB_PATH", "dealwatch.db"),
		ListenAddr:  getEnv("LISTEN_ADDR", ":8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
		},
		Scraper: ScraperConfig{
			DelayMS:  getEnvInt("SCRAPE_DELAY_MS", 500),
			MaxPages: getEnvInt("SCRAPE_MAX_PAGES", 5),
			Handler:  getEnv("SCRAPE_HANDLER", "http"),
		},
		KBB: KBBConfig{
			BatchSize: getEnvInt("KBB_BATCH_SIZE", 50),
			Interval:  getEnvDuration("KBB_INTERVAL", 10*time.Minute),
		},
		Export: ExportConfig{
			Cron:            os.Getenv("EXPORT_CRON"),
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			Prefix:          getEnv("S3_PREFIX", "snapshots"),
		},
		Searches: make(map[string]*SearchConfig),
	}

	for _, kw := range strings.Split(getEnv("FILTER_KEYWORDS", defaultFilterKeywords), ",") {
		kw = strings.TrimSpace(kw)
		if kw != "" {
			cfg.FilterKeywords = append(cfg.FilterKeywords, kw)
		}
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadSearchConfigs(); err != nil {
		return nil, err
	}

	// Always have at least one search so a bare install does something.
	if len(cfg.Searches) == 0 {
		cfg.Searches["default"] = &SearchConfig{
			ID:   "default",
			Name: "default",
			URL:  getEnv("SEARCH_URL", defaultSearchURL),
		}
	}

	return cfg, nil
}

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

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
