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
	Database  DatabaseConfig
	Scraper   ScraperConfig
	Scheduler SchedulerConfig
	Checker   CheckerConfig
	Telegram  TelegramConfig
	DBPath    string
	LogLevel  string
	Sites     map[string]*SiteConfig
}

type DatabaseConfig struct {
	URL string
}

type ScraperConfig struct {
	MaxPages         int
	Delay            time.Duration
	BatchSize        int
	FetchMaxAttempts int
	ParseRetries     int
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type CheckerConfig struct {
	LinkedInterval   time.Duration
	UnlinkedInterval time.Duration
	BatchSize        int
}

type TelegramConfig struct {
	BotToken string
	ChatID   string
}

type SiteConfig struct {
	ID        string            `yaml:"id"`
	Name      string            `yaml:"name"`
	BaseURL   string            `yaml:"base_url"`
	PageParam string            `yaml:"page_param"`
	Params    map[string]string `yaml:"params"`
}

// Load reads .env (if present), environment variables, and per-site YAML
// files under config/sites. Absent or invalid values fall back to defaults;
// only a missing DATABASE_URL is treated as fatal, by the caller.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Scraper: ScraperConfig{
			MaxPages:         getEnvInt("MAX_PAGES", 20),
			Delay:            time.Duration(getEnvInt("DELAY_BETWEEN_REQUESTS", 2)) * time.Second,
			BatchSize:        getEnvInt("BATCH_SIZE", 50),
			FetchMaxAttempts: getEnvInt("FETCH_MAX_ATTEMPTS", 3),
			ParseRetries:     getEnvInt("PARSE_RETRIES", 2),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
		},
		Checker: CheckerConfig{
			LinkedInterval:   getEnvDuration("CHECK_LINKED_INTERVAL", 6*time.Hour),
			UnlinkedInterval: getEnvDuration("CHECK_UNLINKED_INTERVAL", 7*24*time.Hour),
			BatchSize:        getEnvInt("CHECK_BATCH_SIZE", 10),
		},
		Telegram: TelegramConfig{
			BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
			ChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
		},
		DBPath:   getEnv("DB_PATH", "carwatch.db"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Sites:    make(map[string]*SiteConfig),
	}

	// Negative or zero values make no sense here; treat like absent.
	if cfg.Scraper.MaxPages <= 0 {
		cfg.Scraper.MaxPages = 20
	}
	if cfg.Scraper.BatchSize <= 0 {
		cfg.Scraper.BatchSize = 50
	}
	if cfg.Scraper.Delay < 0 {
		cfg.Scraper.Delay = 2 * time.Second
	}
	if cfg.Scraper.FetchMaxAttempts <= 0 {
		cfg.Scraper.FetchMaxAttempts = 3
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadSiteConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSiteConfigs() error {
	configDir := "config/sites"
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

		var site SiteConfig
		if err := yaml.Unmarshal(data, &site); err != nil {
			return err
		}
		if site.PageParam == "" {
			site.PageParam = "page"
		}

		c.Sites[site.ID] = &site
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
