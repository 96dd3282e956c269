package config

import (
	"fmt"
	"net/url"
	"time"
	"unicode/utf8"
)

// Storage backends understood by storage.Open.
const (
	BackendFile     = "fs"
	BackendGCS      = "gcs"
	BackendRedis    = "redis"
	BackendMemcache = "memcache"
	BackendPostgres = "postgres"
)

// Config holds tracker configuration.
type Config struct {
	StartURL             string        `yaml:"start_url"`
	DomainPrefix         string        `yaml:"domain_prefix"`
	ListingSelector      string        `yaml:"listing_selector"`
	ContinuationSelector string        `yaml:"continuation_selector"`
	MaxPages             int           `yaml:"max_pages"`
	Timeout              time.Duration `yaml:"timeout"`
	UserAgent            string        `yaml:"user_agent"`
	RespectRobotsTxt     bool          `yaml:"respect_robots_txt"`

	Locale          string `yaml:"locale"`
	StrictDates     bool   `yaml:"strict_dates"`
	Historical      bool   `yaml:"historical"`
	BootstrapMaster bool   `yaml:"bootstrap_master"`

	RawPath          string `yaml:"raw_path"`
	InterimPath      string `yaml:"interim_path"`
	MasterPath       string `yaml:"master_path"`
	InterimSeparator string `yaml:"interim_separator"`
	MasterSeparator  string `yaml:"master_separator"`

	Storage StorageConfig `yaml:"storage"`

	MetricsAddr string `yaml:"metrics_addr"`
	Verbose     bool   `yaml:"verbose"`
}

// StorageConfig selects and configures the blob store.
type StorageConfig struct {
	Backend         string `yaml:"backend"`
	Root            string `yaml:"root"`
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentials_file"`
	RedisAddr       string `yaml:"redis_addr"`
	RedisDB         int    `yaml:"redis_db"`
	RedisPrefix     string `yaml:"redis_prefix"`
	MemcacheAddr    string `yaml:"memcache_addr"`
	PostgresDSN     string `yaml:"postgres_dsn"`
	PostgresTable   string `yaml:"postgres_table"`
	CacheSize       int    `yaml:"cache_size"`
}

// DefaultConfig returns defaults for the public wishlist the tracker was built for.
func DefaultConfig() *Config {
	return &Config{
		StartURL:             "https://www.amazon.com.br/hz/wishlist/genericItemsPage/3202G6PAUQGQ5?",
		DomainPrefix:         "https://www.amazon.com.br",
		ListingSelector:      "#g-items > li",
		ContinuationSelector: `script[data-a-state*="scrollState"][type="a-state"]`,
		MaxPages:             500,
		Timeout:              30 * time.Second,
		UserAgent:            "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		RespectRobotsTxt:     false,
		Locale:               "pt-BR",
		RawPath:              "raw/awl.json",
		InterimPath:          "interim/awl.csv",
		MasterPath:           "master/awl.csv",
		InterimSeparator:     ",",
		MasterSeparator:      ";",
		Storage: StorageConfig{
			Backend:       BackendFile,
			Root:          "data",
			RedisAddr:     "localhost:6379",
			RedisPrefix:   "wishlist:",
			MemcacheAddr:  "localhost:11211",
			PostgresTable: "blobs",
		},
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if err := validateURL("start URL", c.StartURL); err != nil {
		return err
	}
	if err := validateURL("domain prefix", c.DomainPrefix); err != nil {
		return err
	}
	if c.ListingSelector == "" {
		return fmt.Errorf("listing selector cannot be empty")
	}
	if c.ContinuationSelector == "" {
		return fmt.Errorf("continuation selector cannot be empty")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.Locale == "" {
		return fmt.Errorf("locale cannot be empty")
	}
	if c.RawPath == "" || c.InterimPath == "" || c.MasterPath == "" {
		return fmt.Errorf("raw, interim and master paths cannot be empty")
	}
	if c.InterimPath == c.MasterPath {
		return fmt.Errorf("interim path must differ from master path")
	}
	if utf8.RuneCountInString(c.InterimSeparator) != 1 {
		return fmt.Errorf("interim separator must be a single character")
	}
	if utf8.RuneCountInString(c.MasterSeparator) != 1 {
		return fmt.Errorf("master separator must be a single character")
	}
	return c.Storage.Validate()
}

// Validate checks the settings the selected backend needs.
func (s StorageConfig) Validate() error {
	switch s.Backend {
	case BackendFile:
		if s.Root == "" {
			return fmt.Errorf("storage root cannot be empty for the %s backend", s.Backend)
		}
	case BackendGCS:
		if s.Bucket == "" {
			return fmt.Errorf("storage bucket cannot be empty for the %s backend", s.Backend)
		}
	case BackendRedis:
		if s.RedisAddr == "" {
			return fmt.Errorf("redis address cannot be empty")
		}
		if s.RedisDB < 0 {
			return fmt.Errorf("redis db cannot be negative")
		}
	case BackendMemcache:
		if s.MemcacheAddr == "" {
			return fmt.Errorf("memcache address cannot be empty")
		}
	case BackendPostgres:
		if s.PostgresDSN == "" {
			return fmt.Errorf("postgres dsn cannot be empty")
		}
		if s.PostgresTable == "" {
			return fmt.Errorf("postgres table cannot be empty")
		}
	default:
		return fmt.Errorf("storage backend must be one of fs, gcs, redis, memcache or postgres")
	}
	if s.CacheSize < 0 {
		return fmt.Errorf("cache size cannot be negative")
	}
	return nil
}

func validateURL(label, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", label)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", label, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", label)
	}
	return nil
}
