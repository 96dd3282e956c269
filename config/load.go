package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads .env (if present), the optional YAML file at path merged over the defaults,
// and finally the WISHLIST_* environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if err := mergo.Merge(&fileCfg, *cfg); err != nil {
			return nil, fmt.Errorf("merge config defaults: %w", err)
		}
		cfg = &fileCfg
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	for key, dst := range map[string]*string{
		"WISHLIST_START_URL":         &c.StartURL,
		"WISHLIST_DOMAIN_PREFIX":     &c.DomainPrefix,
		"WISHLIST_LOCALE":            &c.Locale,
		"WISHLIST_METRICS_ADDR":      &c.MetricsAddr,
		"WISHLIST_STORAGE_BACKEND":   &c.Storage.Backend,
		"WISHLIST_STORAGE_ROOT":      &c.Storage.Root,
		"BUCKET_NAME":                &c.Storage.Bucket,
		"SERVICE_ACCOUNT_PATH":       &c.Storage.CredentialsFile,
		"WISHLIST_REDIS_ADDR":        &c.Storage.RedisAddr,
		"WISHLIST_MEMCACHE_ADDR":     &c.Storage.MemcacheAddr,
		"DATABASE_DSN":               &c.Storage.PostgresDSN,
		"WISHLIST_POSTGRES_TABLE":    &c.Storage.PostgresTable,
		"WISHLIST_INTERIM_SEPARATOR": &c.InterimSeparator,
		"WISHLIST_MASTER_SEPARATOR":  &c.MasterSeparator,
	} {
		if value, ok := EnvString(key); ok {
			*dst = value
		}
	}

	for key, dst := range map[string]*int{
		"WISHLIST_MAX_PAGES":  &c.MaxPages,
		"WISHLIST_REDIS_DB":   &c.Storage.RedisDB,
		"WISHLIST_CACHE_SIZE": &c.Storage.CacheSize,
	} {
		value, ok, err := EnvInt(key)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		if ok {
			*dst = value
		}
	}

	for key, dst := range map[string]*bool{
		"WISHLIST_STRICT_DATES":     &c.StrictDates,
		"WISHLIST_BOOTSTRAP_MASTER": &c.BootstrapMaster,
	} {
		value, ok, err := EnvBool(key)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		if ok {
			*dst = value
		}
	}
	return nil
}

// EnvString returns the trimmed value of key and whether it was set to something non-empty.
func EnvString(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer when it is set.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, err
	}
	return parsed, true, nil
}

// EnvBool parses key as a boolean when it is set.
func EnvBool(key string) (bool, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, false, err
	}
	return parsed, true, nil
}
