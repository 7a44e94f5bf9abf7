package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location, relative to the working directory.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                    string   `yaml:"port"`
	LogLevel                string   `yaml:"logLevel"`
	StoreDriver             string   `yaml:"storeDriver"`
	StoreURL                string   `yaml:"storeURL"`
	Database                string   `yaml:"database"`
	Collection              string   `yaml:"collection"`
	StoreTimeout            string   `yaml:"storeTimeout"`
	RequireStore            *bool    `yaml:"requireStore"`
	FilterCity              string   `yaml:"filterCity"`
	FrontendSource          string   `yaml:"frontendSource"`
	StaticDir               string   `yaml:"staticDir"`
	MinioEndpoint           string   `yaml:"minioEndpoint"`
	MinioAccessKey          string   `yaml:"minioAccessKey"`
	MinioSecretKey          string   `yaml:"minioSecretKey"`
	MinioBucket             string   `yaml:"minioBucket"`
	MinioUseSSL             bool     `yaml:"minioUseSSL"`
	RedisAddr               string   `yaml:"redisAddr"`
	RedisPassword           string   `yaml:"redisPassword"`
	WriteRateLimitPerMinute int      `yaml:"writeRateLimitPerMinute"`
	TrustedProxyCIDRs       []string `yaml:"trustedProxyCidrs"`
	EventStream             string   `yaml:"eventStream"`
	EventStreamMaxLen       int64    `yaml:"eventStreamMaxLen"`
}

// StoreRequired reports whether a failed startup connection is fatal. Defaults to true.
func (c FileConfig) StoreRequired() bool {
	return c.RequireStore == nil || *c.RequireStore
}

// Load reads config from path (defaults to RECORDS_CONFIG, then config.yaml).
// A missing file is not an error; environment variables and defaults apply.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = os.Getenv("RECORDS_CONFIG")
	}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("RECORDS_PORT"); v != "" {
		cfg.Port = strings.TrimSpace(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.TrimSpace(v)
	}
	if v := os.Getenv("RECORDS_STORE_DRIVER"); v != "" {
		cfg.StoreDriver = strings.TrimSpace(v)
	}
	if v := os.Getenv("RECORDS_DATABASE"); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv("RECORDS_COLLECTION"); v != "" {
		cfg.Collection = v
	}
	if v := os.Getenv("RECORDS_STORE_TIMEOUT"); v != "" {
		cfg.StoreTimeout = strings.TrimSpace(v)
	}
	if v := os.Getenv("RECORDS_REQUIRE_STORE"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.RequireStore = &b
		}
	}
	if v := os.Getenv("RECORDS_FILTER_CITY"); v != "" {
		cfg.FilterCity = v
	}
	if v := os.Getenv("RECORDS_FRONTEND_SOURCE"); v != "" {
		cfg.FrontendSource = strings.TrimSpace(v)
	}
	if v := os.Getenv("RECORDS_STATIC_DIR"); v != "" {
		cfg.StaticDir = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v == "true" {
		cfg.MinioUseSSL = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("RECORDS_WRITE_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.WriteRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("RECORDS_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("RECORDS_EVENT_STREAM"); v != "" {
		cfg.EventStream = strings.TrimSpace(v)
	}
	// The connection string follows the driver: MONGO_URL for mongo, DATABASE_URL for postgres.
	switch strings.ToLower(cfg.StoreDriver) {
	case "postgres":
		if v := os.Getenv("DATABASE_URL"); v != "" {
			cfg.StoreURL = v
		}
	case "", "mongo":
		if v := os.Getenv("MONGO_URL"); v != "" {
			cfg.StoreURL = v
		}
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Port == "" {
		cfg.Port = "3000"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = "mongo"
	}
	cfg.StoreDriver = strings.ToLower(cfg.StoreDriver)
	if cfg.Database == "" {
		cfg.Database = "new_data_base"
	}
	if cfg.Collection == "" {
		cfg.Collection = "class_assignment_collection_2-1"
	}
	if cfg.StoreTimeout == "" {
		cfg.StoreTimeout = "10s"
	}
	if cfg.FilterCity == "" {
		cfg.FilterCity = "Toronto"
	}
	if cfg.FrontendSource == "" {
		cfg.FrontendSource = "dir"
	}
	if cfg.StaticDir == "" {
		cfg.StaticDir = "public"
	}
	if cfg.WriteRateLimitPerMinute == 0 {
		cfg.WriteRateLimitPerMinute = 60
	}
}

func validateConfig(cfg FileConfig) error {
	switch cfg.StoreDriver {
	case "mongo":
		if strings.TrimSpace(cfg.StoreURL) == "" {
			return errors.New("config: storeURL is required (set in config.yaml or MONGO_URL)")
		}
	case "postgres":
		if strings.TrimSpace(cfg.StoreURL) == "" {
			return errors.New("config: storeURL is required (set in config.yaml or DATABASE_URL)")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown storeDriver %q (mongo, postgres, memory)", cfg.StoreDriver)
	}
	if _, err := ParseStoreTimeout(cfg.StoreTimeout); err != nil {
		return err
	}
	switch cfg.FrontendSource {
	case "dir":
	case "minio":
		if cfg.MinioEndpoint == "" {
			return errors.New("config: minioEndpoint is required when frontendSource is minio")
		}
		if cfg.MinioBucket == "" {
			return errors.New("config: minioBucket is required when frontendSource is minio")
		}
	default:
		return fmt.Errorf("config: unknown frontendSource %q (dir, minio)", cfg.FrontendSource)
	}
	if cfg.EventStream != "" && cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required when eventStream is set")
	}
	if cfg.EventStreamMaxLen < 0 {
		return errors.New("config: eventStreamMaxLen must be >= 0")
	}
	if cfg.WriteRateLimitPerMinute < 0 {
		return errors.New("config: writeRateLimitPerMinute must be >= 0")
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// ParseStoreTimeout parses the store operation timeout duration string.
func ParseStoreTimeout(timeoutStr string) (time.Duration, error) {
	if timeoutStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return 0, fmt.Errorf("invalid storeTimeout duration: %w", err)
	}
	if dur < 0 {
		return 0, errors.New("config: storeTimeout must be >= 0")
	}
	return dur, nil
}
