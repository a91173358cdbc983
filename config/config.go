// Package config loads repository settings from a yaml file with
// environment-variable overrides, so the same binary can run against
// local and managed deployments without rebuilds.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/idlem1nd/MongoRepository/logger"
)

var validate *validator.Validate = validator.New()

type LogConfig struct {
	Level string `yaml:"level"`
}

// MongoConfig describes one MongoDB deployment. URI holds either a full
// connection string or, when Username is set, the bare host the
// credentials are combined with.
type MongoConfig struct {
	Username              string `yaml:"username"`
	Password              string `yaml:"password"`
	URI                   string `yaml:"uri" validate:"required"`
	DBName                string `yaml:"db_name" validate:"required"`
	MaxPoolSize           uint64 `yaml:"max_pool_size"`
	MinPoolSize           uint64 `yaml:"min_pool_size"`
	MaxConnIdleMinutes    int    `yaml:"max_conn_idle_minutes" validate:"gte=0"`
	ConnectTimeoutSeconds int    `yaml:"connect_timeout_seconds" validate:"gte=0"`
}

func (c MongoConfig) MaxConnIdleTime() time.Duration {
	return time.Duration(c.MaxConnIdleMinutes) * time.Minute
}

func (c MongoConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// RedisConfig describes the optional cache backend. It is only
// validated for use when a cache repository is actually built.
type RedisConfig struct {
	Addr        string `yaml:"addr"`
	Password    string `yaml:"password"`
	DB          int    `yaml:"db" validate:"gte=0"`
	EnableTLS   bool   `yaml:"enable_tls"`
	CertContent string `yaml:"cert_content"`
	TTLSeconds  int    `yaml:"ttl_seconds" validate:"gte=0"`
	KeyPrefix   string `yaml:"key_prefix"`
}

func (c RedisConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// AppConfig is the root of the config file.
type AppConfig struct {
	Mongo   MongoConfig `yaml:"mongo"`
	Redis   RedisConfig `yaml:"redis"`
	Logging LogConfig   `yaml:"logging"`
}

func assignDefaultConfigValues(cfg *AppConfig) *AppConfig {

	// log config defaults
	cfg.Logging.Level = GetEnvOrDefaultAsString("LOGGING_LEVEL", nonEmpty(cfg.Logging.Level, "info"))

	// MongoDB config defaults
	cfg.Mongo.URI = GetEnvOrDefaultAsString("MONGO_URI", cfg.Mongo.URI)
	cfg.Mongo.DBName = GetEnvOrDefaultAsString("MONGO_DB_NAME", cfg.Mongo.DBName)
	cfg.Mongo.Username = GetEnvOrDefaultAsString("MONGO_USERNAME", cfg.Mongo.Username)
	cfg.Mongo.Password = GetEnvOrDefaultAsString("MONGO_PASSWORD", cfg.Mongo.Password)
	cfg.Mongo.MaxPoolSize = GetEnvOrDefaultAsUint64("MONGO_MAX_POOL_SIZE", cfg.Mongo.MaxPoolSize)
	cfg.Mongo.MinPoolSize = GetEnvOrDefaultAsUint64("MONGO_MIN_POOL_SIZE", cfg.Mongo.MinPoolSize)
	cfg.Mongo.MaxConnIdleMinutes = GetEnvOrDefaultAsInt("MONGO_MAX_CONN_IDLE_MINUTES", defaultInt(cfg.Mongo.MaxConnIdleMinutes, 30))
	cfg.Mongo.ConnectTimeoutSeconds = GetEnvOrDefaultAsInt("MONGO_CONNECT_TIMEOUT_SECONDS", defaultInt(cfg.Mongo.ConnectTimeoutSeconds, 10))

	// Redis config defaults
	cfg.Redis.Addr = GetEnvOrDefaultAsString("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = GetEnvOrDefaultAsString("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = GetEnvOrDefaultAsInt("REDIS_DB", cfg.Redis.DB)
	if GetEnvOrDefaultAsInt("REDIS_ENABLE_TLS", boolToInt(cfg.Redis.EnableTLS)) == 1 {
		cfg.Redis.EnableTLS = true
	}
	cfg.Redis.CertContent = GetEnvOrDefaultAsString("REDIS_TLS_CERT", cfg.Redis.CertContent)
	cfg.Redis.TTLSeconds = GetEnvOrDefaultAsInt("REDIS_TTL_SECONDS", defaultInt(cfg.Redis.TTLSeconds, 300))
	cfg.Redis.KeyPrefix = GetEnvOrDefaultAsString("REDIS_KEY_PREFIX", cfg.Redis.KeyPrefix)

	return cfg
}

func validateConfig(cfg *AppConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if cfg.Mongo.MaxPoolSize > 0 && cfg.Mongo.MinPoolSize > cfg.Mongo.MaxPoolSize {
		return fmt.Errorf("mongo.min_pool_size %d exceeds mongo.max_pool_size %d",
			cfg.Mongo.MinPoolSize, cfg.Mongo.MaxPoolSize)
	}
	return nil
}

// LoadFile loads and parses one config file into AppConfig.
func LoadFile(path string) (*AppConfig, error) {

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("Failed to read config file", err, slog.String("path", path))
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logger.Error("Failed to unmarshal config", err)
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	defaultCfg := assignDefaultConfigValues(&cfg)

	if err := validateConfig(defaultCfg); err != nil {
		logger.Error("Config validation failed", err)
		return nil, err
	}

	logger.Info("Configuration loaded successfully", slog.String("path", path))

	return defaultCfg, nil
}

// Load resolves the config file named by CONFIG_PATH (default
// configs/config.yaml), after loading an optional .env file.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded", slog.String("reason", err.Error()))
	}

	path := GetEnvOrDefaultAsString("CONFIG_PATH", "configs/config.yaml")

	cfg, err := LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	return cfg, nil
}

// GetEnvOrDefaultAsInt returns the value of the given env variable
// as an int or the default value if not set or invalid.
func GetEnvOrDefaultAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return int(value)
}

// GetEnvOrDefaultAsUint64 returns the value of the env variable
// as uint64 or the default value if not set or invalid.
func GetEnvOrDefaultAsUint64(key string, defaultValue uint64) uint64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func GetEnvOrDefaultAsString(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		if strings.TrimSpace(val) != "" {
			return val
		}
	}
	return defaultVal
}

func nonEmpty(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func defaultInt(value, fallback int) int {
	if value != 0 {
		return value
	}
	return fallback
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
