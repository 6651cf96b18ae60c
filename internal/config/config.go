package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	Env            string                `yaml:"env"` // "development" | "production"
	JWTSecret      string                `yaml:"jwt_secret"`
	AllowedOrigins []string              `yaml:"allowed_origins"`
	Timezone       string                `yaml:"timezone"`
	DSN            string                `yaml:"-"` // resolved database DSN
	RedisURL       string                `yaml:"-"` // resolved redis URL
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	Providers      ProvidersConfig       `yaml:"providers"`
	Classifier     ClassifierConfig      `yaml:"classifier"`
	Batch          BatchConfig           `yaml:"batch"`
	Schedule       ScheduleConfig        `yaml:"schedule"`
	Paths          RuntimePathsConfig    `yaml:"paths"`
}

type DatabaseRuntimeConfig struct {
	Driver    string            `yaml:"driver"`
	DSN       string            `yaml:"dsn"`
	Path      string            `yaml:"path"` // sqlite file
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type RedisRuntimeConfig struct {
	URL      string            `yaml:"url"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	DB       int               `yaml:"db"`
	TLS      bool              `yaml:"tls"`
	Scheme   string            `yaml:"scheme"`
	Params   map[string]string `yaml:"params"`
}

// BatchConfig tunes the prompt-run worker pool.
type BatchConfig struct {
	Concurrency int           `yaml:"concurrency"`
	MaxDuration time.Duration `yaml:"max_duration"`
	StaleMargin time.Duration `yaml:"stale_margin"`
}

// StaleAfter is the age after which a running batch is considered dead.
func (b BatchConfig) StaleAfter() time.Duration {
	return b.MaxDuration + b.StaleMargin
}

type ScheduleConfig struct {
	Enable    bool          `yaml:"enable"`
	Interval  time.Duration `yaml:"interval"`
	Providers []string      `yaml:"providers"`
}

type RuntimePathsConfig struct {
	Logs string `yaml:"logs"`
}

type rawAppConfig struct {
	Port           int                `yaml:"port"`
	Env            string             `yaml:"env"`
	JWTSecret      string             `yaml:"jwt_secret"`
	AllowedOrigins []string           `yaml:"allowed_origins"`
	Timezone       string             `yaml:"timezone"`
	Database       rawDatabaseConfig  `yaml:"database"`
	Redis          rawRedisConfig     `yaml:"redis"`
	Providers      rawProvidersConfig `yaml:"providers"`
	Classifier     rawProviderConfig  `yaml:"classifier"`
	Batch          rawBatchConfig     `yaml:"batch"`
	Schedule       rawScheduleConfig  `yaml:"schedule"`
	Paths          RuntimePathsConfig `yaml:"paths"`
}

type rawDatabaseConfig struct {
	Driver    string            `yaml:"driver"`
	DSN       string            `yaml:"dsn"`
	URL       string            `yaml:"url"`
	Path      string            `yaml:"path"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	DBName    string            `yaml:"db_name"`
	Charset   string            `yaml:"charset"`
	ParseTime *bool             `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type rawRedisConfig struct {
	URL      string            `yaml:"url"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	DB       *int              `yaml:"db"`
	TLS      *bool             `yaml:"tls"`
	Scheme   string            `yaml:"scheme"`
	Params   map[string]string `yaml:"params"`
}

type rawBatchConfig struct {
	Concurrency int           `yaml:"concurrency"`
	MaxDuration time.Duration `yaml:"max_duration"`
	StaleMargin time.Duration `yaml:"stale_margin"`
}

type rawScheduleConfig struct {
	Enable    *bool         `yaml:"enable"`
	Interval  time.Duration `yaml:"interval"`
	Providers []string      `yaml:"providers"`
}

// Load reads the YAML file at configPath on top of the built-in defaults.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}
	cfg, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML content, applies defaults and validates the result.
func Parse(content []byte) (*AppConfig, error) {
	cfg := defaultAppConfig()
	raw := rawAppConfig{}
	if len(bytes.TrimSpace(content)) > 0 {
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
	}

	applyRawAppConfig(&cfg, raw)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	switch c.Database.Driver {
	case DriverMySQL:
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database.port %d, expected 1-65535", c.Database.Port)
		}
		if _, err := mysql.ParseDSN(c.DSN); err != nil {
			return fmt.Errorf("invalid database dsn: %w", err)
		}
	case DriverSQLite:
	default:
		return fmt.Errorf("unsupported database.driver %q, expected mysql or sqlite", c.Database.Driver)
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		return fmt.Errorf("invalid redis.port %d, expected 1-65535", c.Redis.Port)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("invalid redis.db %d, expected >= 0", c.Redis.DB)
	}
	if c.Batch.Concurrency < 1 || c.Batch.Concurrency > maxBatchConcurrency {
		return fmt.Errorf("invalid batch.concurrency %d, expected 1-%d", c.Batch.Concurrency, maxBatchConcurrency)
	}
	if c.Classifier.Type != ClassifierOpenAI && c.Classifier.Type != ClassifierAnthropic {
		return fmt.Errorf("unsupported classifier.type %q, expected openai or anthropic", c.Classifier.Type)
	}
	if c.IsProduction() && strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("jwt_secret is required in production")
	}
	return nil
}

// IsDev reports whether the service runs in development mode.
func (c *AppConfig) IsDev() bool { return c.Env == "development" }

// IsProduction reports whether the service runs in production mode.
func (c *AppConfig) IsProduction() bool { return c.Env == "production" }

func defaultAppConfig() AppConfig {
	cfg := AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseRuntimeConfig{
			Driver:    defaultDBDriver,
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		Classifier: ClassifierConfig{
			Type:            defaultClassifierType,
			Model:           defaultClassifierModel,
			Timeout:         defaultClassifierTimeout,
			MaxOutputTokens: defaultClassifierMaxTokens,
		},
		Batch: BatchConfig{
			Concurrency: defaultBatchConcurrency,
			MaxDuration: defaultBatchMaxDuration,
			StaleMargin: defaultBatchStaleMargin,
		},
		Schedule: ScheduleConfig{
			Interval: defaultScheduleInterval,
		},
	}
	cfg.Providers = normalizeProviders(cfg.Providers)
	cfg.Database = normalizeDatabaseConfig(cfg.Database)
	cfg.Redis = normalizeRedisConfig(cfg.Redis)
	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	return cfg
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(raw.JWTSecret); v != "" {
		cfg.JWTSecret = v
	}
	if raw.AllowedOrigins != nil {
		cfg.AllowedOrigins = normalizeOrigins(raw.AllowedOrigins)
	}
	if v := strings.TrimSpace(raw.Timezone); v != "" {
		cfg.Timezone = v
	}
	if v := strings.TrimSpace(raw.Paths.Logs); v != "" {
		cfg.Paths.Logs = v
	}

	cfg.Database = applyRawDatabaseConfig(cfg.Database, raw.Database)
	cfg.Redis = applyRawRedisConfig(cfg.Redis, raw.Redis)
	cfg.Providers = applyRawProviders(cfg.Providers, raw.Providers)
	cfg.Classifier = applyRawClassifier(cfg.Classifier, raw.Classifier)

	if raw.Batch.Concurrency != 0 {
		cfg.Batch.Concurrency = raw.Batch.Concurrency
	}
	if raw.Batch.MaxDuration > 0 {
		cfg.Batch.MaxDuration = raw.Batch.MaxDuration
	}
	if raw.Batch.StaleMargin > 0 {
		cfg.Batch.StaleMargin = raw.Batch.StaleMargin
	}

	if raw.Schedule.Enable != nil {
		cfg.Schedule.Enable = *raw.Schedule.Enable
	}
	if raw.Schedule.Interval > 0 {
		cfg.Schedule.Interval = raw.Schedule.Interval
	}
	if raw.Schedule.Providers != nil {
		cfg.Schedule.Providers = normalizeProviderKeys(raw.Schedule.Providers)
	}

	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	cfg.Env = normalizeEnv(cfg.Env)
}

func applyRawDatabaseConfig(current DatabaseRuntimeConfig, raw rawDatabaseConfig) DatabaseRuntimeConfig {
	cfg := current

	if v := strings.TrimSpace(raw.Driver); v != "" {
		cfg.Driver = v
	}
	if v := strings.TrimSpace(raw.DSN); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.URL); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.Path); v != "" {
		cfg.Path = v
	}
	if v := strings.TrimSpace(raw.Host); v != "" {
		cfg.Host = v
	}
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.User); v != "" {
		cfg.User = v
	}
	if v := strings.TrimSpace(raw.Username); v != "" {
		cfg.User = v
	}
	if v := strings.TrimSpace(raw.Password); v != "" {
		cfg.Password = v
	}
	if v := strings.TrimSpace(raw.Name); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(raw.DBName); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(raw.Charset); v != "" {
		cfg.Charset = v
	}
	if raw.ParseTime != nil {
		cfg.ParseTime = *raw.ParseTime
	}
	if v := strings.TrimSpace(raw.Loc); v != "" {
		cfg.Loc = v
	}
	if raw.Params != nil {
		cfg.Params = copyStringMap(raw.Params)
	}

	return normalizeDatabaseConfig(cfg)
}

func applyRawRedisConfig(current RedisRuntimeConfig, raw rawRedisConfig) RedisRuntimeConfig {
	cfg := current

	if v := strings.TrimSpace(raw.URL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(raw.Host); v != "" {
		cfg.Host = v
	}
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.Username); v != "" {
		cfg.Username = v
	}
	if v := strings.TrimSpace(raw.Password); v != "" {
		cfg.Password = v
	}
	if raw.DB != nil {
		cfg.DB = *raw.DB
	}
	if raw.TLS != nil {
		cfg.TLS = *raw.TLS
	}
	if v := strings.TrimSpace(raw.Scheme); v != "" {
		cfg.Scheme = v
	}
	if raw.Params != nil {
		cfg.Params = copyStringMap(raw.Params)
	}

	return normalizeRedisConfig(cfg)
}
