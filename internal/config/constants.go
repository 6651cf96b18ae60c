package config

import "time"

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 8080
	defaultEnv        = "development"

	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"

	defaultDBDriver   = DriverMySQL
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "geolens"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultSQLitePath = "geolens.db"

	defaultRedisHost = "localhost"
	defaultRedisPort = 6379
	defaultRedisDB   = 0

	defaultProviderTimeout = 60 * time.Second
	defaultRatePerMinute   = 60

	ClassifierOpenAI    = "openai"
	ClassifierAnthropic = "anthropic"

	defaultClassifierType      = ClassifierOpenAI
	defaultClassifierModel     = "gpt-4o-mini"
	defaultClassifierTimeout   = 30 * time.Second
	defaultClassifierMaxTokens = 1200

	defaultBatchConcurrency = 15
	maxBatchConcurrency     = 100
	defaultBatchMaxDuration = 5 * time.Minute
	defaultBatchStaleMargin = 10 * time.Minute

	defaultScheduleInterval = 24 * time.Hour
)

// Provider keys as they appear under `providers:` in the YAML file.
const (
	ProviderChatGPT = "chatgpt"
	ProviderClaude  = "claude"
	ProviderGrok    = "grok"
)
