package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, defaultPort, cfg.Port)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, DriverMySQL, cfg.Database.Driver)
	assert.Equal(t, "root:password@tcp(127.0.0.1:3306)/geolens?charset=utf8mb4&loc=Local&parseTime=true", cfg.DSN)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 15, cfg.Batch.Concurrency)
	assert.Equal(t, 15*time.Minute, cfg.Batch.StaleAfter())
	assert.Equal(t, 60*time.Second, cfg.Providers.ChatGPT.Timeout)
	assert.Equal(t, ClassifierOpenAI, cfg.Classifier.Type)
}

func TestParseFullDocument(t *testing.T) {
	t.Setenv("GEOLENS_TEST_XAI_KEY", "xai-from-env")

	cfg, err := Parse([]byte(`
port: 9090
env: Production
jwt_secret: s3cret
allowed_origins: [" *.geolens.io ", ""]
database:
  driver: sqlite3
  path: /tmp/geo.db
redis:
  host: cache
  db: 2
  password: pw
providers:
  chatgpt:
    api_key: sk-test
    model: gpt-4.1
    timeout: 45s
  grok:
    api_key_env: GEOLENS_TEST_XAI_KEY
    rate_per_minute: 20
classifier:
  type: Anthropic
  api_key: ant-key
  model: claude-haiku-4-5
batch:
  concurrency: 8
  max_duration: 10m
schedule:
  enable: true
  interval: 12h
  providers: [ChatGPT, grok, chatgpt]
`))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, []string{"*.geolens.io"}, cfg.AllowedOrigins)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "/tmp/geo.db?_foreign_keys=on", cfg.DSN)
	assert.Equal(t, "redis://:pw@cache:6379/2", cfg.RedisURL)

	chatgpt, ok := cfg.Providers.Get(ProviderChatGPT)
	require.True(t, ok)
	assert.Equal(t, "sk-test", chatgpt.Key())
	assert.Equal(t, 45*time.Second, chatgpt.Timeout)
	assert.Equal(t, defaultRatePerMinute, chatgpt.RatePerMinute)

	grok, _ := cfg.Providers.Get(ProviderGrok)
	assert.Equal(t, "xai-from-env", grok.Key())
	assert.Equal(t, 20, grok.RatePerMinute)

	claude, _ := cfg.Providers.Get(ProviderClaude)
	assert.Empty(t, claude.Key())

	assert.Equal(t, ClassifierAnthropic, cfg.Classifier.Type)
	assert.Equal(t, "ant-key", cfg.Classifier.Key())
	assert.Equal(t, 8, cfg.Batch.Concurrency)
	assert.Equal(t, 20*time.Minute, cfg.Batch.StaleAfter())
	assert.True(t, cfg.Schedule.Enable)
	assert.Equal(t, 12*time.Hour, cfg.Schedule.Interval)
	assert.Equal(t, []string{"chatgpt", "grok"}, cfg.Schedule.Providers)
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"unknown field":      "prot: 80\n",
		"port out of range":  "port: 70000\n",
		"unknown driver":     "database:\n  driver: oracle\n",
		"pool too wide":      "batch:\n  concurrency: 500\n",
		"unknown classifier": "classifier:\n  type: cohere\n",
		"prod without jwt":   "env: production\n",
		"broken mysql dsn":   "database:\n  dsn: \"not a dsn\"\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("port: 7001\ndatabase:\n  driver: sqlite\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7001, cfg.Port)
	assert.Equal(t, "geolens.db?_foreign_keys=on", cfg.DSN)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
