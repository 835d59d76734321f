package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "leads.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "anthropic", cfg.AI.Provider)
	assert.Equal(t, int64(500), cfg.AI.MaxTokens)
	assert.InDelta(t, 0.1, cfg.AI.Temperature, 0.001)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, "https://api.groupme.com/v3", cfg.GroupMe.BaseURL)
	assert.Equal(t, 4000, cfg.Pipeline.AITimeoutMs)
	assert.Equal(t, 30, cfg.Pipeline.AICallLimitSecs)
	assert.Equal(t, 8, cfg.Pipeline.MaxInflightAI)
	assert.Equal(t, 1500, cfg.Pipeline.DedupTimeoutMs)
	assert.Equal(t, DefaultBotNames, cfg.Ingest.BotNames)
	assert.Equal(t, 200, cfg.Ingest.EventLogSize)
	assert.Equal(t, "/api/groupme-webhook", cfg.Ingest.WebhookPath)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 30, cfg.Breaker.ResetTimeoutSecs)
	assert.Equal(t, 24, cfg.Monitoring.LookbackWindowHours)
	assert.False(t, cfg.Monitoring.Enabled)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/leads
log:
  level: debug
  format: console
server:
  port: 9090
ingest:
  bot_names: [LeadBot]
pipeline:
  ai_timeout_ms: 2500
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/leads", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"LeadBot"}, cfg.Ingest.BotNames)
	assert.Equal(t, 2500, cfg.Pipeline.AITimeoutMs)
	// Defaults still apply for unset values
	assert.Equal(t, 1500, cfg.Pipeline.DedupTimeoutMs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("LEADS_STORE_DRIVER", "memory")
	t.Setenv("LEADS_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvSecrets(t *testing.T) {
	chdirTemp(t)

	t.Setenv("LEADS_ANTHROPIC_KEY", "sk-ant-test")
	t.Setenv("LEADS_GROUPME_ACCESS_TOKEN", "gm-token")
	t.Setenv("LEADS_GROUPME_GROUP_ID", "12345")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
	assert.Equal(t, "gm-token", cfg.GroupMe.AccessToken)
	assert.Equal(t, "12345", cfg.GroupMe.GroupID)
	assert.Equal(t, "sk-ant-test", cfg.AIKey())
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LEADS_OPENAI_KEY=sk-from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("LEADS_OPENAI_KEY") }) //nolint:errcheck

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-from-dotenv", cfg.OpenAI.Key)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("LEADS_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with the Load defaults that validation reads.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "leads.db"
	cfg.Server.Port = 8080
	cfg.AI.Provider = "anthropic"
	cfg.AI.Temperature = 0.1
	cfg.Pipeline.AITimeoutMs = 4000
	cfg.Pipeline.DedupTimeoutMs = 1500
	cfg.Pipeline.MaxInflightAI = 8
	cfg.Ingest.EventLogSize = 200
	cfg.Ingest.WebhookPath = "/api/groupme-webhook"
	return cfg
}

func TestValidateServe_Valid(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("serve"))
}

func TestValidateServe_NoAIKeyIsAllowed(t *testing.T) {
	cfg := validDefaults()
	cfg.Anthropic.Key = ""
	assert.NoError(t, cfg.Validate("serve"))
	assert.Empty(t, cfg.AIKey())
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateServe_CollectsProblems(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mongo"
	cfg.AI.Provider = "gemini"
	cfg.Pipeline.AITimeoutMs = 0
	cfg.Pipeline.MaxInflightAI = 500

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver "mongo" is not supported`)
	assert.Contains(t, err.Error(), `ai.provider "gemini" is not supported`)
	assert.Contains(t, err.Error(), "pipeline.ai_timeout_ms must be > 0")
	assert.Contains(t, err.Error(), "pipeline.max_inflight_ai must be between 1 and 100")
}

func TestValidateNotionStore(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "notion"

	err := cfg.Validate("leads")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion.token is required")
	assert.Contains(t, err.Error(), "notion.lead_db is required")

	cfg.Notion.Token = "ntn_token"
	cfg.Notion.LeadDB = "db-id"
	assert.NoError(t, cfg.Validate("leads"))
}

func TestValidatePostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateServe_WebhookPath(t *testing.T) {
	cfg := validDefaults()
	cfg.Ingest.WebhookPath = "groupme-webhook"

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest.webhook_path must start with /")
}

func TestValidateMemoryStore(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "memory"
	cfg.Store.DatabaseURL = ""
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateBackfill(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("backfill")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "groupme.access_token is required")

	cfg.GroupMe.AccessToken = "tok"
	assert.NoError(t, cfg.Validate("backfill"), "group comes from the webhook bot")

	cfg.Ingest.WebhookPath = ""
	err = cfg.Validate("backfill")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "groupme.group_id or ingest.webhook_path is required")

	cfg.GroupMe.GroupID = "42"
	assert.NoError(t, cfg.Validate("backfill"))
}

func TestValidateParse_IgnoresStore(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "bogus"
	assert.NoError(t, cfg.Validate("parse"))

	cfg.AI.Temperature = 1.5
	assert.Error(t, cfg.Validate("parse"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestAIKey(t *testing.T) {
	cfg := validDefaults()
	cfg.Anthropic.Key = "a"
	cfg.OpenAI.Key = "o"

	assert.Equal(t, "a", cfg.AIKey())
	cfg.AI.Provider = "openai"
	assert.Equal(t, "o", cfg.AIKey())
	cfg.AI.Provider = "none"
	assert.Empty(t, cfg.AIKey())
}
