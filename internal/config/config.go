package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	AI         AIConfig         `yaml:"ai" mapstructure:"ai"`
	GroupMe    GroupMeConfig    `yaml:"groupme" mapstructure:"groupme"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Ingest     IngestConfig     `yaml:"ingest" mapstructure:"ingest"`
	Breaker    BreakerConfig    `yaml:"breaker" mapstructure:"breaker"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the lead store backend.
type StoreConfig struct {
	// Driver is one of memory, sqlite, postgres or notion.
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// NotionConfig holds Notion API credentials for the notion store driver.
type NotionConfig struct {
	Token     string  `yaml:"token" mapstructure:"token"`
	LeadDB    string  `yaml:"lead_db" mapstructure:"lead_db"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AIConfig selects and tunes the remote parser. Provider is anthropic,
// openai or none.
type AIConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// GroupMeConfig holds GroupMe API settings used by backfill. An empty
// GroupID is looked up from the bot whose callback URL contains the
// webhook path.
type GroupMeConfig struct {
	AccessToken string  `yaml:"access_token" mapstructure:"access_token"`
	GroupID     string  `yaml:"group_id" mapstructure:"group_id"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// PipelineConfig bounds the parse and dedup stages.
type PipelineConfig struct {
	AITimeoutMs      int `yaml:"ai_timeout_ms" mapstructure:"ai_timeout_ms"`
	AICallLimitSecs  int `yaml:"ai_call_limit_secs" mapstructure:"ai_call_limit_secs"`
	MaxInflightAI    int `yaml:"max_inflight_ai" mapstructure:"max_inflight_ai"`
	DedupTimeoutMs   int `yaml:"dedup_timeout_ms" mapstructure:"dedup_timeout_ms"`
	PersistTimeoutMs int `yaml:"persist_timeout_ms" mapstructure:"persist_timeout_ms"`
}

// IngestConfig configures the webhook endpoint. WebhookPath is the route the
// messaging provider posts to.
type IngestConfig struct {
	BotNames     []string `yaml:"bot_names" mapstructure:"bot_names"`
	EventLogSize int      `yaml:"event_log_size" mapstructure:"event_log_size"`
	WebhookPath  string   `yaml:"webhook_path" mapstructure:"webhook_path"`
}

// BreakerConfig configures the circuit breaker on the AI path.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// MonitoringConfig configures background alert checks.
type MonitoringConfig struct {
	Enabled               bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs     int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours   int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FallbackRateThreshold float64 `yaml:"fallback_rate_threshold" mapstructure:"fallback_rate_threshold"`
	FailureCountThreshold int     `yaml:"failure_count_threshold" mapstructure:"failure_count_threshold"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultBotNames are the posting identities of this system. Messages from
// them are never ingested.
var DefaultBotNames = []string{"RoofingBot", "AI Lead Parser", "JJ Roofing Lead Bot", "GroupMe"}

var secretKeys = []string{
	"anthropic.key",
	"anthropic.base_url",
	"openai.key",
	"openai.base_url",
	"groupme.access_token",
	"groupme.group_id",
	"notion.token",
	"notion.lead_db",
	"monitoring.webhook_url",
}

// Load reads configuration from an optional .env file, config.yaml and the
// environment. Environment keys use the LEADS_ prefix with dots replaced by
// underscores, e.g. LEADS_STORE_DRIVER.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LEADS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without a default are invisible to Unmarshal unless bound.
	for _, key := range secretKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind %s", key)
		}
	}

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leads.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("ai.provider", "anthropic")
	v.SetDefault("ai.max_tokens", 500)
	v.SetDefault("ai.temperature", 0.1)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("groupme.base_url", "https://api.groupme.com/v3")
	v.SetDefault("groupme.rate_limit", 5)
	v.SetDefault("notion.rate_limit", 3)
	v.SetDefault("pipeline.ai_timeout_ms", 4000)
	v.SetDefault("pipeline.ai_call_limit_secs", 30)
	v.SetDefault("pipeline.max_inflight_ai", 8)
	v.SetDefault("pipeline.dedup_timeout_ms", 1500)
	v.SetDefault("pipeline.persist_timeout_ms", 10000)
	v.SetDefault("ingest.bot_names", DefaultBotNames)
	v.SetDefault("ingest.event_log_size", 200)
	v.SetDefault("ingest.webhook_path", "/api/groupme-webhook")
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.reset_timeout_secs", 30)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.fallback_rate_threshold", 0.5)
	v.SetDefault("monitoring.failure_count_threshold", 5)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the keys the given command mode needs. Modes: serve,
// backfill, parse, leads, migrate.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0 and <= 65535")
		}
		problems = append(problems, c.validateStore()...)
		problems = append(problems, c.validateAI()...)
		problems = append(problems, c.validatePipeline()...)
		if c.Ingest.EventLogSize <= 0 {
			problems = append(problems, "ingest.event_log_size must be > 0")
		}
		if !strings.HasPrefix(c.Ingest.WebhookPath, "/") {
			problems = append(problems, "ingest.webhook_path must start with /")
		}
	case "backfill":
		if c.GroupMe.AccessToken == "" {
			problems = append(problems, "groupme.access_token is required")
		}
		if c.GroupMe.GroupID == "" && c.Ingest.WebhookPath == "" {
			problems = append(problems, "groupme.group_id or ingest.webhook_path is required")
		}
		problems = append(problems, c.validateStore()...)
		problems = append(problems, c.validateAI()...)
		problems = append(problems, c.validatePipeline()...)
	case "parse":
		problems = append(problems, c.validateAI()...)
		problems = append(problems, c.validatePipeline()...)
	case "leads", "migrate":
		problems = append(problems, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New(fmt.Sprintf("config: %s", strings.Join(problems, "; ")))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var problems []string
	switch c.Store.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	case "notion":
		if c.Notion.Token == "" {
			problems = append(problems, "notion.token is required")
		}
		if c.Notion.LeadDB == "" {
			problems = append(problems, "notion.lead_db is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}
	return problems
}

// validateAI accepts a missing key: the resolver then runs extractor-only.
func (c *Config) validateAI() []string {
	var problems []string
	switch c.AI.Provider {
	case "anthropic", "openai", "none", "":
	default:
		problems = append(problems, fmt.Sprintf("ai.provider %q is not supported", c.AI.Provider))
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 1 {
		problems = append(problems, "ai.temperature must be between 0 and 1")
	}
	return problems
}

func (c *Config) validatePipeline() []string {
	var problems []string
	if c.Pipeline.AITimeoutMs <= 0 {
		problems = append(problems, "pipeline.ai_timeout_ms must be > 0")
	}
	if c.Pipeline.DedupTimeoutMs <= 0 {
		problems = append(problems, "pipeline.dedup_timeout_ms must be > 0")
	}
	if c.Pipeline.MaxInflightAI < 1 || c.Pipeline.MaxInflightAI > 100 {
		problems = append(problems, "pipeline.max_inflight_ai must be between 1 and 100")
	}
	return problems
}

// AIKey returns the API key of the selected provider, or "" when the AI path
// is disabled.
func (c *Config) AIKey() string {
	switch c.AI.Provider {
	case "anthropic":
		return c.Anthropic.Key
	case "openai":
		return c.OpenAI.Key
	}
	return ""
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
