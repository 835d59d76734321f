package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-intake/internal/aiparse"
	"github.com/sells-group/lead-intake/internal/assemble"
	"github.com/sells-group/lead-intake/internal/dedup"
	"github.com/sells-group/lead-intake/internal/ingest"
	"github.com/sells-group/lead-intake/internal/monitoring"
	"github.com/sells-group/lead-intake/internal/resilience"
	"github.com/sells-group/lead-intake/internal/resolve"
	"github.com/sells-group/lead-intake/internal/store"
	anthropicpkg "github.com/sells-group/lead-intake/pkg/anthropic"
	"github.com/sells-group/lead-intake/pkg/notion"
	openaipkg "github.com/sells-group/lead-intake/pkg/openai"
)

// appEnv holds the store and the ingest pipeline shared by serve and
// backfill.
type appEnv struct {
	Store    store.Store
	Breaker  *resilience.CircuitBreaker
	Resolver *resolve.Resolver
	Events   *monitoring.EventLog
	Pipeline *ingest.Pipeline
	Filter   ingest.Filter
}

// Close releases resources held by the environment.
func (ae *appEnv) Close() {
	if ae.Store != nil {
		_ = ae.Store.Close()
	}
}

// initApp validates the config for mode, opens and migrates the store, and
// wires the pipeline. Callers should defer env.Close().
func initApp(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	breaker := initBreaker()
	resolver := initResolver(breaker)
	events := monitoring.NewEventLog(cfg.Ingest.EventLogSize)

	p := ingest.NewPipeline(
		resolver,
		dedup.New(st, millis(cfg.Pipeline.DedupTimeoutMs)),
		assemble.New(),
		st,
		ingest.PipelineConfig{
			PersistTimeout: millis(cfg.Pipeline.PersistTimeoutMs),
			Events:         events,
			SkipDuplicates: mode == "backfill",
		},
	)

	return &appEnv{
		Store:    st,
		Breaker:  breaker,
		Resolver: resolver,
		Events:   events,
		Pipeline: p,
		Filter:   ingest.NewFilter(cfg.Ingest.BotNames),
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		zap.L().Warn("using in-memory store, leads are lost on exit")
		return store.NewMemory(), nil
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leads.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "notion":
		client := notion.NewClient(cfg.Notion.Token, notion.WithRateLimit(cfg.Notion.RateLimit))
		return store.NewNotion(client, cfg.Notion.LeadDB), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initBreaker() *resilience.CircuitBreaker {
	cbCfg := resilience.FromCircuitConfig(cfg.Breaker.FailureThreshold, cfg.Breaker.ResetTimeoutSecs)
	cbCfg.ShouldTrip = resolve.ShouldTrip
	cbCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("ai circuit breaker state change",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return resilience.NewCircuitBreaker(cbCfg)
}

func initResolver(breaker *resilience.CircuitBreaker) *resolve.Resolver {
	return resolve.New(initParser(), resolve.Config{
		Timeout:     millis(cfg.Pipeline.AITimeoutMs),
		MaxInFlight: cfg.Pipeline.MaxInflightAI,
		CallLimit:   time.Duration(cfg.Pipeline.AICallLimitSecs) * time.Second,
		Breaker:     breaker,
	})
}

// initParser returns nil when no provider is usable, which puts every
// message on the extractor path.
func initParser() resolve.AIParser {
	key := cfg.AIKey()
	if key == "" {
		zap.L().Warn("no AI key configured, parsing with extractor only", zap.String("provider", cfg.AI.Provider))
		return nil
	}

	opts := aiparse.Options{MaxTokens: cfg.AI.MaxTokens, Temperature: cfg.AI.Temperature}
	switch cfg.AI.Provider {
	case "openai":
		opts.Model = cfg.OpenAI.Model
		client := openaipkg.NewClient(key, cfg.OpenAI.BaseURL)
		return aiparse.New(aiparse.NewOpenAICompleter(client, opts))
	default:
		opts.Model = cfg.Anthropic.Model
		client := anthropicpkg.NewClient(key, cfg.Anthropic.BaseURL)
		return aiparse.New(aiparse.NewAnthropicCompleter(client, opts))
	}
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
