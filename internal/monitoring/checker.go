package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/lead-intake/internal/config"
	"github.com/sells-group/lead-intake/internal/resilience"
)

// Checker periodically snapshots intake health, logs it, and sends any alerts
// the snapshot triggers.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig

	// lastBreaker is the AI breaker state seen on the previous tick; only
	// the Run goroutine touches it.
	lastBreaker string
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting intake health checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("intake health checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

func (c *Checker) check(ctx context.Context, log *zap.Logger) {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("monitoring: failed to collect metrics", zap.Error(err))
		return
	}

	log.Info("monitoring: intake health",
		zap.Int("leads_created", snap.LeadsCreated),
		zap.Int("leads_updated", snap.LeadsUpdated),
		zap.Int("messages_received", snap.MessagesReceived),
		zap.Int("no_name", snap.NoName),
		zap.Int("failures", snap.Failures),
		zap.Float64("fallback_rate", snap.FallbackRate),
		zap.String("breaker_state", snap.BreakerState),
	)
	c.logBreakerChange(log, snap.BreakerState)

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("monitoring: no alerts triggered")
		return
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
}

// logBreakerChange warns when the AI breaker leaves closed between ticks and
// notes when it recovers. An empty state means no breaker is wired.
func (c *Checker) logBreakerChange(log *zap.Logger, state string) {
	prev := c.lastBreaker
	c.lastBreaker = state
	if state == "" || state == prev {
		return
	}

	closed := resilience.CircuitClosed.String()
	switch {
	case state != closed:
		log.Warn("monitoring: AI parser degraded, messages fall back to the extractor",
			zap.String("breaker_state", state),
			zap.String("previous", prev),
		)
	case prev != "":
		log.Info("monitoring: AI parser recovered", zap.String("previous", prev))
	}
}
