package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-intake/internal/model"
	"github.com/sells-group/lead-intake/internal/resilience"
)

// MetricsSnapshot holds a point-in-time view of ingestion health.
type MetricsSnapshot struct {
	// Lead metrics. Created and Updated count within the lookback window.
	LeadsTotal   int                 `json:"leads_total"`
	LeadsByStage map[model.Stage]int `json:"leads_by_stage"`
	LeadsCreated int                 `json:"leads_created"`
	LeadsUpdated int                 `json:"leads_updated"`

	// Event metrics, from the retained part of the event log within the
	// lookback window.
	MessagesReceived int     `json:"messages_received"`
	MessagesDropped  int     `json:"messages_dropped"`
	ParsedAI         int     `json:"parsed_ai"`
	ParsedExtractor  int     `json:"parsed_extractor"`
	NoName           int     `json:"no_name"`
	Failures         int     `json:"failures"`
	FallbackRate     float64 `json:"fallback_rate"`

	BreakerState string `json:"breaker_state,omitempty"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// LeadLister is the read side of the lead store.
type LeadLister interface {
	List(ctx context.Context) ([]model.Lead, error)
}

// BreakerStater exposes a circuit breaker's state.
type BreakerStater interface {
	State() resilience.CircuitState
}

// Collector gathers metrics from the store and the event log.
type Collector struct {
	leads   LeadLister
	events  *EventLog
	breaker BreakerStater
}

// NewCollector creates a metrics collector. events and breaker may be nil.
func NewCollector(leads LeadLister, events *EventLog, breaker BreakerStater) *Collector {
	return &Collector{leads: leads, events: events, breaker: breaker}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := time.Now().UTC()
	snap := &MetricsSnapshot{
		LeadsByStage:  make(map[model.Stage]int),
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	leads, err := c.leads.List(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list leads")
	}
	snap.LeadsTotal = len(leads)
	for _, l := range leads {
		snap.LeadsByStage[l.Stage]++
		if !l.Timestamp.Before(cutoff) {
			snap.LeadsCreated++
		}
		if l.LastModifiedTimestamp != nil && !l.LastModifiedTimestamp.Before(cutoff) {
			snap.LeadsUpdated++
		}
	}

	if c.events != nil {
		for _, e := range c.events.Recent(0) {
			if e.Time.Before(cutoff) {
				continue
			}
			switch e.Type {
			case EventReceived:
				snap.MessagesReceived++
			case EventDropped:
				snap.MessagesDropped++
			case EventParsed:
				if e.Path == string(model.ParsePathAI) {
					snap.ParsedAI++
				} else {
					snap.ParsedExtractor++
				}
			case EventNoName:
				snap.NoName++
			case EventFailed:
				snap.Failures++
			}
		}
		if parsed := snap.ParsedAI + snap.ParsedExtractor; parsed > 0 {
			snap.FallbackRate = float64(snap.ParsedExtractor) / float64(parsed)
		}
	}

	if c.breaker != nil {
		snap.BreakerState = c.breaker.State().String()
	}

	return snap, nil
}
