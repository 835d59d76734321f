// Package ingest turns inbound chat messages into persisted leads. The
// Endpoint filters and acknowledges webhook deliveries; the Pipeline runs
// parse, dedup, assemble and persist for each accepted message.
package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/lead-intake/internal/assemble"
	"github.com/sells-group/lead-intake/internal/model"
	"github.com/sells-group/lead-intake/internal/monitoring"
	"github.com/sells-group/lead-intake/internal/resolve"
)

// Resolver produces fields for a message. *resolve.Resolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, text string) resolve.Result
}

// DuplicateFinder returns the stored lead matching an identity, or nil.
// *dedup.Deduplicator satisfies it.
type DuplicateFinder interface {
	FindDuplicate(ctx context.Context, firstName, lastName, address string) *model.Lead
}

// Writer is the write side of the lead store.
type Writer interface {
	Save(ctx context.Context, lead model.Lead) (model.Lead, error)
	Update(ctx context.Context, lead model.Lead) (model.Lead, error)
}

// Outcome is how a pipeline run ended.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeNoName  Outcome = "no_name"
	OutcomeFailed  Outcome = "failed"

	// OutcomeDuplicate means a matching lead exists and the pipeline was
	// configured to leave it alone.
	OutcomeDuplicate Outcome = "duplicate"
)

// Report describes one pipeline run. Lead is the lead as written, or as
// assembled when the write failed; it is zero for OutcomeNoName.
type Report struct {
	Outcome  Outcome
	Lead     model.Lead
	Path     model.ParsePath
	Duration time.Duration
	Err      error
}

// PipelineConfig tunes a Pipeline. Events may be nil.
//
// SkipDuplicates turns a dedup match into OutcomeDuplicate instead of an
// update. Replays of history the webhook may already have ingested set it so
// a second pass never appends the same message to a lead again.
type PipelineConfig struct {
	PersistTimeout time.Duration
	Events         *monitoring.EventLog
	SkipDuplicates bool
}

// Pipeline runs parse, dedup, assemble and persist for one message. Runs are
// independent and safe to execute concurrently.
type Pipeline struct {
	resolver       Resolver
	dedup          DuplicateFinder
	assembler      *assemble.Assembler
	store          Writer
	events         *monitoring.EventLog
	persistTimeout time.Duration
	skipDuplicates bool
	now            func() time.Time
}

// NewPipeline wires a pipeline. A non-positive PersistTimeout defaults to 10s.
func NewPipeline(r Resolver, d DuplicateFinder, a *assemble.Assembler, w Writer, cfg PipelineConfig) *Pipeline {
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 10 * time.Second
	}
	return &Pipeline{
		resolver:       r,
		dedup:          d,
		assembler:      a,
		store:          w,
		events:         cfg.Events,
		persistTimeout: cfg.PersistTimeout,
		skipDuplicates: cfg.SkipDuplicates,
		now:            time.Now,
	}
}

// Run processes msg to completion. It never returns an error to the caller:
// a message without a resolvable name ends the run early, and a failed write
// is logged and reported without retry.
func (p *Pipeline) Run(ctx context.Context, msg model.InboundMessage) Report {
	start := p.now()
	ts := msg.ReceivedAt
	if ts.IsZero() {
		ts = start
	}
	ts = ts.UTC()

	log := zap.L().With(zap.String("component", "ingest"), zap.String("sender", msg.SenderName))

	res := p.resolver.Resolve(ctx, msg.Text)
	p.record(monitoring.Event{Type: monitoring.EventParsed, Sender: msg.SenderName, Path: string(res.Path)})

	if !res.Fields.HasName() {
		log.Info("no customer name in message, skipping",
			zap.String("path", string(res.Path)),
			zap.Duration("duration", res.Duration),
		)
		p.record(monitoring.Event{Type: monitoring.EventNoName, Sender: msg.SenderName, Path: string(res.Path)})
		return Report{Outcome: OutcomeNoName, Path: res.Path, Duration: time.Since(start)}
	}

	first, last, address := assemble.Identity(res.Fields)
	existing := p.dedup.FindDuplicate(ctx, first, last, address)

	if existing != nil && p.skipDuplicates {
		log.Info("lead already recorded, skipping",
			zap.String("lead_id", existing.ID),
			zap.String("path", string(res.Path)),
		)
		p.record(monitoring.Event{
			Type:   monitoring.EventDropped,
			Sender: msg.SenderName,
			LeadID: existing.ID,
			Path:   string(res.Path),
			Detail: string(OutcomeDuplicate),
		})
		return Report{Outcome: OutcomeDuplicate, Lead: *existing, Path: res.Path, Duration: time.Since(start)}
	}

	wctx, cancel := context.WithTimeout(ctx, p.persistTimeout)
	defer cancel()

	var (
		lead    model.Lead
		outcome Outcome
		err     error
	)
	if existing != nil {
		lead = p.assembler.UpdateLead(*existing, res.Fields, msg.SenderName, msg.Text, ts)
		outcome = OutcomeUpdated
		var saved model.Lead
		if saved, err = p.store.Update(wctx, lead); err == nil {
			lead = saved
		}
	} else {
		lead = p.assembler.NewLead(res.Fields, msg.SenderName, ts)
		outcome = OutcomeCreated
		var saved model.Lead
		if saved, err = p.store.Save(wctx, lead); err == nil {
			lead = saved
		}
	}

	if err != nil {
		log.Error("persist lead failed",
			zap.String("lead_id", lead.ID),
			zap.String("op", string(outcome)),
			zap.Error(err),
		)
		p.record(monitoring.Event{
			Type:   monitoring.EventFailed,
			Sender: msg.SenderName,
			LeadID: lead.ID,
			Path:   string(res.Path),
			Detail: err.Error(),
		})
		return Report{Outcome: OutcomeFailed, Lead: lead, Path: res.Path, Duration: time.Since(start), Err: err}
	}

	evType := monitoring.EventCreated
	if outcome == OutcomeUpdated {
		evType = monitoring.EventUpdated
	}
	p.record(monitoring.Event{Type: evType, Sender: msg.SenderName, LeadID: lead.ID, Path: string(res.Path)})

	log.Info("lead "+string(outcome),
		zap.String("lead_id", lead.ID),
		zap.String("path", string(res.Path)),
		zap.Duration("duration", time.Since(start)),
	)
	return Report{Outcome: outcome, Lead: lead, Path: res.Path, Duration: time.Since(start)}
}

func (p *Pipeline) record(e monitoring.Event) {
	if p.events != nil {
		p.events.Add(e)
	}
}
