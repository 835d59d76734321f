// Package backfill replays recent GroupMe history through the ingest
// pipeline, picking up messages the webhook missed.
package backfill

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-intake/internal/ingest"
	"github.com/sells-group/lead-intake/internal/model"
	"github.com/sells-group/lead-intake/pkg/groupme"
)

// Defaults applied by Run.
const (
	DefaultHours       = 24
	DefaultMaxMessages = 1000
	DefaultConcurrency = 2
	MinTextLen         = 10
)

// Options controls one backfill run.
type Options struct {
	GroupID     string
	Hours       int
	MaxMessages int
	Concurrency int
}

// Summary totals one backfill run.
type Summary struct {
	Messages   int `json:"messages"`
	Skipped    int `json:"skipped"`
	Created    int `json:"created"`
	Updated    int `json:"updated"`
	Duplicates int `json:"duplicates"`
	NoName     int `json:"no_name"`
	Failed     int `json:"failed"`
}

// Backfiller fetches history and feeds it to a runner.
type Backfiller struct {
	client groupme.Client
	runner ingest.Runner
	filter ingest.Filter
	now    func() time.Time
}

// New creates a Backfiller.
func New(client groupme.Client, runner ingest.Runner, filter ingest.Filter) *Backfiller {
	return &Backfiller{client: client, runner: runner, filter: filter, now: time.Now}
}

// Fetch pages backwards through the group's history with before_id until a
// message older than cutoff, limit messages, or the start of the group.
// Messages are returned newest first.
func (b *Backfiller) Fetch(ctx context.Context, groupID string, cutoff time.Time, limit int) ([]groupme.Message, error) {
	var (
		out      []groupme.Message
		beforeID string
	)
	for len(out) < limit {
		page, err := b.client.Messages(ctx, groupID, beforeID, groupme.MaxPageSize)
		if err != nil {
			return out, eris.Wrap(err, "backfill: fetch messages")
		}
		if len(page) == 0 {
			return out, nil
		}
		for _, m := range page {
			if m.Time().Before(cutoff) || len(out) >= limit {
				return out, nil
			}
			out = append(out, m)
		}
		beforeID = page[len(page)-1].ID
	}
	return out, nil
}

// Run fetches the window described by opts and runs every eligible message
// through the pipeline, oldest first. A fetch error aborts the run before
// any message is processed; pipeline failures are counted, not returned.
func (b *Backfiller) Run(ctx context.Context, opts Options) (Summary, error) {
	if opts.Hours <= 0 {
		opts.Hours = DefaultHours
	}
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = DefaultMaxMessages
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.GroupID == "" {
		return Summary{}, eris.New("backfill: group id is required")
	}

	cutoff := b.now().Add(-time.Duration(opts.Hours) * time.Hour)
	msgs, err := b.Fetch(ctx, opts.GroupID, cutoff, opts.MaxMessages)
	if err != nil {
		return Summary{}, err
	}

	var (
		mu  sync.Mutex
		sum = Summary{Messages: len(msgs)}
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i := len(msgs) - 1; i >= 0; i-- {
		in := inbound(msgs[i])
		if reason := b.skip(in); reason != "" {
			zap.L().Debug("backfill: skipping message",
				zap.String("message_id", in.ID),
				zap.String("reason", reason),
			)
			sum.Skipped++
			continue
		}

		g.Go(func() error {
			if gCtx.Err() != nil {
				return gCtx.Err()
			}
			rep := b.runner.Run(gCtx, in)
			mu.Lock()
			defer mu.Unlock()
			switch rep.Outcome {
			case ingest.OutcomeCreated:
				sum.Created++
			case ingest.OutcomeUpdated:
				sum.Updated++
			case ingest.OutcomeDuplicate:
				sum.Duplicates++
			case ingest.OutcomeNoName:
				sum.NoName++
			default:
				sum.Failed++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return sum, eris.Wrap(err, "backfill: run messages")
	}

	zap.L().Info("backfill: complete",
		zap.Int("messages", sum.Messages),
		zap.Int("created", sum.Created),
		zap.Int("updated", sum.Updated),
		zap.Int("duplicates", sum.Duplicates),
		zap.Int("skipped", sum.Skipped),
		zap.Int("no_name", sum.NoName),
		zap.Int("failed", sum.Failed),
	)
	return sum, nil
}

// skip applies the webhook filter plus a minimum length; short history
// messages are chatter, not leads.
func (b *Backfiller) skip(in model.InboundMessage) string {
	if reason := b.filter.Drop(in); reason != "" {
		return reason
	}
	if len([]rune(strings.TrimSpace(in.Text))) < MinTextLen {
		return "too_short"
	}
	return ""
}

func inbound(m groupme.Message) model.InboundMessage {
	return model.InboundMessage{
		ID:         m.ID,
		SenderName: m.Name,
		Text:       m.Text,
		GroupID:    m.GroupID,
		SenderType: m.SenderType,
		System:     m.System,
		ReceivedAt: m.Time(),
	}
}
