package ingest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-intake/internal/model"
	"github.com/sells-group/lead-intake/internal/monitoring"
)

// maxPayloadBytes caps a webhook body. GroupMe payloads are a few KB.
const maxPayloadBytes = 1 << 20

// Drop reasons.
const (
	ReasonEmptyText = "empty_text"
	ReasonBotSender = "bot_sender"
	ReasonSystem    = "system_message"
)

// Runner runs the pipeline for one accepted message. *Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, msg model.InboundMessage) Report
}

// Filter decides which inbound messages are dropped before the pipeline.
type Filter struct {
	botNames map[string]struct{}
}

// NewFilter creates a Filter that drops messages from any of botNames. Names
// match exactly.
func NewFilter(botNames []string) Filter {
	m := make(map[string]struct{}, len(botNames))
	for _, n := range botNames {
		m[n] = struct{}{}
	}
	return Filter{botNames: m}
}

// Drop returns the reason msg should not be processed, or "" to accept it.
// Empty or whitespace-only text, the system's own bot identities, and
// provider system or bot posts are dropped.
func (f Filter) Drop(msg model.InboundMessage) string {
	if strings.TrimSpace(msg.Text) == "" {
		return ReasonEmptyText
	}
	if _, ok := f.botNames[msg.SenderName]; ok {
		return ReasonBotSender
	}
	if msg.SenderType == "bot" {
		return ReasonBotSender
	}
	if msg.System || msg.SenderType == "system" {
		return ReasonSystem
	}
	return ""
}

// Endpoint receives webhook deliveries. Every delivery is acknowledged with
// 200 before any parsing happens, malformed ones included, so the provider
// never retries. Accepted messages run in the background.
type Endpoint struct {
	runner Runner
	filter Filter
	events *monitoring.EventLog

	wg  sync.WaitGroup
	now func() time.Time
}

// NewEndpoint creates an Endpoint. events may be nil.
func NewEndpoint(runner Runner, filter Filter, events *monitoring.EventLog) *Endpoint {
	return &Endpoint{
		runner: runner,
		filter: filter,
		events: events,
		now:    time.Now,
	}
}

// HandleWebhook is the http.HandlerFunc for the provider's callback URL.
func (e *Endpoint) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	msg, err := decodeMessage(r.Body)
	if err != nil {
		zap.L().Warn("ingest: malformed webhook payload", zap.Error(err))
		e.record(monitoring.Event{Type: monitoring.EventDropped, Detail: "malformed_payload"})
		writeAck(w)
		return
	}

	e.Accept(r.Context(), msg)
	writeAck(w)
}

// Accept filters msg and, if it passes, starts a pipeline run for it. It
// returns true when a run was started. The run is detached from ctx's
// cancellation: once started it completes or fails on its own.
func (e *Endpoint) Accept(ctx context.Context, msg model.InboundMessage) bool {
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = e.now().UTC()
	}
	e.record(monitoring.Event{Type: monitoring.EventReceived, Sender: msg.SenderName})

	if reason := e.filter.Drop(msg); reason != "" {
		zap.L().Debug("ingest: message dropped",
			zap.String("sender", msg.SenderName),
			zap.String("reason", reason),
		)
		e.record(monitoring.Event{Type: monitoring.EventDropped, Sender: msg.SenderName, Detail: reason})
		return false
	}

	runCtx := context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				zap.L().Error("ingest: pipeline panic",
					zap.String("sender", msg.SenderName),
					zap.Any("panic", rec),
				)
				e.record(monitoring.Event{Type: monitoring.EventFailed, Sender: msg.SenderName, Detail: "panic"})
			}
		}()
		e.runner.Run(runCtx, msg)
	}()
	return true
}

// Wait blocks until every started run has finished.
func (e *Endpoint) Wait() {
	e.wg.Wait()
}

// Shutdown waits for in-flight runs, giving up when ctx is done.
func (e *Endpoint) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "ingest: wait for in-flight runs")
	}
}

func (e *Endpoint) record(ev monitoring.Event) {
	if e.events != nil {
		e.events.Add(ev)
	}
}

func decodeMessage(body io.Reader) (model.InboundMessage, error) {
	var msg model.InboundMessage
	if body == nil {
		return msg, eris.New("ingest: empty body")
	}
	if err := json.NewDecoder(io.LimitReader(body, maxPayloadBytes)).Decode(&msg); err != nil {
		return msg, eris.Wrap(err, "ingest: decode payload")
	}
	return msg, nil
}

func writeAck(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
