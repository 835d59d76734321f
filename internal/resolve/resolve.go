// Package resolve composes the AI parser and the pattern extractor into one
// fallback chain that always produces a result within a bounded time.
package resolve

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-intake/internal/extract"
	"github.com/sells-group/lead-intake/internal/model"
	"github.com/sells-group/lead-intake/internal/resilience"
)

// ErrTimeout is recorded when the AI parse loses the race against its timer.
var ErrTimeout = eris.New("resolve: ai parse timed out")

// errBusy means no in-flight slot freed up before the timer fired.
var errBusy = eris.New("resolve: ai parse slots busy")

// errNoName means the AI answered but found no customer name.
var errNoName = eris.New("resolve: ai result has no name")

// AIParser is the remote parse step. *aiparse.Parser satisfies it.
type AIParser interface {
	Parse(ctx context.Context, text string) (model.ExtractedFields, error)
}

// Config tunes a Resolver.
type Config struct {
	// Timeout bounds how long Resolve waits for the AI path. Default 4s.
	Timeout time.Duration

	// MaxInFlight bounds concurrent AI calls, including abandoned ones that
	// are still running. Default 8.
	MaxInFlight int

	// CallLimit is the hard deadline handed to each AI call. An abandoned
	// call holds its slot until it returns or hits this. Default 30s.
	CallLimit time.Duration

	// Breaker, when set, skips the AI path while the provider is failing.
	Breaker *resilience.CircuitBreaker
}

// Result is the outcome of one Resolve call.
type Result struct {
	Fields   model.ExtractedFields
	Path     model.ParsePath
	Duration time.Duration

	// AIErr is why the AI path was not used, if it was attempted or skipped.
	AIErr error
}

// Resolver runs the AI parse against a timer and falls back to the extractor.
type Resolver struct {
	ai        AIParser
	breaker   *resilience.CircuitBreaker
	sem       chan struct{}
	timeout   time.Duration
	callLimit time.Duration
}

// New creates a Resolver. A nil ai makes every message take the extractor
// path.
func New(ai AIParser, cfg Config) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 4 * time.Second
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 8
	}
	if cfg.CallLimit <= 0 {
		cfg.CallLimit = 30 * time.Second
	}
	return &Resolver{
		ai:        ai,
		breaker:   cfg.Breaker,
		sem:       make(chan struct{}, cfg.MaxInFlight),
		timeout:   cfg.Timeout,
		callLimit: cfg.CallLimit,
	}
}

// ShouldTrip reports whether err means the AI provider is unhealthy. Use it
// as the breaker's CircuitBreakerConfig.ShouldTrip.
func ShouldTrip(err error) bool {
	return errors.Is(err, ErrTimeout) || resilience.IsTransient(err)
}

// Resolve never fails. It returns the AI result when the AI answers in time
// with a name, and the extractor result otherwise. The extractor result may
// itself lack a name; callers must check HasName.
func (r *Resolver) Resolve(ctx context.Context, text string) Result {
	start := time.Now()
	log := zap.L().With(zap.String("component", "resolve"))

	var aiErr error
	if r.ai != nil {
		fields, err := r.tryAI(ctx, text)
		if err == nil {
			log.Debug("ai parse accepted", zap.Duration("duration", time.Since(start)))
			return Result{Fields: fields, Path: model.ParsePathAI, Duration: time.Since(start)}
		}
		aiErr = err
		log.Info("ai parse unavailable, using extractor", zap.Error(err))
	}

	return Result{
		Fields:   extract.Extract(text),
		Path:     model.ParsePathExtractor,
		Duration: time.Since(start),
		AIErr:    aiErr,
	}
}

type outcome struct {
	fields model.ExtractedFields
	err    error
}

func (r *Resolver) tryAI(ctx context.Context, text string) (model.ExtractedFields, error) {
	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case r.sem <- struct{}{}:
	case <-timer.C:
		return model.ExtractedFields{}, errBusy
	}

	if r.breaker != nil {
		if err := r.breaker.Allow(); err != nil {
			<-r.sem
			return model.ExtractedFields{}, err
		}
	}

	// Buffered so the call can finish after Resolve has stopped listening.
	done := make(chan outcome, 1)
	go func() {
		defer func() { <-r.sem }()
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.callLimit)
		defer cancel()
		f, err := r.ai.Parse(callCtx, text)
		done <- outcome{fields: f, err: err}
	}()

	select {
	case o := <-done:
		r.record(o.err)
		if o.err != nil {
			return model.ExtractedFields{}, o.err
		}
		if !o.fields.HasName() {
			return model.ExtractedFields{}, errNoName
		}
		return o.fields, nil
	case <-timer.C:
		r.record(ErrTimeout)
		return model.ExtractedFields{}, ErrTimeout
	}
}

func (r *Resolver) record(err error) {
	if r.breaker != nil {
		r.breaker.Record(err)
	}
}
