// Package dedup decides whether an incoming lead matches one already stored.
package dedup

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-intake/internal/model"
)

// ErrTimeout is reported when the lookup loses the race against its timer.
var ErrTimeout = eris.New("dedup: lookup timed out")

// Lister is the read side of the lead store.
type Lister interface {
	List(ctx context.Context) ([]model.Lead, error)
}

// Deduplicator matches identity keys against the full lead set.
type Deduplicator struct {
	store   Lister
	timeout time.Duration
}

// New creates a Deduplicator. A non-positive timeout defaults to 1.5s.
func New(store Lister, timeout time.Duration) *Deduplicator {
	if timeout <= 0 {
		timeout = 1500 * time.Millisecond
	}
	return &Deduplicator{store: store, timeout: timeout}
}

// Lookup lists every lead and returns the first whose normalized identity
// equals the query's, or nil. The scan is O(n) in stored leads.
func (d *Deduplicator) Lookup(ctx context.Context, firstName, lastName, address string) (*model.Lead, error) {
	leads, err := d.store.List(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "dedup: list leads")
	}
	l, ok := model.FindByIdentity(leads, model.NewIdentityKey(firstName, lastName, address))
	if !ok {
		return nil, nil
	}
	return &l, nil
}

type lookupResult struct {
	lead *model.Lead
	err  error
}

// FindDuplicate runs Lookup against the timeout. A timeout or a store error
// is reported as no duplicate: a rare duplicate lead is preferred over a
// dropped one. Concurrent arrivals of the same new customer can both see no
// duplicate; nothing here serializes writers.
func (d *Deduplicator) FindDuplicate(ctx context.Context, firstName, lastName, address string) *model.Lead {
	lead, err := d.find(ctx, firstName, lastName, address)
	if err != nil {
		zap.L().Warn("dedup: treating lookup failure as no duplicate",
			zap.String("identity", model.NewIdentityKey(firstName, lastName, address).String()),
			zap.Error(err),
		)
		return nil
	}
	return lead
}

func (d *Deduplicator) find(ctx context.Context, firstName, lastName, address string) (*model.Lead, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	// Buffered so a slow store call can finish after the race is decided.
	done := make(chan lookupResult, 1)
	go func() {
		l, err := d.Lookup(ctx, firstName, lastName, address)
		done <- lookupResult{lead: l, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() != nil {
			return nil, ErrTimeout
		}
		return r.lead, r.err
	case <-ctx.Done():
		return nil, ErrTimeout
	}
}
