// Package store persists leads. Every backend offers the same small gateway:
// save a new lead, update an existing one, list all leads, and look one up by
// identity.
package store

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-intake/internal/model"
)

// ErrNotFound is returned when an update targets a lead id that does not
// exist.
var ErrNotFound = eris.New("store: lead not found")

// Store defines the persistence gateway for leads.
type Store interface {
	// Save inserts a new lead and returns it as stored.
	Save(ctx context.Context, lead model.Lead) (model.Lead, error)
	// Update replaces every mutable column of the lead with the same id.
	// Timestamp and ID never change.
	Update(ctx context.Context, lead model.Lead) (model.Lead, error)
	// List returns all leads, newest first.
	List(ctx context.Context) ([]model.Lead, error)
	// FindByIdentity returns the first listed lead whose normalized identity
	// matches, or nil.
	FindByIdentity(ctx context.Context, firstName, lastName, address string) (*model.Lead, error)

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// findByIdentity is the shared FindByIdentity: a full scan over list.
func findByIdentity(ctx context.Context, list func(context.Context) ([]model.Lead, error), first, last, address string) (*model.Lead, error) {
	leads, err := list(ctx)
	if err != nil {
		return nil, err
	}
	l, ok := model.FindByIdentity(leads, model.NewIdentityKey(first, last, address))
	if !ok {
		return nil, nil
	}
	return &l, nil
}

// sortNewestFirst orders leads by creation time, newest first, breaking ties
// by id so the order is stable across backends.
func sortNewestFirst(leads []model.Lead) {
	sort.SliceStable(leads, func(i, j int) bool {
		if !leads[i].Timestamp.Equal(leads[j].Timestamp) {
			return leads[i].Timestamp.After(leads[j].Timestamp)
		}
		return leads[i].ID < leads[j].ID
	})
}

func validateForSave(lead model.Lead) error {
	if lead.ID == "" {
		return eris.New("store: lead id is required")
	}
	if !lead.Stage.Valid() {
		return eris.Errorf("store: invalid stage %q", lead.Stage)
	}
	return nil
}
