// Package snapshot gathers everything one recommendation request reads, so
// scoring runs over a frozen, in-memory view.
package snapshot

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cognicore/fridgerank/pkg/fridgerank/internalerr"
	"github.com/cognicore/fridgerank/pkg/fridgerank/store"
)

// Snapshot is the read-only input of one request
type Snapshot struct {
	AsOf       time.Time
	Inventory  map[string]time.Time // ingredient id -> soonest valid expiry
	Profile    store.FlavorProfile
	HasProfile bool
	Cooked     map[string]struct{}
	Urgent     []store.UrgentItem
	Candidates []store.Candidate
}

// Providers groups the data sources a snapshot is built from. A
// store.Store satisfies every field.
type Providers struct {
	Inventory  store.InventoryProvider
	History    store.HistoryProvider
	Profiles   store.FlavorProfileProvider
	Candidates store.CandidateProvider
	Urgent     store.UrgentItemsProvider
}

// FromStore uses st for every provider.
func FromStore(st store.Store) Providers {
	return Providers{
		Inventory:  st,
		History:    st,
		Profiles:   st,
		Candidates: st,
		Urgent:     st,
	}
}

// Options controls provider queries
type Options struct {
	MaxMissing       int
	UrgentWindowDays int
}

// Load calls every provider concurrently. The first failure cancels the
// others and is returned as a *internalerr.DataAccessError naming the
// provider.
func Load(ctx context.Context, p Providers, userID string, asOf time.Time, opts Options) (*Snapshot, error) {
	snap := &Snapshot{AsOf: asOf}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		inv, err := p.Inventory.ValidItems(ctx, userID, asOf)
		snap.Inventory = inv
		return internalerr.NewDataAccess("inventory", err)
	})
	g.Go(func() error {
		cooked, err := p.History.CookedRecipeIDs(ctx, userID)
		snap.Cooked = cooked
		return internalerr.NewDataAccess("history", err)
	})
	g.Go(func() error {
		profile, ok, err := p.Profiles.FlavorProfile(ctx, userID)
		snap.Profile, snap.HasProfile = profile, ok
		return internalerr.NewDataAccess("flavor_profile", err)
	})
	g.Go(func() error {
		cands, err := p.Candidates.CandidateRecipes(ctx, userID, asOf, opts.MaxMissing)
		snap.Candidates = cands
		return internalerr.NewDataAccess("candidates", err)
	})
	g.Go(func() error {
		urgent, err := p.Urgent.UrgentItems(ctx, userID, asOf, opts.UrgentWindowDays)
		snap.Urgent = urgent
		return internalerr.NewDataAccess("urgent_items", err)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if snap.Inventory == nil {
		snap.Inventory = map[string]time.Time{}
	}
	if snap.Cooked == nil {
		snap.Cooked = map[string]struct{}{}
	}
	if snap.Urgent == nil {
		snap.Urgent = []store.UrgentItem{}
	}
	return snap, nil
}
