package permission

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// Source is the persistence the resolver reads from and writes the resolved
// snapshot back to.
type Source interface {
	OwnedBusinesses(ctx context.Context, userID string) ([]Business, error)
	Assignments(ctx context.Context, userID string) ([]Assignment, error)
	ShopsForBusinesses(ctx context.Context, businessIDs []string) ([]Shop, error)
	UpsertSnapshot(ctx context.Context, userID string, snap Snapshot) error
}

// Resolver computes a user's effective access from ownership and role
// assignments. It knows nothing about caching.
type Resolver struct {
	source Source
}

// NewResolver returns a Resolver over source.
func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// Resolve builds the snapshot for userID and upserts it into the source.
//
// Owned businesses and assignments load concurrently. Assignments whose role
// is gone are skipped. Shops of owned businesses are written last, so an
// owned entry replaces any assignment-derived entry for the same shop.
func (r *Resolver) Resolve(ctx context.Context, userID string) (Snapshot, error) {
	if userID == "" {
		return Snapshot{}, errors.New("user id is required")
	}

	var (
		owned       []Business
		assignments []Assignment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		owned, err = r.source.OwnedBusinesses(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		assignments, err = r.source.Assignments(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	snap := NewSnapshot()
	for _, a := range assignments {
		if a.Role == nil {
			continue
		}
		shops := []string{}
		restrictions := []string{}
		if a.Overrides != nil {
			if a.Overrides.ShopIDs != nil {
				shops = append(shops, a.Overrides.ShopIDs...)
			}
			if a.Overrides.Restrictions != nil {
				restrictions = append(restrictions, a.Overrides.Restrictions...)
			}
		}

		snap.RoleAccess[a.BusinessID] = RoleAccess{
			BusinessID:   a.BusinessID,
			Shops:        shops,
			Actions:      a.Role.Resources.Grants(),
			Role:         a.Role.Name,
			Restrictions: restrictions,
		}
		for _, shopID := range shops {
			snap.ShopAccess[shopID] = ShopAccess{BusinessID: a.BusinessID, Owned: false}
		}
	}

	if len(owned) > 0 {
		ids := make([]string, 0, len(owned))
		for _, b := range owned {
			ids = append(ids, b.ID)
		}
		snap.OwnedBusinesses = ids
		shops, err := r.source.ShopsForBusinesses(ctx, ids)
		if err != nil {
			return Snapshot{}, err
		}
		for _, shop := range shops {
			snap.ShopAccess[shop.PublicID] = ShopAccess{BusinessID: shop.BusinessID, Owned: true}
		}
	}

	if err := r.source.UpsertSnapshot(ctx, userID, snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
