package entitlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/baraholka/storefront/internal/models"
	"github.com/baraholka/storefront/internal/remote"
)

// DefaultPostLimit applies when the profile carries no explicit limit.
const DefaultPostLimit = 6

const (
	ReasonLimitReached = "limit_reached"
	ReasonUnavailable  = "unavailable"
)

type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Evaluate derives the posting decision from a snapshot. An unlimited grant
// that has already expired counts as no grant at all.
func Evaluate(snap models.EntitlementSnapshot, now time.Time) Decision {
	if snap.UnlimitedUntil != nil && snap.UnlimitedUntil.After(now) {
		return Decision{Allowed: true}
	}

	limit := snap.PostLimit
	if limit <= 0 {
		limit = DefaultPostLimit
	}
	if snap.PostCountUsed >= limit {
		return Decision{Reason: ReasonLimitReached}
	}
	return Decision{Allowed: true}
}

// Gate performs the authoritative check before a create-listing flow starts.
// Cached snapshots are fine for badges; the gate always recounts.
type Gate struct {
	Remote remote.DataService
	// Limit overrides DefaultPostLimit for profiles with no explicit limit.
	Limit int
	Now   func() time.Time
}

func (g *Gate) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g *Gate) limit() int {
	if g.Limit > 0 {
		return g.Limit
	}
	return DefaultPostLimit
}

// CheckCreate fetches the profile and a live listing count, then evaluates.
// Any fetch failure blocks the action: letting an unverified count through
// would bypass the quota.
func (g *Gate) CheckCreate(ctx context.Context, userID uuid.UUID) (Decision, error) {
	snap, err := g.Remote.FetchProfile(ctx, userID)
	if err != nil {
		return Decision{Reason: ReasonUnavailable}, fmt.Errorf("entitlement profile: %w", err)
	}

	count, err := g.Remote.CountListings(ctx, userID)
	if err != nil {
		return Decision{Reason: ReasonUnavailable}, fmt.Errorf("entitlement count: %w", err)
	}
	snap.PostCountUsed = count
	if snap.PostLimit <= 0 {
		snap.PostLimit = g.limit()
	}

	return Evaluate(snap, g.now()), nil
}

// Snapshot returns the display-grade snapshot with the live count folded in
// when reachable. Not authoritative for gating.
func (g *Gate) Snapshot(ctx context.Context, userID uuid.UUID) (models.EntitlementSnapshot, error) {
	snap, err := g.Remote.FetchProfile(ctx, userID)
	if err != nil {
		return models.EntitlementSnapshot{}, err
	}
	if snap.PostLimit <= 0 {
		snap.PostLimit = g.limit()
	}
	if count, err := g.Remote.CountListings(ctx, userID); err == nil {
		snap.PostCountUsed = count
	}
	return snap, nil
}

// CheckEdit always allows: entitlement applies only to net-new creations.
func (g *Gate) CheckEdit() Decision {
	return Decision{Allowed: true}
}
