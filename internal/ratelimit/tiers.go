package ratelimit

import (
	"context"

	"github.com/citypulse/api-edge/internal/models"
)

// TierSource resolves a user's current membership tier. The limiter asks on
// every request instead of caching, so an approval changes the quota within
// the same request cycle.
type TierSource interface {
	TierFor(ctx context.Context, userID string) (models.MembershipTier, error)
}

// Quotas maps caller standing to a per-window request budget.
type Quotas struct {
	Anonymous int
	Regular   int
	Approved  int
}

// ForUser picks the quota for a resolved tier. Pending applicants keep the
// regular quota until a reviewer approves them.
func (q Quotas) ForUser(tier models.MembershipTier) int {
	if tier == models.TierApproved {
		return q.Approved
	}
	return q.Regular
}
