package penalty

import (
	"context"
)

// Repository is the append-only penalty ledger.
//
// Add never deduplicates against prior penalties for the same (user, survey)
// pair: a replayed survey-finished event will issue a second point. Idempotent
// issuance would require a dedupe key on the lifecycle event, which the
// upstream pipeline does not provide.
type Repository interface {
	Add(ctx context.Context, p *Penalty) error
	CountByUser(ctx context.Context, userID int64) (int, error)
	ListByUser(ctx context.Context, userID int64) ([]*Penalty, error)
	// OffendersWithAtLeast aggregates penalties per user and returns users
	// whose total is at or above the threshold.
	OffendersWithAtLeast(ctx context.Context, threshold int) ([]*Offender, error)
	// DeleteByUser removes every penalty of one user (forgiveness on re-join).
	DeleteByUser(ctx context.Context, userID int64) error
	DeleteAll(ctx context.Context) error
}
