package lending

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SanctionGate tracks time-bounded restrictions on a borrower's ability to
// borrow. At most one sanction record is authoritative per borrower;
// applying a new one replaces the old record.
//
// Expiry needs no coordination: InEffect checks the expiration date lazily,
// and SweepExpired only ever narrows permissions, so a sweep running on an
// uncoordinated schedule cannot race a check into wrongly allowing a loan.
type SanctionGate interface {
	// Apply creates or replaces the sanction record for the borrower.
	Apply(ctx context.Context, sanction Sanction) error

	// InEffect reports whether an active, non-expired sanction blocks the
	// borrower as of today. A record whose expiration date has passed does
	// not block, whether or not a sweep has deactivated it yet.
	InEffect(ctx context.Context, borrowerID uuid.UUID, today time.Time) (bool, error)

	// Remove deactivates the borrower's sanction record, if any.
	Remove(ctx context.Context, borrowerID uuid.UUID) error

	// SweepExpired deactivates all records whose expiration date has
	// passed as of today and returns how many it deactivated.
	SweepExpired(ctx context.Context, today time.Time) (int, error)

	// DaysRemaining returns the whole days until the borrower's sanction
	// expires, or nil when the borrower has no sanction record.
	DaysRemaining(ctx context.Context, borrowerID uuid.UUID, today time.Time) (*int, error)
}
