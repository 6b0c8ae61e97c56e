package lending

import (
	"time"

	"github.com/google/uuid"
)

// Sanction is a time-bounded restriction preventing a borrower from creating
// new loans. At most one sanction record is authoritative per borrower;
// applying a new one replaces the prior record.
type Sanction struct {
	BorrowerID uuid.UUID
	Reason     string
	IssuedBy   uuid.UUID
	AppliedAt  time.Time
	ExpiresAt  time.Time
	Active     bool
}

// BuildSanction creates an active sanction expiring durationDays whole days
// after appliedAt.
func BuildSanction(borrowerID uuid.UUID, reason string, durationDays int, issuedBy uuid.UUID, appliedAt time.Time) Sanction {
	applied := appliedAt.UTC()

	return Sanction{
		BorrowerID: borrowerID,
		Reason:     reason,
		IssuedBy:   issuedBy,
		AppliedAt:  applied,
		ExpiresAt:  civilDate(applied).AddDate(0, 0, durationDays),
		Active:     true,
	}
}

// IsInEffectAt reports whether the sanction blocks borrowing on the given
// day: the active flag is set and the day is not past the expiration date.
func (s Sanction) IsInEffectAt(today time.Time) bool {
	return s.Active && !civilDate(today).After(s.ExpiresAt)
}

// DaysRemainingAt returns the number of whole days until the sanction
// expires, negative once the expiration date has passed.
func (s Sanction) DaysRemainingAt(today time.Time) int {
	return wholeDaysBetween(civilDate(today), civilDate(s.ExpiresAt))
}
