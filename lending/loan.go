package lending

import (
	"time"

	"github.com/google/uuid"
)

// Loan is a borrowing event: a borrower holding a copy between a loan date
// and an optional return date. Loans form permanent history and are mutated
// exactly once, when the return date is set.
type Loan struct {
	ID         uuid.UUID
	CopyID     uuid.UUID
	BorrowerID uuid.UUID
	LoanedAt   time.Time
	ReturnedAt *time.Time
}

// BuildLoan creates a new active loan.
func BuildLoan(copyID uuid.UUID, borrowerID uuid.UUID, loanedAt time.Time) Loan {
	return Loan{
		ID:         uuid.New(),
		CopyID:     copyID,
		BorrowerID: borrowerID,
		LoanedAt:   loanedAt.UTC(),
	}
}

// IsActive reports whether the loan has not been returned yet.
func (l Loan) IsActive() bool {
	return l.ReturnedAt == nil
}

// LoanView is a loan enriched with its due-date classification, as returned
// by the Service query operations.
type LoanView struct {
	Loan
	Due DueStatus
}
