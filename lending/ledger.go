package lending

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LoanLedger owns the loan records: who holds which copy, since when,
// returned when. Loans are never deleted; they form permanent history.
//
// Record inserts a loan for a copy the caller has just reserved through the
// CopyRegistry; the Service compensates a failed Record by releasing the
// reservation, so the two steps form one logical transaction.
//
// Return couples the return-date write with the copy release in one atomic
// step: a concurrent reader must never observe a returned loan with its
// copy still loaned, nor an active loan with its copy free.
type LoanLedger interface {
	// Record persists a new active loan (ReturnedAt must be nil).
	Record(ctx context.Context, loan Loan) error

	// Return sets the return date of the loan and releases its copy,
	// atomically. It fails with ErrLoanNotFound when the loan is unknown
	// and with ErrLoanAlreadyReturned when the return date is already set.
	// On success it returns the updated loan.
	Return(ctx context.Context, loanID uuid.UUID, returnedAt time.Time) (Loan, error)

	// LoanByID looks up a single loan.
	// It fails with ErrLoanNotFound when the loan is unknown.
	LoanByID(ctx context.Context, loanID uuid.UUID) (Loan, error)

	// ActiveLoans returns loans with no return date, oldest first,
	// filtered to one borrower when borrowerID is non-nil.
	ActiveLoans(ctx context.Context, borrowerID *uuid.UUID) ([]Loan, error)

	// AllLoans returns the full loan history, oldest first, filtered to
	// one borrower when borrowerID is non-nil.
	AllLoans(ctx context.Context, borrowerID *uuid.UUID) ([]Loan, error)
}
