// Package memoryengine provides an in-process lending store. The critical
// TryReserve check-and-set happens under a single lock, which makes the
// store a valid CopyRegistry under concurrent request handlers and a
// convenient engine for tests and single-node deployments.
package memoryengine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/libraryops/lending-core-go/lending"
)

// Store is an in-memory implementation of lending.CopyRegistry,
// lending.LoanLedger, and lending.SanctionGate. The zero value is not
// usable; create one with NewStore. All methods are safe for concurrent
// use.
type Store struct {
	mu        sync.Mutex
	copies    map[uuid.UUID]lending.Copy
	loans     map[uuid.UUID]lending.Loan
	loanOrder []uuid.UUID
	sanctions map[uuid.UUID]lending.Sanction
}

// NewStore creates an empty in-memory lending store.
func NewStore() *Store {
	return &Store{
		copies:    make(map[uuid.UUID]lending.Copy),
		loans:     make(map[uuid.UUID]lending.Loan),
		sanctions: make(map[uuid.UUID]lending.Sanction),
	}
}

// Add registers a new copy.
func (s *Store) Add(_ context.Context, copy lending.Copy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.copies[copy.ID] = copy

	return nil
}

// TryReserve atomically transitions the copy from free to loaned. The
// check and the write happen under one lock acquisition, so of N concurrent
// callers on the same free copy exactly one succeeds.
func (s *Store) TryReserve(_ context.Context, copyID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copyRecord, found := s.copies[copyID]
	if !found || copyRecord.Retired {
		return lending.ErrCopyNotFound
	}

	if copyRecord.Status != lending.CopyStatusFree {
		return lending.ErrCopyUnavailable
	}

	copyRecord.Status = lending.CopyStatusLoaned
	s.copies[copyID] = copyRecord

	return nil
}

// Release transitions the copy from loaned back to free. Releasing an
// already-free copy is a no-op success.
func (s *Store) Release(_ context.Context, copyID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copyRecord, found := s.copies[copyID]
	if !found {
		return lending.ErrCopyNotFound
	}

	copyRecord.Status = lending.CopyStatusFree
	s.copies[copyID] = copyRecord

	return nil
}

// StatusOf returns the availability state of a copy.
func (s *Store) StatusOf(_ context.Context, copyID uuid.UUID) (lending.CopyStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copyRecord, found := s.copies[copyID]
	if !found {
		return "", lending.ErrCopyNotFound
	}

	return copyRecord.Status, nil
}

// Retire soft-removes the copy from circulation. A copy out on loan cannot
// be retired.
func (s *Store) Retire(_ context.Context, copyID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copyRecord, found := s.copies[copyID]
	if !found {
		return lending.ErrCopyNotFound
	}

	if copyRecord.Status == lending.CopyStatusLoaned {
		return lending.ErrCopyUnavailable
	}

	copyRecord.Retired = true
	s.copies[copyID] = copyRecord

	return nil
}

// Record persists a new active loan.
func (s *Store) Record(_ context.Context, loan lending.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loans[loan.ID] = loan
	s.loanOrder = append(s.loanOrder, loan.ID)

	return nil
}

// Return sets the return date of the loan and releases its copy. Both
// writes happen under one lock acquisition, so a concurrent reader never
// observes a returned loan with its copy still loaned, or vice versa.
func (s *Store) Return(_ context.Context, loanID uuid.UUID, returnedAt time.Time) (lending.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loan, found := s.loans[loanID]
	if !found {
		return lending.Loan{}, lending.ErrLoanNotFound
	}

	if loan.ReturnedAt != nil {
		return lending.Loan{}, lending.ErrLoanAlreadyReturned
	}

	at := returnedAt.UTC()
	loan.ReturnedAt = &at
	s.loans[loanID] = loan

	if copyRecord, copyFound := s.copies[loan.CopyID]; copyFound {
		copyRecord.Status = lending.CopyStatusFree
		s.copies[loan.CopyID] = copyRecord
	}

	return loan, nil
}

// LoanByID looks up a single loan.
func (s *Store) LoanByID(_ context.Context, loanID uuid.UUID) (lending.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loan, found := s.loans[loanID]
	if !found {
		return lending.Loan{}, lending.ErrLoanNotFound
	}

	return loan, nil
}

// ActiveLoans returns loans with no return date, oldest first.
func (s *Store) ActiveLoans(_ context.Context, borrowerID *uuid.UUID) ([]lending.Loan, error) {
	return s.collectLoans(borrowerID, true), nil
}

// AllLoans returns the full loan history, oldest first.
func (s *Store) AllLoans(_ context.Context, borrowerID *uuid.UUID) ([]lending.Loan, error) {
	return s.collectLoans(borrowerID, false), nil
}

func (s *Store) collectLoans(borrowerID *uuid.UUID, activeOnly bool) []lending.Loan {
	s.mu.Lock()
	defer s.mu.Unlock()

	loans := make([]lending.Loan, 0)

	for _, loanID := range s.loanOrder {
		loan := s.loans[loanID]

		if activeOnly && !loan.IsActive() {
			continue
		}

		if borrowerID != nil && loan.BorrowerID != *borrowerID {
			continue
		}

		loans = append(loans, loan)
	}

	return loans
}

// Apply creates or replaces the sanction record for the borrower.
func (s *Store) Apply(_ context.Context, sanction lending.Sanction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sanctions[sanction.BorrowerID] = sanction

	return nil
}

// InEffect reports whether an active, non-expired sanction blocks the
// borrower as of today. The expiration check is lazy; no sweep is required.
func (s *Store) InEffect(_ context.Context, borrowerID uuid.UUID, today time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sanction, found := s.sanctions[borrowerID]
	if !found {
		return false, nil
	}

	return sanction.IsInEffectAt(today), nil
}

// Remove deactivates the borrower's sanction record, if any.
func (s *Store) Remove(_ context.Context, borrowerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sanction, found := s.sanctions[borrowerID]
	if !found {
		return nil
	}

	sanction.Active = false
	s.sanctions[borrowerID] = sanction

	return nil
}

// SweepExpired deactivates all records whose expiration date has passed.
func (s *Store) SweepExpired(_ context.Context, today time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	swept := 0

	for borrowerID, sanction := range s.sanctions {
		if sanction.Active && !sanction.IsInEffectAt(today) {
			sanction.Active = false
			s.sanctions[borrowerID] = sanction
			swept++
		}
	}

	return swept, nil
}

// DaysRemaining returns the whole days until the borrower's sanction
// expires, or nil when the borrower has no sanction record.
func (s *Store) DaysRemaining(_ context.Context, borrowerID uuid.UUID, today time.Time) (*int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sanction, found := s.sanctions[borrowerID]
	if !found {
		return nil, nil
	}

	days := sanction.DaysRemainingAt(today)

	return &days, nil
}
