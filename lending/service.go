package lending

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	logMsgReleaseAfterFailedRecord = "failed to release copy after loan write failed"
	logMsgLoanCreated              = "loan created"
	logMsgLoanReturned             = "loan returned"
	logMsgSanctionsSwept           = "expired sanctions swept"
	logAttrError                   = "error"
	logAttrCopyID                  = "copy_id"
	logAttrLoanID                  = "loan_id"
	logAttrBorrowerID              = "borrower_id"
	logAttrSweptCount              = "swept_count"
)

// Logger is the narrow logging interface consumed by the Service and the
// storage engines. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Service orchestrates the CopyRegistry, LoanLedger, and SanctionGate into
// the externally callable lending operations. Every operation is safe to
// invoke from concurrent request handlers; the engines provide the atomic
// steps and the Service never widens them.
type Service struct {
	registry       CopyRegistry
	ledger         LoanLedger
	gate           SanctionGate
	clock          func() time.Time
	loanPeriodDays int
	retryOptions   []RetryOption
	logger         Logger
}

// ServiceOption defines a functional option for configuring a Service.
type ServiceOption func(*Service) error

// WithClock sets the time source, used for defaulted loan dates, return
// dates, sanction checks, and due-date classification. Tests inject fixed
// clocks here; the default is time.Now.
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *Service) error {
		s.clock = clock
		return nil
	}
}

// WithLoanPeriodDays sets the fixed loan period used for due-date
// classification. The default is DefaultLoanPeriodDays.
func WithLoanPeriodDays(days int) ServiceOption {
	return func(s *Service) error {
		if days <= 0 {
			return ErrInvalidLoanPeriod
		}

		s.loanPeriodDays = days

		return nil
	}
}

// WithRetryOptions sets the retry configuration used when an engine reports
// ErrTransientStorageConflict.
func WithRetryOptions(opts ...RetryOption) ServiceOption {
	return func(s *Service) error {
		s.retryOptions = opts
		return nil
	}
}

// WithLogger sets the logger for the Service.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) error {
		s.logger = logger
		return nil
	}
}

// NewService creates a Service on top of the given engines with optional
// configuration.
func NewService(registry CopyRegistry, ledger LoanLedger, gate SanctionGate, options ...ServiceOption) (*Service, error) {
	if registry == nil || ledger == nil || gate == nil {
		return nil, ErrNilStore
	}

	s := &Service{
		registry:       registry,
		ledger:         ledger,
		gate:           gate,
		clock:          time.Now,
		loanPeriodDays: DefaultLoanPeriodDays,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// CreateLoan reserves the copy for the borrower and records the loan.
//
// The workflow is: sanction gate -> TryReserve -> Record. A reservation
// whose loan write fails is compensated by releasing the copy, so the two
// steps form one logical transaction. The zero loanedAt defaults to the
// current date. Transient storage conflicts are retried a bounded number of
// times before being surfaced.
func (s *Service) CreateLoan(ctx context.Context, borrowerID uuid.UUID, copyID uuid.UUID, loanedAt time.Time) (Loan, error) {
	if loanedAt.IsZero() {
		loanedAt = s.clock()
	}

	var loan Loan

	err := retryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		created, execErr := s.createLoanOnce(retryCtx, borrowerID, copyID, loanedAt)
		if execErr != nil {
			return execErr
		}

		loan = created

		return nil
	}, s.retryOptions...)

	if err != nil {
		return Loan{}, err
	}

	s.logOperation(logMsgLoanCreated,
		logAttrLoanID, loan.ID.String(),
		logAttrCopyID, copyID.String(),
		logAttrBorrowerID, borrowerID.String(),
	)

	return loan, nil
}

// createLoanOnce contains the loan creation logic that can be retried.
func (s *Service) createLoanOnce(ctx context.Context, borrowerID uuid.UUID, copyID uuid.UUID, loanedAt time.Time) (Loan, error) {
	blocked, gateErr := s.gate.InEffect(ctx, borrowerID, s.clock())
	if gateErr != nil {
		return Loan{}, gateErr
	}

	if blocked {
		return Loan{}, ErrBorrowerSanctioned
	}

	if reserveErr := s.registry.TryReserve(ctx, copyID); reserveErr != nil {
		return Loan{}, reserveErr
	}

	loan := BuildLoan(copyID, borrowerID, loanedAt)

	if recordErr := s.ledger.Record(ctx, loan); recordErr != nil {
		// The reservation must not outlive a failed loan write.
		if releaseErr := s.registry.Release(ctx, copyID); releaseErr != nil {
			if s.logger != nil {
				s.logger.Warn(logMsgReleaseAfterFailedRecord,
					logAttrError, releaseErr.Error(),
					logAttrCopyID, copyID.String(),
				)
			}
		}

		return Loan{}, recordErr
	}

	return loan, nil
}

// ReturnLoan sets the return date of the loan and releases its copy in one
// atomic step. A second return of the same loan fails with
// ErrLoanAlreadyReturned.
func (s *Service) ReturnLoan(ctx context.Context, loanID uuid.UUID) (Loan, error) {
	var loan Loan

	err := retryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		returned, execErr := s.ledger.Return(retryCtx, loanID, s.clock())
		if execErr != nil {
			return execErr
		}

		loan = returned

		return nil
	}, s.retryOptions...)

	if err != nil {
		return Loan{}, err
	}

	s.logOperation(logMsgLoanReturned,
		logAttrLoanID, loan.ID.String(),
		logAttrCopyID, loan.CopyID.String(),
	)

	return loan, nil
}

// ActiveLoans returns the loans with no return date, classified against the
// current date, filtered to one borrower when borrowerID is non-nil.
func (s *Service) ActiveLoans(ctx context.Context, borrowerID *uuid.UUID) ([]LoanView, error) {
	loans, err := s.ledger.ActiveLoans(ctx, borrowerID)
	if err != nil {
		return nil, err
	}

	return s.classifyAll(loans), nil
}

// AllLoans returns the full loan history, filtered to one borrower when
// borrowerID is non-nil.
func (s *Service) AllLoans(ctx context.Context, borrowerID *uuid.UUID) ([]Loan, error) {
	return s.ledger.AllLoans(ctx, borrowerID)
}

// OverdueLoans returns the active loans whose loan-period deadline has
// passed, classified against the current date.
func (s *Service) OverdueLoans(ctx context.Context) ([]LoanView, error) {
	views, err := s.ActiveLoans(ctx, nil)
	if err != nil {
		return nil, err
	}

	overdue := make([]LoanView, 0)

	for _, view := range views {
		if view.Due.Band == BandOverdue {
			overdue = append(overdue, view)
		}
	}

	return overdue, nil
}

// LoanByID looks up a single loan, classified against the current date.
func (s *Service) LoanByID(ctx context.Context, loanID uuid.UUID) (LoanView, error) {
	loan, err := s.ledger.LoanByID(ctx, loanID)
	if err != nil {
		return LoanView{}, err
	}

	return s.classify(loan), nil
}

// AddCopy registers a new free copy for the given catalog item.
func (s *Service) AddCopy(ctx context.Context, bookID uuid.UUID, shelfLocation string) (Copy, error) {
	copyRecord := BuildCopy(bookID, shelfLocation, s.clock())

	if err := s.registry.Add(ctx, copyRecord); err != nil {
		return Copy{}, err
	}

	return copyRecord, nil
}

// RetireCopy soft-removes a copy from circulation.
func (s *Service) RetireCopy(ctx context.Context, copyID uuid.UUID) error {
	return s.registry.Retire(ctx, copyID)
}

// CopyStatus returns the availability state of a copy.
func (s *Service) CopyStatus(ctx context.Context, copyID uuid.UUID) (CopyStatus, error) {
	return s.registry.StatusOf(ctx, copyID)
}

// ApplySanction creates or replaces the sanction record for the borrower,
// expiring durationDays whole days from today.
func (s *Service) ApplySanction(ctx context.Context, borrowerID uuid.UUID, reason string, durationDays int, issuedBy uuid.UUID) (Sanction, error) {
	if durationDays <= 0 {
		return Sanction{}, ErrInvalidSanctionDuration
	}

	sanction := BuildSanction(borrowerID, reason, durationDays, issuedBy, s.clock())

	if err := s.gate.Apply(ctx, sanction); err != nil {
		return Sanction{}, err
	}

	return sanction, nil
}

// RemoveSanction deactivates the borrower's sanction record, if any.
func (s *Service) RemoveSanction(ctx context.Context, borrowerID uuid.UUID) error {
	return s.gate.Remove(ctx, borrowerID)
}

// SanctionDaysRemaining returns the whole days until the borrower's
// sanction expires, or nil when the borrower has no sanction record.
func (s *Service) SanctionDaysRemaining(ctx context.Context, borrowerID uuid.UUID) (*int, error) {
	return s.gate.DaysRemaining(ctx, borrowerID, s.clock())
}

// SweepExpiredSanctions deactivates all sanction records whose expiration
// date has passed and returns how many were deactivated. Intended to run
// periodically; InEffect does not depend on it.
func (s *Service) SweepExpiredSanctions(ctx context.Context) (int, error) {
	swept, err := s.gate.SweepExpired(ctx, s.clock())
	if err != nil {
		return 0, err
	}

	if swept > 0 {
		s.logOperation(logMsgSanctionsSwept, logAttrSweptCount, swept)
	}

	return swept, nil
}

func (s *Service) classify(loan Loan) LoanView {
	return LoanView{
		Loan: loan,
		Due:  Classify(loan.LoanedAt, s.clock(), s.loanPeriodDays),
	}
}

func (s *Service) classifyAll(loans []Loan) []LoanView {
	views := make([]LoanView, 0, len(loans))

	for _, loan := range loans {
		views = append(views, s.classify(loan))
	}

	return views
}

// logOperation logs operational information at info level if the logger is configured.
func (s *Service) logOperation(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}
