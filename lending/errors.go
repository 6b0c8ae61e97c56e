package lending

import "errors"

// The error taxonomy of the lending core. All of these are recoverable at
// the caller; each maps to a specific response code at the REST boundary.
// Engines and the Service report them via errors.Is-compatible wrapping,
// never as raw storage errors.
var (
	// ErrCopyNotFound is returned when the referenced copy does not exist
	// or has been retired from circulation.
	ErrCopyNotFound = errors.New("copy not found")

	// ErrCopyUnavailable is returned when the copy is currently loaned,
	// i.e. another borrower holds it.
	ErrCopyUnavailable = errors.New("this copy is currently loaned")

	// ErrBorrowerNotFound is returned by boundary layers that can resolve
	// borrower identities; the core treats borrower IDs as opaque.
	ErrBorrowerNotFound = errors.New("borrower not found")

	// ErrBorrowerSanctioned is returned when an in-effect sanction blocks
	// the borrower from creating new loans.
	ErrBorrowerSanctioned = errors.New("borrower is currently sanctioned")

	// ErrLoanNotFound is returned when the referenced loan does not exist.
	ErrLoanNotFound = errors.New("loan not found")

	// ErrLoanAlreadyReturned is returned when a return is attempted on a
	// loan whose return date is already set. Unlike releasing a free copy,
	// this is an error: it signals a double-return bug upstream.
	ErrLoanAlreadyReturned = errors.New("loan has already been returned")

	// ErrTransientStorageConflict is returned when the storage engine lost
	// an optimistic-concurrency race that is worth retrying. The Service
	// retries it a bounded number of times before surfacing it.
	ErrTransientStorageConflict = errors.New("transient storage conflict")

	// ErrInvalidSanctionDuration is returned when a sanction is applied
	// with a non-positive duration.
	ErrInvalidSanctionDuration = errors.New("sanction duration must be positive")

	// ErrInvalidLoanPeriod is returned when a Service is configured with a
	// non-positive loan period.
	ErrInvalidLoanPeriod = errors.New("loan period must be positive")

	// ErrNilStore is returned by constructors when a nil engine or
	// database connection is supplied.
	ErrNilStore = errors.New("nil store or database connection supplied")
)
