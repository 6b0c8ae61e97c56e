// Package lending implements the core of the library lending workflow:
// reserving a physical copy for a borrower, recording and returning loans,
// classifying a loan's due-date status, and gating borrowers with
// time-bounded sanctions.
//
// The package defines the domain records (Copy, Loan, Sanction), the error
// taxonomy every caller is expected to branch on, the storage interfaces
// (CopyRegistry, LoanLedger, SanctionGate), and the Service that orchestrates
// them as atomic operations. Storage engines live in the memoryengine and
// postgresengine subpackages.
//
// The one correctness property everything here exists to guarantee: of N
// concurrent attempts to reserve the same free copy, exactly one succeeds.
// Engines make CopyRegistry.TryReserve a single atomic check-and-set, and
// the Service never bypasses it.
package lending
