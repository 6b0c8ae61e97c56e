// Package postgresengine provides the PostgreSQL-backed lending store.
//
// The store implements lending.CopyRegistry, lending.LoanLedger, and
// lending.SanctionGate on three tables (copies, loans, sanctions) and works
// with pgxpool.Pool, sql.DB, or sqlx.DB through a database adapter.
//
// Concurrency control never relies on read-then-write sequences. Reserving
// a copy is one conditional UPDATE whose rows-affected count decides the
// outcome, and returning a loan couples the return-date write with the copy
// release in a single CTE statement, so the two writes are atomic with
// respect to concurrent readers.
package postgresengine
