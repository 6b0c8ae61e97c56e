// Package adapters provides database adapter implementations for the
// PostgreSQL lending store.
//
// The adapter pattern lets the store work with any of the supported
// PostgreSQL client libraries: pgxpool.Pool, sql.DB, and sqlx.DB. All
// adapters provide equivalent functionality through a common DBAdapter
// interface for query execution and result handling.
package adapters
