package postgresengine

import (
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/libraryops/lending-core-go/lending"
	"github.com/libraryops/lending-core-go/lending/postgresengine/internal/adapters"
)

// Option defines a functional option for configuring a LendingStore.
type Option func(*LendingStore) error

// WithTablePrefix sets a prefix for the copies, loans, and sanctions table
// names, so several deployments can share one database.
func WithTablePrefix(prefix string) Option {
	return func(ls *LendingStore) error {
		ls.tablePrefix = prefix
		return nil
	}
}

// WithLogger sets the logger for the LendingStore.
//
// Debug level: SQL statements with execution timing (development use)
// Info level: operation outcomes and durations (production-safe)
// Warn level: non-critical issues like cleanup failures
// Error level: failures that cause operation errors.
func WithLogger(logger lending.Logger) Option {
	return func(ls *LendingStore) error {
		ls.logger = logger
		return nil
	}
}

// NewLendingStoreFromPGXPool creates a new LendingStore using a pgx Pool
// with optional configuration.
func NewLendingStoreFromPGXPool(pool *pgxpool.Pool, options ...Option) (*LendingStore, error) {
	if pool == nil {
		return nil, lending.ErrNilStore
	}

	return newLendingStore(adapters.NewPGXAdapter(pool), options...)
}

// NewLendingStoreFromSQLDB creates a new LendingStore using a sql.DB with
// optional configuration.
func NewLendingStoreFromSQLDB(db *sql.DB, options ...Option) (*LendingStore, error) {
	if db == nil {
		return nil, lending.ErrNilStore
	}

	return newLendingStore(adapters.NewSQLAdapter(db), options...)
}

// NewLendingStoreFromSQLX creates a new LendingStore using a sqlx.DB with
// optional configuration.
func NewLendingStoreFromSQLX(db *sqlx.DB, options ...Option) (*LendingStore, error) {
	if db == nil {
		return nil, lending.ErrNilStore
	}

	return newLendingStore(adapters.NewSQLXAdapter(db), options...)
}

func newLendingStore(db adapters.DBAdapter, options ...Option) (*LendingStore, error) {
	ls := &LendingStore{db: db}

	for _, option := range options {
		if err := option(ls); err != nil {
			return nil, err
		}
	}

	return ls, nil
}
