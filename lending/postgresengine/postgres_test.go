package postgresengine_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libraryops/lending-core-go/lending"
	"github.com/libraryops/lending-core-go/lending/postgresengine"
)

const (
	testDSNEnvVar   = "LC_TEST_POSTGRES_DSN"
	testTablePrefix = "lending_test_"
)

var testSchemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS lending_test_copies (
		id uuid PRIMARY KEY,
		book_id uuid NOT NULL,
		shelf_location text NOT NULL,
		status text NOT NULL,
		retired boolean NOT NULL DEFAULT false,
		created_at timestamptz NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS lending_test_loans (
		id uuid PRIMARY KEY,
		copy_id uuid NOT NULL,
		borrower_id uuid NOT NULL,
		loaned_at timestamptz NOT NULL,
		returned_at timestamptz
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS lending_test_loans_active_copy_idx
		ON lending_test_loans (copy_id) WHERE returned_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS lending_test_sanctions (
		borrower_id uuid PRIMARY KEY,
		reason text NOT NULL,
		issued_by uuid NOT NULL,
		applied_at timestamptz NOT NULL,
		expires_at timestamptz NOT NULL,
		active boolean NOT NULL
	)`,
	`TRUNCATE lending_test_copies, lending_test_loans, lending_test_sanctions`,
}

// setupStore connects to the database named by LC_TEST_POSTGRES_DSN, creates
// a fresh prefixed schema, and returns a store on it. Tests are skipped when
// the variable is unset.
func setupStore(t *testing.T) (*postgresengine.LendingStore, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv(testDSNEnvVar)
	if dsn == "" {
		t.Skipf("set %s to run postgres engine tests", testDSNEnvVar)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err, "error connecting to DB pool in test setup")
	t.Cleanup(pool.Close)

	for _, statement := range testSchemaStatements {
		_, execErr := pool.Exec(ctx, statement)
		require.NoError(t, execErr, "error preparing test schema")
	}

	store, err := postgresengine.NewLendingStoreFromPGXPool(pool, postgresengine.WithTablePrefix(testTablePrefix))
	require.NoError(t, err)

	return store, pool
}

func Test_TryReserve_ExactlyOneWinner_UnderConcurrency(t *testing.T) {
	// arrange
	ctx := context.Background()
	store, _ := setupStore(t)
	copyRecord := givenStoredCopy(t, ctx, store)

	const workers = 16

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)

	// act
	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := store.TryReserve(ctx, copyRecord.ID); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	// assert
	assert.Equal(t, 1, successes)

	status, statusErr := store.StatusOf(ctx, copyRecord.ID)
	assert.NoError(t, statusErr)
	assert.Equal(t, lending.CopyStatusLoaned, status)
}

func Test_TryReserve_ErrorTaxonomy(t *testing.T) {
	// arrange
	ctx := context.Background()
	store, _ := setupStore(t)
	copyRecord := givenStoredCopy(t, ctx, store)

	assert.NoError(t, store.TryReserve(ctx, copyRecord.ID))

	// act + assert
	assert.ErrorIs(t, store.TryReserve(ctx, copyRecord.ID), lending.ErrCopyUnavailable)
	assert.ErrorIs(t, store.TryReserve(ctx, uuid.New()), lending.ErrCopyNotFound)
}

func Test_ReturnLoan_RoundTrip(t *testing.T) {
	// arrange
	ctx := context.Background()
	store, _ := setupStore(t)
	copyRecord := givenStoredCopy(t, ctx, store)
	loan := givenActiveLoan(t, ctx, store, copyRecord.ID)

	returnedAt := time.Now().UTC()

	// act
	returned, returnErr := store.Return(ctx, loan.ID, returnedAt)

	// assert
	assert.NoError(t, returnErr)
	assert.NotNil(t, returned.ReturnedAt)
	assert.False(t, returned.IsActive())

	status, statusErr := store.StatusOf(ctx, copyRecord.ID)
	assert.NoError(t, statusErr)
	assert.Equal(t, lending.CopyStatusFree, status)

	// act - returning again must be rejected
	_, secondErr := store.Return(ctx, loan.ID, time.Now().UTC())

	// assert
	assert.ErrorIs(t, secondErr, lending.ErrLoanAlreadyReturned)
}

func Test_Return_Fails_WhenLoanUnknown(t *testing.T) {
	// arrange
	ctx := context.Background()
	store, _ := setupStore(t)

	// act
	_, err := store.Return(ctx, uuid.New(), time.Now().UTC())

	// assert
	assert.ErrorIs(t, err, lending.ErrLoanNotFound)
}

func Test_Record_Fails_WhenCopyHasActiveLoan(t *testing.T) {
	// arrange
	ctx := context.Background()
	store, _ := setupStore(t)
	copyRecord := givenStoredCopy(t, ctx, store)
	givenActiveLoan(t, ctx, store, copyRecord.ID)

	// A second active loan for the same copy violates the partial unique
	// index regardless of the registry state.
	duplicate := lending.BuildLoan(copyRecord.ID, uuid.New(), time.Now().UTC())

	// act
	err := store.Record(ctx, duplicate)

	// assert
	assert.ErrorIs(t, err, lending.ErrCopyUnavailable)
}

func Test_Release_IsIdempotent(t *testing.T) {
	// arrange
	ctx := context.Background()
	store, _ := setupStore(t)
	copyRecord := givenStoredCopy(t, ctx, store)

	assert.NoError(t, store.TryReserve(ctx, copyRecord.ID))

	// act + assert
	assert.NoError(t, store.Release(ctx, copyRecord.ID))
	assert.NoError(t, store.Release(ctx, copyRecord.ID))
	assert.ErrorIs(t, store.Release(ctx, uuid.New()), lending.ErrCopyNotFound)
}

func Test_Retire_Fails_WhileCopyIsLoaned(t *testing.T) {
	// arrange
	ctx := context.Background()
	store, _ := setupStore(t)
	copyRecord := givenStoredCopy(t, ctx, store)

	assert.NoError(t, store.TryReserve(ctx, copyRecord.ID))

	// act + assert
	assert.ErrorIs(t, store.Retire(ctx, copyRecord.ID), lending.ErrCopyUnavailable)

	assert.NoError(t, store.Release(ctx, copyRecord.ID))
	assert.NoError(t, store.Retire(ctx, copyRecord.ID))
	assert.ErrorIs(t, store.TryReserve(ctx, copyRecord.ID), lending.ErrCopyNotFound)
}

func Test_LoanQueries_FilterAndOrder(t *testing.T) {
	// arrange
	ctx := context.Background()
	store, _ := setupStore(t)

	borrowerID := uuid.New()
	otherBorrowerID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	firstCopy := givenStoredCopy(t, ctx, store)
	secondCopy := givenStoredCopy(t, ctx, store)

	firstLoan := lending.BuildLoan(firstCopy.ID, borrowerID, now.AddDate(0, 0, -2))
	secondLoan := lending.BuildLoan(secondCopy.ID, otherBorrowerID, now.AddDate(0, 0, -1))

	for _, loan := range []lending.Loan{firstLoan, secondLoan} {
		assert.NoError(t, store.TryReserve(ctx, loan.CopyID))
		assert.NoError(t, store.Record(ctx, loan))
	}

	_, returnErr := store.Return(ctx, firstLoan.ID, now)
	assert.NoError(t, returnErr)

	// act
	active, activeErr := store.ActiveLoans(ctx, nil)
	all, allErr := store.AllLoans(ctx, &borrowerID)
	byID, byIDErr := store.LoanByID(ctx, firstLoan.ID)

	// assert
	assert.NoError(t, activeErr)
	assert.Len(t, active, 1)
	assert.Equal(t, secondLoan.ID, active[0].ID)

	assert.NoError(t, allErr)
	assert.Len(t, all, 1)
	assert.Equal(t, firstLoan.ID, all[0].ID)

	assert.NoError(t, byIDErr)
	assert.False(t, byID.IsActive())

	_, notFoundErr := store.LoanByID(ctx, uuid.New())
	assert.ErrorIs(t, notFoundErr, lending.ErrLoanNotFound)
}

func Test_Sanctions_UpsertSweepAndRemove(t *testing.T) {
	// arrange
	ctx := context.Background()
	store, _ := setupStore(t)

	borrowerID := uuid.New()
	appliedAt := time.Now().UTC().Truncate(time.Microsecond)

	short := lending.BuildSanction(borrowerID, "late returns", 2, uuid.New(), appliedAt)
	long := lending.BuildSanction(borrowerID, "lost book", 90, uuid.New(), appliedAt)

	assert.NoError(t, store.Apply(ctx, short))
	assert.NoError(t, store.Apply(ctx, long))

	// act + assert - the upsert replaced the shorter record
	blocked, inEffectErr := store.InEffect(ctx, borrowerID, appliedAt.AddDate(0, 0, 10))
	assert.NoError(t, inEffectErr)
	assert.True(t, blocked)

	days, daysErr := store.DaysRemaining(ctx, borrowerID, appliedAt)
	assert.NoError(t, daysErr)
	assert.NotNil(t, days)
	assert.Equal(t, 90, *days)

	// act + assert - sweep ignores records that are still in effect
	swept, sweepErr := store.SweepExpired(ctx, appliedAt.AddDate(0, 0, 10))
	assert.NoError(t, sweepErr)
	assert.Equal(t, 0, swept)

	swept, sweepErr = store.SweepExpired(ctx, appliedAt.AddDate(0, 0, 91))
	assert.NoError(t, sweepErr)
	assert.Equal(t, 1, swept)

	blocked, inEffectErr = store.InEffect(ctx, borrowerID, appliedAt.AddDate(0, 0, 10))
	assert.NoError(t, inEffectErr)
	assert.False(t, blocked)

	// act + assert - remove is a no-op once deactivated
	assert.NoError(t, store.Remove(ctx, borrowerID))

	missing, missingErr := store.DaysRemaining(ctx, uuid.New(), appliedAt)
	assert.NoError(t, missingErr)
	assert.Nil(t, missing)
}

func Test_NewLendingStore_Fails_WithoutConnection(t *testing.T) {
	// act
	_, poolErr := postgresengine.NewLendingStoreFromPGXPool(nil)
	_, sqlErr := postgresengine.NewLendingStoreFromSQLDB(nil)
	_, sqlxErr := postgresengine.NewLendingStoreFromSQLX(nil)

	// assert
	assert.ErrorIs(t, poolErr, lending.ErrNilStore)
	assert.ErrorIs(t, sqlErr, lending.ErrNilStore)
	assert.ErrorIs(t, sqlxErr, lending.ErrNilStore)
}

func givenStoredCopy(t *testing.T, ctx context.Context, store *postgresengine.LendingStore) lending.Copy {
	t.Helper()

	copyRecord := lending.BuildCopy(uuid.New(), "C-03-9", time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, store.Add(ctx, copyRecord))

	return copyRecord
}

func givenActiveLoan(t *testing.T, ctx context.Context, store *postgresengine.LendingStore, copyID uuid.UUID) lending.Loan {
	t.Helper()

	require.NoError(t, store.TryReserve(ctx, copyID))

	loan := lending.BuildLoan(copyID, uuid.New(), time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, store.Record(ctx, loan))

	return loan
}
