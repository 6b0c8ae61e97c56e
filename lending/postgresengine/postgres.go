package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/libraryops/lending-core-go/lending"
	"github.com/libraryops/lending-core-go/lending/postgresengine/internal/adapters"
)

const (
	tableCopies    = "copies"
	tableLoans     = "loans"
	tableSanctions = "sanctions"

	colID            = "id"
	colBookID        = "book_id"
	colShelfLocation = "shelf_location"
	colStatus        = "status"
	colRetired       = "retired"
	colCreatedAt     = "created_at"
	colCopyID        = "copy_id"
	colBorrowerID    = "borrower_id"
	colLoanedAt      = "loaned_at"
	colReturnedAt    = "returned_at"
	colReason        = "reason"
	colIssuedBy      = "issued_by"
	colAppliedAt     = "applied_at"
	colExpiresAt     = "expires_at"
	colActive        = "active"

	cteReturned     = "returned"
	dialectPostgres = "postgres"
	castText        = "text"

	pgCodeSerializationFailure = "40001"
	pgCodeDeadlockDetected     = "40P01"
	pgCodeUniqueViolation      = "23505"

	logMsgBuildQueryFailed = "failed to build sql statement"
	logMsgDBQueryFailed    = "database query execution failed"
	logMsgDBExecFailed     = "database execution failed"
	logMsgCloseRowsFailed  = "failed to close database rows"
	logMsgScanRowFailed    = "failed to scan database row"
	logMsgParseRowFailed   = "failed to parse database row"
	logMsgSQLExecuted      = "executed sql for: "
	logMsgOperation        = "lending store operation: "
	logAttrError           = "error"
	logAttrQuery           = "query"
	logAttrDurationMS      = "duration_ms"
	logAttrRowsAffected    = "rows_affected"
	logAttrLoanCount       = "loan_count"
	logActionReserve       = "reserve copy"
	logActionRelease       = "release copy"
	logActionRetire        = "retire copy"
	logActionAddCopy       = "add copy"
	logActionRecordLoan    = "record loan"
	logActionReturnLoan    = "return loan"
	logActionQueryLoans    = "query loans"
	logActionSanction      = "sanction"
)

var errQueryBuildFailed = errors.New("building sql statement failed")

// LendingStore is the PostgreSQL-backed lending store. It implements
// lending.CopyRegistry, lending.LoanLedger, and lending.SanctionGate on one
// set of tables, which lets Return couple the loan write and the copy
// release into a single atomic statement.
type LendingStore struct {
	db          adapters.DBAdapter
	tablePrefix string
	logger      lending.Logger
}

// Add registers a new copy.
func (ls *LendingStore) Add(ctx context.Context, copy lending.Copy) error {
	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(ls.copiesTable()).
		Rows(goqu.Record{
			colID:            copy.ID.String(),
			colBookID:        copy.BookID.String(),
			colShelfLocation: copy.ShelfLocation,
			colStatus:        string(copy.Status),
			colRetired:       copy.Retired,
			colCreatedAt:     copy.CreatedAt,
		})

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return ls.buildQueryError(toSQLErr)
	}

	_, err := ls.execStatement(ctx, sqlQuery, logActionAddCopy)

	return err
}

// TryReserve atomically transitions the copy from free to loaned.
//
// The check and the write are one conditional UPDATE; the rows-affected
// count decides the outcome, so two concurrent callers can never both
// observe a free copy and both succeed. When the update matches no row, a
// follow-up probe only distinguishes which error to report.
func (ls *LendingStore) TryReserve(ctx context.Context, copyID uuid.UUID) error {
	updateStmt := goqu.Dialect(dialectPostgres).
		Update(ls.copiesTable()).
		Set(goqu.Record{colStatus: string(lending.CopyStatusLoaned)}).
		Where(
			goqu.C(colID).Eq(copyID.String()),
			goqu.C(colStatus).Eq(string(lending.CopyStatusFree)),
			goqu.C(colRetired).IsFalse(),
		)

	sqlQuery, _, toSQLErr := updateStmt.ToSQL()
	if toSQLErr != nil {
		return ls.buildQueryError(toSQLErr)
	}

	rowsAffected, execErr := ls.execStatement(ctx, sqlQuery, logActionReserve)
	if execErr != nil {
		return execErr
	}

	if rowsAffected == 1 {
		return nil
	}

	return ls.probeReserveFailure(ctx, copyID)
}

// probeReserveFailure resolves why a conditional reserve matched no row.
func (ls *LendingStore) probeReserveFailure(ctx context.Context, copyID uuid.UUID) error {
	status, retired, probeErr := ls.copyStatusProbe(ctx, copyID)
	if probeErr != nil {
		return probeErr
	}

	if retired {
		return lending.ErrCopyNotFound
	}

	if status == lending.CopyStatusLoaned {
		return lending.ErrCopyUnavailable
	}

	// The copy looked free by the time the probe ran, so the conditional
	// update lost a race that has since been undone. Worth retrying.
	return lending.ErrTransientStorageConflict
}

// Release transitions the copy from loaned back to free. Releasing an
// already-free copy matches the row anyway and stays a no-op success.
func (ls *LendingStore) Release(ctx context.Context, copyID uuid.UUID) error {
	updateStmt := goqu.Dialect(dialectPostgres).
		Update(ls.copiesTable()).
		Set(goqu.Record{colStatus: string(lending.CopyStatusFree)}).
		Where(goqu.C(colID).Eq(copyID.String()))

	sqlQuery, _, toSQLErr := updateStmt.ToSQL()
	if toSQLErr != nil {
		return ls.buildQueryError(toSQLErr)
	}

	rowsAffected, execErr := ls.execStatement(ctx, sqlQuery, logActionRelease)
	if execErr != nil {
		return execErr
	}

	if rowsAffected == 0 {
		return lending.ErrCopyNotFound
	}

	return nil
}

// StatusOf returns the availability state of a copy.
func (ls *LendingStore) StatusOf(ctx context.Context, copyID uuid.UUID) (lending.CopyStatus, error) {
	status, _, err := ls.copyStatusProbe(ctx, copyID)

	return status, err
}

// Retire soft-removes the copy from circulation; a copy out on loan cannot
// be retired.
func (ls *LendingStore) Retire(ctx context.Context, copyID uuid.UUID) error {
	updateStmt := goqu.Dialect(dialectPostgres).
		Update(ls.copiesTable()).
		Set(goqu.Record{colRetired: true}).
		Where(
			goqu.C(colID).Eq(copyID.String()),
			goqu.C(colStatus).Neq(string(lending.CopyStatusLoaned)),
		)

	sqlQuery, _, toSQLErr := updateStmt.ToSQL()
	if toSQLErr != nil {
		return ls.buildQueryError(toSQLErr)
	}

	rowsAffected, execErr := ls.execStatement(ctx, sqlQuery, logActionRetire)
	if execErr != nil {
		return execErr
	}

	if rowsAffected == 1 {
		return nil
	}

	status, _, probeErr := ls.copyStatusProbe(ctx, copyID)
	if probeErr != nil {
		return probeErr
	}

	if status == lending.CopyStatusLoaned {
		return lending.ErrCopyUnavailable
	}

	return nil // retired concurrently, same outcome
}

// Record persists a new active loan. A partial unique index on the copy of
// active loans backs the reservation invariant; a violation maps to
// lending.ErrCopyUnavailable, never to a raw storage error.
func (ls *LendingStore) Record(ctx context.Context, loan lending.Loan) error {
	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(ls.loansTable()).
		Rows(goqu.Record{
			colID:         loan.ID.String(),
			colCopyID:     loan.CopyID.String(),
			colBorrowerID: loan.BorrowerID.String(),
			colLoanedAt:   loan.LoanedAt,
		})

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return ls.buildQueryError(toSQLErr)
	}

	_, execErr := ls.execStatement(ctx, sqlQuery, logActionRecordLoan)

	return execErr
}

// Return sets the return date of the loan and releases its copy.
//
// Both writes happen in one CTE statement: the loan update is guarded on
// the return date still being null and feeds the copy release, so a
// concurrent reader never observes a returned loan with its copy still
// loaned, or vice versa. When the statement affects no row, a follow-up
// probe only distinguishes which error to report.
func (ls *LendingStore) Return(ctx context.Context, loanID uuid.UUID, returnedAt time.Time) (lending.Loan, error) {
	builder := goqu.Dialect(dialectPostgres)

	returnLoanSQL, _, loanSQLErr := builder.
		Update(ls.loansTable()).
		Set(goqu.Record{colReturnedAt: returnedAt.UTC()}).
		Where(
			goqu.C(colID).Eq(loanID.String()),
			goqu.C(colReturnedAt).IsNull(),
		).
		Returning(colCopyID).
		ToSQL()
	if loanSQLErr != nil {
		return lending.Loan{}, ls.buildQueryError(loanSQLErr)
	}

	releaseCopySQL, _, copySQLErr := builder.
		Update(ls.copiesTable()).
		Set(goqu.Record{colStatus: string(lending.CopyStatusFree)}).
		Where(goqu.C(colID).In(builder.From(cteReturned).Select(colCopyID))).
		ToSQL()
	if copySQLErr != nil {
		return lending.Loan{}, ls.buildQueryError(copySQLErr)
	}

	sqlQuery := fmt.Sprintf("WITH %s AS (%s) %s", cteReturned, returnLoanSQL, releaseCopySQL)

	rowsAffected, execErr := ls.execStatement(ctx, sqlQuery, logActionReturnLoan)
	if execErr != nil {
		return lending.Loan{}, execErr
	}

	if rowsAffected == 0 {
		loan, probeErr := ls.LoanByID(ctx, loanID)
		if probeErr != nil {
			return lending.Loan{}, probeErr // loan not found
		}

		if !loan.IsActive() {
			return lending.Loan{}, lending.ErrLoanAlreadyReturned
		}

		// Active loan but no copy row was matched; either the copy record
		// vanished or the statement lost a race. Worth retrying.
		return lending.Loan{}, lending.ErrTransientStorageConflict
	}

	return ls.LoanByID(ctx, loanID)
}

// LoanByID looks up a single loan.
func (ls *LendingStore) LoanByID(ctx context.Context, loanID uuid.UUID) (lending.Loan, error) {
	loans, err := ls.queryLoans(ctx, goqu.C(colID).Eq(loanID.String()))
	if err != nil {
		return lending.Loan{}, err
	}

	if len(loans) == 0 {
		return lending.Loan{}, lending.ErrLoanNotFound
	}

	return loans[0], nil
}

// ActiveLoans returns loans with no return date, oldest first.
func (ls *LendingStore) ActiveLoans(ctx context.Context, borrowerID *uuid.UUID) ([]lending.Loan, error) {
	conditions := []goqu.Expression{goqu.C(colReturnedAt).IsNull()}

	if borrowerID != nil {
		conditions = append(conditions, goqu.C(colBorrowerID).Eq(borrowerID.String()))
	}

	return ls.queryLoans(ctx, conditions...)
}

// AllLoans returns the full loan history, oldest first.
func (ls *LendingStore) AllLoans(ctx context.Context, borrowerID *uuid.UUID) ([]lending.Loan, error) {
	conditions := make([]goqu.Expression, 0)

	if borrowerID != nil {
		conditions = append(conditions, goqu.C(colBorrowerID).Eq(borrowerID.String()))
	}

	return ls.queryLoans(ctx, conditions...)
}

// Apply creates or replaces the sanction record for the borrower with one
// upsert statement.
func (ls *LendingStore) Apply(ctx context.Context, sanction lending.Sanction) error {
	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(ls.sanctionsTable()).
		Rows(goqu.Record{
			colBorrowerID: sanction.BorrowerID.String(),
			colReason:     sanction.Reason,
			colIssuedBy:   sanction.IssuedBy.String(),
			colAppliedAt:  sanction.AppliedAt,
			colExpiresAt:  sanction.ExpiresAt,
			colActive:     sanction.Active,
		}).
		OnConflict(goqu.DoUpdate(colBorrowerID, goqu.Record{
			colReason:    sanction.Reason,
			colIssuedBy:  sanction.IssuedBy.String(),
			colAppliedAt: sanction.AppliedAt,
			colExpiresAt: sanction.ExpiresAt,
			colActive:    sanction.Active,
		}))

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return ls.buildQueryError(toSQLErr)
	}

	_, execErr := ls.execStatement(ctx, sqlQuery, logActionSanction)

	return execErr
}

// InEffect reports whether an active, non-expired sanction blocks the
// borrower as of today. The expiration check is lazy; no sweep is required.
func (ls *LendingStore) InEffect(ctx context.Context, borrowerID uuid.UUID, today time.Time) (bool, error) {
	sanction, found, err := ls.sanctionByBorrower(ctx, borrowerID)
	if err != nil {
		return false, err
	}

	if !found {
		return false, nil
	}

	return sanction.IsInEffectAt(today), nil
}

// Remove deactivates the borrower's sanction record, if any.
func (ls *LendingStore) Remove(ctx context.Context, borrowerID uuid.UUID) error {
	updateStmt := goqu.Dialect(dialectPostgres).
		Update(ls.sanctionsTable()).
		Set(goqu.Record{colActive: false}).
		Where(goqu.C(colBorrowerID).Eq(borrowerID.String()))

	sqlQuery, _, toSQLErr := updateStmt.ToSQL()
	if toSQLErr != nil {
		return ls.buildQueryError(toSQLErr)
	}

	_, execErr := ls.execStatement(ctx, sqlQuery, logActionSanction)

	return execErr
}

// SweepExpired deactivates all records whose expiration date has passed as
// of today.
func (ls *LendingStore) SweepExpired(ctx context.Context, today time.Time) (int, error) {
	u := today.UTC()
	cutoff := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)

	updateStmt := goqu.Dialect(dialectPostgres).
		Update(ls.sanctionsTable()).
		Set(goqu.Record{colActive: false}).
		Where(
			goqu.C(colActive).IsTrue(),
			goqu.C(colExpiresAt).Lt(cutoff),
		)

	sqlQuery, _, toSQLErr := updateStmt.ToSQL()
	if toSQLErr != nil {
		return 0, ls.buildQueryError(toSQLErr)
	}

	rowsAffected, execErr := ls.execStatement(ctx, sqlQuery, logActionSanction)
	if execErr != nil {
		return 0, execErr
	}

	return int(rowsAffected), nil
}

// DaysRemaining returns the whole days until the borrower's sanction
// expires, or nil when the borrower has no sanction record.
func (ls *LendingStore) DaysRemaining(ctx context.Context, borrowerID uuid.UUID, today time.Time) (*int, error) {
	sanction, found, err := ls.sanctionByBorrower(ctx, borrowerID)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	days := sanction.DaysRemainingAt(today)

	return &days, nil
}

// queryLoans loads loans matching the given conditions, oldest first.
func (ls *LendingStore) queryLoans(ctx context.Context, conditions ...goqu.Expression) ([]lending.Loan, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(ls.loansTable()).
		Select(
			goqu.Cast(goqu.I(colID), castText),
			goqu.Cast(goqu.I(colCopyID), castText),
			goqu.Cast(goqu.I(colBorrowerID), castText),
			goqu.I(colLoanedAt),
			goqu.I(colReturnedAt),
		).
		Order(goqu.I(colLoanedAt).Asc())

	if len(conditions) > 0 {
		selectStmt = selectStmt.Where(goqu.And(conditions...))
	}

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return nil, ls.buildQueryError(toSQLErr)
	}

	rows, queryErr := ls.executeQuery(ctx, sqlQuery, logActionQueryLoans)
	if queryErr != nil {
		return nil, queryErr
	}
	defer ls.closeRows(rows)

	loans := make([]lending.Loan, 0)

	for rows.Next() {
		var (
			loanIDText     string
			copyIDText     string
			borrowerIDText string
			loanedAt       time.Time
			returnedAt     sql.NullTime
		)

		if scanErr := rows.Scan(&loanIDText, &copyIDText, &borrowerIDText, &loanedAt, &returnedAt); scanErr != nil {
			ls.logError(logMsgScanRowFailed, logAttrError, scanErr.Error())
			return nil, errors.Join(errQueryBuildFailed, scanErr)
		}

		loan, parseErr := buildLoanFromRow(loanIDText, copyIDText, borrowerIDText, loanedAt, returnedAt)
		if parseErr != nil {
			ls.logError(logMsgParseRowFailed, logAttrError, parseErr.Error())
			return nil, parseErr
		}

		loans = append(loans, loan)
	}

	ls.logOperation(logMsgOperation+logActionQueryLoans, logAttrLoanCount, len(loans))

	return loans, nil
}

// copyStatusProbe reads the status and retired flag of a copy.
func (ls *LendingStore) copyStatusProbe(ctx context.Context, copyID uuid.UUID) (lending.CopyStatus, bool, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(ls.copiesTable()).
		Select(goqu.I(colStatus), goqu.I(colRetired)).
		Where(goqu.C(colID).Eq(copyID.String()))

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", false, ls.buildQueryError(toSQLErr)
	}

	rows, queryErr := ls.executeQuery(ctx, sqlQuery, logActionQuery(colStatus))
	if queryErr != nil {
		return "", false, queryErr
	}
	defer ls.closeRows(rows)

	if !rows.Next() {
		return "", false, lending.ErrCopyNotFound
	}

	var (
		status  string
		retired bool
	)

	if scanErr := rows.Scan(&status, &retired); scanErr != nil {
		ls.logError(logMsgScanRowFailed, logAttrError, scanErr.Error())
		return "", false, errors.Join(errQueryBuildFailed, scanErr)
	}

	return lending.CopyStatus(status), retired, nil
}

// sanctionByBorrower reads the borrower's sanction record.
func (ls *LendingStore) sanctionByBorrower(ctx context.Context, borrowerID uuid.UUID) (lending.Sanction, bool, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(ls.sanctionsTable()).
		Select(
			goqu.Cast(goqu.I(colBorrowerID), castText),
			goqu.I(colReason),
			goqu.Cast(goqu.I(colIssuedBy), castText),
			goqu.I(colAppliedAt),
			goqu.I(colExpiresAt),
			goqu.I(colActive),
		).
		Where(goqu.C(colBorrowerID).Eq(borrowerID.String()))

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return lending.Sanction{}, false, ls.buildQueryError(toSQLErr)
	}

	rows, queryErr := ls.executeQuery(ctx, sqlQuery, logActionSanction)
	if queryErr != nil {
		return lending.Sanction{}, false, queryErr
	}
	defer ls.closeRows(rows)

	if !rows.Next() {
		return lending.Sanction{}, false, nil
	}

	var (
		borrowerIDText string
		reason         string
		issuedByText   string
		appliedAt      time.Time
		expiresAt      time.Time
		active         bool
	)

	if scanErr := rows.Scan(&borrowerIDText, &reason, &issuedByText, &appliedAt, &expiresAt, &active); scanErr != nil {
		ls.logError(logMsgScanRowFailed, logAttrError, scanErr.Error())
		return lending.Sanction{}, false, errors.Join(errQueryBuildFailed, scanErr)
	}

	sanction, parseErr := buildSanctionFromRow(borrowerIDText, reason, issuedByText, appliedAt, expiresAt, active)
	if parseErr != nil {
		ls.logError(logMsgParseRowFailed, logAttrError, parseErr.Error())
		return lending.Sanction{}, false, parseErr
	}

	return sanction, true, nil
}

// execStatement executes a statement, logs it with timing, and classifies
// driver errors into the lending error taxonomy.
func (ls *LendingStore) execStatement(ctx context.Context, sqlQuery string, action string) (int64, error) {
	start := time.Now()
	result, execErr := ls.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	ls.logQueryWithDuration(sqlQuery, action, duration)

	if execErr != nil {
		ls.logError(logMsgDBExecFailed, logAttrError, execErr.Error(), logAttrQuery, sqlQuery)
		return 0, classifyDriverError(execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		ls.logError(logMsgDBExecFailed, logAttrError, rowsAffectedErr.Error())
		return 0, rowsAffectedErr
	}

	ls.logOperation(logMsgOperation+action,
		logAttrRowsAffected, rowsAffected,
		logAttrDurationMS, durationToMilliseconds(duration),
	)

	return rowsAffected, nil
}

// executeQuery executes a select and returns rows with timing logged.
func (ls *LendingStore) executeQuery(ctx context.Context, sqlQuery string, action string) (adapters.DBRows, error) {
	start := time.Now()
	rows, queryErr := ls.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	ls.logQueryWithDuration(sqlQuery, action, duration)

	if queryErr != nil {
		ls.logError(logMsgDBQueryFailed, logAttrError, queryErr.Error(), logAttrQuery, sqlQuery)
		return nil, classifyDriverError(queryErr)
	}

	return rows, nil
}

// closeRows safely closes database rows and logs any errors.
func (ls *LendingStore) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if ls.logger != nil {
			ls.logger.Warn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}
}

func (ls *LendingStore) buildQueryError(err error) error {
	ls.logError(logMsgBuildQueryFailed, logAttrError, err.Error())
	return errors.Join(errQueryBuildFailed, err)
}

func (ls *LendingStore) copiesTable() string {
	return ls.tablePrefix + tableCopies
}

func (ls *LendingStore) loansTable() string {
	return ls.tablePrefix + tableLoans
}

func (ls *LendingStore) sanctionsTable() string {
	return ls.tablePrefix + tableSanctions
}

// logQueryWithDuration logs SQL statements with execution time at debug
// level if the logger is configured.
func (ls *LendingStore) logQueryWithDuration(sqlQuery string, action string, duration time.Duration) {
	if ls.logger != nil {
		ls.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, durationToMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level if the logger is configured.
func (ls *LendingStore) logOperation(msg string, args ...any) {
	if ls.logger != nil {
		ls.logger.Info(msg, args...)
	}
}

func (ls *LendingStore) logError(msg string, args ...any) {
	if ls.logger != nil {
		ls.logger.Error(msg, args...)
	}
}

func logActionQuery(what string) string {
	return "query " + what
}

// classifyDriverError maps driver-level failures into the lending error
// taxonomy: serialization failures and deadlocks become retryable
// transient conflicts, an active-loan unique violation becomes
// ErrCopyUnavailable. Works for both pgx and lib/pq connections.
func classifyDriverError(err error) error {
	code := sqlStateOf(err)

	switch code {
	case pgCodeSerializationFailure, pgCodeDeadlockDetected:
		return errors.Join(lending.ErrTransientStorageConflict, err)
	case pgCodeUniqueViolation:
		return errors.Join(lending.ErrCopyUnavailable, err)
	default:
		return err
	}
}

func sqlStateOf(err error) string {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}

	return ""
}

func buildLoanFromRow(loanIDText, copyIDText, borrowerIDText string, loanedAt time.Time, returnedAt sql.NullTime) (lending.Loan, error) {
	loanID, loanIDErr := uuid.Parse(loanIDText)
	if loanIDErr != nil {
		return lending.Loan{}, loanIDErr
	}

	copyID, copyIDErr := uuid.Parse(copyIDText)
	if copyIDErr != nil {
		return lending.Loan{}, copyIDErr
	}

	borrowerID, borrowerIDErr := uuid.Parse(borrowerIDText)
	if borrowerIDErr != nil {
		return lending.Loan{}, borrowerIDErr
	}

	loan := lending.Loan{
		ID:         loanID,
		CopyID:     copyID,
		BorrowerID: borrowerID,
		LoanedAt:   loanedAt.UTC(),
	}

	if returnedAt.Valid {
		at := returnedAt.Time.UTC()
		loan.ReturnedAt = &at
	}

	return loan, nil
}

func buildSanctionFromRow(borrowerIDText, reason, issuedByText string, appliedAt, expiresAt time.Time, active bool) (lending.Sanction, error) {
	borrowerID, borrowerIDErr := uuid.Parse(borrowerIDText)
	if borrowerIDErr != nil {
		return lending.Sanction{}, borrowerIDErr
	}

	issuedBy, issuedByErr := uuid.Parse(issuedByText)
	if issuedByErr != nil {
		return lending.Sanction{}, issuedByErr
	}

	return lending.Sanction{
		BorrowerID: borrowerID,
		Reason:     reason,
		IssuedBy:   issuedBy,
		AppliedAt:  appliedAt.UTC(),
		ExpiresAt:  expiresAt.UTC(),
		Active:     active,
	}, nil
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
