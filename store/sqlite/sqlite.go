/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements credit.Store and credit.TxStore using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

KEY TABLES:
  accounts:     Loan accounts with static terms and the derived balance
  installments: Payment schedule rows, one per loan per month

SOFT DELETE:
  Installments superseded by an early repayment are never physically
  removed; deleted_at is set and every read filters on deleted_at IS NULL.
  Paid and partial history therefore always survives regeneration.

DECIMAL STORAGE:
  Monetary values are stored as TEXT and parsed with shopspring/decimal.
  Storing floats would reintroduce exactly the precision bugs the engine
  exists to avoid.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, single writer at a time, better crash
  recovery.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. With PostgreSQL, database-level
  concurrency control handles this instead.

USAGE:
  store, err := sqlite.New("./data/credits.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  coordinator := credit.NewCoordinator(store)

SEE ALSO:
  - credit/store.go: Interface definitions
  - credit/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/credit-engine/credit"
)

const (
	dayFormat = "2006-01-02"
)

// Store implements credit.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection also
	// keeps ":memory:" databases stable across calls.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Loan accounts (static terms + derived balance)
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		principal TEXT NOT NULL,
		annual_rate TEXT NOT NULL,
		term_months INTEGER NOT NULL,
		start_date TEXT NOT NULL,
		first_payment_date TEXT,
		method TEXT NOT NULL,
		balance TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Payment schedule rows (soft-deleted on regeneration)
	CREATE TABLE IF NOT EXISTS installments (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		payment_number INTEGER NOT NULL,
		payment_date TEXT NOT NULL,
		total_payment TEXT NOT NULL,
		principal_payment TEXT NOT NULL,
		interest_payment TEXT NOT NULL,
		remaining_balance TEXT NOT NULL,
		status TEXT NOT NULL,
		paid_amount TEXT NOT NULL,
		paid_date TEXT,
		deleted_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Schedule reads are always by account, ordered by payment number
	CREATE INDEX IF NOT EXISTS idx_installments_account_number
		ON installments(account_id, payment_number)
		WHERE deleted_at IS NULL;

	-- One live row per payment number per account
	CREATE UNIQUE INDEX IF NOT EXISTS idx_installments_unique_number
		ON installments(account_id, payment_number)
		WHERE deleted_at IS NULL;

	-- For overdue sweeps
	CREATE INDEX IF NOT EXISTS idx_installments_status
		ON installments(account_id, status)
		WHERE deleted_at IS NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier abstracts *sql.DB and *sql.Tx so the same row logic serves both
// direct calls and WithTx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (s *Store) Account(ctx context.Context, id credit.AccountID) (*credit.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAccount(ctx, s.db, id)
}

func (s *Store) SaveAccount(ctx context.Context, account credit.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveAccount(ctx, s.db, account)
}

func (s *Store) UpdateAccountBalance(ctx context.Context, id credit.AccountID, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateAccountBalance(ctx, s.db, id, balance)
}

func getAccount(ctx context.Context, q querier, id credit.AccountID) (*credit.Account, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, type, principal, annual_rate, term_months, start_date,
		       first_payment_date, method, balance, created_at, updated_at
		FROM accounts WHERE id = ?
	`, id)

	var (
		a                credit.Account
		principal        string
		annualRate       string
		startDate        string
		firstPaymentDate sql.NullString
		balance          string
		createdAt        string
		updatedAt        string
	)
	err := row.Scan(&a.ID, &a.Name, &a.Type, &principal, &annualRate, &a.TermMonths,
		&startDate, &firstPaymentDate, &a.Method, &balance, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, credit.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	a.Principal = credit.MustParseDecimal(principal)
	a.AnnualRate = credit.MustParseDecimal(annualRate)
	a.Balance = credit.MustParseDecimal(balance)
	if a.StartDate, err = time.Parse(dayFormat, startDate); err != nil {
		return nil, fmt.Errorf("failed to parse start date: %w", err)
	}
	if firstPaymentDate.Valid {
		first, err := time.Parse(dayFormat, firstPaymentDate.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse first payment date: %w", err)
		}
		a.FirstPaymentDate = &first
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &a, nil
}

func saveAccount(ctx context.Context, q querier, a credit.Account) error {
	var firstPaymentDate any
	if a.FirstPaymentDate != nil {
		firstPaymentDate = a.FirstPaymentDate.Format(dayFormat)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := q.ExecContext(ctx, `
		INSERT INTO accounts
		(id, name, type, principal, annual_rate, term_months, start_date,
		 first_payment_date, method, balance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			principal = excluded.principal,
			annual_rate = excluded.annual_rate,
			term_months = excluded.term_months,
			start_date = excluded.start_date,
			first_payment_date = excluded.first_payment_date,
			method = excluded.method,
			balance = excluded.balance,
			updated_at = excluded.updated_at
	`,
		a.ID, a.Name, a.Type, a.Principal.String(), a.AnnualRate.String(),
		a.TermMonths, a.StartDate.Format(dayFormat), firstPaymentDate,
		a.Method, a.Balance.String(), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

func updateAccountBalance(ctx context.Context, q querier, id credit.AccountID, balance decimal.Decimal) error {
	result, err := q.ExecContext(ctx, `
		UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?
	`, balance.String(), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return credit.ErrAccountNotFound
	}
	return nil
}

// =============================================================================
// INSTALLMENTS
// =============================================================================

const installmentColumns = `
	id, account_id, payment_number, payment_date, total_payment,
	principal_payment, interest_payment, remaining_balance, status,
	paid_amount, paid_date
`

func (s *Store) Installments(ctx context.Context, accountID credit.AccountID) ([]credit.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listInstallments(ctx, s.db, accountID)
}

func (s *Store) Installment(ctx context.Context, id credit.InstallmentID) (*credit.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getInstallment(ctx, s.db, id)
}

func (s *Store) InsertInstallments(ctx context.Context, installments []credit.Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertInstallments(ctx, s.db, installments)
}

func (s *Store) UpdateInstallment(ctx context.Context, inst credit.Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateInstallment(ctx, s.db, inst)
}

func (s *Store) DeleteInstallments(ctx context.Context, accountID credit.AccountID, ids []credit.InstallmentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteInstallments(ctx, s.db, accountID, ids)
}

func listInstallments(ctx context.Context, q querier, accountID credit.AccountID) ([]credit.Installment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+installmentColumns+`
		FROM installments
		WHERE account_id = ? AND deleted_at IS NULL
		ORDER BY payment_number ASC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query installments: %w", err)
	}
	defer rows.Close()

	var installments []credit.Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		installments = append(installments, inst)
	}
	return installments, rows.Err()
}

func getInstallment(ctx context.Context, q querier, id credit.InstallmentID) (*credit.Installment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+installmentColumns+`
		FROM installments
		WHERE id = ? AND deleted_at IS NULL
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query installment: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, credit.ErrInstallmentNotFound
	}
	inst, err := scanInstallment(rows)
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func scanInstallment(rows *sql.Rows) (credit.Installment, error) {
	var (
		inst             credit.Installment
		paymentDate      string
		totalPayment     string
		principalPayment string
		interestPayment  string
		remainingBalance string
		paidAmount       string
		paidDate         sql.NullString
	)

	err := rows.Scan(&inst.ID, &inst.AccountID, &inst.PaymentNumber, &paymentDate,
		&totalPayment, &principalPayment, &interestPayment, &remainingBalance,
		&inst.Status, &paidAmount, &paidDate)
	if err != nil {
		return inst, fmt.Errorf("failed to scan installment: %w", err)
	}

	if inst.PaymentDate, err = time.Parse(dayFormat, paymentDate); err != nil {
		return inst, fmt.Errorf("failed to parse payment date: %w", err)
	}
	inst.TotalPayment = credit.MustParseDecimal(totalPayment)
	inst.PrincipalPayment = credit.MustParseDecimal(principalPayment)
	inst.InterestPayment = credit.MustParseDecimal(interestPayment)
	inst.RemainingBalance = credit.MustParseDecimal(remainingBalance)
	inst.PaidAmount = credit.MustParseDecimal(paidAmount)
	if paidDate.Valid {
		paid, err := time.Parse(dayFormat, paidDate.String)
		if err != nil {
			return inst, fmt.Errorf("failed to parse paid date: %w", err)
		}
		inst.PaidDate = &paid
	}
	return inst, nil
}

func insertInstallments(ctx context.Context, q querier, installments []credit.Installment) error {
	now := time.Now().UTC().Format(time.RFC3339)
	for _, inst := range installments {
		var paidDate any
		if inst.PaidDate != nil {
			paidDate = inst.PaidDate.Format(dayFormat)
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO installments
			(id, account_id, payment_number, payment_date, total_payment,
			 principal_payment, interest_payment, remaining_balance, status,
			 paid_amount, paid_date, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			inst.ID, inst.AccountID, inst.PaymentNumber,
			inst.PaymentDate.Format(dayFormat),
			inst.TotalPayment.String(), inst.PrincipalPayment.String(),
			inst.InterestPayment.String(), inst.RemainingBalance.String(),
			inst.Status, inst.PaidAmount.String(), paidDate, now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert installment %d: %w", inst.PaymentNumber, err)
		}
	}
	return nil
}

func updateInstallment(ctx context.Context, q querier, inst credit.Installment) error {
	var paidDate any
	if inst.PaidDate != nil {
		paidDate = inst.PaidDate.Format(dayFormat)
	}

	result, err := q.ExecContext(ctx, `
		UPDATE installments SET
			payment_number = ?, payment_date = ?, total_payment = ?,
			principal_payment = ?, interest_payment = ?, remaining_balance = ?,
			status = ?, paid_amount = ?, paid_date = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`,
		inst.PaymentNumber, inst.PaymentDate.Format(dayFormat),
		inst.TotalPayment.String(), inst.PrincipalPayment.String(),
		inst.InterestPayment.String(), inst.RemainingBalance.String(),
		inst.Status, inst.PaidAmount.String(), paidDate,
		time.Now().UTC().Format(time.RFC3339), inst.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update installment: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return credit.ErrInstallmentNotFound
	}
	return nil
}

func deleteInstallments(ctx context.Context, q querier, accountID credit.AccountID, ids []credit.InstallmentID) error {
	now := time.Now().UTC().Format(time.RFC3339)
	for _, id := range ids {
		_, err := q.ExecContext(ctx, `
			UPDATE installments SET deleted_at = ?, updated_at = ?
			WHERE id = ? AND account_id = ? AND deleted_at IS NULL
		`, now, now, id, accountID)
		if err != nil {
			return fmt.Errorf("failed to delete installment: %w", err)
		}
	}
	return nil
}

// =============================================================================
// TRANSACTIONS (credit.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(credit.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// txStore exposes the Store interface over an open transaction.
type txStore struct {
	tx *sql.Tx
}

func (t *txStore) Account(ctx context.Context, id credit.AccountID) (*credit.Account, error) {
	return getAccount(ctx, t.tx, id)
}

func (t *txStore) SaveAccount(ctx context.Context, account credit.Account) error {
	return saveAccount(ctx, t.tx, account)
}

func (t *txStore) UpdateAccountBalance(ctx context.Context, id credit.AccountID, balance decimal.Decimal) error {
	return updateAccountBalance(ctx, t.tx, id, balance)
}

func (t *txStore) Installments(ctx context.Context, accountID credit.AccountID) ([]credit.Installment, error) {
	return listInstallments(ctx, t.tx, accountID)
}

func (t *txStore) Installment(ctx context.Context, id credit.InstallmentID) (*credit.Installment, error) {
	return getInstallment(ctx, t.tx, id)
}

func (t *txStore) InsertInstallments(ctx context.Context, installments []credit.Installment) error {
	return insertInstallments(ctx, t.tx, installments)
}

func (t *txStore) UpdateInstallment(ctx context.Context, inst credit.Installment) error {
	return updateInstallment(ctx, t.tx, inst)
}

func (t *txStore) DeleteInstallments(ctx context.Context, accountID credit.AccountID, ids []credit.InstallmentID) error {
	return deleteInstallments(ctx, t.tx, accountID, ids)
}
