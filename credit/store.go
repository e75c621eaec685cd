/*
store.go - Persistence interfaces for accounts and installments

PURPOSE:
  Defines the contract between the engine and the database. The engine
  only ever touches persisted schedules through these interfaces, so
  implementations can use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  Store:   Row-level reads and writes for accounts and installments
  TxStore: Store plus an atomic multi-write transaction primitive

ORDERING CONTRACT:
  Installments() returns rows ordered by payment number ascending with
  soft-deleted rows excluded. Every coordinator algorithm relies on this.

SOFT DELETE:
  Pending installments superseded by an early repayment are soft-deleted,
  never physically removed. Paid and partial history is never deleted.

ATOMICITY:
  Every coordinator operation runs inside WithTx. Either all of its writes
  apply or none do; a failed operation leaves the schedule and the account
  balance exactly as they were.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite store
  - credit/store/memory.go: In-memory store for tests

SEE ALSO:
  - coordinator.go: The only writer
*/
package credit

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Row-level persistence
// =============================================================================

// Store handles persistence of accounts and installments.
type Store interface {
	// Account returns the account or ErrAccountNotFound.
	Account(ctx context.Context, id AccountID) (*Account, error)

	// SaveAccount inserts or replaces an account record.
	SaveAccount(ctx context.Context, account Account) error

	// UpdateAccountBalance rewrites only the derived balance field.
	UpdateAccountBalance(ctx context.Context, id AccountID, balance decimal.Decimal) error

	// Installments returns the account's live (not soft-deleted) schedule
	// rows ordered by payment number ascending.
	Installments(ctx context.Context, accountID AccountID) ([]Installment, error)

	// Installment returns a single row or ErrInstallmentNotFound.
	Installment(ctx context.Context, id InstallmentID) (*Installment, error)

	// InsertInstallments persists new schedule rows.
	InsertInstallments(ctx context.Context, installments []Installment) error

	// UpdateInstallment rewrites one row in place.
	UpdateInstallment(ctx context.Context, installment Installment) error

	// DeleteInstallments soft-deletes the given rows.
	DeleteInstallments(ctx context.Context, accountID AccountID, ids []InstallmentID) error
}

// =============================================================================
// TRANSACTIONAL STORE - Atomic multi-write operations
// =============================================================================

// TxStore wraps Store with transaction support. Coordinator operations
// require it: schedule mutation and balance derivation must land together.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
