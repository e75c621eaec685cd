/*
errors.go - Centralized error types for the credit engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is(); structured variants carry amounts for
  user-facing messages.

ERROR CATEGORIES:
  1. Validation errors - Bad monetary inputs, caller-recoverable
  2. State errors - Missing schedule, wrong account type
  3. Consistency errors - Schedule state the engine cannot reconcile

PROPAGATION POLICY:
  Validation errors are raised before any write occurs. Mutations are
  all-or-nothing: a failure mid-transaction relies on the store's rollback
  to leave state untouched. The engine never retries.

SEE ALSO:
  - coordinator.go: Raises these errors
  - store.go: Store-level not-found errors
*/
package credit

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned when a monetary input is zero or negative
	// where a positive amount is required.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrExceedsScheduledAmount is returned when a partial payment exceeds
	// the installment's scheduled total.
	ErrExceedsScheduledAmount = errors.New("payment exceeds scheduled amount")

	// ErrExceedsDebt is returned when an early repayment exceeds the
	// currently outstanding principal.
	ErrExceedsDebt = errors.New("repayment exceeds outstanding debt")

	// ErrNotACredit is returned when a loan operation targets an account
	// that is not a credit account.
	ErrNotACredit = errors.New("account is not a credit account")

	// ErrNoSchedule is returned when an operation requires an existing
	// schedule and none is found.
	ErrNoSchedule = errors.New("no payment schedule found")

	// ErrInvalidEarlyPaymentMonth is returned when the installment preceding
	// the early-payment month cannot be located. This indicates inconsistent
	// schedule state rather than bad user input, but it is signaled through
	// the normal failure channel instead of panicking.
	ErrInvalidEarlyPaymentMonth = errors.New("cannot locate installment preceding early payment month")

	// ErrAccountNotFound is returned when a referenced account doesn't exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInstallmentNotFound is returned when a referenced installment
	// doesn't exist.
	ErrInstallmentNotFound = errors.New("installment not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidTermsError reports which loan-terms precondition failed.
type InvalidTermsError struct {
	Field  string
	Reason string
}

func (e *InvalidTermsError) Error() string {
	return fmt.Sprintf("invalid loan terms: %s %s", e.Field, e.Reason)
}

// ExceedsScheduledError provides details about an over-large partial payment.
type ExceedsScheduledError struct {
	InstallmentID InstallmentID
	Scheduled     decimal.Decimal
	Requested     decimal.Decimal
}

func (e *ExceedsScheduledError) Error() string {
	return fmt.Sprintf("payment %v exceeds scheduled amount %v for installment %s",
		e.Requested, e.Scheduled, e.InstallmentID)
}

func (e *ExceedsScheduledError) Unwrap() error {
	return ErrExceedsScheduledAmount
}

// ExceedsDebtError provides details about an over-large early repayment.
type ExceedsDebtError struct {
	AccountID   AccountID
	Outstanding decimal.Decimal
	Requested   decimal.Decimal
}

func (e *ExceedsDebtError) Error() string {
	return fmt.Sprintf("repayment %v exceeds outstanding debt %v on account %s",
		e.Requested, e.Outstanding, e.AccountID)
}

func (e *ExceedsDebtError) Unwrap() error {
	return ErrExceedsDebt
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input
// and a corrected retry may succeed.
func IsClientError(err error) bool {
	var termsErr *InvalidTermsError
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrExceedsScheduledAmount) ||
		errors.Is(err, ErrExceedsDebt) ||
		errors.Is(err, ErrNotACredit) ||
		errors.As(err, &termsErr)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrInstallmentNotFound) ||
		errors.Is(err, ErrNoSchedule)
}
