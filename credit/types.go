/*
Package credit provides the core loan amortization engine.

PURPOSE:
  This package contains the types and algorithms for computing loan payment
  schedules and keeping them consistent as payments arrive. The two halves:
  the schedule generator (pure, deterministic) and the payment coordinator
  (stateful operations against a persisted schedule).

KEY CONCEPTS IN THIS FILE (types.go):
  - LoanTerms: Immutable inputs for schedule generation
  - Installment: One row of the payment schedule, one due date
  - Account: A ledger account; credit accounts carry a non-positive balance
  - PaymentMethod: Annuity (fixed total) vs differentiated (fixed principal)

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Rounding discipline: Every stored monetary field is rounded to the
     minor currency unit the moment it is produced - no unrounded state
     is carried between installments
  3. Type Safety: Strong typing for account and installment IDs
  4. Remainder absorption: Rounding drift accumulates nowhere except the
     final installment, which zeroes the balance exactly

SEE ALSO:
  - schedule.go: The generator
  - coordinator.go: Payment operations
  - store.go: Persistence interfaces
*/
package credit

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Minor-unit rounding helpers
// =============================================================================

// minorUnitPlaces is the decimal precision of the currencies in scope.
const minorUnitPlaces = 2

// RoundMoney rounds to the currency's minor unit (2 decimals, half away
// from zero). Applied after every arithmetic step that produces a stored
// field.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(minorUnitPlaces)
}

// MinorUnit is the smallest representable amount, used as the tolerance
// for sum invariants.
var MinorUnit = decimal.New(1, -minorUnitPlaces)

// MustParseDecimal parses a decimal string, returning zero on failure.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type InstallmentID string

// =============================================================================
// PAYMENT METHOD - How the monthly split is computed
// =============================================================================

type PaymentMethod string

const (
	// MethodAnnuity holds the total monthly payment constant; the
	// interest/principal split shifts over time.
	MethodAnnuity PaymentMethod = "annuity"

	// MethodDifferentiated holds the principal portion constant; the total
	// payment declines as interest shrinks.
	MethodDifferentiated PaymentMethod = "differentiated"
)

func (m PaymentMethod) Valid() bool {
	return m == MethodAnnuity || m == MethodDifferentiated
}

// =============================================================================
// LOAN TERMS - Generator input
// =============================================================================

// LoanTerms are the inputs to schedule generation. Not persisted as such;
// the static fields live on the Account.
type LoanTerms struct {
	// Principal is the amount borrowed. Must be positive.
	Principal decimal.Decimal

	// AnnualRate is the nominal annual rate in percent (12 = 12%). Must be >= 0.
	AnnualRate decimal.Decimal

	// TermMonths is the loan length in whole months. Must be >= 1.
	TermMonths int

	// StartDate anchors payment dates when FirstPaymentDate is nil:
	// installment k is due StartDate + k months.
	StartDate time.Time

	// FirstPaymentDate, when set, is used exactly for installment 1;
	// later installments step months from it.
	FirstPaymentDate *time.Time

	Method PaymentMethod
}

// Validate checks generator preconditions. Callers must validate before
// generating; generation behavior is undefined for invalid terms.
func (t LoanTerms) Validate() error {
	if !t.Principal.IsPositive() {
		return &InvalidTermsError{Field: "principal", Reason: "must be positive"}
	}
	if t.AnnualRate.IsNegative() {
		return &InvalidTermsError{Field: "annual_rate", Reason: "must be >= 0"}
	}
	if t.TermMonths < 1 {
		return &InvalidTermsError{Field: "term_months", Reason: "must be >= 1"}
	}
	if t.StartDate.IsZero() {
		return &InvalidTermsError{Field: "start_date", Reason: "required"}
	}
	if !t.Method.Valid() {
		return &InvalidTermsError{Field: "method", Reason: "unknown payment method"}
	}
	return nil
}

// MonthlyRate converts the annual percent rate to a monthly fraction
// (12% -> 0.01).
func (t LoanTerms) MonthlyRate() decimal.Decimal {
	return t.AnnualRate.Div(decimal.NewFromInt(100)).Div(decimal.NewFromInt(12))
}

// =============================================================================
// INSTALLMENT - One schedule row
// =============================================================================

type InstallmentStatus string

const (
	StatusPending InstallmentStatus = "pending"
	StatusPartial InstallmentStatus = "partial"
	StatusPaid    InstallmentStatus = "paid"
	StatusOverdue InstallmentStatus = "overdue"
)

// Installment is one row of a payment schedule.
//
// INVARIANTS:
//   - TotalPayment == PrincipalPayment + InterestPayment (to the minor unit)
//   - RemainingBalance strictly decreases with PaymentNumber and is exactly
//     zero on the final installment of a schedule version
//   - PaymentNumber is 1-based, unique per account, contiguous
type Installment struct {
	ID        InstallmentID
	AccountID AccountID

	PaymentNumber int
	PaymentDate   time.Time

	TotalPayment     decimal.Decimal
	PrincipalPayment decimal.Decimal
	InterestPayment  decimal.Decimal

	// RemainingBalance is the principal outstanding after this installment
	// is paid.
	RemainingBalance decimal.Decimal

	Status InstallmentStatus

	// PaidAmount is the cumulative amount applied toward this installment.
	PaidAmount decimal.Decimal

	// PaidDate is the date of the most recent payment application.
	// Nil until a payment is applied.
	PaidDate *time.Time
}

// FullyPaid reports whether the cumulative paid amount covers the
// scheduled total.
func (i Installment) FullyPaid() bool {
	return i.PaidAmount.GreaterThanOrEqual(i.TotalPayment)
}

// =============================================================================
// ACCOUNT - Ledger account carrying loan terms and a derived balance
// =============================================================================

type AccountType string

const (
	AccountCredit   AccountType = "credit"
	AccountChecking AccountType = "checking"
	AccountSavings  AccountType = "savings"
)

// Account holds the static loan terms plus the single derived balance
// field this engine keeps in sync.
//
// SIGN CONVENTION: credit accounts carry Balance = -outstanding principal,
// so a debt of 1000.00 is stored as -1000.00.
type Account struct {
	ID   AccountID
	Name string
	Type AccountType

	Principal  decimal.Decimal
	AnnualRate decimal.Decimal
	TermMonths int
	StartDate  time.Time

	// FirstPaymentDate optionally overrides the due date of installment 1.
	FirstPaymentDate *time.Time

	Method PaymentMethod

	// Balance is the negated outstanding principal. Derived; the engine
	// rewrites it after every mutation.
	Balance decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsCredit reports whether early-repayment operations apply to this account.
func (a Account) IsCredit() bool {
	return a.Type == AccountCredit
}

// Terms assembles generator input from the account's static fields.
func (a Account) Terms() LoanTerms {
	return LoanTerms{
		Principal:        a.Principal,
		AnnualRate:       a.AnnualRate,
		TermMonths:       a.TermMonths,
		StartDate:        a.StartDate,
		FirstPaymentDate: a.FirstPaymentDate,
		Method:           a.Method,
	}
}

// =============================================================================
// CREDIT STATS - Read-only aggregate view of a schedule
// =============================================================================

// CreditStats is a purely derived snapshot over an account's installments.
type CreditStats struct {
	AccountID AccountID

	// TotalPayable is the sum of TotalPayment over every installment.
	TotalPayable decimal.Decimal

	// PaidAmount is the sum of PaidAmount over paid and partial installments.
	PaidAmount decimal.Decimal

	// RemainingPayable = TotalPayable - PaidAmount.
	RemainingPayable decimal.Decimal

	// NextPaymentDate/NextPaymentAmount describe the earliest installment
	// still awaiting money (pending, partial, or overdue). Nil when the
	// schedule is fully settled.
	NextPaymentDate   *time.Time
	NextPaymentAmount *decimal.Decimal

	PaidCount    int
	OverdueCount int
}
