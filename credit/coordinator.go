/*
coordinator.go - Stateful payment operations against a persisted schedule

PURPOSE:
  The Coordinator is the only writer of schedule state. It applies payment
  events to installments, regenerates the schedule tail on early repayment,
  sweeps overdue rows, and keeps the account's derived balance in sync
  after every mutation.

STATE MACHINE (per installment):
  pending --(full payment)-------------------------> paid
  pending --(partial payment)----------------------> partial
  partial --(payment reaching scheduled total)-----> paid
  partial --(further partial payment)--------------> partial
  pending --(due date passed, still unpaid)--------> overdue
  overdue --(any payment)--------------------------> paid | partial

  paid is terminal. No transition reduces PaidAmount.

CONCURRENCY:
  Operations on the same account are serialized with a per-account mutex:
  early repayment reads the whole installment set and re-derives it, and a
  concurrent mark-paid against a row being replaced would corrupt state.
  Different accounts proceed independently. Every operation additionally
  runs inside a single store transaction, so its writes land all-or-nothing.

BALANCE DERIVATION:
  The outstanding principal is the RemainingBalance of the highest-numbered
  paid installment (or the original principal when none is paid yet) - not
  a running sum of payments. The schedule's own bookkeeping is the source
  of truth; summing payments would drift on partial-payment edge cases.

SEE ALSO:
  - schedule.go: The generator invoked for lazy creation and regeneration
  - store.go: Persistence contract
  - stats.go: Read-only aggregates
*/
package credit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// COORDINATOR
// =============================================================================

// Coordinator applies payment operations to persisted schedules.
type Coordinator struct {
	store TxStore

	// Now supplies the current time. Overridable in tests; defaults to
	// time.Now.
	Now func() time.Time

	mu    sync.Mutex
	locks map[AccountID]*sync.Mutex
}

// NewCoordinator creates a coordinator over the given transactional store.
func NewCoordinator(store TxStore) *Coordinator {
	return &Coordinator{
		store: store,
		Now:   time.Now,
		locks: make(map[AccountID]*sync.Mutex),
	}
}

// accountLock returns the mutex serializing operations for one account.
func (c *Coordinator) accountLock(id AccountID) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[id] = lock
	}
	return lock
}

// =============================================================================
// SCHEDULE ACCESS - Lazy generation on first view
// =============================================================================

// GetOrCreateSchedule returns the account's schedule, generating and
// persisting it on first access. This is the single entry point for the
// lazy-generation behavior; callers never invoke the generator against a
// credit account directly.
func (c *Coordinator) GetOrCreateSchedule(ctx context.Context, accountID AccountID) ([]Installment, error) {
	lock := c.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	var result []Installment
	err := c.store.WithTx(ctx, func(s Store) error {
		account, err := s.Account(ctx, accountID)
		if err != nil {
			return err
		}
		if !account.IsCredit() {
			return ErrNotACredit
		}

		installments, err := s.Installments(ctx, accountID)
		if err != nil {
			return err
		}
		if len(installments) > 0 {
			result = installments
			return nil
		}

		generated, err := GenerateSchedule(account.Terms())
		if err != nil {
			return err
		}
		for i := range generated {
			generated[i].ID = InstallmentID(uuid.NewString())
			generated[i].AccountID = accountID
		}
		if err := s.InsertInstallments(ctx, generated); err != nil {
			return err
		}
		if err := c.syncAccountBalance(ctx, s, *account, generated); err != nil {
			return err
		}

		result = generated
		return nil
	})
	return result, err
}

// =============================================================================
// PAYMENT OPERATIONS
// =============================================================================

// MarkPaymentAsPaid records a payment against an installment. A nil amount
// means the full scheduled total; a nil date means now. The paid amount is
// overwritten, not accumulated, and is deliberately not validated against
// the scheduled total - an overpayment marks the row paid without excess
// tracking. Use MakePartialPayment for the validated, accumulating variant.
func (c *Coordinator) MarkPaymentAsPaid(ctx context.Context, installmentID InstallmentID, amount *decimal.Decimal, paidDate *time.Time) error {
	inst, err := c.store.Installment(ctx, installmentID)
	if err != nil {
		return err
	}

	lock := c.accountLock(inst.AccountID)
	lock.Lock()
	defer lock.Unlock()

	return c.store.WithTx(ctx, func(s Store) error {
		inst, err := s.Installment(ctx, installmentID)
		if err != nil {
			return err
		}

		paid := inst.TotalPayment
		if amount != nil {
			paid = *amount
		}
		date := DateOnly(c.Now())
		if paidDate != nil {
			date = DateOnly(*paidDate)
		}

		inst.PaidAmount = paid
		inst.PaidDate = &date
		inst.Status = StatusPartial
		if inst.FullyPaid() {
			inst.Status = StatusPaid
		}

		if err := s.UpdateInstallment(ctx, *inst); err != nil {
			return err
		}
		return c.refreshAccountBalance(ctx, s, inst.AccountID)
	})
}

// MakePartialPayment accumulates a payment toward an installment. The
// amount must be positive and no larger than the scheduled total.
func (c *Coordinator) MakePartialPayment(ctx context.Context, installmentID InstallmentID, amount decimal.Decimal, paidDate *time.Time) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	inst, err := c.store.Installment(ctx, installmentID)
	if err != nil {
		return err
	}

	lock := c.accountLock(inst.AccountID)
	lock.Lock()
	defer lock.Unlock()

	return c.store.WithTx(ctx, func(s Store) error {
		inst, err := s.Installment(ctx, installmentID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(inst.TotalPayment) {
			return &ExceedsScheduledError{
				InstallmentID: installmentID,
				Scheduled:     inst.TotalPayment,
				Requested:     amount,
			}
		}

		date := DateOnly(c.Now())
		if paidDate != nil {
			date = DateOnly(*paidDate)
		}

		inst.PaidAmount = inst.PaidAmount.Add(amount)
		inst.PaidDate = &date
		inst.Status = StatusPartial
		if inst.FullyPaid() {
			inst.Status = StatusPaid
		}

		if err := s.UpdateInstallment(ctx, *inst); err != nil {
			return err
		}
		return c.refreshAccountBalance(ctx, s, inst.AccountID)
	})
}

// MakeEarlyRepayment applies an extra principal payment as of the first
// not-yet-fully-paid installment. A full payoff removes the remaining
// unpaid rows; a partial payoff regenerates the schedule tail over the
// remaining term with the reduced principal, renumbered to stay contiguous
// with the paid history. A partially paid installment in the regenerated
// range is replaced like the rest, with its accumulated payment folded
// into the new row at the same number. The rate and payment method never
// change. repaymentDate is recorded in the request for audit parity but
// never shifts the schedule: regenerated due dates keep the original
// cadence.
func (c *Coordinator) MakeEarlyRepayment(ctx context.Context, accountID AccountID, amount decimal.Decimal, repaymentDate *time.Time) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	lock := c.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	return c.store.WithTx(ctx, func(s Store) error {
		account, err := s.Account(ctx, accountID)
		if err != nil {
			return err
		}
		if !account.IsCredit() {
			return ErrNotACredit
		}

		installments, err := s.Installments(ctx, accountID)
		if err != nil {
			return err
		}
		if len(installments) == 0 {
			return ErrNoSchedule
		}

		// The early payment applies as of the first not-fully-paid
		// installment, regardless of which one is current by date.
		earlyMonth := highestPaidNumber(installments) + 1

		currentBalance := account.Principal
		if earlyMonth > 1 {
			prev := findByNumber(installments, earlyMonth-1)
			if prev == nil {
				return ErrInvalidEarlyPaymentMonth
			}
			currentBalance = prev.RemainingBalance
		}

		if amount.GreaterThan(currentBalance) {
			return &ExceedsDebtError{
				AccountID:   accountID,
				Outstanding: currentBalance,
				Requested:   amount,
			}
		}

		if amount.Equal(currentBalance) {
			// Full payoff: drop the rows not yet carrying money, no
			// replacement schedule. Paid and partial history survives.
			var unpaidIDs []InstallmentID
			for _, inst := range installments {
				if inst.Status == StatusPending || inst.Status == StatusOverdue {
					unpaidIDs = append(unpaidIDs, inst.ID)
				}
			}
			if err := s.DeleteInstallments(ctx, accountID, unpaidIDs); err != nil {
				return err
			}
			return c.refreshAccountBalance(ctx, s, accountID)
		}

		// Every row at or after the early-payment month belongs to the
		// superseded schedule version; paid history sits strictly before
		// earlyMonth by construction. A partial row in that range is
		// replaced like the rest, but its accumulated payment carries over
		// to the regenerated row with the same number.
		var replacedIDs []InstallmentID
		partials := make(map[int]Installment)
		for _, inst := range installments {
			if inst.PaymentNumber < earlyMonth {
				continue
			}
			if inst.Status == StatusPartial {
				partials[inst.PaymentNumber] = inst
			}
			replacedIDs = append(replacedIDs, inst.ID)
		}

		first := findByNumber(installments, earlyMonth)
		if first == nil {
			return ErrInvalidEarlyPaymentMonth
		}

		newPrincipal := currentBalance.Sub(amount)
		firstDue := first.PaymentDate
		terms := LoanTerms{
			Principal:        newPrincipal,
			AnnualRate:       account.AnnualRate,
			TermMonths:       account.TermMonths - (earlyMonth - 1),
			StartDate:        firstDue,
			FirstPaymentDate: &firstDue,
			Method:           account.Method,
		}

		tail, err := GenerateSchedule(terms)
		if err != nil {
			return err
		}
		for i := range tail {
			tail[i].ID = InstallmentID(uuid.NewString())
			tail[i].AccountID = accountID
			tail[i].PaymentNumber += earlyMonth - 1

			// Fold carried-over partial money into the new row.
			if prev, ok := partials[tail[i].PaymentNumber]; ok {
				tail[i].PaidAmount = prev.PaidAmount
				tail[i].PaidDate = prev.PaidDate
				tail[i].Status = StatusPartial
				if tail[i].FullyPaid() {
					tail[i].Status = StatusPaid
				}
			}
		}

		// Delete+insert, never in-place edit: the tail amounts changed.
		if err := s.DeleteInstallments(ctx, accountID, replacedIDs); err != nil {
			return err
		}
		if err := s.InsertInstallments(ctx, tail); err != nil {
			return err
		}
		return c.refreshAccountBalance(ctx, s, accountID)
	})
}

// UpdateOverduePayments flags every pending installment whose due date has
// passed. Idempotent; safe to call on every screen focus.
func (c *Coordinator) UpdateOverduePayments(ctx context.Context, accountID AccountID) error {
	lock := c.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	today := DateOnly(c.Now())

	return c.store.WithTx(ctx, func(s Store) error {
		installments, err := s.Installments(ctx, accountID)
		if err != nil {
			return err
		}
		for _, inst := range installments {
			if inst.Status != StatusPending || !BeforeDay(inst.PaymentDate, today) {
				continue
			}
			inst.Status = StatusOverdue
			if err := s.UpdateInstallment(ctx, inst); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// QUERIES
// =============================================================================

// Stats returns the read-only aggregate view of an account's schedule.
func (c *Coordinator) Stats(ctx context.Context, accountID AccountID) (*CreditStats, error) {
	if _, err := c.store.Account(ctx, accountID); err != nil {
		return nil, err
	}
	installments, err := c.store.Installments(ctx, accountID)
	if err != nil {
		return nil, err
	}
	stats := ComputeStats(accountID, installments)
	return &stats, nil
}

// =============================================================================
// BALANCE DERIVATION
// =============================================================================

// refreshAccountBalance reloads the schedule and rewrites the account's
// derived balance within the current transaction.
func (c *Coordinator) refreshAccountBalance(ctx context.Context, s Store, accountID AccountID) error {
	account, err := s.Account(ctx, accountID)
	if err != nil {
		return err
	}
	installments, err := s.Installments(ctx, accountID)
	if err != nil {
		return err
	}
	return c.syncAccountBalance(ctx, s, *account, installments)
}

func (c *Coordinator) syncAccountBalance(ctx context.Context, s Store, account Account, installments []Installment) error {
	outstanding := account.Principal
	for _, inst := range installments {
		if inst.Status == StatusPaid {
			// Rows are ordered by payment number; the last paid one wins.
			outstanding = inst.RemainingBalance
		}
	}
	// Debt accounts carry a non-positive balance.
	return s.UpdateAccountBalance(ctx, account.ID, outstanding.Neg())
}

// =============================================================================
// SCHEDULE SCANS
// =============================================================================

func highestPaidNumber(installments []Installment) int {
	highest := 0
	for _, inst := range installments {
		if inst.Status == StatusPaid && inst.PaymentNumber > highest {
			highest = inst.PaymentNumber
		}
	}
	return highest
}

func findByNumber(installments []Installment, number int) *Installment {
	for i := range installments {
		if installments[i].PaymentNumber == number {
			return &installments[i]
		}
	}
	return nil
}
