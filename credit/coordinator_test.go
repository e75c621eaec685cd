package credit_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/credit-engine/credit"
	"github.com/warp/credit-engine/credit/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestCoordinator() (*credit.Coordinator, *store.TxMemory) {
	mem := store.NewTxMemory()
	c := credit.NewCoordinator(mem)
	c.Now = func() time.Time { return day(2024, time.January, 15) }
	return c, mem
}

// seedCreditAccount stores the standard test loan: 120000 at 12% over
// 12 months, annuity, starting 2024-01-01.
func seedCreditAccount(t *testing.T, mem *store.TxMemory) credit.Account {
	t.Helper()
	account := credit.Account{
		ID:         "acc-1",
		Name:       "Car loan",
		Type:       credit.AccountCredit,
		Principal:  money("120000"),
		AnnualRate: money("12"),
		TermMonths: 12,
		StartDate:  day(2024, time.January, 1),
		Method:     credit.MethodAnnuity,
		Balance:    money("-120000"),
	}
	require.NoError(t, mem.SaveAccount(context.Background(), account))
	return account
}

func seedCheckingAccount(t *testing.T, mem *store.TxMemory) credit.Account {
	t.Helper()
	account := credit.Account{
		ID:      "acc-2",
		Name:    "Checking",
		Type:    credit.AccountChecking,
		Balance: money("500"),
	}
	require.NoError(t, mem.SaveAccount(context.Background(), account))
	return account
}

func mustSchedule(t *testing.T, c *credit.Coordinator, id credit.AccountID) []credit.Installment {
	t.Helper()
	installments, err := c.GetOrCreateSchedule(context.Background(), id)
	require.NoError(t, err)
	return installments
}

func accountBalance(t *testing.T, mem *store.TxMemory, id credit.AccountID) decimal.Decimal {
	t.Helper()
	account, err := mem.Account(context.Background(), id)
	require.NoError(t, err)
	return account.Balance
}

func sumTotal(installments []credit.Installment) decimal.Decimal {
	sum := decimal.Zero
	for _, inst := range installments {
		sum = sum.Add(inst.TotalPayment)
	}
	return sum
}

// =============================================================================
// LAZY SCHEDULE CREATION
// =============================================================================

func TestGetOrCreateSchedule_GeneratesOnFirstAccess(t *testing.T) {
	// GIVEN: A credit account with no schedule yet
	// WHEN: The schedule is viewed twice
	// THEN: It is generated once and both views return the same rows

	c, mem := newTestCoordinator()
	account := seedCreditAccount(t, mem)
	ctx := context.Background()

	first := mustSchedule(t, c, account.ID)
	require.Len(t, first, 12)
	for _, inst := range first {
		assert.Equal(t, account.ID, inst.AccountID)
		assert.NotEmpty(t, inst.ID)
	}

	// Nothing paid yet: outstanding equals the original principal.
	assert.Equal(t, "-120000.00", accountBalance(t, mem, account.ID).StringFixed(2))

	second, err := c.GetOrCreateSchedule(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, second, 12)
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID, "regenerated instead of reloaded")
	}
}

func TestGetOrCreateSchedule_NotACredit(t *testing.T) {
	c, mem := newTestCoordinator()
	account := seedCheckingAccount(t, mem)

	_, err := c.GetOrCreateSchedule(context.Background(), account.ID)
	assert.ErrorIs(t, err, credit.ErrNotACredit)
}

func TestGetOrCreateSchedule_AccountNotFound(t *testing.T) {
	c, _ := newTestCoordinator()

	_, err := c.GetOrCreateSchedule(context.Background(), "missing")
	assert.ErrorIs(t, err, credit.ErrAccountNotFound)
}

// =============================================================================
// MARK PAID
// =============================================================================

func TestMarkPaymentAsPaid_DefaultsToFullPayment(t *testing.T) {
	c, mem := newTestCoordinator()
	account := seedCreditAccount(t, mem)
	installments := mustSchedule(t, c, account.ID)
	ctx := context.Background()

	require.NoError(t, c.MarkPaymentAsPaid(ctx, installments[0].ID, nil, nil))

	updated, err := mem.Installment(ctx, installments[0].ID)
	require.NoError(t, err)
	assert.Equal(t, credit.StatusPaid, updated.Status)
	assert.True(t, updated.PaidAmount.Equal(updated.TotalPayment))
	require.NotNil(t, updated.PaidDate)
	assert.Equal(t, "2024-01-15", updated.PaidDate.Format("2006-01-02"))

	// Balance derives from the paid installment's own bookkeeping.
	assert.Equal(t, "-110538.15", accountBalance(t, mem, account.ID).StringFixed(2))
}

func TestMarkPaymentAsPaid_PartialAmount(t *testing.T) {
	c, mem := newTestCoordinator()
	account := seedCreditAccount(t, mem)
	installments := mustSchedule(t, c, account.ID)
	ctx := context.Background()

	amount := money("5000")
	require.NoError(t, c.MarkPaymentAsPaid(ctx, installments[0].ID, &amount, nil))

	updated, err := mem.Installment(ctx, installments[0].ID)
	require.NoError(t, err)
	assert.Equal(t, credit.StatusPartial, updated.Status)
	assert.Equal(t, "5000.00", updated.PaidAmount.StringFixed(2))

	// No installment is fully paid, so the balance stays at the principal.
	assert.Equal(t, "-120000.00", accountBalance(t, mem, account.ID).StringFixed(2))
}

func TestMarkPaymentAsPaid_OverpaymentAccepted(t *testing.T) {
	// Mark-paid deliberately skips amount validation: an overpayment marks
	// the row paid without excess tracking.
	c, mem := newTestCoordinator()
	account := seedCreditAccount(t, mem)
	installments := mustSchedule(t, c, account.ID)
	ctx := context.Background()

	amount := money("999999")
	require.NoError(t, c.MarkPaymentAsPaid(ctx, installments[0].ID, &amount, nil))

	updated, err := mem.Installment(ctx, installments[0].ID)
	require.NoError(t, err)
	assert.Equal(t, credit.StatusPaid, updated.Status)
	assert.Equal(t, "999999.00", updated.PaidAmount.StringFixed(2))
}

func TestMarkPaymentAsPaid_UnknownInstallment(t *testing.T) {
	c, _ := newTestCoordinator()
	err := c.MarkPaymentAsPaid(context.Background(), "missing", nil, nil)
	assert.ErrorIs(t, err, credit.ErrInstallmentNotFound)
}

// =============================================================================
// PARTIAL PAYMENTS
// =============================================================================

func TestMakePartialPayment_RejectsNonPositiveAmount(t *testing.T) {
	c, mem := newTestCoordinator()
	account := seedCreditAccount(t, mem)
	installments := mustSchedule(t, c, account.ID)

	err := c.MakePartialPayment(context.Background(), installments[0].ID, decimal.Zero, nil)
	assert.ErrorIs(t, err, credit.ErrInvalidAmount)

	err = c.MakePartialPayment(context.Background(), installments[0].ID, money("-10"), nil)
	assert.ErrorIs(t, err, credit.ErrInvalidAmount)
}

func TestMakePartialPayment_RejectsExceedingScheduledAmount(t *testing.T) {
	c, mem := newTestCoordinator()
	account := seedCreditAccount(t, mem)
	installments := mustSchedule(t, c, account.ID)

	err := c.MakePartialPayment(context.Background(), installments[0].ID, money("10661.86"), nil)
	require.ErrorIs(t, err, credit.ErrExceedsScheduledAmount)

	// Failed validation writes nothing.
	updated, err2 := mem.Installment(context.Background(), installments[0].ID)
	require.NoError(t, err2)
	assert.Equal(t, credit.StatusPending, updated.Status)
	assert.True(t, updated.PaidAmount.IsZero())
}

func TestMakePartialPayment_PartialThenFull(t *testing.T) {
	// GIVEN: A pending installment with total 10661.85
	// WHEN: Two partial payments sum to exactly the scheduled total
	// THEN: The installment ends up paid

	c, mem := newTestCoordinator()
	account := seedCreditAccount(t, mem)
	installments := mustSchedule(t, c, account.ID)
	ctx := context.Background()

	require.NoError(t, c.MakePartialPayment(ctx, installments[0].ID, money("4000"), nil))

	mid, err := mem.Installment(ctx, installments[0].ID)
	require.NoError(t, err)
	assert.Equal(t, credit.StatusPartial, mid.Status)
	assert.Equal(t, "4000.00", mid.PaidAmount.StringFixed(2))

	require.NoError(t, c.MakePartialPayment(ctx, installments[0].ID, money("6661.85"), nil))

	final, err := mem.Installment(ctx, installments[0].ID)
	require.NoError(t, err)
	assert.Equal(t, credit.StatusPaid, final.Status)
	assert.Equal(t, "10661.85", final.PaidAmount.StringFixed(2))

	assert.Equal(t, "-110538.15", accountBalance(t, mem, account.ID).StringFixed(2))
}

// =============================================================================
// OVERDUE SWEEP
// =============================================================================

func TestUpdateOverduePayments_FlagsPastDuePending(t *testing.T) {
	c, mem := newTestCoordinator()
	account := seedCreditAccount(t, mem)
	mustSchedule(t, c, account.ID)
	ctx := context.Background()

	// Mid-March: installments due Feb 1 and Mar 1 have passed.
	c.Now = func() time.Time { return day(2024, time.March, 15) }

	require.NoError(t, c.UpdateOverduePayments(ctx, account.ID))

	installments, err := mem.Installments(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, credit.StatusOverdue, installments[0].Status)
	assert.Equal(t, credit.StatusOverdue, installments[1].Status)
	for _, inst := range installments[2:] {
		assert.Equal(t, credit.StatusPending, inst.Status)
	}
}

func TestUpdateOverduePayments_Idempotent(t *testing.T) {
	c, mem := newTestCoordinator()
	account := seedCreditAccount(t, mem)
	mustSchedule(t, c, account.ID)
	ctx := context.Background()

	c.Now = func() time.Time { return day(2024, time.March, 15) }

	require.NoError(t, c.UpdateOverduePayments(ctx, account.ID))
	once, err := mem.Installments(ctx, account.ID)
	require.NoError(t, err)

	require.NoError(t, c.UpdateOverduePayments(ctx, account.ID))
	twice, err := mem.Installments(ctx, account.ID)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestUpdateOverduePayments_SkipsPaidAndPartial(t *testing.T) {
	c, mem := newTestCoordinator()
	account := seedCreditAccount(t, mem)
	installments := mustSchedule(t, c, account.ID)
	ctx := context.Background()

	require.NoError(t, c.MarkPaymentAsPaid(ctx, installments[0].ID, nil, nil))
	require.NoError(t, c.MakePartialPayment(ctx, installments[1].ID, money("100"), nil))

	c.Now = func() time.Time { return day(2024, time.April, 15) }
	require.NoError(t, c.UpdateOverduePayments(ctx, account.ID))

	updated, err := mem.Installments(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, credit.StatusPaid, updated[0].Status)
	assert.Equal(t, credit.StatusPartial, updated[1].Status)
	assert.Equal(t, credit.StatusOverdue, updated[2].Status)
}

func TestOverdueInstallment_PaymentResolvesIt(t *testing.T) {
	c, mem := newTestCoordinator()
	account := seedCreditAccount(t, mem)
	installments := mustSchedule(t, c, account.ID)
	ctx := context.Background()

	c.Now = func() time.Time { return day(2024, time.February, 15) }
	require.NoError(t, c.UpdateOverduePayments(ctx, account.ID))
	require.NoError(t, c.MarkPaymentAsPaid(ctx, installments[0].ID, nil, nil))

	updated, err := mem.Installment(ctx, installments[0].ID)
	require.NoError(t, err)
	assert.Equal(t, credit.StatusPaid, updated.Status)
}

// =============================================================================
// EARLY REPAYMENT
// =============================================================================

func payFirstN(t *testing.T, c *credit.Coordinator, installments []credit.Installment, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, c.MarkPaymentAsPaid(context.Background(), installments[i].ID, nil, nil))
	}
}

func TestMakeEarlyRepayment_Validation(t *testing.T) {
	c, mem := newTestCoordinator()
	account := seedCreditAccount(t, mem)
	checking := seedCheckingAccount(t, mem)
	ctx := context.Background()

	err := c.MakeEarlyRepayment(ctx, account.ID, decimal.Zero, nil)
	assert.ErrorIs(t, err, credit.ErrInvalidAmount)

	err = c.MakeEarlyRepayment(ctx, checking.ID, money("100"), nil)
	assert.ErrorIs(t, err, credit.ErrNotACredit)

	// Credit account whose schedule was never generated.
	err = c.MakeEarlyRepayment(ctx, account.ID, money("100"), nil)
	assert.ErrorIs(t, err, credit.ErrNoSchedule)
}

func TestMakeEarlyRepayment_ExceedsDebt(t *testing.T) {
	c, mem := newTestCoordinator()
	account := seedCreditAccount(t, mem)
	installments := mustSchedule(t, c, account.ID)
	payFirstN(t, c, installments, 3)
	ctx := context.Background()

	// Outstanding after 3 paid installments is 91329.65.
	err := c.MakeEarlyRepayment(ctx, account.ID, money("91329.66"), nil)
	require.ErrorIs(t, err, credit.ErrExceedsDebt)

	var exceeds *credit.ExceedsDebtError
	require.ErrorAs(t, err, &exceeds)
	assert.Equal(t, "91329.65", exceeds.Outstanding.StringFixed(2))

	// Schedule untouched.
	after, err2 := mem.Installments(ctx, account.ID)
	require.NoError(t, err2)
	assert.Len(t, after, 12)
}

func TestMakeEarlyRepayment_FullPayoff(t *testing.T) {
	// GIVEN: 3 installments paid, outstanding 91329.65
	// WHEN: Early repayment equals the outstanding balance
	// THEN: All unpaid installments disappear, paid history survives

	c, mem := newTestCoordinator()
	account := seedCreditAccount(t, mem)
	installments := mustSchedule(t, c, account.ID)
	payFirstN(t, c, installments, 3)
	ctx := context.Background()

	require.NoError(t, c.MakeEarlyRepayment(ctx, account.ID, money("91329.65"), nil))

	remaining, err := mem.Installments(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 3)
	for _, inst := range remaining {
		assert.Equal(t, credit.StatusPaid, inst.Status)
	}
}

func TestMakeEarlyRepayment_PartialPayoff(t *testing.T) {
	// GIVEN: 3 installments paid (outstanding 91329.65)
	// WHEN: 50000 of extra principal is applied
	// THEN: The pending tail is regenerated over 9 months from 41329.65,
	//       renumbered 4..12, starting at installment 4's original due date

	c, mem := newTestCoordinator()
	account := seedCreditAccount(t, mem)
	installments := mustSchedule(t, c, account.ID)
	originalTail := installments[3:]
	payFirstN(t, c, installments, 3)
	ctx := context.Background()

	require.NoError(t, c.MakeEarlyRepayment(ctx, account.ID, money("50000"), nil))

	merged, err := mem.Installments(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, merged, 12)

	// Numbering stays one contiguous ascending sequence.
	for i, inst := range merged {
		assert.Equal(t, i+1, inst.PaymentNumber)
	}

	// History untouched, tail fresh.
	for _, inst := range merged[:3] {
		assert.Equal(t, credit.StatusPaid, inst.Status)
	}
	newTail := merged[3:]
	for _, inst := range newTail {
		assert.Equal(t, credit.StatusPending, inst.Status)
		assert.True(t, inst.PaidAmount.IsZero())
	}

	// New tail amortizes the reduced principal and keeps the original
	// payment cadence.
	assert.Equal(t, "2024-05-01", newTail[0].PaymentDate.Format("2006-01-02"))
	assert.Equal(t, "41329.65", sumPrincipal(newTail).StringFixed(2))
	assert.True(t, newTail[8].RemainingBalance.IsZero())

	// Extra principal reduces total interest cost.
	assert.True(t, sumTotal(newTail).LessThan(sumTotal(originalTail)),
		"new tail %s should cost less than original tail %s",
		sumTotal(newTail), sumTotal(originalTail))
}

func TestMakeEarlyRepayment_FoldsPartialRowIntoNewTail(t *testing.T) {
	// GIVEN: 3 installments paid and installment 4 partially paid
	// WHEN: 50000 of extra principal is applied
	// THEN: The tail regenerates from installment 4 with one contiguous
	//       numbering sequence, and the partial money carries onto the
	//       new row 4

	c, mem := newTestCoordinator()
	account := seedCreditAccount(t, mem)
	installments := mustSchedule(t, c, account.ID)
	payFirstN(t, c, installments, 3)
	ctx := context.Background()

	require.NoError(t, c.MakePartialPayment(ctx, installments[3].ID, money("4000"), nil))
	require.NoError(t, c.MakeEarlyRepayment(ctx, account.ID, money("50000"), nil))

	merged, err := mem.Installments(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, merged, 12)
	for i, inst := range merged {
		assert.Equal(t, i+1, inst.PaymentNumber)
	}

	// The old partial row is gone; its money lives on the regenerated row.
	folded := merged[3]
	assert.NotEqual(t, installments[3].ID, folded.ID)
	assert.Equal(t, credit.StatusPartial, folded.Status)
	assert.Equal(t, "4000.00", folded.PaidAmount.StringFixed(2))
	require.NotNil(t, folded.PaidDate)

	// The new tail still amortizes the reduced principal exactly.
	assert.Equal(t, "41329.65", sumPrincipal(merged[3:]).StringFixed(2))
	assert.True(t, merged[11].RemainingBalance.IsZero())
}

func TestMakeEarlyRepayment_FoldedPartialCanBecomePaid(t *testing.T) {
	// A large enough carried-over payment covers the smaller regenerated
	// total outright, so the folded row comes back paid.
	c, mem := newTestCoordinator()
	account := seedCreditAccount(t, mem)
	installments := mustSchedule(t, c, account.ID)
	payFirstN(t, c, installments, 3)
	ctx := context.Background()

	require.NoError(t, c.MakePartialPayment(ctx, installments[3].ID, money("10000"), nil))
	require.NoError(t, c.MakeEarlyRepayment(ctx, account.ID, money("80000"), nil))

	merged, err := mem.Installments(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, merged, 12)

	// 11329.65 over 9 months keeps each total well under the 10000 carried.
	folded := merged[3]
	assert.Equal(t, credit.StatusPaid, folded.Status)
	assert.Equal(t, "10000.00", folded.PaidAmount.StringFixed(2))
	assert.True(t, folded.PaidAmount.GreaterThan(folded.TotalPayment))
}

func TestMakeEarlyRepayment_BeforeAnyPayment(t *testing.T) {
	c, mem := newTestCoordinator()
	account := seedCreditAccount(t, mem)
	installments := mustSchedule(t, c, account.ID)
	ctx := context.Background()

	require.NoError(t, c.MakeEarlyRepayment(ctx, account.ID, money("20000"), nil))

	merged, err := mem.Installments(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, merged, 12)

	// Whole schedule replaced: same term, reduced principal, same first
	// due date.
	assert.Equal(t, 1, merged[0].PaymentNumber)
	assert.Equal(t, installments[0].PaymentDate, merged[0].PaymentDate)
	assert.Equal(t, "100000.00", sumPrincipal(merged).StringFixed(2))
}

func TestMakeEarlyRepayment_ReplacesOverdueRows(t *testing.T) {
	// Overdue rows belong to the superseded schedule version: the
	// regenerated tail replaces them along with the pending ones, so
	// numbering stays contiguous.
	c, mem := newTestCoordinator()
	account := seedCreditAccount(t, mem)
	installments := mustSchedule(t, c, account.ID)
	payFirstN(t, c, installments, 1)
	ctx := context.Background()

	c.Now = func() time.Time { return day(2024, time.April, 15) }
	require.NoError(t, c.UpdateOverduePayments(ctx, account.ID))
	require.NoError(t, c.MakeEarlyRepayment(ctx, account.ID, money("30000"), nil))

	merged, err := mem.Installments(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, merged, 12)
	for i, inst := range merged {
		assert.Equal(t, i+1, inst.PaymentNumber)
	}
	for _, inst := range merged[1:] {
		assert.Equal(t, credit.StatusPending, inst.Status)
	}
}

// =============================================================================
// STATS
// =============================================================================

func TestStats_AggregatesSchedule(t *testing.T) {
	c, mem := newTestCoordinator()
	account := seedCreditAccount(t, mem)
	installments := mustSchedule(t, c, account.ID)
	ctx := context.Background()

	require.NoError(t, c.MarkPaymentAsPaid(ctx, installments[0].ID, nil, nil))
	require.NoError(t, c.MakePartialPayment(ctx, installments[1].ID, money("5000"), nil))

	stats, err := c.Stats(ctx, account.ID)
	require.NoError(t, err)

	assert.True(t, stats.TotalPayable.Equal(sumTotal(installments)))

	wantPaid := installments[0].TotalPayment.Add(money("5000"))
	assert.True(t, stats.PaidAmount.Equal(wantPaid),
		"paid %s, want %s", stats.PaidAmount, wantPaid)
	assert.True(t, stats.RemainingPayable.Equal(stats.TotalPayable.Sub(wantPaid)))

	assert.Equal(t, 1, stats.PaidCount)
	assert.Equal(t, 0, stats.OverdueCount)

	// Next payment is the partially paid installment, net of what's in.
	require.NotNil(t, stats.NextPaymentDate)
	assert.Equal(t, "2024-03-01", stats.NextPaymentDate.Format("2006-01-02"))
	require.NotNil(t, stats.NextPaymentAmount)
	assert.Equal(t, "5661.85", stats.NextPaymentAmount.StringFixed(2))
}

func TestStats_CountsOverdue(t *testing.T) {
	c, mem := newTestCoordinator()
	account := seedCreditAccount(t, mem)
	mustSchedule(t, c, account.ID)
	ctx := context.Background()

	c.Now = func() time.Time { return day(2024, time.March, 15) }
	require.NoError(t, c.UpdateOverduePayments(ctx, account.ID))

	stats, err := c.Stats(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.OverdueCount)
}

func TestStats_AccountNotFound(t *testing.T) {
	c, _ := newTestCoordinator()
	_, err := c.Stats(context.Background(), "missing")
	assert.ErrorIs(t, err, credit.ErrAccountNotFound)
}
