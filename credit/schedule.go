/*
schedule.go - Payment schedule generation

PURPOSE:
  Pure, deterministic construction of a loan's installment list from its
  terms. No I/O, no clock access: the same terms always produce the same
  schedule. The coordinator stamps account IDs and persists the result.

ALGORITHMS:
  Annuity:        A = P * i * (1+i)^n / ((1+i)^n - 1), rounded once and
                  held constant. Interest recomputed monthly on the
                  outstanding balance; principal is the remainder.
  Differentiated: Principal portion fixed at round(P/n); interest computed
                  monthly on the outstanding balance, so the total payment
                  declines over the life of the loan.

REMAINDER ABSORPTION:
  Both methods special-case the final installment: its principal portion is
  forced to the exact remaining balance and the total recomputed, so the
  balance lands on exactly zero. All rounding drift accumulated by the
  per-month rounding lands in the last payment. This is the required
  policy, not an accident - do not redistribute it.

SEE ALSO:
  - types.go: LoanTerms, Installment
  - dates.go: Month-rollover rule for due dates
  - coordinator.go: Persists and regenerates schedules
*/
package credit

import (
	"time"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// GenerateSchedule computes the full installment list for the given terms.
// Installments come back with PaymentNumber 1..TermMonths, status pending,
// and no account or row IDs; callers stamp those before persisting.
func GenerateSchedule(terms LoanTerms) ([]Installment, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}

	switch terms.Method {
	case MethodAnnuity:
		return annuitySchedule(terms), nil
	default:
		return differentiatedSchedule(terms), nil
	}
}

// AnnuityPayment computes the constant monthly payment for an annuity loan,
// rounded to the minor unit. Exposed for payment previews.
func AnnuityPayment(principal decimal.Decimal, monthlyRate decimal.Decimal, months int) decimal.Decimal {
	n := decimal.NewFromInt(int64(months))
	if monthlyRate.IsZero() {
		return RoundMoney(principal.Div(n))
	}

	growth := one.Add(monthlyRate).Pow(n)
	payment := principal.Mul(monthlyRate).Mul(growth).Div(growth.Sub(one))
	return RoundMoney(payment)
}

func annuitySchedule(terms LoanTerms) []Installment {
	rate := terms.MonthlyRate()
	payment := AnnuityPayment(terms.Principal, rate, terms.TermMonths)

	return buildSchedule(terms, func(remaining decimal.Decimal, month int) (principal, interest, total decimal.Decimal) {
		interest = RoundMoney(remaining.Mul(rate))
		if month == terms.TermMonths {
			// Final installment absorbs all rounding drift.
			principal = remaining
			total = RoundMoney(principal.Add(interest))
			return principal, interest, total
		}
		principal = RoundMoney(payment.Sub(interest))
		return principal, interest, payment
	})
}

func differentiatedSchedule(terms LoanTerms) []Installment {
	rate := terms.MonthlyRate()
	base := RoundMoney(terms.Principal.Div(decimal.NewFromInt(int64(terms.TermMonths))))

	return buildSchedule(terms, func(remaining decimal.Decimal, month int) (principal, interest, total decimal.Decimal) {
		interest = RoundMoney(remaining.Mul(rate))
		principal = base
		if month == terms.TermMonths {
			principal = remaining
		}
		total = RoundMoney(principal.Add(interest))
		return principal, interest, total
	})
}

// buildSchedule runs the per-month split function over the declining
// balance and attaches due dates.
func buildSchedule(terms LoanTerms, split func(remaining decimal.Decimal, month int) (principal, interest, total decimal.Decimal)) []Installment {
	installments := make([]Installment, 0, terms.TermMonths)
	remaining := RoundMoney(terms.Principal)

	for month := 1; month <= terms.TermMonths; month++ {
		principal, interest, total := split(remaining, month)
		remaining = remaining.Sub(principal)

		installments = append(installments, Installment{
			PaymentNumber:    month,
			PaymentDate:      dueDate(terms, month),
			TotalPayment:     total,
			PrincipalPayment: principal,
			InterestPayment:  interest,
			RemainingBalance: remaining,
			Status:           StatusPending,
			PaidAmount:       decimal.Zero,
		})
	}
	return installments
}

// dueDate derives the due date for installment number month (1-based).
// An explicit first-payment date is used exactly for installment 1 and
// anchors month stepping for the rest; otherwise dates step from the
// start date directly (installment 1 = start + 1 month).
func dueDate(terms LoanTerms, month int) time.Time {
	if terms.FirstPaymentDate != nil {
		return AddMonthsClamped(*terms.FirstPaymentDate, month-1)
	}
	return AddMonthsClamped(terms.StartDate, month)
}
