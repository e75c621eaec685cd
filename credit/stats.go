package credit

import "github.com/shopspring/decimal"

// =============================================================================
// CREDIT STATS - Derived aggregates over a schedule
// =============================================================================

// ComputeStats derives the aggregate view of a schedule. Pure; the
// coordinator exposes it against persisted rows.
func ComputeStats(accountID AccountID, installments []Installment) CreditStats {
	stats := CreditStats{
		AccountID:        accountID,
		TotalPayable:     decimal.Zero,
		PaidAmount:       decimal.Zero,
		RemainingPayable: decimal.Zero,
	}

	for _, inst := range installments {
		stats.TotalPayable = stats.TotalPayable.Add(inst.TotalPayment)

		switch inst.Status {
		case StatusPaid:
			stats.PaidCount++
			stats.PaidAmount = stats.PaidAmount.Add(inst.PaidAmount)
		case StatusPartial:
			stats.PaidAmount = stats.PaidAmount.Add(inst.PaidAmount)
		case StatusOverdue:
			stats.OverdueCount++
		}

		// Earliest installment still awaiting money. Rows arrive ordered by
		// payment number, so the first match wins.
		if inst.Status != StatusPaid && stats.NextPaymentDate == nil {
			date := inst.PaymentDate
			amount := inst.TotalPayment.Sub(inst.PaidAmount)
			stats.NextPaymentDate = &date
			stats.NextPaymentAmount = &amount
		}
	}

	stats.RemainingPayable = stats.TotalPayable.Sub(stats.PaidAmount)
	return stats
}
