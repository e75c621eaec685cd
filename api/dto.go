/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY ON THE WIRE:
  Monetary amounts travel as decimal strings ("10661.85"), never floats.
  Dates travel as YYYY-MM-DD.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/credit-engine/credit"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// PreviewScheduleRequest carries loan terms for a pre-persistence preview.
type PreviewScheduleRequest struct {
	Principal        string `json:"principal"`
	AnnualRate       string `json:"annual_rate"`
	TermMonths       int    `json:"term_months"`
	StartDate        string `json:"start_date"`
	FirstPaymentDate string `json:"first_payment_date,omitempty"`
	Method           string `json:"method"`
}

// CreateAccountRequest creates a credit account with its loan terms.
type CreateAccountRequest struct {
	Name             string `json:"name"`
	Type             string `json:"type"`
	Principal        string `json:"principal"`
	AnnualRate       string `json:"annual_rate"`
	TermMonths       int    `json:"term_months"`
	StartDate        string `json:"start_date"`
	FirstPaymentDate string `json:"first_payment_date,omitempty"`
	Method           string `json:"method"`
}

// PaymentRequest records a payment against one installment.
// Amount is optional for mark-paid (defaults to the scheduled total) and
// required for partial payments.
type PaymentRequest struct {
	Amount   string `json:"amount,omitempty"`
	PaidDate string `json:"paid_date,omitempty"`
}

// EarlyRepaymentRequest applies an extra principal payment to an account.
type EarlyRepaymentRequest struct {
	Amount        string `json:"amount"`
	RepaymentDate string `json:"repayment_date,omitempty"`
}

// AccountDTO represents a loan account in API responses.
type AccountDTO struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	Principal        string `json:"principal"`
	AnnualRate       string `json:"annual_rate"`
	TermMonths       int    `json:"term_months"`
	StartDate        string `json:"start_date"`
	FirstPaymentDate string `json:"first_payment_date,omitempty"`
	Method           string `json:"method"`
	Balance          string `json:"balance"`
}

// InstallmentDTO represents one schedule row in API responses.
type InstallmentDTO struct {
	ID               string `json:"id,omitempty"`
	PaymentNumber    int    `json:"payment_number"`
	PaymentDate      string `json:"payment_date"`
	TotalPayment     string `json:"total_payment"`
	PrincipalPayment string `json:"principal_payment"`
	InterestPayment  string `json:"interest_payment"`
	RemainingBalance string `json:"remaining_balance"`
	Status           string `json:"status"`
	PaidAmount       string `json:"paid_amount"`
	PaidDate         string `json:"paid_date,omitempty"`
}

// StatsDTO represents the aggregate schedule view.
type StatsDTO struct {
	AccountID         string `json:"account_id"`
	TotalPayable      string `json:"total_payable"`
	PaidAmount        string `json:"paid_amount"`
	RemainingPayable  string `json:"remaining_payable"`
	NextPaymentDate   string `json:"next_payment_date,omitempty"`
	NextPaymentAmount string `json:"next_payment_amount,omitempty"`
	PaidCount         int    `json:"paid_count"`
	OverdueCount      int    `json:"overdue_count"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toAccountDTO(a credit.Account) AccountDTO {
	dto := AccountDTO{
		ID:         string(a.ID),
		Name:       a.Name,
		Type:       string(a.Type),
		Principal:  a.Principal.String(),
		AnnualRate: a.AnnualRate.String(),
		TermMonths: a.TermMonths,
		StartDate:  a.StartDate.Format("2006-01-02"),
		Method:     string(a.Method),
		Balance:    a.Balance.String(),
	}
	if a.FirstPaymentDate != nil {
		dto.FirstPaymentDate = a.FirstPaymentDate.Format("2006-01-02")
	}
	return dto
}

func toInstallmentDTOs(installments []credit.Installment) []InstallmentDTO {
	dtos := make([]InstallmentDTO, len(installments))
	for i, inst := range installments {
		dtos[i] = InstallmentDTO{
			ID:               string(inst.ID),
			PaymentNumber:    inst.PaymentNumber,
			PaymentDate:      inst.PaymentDate.Format("2006-01-02"),
			TotalPayment:     inst.TotalPayment.String(),
			PrincipalPayment: inst.PrincipalPayment.String(),
			InterestPayment:  inst.InterestPayment.String(),
			RemainingBalance: inst.RemainingBalance.String(),
			Status:           string(inst.Status),
			PaidAmount:       inst.PaidAmount.String(),
		}
		if inst.PaidDate != nil {
			dtos[i].PaidDate = inst.PaidDate.Format("2006-01-02")
		}
	}
	return dtos
}

func toStatsDTO(s credit.CreditStats) StatsDTO {
	dto := StatsDTO{
		AccountID:        string(s.AccountID),
		TotalPayable:     s.TotalPayable.String(),
		PaidAmount:       s.PaidAmount.String(),
		RemainingPayable: s.RemainingPayable.String(),
		PaidCount:        s.PaidCount,
		OverdueCount:     s.OverdueCount,
	}
	if s.NextPaymentDate != nil {
		dto.NextPaymentDate = s.NextPaymentDate.Format("2006-01-02")
	}
	if s.NextPaymentAmount != nil {
		dto.NextPaymentAmount = s.NextPaymentAmount.String()
	}
	return dto
}

// parseDay parses a YYYY-MM-DD date.
func parseDay(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// parseAmount parses a decimal amount string.
func parseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
