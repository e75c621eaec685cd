/*
handlers.go - HTTP API handlers for the credit engine

PURPOSE:
  Exposes the amortization engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the coordinator.

ENDPOINTS:
  Preview:
    POST   /api/schedule/preview               Generate a schedule without persisting

  Accounts:
    POST   /api/accounts                       Create a loan account
    GET    /api/accounts/{id}                  Get account details
    GET    /api/accounts/{id}/schedule         Get (or lazily create) the schedule
    GET    /api/accounts/{id}/stats            Aggregate schedule stats
    POST   /api/accounts/{id}/early-repayment  Extra principal payment
    POST   /api/accounts/{id}/overdue-sweep    Flag overdue installments

  Installments:
    POST   /api/installments/{id}/pay          Mark paid (full by default)
    POST   /api/installments/{id}/partial      Accumulating partial payment

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Account/installment/schedule not found
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/credit-engine/credit"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       credit.TxStore
	Coordinator *credit.Coordinator
}

// NewHandler creates a new handler over the given store.
func NewHandler(store credit.TxStore) *Handler {
	return &Handler{
		Store:       store,
		Coordinator: credit.NewCoordinator(store),
	}
}

// =============================================================================
// PREVIEW HANDLERS
// =============================================================================

// PreviewSchedule generates a schedule from raw terms without persisting
// anything, for showing a projection before the loan exists.
func (h *Handler) PreviewSchedule(w http.ResponseWriter, r *http.Request) {
	var req PreviewScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	terms, err := termsFromRequest(req.Principal, req.AnnualRate, req.TermMonths,
		req.StartDate, req.FirstPaymentDate, req.Method)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid loan terms", err)
		return
	}

	installments, err := credit.GenerateSchedule(terms)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid loan terms", err)
		return
	}

	writeJSON(w, http.StatusOK, toInstallmentDTOs(installments))
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// CreateAccount creates a loan account. The schedule itself is generated
// lazily on first view.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	terms, err := termsFromRequest(req.Principal, req.AnnualRate, req.TermMonths,
		req.StartDate, req.FirstPaymentDate, req.Method)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid loan terms", err)
		return
	}
	if err := terms.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid loan terms", err)
		return
	}

	accountType := credit.AccountType(req.Type)
	if accountType == "" {
		accountType = credit.AccountCredit
	}

	account := credit.Account{
		ID:               credit.AccountID(uuid.NewString()),
		Name:             req.Name,
		Type:             accountType,
		Principal:        terms.Principal,
		AnnualRate:       terms.AnnualRate,
		TermMonths:       terms.TermMonths,
		StartDate:        terms.StartDate,
		FirstPaymentDate: terms.FirstPaymentDate,
		Method:           terms.Method,
		// Debt accounts carry a non-positive balance from day one.
		Balance: terms.Principal.Neg(),
	}

	if err := h.Store.SaveAccount(r.Context(), account); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create account", err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountDTO(account))
}

// GetAccount returns a single account.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := credit.AccountID(chi.URLParam(r, "id"))

	account, err := h.Store.Account(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get account", err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountDTO(*account))
}

// GetSchedule returns the account's schedule, generating it on first access.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id := credit.AccountID(chi.URLParam(r, "id"))

	installments, err := h.Coordinator.GetOrCreateSchedule(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to load schedule", err)
		return
	}

	writeJSON(w, http.StatusOK, toInstallmentDTOs(installments))
}

// GetStats returns the aggregate schedule view.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	id := credit.AccountID(chi.URLParam(r, "id"))

	stats, err := h.Coordinator.Stats(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to compute stats", err)
		return
	}

	writeJSON(w, http.StatusOK, toStatsDTO(*stats))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// MarkPaid records a payment against an installment. An omitted amount
// means the full scheduled total.
func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id := credit.InstallmentID(chi.URLParam(r, "id"))

	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var amount *decimal.Decimal
	if req.Amount != "" {
		parsed, err := parseAmount(req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid amount", err)
			return
		}
		amount = &parsed
	}

	paidDate, err := optionalDay(req.PaidDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paid_date format (use YYYY-MM-DD)", err)
		return
	}

	if err := h.Coordinator.MarkPaymentAsPaid(r.Context(), id, amount, paidDate); err != nil {
		writeDomainError(w, "Failed to record payment", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PartialPayment accumulates a validated partial payment.
func (h *Handler) PartialPayment(w http.ResponseWriter, r *http.Request) {
	id := credit.InstallmentID(chi.URLParam(r, "id"))

	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	paidDate, err := optionalDay(req.PaidDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paid_date format (use YYYY-MM-DD)", err)
		return
	}

	if err := h.Coordinator.MakePartialPayment(r.Context(), id, amount, paidDate); err != nil {
		writeDomainError(w, "Failed to record partial payment", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// EarlyRepayment applies an extra principal payment against an account.
func (h *Handler) EarlyRepayment(w http.ResponseWriter, r *http.Request) {
	id := credit.AccountID(chi.URLParam(r, "id"))

	var req EarlyRepaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	repaymentDate, err := optionalDay(req.RepaymentDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid repayment_date format (use YYYY-MM-DD)", err)
		return
	}

	if err := h.Coordinator.MakeEarlyRepayment(r.Context(), id, amount, repaymentDate); err != nil {
		writeDomainError(w, "Failed to apply early repayment", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// OverdueSweep flags overdue installments for an account.
func (h *Handler) OverdueSweep(w http.ResponseWriter, r *http.Request) {
	id := credit.AccountID(chi.URLParam(r, "id"))

	if err := h.Coordinator.UpdateOverduePayments(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to sweep overdue installments", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

func termsFromRequest(principal, annualRate string, termMonths int, startDate, firstPaymentDate, method string) (credit.LoanTerms, error) {
	var terms credit.LoanTerms

	p, err := parseAmount(principal)
	if err != nil {
		return terms, err
	}
	rate, err := parseAmount(annualRate)
	if err != nil {
		return terms, err
	}
	start, err := parseDay(startDate)
	if err != nil {
		return terms, err
	}

	terms = credit.LoanTerms{
		Principal:  p,
		AnnualRate: rate,
		TermMonths: termMonths,
		StartDate:  start,
		Method:     credit.PaymentMethod(method),
	}
	if firstPaymentDate != "" {
		first, err := parseDay(firstPaymentDate)
		if err != nil {
			return terms, err
		}
		terms.FirstPaymentDate = &first
	}
	return terms, nil
}

func optionalDay(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	day, err := parseDay(s)
	if err != nil {
		return nil, err
	}
	return &day, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case credit.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case credit.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
