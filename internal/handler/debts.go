package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/debtflow/collections-engine/internal/domain"
	"github.com/debtflow/collections-engine/internal/service"
	"github.com/debtflow/collections-engine/pkg/response"
)

type DebtHandler struct {
	service   *service.LedgerService
	validator *validator.Validate
}

func NewDebtHandler(service *service.LedgerService) *DebtHandler {
	return &DebtHandler{
		service:   service,
		validator: validator.New(),
	}
}

func debtIDFromRequest(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["debtId"])
	return id, err == nil
}

// Create opens a new debt.
func (h *DebtHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.OpenDebtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	debt, err := h.service.OpenDebt(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Created(w, debt)
}

// Get returns a debt by id.
func (h *DebtHandler) Get(w http.ResponseWriter, r *http.Request) {
	debtID, ok := debtIDFromRequest(r)
	if !ok {
		response.BadRequest(w, "invalid debt id", nil)
		return
	}

	debt, err := h.service.GetDebt(r.Context(), debtID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, debt)
}

// Activate moves a pending debt into active collection.
func (h *DebtHandler) Activate(w http.ResponseWriter, r *http.Request) {
	debtID, ok := debtIDFromRequest(r)
	if !ok {
		response.BadRequest(w, "invalid debt id", nil)
		return
	}

	debt, err := h.service.ActivateDebt(r.Context(), debtID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, debt)
}

// GetOutstanding returns the total amount owed on a debt.
func (h *DebtHandler) GetOutstanding(w http.ResponseWriter, r *http.Request) {
	debtID, ok := debtIDFromRequest(r)
	if !ok {
		response.BadRequest(w, "invalid debt id", nil)
		return
	}

	debt, err := h.service.GetDebt(r.Context(), debtID)
	if err != nil {
		writeError(w, err)
		return
	}
	outstanding, err := h.service.GetOutstanding(r.Context(), debtID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, domain.OutstandingResponse{
		DebtID:      debtID.String(),
		Currency:    debt.Currency,
		Outstanding: outstanding,
	})
}

// AccrueInterest adds interest to a debt.
func (h *DebtHandler) AccrueInterest(w http.ResponseWriter, r *http.Request) {
	debtID, ok := debtIDFromRequest(r)
	if !ok {
		response.BadRequest(w, "invalid debt id", nil)
		return
	}

	var req domain.AccrueInterestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	debt, err := h.service.AccrueInterest(r.Context(), debtID, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, debt)
}

// AddFee adds a fee to a debt.
func (h *DebtHandler) AddFee(w http.ResponseWriter, r *http.Request) {
	debtID, ok := debtIDFromRequest(r)
	if !ok {
		response.BadRequest(w, "invalid debt id", nil)
		return
	}

	var req domain.AddFeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	debt, err := h.service.AddFee(r.Context(), debtID, req.Amount, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, debt)
}

// ProposeSettlement records a settlement offer on a debt.
func (h *DebtHandler) ProposeSettlement(w http.ResponseWriter, r *http.Request) {
	debtID, ok := debtIDFromRequest(r)
	if !ok {
		response.BadRequest(w, "invalid debt id", nil)
		return
	}

	var req domain.ProposeSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	debt, err := h.service.ProposeSettlement(r.Context(), debtID, req.Amount, req.ExpiresAt)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, debt)
}

// AcceptSettlement settles the debt for the pending offer amount.
func (h *DebtHandler) AcceptSettlement(w http.ResponseWriter, r *http.Request) {
	debtID, ok := debtIDFromRequest(r)
	if !ok {
		response.BadRequest(w, "invalid debt id", nil)
		return
	}

	debt, err := h.service.AcceptSettlement(r.Context(), debtID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, debt)
}

// RejectSettlement clears the pending settlement offer.
func (h *DebtHandler) RejectSettlement(w http.ResponseWriter, r *http.Request) {
	debtID, ok := debtIDFromRequest(r)
	if !ok {
		response.BadRequest(w, "invalid debt id", nil)
		return
	}

	var req domain.RejectSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}

	debt, err := h.service.RejectSettlement(r.Context(), debtID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, debt)
}

// FlagDispute marks a debt as disputed.
func (h *DebtHandler) FlagDispute(w http.ResponseWriter, r *http.Request) {
	debtID, ok := debtIDFromRequest(r)
	if !ok {
		response.BadRequest(w, "invalid debt id", nil)
		return
	}

	var req domain.DisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	debt, err := h.service.FlagDispute(r.Context(), debtID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, debt)
}

// ResolveDispute returns a disputed debt to active collection.
func (h *DebtHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	debtID, ok := debtIDFromRequest(r)
	if !ok {
		response.BadRequest(w, "invalid debt id", nil)
		return
	}

	debt, err := h.service.ResolveDispute(r.Context(), debtID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, debt)
}

// WriteOff closes a debt as uncollectible.
func (h *DebtHandler) WriteOff(w http.ResponseWriter, r *http.Request) {
	debtID, ok := debtIDFromRequest(r)
	if !ok {
		response.BadRequest(w, "invalid debt id", nil)
		return
	}

	var req domain.WriteOffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	debt, err := h.service.WriteOff(r.Context(), debtID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, debt)
}

// AppendNote attaches a collection note to a debt.
func (h *DebtHandler) AppendNote(w http.ResponseWriter, r *http.Request) {
	debtID, ok := debtIDFromRequest(r)
	if !ok {
		response.BadRequest(w, "invalid debt id", nil)
		return
	}

	var req domain.AppendNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	note, err := h.service.AppendNote(r.Context(), debtID, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Created(w, note)
}

// ListNotes returns the collection notes recorded against a debt.
func (h *DebtHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	debtID, ok := debtIDFromRequest(r)
	if !ok {
		response.BadRequest(w, "invalid debt id", nil)
		return
	}

	notes, err := h.service.ListNotes(r.Context(), debtID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, notes)
}

// ListTransactions returns every transaction recorded against a debt.
func (h *DebtHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	debtID, ok := debtIDFromRequest(r)
	if !ok {
		response.BadRequest(w, "invalid debt id", nil)
		return
	}

	txs, err := h.service.ListTransactions(r.Context(), debtID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, txs)
}

// ScheduleNextAction records when the next collection action is due.
func (h *DebtHandler) ScheduleNextAction(w http.ResponseWriter, r *http.Request) {
	debtID, ok := debtIDFromRequest(r)
	if !ok {
		response.BadRequest(w, "invalid debt id", nil)
		return
	}

	var req domain.ScheduleNextActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	debt, err := h.service.ScheduleNextAction(r.Context(), debtID, req.At)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, debt)
}
