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

// TransactionHandler ingests payment-gateway events. The gateway adapter
// delivers webhooks at-least-once; replays are rejected by the provider
// reference idempotency key and surface as 409s the adapter treats as success.
type TransactionHandler struct {
	service   *service.LedgerService
	validator *validator.Validate
}

func NewTransactionHandler(service *service.LedgerService) *TransactionHandler {
	return &TransactionHandler{
		service:   service,
		validator: validator.New(),
	}
}

func transactionIDFromRequest(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["transactionId"])
	return id, err == nil
}

// Record creates a pending transaction from a gateway event.
func (h *TransactionHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req domain.RecordTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	tx, err := h.service.RecordTransaction(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Created(w, tx)
}

// Lookup resolves a transaction by its (provider, provider_ref) idempotency
// key, so an adapter can reconcile a replayed webhook it could not record.
func (h *TransactionHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	provider := r.URL.Query().Get("provider")
	providerRef := r.URL.Query().Get("provider_ref")
	if provider == "" || providerRef == "" {
		response.BadRequest(w, "provider and provider_ref are required", nil)
		return
	}

	tx, err := h.service.GetTransactionByProviderRef(r.Context(), provider, providerRef)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, tx)
}

// Settle confirms a pending transaction and applies it to the ledger.
func (h *TransactionHandler) Settle(w http.ResponseWriter, r *http.Request) {
	transactionID, ok := transactionIDFromRequest(r)
	if !ok {
		response.BadRequest(w, "invalid transaction id", nil)
		return
	}

	var req domain.SettleTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}

	tx, err := h.service.SettleTransaction(r.Context(), transactionID, req.SettledRef)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, tx)
}

// AttachMetadata stores the gateway's raw payload against a transaction.
func (h *TransactionHandler) AttachMetadata(w http.ResponseWriter, r *http.Request) {
	transactionID, ok := transactionIDFromRequest(r)
	if !ok {
		response.BadRequest(w, "invalid transaction id", nil)
		return
	}

	var req domain.AttachMetadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	tx, err := h.service.AttachTransactionMetadata(r.Context(), transactionID, req.Metadata)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, tx)
}

// Fail marks a pending transaction as failed.
func (h *TransactionHandler) Fail(w http.ResponseWriter, r *http.Request) {
	transactionID, ok := transactionIDFromRequest(r)
	if !ok {
		response.BadRequest(w, "invalid transaction id", nil)
		return
	}

	var req domain.FailTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	tx, err := h.service.FailTransaction(r.Context(), transactionID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, tx)
}
