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

type PlanHandler struct {
	service   *service.LedgerService
	validator *validator.Validate
}

func NewPlanHandler(service *service.LedgerService) *PlanHandler {
	return &PlanHandler{
		service:   service,
		validator: validator.New(),
	}
}

func planIDFromRequest(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["planId"])
	return id, err == nil
}

// Create builds a payment plan with its full installment schedule.
func (h *PlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	result, err := h.service.CreatePlan(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Created(w, result)
}

// Activate moves a plan to Active.
func (h *PlanHandler) Activate(w http.ResponseWriter, r *http.Request) {
	planID, ok := planIDFromRequest(r)
	if !ok {
		response.BadRequest(w, "invalid plan id", nil)
		return
	}

	var req domain.ActivatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	byUserID, err := uuid.Parse(req.ActivatedBy)
	if err != nil {
		response.BadRequest(w, "invalid activated_by", err)
		return
	}

	plan, err := h.service.ActivatePlan(r.Context(), planID, byUserID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, plan)
}

// Complete closes a fully paid plan.
func (h *PlanHandler) Complete(w http.ResponseWriter, r *http.Request) {
	planID, ok := planIDFromRequest(r)
	if !ok {
		response.BadRequest(w, "invalid plan id", nil)
		return
	}

	plan, err := h.service.CompletePlan(r.Context(), planID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, plan)
}

// Default marks an active plan as defaulted after missed installments.
func (h *PlanHandler) Default(w http.ResponseWriter, r *http.Request) {
	planID, ok := planIDFromRequest(r)
	if !ok {
		response.BadRequest(w, "invalid plan id", nil)
		return
	}

	var req domain.DefaultPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	plan, err := h.service.DefaultPlan(r.Context(), planID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, plan)
}

// Cancel withdraws an open plan.
func (h *PlanHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	planID, ok := planIDFromRequest(r)
	if !ok {
		response.BadRequest(w, "invalid plan id", nil)
		return
	}

	var req domain.RejectSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}

	plan, err := h.service.CancelPlan(r.Context(), planID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, plan)
}

// ApplyDiscount grants a further discount on an open plan.
func (h *PlanHandler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	planID, ok := planIDFromRequest(r)
	if !ok {
		response.BadRequest(w, "invalid plan id", nil)
		return
	}

	var req domain.ApplyDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	plan, err := h.service.ApplyPlanDiscount(r.Context(), planID, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, plan)
}

// GetByReference resolves a plan by its client-facing reference.
func (h *PlanHandler) GetByReference(w http.ResponseWriter, r *http.Request) {
	reference := mux.Vars(r)["reference"]
	if reference == "" {
		response.BadRequest(w, "invalid plan reference", nil)
		return
	}

	plan, err := h.service.GetPlanByReference(r.Context(), reference)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, plan)
}

// GetSchedule returns a plan's installment schedule.
func (h *PlanHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	planID, ok := planIDFromRequest(r)
	if !ok {
		response.BadRequest(w, "invalid plan id", nil)
		return
	}

	schedule, err := h.service.GetSchedule(r.Context(), planID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, schedule)
}
