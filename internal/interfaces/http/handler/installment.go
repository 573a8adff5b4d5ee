package handler

import (
	"time"

	financeapp "github.com/fieldservice/backend/internal/application/finance"
	"github.com/fieldservice/backend/internal/domain/finance"
	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// InstallmentHandler handles installment plan endpoints
type InstallmentHandler struct {
	BaseHandler
	installments *financeapp.InstallmentService
	clock        func() time.Time
}

// NewInstallmentHandler creates a new InstallmentHandler
func NewInstallmentHandler(installments *financeapp.InstallmentService) *InstallmentHandler {
	return &InstallmentHandler{installments: installments, clock: time.Now}
}

// ReplanResponse reports the outcome of an operation that may need confirmation
type ReplanResponse struct {
	Applied              bool                  `json:"applied"`
	ConfirmationRequired bool                  `json:"confirmation_required,omitempty"`
	Installments         []finance.Installment `json:"installments"`
}

func (h *InstallmentHandler) today() time.Time {
	return shared.DateOf(h.clock())
}

// Preview generates a plan and its validation without saving anything
// POST /installments/preview
func (h *InstallmentHandler) Preview(c *gin.Context) {
	var req dto.PlanRequest
	if !bindJSON(c, &req) {
		return
	}
	preview, err := h.installments.PreviewPlan(toMoney(req.Total), req.Count, dateOr(req.FirstDueDate, h.today()))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, preview)
}

// ListByService lists the installments of a service
// GET /services/:id/installments
func (h *InstallmentHandler) ListByService(c *gin.Context) {
	serviceID, ok := h.pathID(c, "service")
	if !ok {
		return
	}
	installments, err := h.installments.ListByService(c.Request.Context(), serviceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	List(&h.BaseHandler, c, installments)
}

// Create saves a plan for a service
// POST /services/:id/installments
func (h *InstallmentHandler) Create(c *gin.Context) {
	serviceID, ok := h.pathID(c, "service")
	if !ok {
		return
	}
	var req dto.CreateInstallmentsRequest
	if !bindJSON(c, &req) {
		return
	}

	plan, err := h.planFrom(req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	created, err := h.installments.Create(c.Request.Context(), serviceID, plan)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, created)
}

func (h *InstallmentHandler) planFrom(req dto.CreateInstallmentsRequest) ([]finance.PlannedInstallment, error) {
	if len(req.Installments) == 0 {
		if req.Plan == nil {
			return nil, shared.NewDomainError(dto.ErrCodeInvalidPlan, "Send either installments or plan")
		}
		return finance.GeneratePlan(toMoney(req.Plan.Total), req.Plan.Count, dateOr(req.Plan.FirstDueDate, h.today()))
	}
	plan := make([]finance.PlannedInstallment, len(req.Installments))
	for i, line := range req.Installments {
		parcel := line.ParcelNumber
		if parcel == 0 {
			parcel = i + 1
		}
		plan[i] = finance.PlannedInstallment{
			ParcelNumber: parcel,
			Amount:       toMoney(line.Amount),
			DueDate:      line.DueDate.Time,
		}
	}
	return plan, nil
}

// UpdatePlan re-plans the unpaid part of a service
// PUT /services/:id/installments/plan
func (h *InstallmentHandler) UpdatePlan(c *gin.Context) {
	serviceID, ok := h.pathID(c, "service")
	if !ok {
		return
	}
	var req dto.PlanRequest
	if !bindJSON(c, &req) {
		return
	}
	applied, err := h.installments.UpdatePlan(c.Request.Context(), serviceID, toMoney(req.Total), req.Count, dateOr(req.FirstDueDate, h.today()))
	h.replanned(c, serviceID, applied, err)
}

// Recalculate re-plans a service anchored on its first due date
// POST /services/:id/installments/recalculate
func (h *InstallmentHandler) Recalculate(c *gin.Context) {
	serviceID, ok := h.pathID(c, "service")
	if !ok {
		return
	}
	var req dto.RecalculateRequest
	if !bindJSON(c, &req) {
		return
	}
	applied, err := h.installments.Recalculate(c.Request.Context(), serviceID, toMoney(req.Total), req.Count)
	h.replanned(c, serviceID, applied, err)
}

// RemovePlan deletes the plan of a service
// DELETE /services/:id/installments
func (h *InstallmentHandler) RemovePlan(c *gin.Context) {
	serviceID, ok := h.pathID(c, "service")
	if !ok {
		return
	}
	applied, err := h.installments.RemovePlan(c.Request.Context(), serviceID)
	h.replanned(c, serviceID, applied, err)
}

func (h *InstallmentHandler) replanned(c *gin.Context, serviceID uuid.UUID, applied bool, err error) {
	if err != nil {
		h.HandleError(c, err)
		return
	}
	installments, err := h.installments.ListByService(c.Request.Context(), serviceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ReplanResponse{
		Applied:              applied,
		ConfirmationRequired: !applied,
		Installments:         installments,
	})
}

// CancelPending cancels the pending installments of a service
// POST /services/:id/installments/cancel
func (h *InstallmentHandler) CancelPending(c *gin.Context) {
	serviceID, ok := h.pathID(c, "service")
	if !ok {
		return
	}
	if err := h.installments.CancelPending(c.Request.Context(), serviceID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.replanned(c, serviceID, true, nil)
}

// Get returns one installment
// GET /installments/:id
func (h *InstallmentHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "installment")
	if !ok {
		return
	}
	inst, err := h.installments.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inst)
}

// Pay marks an installment paid
// POST /installments/:id/pay
func (h *InstallmentHandler) Pay(c *gin.Context) {
	id, ok := h.pathID(c, "installment")
	if !ok {
		return
	}
	var req dto.PayRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	if err := h.installments.MarkPaid(c.Request.Context(), id, req.PaidDate.Ptr()); err != nil {
		h.HandleError(c, err)
		return
	}
	inst, err := h.installments.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inst)
}

// ListOverdue lists pending installments past due
// GET /installments/overdue?as_of=YYYY-MM-DD
func (h *InstallmentHandler) ListOverdue(c *gin.Context) {
	var q dto.OverdueQuery
	if !bindQuery(c, &q) {
		return
	}
	asOf := h.today()
	if q.AsOf != "" {
		d, err := dto.ParseDate(q.AsOf)
		if err != nil {
			h.BadRequest(c, err.Error())
			return
		}
		asOf = d.Time
	}
	overdue, err := h.installments.ListOverdue(c.Request.Context(), asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	List(&h.BaseHandler, c, overdue)
}
