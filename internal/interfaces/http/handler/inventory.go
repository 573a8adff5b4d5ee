package handler

import (
	inventoryapp "github.com/fieldservice/backend/internal/application/inventory"
	"github.com/fieldservice/backend/internal/domain/inventory"
	"github.com/fieldservice/backend/internal/domain/operations"
	"github.com/fieldservice/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// InventoryHandler handles stock ledger endpoints
type InventoryHandler struct {
	BaseHandler
	stock *inventoryapp.StockLedgerService
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(stock *inventoryapp.StockLedgerService) *InventoryHandler {
	return &InventoryHandler{stock: stock}
}

// RecordMovement records one stock movement
// POST /inventory/movements
func (h *InventoryHandler) RecordMovement(c *gin.Context) {
	var req dto.StockMovementRequest
	if !bindJSON(c, &req) {
		return
	}
	movement, err := h.stock.RecordMovement(c.Request.Context(), inventoryapp.RecordMovementRequest{
		MaterialID:  req.MaterialID,
		Type:        inventory.MovementType(req.MovementType),
		Quantity:    req.Quantity,
		Reason:      req.Reason,
		ReferenceID: req.ReferenceID,
		Notes:       req.Notes,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, movement)
}

// History lists the movements of a material, oldest first
// GET /inventory/materials/:id/movements
func (h *InventoryHandler) History(c *gin.Context) {
	materialID, ok := h.pathID(c, "material")
	if !ok {
		return
	}
	List(&h.BaseHandler, c, h.stock.History(c.Request.Context(), materialID))
}

// Verify replays the movements of a material against its stock
// GET /inventory/materials/:id/verify
func (h *InventoryHandler) Verify(c *gin.Context) {
	materialID, ok := h.pathID(c, "material")
	if !ok {
		return
	}
	verification, err := h.stock.Verify(c.Request.Context(), materialID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, verification)
}

// LowStock lists materials at or below their minimum stock
// GET /inventory/low-stock
func (h *InventoryHandler) LowStock(c *gin.Context) {
	materials, err := h.stock.LowStock(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	List(&h.BaseHandler, c, materials)
}

// ConsumeForService takes the materials used by a service out of stock
// POST /services/:id/materials/consume
func (h *InventoryHandler) ConsumeForService(c *gin.Context) {
	serviceID, ok := h.pathID(c, "service")
	if !ok {
		return
	}
	var req dto.ConsumeMaterialsRequest
	if !bindJSON(c, &req) {
		return
	}
	used := make([]operations.ServiceMaterial, len(req.Materials))
	for i, m := range req.Materials {
		used[i] = operations.ServiceMaterial{MaterialID: m.MaterialID, Quantity: m.Quantity}
	}
	movements, err := h.stock.ConsumeForService(c.Request.Context(), serviceID, used)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, movements)
}
