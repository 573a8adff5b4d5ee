package router

import (
	"github.com/fieldservice/backend/internal/interfaces/http/handler"
)

// Handlers groups the HTTP handlers served under the versioned API
type Handlers struct {
	Installments *handler.InstallmentHandler
	Finance      *handler.FinanceHandler
	Expenses     *handler.ExpenseHandler
	Inventory    *handler.InventoryHandler
	Backup       *handler.BackupHandler
	System       *handler.SystemHandler
}

// DomainGroups builds the route groups of the reconciliation API
func DomainGroups(h Handlers) []*DomainGroup {
	installments := NewDomainGroup("installments", "/installments")
	installments.
		POST("/preview", h.Installments.Preview).
		GET("/overdue", h.Installments.ListOverdue).
		GET("/:id", h.Installments.Get).
		POST("/:id/pay", h.Installments.Pay)

	services := NewDomainGroup("services", "/services/:id")
	services.
		GET("/installments", h.Installments.ListByService).
		POST("/installments", h.Installments.Create).
		DELETE("/installments", h.Installments.RemovePlan).
		PUT("/installments/plan", h.Installments.UpdatePlan).
		POST("/installments/recalculate", h.Installments.Recalculate).
		POST("/installments/cancel", h.Installments.CancelPending).
		POST("/materials/consume", h.Inventory.ConsumeForService)

	finance := NewDomainGroup("finance", "/finance")
	finance.
		GET("/summary", h.Finance.GetSummary).
		POST("/summary/recompute", h.Finance.Recompute).
		POST("/balance/adjust", h.Finance.AdjustBalance).
		GET("/cash-flow", h.Finance.CashFlow).
		POST("/forecast", h.Finance.Forecast).
		GET("/revenue-trend", h.Finance.RevenueTrend)

	expenses := finance.Group("expenses", "/expenses")
	expenses.
		GET("", h.Expenses.List).
		POST("", h.Expenses.Create).
		PUT("/:id", h.Expenses.Update).
		DELETE("/:id", h.Expenses.Delete).
		POST("/:id/pay", h.Expenses.Pay)

	inventory := NewDomainGroup("inventory", "/inventory")
	inventory.
		POST("/movements", h.Inventory.RecordMovement).
		GET("/low-stock", h.Inventory.LowStock).
		GET("/materials/:id/movements", h.Inventory.History).
		GET("/materials/:id/verify", h.Inventory.Verify)

	backup := NewDomainGroup("backup", "/backup")
	backup.
		GET("/export", h.Backup.Export).
		POST("/import", h.Backup.Import).
		POST("/archive/:key", h.Backup.Archive).
		POST("/archive/:key/restore", h.Backup.Restore)

	system := NewDomainGroup("system", "/system")
	system.
		GET("/ping", h.System.Ping).
		GET("/info", h.System.GetSystemInfo)

	return []*DomainGroup{installments, services, finance, inventory, backup, system}
}

// RegisterAll registers every group on r
func (r *Router) RegisterAll(groups []*DomainGroup) *Router {
	for _, g := range groups {
		r.Register(g)
	}
	return r
}
