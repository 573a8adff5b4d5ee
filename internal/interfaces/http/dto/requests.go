package dto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlanRequest describes a plan to generate: total split over count monthly installments
type PlanRequest struct {
	Total        decimal.Decimal `json:"total" binding:"cents"`
	Count        int             `json:"count" binding:"required,min=1,max=360"`
	FirstDueDate Date            `json:"first_due_date"`
}

// PlannedInstallmentRequest is one line of an explicit plan
type PlannedInstallmentRequest struct {
	ParcelNumber int             `json:"parcel_number" binding:"min=0"`
	Amount       decimal.Decimal `json:"amount" binding:"cents"`
	DueDate      Date            `json:"due_date"`
}

// CreateInstallmentsRequest saves a plan for a service. Either Installments
// lists the plan explicitly or Plan describes one to generate.
type CreateInstallmentsRequest struct {
	Installments []PlannedInstallmentRequest `json:"installments" binding:"omitempty,dive"`
	Plan         *PlanRequest                `json:"plan"`
}

// RecalculateRequest re-plans a service anchored at its current first due date
type RecalculateRequest struct {
	Total decimal.Decimal `json:"total" binding:"cents"`
	Count int             `json:"count" binding:"required,min=1,max=360"`
}

// PayRequest marks an installment or expense paid. A missing date means today.
type PayRequest struct {
	PaidDate *Date `json:"paid_date"`
}

// AdjustBalanceRequest moves the running balance
type AdjustBalanceRequest struct {
	Amount    decimal.Decimal `json:"amount" binding:"cents"`
	Direction string          `json:"direction" binding:"required,oneof=ADD SUBTRACT"`
}

// ExpenseRequest carries the editable fields of an expense
type ExpenseRequest struct {
	Description string          `json:"description" binding:"required,max=500"`
	Value       decimal.Decimal `json:"value" binding:"cents"`
	DueDate     Date            `json:"due_date"`
	Category    string          `json:"category"`
	IsPaid      bool            `json:"is_paid"`
	PaidDate    *Date           `json:"paid_date"`
}

// ForecastRequest asks for a forecast of an arbitrary numeric series
type ForecastRequest struct {
	Data []float64 `json:"data"`
}

// StockMovementRequest records one stock movement.
// For ADJUSTMENT, Quantity is the counted stock level.
type StockMovementRequest struct {
	MaterialID   uuid.UUID       `json:"material_id"`
	MovementType string          `json:"movement_type" binding:"required,oneof=IN OUT ADJUSTMENT"`
	Quantity     decimal.Decimal `json:"quantity"`
	Reason       string          `json:"reason" binding:"max=200"`
	ReferenceID  *uuid.UUID      `json:"reference_id"`
	Notes        string          `json:"notes" binding:"max=1000"`
}

// ConsumedMaterialRequest is one material used by a service
type ConsumedMaterialRequest struct {
	MaterialID uuid.UUID       `json:"material_id"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// ConsumeMaterialsRequest takes the materials used by a service out of stock
type ConsumeMaterialsRequest struct {
	Materials []ConsumedMaterialRequest `json:"materials" binding:"required,min=1,dive"`
}

// OverdueQuery selects installments overdue at a date, today when omitted
type OverdueQuery struct {
	AsOf string `form:"as_of"`
}

// MonthsQuery carries a months horizon
type MonthsQuery struct {
	Months int `form:"months" binding:"omitempty,min=1"`
}
