package finance

import (
	"fmt"
	"sort"
	"time"

	"github.com/fieldservice/backend/internal/domain/operations"
	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// CashFlowType tells whether an item brings money in or takes it out
type CashFlowType string

const (
	CashFlowRevenue CashFlowType = "REVENUE"
	CashFlowExpense CashFlowType = "EXPENSE"
)

// CashFlowStatus grades how certain a cash flow item is
type CashFlowStatus string

const (
	CashFlowPlanned   CashFlowStatus = "PLANNED"
	CashFlowConfirmed CashFlowStatus = "CONFIRMED"
	CashFlowCompleted CashFlowStatus = "COMPLETED"
)

// MaxForecastMonths caps how far ahead a cash flow forecast may look
const MaxForecastMonths = 36

// CashFlowItem is one expected movement of money
type CashFlowItem struct {
	ID          uuid.UUID         `json:"id"`
	Type        CashFlowType      `json:"type"`
	Amount      valueobject.Money `json:"amount"`
	Date        time.Time         `json:"date"`
	Status      CashFlowStatus    `json:"status"`
	ReferenceID uuid.UUID         `json:"reference_id"`
	Description string            `json:"description"`
}

// CashFlowPeriod groups the items of one calendar month
type CashFlowPeriod struct {
	StartDate     time.Time         `json:"start_date"`
	EndDate       time.Time         `json:"end_date"`
	TotalRevenue  valueobject.Money `json:"total_revenue"`
	TotalExpenses valueobject.Money `json:"total_expenses"`
	NetCashFlow   valueobject.Money `json:"net_cash_flow"`
	Items         []CashFlowItem    `json:"items"`
}

// CashFlowForecast is the projection over consecutive months
type CashFlowForecast struct {
	Periods       []CashFlowPeriod  `json:"periods"`
	TotalRevenue  valueobject.Money `json:"total_revenue"`
	TotalExpenses valueobject.Money `json:"total_expenses"`
	NetCashFlow   valueobject.Money `json:"net_cash_flow"`
	GeneratedAt   time.Time         `json:"generated_at"`
}

// CashFlowInput is the data a cash flow forecast reads
type CashFlowInput struct {
	Services     []operations.ServiceOrder
	Installments []Installment
	Expenses     []Expense
}

// ClampForecastMonths bounds monthsAhead to [1, limit]
func ClampForecastMonths(monthsAhead, limit int) int {
	if limit <= 0 || limit > MaxForecastMonths {
		limit = MaxForecastMonths
	}
	return min(max(monthsAhead, 1), limit)
}

// ForecastCashFlow projects money in and out for monthsAhead calendar months
// starting with the month of now. Revenue comes from unpaid services that are
// not on an installment plan and from pending installments; expenses from
// unpaid expenses.
func ForecastCashFlow(input CashFlowInput, now time.Time, monthsAhead int) CashFlowForecast {
	months := ClampForecastMonths(monthsAhead, MaxForecastMonths)

	forecast := CashFlowForecast{
		Periods:       make([]CashFlowPeriod, 0, months),
		TotalRevenue:  valueobject.Zero(),
		TotalExpenses: valueobject.Zero(),
		NetCashFlow:   valueobject.Zero(),
		GeneratedAt:   now,
	}

	period := shared.MonthPeriod(now)
	for range months {
		p := buildPeriod(input, period)
		forecast.Periods = append(forecast.Periods, p)
		forecast.TotalRevenue = forecast.TotalRevenue.Add(p.TotalRevenue)
		forecast.TotalExpenses = forecast.TotalExpenses.Add(p.TotalExpenses)
		period = period.Next()
	}
	forecast.NetCashFlow = forecast.TotalRevenue.Subtract(forecast.TotalExpenses)
	return forecast
}

func buildPeriod(input CashFlowInput, period shared.Period) CashFlowPeriod {
	items := make([]CashFlowItem, 0)

	for _, s := range input.Services {
		if s.IsInstallmentPayment || s.IsPaid() || !period.Contains(s.Date) {
			continue
		}
		status := CashFlowConfirmed
		if s.PaymentStatus == operations.PaymentStatusUnpaid {
			status = CashFlowPlanned
		}
		items = append(items, CashFlowItem{
			ID:          uuid.New(),
			Type:        CashFlowRevenue,
			Amount:      s.TotalValue,
			Date:        s.Date,
			Status:      status,
			ReferenceID: s.ID,
			Description: s.Description,
		})
	}

	for _, inst := range input.Installments {
		if !inst.IsPending() || !period.Contains(inst.DueDate) {
			continue
		}
		items = append(items, CashFlowItem{
			ID:          uuid.New(),
			Type:        CashFlowRevenue,
			Amount:      inst.Amount,
			Date:        inst.DueDate,
			Status:      CashFlowPlanned,
			ReferenceID: inst.ID,
			Description: installmentDescription(inst),
		})
	}

	for _, e := range input.Expenses {
		if e.IsPaid || !period.Contains(e.DueDate) {
			continue
		}
		items = append(items, CashFlowItem{
			ID:          uuid.New(),
			Type:        CashFlowExpense,
			Amount:      e.Value,
			Date:        e.DueDate,
			Status:      CashFlowPlanned,
			ReferenceID: e.ID,
			Description: e.Description,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.Before(items[j].Date)
	})

	revenue, expenses := valueobject.Zero(), valueobject.Zero()
	for _, item := range items {
		if item.Type == CashFlowRevenue {
			revenue = revenue.Add(item.Amount)
		} else {
			expenses = expenses.Add(item.Amount)
		}
	}

	return CashFlowPeriod{
		StartDate:     period.Start,
		EndDate:       period.End.AddDate(0, 0, -1),
		TotalRevenue:  revenue,
		TotalExpenses: expenses,
		NetCashFlow:   revenue.Subtract(expenses),
		Items:         items,
	}
}

func installmentDescription(inst Installment) string {
	return fmt.Sprintf("Installment %d of service %s", inst.ParcelNumber, inst.ServiceID.String()[:8])
}
