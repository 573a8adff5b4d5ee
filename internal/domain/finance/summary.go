package finance

import (
	"time"

	"github.com/fieldservice/backend/internal/domain/inventory"
	"github.com/fieldservice/backend/internal/domain/operations"
	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RevenueHistoryMonths is how many past months feed the revenue forecast
const RevenueHistoryMonths = 12

// FinancialSummary is the persisted snapshot of the business's figures.
// Balance is carried between computations; every other field is recomputed.
type FinancialSummary struct {
	Balance valueobject.Money `json:"balance"`

	MonthlyRevenue     valueobject.Money `json:"monthly_revenue"`
	MonthlyCost        valueobject.Money `json:"monthly_cost"`
	MonthlyGrossProfit valueobject.Money `json:"monthly_gross_profit"`
	MonthlyExpenses    valueobject.Money `json:"monthly_expenses"`
	MonthlyProfit      valueobject.Money `json:"monthly_profit"`
	MonthlyMargin      decimal.Decimal   `json:"monthly_margin"`

	ProjectedMonthlyRevenue  valueobject.Money `json:"projected_monthly_revenue"`
	ProjectedMonthlyExpenses valueobject.Money `json:"projected_monthly_expenses"`
	ProjectedMonthlyProfit   valueobject.Money `json:"projected_monthly_profit"`
	ProjectedMonthlyMargin   decimal.Decimal   `json:"projected_monthly_margin"`

	NextMonthRevenue  valueobject.Money `json:"next_month_revenue"`
	NextMonthExpenses valueobject.Money `json:"next_month_expenses"`
	NextMonthProfit   valueobject.Money `json:"next_month_profit"`

	TotalRevenue  valueobject.Money `json:"total_revenue"`
	TotalCost     valueobject.Money `json:"total_cost"`
	TotalExpenses valueobject.Money `json:"total_expenses"`
	TotalProfit   valueobject.Money `json:"total_profit"`
	TotalMargin   decimal.Decimal   `json:"total_margin"`

	PendingPayments  valueobject.Money `json:"pending_payments"`
	AvgServiceValue  valueobject.Money `json:"avg_service_value"`
	PaidServiceCount int               `json:"paid_service_count"`

	ForecastRevenue     valueobject.Money `json:"forecast_revenue"`
	ForecastMethod      ForecastMethod    `json:"forecast_method"`
	ForecastReliability Reliability       `json:"forecast_reliability"`

	LastUpdated time.Time `json:"last_updated"`
}

// ApplyBalance moves the balance by change
func (s *FinancialSummary) ApplyBalance(change BalanceChange) {
	switch change.Direction {
	case BalanceAdd:
		s.Balance = s.Balance.Add(change.Amount)
	case BalanceSubtract:
		s.Balance = s.Balance.Subtract(change.Amount)
	}
}

// SummaryInput is everything Summarize reads
type SummaryInput struct {
	Services         []operations.ServiceOrder
	Expenses         []Expense
	Materials        []inventory.Material
	ServiceMaterials []operations.ServiceMaterial
	Installments     []Installment
	Prior            FinancialSummary
	Now              time.Time
}

// PeriodFigures are the revenue, cost and expense figures of one period
type PeriodFigures struct {
	Revenue     valueobject.Money
	Cost        valueobject.Money
	GrossProfit valueobject.Money
	Expenses    valueobject.Money
	Profit      valueobject.Money
	Margin      decimal.Decimal
	Services    int
}

type summarizer struct {
	input          SummaryInput
	materials      map[uuid.UUID]*inventory.Material
	materialsByJob map[uuid.UUID][]operations.ServiceMaterial
}

// Summarize recomputes every figure of the summary from the input data.
// Only the balance is taken from the prior snapshot.
func Summarize(input SummaryInput) FinancialSummary {
	s := newSummarizer(input)
	now := input.Now
	month := shared.MonthPeriod(now)
	next := month.Next()

	confirmed := s.figures(month, false)
	projected := s.figures(month, true)
	upcoming := s.figures(next, true)
	lifetime := s.figures(shared.AllTime(), false)

	avg := valueobject.Zero()
	if lifetime.Services > 0 {
		avg = valueobject.NewMoney(lifetime.Revenue.Amount().Div(decimal.NewFromInt(int64(lifetime.Services))))
	}

	forecast := ForecastSeries(s.revenueHistory(now, RevenueHistoryMonths))

	return FinancialSummary{
		Balance: input.Prior.Balance,

		MonthlyRevenue:     confirmed.Revenue,
		MonthlyCost:        confirmed.Cost,
		MonthlyGrossProfit: confirmed.GrossProfit,
		MonthlyExpenses:    confirmed.Expenses,
		MonthlyProfit:      confirmed.Profit,
		MonthlyMargin:      confirmed.Margin,

		ProjectedMonthlyRevenue:  projected.Revenue,
		ProjectedMonthlyExpenses: projected.Expenses,
		ProjectedMonthlyProfit:   projected.Profit,
		ProjectedMonthlyMargin:   projected.Margin,

		NextMonthRevenue:  upcoming.Revenue,
		NextMonthExpenses: upcoming.Expenses,
		NextMonthProfit:   upcoming.Profit,

		TotalRevenue:  lifetime.Revenue,
		TotalCost:     lifetime.Cost,
		TotalExpenses: lifetime.Expenses,
		TotalProfit:   lifetime.Profit,
		TotalMargin:   lifetime.Margin,

		PendingPayments:  s.pendingPayments(),
		AvgServiceValue:  avg,
		PaidServiceCount: lifetime.Services,

		ForecastRevenue:     valueobject.NewMoneyFromFloat(forecast.Value),
		ForecastMethod:      forecast.Method,
		ForecastReliability: forecast.Reliability,

		LastUpdated: now,
	}
}

func newSummarizer(input SummaryInput) *summarizer {
	byJob := make(map[uuid.UUID][]operations.ServiceMaterial)
	for _, sm := range input.ServiceMaterials {
		byJob[sm.ServiceID] = append(byJob[sm.ServiceID], sm)
	}
	return &summarizer{
		input:          input,
		materials:      inventory.IndexMaterials(input.Materials),
		materialsByJob: byJob,
	}
}

// figures computes a period's numbers. The confirmed variant only counts
// paid services and paid expenses; the projected variant counts everything.
func (s *summarizer) figures(period shared.Period, projected bool) PeriodFigures {
	f := PeriodFigures{
		Revenue:  valueobject.Zero(),
		Cost:     valueobject.Zero(),
		Expenses: valueobject.Zero(),
	}
	for i := range s.input.Services {
		svc := &s.input.Services[i]
		if !period.Contains(svc.Date) || (!projected && !svc.IsPaid()) {
			continue
		}
		f.Revenue = f.Revenue.Add(svc.TotalValue)
		f.Cost = f.Cost.Add(s.serviceCost(svc.ID))
		f.Services++
	}
	for _, e := range s.input.Expenses {
		if !period.Contains(e.DueDate) || (!projected && !e.IsPaid) {
			continue
		}
		f.Expenses = f.Expenses.Add(e.Value)
	}
	f.GrossProfit = f.Revenue.Subtract(f.Cost)
	f.Profit = f.GrossProfit.Subtract(f.Expenses)
	f.Margin = valueobject.Percentage(f.Profit, f.Revenue)
	return f
}

// serviceCost is the purchase cost of the materials a service used.
// Materials that no longer exist contribute nothing.
func (s *summarizer) serviceCost(serviceID uuid.UUID) valueobject.Money {
	cost := valueobject.Zero()
	for _, sm := range s.materialsByJob[serviceID] {
		if m, ok := s.materials[sm.MaterialID]; ok {
			cost = cost.Add(m.CostOf(sm.Quantity))
		}
	}
	return cost
}

// pendingPayments is what clients still owe: open installments plus unpaid
// services that are not on an installment plan.
func (s *summarizer) pendingPayments() valueobject.Money {
	total := valueobject.Zero()
	for _, inst := range s.input.Installments {
		if inst.IsPending() {
			total = total.Add(inst.Amount)
		}
	}
	for _, svc := range s.input.Services {
		if !svc.IsInstallmentPayment && !svc.IsPaid() {
			total = total.Add(svc.TotalValue)
		}
	}
	return total
}

// revenueHistory returns confirmed revenue for the months before now's month,
// oldest first, skipping leading months with no activity.
func (s *summarizer) revenueHistory(now time.Time, months int) []float64 {
	return MonthlyRevenueHistory(s.input.Services, now, months)
}

// MonthlyRevenueHistory returns confirmed revenue of the months preceding
// now's month, oldest first. Leading empty months are dropped so a young
// business is not forecast from zeros.
func MonthlyRevenueHistory(services []operations.ServiceOrder, now time.Time, months int) []float64 {
	start := shared.MonthStart(now).AddDate(0, -months, 0)
	values := make([]float64, months)
	for _, svc := range services {
		if !svc.IsPaid() || svc.Date.Before(start) || !svc.Date.Before(shared.MonthStart(now)) {
			continue
		}
		idx := monthsBetween(start, svc.Date)
		if idx >= 0 && idx < months {
			values[idx] += svc.TotalValue.Float64()
		}
	}
	first := 0
	for first < len(values) && values[first] == 0 {
		first++
	}
	return values[first:]
}

func monthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}
