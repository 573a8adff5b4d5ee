package finance

import (
	"testing"

	"github.com/fieldservice/backend/internal/domain/inventory"
	"github.com/fieldservice/backend/internal/domain/operations"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type summaryFixture struct {
	input SummaryInput
}

func newSummaryFixture(t *testing.T) summaryFixture {
	t.Helper()
	now := date(2024, 3, 15)

	cable, err := inventory.NewMaterial("Cable", "m", money(2.5), money(4), decimal.Zero)
	require.NoError(t, err)

	paidMarch := newService(t, 5, 3, 1000, operations.PaymentStatusPaid)
	unpaidMarch := newService(t, 20, 3, 400, operations.PaymentStatusUnpaid)
	paidFeb := newService(t, 10, 2, 600, operations.PaymentStatusPaid)
	april := newService(t, 3, 4, 250, operations.PaymentStatusUnpaid)

	onPlan := newService(t, 1, 1, 300, operations.PaymentStatusPartial)
	onPlan.IsInstallmentPayment = true
	open := createTestInstallment(t, onPlan.ID, 2, 150)
	done := createTestInstallment(t, onPlan.ID, 1, 150)
	require.NoError(t, done.MarkPaid(date(2024, 1, 10)))

	return summaryFixture{input: SummaryInput{
		Services: []operations.ServiceOrder{paidMarch, unpaidMarch, paidFeb, april, onPlan},
		Expenses: []Expense{
			newTestExpense(t, 3, 200, true),
			newTestExpense(t, 3, 50, false),
			newTestExpense(t, 4, 75, false),
			newTestExpense(t, 1, 30, true),
		},
		Materials: []inventory.Material{*cable},
		ServiceMaterials: []operations.ServiceMaterial{
			{ID: uuid.New(), ServiceID: paidMarch.ID, MaterialID: cable.ID, Quantity: decimal.NewFromInt(40)},
			{ID: uuid.New(), ServiceID: unpaidMarch.ID, MaterialID: cable.ID, Quantity: decimal.NewFromInt(10)},
			{ID: uuid.New(), ServiceID: paidFeb.ID, MaterialID: uuid.New(), Quantity: decimal.NewFromInt(5)},
		},
		Installments: []Installment{*open, *done},
		Prior:        FinancialSummary{Balance: money(1234.56)},
		Now:          now,
	}}
}

func TestSummarize_Monthly(t *testing.T) {
	f := newSummaryFixture(t)
	s := Summarize(f.input)

	assert.Equal(t, "1000.00", s.MonthlyRevenue.String())
	assert.Equal(t, "100.00", s.MonthlyCost.String())
	assert.Equal(t, "900.00", s.MonthlyGrossProfit.String())
	assert.Equal(t, "200.00", s.MonthlyExpenses.String())
	assert.Equal(t, "700.00", s.MonthlyProfit.String())
	assert.True(t, s.MonthlyMargin.Equal(decimal.NewFromInt(70)), "margin %s", s.MonthlyMargin)
}

func TestSummarize_Projected(t *testing.T) {
	f := newSummaryFixture(t)
	s := Summarize(f.input)

	// all March services: 1000 + 400, cost 100 + 25, expenses 200 + 50
	assert.Equal(t, "1400.00", s.ProjectedMonthlyRevenue.String())
	assert.Equal(t, "250.00", s.ProjectedMonthlyExpenses.String())
	assert.Equal(t, "1025.00", s.ProjectedMonthlyProfit.String())

	assert.Equal(t, "250.00", s.NextMonthRevenue.String())
	assert.Equal(t, "75.00", s.NextMonthExpenses.String())
	assert.Equal(t, "175.00", s.NextMonthProfit.String())
}

func TestSummarize_Lifetime(t *testing.T) {
	f := newSummaryFixture(t)
	s := Summarize(f.input)

	assert.Equal(t, "1600.00", s.TotalRevenue.String())
	assert.Equal(t, "100.00", s.TotalCost.String())
	assert.Equal(t, "230.00", s.TotalExpenses.String())
	assert.Equal(t, "1270.00", s.TotalProfit.String())
	assert.Equal(t, 2, s.PaidServiceCount)
	assert.Equal(t, "800.00", s.AvgServiceValue.String())

	// open installment 150 + unpaid non-installment services 400 + 250
	assert.Equal(t, "800.00", s.PendingPayments.String())
}

func TestSummarize_BalanceCarriedAndIdempotent(t *testing.T) {
	f := newSummaryFixture(t)
	first := Summarize(f.input)
	assert.Equal(t, "1234.56", first.Balance.String())

	f.input.Prior = first
	second := Summarize(f.input)
	assert.Equal(t, first.Balance.String(), second.Balance.String())
	assert.Equal(t, first.MonthlyProfit.String(), second.MonthlyProfit.String())
	assert.Equal(t, first.TotalRevenue.String(), second.TotalRevenue.String())
	assert.Equal(t, first.ForecastRevenue.String(), second.ForecastRevenue.String())
	assert.Equal(t, "600.00", second.ForecastRevenue.String())
	assert.Equal(t, ForecastMethodSimpleAverage, second.ForecastMethod)
}

func TestSummarize_NoRevenueMeansZeroMargin(t *testing.T) {
	s := Summarize(SummaryInput{
		Expenses: []Expense{newTestExpense(t, 3, 100, true)},
		Now:      date(2024, 3, 15),
	})
	assert.True(t, s.MonthlyMargin.IsZero())
	assert.True(t, s.TotalMargin.IsZero())
	assert.Equal(t, "-100.00", s.MonthlyProfit.String())
	assert.True(t, s.AvgServiceValue.IsZero())
	assert.Equal(t, ReliabilityUnreliable, s.ForecastReliability)
}

func TestMonthlyRevenueHistory(t *testing.T) {
	services := []operations.ServiceOrder{
		newService(t, 5, 1, 100, operations.PaymentStatusPaid),
		newService(t, 9, 1, 50, operations.PaymentStatusPaid),
		newService(t, 5, 2, 80, operations.PaymentStatusUnpaid),
		newService(t, 5, 3, 999, operations.PaymentStatusPaid), // current month excluded
	}
	history := MonthlyRevenueHistory(services, date(2024, 3, 15), 12)
	assert.Equal(t, []float64{150, 0}, history)
}

func TestExpenseBalanceChange(t *testing.T) {
	unpaid := newTestExpense(t, 3, 100, false)
	paid := newTestExpense(t, 3, 100, true)
	paidMore := paid
	paidMore.Value = money(130)
	paidLess := paid
	paidLess.Value = money(60)

	tests := []struct {
		name      string
		before    *Expense
		after     *Expense
		changed   bool
		direction BalanceDirection
		amount    string
	}{
		{"new unpaid", nil, &unpaid, false, "", ""},
		{"new paid", nil, &paid, true, BalanceSubtract, "100.00"},
		{"delete paid", &paid, nil, true, BalanceAdd, "100.00"},
		{"delete unpaid", &unpaid, nil, false, "", ""},
		{"unpaid to paid", &unpaid, &paid, true, BalanceSubtract, "100.00"},
		{"paid to unpaid", &paid, &unpaid, true, BalanceAdd, "100.00"},
		{"paid value increased", &paid, &paidMore, true, BalanceSubtract, "30.00"},
		{"paid value decreased", &paid, &paidLess, true, BalanceAdd, "40.00"},
		{"paid unchanged", &paid, &paid, false, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change, ok := ExpenseBalanceChange(tt.before, tt.after)
			assert.Equal(t, tt.changed, ok)
			if tt.changed {
				assert.Equal(t, tt.direction, change.Direction)
				assert.Equal(t, tt.amount, change.Amount.String())
			}
		})
	}
}

func TestFinancialSummary_ApplyBalance(t *testing.T) {
	s := EmptySummary()
	s.ApplyBalance(BalanceChange{Amount: money(100), Direction: BalanceAdd})
	s.ApplyBalance(BalanceChange{Amount: money(30.5), Direction: BalanceSubtract})
	assert.Equal(t, "69.50", s.Balance.String())
}

func TestNewExpense(t *testing.T) {
	_, err := NewExpense("", money(10), date(2024, 1, 1), ExpenseCategoryRent)
	assert.Error(t, err)
	_, err = NewExpense("fuel", money(0), date(2024, 1, 1), ExpenseCategoryFuel)
	assert.Error(t, err)
	_, err = NewExpense("fuel", money(10), date(2024, 1, 1), ExpenseCategory("PARTY"))
	assert.Error(t, err)

	e, err := NewExpense("misc", money(10), date(2024, 1, 1), "")
	require.NoError(t, err)
	assert.Equal(t, ExpenseCategoryOther, e.Category)
	require.NoError(t, e.MarkPaid(date(2024, 1, 2)))
	assert.Error(t, e.MarkPaid(date(2024, 1, 3)))
	e.MarkUnpaid()
	assert.False(t, e.IsPaid)
	assert.Nil(t, e.PaidDate)
}
