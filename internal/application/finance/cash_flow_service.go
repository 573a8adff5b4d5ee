package finance

import (
	"context"
	"time"

	"github.com/fieldservice/backend/internal/domain/finance"
	"github.com/fieldservice/backend/internal/domain/operations"
	"github.com/fieldservice/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// CashFlowService projects cash flow and revenue from stored data
type CashFlowService struct {
	store     shared.RecordStore
	maxMonths int
	logger    *zap.Logger
	clock     func() time.Time
}

// NewCashFlowService creates a new CashFlowService.
// maxMonths caps the forecast horizon; zero means finance.MaxForecastMonths.
func NewCashFlowService(store shared.RecordStore, maxMonths int, logger *zap.Logger) *CashFlowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CashFlowService{
		store:     store,
		maxMonths: maxMonths,
		logger:    logger.Named("cashflow"),
		clock:     time.Now,
	}
}

// SetClock overrides the time source
func (s *CashFlowService) SetClock(clock func() time.Time) {
	s.clock = clock
}

// Forecast buckets expected inflows and outflows into calendar months
// starting with the current one.
func (s *CashFlowService) Forecast(ctx context.Context, monthsAhead int) (*finance.CashFlowForecast, error) {
	var (
		input finance.CashFlowInput
		err   error
	)
	if input.Services, err = operations.NewServiceOrderRepository(s.store).Load(ctx); err != nil {
		return nil, err
	}
	if input.Installments, err = finance.NewInstallmentRepository(s.store).Load(ctx); err != nil {
		return nil, err
	}
	if input.Expenses, err = finance.NewExpenseRepository(s.store).Load(ctx); err != nil {
		return nil, err
	}

	months := finance.ClampForecastMonths(monthsAhead, s.maxMonths)
	forecast := finance.ForecastCashFlow(input, s.clock(), months)
	s.logger.Debug("cash flow forecast",
		zap.Int("months", months),
		zap.String("net", forecast.NetCashFlow.String()),
	)
	return &forecast, nil
}

// ProjectSeries forecasts the next value of an arbitrary series
func (s *CashFlowService) ProjectSeries(_ context.Context, data []float64) finance.SeriesForecast {
	return finance.ForecastSeries(data)
}

// MonthlyRevenue is the confirmed revenue of one calendar month
type MonthlyRevenue struct {
	Month   time.Time `json:"month"`
	Revenue float64   `json:"revenue"`
}

// RevenueTrend is the recent revenue history with a forecast of the next month
type RevenueTrend struct {
	History  []MonthlyRevenue       `json:"history"`
	Forecast finance.SeriesForecast `json:"forecast"`
}

// RevenueTrend returns up to months of confirmed revenue before the current
// month and a forecast for the current one.
func (s *CashFlowService) RevenueTrend(ctx context.Context, months int) (*RevenueTrend, error) {
	if months < 1 {
		months = finance.RevenueHistoryMonths
	}
	services, err := operations.NewServiceOrderRepository(s.store).Load(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	values := finance.MonthlyRevenueHistory(services, now, months)

	first := shared.MonthStart(now).AddDate(0, -len(values), 0)
	history := make([]MonthlyRevenue, len(values))
	for i, v := range values {
		history[i] = MonthlyRevenue{Month: first.AddDate(0, i, 0), Revenue: v}
	}
	return &RevenueTrend{History: history, Forecast: finance.ForecastSeries(values)}, nil
}
