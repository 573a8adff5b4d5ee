package finance

import (
	"context"

	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/domain/shared/valueobject"
)

// FinancialSummaryRepository stores the single financial snapshot
type FinancialSummaryRepository interface {
	// Get returns the stored snapshot, or a zero snapshot when none exists
	Get(ctx context.Context) (FinancialSummary, error)
	// Put replaces the stored snapshot
	Put(ctx context.Context, summary FinancialSummary) error
}

type summaryRepository struct {
	collection shared.CollectionRepository[FinancialSummary]
}

// NewFinancialSummaryRepository returns the financialData collection of store
func NewFinancialSummaryRepository(store shared.RecordStore) FinancialSummaryRepository {
	return &summaryRepository{
		collection: shared.NewJSONCollection[FinancialSummary](store, shared.CollectionFinancialData),
	}
}

func (r *summaryRepository) Get(ctx context.Context) (FinancialSummary, error) {
	items, err := r.collection.Load(ctx)
	if err != nil {
		return FinancialSummary{}, err
	}
	if len(items) == 0 {
		return EmptySummary(), nil
	}
	return items[0], nil
}

func (r *summaryRepository) Put(ctx context.Context, summary FinancialSummary) error {
	return r.collection.Save(ctx, []FinancialSummary{summary})
}

// EmptySummary is the snapshot of a business with no activity
func EmptySummary() FinancialSummary {
	zero := valueobject.Zero()
	return FinancialSummary{
		Balance:                  zero,
		MonthlyRevenue:           zero,
		MonthlyCost:              zero,
		MonthlyGrossProfit:       zero,
		MonthlyExpenses:          zero,
		MonthlyProfit:            zero,
		ProjectedMonthlyRevenue:  zero,
		ProjectedMonthlyExpenses: zero,
		ProjectedMonthlyProfit:   zero,
		NextMonthRevenue:         zero,
		NextMonthExpenses:        zero,
		NextMonthProfit:          zero,
		TotalRevenue:             zero,
		TotalCost:                zero,
		TotalExpenses:            zero,
		TotalProfit:              zero,
		PendingPayments:          zero,
		AvgServiceValue:          zero,
		ForecastRevenue:          zero,
		ForecastMethod:           ForecastMethodNone,
		ForecastReliability:      ReliabilityUnreliable,
	}
}
