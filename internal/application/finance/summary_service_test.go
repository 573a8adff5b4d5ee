package finance

import (
	"context"
	"errors"
	"testing"

	"github.com/fieldservice/backend/internal/domain/finance"
	"github.com/fieldservice/backend/internal/domain/operations"
	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	operations []string
	failures   int
	summaries  []finance.FinancialSummary
}

func (o *recordingObserver) ObserveOperation(operation string, err error) {
	o.operations = append(o.operations, operation)
	if err != nil {
		o.failures++
	}
}

func (o *recordingObserver) ObserveSummary(s finance.FinancialSummary) {
	o.summaries = append(o.summaries, s)
}

func seedPaidService(t *testing.T, store shared.RecordStore, day int, total float64) {
	t.Helper()
	ctx := context.Background()
	svc, err := operations.NewServiceOrder(uuid.New(), "Maintenance", date(2024, 3, day), money(total))
	require.NoError(t, err)
	svc.PaymentStatus = operations.PaymentStatusPaid
	repo := operations.NewServiceOrderRepository(store)
	services, err := repo.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, append(services, *svc)))
}

func newSummaryService(store *fakeStore, notifier shared.Notifier) *FinancialSummaryService {
	svc := NewFinancialSummaryService(store, shared.NewNoOpTransactionScope(store), notifier, nil)
	svc.SetClock(clock)
	return svc
}

func TestFinancialSummaryService_Summarize(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	observer := &recordingObserver{}
	svc := newSummaryService(store, shared.NopNotifier{})
	svc.SetObserver(observer)

	seedPaidService(t, store, 2, 800)
	seedPaidService(t, store, 9, 200)

	_, err := svc.AdjustBalance(ctx, money(500), finance.BalanceAdd)
	require.NoError(t, err)

	summary, err := svc.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1000.00", summary.MonthlyRevenue.String())
	assert.Equal(t, "500.00", summary.AvgServiceValue.String())
	assert.Equal(t, "500.00", summary.Balance.String())
	assert.True(t, summary.MonthlyMargin.Equal(decimal.NewFromInt(100)))

	again, err := svc.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, summary.Balance.String(), again.Balance.String())
	assert.Equal(t, summary.TotalProfit.String(), again.TotalProfit.String())

	current, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1000.00", current.TotalRevenue.String())
	assert.Equal(t, fixedNow, current.LastUpdated.UTC())
	assert.Len(t, observer.summaries, 3)
}

func TestFinancialSummaryService_Current_Empty(t *testing.T) {
	svc := newSummaryService(newFakeStore(), shared.NopNotifier{})
	current, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, current.Balance.IsZero())
	assert.Equal(t, finance.ReliabilityUnreliable, current.ForecastReliability)
}

func TestFinancialSummaryService_AdjustBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("add and subtract", func(t *testing.T) {
		notifier := &recordingNotifier{}
		svc := newSummaryService(newFakeStore(), notifier)

		_, err := svc.AdjustBalance(ctx, money(100), finance.BalanceAdd)
		require.NoError(t, err)
		summary, err := svc.AdjustBalance(ctx, money(40.25), finance.BalanceSubtract)
		require.NoError(t, err)
		assert.Equal(t, "59.75", summary.Balance.String())
		assert.Len(t, notifier.successes, 2)
	})

	t.Run("rejects unknown direction", func(t *testing.T) {
		notifier := &recordingNotifier{}
		svc := newSummaryService(newFakeStore(), notifier)

		_, err := svc.AdjustBalance(ctx, money(100), finance.BalanceDirection("MULTIPLY"))
		assert.Error(t, err)
		assert.Len(t, notifier.errors, 1)
	})

	t.Run("store failure", func(t *testing.T) {
		store := newFakeStore()
		store.failSave[shared.CollectionFinancialData] = errors.New("read only")
		notifier := &recordingNotifier{}
		svc := newSummaryService(store, notifier)

		_, err := svc.AdjustBalance(ctx, money(100), finance.BalanceAdd)
		var perr *shared.PersistenceError
		assert.ErrorAs(t, err, &perr)
		assert.Len(t, notifier.errors, 1)
	})
}
