package finance

import (
	"context"
	"time"

	"github.com/fieldservice/backend/internal/domain/finance"
	"github.com/fieldservice/backend/internal/domain/inventory"
	"github.com/fieldservice/backend/internal/domain/operations"
	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// FinancialSummaryService recomputes and stores the financial snapshot
type FinancialSummaryService struct {
	store     shared.RecordStore
	scope     shared.TransactionScope
	notifier  shared.Notifier
	formatter MoneyFormatter
	observer  Observer
	logger    *zap.Logger
	clock     func() time.Time
}

// NewFinancialSummaryService creates a new FinancialSummaryService
func NewFinancialSummaryService(
	store shared.RecordStore,
	scope shared.TransactionScope,
	notifier shared.Notifier,
	logger *zap.Logger,
) *FinancialSummaryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FinancialSummaryService{
		store:     store,
		scope:     scope,
		notifier:  notifier,
		formatter: plainFormatter{},
		observer:  nopObserver{},
		logger:    logger.Named("summary"),
		clock:     time.Now,
	}
}

// SetFormatter sets the formatter used for amounts in notifications
func (s *FinancialSummaryService) SetFormatter(f MoneyFormatter) {
	s.formatter = f
}

// SetObserver sets the observer that receives every new snapshot
func (s *FinancialSummaryService) SetObserver(o Observer) {
	s.observer = o
}

// SetClock overrides the time source
func (s *FinancialSummaryService) SetClock(clock func() time.Time) {
	s.clock = clock
}

// Summarize recomputes the snapshot from every collection and stores it
func (s *FinancialSummaryService) Summarize(ctx context.Context) (*finance.FinancialSummary, error) {
	var summary finance.FinancialSummary
	err := s.scope.Execute(ctx, func(tx shared.RecordStore) error {
		input, err := loadSummaryInput(ctx, tx)
		if err != nil {
			return err
		}
		input.Now = s.clock()
		summary = finance.Summarize(*input)
		return finance.NewFinancialSummaryRepository(tx).Put(ctx, summary)
	})
	if err != nil {
		s.logger.Error("failed to summarize finances", zap.Error(err))
		return nil, err
	}
	s.observer.ObserveSummary(summary)
	s.logger.Debug("financial summary recomputed",
		zap.String("balance", summary.Balance.String()),
		zap.String("monthly_profit", summary.MonthlyProfit.String()),
	)
	return &summary, nil
}

// Current returns the last stored snapshot
func (s *FinancialSummaryService) Current(ctx context.Context) (*finance.FinancialSummary, error) {
	summary, err := finance.NewFinancialSummaryRepository(s.store).Get(ctx)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// AdjustBalance moves the stored balance by amount in the given direction
func (s *FinancialSummaryService) AdjustBalance(ctx context.Context, amount valueobject.Money, direction finance.BalanceDirection) (*finance.FinancialSummary, error) {
	var summary finance.FinancialSummary
	err := s.scope.Execute(ctx, func(tx shared.RecordStore) error {
		if !direction.IsValid() {
			return shared.NewDomainError("INVALID_DIRECTION", "Direction must be ADD or SUBTRACT")
		}
		if amount.IsNegative() {
			return shared.NewDomainError("INVALID_AMOUNT", "Adjustment amount cannot be negative")
		}
		var err error
		summary, err = applyBalance(ctx, tx, finance.BalanceChange{Amount: amount, Direction: direction})
		return err
	})
	outcome{notifier: s.notifier, observer: s.observer, logger: s.logger}.finish(ctx, "balance.adjust", err,
		"Balance updated to "+s.formatter.FormatMoney(summary.Balance),
		"Failed to adjust balance")
	if err != nil {
		return nil, err
	}
	s.observer.ObserveSummary(summary)
	return &summary, nil
}

// applyBalance moves the stored balance inside a unit of work
func applyBalance(ctx context.Context, tx shared.RecordStore, change finance.BalanceChange) (finance.FinancialSummary, error) {
	repo := finance.NewFinancialSummaryRepository(tx)
	summary, err := repo.Get(ctx)
	if err != nil {
		return summary, err
	}
	summary.ApplyBalance(change)
	return summary, repo.Put(ctx, summary)
}

func loadSummaryInput(ctx context.Context, store shared.RecordStore) (*finance.SummaryInput, error) {
	var (
		input finance.SummaryInput
		err   error
	)
	if input.Services, err = operations.NewServiceOrderRepository(store).Load(ctx); err != nil {
		return nil, err
	}
	if input.ServiceMaterials, err = operations.NewServiceMaterialRepository(store).Load(ctx); err != nil {
		return nil, err
	}
	if input.Materials, err = inventory.NewMaterialRepository(store).Load(ctx); err != nil {
		return nil, err
	}
	if input.Expenses, err = finance.NewExpenseRepository(store).Load(ctx); err != nil {
		return nil, err
	}
	if input.Installments, err = finance.NewInstallmentRepository(store).Load(ctx); err != nil {
		return nil, err
	}
	if input.Prior, err = finance.NewFinancialSummaryRepository(store).Get(ctx); err != nil {
		return nil, err
	}
	return &input, nil
}
