package finance

import (
	"context"
	"sort"
	"time"

	"github.com/fieldservice/backend/internal/domain/finance"
	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ExpenseRequest carries the editable fields of an expense
type ExpenseRequest struct {
	Description string          `json:"description" binding:"required,max=500"`
	Value       decimal.Decimal `json:"value" binding:"required"`
	DueDate     time.Time       `json:"due_date" binding:"required"`
	Category    string          `json:"category"`
	IsPaid      bool            `json:"is_paid"`
	PaidDate    *time.Time      `json:"paid_date"`
}

// ExpenseFilter narrows ListExpenses
type ExpenseFilter struct {
	Category string     `form:"category"`
	Paid     *bool      `form:"paid"`
	From     *time.Time `form:"from" time_format:"2006-01-02"`
	To       *time.Time `form:"to" time_format:"2006-01-02"`
}

// ExpenseService manages expenses and keeps the balance in step with
// paid expenses.
type ExpenseService struct {
	store     shared.RecordStore
	scope     shared.TransactionScope
	notifier  shared.Notifier
	formatter MoneyFormatter
	observer  Observer
	logger    *zap.Logger
	clock     func() time.Time
}

// NewExpenseService creates a new ExpenseService
func NewExpenseService(
	store shared.RecordStore,
	scope shared.TransactionScope,
	notifier shared.Notifier,
	logger *zap.Logger,
) *ExpenseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpenseService{
		store:     store,
		scope:     scope,
		notifier:  notifier,
		formatter: plainFormatter{},
		observer:  nopObserver{},
		logger:    logger.Named("expenses"),
		clock:     time.Now,
	}
}

// SetFormatter sets the formatter used for amounts in notifications
func (s *ExpenseService) SetFormatter(f MoneyFormatter) {
	s.formatter = f
}

// SetObserver sets the observer notified of every mutation outcome
func (s *ExpenseService) SetObserver(o Observer) {
	s.observer = o
}

// SetClock overrides the time source
func (s *ExpenseService) SetClock(clock func() time.Time) {
	s.clock = clock
}

func (s *ExpenseService) finish(ctx context.Context, operation string, err error, success, failure string) {
	outcome{notifier: s.notifier, observer: s.observer, logger: s.logger}.finish(ctx, operation, err, success, failure)
}

// AddExpense records a new expense. A paid expense is taken from the balance.
func (s *ExpenseService) AddExpense(ctx context.Context, req ExpenseRequest) (*finance.Expense, error) {
	var created *finance.Expense
	err := s.scope.Execute(ctx, func(tx shared.RecordStore) error {
		expense, err := s.build(req)
		if err != nil {
			return err
		}
		repo := finance.NewExpenseRepository(tx)
		expenses, err := repo.Load(ctx)
		if err != nil {
			return err
		}
		expenses = append(expenses, *expense)
		if err := repo.Save(ctx, expenses); err != nil {
			return err
		}
		created = expense
		return s.settle(ctx, tx, nil, expense)
	})
	s.finish(ctx, "expenses.add", err, "Expense added", "Failed to add expense")
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateExpense replaces the editable fields of an expense and moves the
// balance by the change in paid value.
func (s *ExpenseService) UpdateExpense(ctx context.Context, id uuid.UUID, req ExpenseRequest) (*finance.Expense, error) {
	var updated finance.Expense
	err := s.scope.Execute(ctx, func(tx shared.RecordStore) error {
		repo := finance.NewExpenseRepository(tx)
		expenses, err := repo.Load(ctx)
		if err != nil {
			return err
		}
		current, idx, err := finance.FindExpense(expenses, id)
		if err != nil {
			return err
		}
		before := *current

		next, err := s.build(req)
		if err != nil {
			return err
		}
		next.BaseEntity = before.BaseEntity
		next.Touch()
		expenses[idx] = *next
		if err := repo.Save(ctx, expenses); err != nil {
			return err
		}
		updated = *next
		return s.settle(ctx, tx, &before, next)
	})
	s.finish(ctx, "expenses.update", err, "Expense updated", "Failed to update expense")
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteExpense removes an expense. A paid expense is returned to the balance.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	err := s.scope.Execute(ctx, func(tx shared.RecordStore) error {
		repo := finance.NewExpenseRepository(tx)
		expenses, err := repo.Load(ctx)
		if err != nil {
			return err
		}
		current, idx, err := finance.FindExpense(expenses, id)
		if err != nil {
			return err
		}
		before := *current
		expenses = append(expenses[:idx], expenses[idx+1:]...)
		if err := repo.Save(ctx, expenses); err != nil {
			return err
		}
		return s.settle(ctx, tx, &before, nil)
	})
	s.finish(ctx, "expenses.delete", err, "Expense deleted", "Failed to delete expense")
	return err
}

// MarkExpensePaid pays an open expense. A nil paidDate means today.
func (s *ExpenseService) MarkExpensePaid(ctx context.Context, id uuid.UUID, paidDate *time.Time) (*finance.Expense, error) {
	date := shared.DateOf(s.clock())
	if paidDate != nil {
		date = *paidDate
	}
	var paid finance.Expense
	err := s.scope.Execute(ctx, func(tx shared.RecordStore) error {
		repo := finance.NewExpenseRepository(tx)
		expenses, err := repo.Load(ctx)
		if err != nil {
			return err
		}
		current, _, err := finance.FindExpense(expenses, id)
		if err != nil {
			return err
		}
		before := *current
		if err := current.MarkPaid(date); err != nil {
			return err
		}
		if err := repo.Save(ctx, expenses); err != nil {
			return err
		}
		paid = *current
		return s.settle(ctx, tx, &before, current)
	})
	s.finish(ctx, "expenses.pay", err,
		"Expense of "+s.formatter.FormatMoney(paid.Value)+" paid",
		"Failed to pay expense")
	if err != nil {
		return nil, err
	}
	return &paid, nil
}

// ListExpenses returns expenses matching filter ordered by due date
func (s *ExpenseService) ListExpenses(ctx context.Context, filter ExpenseFilter) ([]finance.Expense, error) {
	expenses, err := finance.NewExpenseRepository(s.store).Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]finance.Expense, 0, len(expenses))
	for _, e := range expenses {
		if filter.Category != "" && string(e.Category) != filter.Category {
			continue
		}
		if filter.Paid != nil && e.IsPaid != *filter.Paid {
			continue
		}
		if filter.From != nil && e.DueDate.Before(shared.DateOf(*filter.From)) {
			continue
		}
		if filter.To != nil && e.DueDate.After(shared.DateOf(*filter.To)) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].DueDate.Before(out[b].DueDate)
	})
	return out, nil
}

func (s *ExpenseService) build(req ExpenseRequest) (*finance.Expense, error) {
	expense, err := finance.NewExpense(req.Description, valueobject.NewMoney(req.Value), req.DueDate, finance.ExpenseCategory(req.Category))
	if err != nil {
		return nil, err
	}
	if req.IsPaid {
		date := shared.DateOf(s.clock())
		if req.PaidDate != nil {
			date = *req.PaidDate
		}
		if err := expense.MarkPaid(date); err != nil {
			return nil, err
		}
	}
	return expense, nil
}

// settle moves the balance for an expense going from before to after
func (s *ExpenseService) settle(ctx context.Context, tx shared.RecordStore, before, after *finance.Expense) error {
	change, ok := finance.ExpenseBalanceChange(before, after)
	if !ok {
		return nil
	}
	summary, err := applyBalance(ctx, tx, change)
	if err != nil {
		return err
	}
	s.logger.Debug("balance adjusted",
		zap.String("direction", string(change.Direction)),
		zap.String("amount", change.Amount.String()),
		zap.String("balance", summary.Balance.String()),
	)
	return nil
}
