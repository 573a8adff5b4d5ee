package finance

import (
	"strings"
	"time"

	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// ExpenseCategory groups expenses for reporting
type ExpenseCategory string

const (
	ExpenseCategoryRent        ExpenseCategory = "RENT"
	ExpenseCategoryUtilities   ExpenseCategory = "UTILITIES"
	ExpenseCategorySalary      ExpenseCategory = "SALARY"
	ExpenseCategoryMaterials   ExpenseCategory = "MATERIALS"
	ExpenseCategoryFuel        ExpenseCategory = "FUEL"
	ExpenseCategoryEquipment   ExpenseCategory = "EQUIPMENT"
	ExpenseCategoryMaintenance ExpenseCategory = "MAINTENANCE"
	ExpenseCategoryTax         ExpenseCategory = "TAX"
	ExpenseCategoryOther       ExpenseCategory = "OTHER"
)

// IsValid checks if the category is a valid ExpenseCategory
func (c ExpenseCategory) IsValid() bool {
	switch c {
	case ExpenseCategoryRent, ExpenseCategoryUtilities, ExpenseCategorySalary,
		ExpenseCategoryMaterials, ExpenseCategoryFuel, ExpenseCategoryEquipment,
		ExpenseCategoryMaintenance, ExpenseCategoryTax, ExpenseCategoryOther:
		return true
	}
	return false
}

// String returns the string representation of ExpenseCategory
func (c ExpenseCategory) String() string {
	return string(c)
}

// Expense is a business cost, optionally already paid
type Expense struct {
	shared.BaseEntity
	Description string            `json:"description"`
	Value       valueobject.Money `json:"value"`
	IsPaid      bool              `json:"is_paid"`
	DueDate     time.Time         `json:"due_date"`
	PaidDate    *time.Time        `json:"paid_date,omitempty"`
	Category    ExpenseCategory   `json:"category"`
}

// NewExpense creates a new expense
func NewExpense(description string, value valueobject.Money, dueDate time.Time, category ExpenseCategory) (*Expense, error) {
	if strings.TrimSpace(description) == "" {
		return nil, shared.NewDomainError("INVALID_DESCRIPTION", "Description cannot be empty")
	}
	if len(description) > 500 {
		return nil, shared.NewDomainError("INVALID_DESCRIPTION", "Description cannot exceed 500 characters")
	}
	if !value.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Expense value must be positive")
	}
	if dueDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_DATE", "Expense due date is required")
	}
	if category == "" {
		category = ExpenseCategoryOther
	}
	if !category.IsValid() {
		return nil, shared.NewDomainError("INVALID_CATEGORY", "Expense category is not valid")
	}
	return &Expense{
		BaseEntity:  shared.NewBaseEntity(),
		Description: description,
		Value:       value,
		DueDate:     shared.DateOf(dueDate),
		Category:    category,
	}, nil
}

// MarkPaid marks the expense paid on the given date
func (e *Expense) MarkPaid(paidDate time.Time) error {
	if e.IsPaid {
		return shared.NewDomainError("INVALID_STATE", "Expense is already paid")
	}
	paid := shared.DateOf(paidDate)
	e.IsPaid = true
	e.PaidDate = &paid
	e.Touch()
	return nil
}

// MarkUnpaid reverts a payment
func (e *Expense) MarkUnpaid() {
	e.IsPaid = false
	e.PaidDate = nil
	e.Touch()
}

// BalanceDirection tells AdjustBalance whether to credit or debit
type BalanceDirection string

const (
	BalanceAdd      BalanceDirection = "ADD"
	BalanceSubtract BalanceDirection = "SUBTRACT"
)

// IsValid checks if the direction is valid
func (d BalanceDirection) IsValid() bool {
	return d == BalanceAdd || d == BalanceSubtract
}

// BalanceChange is a signed adjustment to the running balance
type BalanceChange struct {
	Amount    valueobject.Money
	Direction BalanceDirection
}

// ExpenseBalanceChange computes how the balance must move when an expense
// goes from before to after. A nil before means the expense is new and a nil
// after means it was deleted. It returns false when the balance is unaffected.
func ExpenseBalanceChange(before, after *Expense) (BalanceChange, bool) {
	wasPaid := before != nil && before.IsPaid
	isPaid := after != nil && after.IsPaid

	switch {
	case !wasPaid && isPaid:
		return BalanceChange{Amount: after.Value, Direction: BalanceSubtract}, true
	case wasPaid && !isPaid:
		return BalanceChange{Amount: before.Value, Direction: BalanceAdd}, true
	case wasPaid && isPaid:
		diff := after.Value.Subtract(before.Value)
		switch {
		case diff.IsPositive():
			return BalanceChange{Amount: diff, Direction: BalanceSubtract}, true
		case diff.IsNegative():
			return BalanceChange{Amount: diff.Abs(), Direction: BalanceAdd}, true
		}
	}
	return BalanceChange{}, false
}

// ExpenseRepository persists the expenses collection
type ExpenseRepository = shared.CollectionRepository[Expense]

// NewExpenseRepository returns the expenses collection of store
func NewExpenseRepository(store shared.RecordStore) ExpenseRepository {
	return shared.NewJSONCollection[Expense](store, shared.CollectionExpenses)
}

// FindExpense looks up an expense by id
func FindExpense(expenses []Expense, id uuid.UUID) (*Expense, int, error) {
	return shared.FindByID(expenses, id, func(e *Expense) uuid.UUID { return e.ID }, "Expense")
}
