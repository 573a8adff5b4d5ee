package finance

import (
	"fmt"
	"strings"
	"time"

	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlanTolerance is the largest accepted difference between a plan's sum and
// the amount it is meant to cover.
var PlanTolerance = decimal.New(1, -2)

// PlannedInstallment is one line of a generated plan, before it is persisted
type PlannedInstallment struct {
	ParcelNumber int               `json:"parcel_number"`
	Amount       valueobject.Money `json:"amount"`
	DueDate      time.Time         `json:"due_date"`
}

// GeneratePlan splits total into count monthly installments. Each gets
// floor(total*100/count)/100 and the first also takes the leftover cents.
// Due dates advance one calendar month per parcel from firstDueDate.
func GeneratePlan(total valueobject.Money, count int, firstDueDate time.Time) ([]PlannedInstallment, error) {
	if !total.IsPositive() {
		return nil, shared.NewDomainError("INVALID_PLAN", "Plan total must be positive")
	}
	if count < 1 {
		return nil, shared.NewDomainError("INVALID_PLAN", "Plan must have at least one installment")
	}
	if firstDueDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_PLAN", "First due date is required")
	}

	amounts, err := total.SplitFrontLoaded(count)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_PLAN", err.Error())
	}
	for _, a := range amounts {
		if !a.IsPositive() {
			return nil, shared.NewDomainError("INVALID_PLAN",
				fmt.Sprintf("Total %s cannot be split into %d installments of at least one cent", total, count))
		}
	}

	first := shared.DateOf(firstDueDate)
	plan := make([]PlannedInstallment, count)
	for i := range count {
		plan[i] = PlannedInstallment{
			ParcelNumber: i + 1,
			Amount:       amounts[i],
			DueDate:      first.AddDate(0, i, 0),
		}
	}
	return plan, nil
}

// PlanValidation is the result of checking a plan against an expected total
type PlanValidation struct {
	IsValid        bool              `json:"is_valid"`
	Errors         []string          `json:"errors"`
	TotalAmount    valueobject.Money `json:"total_amount"`
	ExpectedAmount valueobject.Money `json:"expected_amount"`
}

// ValidatePlan checks that a plan is non-empty, that every installment has a
// positive amount and a due date, and that the amounts add up to expected
// within PlanTolerance. Each violated rule yields one message.
func ValidatePlan(plan []PlannedInstallment, expected valueobject.Money) PlanValidation {
	sum := valueobject.Zero()
	for _, p := range plan {
		sum = sum.Add(p.Amount)
	}

	result := PlanValidation{
		Errors:         []string{},
		TotalAmount:    sum,
		ExpectedAmount: expected,
	}

	if !sum.WithinTolerance(expected, PlanTolerance) {
		result.Errors = append(result.Errors, fmt.Sprintf(
			"Installments total %s does not match expected %s (difference %s)",
			sum, expected, sum.Subtract(expected).Abs()))
	}
	if len(plan) == 0 {
		result.Errors = append(result.Errors, "Plan must contain at least one installment")
	}
	for _, p := range plan {
		if !p.Amount.IsPositive() {
			result.Errors = append(result.Errors, fmt.Sprintf("Installment %d must have a positive amount", p.ParcelNumber))
		}
	}
	for _, p := range plan {
		if p.DueDate.IsZero() {
			result.Errors = append(result.Errors, fmt.Sprintf("Installment %d must have a due date", p.ParcelNumber))
		}
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

// CheckPlan validates a plan about to be saved for a service of total
// expected. Besides the ValidatePlan rules, parcel numbers must be exactly
// 1..N. Every violated rule is listed in one INVALID_PLAN error.
func CheckPlan(plan []PlannedInstallment, expected valueobject.Money) error {
	problems := ValidatePlan(plan, expected).Errors
	problems = append(problems, parcelNumberErrors(plan)...)
	if len(problems) == 0 {
		return nil
	}
	return shared.NewDomainError("INVALID_PLAN", strings.Join(problems, "; "))
}

func parcelNumberErrors(plan []PlannedInstallment) []string {
	var problems []string
	seen := make(map[int]bool, len(plan))
	for _, p := range plan {
		switch {
		case p.ParcelNumber < 1 || p.ParcelNumber > len(plan):
			problems = append(problems, fmt.Sprintf("Parcel number %d is outside 1 to %d", p.ParcelNumber, len(plan)))
		case seen[p.ParcelNumber]:
			problems = append(problems, fmt.Sprintf("Parcel number %d appears more than once", p.ParcelNumber))
		}
		seen[p.ParcelNumber] = true
	}
	return problems
}

// Materialize turns a plan into pending installments of a service.
// parcelOffset is added to each parcel number.
func Materialize(serviceID uuid.UUID, plan []PlannedInstallment, parcelOffset int) ([]Installment, error) {
	out := make([]Installment, 0, len(plan))
	for _, p := range plan {
		inst, err := NewInstallment(serviceID, p.ParcelNumber+parcelOffset, p.Amount, p.DueDate)
		if err != nil {
			return nil, err
		}
		out = append(out, *inst)
	}
	return out, nil
}

// PlanOf converts installments back to plan lines, e.g. to validate a saved plan
func PlanOf(installments []Installment) []PlannedInstallment {
	plan := make([]PlannedInstallment, 0, len(installments))
	for _, inst := range installments {
		plan = append(plan, PlannedInstallment{
			ParcelNumber: inst.ParcelNumber,
			Amount:       inst.Amount,
			DueDate:      inst.DueDate,
		})
	}
	return plan
}
