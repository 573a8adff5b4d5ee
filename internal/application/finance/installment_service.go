package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fieldservice/backend/internal/domain/finance"
	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InstallmentService manages installment plans of service orders
type InstallmentService struct {
	store     shared.RecordStore
	scope     shared.TransactionScope
	notifier  shared.Notifier
	confirmer shared.Confirmer
	formatter MoneyFormatter
	observer  Observer
	logger    *zap.Logger
	clock     func() time.Time
}

// NewInstallmentService creates a new InstallmentService.
// confirmer is used when the request context carries none.
func NewInstallmentService(
	store shared.RecordStore,
	scope shared.TransactionScope,
	notifier shared.Notifier,
	confirmer shared.Confirmer,
	logger *zap.Logger,
) *InstallmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstallmentService{
		store:     store,
		scope:     scope,
		notifier:  notifier,
		confirmer: confirmer,
		formatter: plainFormatter{},
		observer:  nopObserver{},
		logger:    logger.Named("installments"),
		clock:     time.Now,
	}
}

// SetFormatter sets the formatter used for amounts in notifications
func (s *InstallmentService) SetFormatter(f MoneyFormatter) {
	s.formatter = f
}

// SetObserver sets the observer notified of every mutation outcome
func (s *InstallmentService) SetObserver(o Observer) {
	s.observer = o
}

// SetClock overrides the time source
func (s *InstallmentService) SetClock(clock func() time.Time) {
	s.clock = clock
}

func (s *InstallmentService) outcome() outcome {
	return outcome{notifier: s.notifier, observer: s.observer, logger: s.logger}
}

func (s *InstallmentService) today() time.Time {
	return shared.DateOf(s.clock())
}

// PlanPreview is a generated plan together with its validation
type PlanPreview struct {
	Plan       []finance.PlannedInstallment `json:"plan"`
	Validation finance.PlanValidation       `json:"validation"`
}

// PreviewPlan generates a plan without saving it
func (s *InstallmentService) PreviewPlan(total valueobject.Money, count int, firstDueDate time.Time) (*PlanPreview, error) {
	plan, err := finance.GeneratePlan(total, count, firstDueDate)
	if err != nil {
		return nil, err
	}
	return &PlanPreview{Plan: plan, Validation: finance.ValidatePlan(plan, total)}, nil
}

// Create saves plan as pending installments of a service and puts the
// service on installment payment. The plan must cover the service total with
// parcels numbered 1..N, and the service must have no open or paid plan.
func (s *InstallmentService) Create(ctx context.Context, serviceID uuid.UUID, plan []finance.PlannedInstallment) ([]finance.Installment, error) {
	var created []finance.Installment
	err := s.scope.Execute(ctx, func(tx shared.RecordStore) error {
		if len(plan) == 0 {
			return shared.NewDomainError("INVALID_PLAN", "Plan must have at least one installment")
		}
		w, err := s.loadWork(ctx, tx, serviceID)
		if err != nil {
			return err
		}
		own := w.own()
		if tally := finance.Tally(own); tally.Pending+tally.Paid > 0 {
			return shared.NewDomainError("INVALID_STATE", fmt.Sprintf(
				"Service already has a plan with %d pending and %d paid installments; update, recalculate or remove it instead",
				tally.Pending, tally.Paid))
		}
		if err := finance.CheckPlan(plan, w.service().TotalValue); err != nil {
			return err
		}
		// canceled rows of an earlier plan keep their parcel numbers
		created, err = finance.Materialize(serviceID, plan, lastParcel(own))
		if err != nil {
			return err
		}
		w.installments = append(w.installments, created...)
		return w.save(ctx)
	})
	s.outcome().finish(ctx, "installments.create", err,
		fmt.Sprintf("%d installments created", len(plan)),
		"Failed to create installments")
	if err != nil {
		return nil, err
	}
	return created, nil
}

// MarkPaid moves a pending installment to PAID. A nil paidDate means today.
func (s *InstallmentService) MarkPaid(ctx context.Context, installmentID uuid.UUID, paidDate *time.Time) error {
	date := s.today()
	if paidDate != nil {
		date = *paidDate
	}
	var paid finance.Installment
	err := s.scope.Execute(ctx, func(tx shared.RecordStore) error {
		repo := finance.NewInstallmentRepository(tx)
		all, err := repo.Load(ctx)
		if err != nil {
			return err
		}
		inst, _, err := finance.FindInstallment(all, installmentID)
		if err != nil {
			return err
		}
		if err := inst.MarkPaid(date); err != nil {
			return err
		}
		paid = *inst

		w, err := s.loadWork(ctx, tx, inst.ServiceID)
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("paid installment has no service", zap.String("installment_id", installmentID.String()))
			return repo.Save(ctx, all)
		}
		if err != nil {
			return err
		}
		w.installments = all
		return w.save(ctx)
	})
	s.outcome().finish(ctx, "installments.pay", err,
		fmt.Sprintf("Installment %d of %s marked as paid", paid.ParcelNumber, s.formatter.FormatMoney(paid.Amount)),
		"Failed to mark installment as paid")
	return err
}

// CancelPending cancels every pending installment of a service.
// Paid installments are untouched and repeating the call changes nothing.
func (s *InstallmentService) CancelPending(ctx context.Context, serviceID uuid.UUID) error {
	canceled := 0
	err := s.scope.Execute(ctx, func(tx shared.RecordStore) error {
		w, err := s.loadWork(ctx, tx, serviceID)
		if err != nil {
			return err
		}
		canceled, err = w.cancelPending()
		if err != nil {
			return err
		}
		return w.save(ctx)
	})
	s.outcome().finish(ctx, "installments.cancel", err,
		fmt.Sprintf("%d pending installments canceled", canceled),
		"Failed to cancel installments")
	return err
}

// UpdatePlan re-plans the unpaid part of a service. Paid installments are
// kept; pending ones are replaced by a fresh plan over the remaining amount.
// It returns false when the user declined a confirmation.
func (s *InstallmentService) UpdatePlan(ctx context.Context, serviceID uuid.UUID, newTotal valueobject.Money, newCount int, firstDueDate time.Time) (bool, error) {
	var summary string
	err := s.scope.Execute(ctx, func(tx shared.RecordStore) error {
		w, err := s.loadWork(ctx, tx, serviceID)
		if err != nil {
			return err
		}
		summary, err = s.replan(ctx, w, newTotal, newCount, firstDueDate, false)
		if err != nil {
			return err
		}
		return w.save(ctx)
	})
	return s.finishReplan(ctx, "installments.update_plan", err, summary, "Failed to update installment plan")
}

// Recalculate re-plans a service anchored on the due date of its first
// installment. Existing paid or canceled installments require confirmation.
func (s *InstallmentService) Recalculate(ctx context.Context, serviceID uuid.UUID, newTotal valueobject.Money, newCount int) (bool, error) {
	var summary string
	err := s.scope.Execute(ctx, func(tx shared.RecordStore) error {
		w, err := s.loadWork(ctx, tx, serviceID)
		if err != nil {
			return err
		}
		own := w.own()
		anchor := s.today()
		if len(own) > 0 {
			anchor = own[0].DueDate
		}
		tally := finance.Tally(own)
		confirmed := false
		if tally.Paid > 0 || tally.Canceled > 0 {
			msg := fmt.Sprintf("This service has %d paid and %d canceled installments. Recalculate the remaining plan?", tally.Paid, tally.Canceled)
			if !shared.ConfirmerFromContext(ctx, s.confirmer).Confirm(ctx, msg) {
				return errDeclined
			}
			confirmed = true
		}
		summary, err = s.replan(ctx, w, newTotal, newCount, anchor, confirmed)
		if err != nil {
			return err
		}
		return w.save(ctx)
	})
	return s.finishReplan(ctx, "installments.recalculate", err, summary, "Failed to recalculate installments")
}

// RemovePlan deletes every installment of a service and takes it off
// installment payment. Removing paid installments requires confirmation.
func (s *InstallmentService) RemovePlan(ctx context.Context, serviceID uuid.UUID) (bool, error) {
	removed := 0
	err := s.scope.Execute(ctx, func(tx shared.RecordStore) error {
		w, err := s.loadWork(ctx, tx, serviceID)
		if err != nil {
			return err
		}
		if tally := finance.Tally(w.own()); tally.Paid > 0 {
			msg := fmt.Sprintf("%d installments of this service are already paid (%s). Remove the plan anyway?",
				tally.Paid, s.formatter.FormatMoney(tally.PaidAmount))
			if !shared.ConfirmerFromContext(ctx, s.confirmer).Confirm(ctx, msg) {
				return errDeclined
			}
		}
		removed = w.removeOwn()
		return w.save(ctx)
	})
	return s.finishReplan(ctx, "installments.remove_plan", err,
		fmt.Sprintf("Installment plan removed (%d installments)", removed),
		"Failed to remove installment plan")
}

// ListByService returns the installments of a service ordered by parcel number
func (s *InstallmentService) ListByService(ctx context.Context, serviceID uuid.UUID) ([]finance.Installment, error) {
	all, err := finance.NewInstallmentRepository(s.store).Load(ctx)
	if err != nil {
		return nil, err
	}
	return finance.InstallmentsOf(all, serviceID), nil
}

// Get returns one installment
func (s *InstallmentService) Get(ctx context.Context, installmentID uuid.UUID) (*finance.Installment, error) {
	all, err := finance.NewInstallmentRepository(s.store).Load(ctx)
	if err != nil {
		return nil, err
	}
	inst, _, err := finance.FindInstallment(all, installmentID)
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// ListOverdue returns pending installments due before asOf, oldest first
func (s *InstallmentService) ListOverdue(ctx context.Context, asOf time.Time) ([]finance.Installment, error) {
	all, err := finance.NewInstallmentRepository(s.store).Load(ctx)
	if err != nil {
		return nil, err
	}
	overdue := make([]finance.Installment, 0)
	for _, inst := range all {
		if inst.IsOverdue(asOf) {
			overdue = append(overdue, inst)
		}
	}
	sortByDueDate(overdue)
	return overdue, nil
}

func (s *InstallmentService) finishReplan(ctx context.Context, operation string, err error, success, failure string) (bool, error) {
	if errors.Is(err, errDeclined) {
		s.logger.Info("operation declined", zap.String("operation", operation))
		s.notifier.NotifySuccess(ctx, declinedMessage)
		return false, nil
	}
	s.outcome().finish(ctx, operation, err, success, failure)
	if err != nil {
		return false, err
	}
	return true, nil
}

// replan applies a new total and count to the loaded work set.
// confirmed skips the purge confirmation when the caller already asked.
func (s *InstallmentService) replan(
	ctx context.Context,
	w *installmentWork,
	newTotal valueobject.Money,
	newCount int,
	firstDueDate time.Time,
	confirmed bool,
) (string, error) {
	if newTotal.IsNegative() {
		return "", shared.NewDomainError("INVALID_PLAN", "Plan total cannot be negative")
	}
	tally := finance.Tally(w.own())
	remaining := newTotal.Subtract(tally.PaidAmount)

	if !remaining.IsPositive() {
		if tally.Pending > 0 {
			msg := fmt.Sprintf("Paid installments already cover %s. Cancel the %d pending installments?",
				s.formatter.FormatMoney(newTotal), tally.Pending)
			if !confirmed && !shared.ConfirmerFromContext(ctx, s.confirmer).Confirm(ctx, msg) {
				return "", errDeclined
			}
			if _, err := w.cancelPending(); err != nil {
				return "", err
			}
		}
		w.service().TotalValue = newTotal
		return "Paid installments cover the new total; no installments remain open", nil
	}

	remainingCount := newCount - tally.Paid
	if remainingCount <= 0 {
		return "", shared.NewDomainError("INSUFFICIENT_INSTALLMENTS",
			fmt.Sprintf("%d installments are already paid; the new plan needs more than %d installments", tally.Paid, tally.Paid))
	}

	plan, err := finance.GeneratePlan(remaining, remainingCount, firstDueDate)
	if err != nil {
		return "", err
	}
	fresh, err := finance.Materialize(w.serviceID, plan, tally.Paid)
	if err != nil {
		return "", err
	}
	w.dropPending()
	w.installments = append(w.installments, fresh...)
	w.service().TotalValue = newTotal

	return fmt.Sprintf("Plan updated: %d installments, first of %s",
		remainingCount, s.formatter.FormatMoney(plan[0].Amount)), nil
}
