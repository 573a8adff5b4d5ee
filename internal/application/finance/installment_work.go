package finance

import (
	"context"
	"sort"

	"github.com/fieldservice/backend/internal/domain/finance"
	"github.com/fieldservice/backend/internal/domain/operations"
	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// installmentWork is the services and installments collections loaded
// inside one transaction, focused on a single service.
type installmentWork struct {
	serviceID    uuid.UUID
	services     []operations.ServiceOrder
	serviceIdx   int
	installments []finance.Installment

	serviceRepo     operations.ServiceOrderRepository
	installmentRepo finance.InstallmentRepository
}

func (s *InstallmentService) loadWork(ctx context.Context, tx shared.RecordStore, serviceID uuid.UUID) (*installmentWork, error) {
	w := &installmentWork{
		serviceID:       serviceID,
		serviceRepo:     operations.NewServiceOrderRepository(tx),
		installmentRepo: finance.NewInstallmentRepository(tx),
	}
	services, idx, err := operations.LoadService(ctx, w.serviceRepo, serviceID)
	if err != nil {
		return nil, err
	}
	w.services, w.serviceIdx = services, idx

	w.installments, err = w.installmentRepo.Load(ctx)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (w *installmentWork) service() *operations.ServiceOrder {
	return &w.services[w.serviceIdx]
}

func (w *installmentWork) own() []finance.Installment {
	return finance.InstallmentsOf(w.installments, w.serviceID)
}

// cancelPending cancels the pending installments of the service in place
func (w *installmentWork) cancelPending() (int, error) {
	n := 0
	for i := range w.installments {
		inst := &w.installments[i]
		if inst.ServiceID != w.serviceID || !inst.IsPending() {
			continue
		}
		if err := inst.Cancel(); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// dropPending removes the pending installments of the service
func (w *installmentWork) dropPending() {
	kept := w.installments[:0]
	for _, inst := range w.installments {
		if inst.ServiceID == w.serviceID && inst.IsPending() {
			continue
		}
		kept = append(kept, inst)
	}
	w.installments = kept
}

// removeOwn removes every installment of the service
func (w *installmentWork) removeOwn() int {
	kept := w.installments[:0]
	removed := 0
	for _, inst := range w.installments {
		if inst.ServiceID == w.serviceID {
			removed++
			continue
		}
		kept = append(kept, inst)
	}
	w.installments = kept
	return removed
}

// save derives the service payment state and writes both collections
func (w *installmentWork) save(ctx context.Context) error {
	svc := w.service()
	finance.SyncServicePayment(svc, w.installments)
	if err := w.installmentRepo.Save(ctx, w.installments); err != nil {
		return err
	}
	return w.serviceRepo.Save(ctx, w.services)
}

// lastParcel is the highest parcel number among installments, 0 when empty
func lastParcel(installments []finance.Installment) int {
	last := 0
	for _, inst := range installments {
		last = max(last, inst.ParcelNumber)
	}
	return last
}

func sortByDueDate(installments []finance.Installment) {
	sort.SliceStable(installments, func(a, b int) bool {
		return installments[a].DueDate.Before(installments[b].DueDate)
	})
}
