package finance

import (
	"github.com/fieldservice/backend/internal/domain/operations"
	"github.com/google/uuid"
)

// DerivePaymentStatus is the single source of truth for a service's payment
// status. Canceled installments are ignored: the service is paid when every
// remaining installment is paid, partial when only some are, and unpaid
// otherwise (including when no installments remain).
func DerivePaymentStatus(installments []Installment) operations.PaymentStatus {
	active, paid := 0, 0
	for _, inst := range installments {
		switch inst.Status {
		case InstallmentStatusPaid:
			active++
			paid++
		case InstallmentStatusPending:
			active++
		}
	}
	switch {
	case active > 0 && paid == active:
		return operations.PaymentStatusPaid
	case paid > 0:
		return operations.PaymentStatusPartial
	default:
		return operations.PaymentStatusUnpaid
	}
}

// SyncServicePayment refreshes the service's installment id list and
// re-derives its payment status from all installments in the collection.
// Services without installments that are not on an installment plan are
// left untouched.
func SyncServicePayment(service *operations.ServiceOrder, all []Installment) {
	own := InstallmentsOf(all, service.ID)
	if len(own) == 0 {
		if service.IsInstallmentPayment {
			service.DetachInstallments()
			service.ApplyPaymentStatus(operations.PaymentStatusUnpaid)
		}
		return
	}
	ids := make([]uuid.UUID, 0, len(own))
	for _, inst := range own {
		ids = append(ids, inst.ID)
	}
	service.AttachInstallments(ids)
	service.ApplyPaymentStatus(DerivePaymentStatus(own))
}
