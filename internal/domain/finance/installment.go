package finance

import (
	"fmt"
	"sort"
	"time"

	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// InstallmentStatus represents the status of an installment
type InstallmentStatus string

const (
	InstallmentStatusPending  InstallmentStatus = "PENDING"
	InstallmentStatusPaid     InstallmentStatus = "PAID"
	InstallmentStatusCanceled InstallmentStatus = "CANCELED"
)

// IsValid checks if the status is a valid InstallmentStatus
func (s InstallmentStatus) IsValid() bool {
	switch s {
	case InstallmentStatusPending, InstallmentStatusPaid, InstallmentStatusCanceled:
		return true
	}
	return false
}

// String returns the string representation of InstallmentStatus
func (s InstallmentStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further transition is allowed
func (s InstallmentStatus) IsTerminal() bool {
	return s == InstallmentStatusPaid || s == InstallmentStatusCanceled
}

// CanPay returns true if the installment can be marked paid
func (s InstallmentStatus) CanPay() bool {
	return s == InstallmentStatusPending
}

// CanCancel returns true if the installment can be canceled
func (s InstallmentStatus) CanCancel() bool {
	return s == InstallmentStatusPending
}

// Installment is one scheduled payment of a service's plan
type Installment struct {
	shared.BaseEntity
	ServiceID    uuid.UUID         `json:"service_id"`
	ParcelNumber int               `json:"parcel_number"`
	Amount       valueobject.Money `json:"amount"`
	DueDate      time.Time         `json:"due_date"`
	Status       InstallmentStatus `json:"status"`
	PaidDate     *time.Time        `json:"paid_date,omitempty"`
}

// NewInstallment creates a pending installment
func NewInstallment(serviceID uuid.UUID, parcelNumber int, amount valueobject.Money, dueDate time.Time) (*Installment, error) {
	if serviceID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SERVICE", "Service ID cannot be empty")
	}
	if parcelNumber < 1 {
		return nil, shared.NewDomainError("INVALID_PARCEL", "Parcel number must start at 1")
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Installment amount must be positive")
	}
	if dueDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_DATE", "Installment due date is required")
	}
	return &Installment{
		BaseEntity:   shared.NewBaseEntity(),
		ServiceID:    serviceID,
		ParcelNumber: parcelNumber,
		Amount:       amount,
		DueDate:      shared.DateOf(dueDate),
		Status:       InstallmentStatusPending,
	}, nil
}

// MarkPaid transitions a pending installment to paid on the given date
func (i *Installment) MarkPaid(paidDate time.Time) error {
	if !i.Status.CanPay() {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot pay installment %d in %s status", i.ParcelNumber, i.Status))
	}
	paid := shared.DateOf(paidDate)
	i.Status = InstallmentStatusPaid
	i.PaidDate = &paid
	i.Touch()
	return nil
}

// Cancel transitions a pending installment to canceled
func (i *Installment) Cancel() error {
	if !i.Status.CanCancel() {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot cancel installment %d in %s status", i.ParcelNumber, i.Status))
	}
	i.Status = InstallmentStatusCanceled
	i.PaidDate = nil
	i.Touch()
	return nil
}

// IsPaid returns true if the installment has been paid
func (i *Installment) IsPaid() bool {
	return i.Status == InstallmentStatusPaid
}

// IsPending returns true if the installment is still open
func (i *Installment) IsPending() bool {
	return i.Status == InstallmentStatusPending
}

// IsOverdue returns true for a pending installment due before asOf
func (i *Installment) IsOverdue(asOf time.Time) bool {
	return i.IsPending() && i.DueDate.Before(shared.DateOf(asOf))
}

// InstallmentRepository persists the installments collection
type InstallmentRepository = shared.CollectionRepository[Installment]

// NewInstallmentRepository returns the installments collection of store
func NewInstallmentRepository(store shared.RecordStore) InstallmentRepository {
	return shared.NewJSONCollection[Installment](store, shared.CollectionInstallments)
}

// FindInstallment looks up an installment by id
func FindInstallment(installments []Installment, id uuid.UUID) (*Installment, int, error) {
	return shared.FindByID(installments, id, func(i *Installment) uuid.UUID { return i.ID }, "Installment")
}

// InstallmentsOf returns the installments of a service ordered by parcel number
func InstallmentsOf(installments []Installment, serviceID uuid.UUID) []Installment {
	out := make([]Installment, 0)
	for _, inst := range installments {
		if inst.ServiceID == serviceID {
			out = append(out, inst)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].ParcelNumber < out[b].ParcelNumber
	})
	return out
}

// InstallmentTally summarises a service's installments by status
type InstallmentTally struct {
	Paid       int
	Pending    int
	Canceled   int
	PaidAmount valueobject.Money
	OpenAmount valueobject.Money
}

// Tally counts installments by status and sums paid and pending amounts
func Tally(installments []Installment) InstallmentTally {
	t := InstallmentTally{PaidAmount: valueobject.Zero(), OpenAmount: valueobject.Zero()}
	for _, inst := range installments {
		switch inst.Status {
		case InstallmentStatusPaid:
			t.Paid++
			t.PaidAmount = t.PaidAmount.Add(inst.Amount)
		case InstallmentStatusPending:
			t.Pending++
			t.OpenAmount = t.OpenAmount.Add(inst.Amount)
		case InstallmentStatusCanceled:
			t.Canceled++
		}
	}
	return t
}
