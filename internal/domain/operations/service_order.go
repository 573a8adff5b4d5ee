package operations

import (
	"context"
	"time"

	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the payment state of a service order
type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "UNPAID"
	PaymentStatusPartial PaymentStatus = "PARTIAL"
	PaymentStatusPaid    PaymentStatus = "PAID"
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPartial, PaymentStatusPaid:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// ServiceOrder is a service performed for a client.
// PaymentStatus is never set by callers; it is derived from the order's installments.
type ServiceOrder struct {
	shared.BaseEntity
	ClientID             uuid.UUID         `json:"client_id"`
	Description          string            `json:"description"`
	Date                 time.Time         `json:"date"`
	TotalValue           valueobject.Money `json:"total_value"`
	PaymentStatus        PaymentStatus     `json:"payment_status"`
	IsInstallmentPayment bool              `json:"is_installment_payment"`
	InstallmentIDs       []uuid.UUID       `json:"installment_ids"`
}

// NewServiceOrder creates a new unpaid service order
func NewServiceOrder(clientID uuid.UUID, description string, date time.Time, total valueobject.Money) (*ServiceOrder, error) {
	if total.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Service total cannot be negative")
	}
	if date.IsZero() {
		return nil, shared.NewDomainError("INVALID_DATE", "Service date is required")
	}
	return &ServiceOrder{
		BaseEntity:     shared.NewBaseEntity(),
		ClientID:       clientID,
		Description:    description,
		Date:           shared.DateOf(date),
		TotalValue:     total,
		PaymentStatus:  PaymentStatusUnpaid,
		InstallmentIDs: []uuid.UUID{},
	}, nil
}

// IsPaid returns true when the service has been fully paid
func (s *ServiceOrder) IsPaid() bool {
	return s.PaymentStatus == PaymentStatusPaid
}

// AttachInstallments marks the service as paid in installments
func (s *ServiceOrder) AttachInstallments(ids []uuid.UUID) {
	s.IsInstallmentPayment = len(ids) > 0
	s.InstallmentIDs = append([]uuid.UUID{}, ids...)
	s.Touch()
}

// DetachInstallments clears the installment plan reference
func (s *ServiceOrder) DetachInstallments() {
	s.IsInstallmentPayment = false
	s.InstallmentIDs = []uuid.UUID{}
	s.Touch()
}

// ApplyPaymentStatus records a derived payment status
func (s *ServiceOrder) ApplyPaymentStatus(status PaymentStatus) {
	if s.PaymentStatus == status {
		return
	}
	s.PaymentStatus = status
	s.Touch()
}

// ServiceMaterial records a quantity of a material consumed by a service
type ServiceMaterial struct {
	ID         uuid.UUID       `json:"id"`
	ServiceID  uuid.UUID       `json:"service_id"`
	MaterialID uuid.UUID       `json:"material_id"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// ServiceOrderRepository persists the services collection
type ServiceOrderRepository = shared.CollectionRepository[ServiceOrder]

// ServiceMaterialRepository persists the serviceMaterials collection
type ServiceMaterialRepository = shared.CollectionRepository[ServiceMaterial]

// NewServiceOrderRepository returns the services collection of store
func NewServiceOrderRepository(store shared.RecordStore) ServiceOrderRepository {
	return shared.NewJSONCollection[ServiceOrder](store, shared.CollectionServices)
}

// NewServiceMaterialRepository returns the serviceMaterials collection of store
func NewServiceMaterialRepository(store shared.RecordStore) ServiceMaterialRepository {
	return shared.NewJSONCollection[ServiceMaterial](store, shared.CollectionServiceMaterials)
}

// FindService looks up a service order by id
func FindService(services []ServiceOrder, id uuid.UUID) (*ServiceOrder, int, error) {
	return shared.FindByID(services, id, func(s *ServiceOrder) uuid.UUID { return s.ID }, "Service")
}

// LoadService loads the services collection and returns it with the index of id
func LoadService(ctx context.Context, repo ServiceOrderRepository, id uuid.UUID) ([]ServiceOrder, int, error) {
	services, err := repo.Load(ctx)
	if err != nil {
		return nil, -1, err
	}
	_, idx, err := FindService(services, id)
	if err != nil {
		return nil, -1, err
	}
	return services, idx, nil
}
