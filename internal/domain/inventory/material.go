package inventory

import (
	"strings"

	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Material is a stocked item consumed by services
type Material struct {
	shared.BaseEntity
	Name          string            `json:"name"`
	Unit          string            `json:"unit"`
	PurchasePrice valueobject.Money `json:"purchase_price"`
	SalePrice     valueobject.Money `json:"sale_price"`
	Stock         decimal.Decimal   `json:"stock"`
	MinStock      decimal.Decimal   `json:"min_stock"`
}

// NewMaterial creates a new material with zero stock
func NewMaterial(name, unit string, purchasePrice, salePrice valueobject.Money, minStock decimal.Decimal) (*Material, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Material name cannot be empty")
	}
	if purchasePrice.IsNegative() || salePrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Material prices cannot be negative")
	}
	if minStock.IsNegative() {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Minimum stock cannot be negative")
	}
	return &Material{
		BaseEntity:    shared.NewBaseEntity(),
		Name:          name,
		Unit:          unit,
		PurchasePrice: purchasePrice,
		SalePrice:     salePrice,
		Stock:         decimal.Zero,
		MinStock:      minStock,
	}, nil
}

// IsBelowMinimum returns true when stock is at or below the minimum level
func (m *Material) IsBelowMinimum() bool {
	return m.Stock.LessThanOrEqual(m.MinStock)
}

// CostOf returns the purchase cost of quantity units
func (m *Material) CostOf(quantity decimal.Decimal) valueobject.Money {
	return m.PurchasePrice.Multiply(quantity)
}

// MaterialRepository persists the materials collection
type MaterialRepository = shared.CollectionRepository[Material]

// NewMaterialRepository returns the materials collection of store
func NewMaterialRepository(store shared.RecordStore) MaterialRepository {
	return shared.NewJSONCollection[Material](store, shared.CollectionMaterials)
}

// FindMaterial looks up a material by id
func FindMaterial(materials []Material, id uuid.UUID) (*Material, int, error) {
	return shared.FindByID(materials, id, func(m *Material) uuid.UUID { return m.ID }, "Material")
}

// IndexMaterials maps materials by id
func IndexMaterials(materials []Material) map[uuid.UUID]*Material {
	index := make(map[uuid.UUID]*Material, len(materials))
	for i := range materials {
		index[materials[i].ID] = &materials[i]
	}
	return index
}
