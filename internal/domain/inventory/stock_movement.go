package inventory

import (
	"fmt"
	"sort"
	"time"

	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementType represents the direction of a stock movement
type MovementType string

const (
	// MovementTypeIn adds quantity to stock (purchase, return)
	MovementTypeIn MovementType = "IN"
	// MovementTypeOut removes quantity from stock (consumption by a service)
	MovementTypeOut MovementType = "OUT"
	// MovementTypeAdjustment sets stock to a counted level
	MovementTypeAdjustment MovementType = "ADJUSTMENT"
)

// String returns the string representation of MovementType
func (t MovementType) String() string {
	return string(t)
}

// IsValid returns true if the movement type is valid
func (t MovementType) IsValid() bool {
	switch t {
	case MovementTypeIn, MovementTypeOut, MovementTypeAdjustment:
		return true
	}
	return false
}

// StockMovement is an immutable record of a stock change.
// Corrections are made with new movements, never by editing old ones.
type StockMovement struct {
	ID            uuid.UUID       `json:"id"`
	MaterialID    uuid.UUID       `json:"material_id"`
	MovementType  MovementType    `json:"movement_type"`
	Quantity      decimal.Decimal `json:"quantity"` // always positive, direction from type
	Reason        string          `json:"reason"`
	PreviousStock decimal.Decimal `json:"previous_stock"`
	NewStock      decimal.Decimal `json:"new_stock"`
	ReferenceID   *uuid.UUID      `json:"reference_id,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewStockMovement computes the resulting stock of applying a movement to
// previousStock. For IN and OUT quantity is the amount moved; for ADJUSTMENT
// quantity is the counted target level and the recorded quantity becomes the
// absolute difference.
func NewStockMovement(
	materialID uuid.UUID,
	movementType MovementType,
	quantity decimal.Decimal,
	previousStock decimal.Decimal,
	reason string,
	referenceID *uuid.UUID,
	notes string,
) (*StockMovement, error) {
	if materialID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_MATERIAL", "Material ID cannot be empty")
	}
	if !movementType.IsValid() {
		return nil, shared.NewDomainError("INVALID_MOVEMENT_TYPE", fmt.Sprintf("Unknown movement type %q", movementType))
	}

	var recorded, newStock decimal.Decimal
	switch movementType {
	case MovementTypeIn:
		if !quantity.IsPositive() {
			return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
		}
		recorded = quantity
		newStock = previousStock.Add(quantity)
	case MovementTypeOut:
		if !quantity.IsPositive() {
			return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
		}
		if quantity.GreaterThan(previousStock) {
			return nil, shared.NewDomainError("INSUFFICIENT_STOCK",
				fmt.Sprintf("Cannot remove %s units, only %s in stock", quantity, previousStock))
		}
		recorded = quantity
		newStock = previousStock.Sub(quantity)
	case MovementTypeAdjustment:
		if quantity.IsNegative() {
			return nil, shared.NewDomainError("INVALID_QUANTITY", "Adjusted stock cannot be negative")
		}
		recorded = quantity.Sub(previousStock).Abs()
		if recorded.IsZero() {
			return nil, shared.NewDomainError("NO_CHANGE", "Adjustment does not change stock")
		}
		newStock = quantity
	}

	return &StockMovement{
		ID:            uuid.New(),
		MaterialID:    materialID,
		MovementType:  movementType,
		Quantity:      recorded,
		Reason:        reason,
		PreviousStock: previousStock,
		NewStock:      newStock,
		ReferenceID:   referenceID,
		Notes:         notes,
		CreatedAt:     time.Now(),
	}, nil
}

// Delta returns the signed stock change of the movement
func (m *StockMovement) Delta() decimal.Decimal {
	switch m.MovementType {
	case MovementTypeIn:
		return m.Quantity
	case MovementTypeOut:
		return m.Quantity.Neg()
	default:
		if m.NewStock.LessThan(m.PreviousStock) {
			return m.Quantity.Neg()
		}
		return m.Quantity
	}
}

// ReplayResult is the outcome of replaying a material's movement chain
type ReplayResult struct {
	FinalStock decimal.Decimal
	Movements  int
	Breaks     []string
}

// Consistent reports whether every movement continued from the previous one
func (r ReplayResult) Consistent() bool {
	return len(r.Breaks) == 0
}

// Replay applies movements in creation order starting from zero stock and
// records every place where a movement's previous stock does not match the
// running total or its new stock does not match previous plus delta.
func Replay(movements []StockMovement) ReplayResult {
	ordered := append([]StockMovement(nil), movements...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	result := ReplayResult{FinalStock: decimal.Zero}
	for i := range ordered {
		m := &ordered[i]
		if !m.PreviousStock.Equal(result.FinalStock) {
			result.Breaks = append(result.Breaks, fmt.Sprintf(
				"movement %s starts at %s but running stock is %s", m.ID, m.PreviousStock, result.FinalStock))
		}
		expected := result.FinalStock.Add(m.Delta())
		if !m.NewStock.Equal(m.PreviousStock.Add(m.Delta())) {
			result.Breaks = append(result.Breaks, fmt.Sprintf(
				"movement %s records %s but %s %s from %s gives %s",
				m.ID, m.NewStock, m.MovementType, m.Quantity, m.PreviousStock, m.PreviousStock.Add(m.Delta())))
		}
		result.FinalStock = expected
		result.Movements++
	}
	return result
}

// MovementsFor filters movements of one material, oldest first
func MovementsFor(movements []StockMovement, materialID uuid.UUID) []StockMovement {
	out := make([]StockMovement, 0)
	for _, m := range movements {
		if m.MaterialID == materialID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// StockMovementRepository persists the stockMovements collection
type StockMovementRepository = shared.CollectionRepository[StockMovement]

// NewStockMovementRepository returns the stockMovements collection of store
func NewStockMovementRepository(store shared.RecordStore) StockMovementRepository {
	return shared.NewJSONCollection[StockMovement](store, shared.CollectionStockMovements)
}
