package inventory

import (
	"testing"

	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMaterial(t *testing.T) {
	cents := valueobject.NewMoneyFromCents

	tests := []struct {
		name     string
		matName  string
		purchase valueobject.Money
		minStock decimal.Decimal
		wantCode string
	}{
		{"valid", "Copper pipe", cents(1250), decimal.NewFromInt(5), ""},
		{"blank name", "  ", cents(1250), decimal.Zero, "INVALID_NAME"},
		{"negative price", "Gas R410", cents(-1), decimal.Zero, "INVALID_AMOUNT"},
		{"negative minimum", "Gas R410", cents(1), decimal.NewFromInt(-1), "INVALID_QUANTITY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMaterial(tt.matName, "m", tt.purchase, cents(2000), tt.minStock)
			if tt.wantCode != "" {
				assert.ErrorIs(t, err, shared.NewDomainError(tt.wantCode, ""))
				return
			}
			require.NoError(t, err)
			assert.True(t, m.Stock.IsZero())
			assert.True(t, m.IsBelowMinimum())
		})
	}
}

func TestMaterial_CostAndIndex(t *testing.T) {
	m, err := NewMaterial("Copper pipe", "m", valueobject.NewMoneyFromCents(1250), valueobject.Zero(), decimal.NewFromInt(2))
	require.NoError(t, err)
	assert.Equal(t, int64(3750), m.CostOf(decimal.NewFromInt(3)).Cents())

	m.Stock = decimal.NewFromInt(3)
	assert.False(t, m.IsBelowMinimum())

	materials := []Material{*m}
	index := IndexMaterials(materials)
	index[m.ID].Stock = decimal.Zero
	assert.True(t, materials[0].Stock.IsZero(), "index points into the slice")

	_, _, err = FindMaterial(materials, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
