package inventory

import (
	"testing"
	"time"

	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestMovementType_IsValid(t *testing.T) {
	tests := []struct {
		movementType MovementType
		valid        bool
	}{
		{MovementTypeIn, true},
		{MovementTypeOut, true},
		{MovementTypeAdjustment, true},
		{MovementType("TRANSFER"), false},
		{MovementType(""), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.movementType), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.movementType.IsValid())
		})
	}
}

func TestNewStockMovement(t *testing.T) {
	materialID := uuid.New()

	t.Run("in adds to stock", func(t *testing.T) {
		m, err := NewStockMovement(materialID, MovementTypeIn, d("5"), d("10"), "purchase", nil, "")
		require.NoError(t, err)
		assert.True(t, m.NewStock.Equal(d("15")))
		assert.True(t, m.Delta().Equal(d("5")))
	})

	t.Run("out removes from stock", func(t *testing.T) {
		ref := uuid.New()
		m, err := NewStockMovement(materialID, MovementTypeOut, d("4"), d("10"), "service", &ref, "")
		require.NoError(t, err)
		assert.True(t, m.NewStock.Equal(d("6")))
		assert.Equal(t, &ref, m.ReferenceID)
		assert.True(t, m.Delta().Equal(d("-4")))
	})

	t.Run("out beyond stock is rejected", func(t *testing.T) {
		_, err := NewStockMovement(materialID, MovementTypeOut, d("11"), d("10"), "service", nil, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	})

	t.Run("adjustment records the difference", func(t *testing.T) {
		m, err := NewStockMovement(materialID, MovementTypeAdjustment, d("7"), d("10"), "count", nil, "")
		require.NoError(t, err)
		assert.True(t, m.Quantity.Equal(d("3")))
		assert.True(t, m.NewStock.Equal(d("7")))
		assert.True(t, m.Delta().Equal(d("-3")))
	})

	t.Run("adjustment without change is rejected", func(t *testing.T) {
		_, err := NewStockMovement(materialID, MovementTypeAdjustment, d("10"), d("10"), "count", nil, "")
		assert.Error(t, err)
	})

	t.Run("non positive quantity is rejected", func(t *testing.T) {
		_, err := NewStockMovement(materialID, MovementTypeIn, decimal.Zero, d("10"), "x", nil, "")
		assert.Error(t, err)
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		_, err := NewStockMovement(materialID, MovementType("LOST"), d("1"), d("10"), "x", nil, "")
		assert.Error(t, err)
	})
}

func TestReplay(t *testing.T) {
	materialID := uuid.New()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	build := func(t *testing.T) []StockMovement {
		steps := []struct {
			kind MovementType
			qty  string
		}{
			{MovementTypeIn, "10"},
			{MovementTypeOut, "3"},
			{MovementTypeAdjustment, "12"},
			{MovementTypeOut, "2"},
		}
		stock := decimal.Zero
		var movements []StockMovement
		for i, s := range steps {
			m, err := NewStockMovement(materialID, s.kind, d(s.qty), stock, "step", nil, "")
			require.NoError(t, err)
			m.CreatedAt = base.Add(time.Duration(i) * time.Minute)
			stock = m.NewStock
			movements = append(movements, *m)
		}
		return movements
	}

	t.Run("reproduces the final stock", func(t *testing.T) {
		movements := build(t)
		result := Replay(movements)
		assert.True(t, result.Consistent())
		assert.Equal(t, 4, result.Movements)
		assert.True(t, result.FinalStock.Equal(d("10")))
	})

	t.Run("order of input does not matter", func(t *testing.T) {
		movements := build(t)
		movements[0], movements[3] = movements[3], movements[0]
		result := Replay(movements)
		assert.True(t, result.Consistent())
		assert.True(t, result.FinalStock.Equal(d("10")))
	})

	t.Run("detects a broken chain", func(t *testing.T) {
		movements := build(t)
		movements[2].PreviousStock = d("99")
		result := Replay(movements)
		assert.False(t, result.Consistent())
		assert.NotEmpty(t, result.Breaks)
	})

	t.Run("empty history replays to zero", func(t *testing.T) {
		result := Replay(nil)
		assert.True(t, result.Consistent())
		assert.True(t, result.FinalStock.IsZero())
	})
}

func TestMovementsFor(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	now := time.Now()
	movements := []StockMovement{
		{ID: uuid.New(), MaterialID: a, CreatedAt: now.Add(time.Minute)},
		{ID: uuid.New(), MaterialID: b, CreatedAt: now},
		{ID: uuid.New(), MaterialID: a, CreatedAt: now},
	}
	got := MovementsFor(movements, a)
	require.Len(t, got, 2)
	assert.Equal(t, movements[2].ID, got[0].ID)
	assert.Equal(t, movements[0].ID, got[1].ID)
}
