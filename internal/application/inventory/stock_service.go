package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/fieldservice/backend/internal/domain/inventory"
	"github.com/fieldservice/backend/internal/domain/operations"
	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RecordMovementRequest describes one stock movement.
// For ADJUSTMENT, Quantity is the counted stock level.
type RecordMovementRequest struct {
	MaterialID  uuid.UUID              `json:"material_id" binding:"required"`
	Type        inventory.MovementType `json:"movement_type" binding:"required"`
	Quantity    decimal.Decimal        `json:"quantity" binding:"required"`
	Reason      string                 `json:"reason"`
	ReferenceID *uuid.UUID             `json:"reference_id"`
	Notes       string                 `json:"notes"`
}

// StockVerification compares a material's stock with the replay of its movements
type StockVerification struct {
	MaterialID    uuid.UUID       `json:"material_id"`
	Consistent    bool            `json:"consistent"`
	ReplayedStock decimal.Decimal `json:"replayed_stock"`
	CurrentStock  decimal.Decimal `json:"current_stock"`
	Movements     int             `json:"movements"`
	Breaks        []string        `json:"breaks,omitempty"`
}

// StockLedgerService records stock movements and audits material stock
type StockLedgerService struct {
	store    shared.RecordStore
	scope    shared.TransactionScope
	notifier shared.Notifier
	logger   *zap.Logger
}

// NewStockLedgerService creates a new StockLedgerService
func NewStockLedgerService(
	store shared.RecordStore,
	scope shared.TransactionScope,
	notifier shared.Notifier,
	logger *zap.Logger,
) *StockLedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockLedgerService{
		store:    store,
		scope:    scope,
		notifier: notifier,
		logger:   logger.Named("stock"),
	}
}

// RecordMovement applies a movement to a material and appends it to the ledger
func (s *StockLedgerService) RecordMovement(ctx context.Context, req RecordMovementRequest) (*inventory.StockMovement, error) {
	var recorded *inventory.StockMovement
	err := s.scope.Execute(ctx, func(tx shared.RecordStore) error {
		l, err := loadLedger(ctx, tx)
		if err != nil {
			return err
		}
		recorded, err = l.apply(req)
		if err != nil {
			return err
		}
		return l.save(ctx)
	})
	s.finish(ctx, "Stock movement recorded", "Failed to record stock movement", err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("stock movement recorded",
		zap.String("material_id", recorded.MaterialID.String()),
		zap.String("type", recorded.MovementType.String()),
		zap.String("new_stock", recorded.NewStock.String()),
	)
	return recorded, nil
}

// ConsumeForService takes the materials used by a service out of stock and
// links them to the service. Either every material is consumed or none is.
func (s *StockLedgerService) ConsumeForService(ctx context.Context, serviceID uuid.UUID, used []operations.ServiceMaterial) ([]inventory.StockMovement, error) {
	var movements []inventory.StockMovement
	err := s.scope.Execute(ctx, func(tx shared.RecordStore) error {
		if _, _, err := operations.LoadService(ctx, operations.NewServiceOrderRepository(tx), serviceID); err != nil {
			return err
		}
		l, err := loadLedger(ctx, tx)
		if err != nil {
			return err
		}
		linkRepo := operations.NewServiceMaterialRepository(tx)
		links, err := linkRepo.Load(ctx)
		if err != nil {
			return err
		}

		ref := serviceID
		for _, sm := range used {
			m, err := l.apply(RecordMovementRequest{
				MaterialID:  sm.MaterialID,
				Type:        inventory.MovementTypeOut,
				Quantity:    sm.Quantity,
				Reason:      "Used in service",
				ReferenceID: &ref,
			})
			if err != nil {
				return err
			}
			movements = append(movements, *m)

			if sm.ID == uuid.Nil {
				sm.ID = uuid.New()
			}
			sm.ServiceID = serviceID
			links = append(links, sm)
		}
		if err := linkRepo.Save(ctx, links); err != nil {
			return err
		}
		return l.save(ctx)
	})
	s.finish(ctx,
		fmt.Sprintf("%d materials taken from stock", len(used)),
		"Failed to consume materials", err)
	if err != nil {
		return nil, err
	}
	return movements, nil
}

// History returns the movements of a material, oldest first. A failed read
// is logged and yields an empty history.
func (s *StockLedgerService) History(ctx context.Context, materialID uuid.UUID) []inventory.StockMovement {
	all, err := inventory.NewStockMovementRepository(s.store).Load(ctx)
	if err != nil {
		s.logger.Warn("stock history unavailable", zap.String("material_id", materialID.String()), zap.Error(err))
		return []inventory.StockMovement{}
	}
	return inventory.MovementsFor(all, materialID)
}

// Verify replays a material's movements from zero and compares the result
// with its stored stock.
func (s *StockLedgerService) Verify(ctx context.Context, materialID uuid.UUID) (*StockVerification, error) {
	materials, err := inventory.NewMaterialRepository(s.store).Load(ctx)
	if err != nil {
		return nil, err
	}
	material, _, err := inventory.FindMaterial(materials, materialID)
	if err != nil {
		return nil, err
	}

	replay := inventory.Replay(s.History(ctx, materialID))
	v := &StockVerification{
		MaterialID:    materialID,
		ReplayedStock: replay.FinalStock,
		CurrentStock:  material.Stock,
		Movements:     replay.Movements,
		Breaks:        replay.Breaks,
	}
	if !replay.FinalStock.Equal(material.Stock) {
		v.Breaks = append(v.Breaks, fmt.Sprintf("stored stock %s differs from replayed stock %s", material.Stock, replay.FinalStock))
	}
	v.Consistent = len(v.Breaks) == 0
	if !v.Consistent {
		s.logger.Warn("stock ledger inconsistent", zap.String("material_id", materialID.String()), zap.Strings("breaks", v.Breaks))
	}
	return v, nil
}

// LowStock returns materials at or below their minimum stock
func (s *StockLedgerService) LowStock(ctx context.Context) ([]inventory.Material, error) {
	materials, err := inventory.NewMaterialRepository(s.store).Load(ctx)
	if err != nil {
		return nil, err
	}
	low := make([]inventory.Material, 0)
	for _, m := range materials {
		if m.IsBelowMinimum() {
			low = append(low, m)
		}
	}
	return low, nil
}

func (s *StockLedgerService) finish(ctx context.Context, success, failure string, err error) {
	if err == nil {
		s.notifier.NotifySuccess(ctx, success)
		return
	}
	msg := err.Error()
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		msg = domainErr.Message
	}
	s.logger.Warn(failure, zap.Error(err))
	s.notifier.NotifyError(ctx, failure+": "+msg)
}

// ledger is the materials and movements collections loaded in one unit of work
type ledger struct {
	materialRepo inventory.MaterialRepository
	movementRepo inventory.StockMovementRepository
	materials    []inventory.Material
	movements    []inventory.StockMovement
}

func loadLedger(ctx context.Context, tx shared.RecordStore) (*ledger, error) {
	l := &ledger{
		materialRepo: inventory.NewMaterialRepository(tx),
		movementRepo: inventory.NewStockMovementRepository(tx),
	}
	var err error
	if l.materials, err = l.materialRepo.Load(ctx); err != nil {
		return nil, err
	}
	if l.movements, err = l.movementRepo.Load(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *ledger) apply(req RecordMovementRequest) (*inventory.StockMovement, error) {
	material, _, err := inventory.FindMaterial(l.materials, req.MaterialID)
	if err != nil {
		return nil, err
	}
	movement, err := inventory.NewStockMovement(material.ID, req.Type, req.Quantity, material.Stock, req.Reason, req.ReferenceID, req.Notes)
	if err != nil {
		return nil, err
	}
	material.Stock = movement.NewStock
	material.Touch()
	l.movements = append(l.movements, *movement)
	return movement, nil
}

func (l *ledger) save(ctx context.Context) error {
	if err := l.movementRepo.Save(ctx, l.movements); err != nil {
		return err
	}
	return l.materialRepo.Save(ctx, l.materials)
}
