package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRecordStore implements shared.RecordStore on the collection_records table.
//
// Inside a GormTransactionScope the store remembers the version of every
// collection it loaded and only writes back if that version is unchanged,
// returning CONCURRENCY_CONFLICT otherwise. Writes outside a scope replace
// the collection unconditionally.
type GormRecordStore struct {
	db    *gorm.DB
	clock func() time.Time
	seen  map[shared.Collection]int
}

// NewGormRecordStore creates a record store over db
func NewGormRecordStore(db *gorm.DB) *GormRecordStore {
	return &GormRecordStore{db: db, clock: time.Now}
}

// unitOfWork returns a store that tracks loaded versions on db
func unitOfWork(db *gorm.DB, clock func() time.Time) *GormRecordStore {
	return &GormRecordStore{db: db, clock: clock, seen: make(map[shared.Collection]int)}
}

// Load returns the collection payload, or nil when it was never saved
func (s *GormRecordStore) Load(ctx context.Context, collection shared.Collection) (json.RawMessage, error) {
	var rec models.CollectionRecord
	err := s.db.WithContext(ctx).
		Where("collection = ?", string(collection)).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.track(collection, 0)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load collection %s: %w", collection, err)
	}
	s.track(collection, rec.Version)
	return json.RawMessage(rec.Payload), nil
}

// Save replaces the collection payload and bumps its version
func (s *GormRecordStore) Save(ctx context.Context, collection shared.Collection, data json.RawMessage) error {
	now := s.clock().UTC()
	if version, tracked := s.seen[collection]; tracked {
		return s.saveVersioned(ctx, collection, data, version, now)
	}

	rec := models.CollectionRecord{
		Collection: string(collection),
		Payload:    string(data),
		Version:    1,
		UpdatedAt:  now,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "collection"}},
		DoUpdates: clause.Assignments(map[string]any{
			"payload":    rec.Payload,
			"version":    gorm.Expr("collection_records.version + 1"),
			"updated_at": now,
		}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save collection %s: %w", collection, err)
	}
	return nil
}

func (s *GormRecordStore) saveVersioned(ctx context.Context, collection shared.Collection, data json.RawMessage, version int, now time.Time) error {
	db := s.db.WithContext(ctx)

	if version == 0 {
		rec := models.CollectionRecord{
			Collection: string(collection),
			Payload:    string(data),
			Version:    1,
			UpdatedAt:  now,
		}
		result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
		if result.Error != nil {
			return fmt.Errorf("save collection %s: %w", collection, result.Error)
		}
		if result.RowsAffected == 0 {
			return conflict(collection)
		}
		s.seen[collection] = 1
		return nil
	}

	result := db.Model(&models.CollectionRecord{}).
		Where("collection = ? AND version = ?", string(collection), version).
		Updates(map[string]any{
			"payload":    string(data),
			"version":    version + 1,
			"updated_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("save collection %s: %w", collection, result.Error)
	}
	if result.RowsAffected == 0 {
		return conflict(collection)
	}
	s.seen[collection] = version + 1
	return nil
}

func (s *GormRecordStore) track(collection shared.Collection, version int) {
	if s.seen == nil {
		return
	}
	if _, ok := s.seen[collection]; !ok {
		s.seen[collection] = version
	}
}

func conflict(collection shared.Collection) error {
	return shared.NewDomainError(shared.ErrConcurrencyConflict.Code,
		fmt.Sprintf("Collection %s was modified by another operation, retry the request", collection))
}

// Versions returns the current version of every stored collection
func (s *GormRecordStore) Versions(ctx context.Context) (map[shared.Collection]int, error) {
	var recs []models.CollectionRecord
	if err := s.db.WithContext(ctx).Select("collection", "version").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list collection versions: %w", err)
	}
	out := make(map[shared.Collection]int, len(recs))
	for _, r := range recs {
		out[shared.Collection(r.Collection)] = r.Version
	}
	return out, nil
}

// GormTransactionScope implements shared.TransactionScope with a database transaction.
type GormTransactionScope struct {
	db    *gorm.DB
	clock func() time.Time
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db, clock: time.Now}
}

// Execute runs fn within a database transaction. If fn returns an error the
// transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(tx shared.RecordStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(unitOfWork(tx, s.clock))
	})
}

var (
	_ shared.RecordStore      = (*GormRecordStore)(nil)
	_ shared.TransactionScope = (*GormTransactionScope)(nil)
)
