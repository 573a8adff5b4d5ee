package shared

import (
	"context"
	"encoding/json"
	"fmt"
)

// Collection names a persisted collection of records
type Collection string

const (
	CollectionClients            Collection = "clients"
	CollectionMaterials          Collection = "materials"
	CollectionTechnicians        Collection = "technicians"
	CollectionServices           Collection = "services"
	CollectionServiceMaterials   Collection = "serviceMaterials"
	CollectionServiceTechnicians Collection = "serviceTechnicians"
	CollectionOrders             Collection = "orders"
	CollectionOrderMaterials     Collection = "orderMaterials"
	CollectionExpenses           Collection = "expenses"
	CollectionPayments           Collection = "payments"
	CollectionInstallments       Collection = "installments"
	CollectionEquipments         Collection = "equipments"
	CollectionAppointments       Collection = "appointments"
	CollectionFinancialData      Collection = "financialData"
	CollectionStockMovements     Collection = "stockMovements"
	CollectionUsers              Collection = "users"
)

// AllCollections lists every collection in backup order
func AllCollections() []Collection {
	return []Collection{
		CollectionClients,
		CollectionMaterials,
		CollectionTechnicians,
		CollectionServices,
		CollectionServiceMaterials,
		CollectionServiceTechnicians,
		CollectionOrders,
		CollectionOrderMaterials,
		CollectionExpenses,
		CollectionPayments,
		CollectionInstallments,
		CollectionEquipments,
		CollectionAppointments,
		CollectionFinancialData,
		CollectionStockMovements,
		CollectionUsers,
	}
}

// IsValid checks the collection is known
func (c Collection) IsValid() bool {
	for _, known := range AllCollections() {
		if c == known {
			return true
		}
	}
	return false
}

// String returns the collection name
func (c Collection) String() string {
	return string(c)
}

// RecordStore is the persistence port. Each collection is loaded and saved
// as a whole JSON document. A missing collection loads as nil.
type RecordStore interface {
	Load(ctx context.Context, collection Collection) (json.RawMessage, error)
	Save(ctx context.Context, collection Collection, data json.RawMessage) error
}

// CollectionRepository gives typed access to one collection of a RecordStore.
type CollectionRepository[T any] interface {
	Load(ctx context.Context) ([]T, error)
	Save(ctx context.Context, items []T) error
}

// JSONCollection decodes and encodes a collection as a JSON array of T.
type JSONCollection[T any] struct {
	store      RecordStore
	collection Collection
}

// NewJSONCollection creates a typed view over a collection
func NewJSONCollection[T any](store RecordStore, collection Collection) *JSONCollection[T] {
	return &JSONCollection[T]{store: store, collection: collection}
}

// Load reads every record of the collection
func (c *JSONCollection[T]) Load(ctx context.Context) ([]T, error) {
	raw, err := c.store.Load(ctx, c.collection)
	if err != nil {
		return nil, NewPersistenceError("load", c.collection, err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, NewPersistenceError("decode", c.collection, err)
	}
	return items, nil
}

// Save replaces the collection with items
func (c *JSONCollection[T]) Save(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return NewPersistenceError("encode", c.collection, err)
	}
	if err := c.store.Save(ctx, c.collection, raw); err != nil {
		return NewPersistenceError("save", c.collection, err)
	}
	return nil
}

// Collection returns the underlying collection name
func (c *JSONCollection[T]) Collection() Collection {
	return c.collection
}

// TransactionScope runs a unit of work against a RecordStore.
// If fn returns an error nothing it saved is kept.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(tx RecordStore) error) error
}

// NoOpTransactionScope executes the function directly against the store.
// Useful for testing or when transaction support is not required.
type NoOpTransactionScope struct {
	store RecordStore
}

// NewNoOpTransactionScope creates a NoOpTransactionScope
func NewNoOpTransactionScope(store RecordStore) *NoOpTransactionScope {
	return &NoOpTransactionScope{store: store}
}

// Execute runs the function without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(tx RecordStore) error) error {
	return fn(s.store)
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)

// FindByID returns a pointer into items for the first element whose id
// matches, along with its index, or a NOT_FOUND error naming entity.
func FindByID[T any, K comparable](items []T, id K, idOf func(*T) K, entity string) (*T, int, error) {
	for i := range items {
		if idOf(&items[i]) == id {
			return &items[i], i, nil
		}
	}
	return nil, -1, NotFoundError(entity, fmt.Sprint(id))
}
