package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fieldservice/backend/internal/domain/finance"
	"github.com/fieldservice/backend/internal/domain/operations"
	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu    sync.Mutex
	data  map[shared.Collection]json.RawMessage
	saves int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[shared.Collection]json.RawMessage)}
}

func (f *fakeStore) Load(_ context.Context, c shared.Collection) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[c], nil
}

func (f *fakeStore) Save(_ context.Context, c shared.Collection, data json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[c] = append(json.RawMessage(nil), data...)
	f.saves++
	return nil
}

type memoryArchive struct {
	objects map[string][]byte
}

func (a *memoryArchive) Put(_ context.Context, key string, data []byte) error {
	a.objects[key] = data
	return nil
}

func (a *memoryArchive) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := a.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

var exportTime = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func newService(store *fakeStore, archive ArchiveStore) *Service {
	s := NewService(store, shared.NewNoOpTransactionScope(store), archive, shared.NopNotifier{}, nil)
	s.SetClock(func() time.Time { return exportTime })
	return s
}

// seedState writes a client, a service on a two-installment plan and its installments
func seedState(t *testing.T, store shared.RecordStore) (operations.ServiceOrder, []finance.Installment) {
	t.Helper()
	ctx := context.Background()
	clientID := uuid.New()
	require.NoError(t, store.Save(ctx, shared.CollectionClients, json.RawMessage(fmt.Sprintf(`[{"id":%q,"name":"ACME"}]`, clientID))))

	svc, err := operations.NewServiceOrder(clientID, "Boiler service", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), valueobject.NewMoneyFromFloat(100))
	require.NoError(t, err)
	plan, err := finance.GeneratePlan(svc.TotalValue, 2, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	installments, err := finance.Materialize(svc.ID, plan, 0)
	require.NoError(t, err)
	finance.SyncServicePayment(svc, installments)

	require.NoError(t, operations.NewServiceOrderRepository(store).Save(ctx, []operations.ServiceOrder{*svc}))
	require.NoError(t, finance.NewInstallmentRepository(store).Save(ctx, installments))
	return *svc, installments
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, "00000000", Checksum(""))
	// "a" = 97
	assert.Equal(t, "00000061", Checksum("a"))
	// "ab" = 97*31 + 98 = 3105
	assert.Equal(t, "00000c21", Checksum("ab"))
	// long inputs wrap at 32 bits instead of overflowing
	assert.Len(t, Checksum(string(make([]byte, 1000))+"zzzzzzzzzzzzzzzzzzzzzzzz"), 8)
}

func TestService_ExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	source := newFakeStore()
	service, installments := seedState(t, source)

	bundle, err := newService(source, nil).Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, BundleFormat, bundle.Format)
	assert.Equal(t, BundleVersion, bundle.Version)
	assert.Equal(t, exportTime, bundle.ExportedAt)
	assert.Len(t, bundle.Data, len(shared.AllCollections()))
	assert.JSONEq(t, "[]", string(bundle.Data[shared.CollectionMaterials]))

	// transport through JSON as a file would
	encoded, err := json.MarshalIndent(bundle, "", "  ")
	require.NoError(t, err)
	var decoded Bundle
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	target := newFakeStore()
	require.NoError(t, newService(target, nil).Import(ctx, &decoded))

	services, err := operations.NewServiceOrderRepository(target).Load(ctx)
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, service.ID, services[0].ID)
	assert.Equal(t, service.InstallmentIDs, services[0].InstallmentIDs)

	restored, err := finance.NewInstallmentRepository(target).Load(ctx)
	require.NoError(t, err)
	require.Len(t, restored, len(installments))
	for i := range installments {
		assert.Equal(t, installments[i].ID, restored[i].ID)
		assert.Equal(t, installments[i].Amount.String(), restored[i].Amount.String())
	}

	again, err := newService(target, nil).Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, bundle.Checksum, again.Checksum)
}

func TestService_ImportRejects(t *testing.T) {
	ctx := context.Background()

	exported := func(t *testing.T) *Bundle {
		t.Helper()
		source := newFakeStore()
		seedState(t, source)
		bundle, err := newService(source, nil).Export(ctx)
		require.NoError(t, err)
		return bundle
	}

	t.Run("wrong format and version", func(t *testing.T) {
		bundle := exported(t)
		bundle.Format = "spreadsheet"
		bundle.Version = "9"
		target := newFakeStore()

		err := newService(target, nil).Import(ctx, bundle)
		var importErr *ImportError
		require.ErrorAs(t, err, &importErr)
		assert.Len(t, importErr.Problems, 2)
		assert.Zero(t, target.saves)
	})

	t.Run("tampered data", func(t *testing.T) {
		bundle := exported(t)
		bundle.Data[shared.CollectionExpenses] = json.RawMessage(`[{"id":"x","value":1}]`)
		target := newFakeStore()

		err := newService(target, nil).Import(ctx, bundle)
		var importErr *ImportError
		require.ErrorAs(t, err, &importErr)
		assert.Contains(t, importErr.Problems[0], "checksum mismatch")
		assert.Zero(t, target.saves)
	})

	t.Run("dangling references are all listed", func(t *testing.T) {
		bundle := exported(t)
		bundle.Data[shared.CollectionClients] = json.RawMessage(`[]`)
		bundle.Data[shared.CollectionStockMovements] = json.RawMessage(fmt.Sprintf(`[{"id":"m1","material_id":%q}]`, uuid.New()))
		bundle.Data[shared.CollectionServices] = json.RawMessage(`[]`)
		sum, err := bundle.ComputeChecksum()
		require.NoError(t, err)
		bundle.Checksum = sum
		target := newFakeStore()

		err = newService(target, nil).Import(ctx, bundle)
		var importErr *ImportError
		require.ErrorAs(t, err, &importErr)
		// two installments lose their service, one movement its material
		assert.Len(t, importErr.Problems, 3)
		assert.Zero(t, target.saves)
	})

	t.Run("not a list", func(t *testing.T) {
		bundle := exported(t)
		bundle.Data[shared.CollectionUsers] = json.RawMessage(`{"admin":true}`)
		sum, err := bundle.ComputeChecksum()
		require.NoError(t, err)
		bundle.Checksum = sum

		err = newService(newFakeStore(), nil).Import(ctx, bundle)
		var importErr *ImportError
		require.ErrorAs(t, err, &importErr)
		assert.Contains(t, importErr.Problems[0], "users")
	})
}

func TestService_Archive(t *testing.T) {
	ctx := context.Background()
	archive := &memoryArchive{objects: map[string][]byte{}}
	source := newFakeStore()
	seedState(t, source)

	bundle, err := newService(source, archive).ExportToArchive(ctx, "nightly.json")
	require.NoError(t, err)
	require.Contains(t, archive.objects, "nightly.json")

	target := newFakeStore()
	require.NoError(t, newService(target, archive).ImportFromArchive(ctx, "nightly.json"))
	again, err := newService(target, nil).Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, bundle.Checksum, again.Checksum)

	err = newService(target, archive).ImportFromArchive(ctx, "missing.json")
	assert.Error(t, err)

	_, err = newService(source, nil).ExportToArchive(ctx, "nightly.json")
	assert.ErrorIs(t, err, ErrNoArchive)
}
