package finance

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/fieldservice/backend/internal/domain/finance"
	"github.com/fieldservice/backend/internal/domain/operations"
	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory RecordStore with injectable failures
type fakeStore struct {
	mu       sync.Mutex
	data     map[shared.Collection]json.RawMessage
	failLoad map[shared.Collection]error
	failSave map[shared.Collection]error
	saves    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		data:     make(map[shared.Collection]json.RawMessage),
		failLoad: make(map[shared.Collection]error),
		failSave: make(map[shared.Collection]error),
	}
}

func (f *fakeStore) Load(_ context.Context, c shared.Collection) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failLoad[c]; err != nil {
		return nil, err
	}
	return append(json.RawMessage(nil), f.data[c]...), nil
}

func (f *fakeStore) Save(_ context.Context, c shared.Collection, data json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failSave[c]; err != nil {
		return err
	}
	f.data[c] = append(json.RawMessage(nil), data...)
	f.saves++
	return nil
}

// recordingNotifier keeps every notification it receives
type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *recordingNotifier) NotifySuccess(_ context.Context, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *recordingNotifier) NotifyError(_ context.Context, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (n *recordingNotifier) total() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.successes) + len(n.errors)
}

// MockConfirmer is a mock implementation of shared.Confirmer
type MockConfirmer struct {
	mock.Mock
}

func (m *MockConfirmer) Confirm(ctx context.Context, message string) bool {
	args := m.Called(ctx, message)
	return args.Bool(0)
}

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func money(v float64) valueobject.Money {
	return valueobject.NewMoneyFromFloat(v)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedService(t *testing.T, store shared.RecordStore, total float64) operations.ServiceOrder {
	t.Helper()
	ctx := context.Background()
	svc, err := operations.NewServiceOrder(uuid.New(), "Split AC installation", date(2024, 1, 5), money(total))
	require.NoError(t, err)
	repo := operations.NewServiceOrderRepository(store)
	services, err := repo.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, append(services, *svc)))
	return *svc
}

func loadService(t *testing.T, store shared.RecordStore, id uuid.UUID) operations.ServiceOrder {
	t.Helper()
	services, idx, err := operations.LoadService(context.Background(), operations.NewServiceOrderRepository(store), id)
	require.NoError(t, err)
	return services[idx]
}

func loadInstallments(t *testing.T, store shared.RecordStore, serviceID uuid.UUID) []finance.Installment {
	t.Helper()
	all, err := finance.NewInstallmentRepository(store).Load(context.Background())
	require.NoError(t, err)
	return finance.InstallmentsOf(all, serviceID)
}

func amounts(installments []finance.Installment) []string {
	out := make([]string, len(installments))
	for i, inst := range installments {
		out[i] = inst.Amount.String()
	}
	return out
}

func statuses(installments []finance.Installment) []finance.InstallmentStatus {
	out := make([]finance.InstallmentStatus, len(installments))
	for i, inst := range installments {
		out[i] = inst.Status
	}
	return out
}
