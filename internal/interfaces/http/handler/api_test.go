package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fieldservice/backend/internal/application/backup"
	financeapp "github.com/fieldservice/backend/internal/application/finance"
	inventoryapp "github.com/fieldservice/backend/internal/application/inventory"
	"github.com/fieldservice/backend/internal/domain/inventory"
	"github.com/fieldservice/backend/internal/domain/operations"
	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/domain/shared/valueobject"
	"github.com/fieldservice/backend/internal/infrastructure/notification"
	"github.com/fieldservice/backend/internal/infrastructure/persistence"
	"github.com/fieldservice/backend/internal/infrastructure/storage"
	"github.com/fieldservice/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

// testAPI serves the handlers over an in-memory store
type testAPI struct {
	engine *gin.Engine
	store  *persistence.MemoryRecordStore
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := persistence.NewMemoryRecordStore()
	scope := persistence.NewMemoryTransactionScope(store)
	notifier := notification.NewNotifier(nil)
	clock := func() time.Time { return testNow }

	installments := financeapp.NewInstallmentService(store, scope, notifier, shared.StaticConfirmer(false), nil)
	installments.SetClock(clock)
	summary := financeapp.NewFinancialSummaryService(store, scope, notifier, nil)
	summary.SetClock(clock)
	cashFlow := financeapp.NewCashFlowService(store, 36, nil)
	cashFlow.SetClock(clock)
	expenses := financeapp.NewExpenseService(store, scope, notifier, nil)
	expenses.SetClock(clock)
	stock := inventoryapp.NewStockLedgerService(store, scope, notifier, nil)

	archive, err := storage.NewLocalArchiveStore(t.TempDir())
	require.NoError(t, err)
	backups := backup.NewService(store, scope, archive, notifier, nil)
	backups.SetClock(clock)

	ih := NewInstallmentHandler(installments)
	ih.clock = clock
	fh := NewFinanceHandler(summary, cashFlow)
	eh := NewExpenseHandler(expenses)
	inv := NewInventoryHandler(stock)
	bh := NewBackupHandler(backups)

	engine := gin.New()
	api := engine.Group("/api/v1", middleware.RequestID(), middleware.Notifications(), middleware.Confirmation())

	api.POST("/installments/preview", ih.Preview)
	api.GET("/installments/overdue", ih.ListOverdue)
	api.GET("/installments/:id", ih.Get)
	api.POST("/installments/:id/pay", ih.Pay)
	api.GET("/services/:id/installments", ih.ListByService)
	api.POST("/services/:id/installments", ih.Create)
	api.DELETE("/services/:id/installments", ih.RemovePlan)
	api.PUT("/services/:id/installments/plan", ih.UpdatePlan)
	api.POST("/services/:id/installments/recalculate", ih.Recalculate)
	api.POST("/services/:id/installments/cancel", ih.CancelPending)
	api.POST("/services/:id/materials/consume", inv.ConsumeForService)

	api.GET("/finance/summary", fh.GetSummary)
	api.POST("/finance/summary/recompute", fh.Recompute)
	api.POST("/finance/balance/adjust", fh.AdjustBalance)
	api.GET("/finance/cash-flow", fh.CashFlow)
	api.POST("/finance/forecast", fh.Forecast)
	api.GET("/finance/expenses", eh.List)
	api.POST("/finance/expenses", eh.Create)
	api.PUT("/finance/expenses/:id", eh.Update)
	api.DELETE("/finance/expenses/:id", eh.Delete)
	api.POST("/finance/expenses/:id/pay", eh.Pay)

	api.POST("/inventory/movements", inv.RecordMovement)
	api.GET("/inventory/low-stock", inv.LowStock)
	api.GET("/inventory/materials/:id/movements", inv.History)
	api.GET("/inventory/materials/:id/verify", inv.Verify)

	api.GET("/backup/export", bh.Export)
	api.POST("/backup/import", bh.Import)
	api.POST("/backup/archive/:key", bh.Archive)
	api.POST("/backup/archive/:key/restore", bh.Restore)

	return &testAPI{engine: engine, store: store}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

// envelope decodes the response with data kept raw
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code     string   `json:"code"`
		Message  string   `json:"message"`
		Problems []string `json:"problems"`
	} `json:"error"`
	Meta *struct {
		Total         int `json:"total"`
		Notifications []struct {
			Level   string `json:"level"`
			Message string `json:"message"`
		} `json:"notifications"`
	} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

type installmentJSON struct {
	ID           uuid.UUID   `json:"id"`
	ParcelNumber int         `json:"parcel_number"`
	Amount       json.Number `json:"amount"`
	DueDate      time.Time   `json:"due_date"`
	Status       string      `json:"status"`
}

func amountsOf(installments []installmentJSON) []string {
	out := make([]string, len(installments))
	for i, inst := range installments {
		out[i] = inst.Amount.String()
	}
	return out
}

func (a *testAPI) seedService(t *testing.T, total float64) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	svc, err := operations.NewServiceOrder(uuid.New(), "Split AC installation", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), valueobject.NewMoneyFromFloat(total))
	require.NoError(t, err)
	require.NoError(t, operations.NewServiceOrderRepository(a.store).Save(ctx, []operations.ServiceOrder{*svc}))
	return svc.ID
}

func (a *testAPI) seedMaterial(t *testing.T, stock, minStock int64) uuid.UUID {
	t.Helper()
	m, err := inventory.NewMaterial("Copper pipe", "m", valueobject.NewMoneyFromFloat(12), valueobject.NewMoneyFromFloat(20), decimal.NewFromInt(minStock))
	require.NoError(t, err)
	m.Stock = decimal.NewFromInt(stock)
	require.NoError(t, inventory.NewMaterialRepository(a.store).Save(context.Background(), []inventory.Material{*m}))
	return m.ID
}

func TestInstallmentAPI_PlanLifecycle(t *testing.T) {
	api := newTestAPI(t)
	serviceID := api.seedService(t, 100)
	base := "/api/v1/services/" + serviceID.String() + "/installments"

	w := api.do(t, http.MethodPost, base, gin.H{
		"plan": gin.H{"total": "100", "count": 3, "first_due_date": "2024-01-10"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created []installmentJSON
	env := decode(t, w, &created)
	require.Len(t, created, 3)
	assert.Equal(t, []string{"33.34", "33.33", "33.33"}, amountsOf(created))
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), created[2].DueDate.UTC())
	require.NotNil(t, env.Meta)
	require.NotEmpty(t, env.Meta.Notifications)
	assert.Equal(t, "success", env.Meta.Notifications[0].Level)

	t.Run("second plan is refused", func(t *testing.T) {
		w := api.do(t, http.MethodPost, base, gin.H{
			"plan": gin.H{"total": "100", "count": 2, "first_due_date": "2024-01-10"},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
		env := decode(t, w, nil)
		require.NotNil(t, env.Error)
		assert.Equal(t, "INVALID_STATE", env.Error.Code)

		w = api.do(t, http.MethodGet, base, nil)
		var listed []installmentJSON
		decode(t, w, &listed)
		assert.Len(t, listed, 3)
	})

	t.Run("overdue as of today", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/installments/overdue", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var overdue []installmentJSON
		decode(t, w, &overdue)
		assert.Len(t, overdue, 3)

		w = api.do(t, http.MethodGet, "/api/v1/installments/overdue?as_of=2024-01-31", nil)
		decode(t, w, &overdue)
		assert.Len(t, overdue, 1)

		w = api.do(t, http.MethodGet, "/api/v1/installments/overdue?as_of=yesterday", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("pay first installment", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/installments/"+created[0].ID.String()+"/pay", gin.H{"paid_date": "2024-01-09"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var paid installmentJSON
		decode(t, w, &paid)
		assert.Equal(t, "PAID", paid.Status)

		w = api.do(t, http.MethodPost, "/api/v1/installments/"+created[0].ID.String()+"/pay", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("recalculate needs confirmation once a parcel is paid", func(t *testing.T) {
		w := api.do(t, http.MethodPost, base+"/recalculate", gin.H{"total": "120", "count": 4})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var declined ReplanResponse
		decode(t, w, &declined)
		assert.False(t, declined.Applied)
		assert.True(t, declined.ConfirmationRequired)
		assert.Len(t, declined.Installments, 3)

		w = api.do(t, http.MethodPost, base+"/recalculate?confirm=true", gin.H{"total": "120", "count": 4})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var applied struct {
			Applied      bool              `json:"applied"`
			Installments []installmentJSON `json:"installments"`
		}
		decode(t, w, &applied)
		assert.True(t, applied.Applied)
	})

	t.Run("cancel pending keeps paid parcels", func(t *testing.T) {
		w := api.do(t, http.MethodPost, base+"/cancel", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp struct {
			Installments []installmentJSON `json:"installments"`
		}
		decode(t, w, &resp)
		for _, inst := range resp.Installments {
			assert.Contains(t, []string{"PAID", "CANCELED"}, inst.Status)
		}
	})
}

func TestInstallmentAPI_Errors(t *testing.T) {
	api := newTestAPI(t)
	serviceID := api.seedService(t, 100)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unknown service",
			method:     http.MethodPost,
			path:       "/api/v1/services/" + uuid.NewString() + "/installments",
			body:       gin.H{"plan": gin.H{"total": "10", "count": 1}},
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "malformed service id",
			method:     http.MethodGet,
			path:       "/api/v1/services/abc/installments",
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_REQUEST",
		},
		{
			name:       "neither plan nor installments",
			method:     http.MethodPost,
			path:       "/api/v1/services/" + serviceID.String() + "/installments",
			body:       gin.H{},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_PLAN",
		},
		{
			name:       "count out of range",
			method:     http.MethodPost,
			path:       "/api/v1/installments/preview",
			body:       gin.H{"total": "100", "count": 0},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "fraction of a cent",
			method:     http.MethodPost,
			path:       "/api/v1/installments/preview",
			body:       gin.H{"total": "100.005", "count": 2},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:   "explicit installments short of the service total",
			method: http.MethodPost,
			path:   "/api/v1/services/" + serviceID.String() + "/installments",
			body: gin.H{"installments": []gin.H{
				{"amount": "25", "due_date": "2024-01-10"},
				{"amount": "25", "due_date": "2024-02-10"},
			}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_PLAN",
		},
		{
			name:   "explicit installments with a repeated parcel",
			method: http.MethodPost,
			path:   "/api/v1/services/" + serviceID.String() + "/installments",
			body: gin.H{"installments": []gin.H{
				{"parcel_number": 1, "amount": "50", "due_date": "2024-01-10"},
				{"parcel_number": 1, "amount": "50", "due_date": "2024-02-10"},
			}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_PLAN",
		},
		{
			name:       "unknown installment",
			method:     http.MethodGet,
			path:       "/api/v1/installments/" + uuid.NewString(),
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			env := decode(t, w, nil)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}
}

func TestInstallmentAPI_Preview(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/v1/installments/preview", gin.H{"total": "100", "count": 3, "first_due_date": "2024-01-31"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var preview struct {
		Plan []struct {
			Amount  json.Number `json:"amount"`
			DueDate time.Time   `json:"due_date"`
		} `json:"plan"`
	}
	decode(t, w, &preview)
	require.Len(t, preview.Plan, 3)
	assert.Equal(t, "33.34", preview.Plan[0].Amount.String())
	assert.Equal(t, time.March, preview.Plan[1].DueDate.Month())
}

func TestExpenseAPI(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/v1/finance/expenses", gin.H{
		"description": "Van fuel",
		"value":       "150.50",
		"due_date":    "2024-03-20",
		"category":    "transport",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var expense struct {
		ID     uuid.UUID `json:"id"`
		IsPaid bool      `json:"is_paid"`
	}
	decode(t, w, &expense)
	assert.False(t, expense.IsPaid)

	w = api.do(t, http.MethodPost, "/api/v1/finance/expenses", gin.H{"value": "10", "due_date": "2024-03-20"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/finance/expenses?category=transport&paid=false", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w, nil)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 1, env.Meta.Total)

	w = api.do(t, http.MethodGet, "/api/v1/finance/expenses?paid=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/finance/expenses/"+expense.ID.String()+"/pay", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, http.MethodGet, "/api/v1/finance/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary struct {
		Balance json.Number `json:"balance"`
	}
	decode(t, w, &summary)
	assert.Equal(t, "-150.50", summary.Balance.String())

	w = api.do(t, http.MethodDelete, "/api/v1/finance/expenses/"+expense.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodDelete, "/api/v1/finance/expenses/"+expense.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFinanceAPI_AdjustBalanceAndForecast(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/v1/finance/balance/adjust", gin.H{"amount": "500", "direction": "ADD"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var summary struct {
		Balance json.Number `json:"balance"`
	}
	decode(t, w, &summary)
	assert.Equal(t, "500.00", summary.Balance.String())

	w = api.do(t, http.MethodPost, "/api/v1/finance/balance/adjust", gin.H{"amount": "500", "direction": "SIDEWAYS"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/finance/forecast", gin.H{"data": []float64{100, 200, 300}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, http.MethodGet, "/api/v1/finance/cash-flow?months=3", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, http.MethodGet, "/api/v1/finance/cash-flow?months=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInventoryAPI(t *testing.T) {
	api := newTestAPI(t)
	materialID := api.seedMaterial(t, 0, 5)

	w := api.do(t, http.MethodPost, "/api/v1/inventory/movements", gin.H{
		"material_id":   materialID,
		"movement_type": "IN",
		"quantity":      "10",
		"reason":        "Purchase",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(t, http.MethodPost, "/api/v1/inventory/movements", gin.H{
		"material_id":   materialID,
		"movement_type": "OUT",
		"quantity":      "50",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	env := decode(t, w, nil)
	assert.Equal(t, "INSUFFICIENT_STOCK", env.Error.Code)

	serviceID := api.seedService(t, 300)
	w = api.do(t, http.MethodPost, "/api/v1/services/"+serviceID.String()+"/materials/consume", gin.H{
		"materials": []gin.H{{"material_id": materialID, "quantity": "6"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(t, http.MethodGet, "/api/v1/inventory/materials/"+materialID.String()+"/movements", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env = decode(t, w, nil)
	assert.Equal(t, 2, env.Meta.Total)

	w = api.do(t, http.MethodGet, "/api/v1/inventory/materials/"+materialID.String()+"/verify", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var verification inventoryapp.StockVerification
	decode(t, w, &verification)
	assert.True(t, verification.Consistent)
	assert.True(t, decimal.NewFromInt(4).Equal(verification.CurrentStock))

	w = api.do(t, http.MethodGet, "/api/v1/inventory/low-stock", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env = decode(t, w, nil)
	assert.Equal(t, 1, env.Meta.Total)
}

func TestBackupAPI(t *testing.T) {
	api := newTestAPI(t)
	api.seedService(t, 250)

	w := api.do(t, http.MethodGet, "/api/v1/backup/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "fieldservice-backup-20240315-100000.json")
	var bundle backup.Bundle
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bundle))
	assert.Len(t, bundle.Checksum, 8)

	t.Run("import round trip", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/backup/import", bundle)
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("tampered bundle is rejected", func(t *testing.T) {
		tampered := bundle
		tampered.Checksum = "00000000"
		w := api.do(t, http.MethodPost, "/api/v1/backup/import", tampered)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		env := decode(t, w, nil)
		assert.Equal(t, "IMPORT_REJECTED", env.Error.Code)
		assert.NotEmpty(t, env.Error.Problems)
	})

	t.Run("archive and restore", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/backup/archive/nightly", nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = api.do(t, http.MethodPost, "/api/v1/backup/archive/nightly/restore", nil)
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = api.do(t, http.MethodPost, "/api/v1/backup/archive/missing/restore", nil)
		assert.GreaterOrEqual(t, w.Code, http.StatusBadRequest)
	})
}
