package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fieldservice/backend/internal/application/backup"
	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/infrastructure/notification"
	"github.com/fieldservice/backend/internal/interfaces/http/dto"
	"github.com/fieldservice/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

func newTestContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestBaseHandlerSuccess(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext(t)

	h.Success(c, gin.H{"key": "value"})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
	assert.Nil(t, resp.Meta)
}

func TestBaseHandlerCreated(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext(t)
	c.Set(middleware.RequestIDKey, "req-1")

	h.Created(c, gin.H{"id": "123"})

	assert.Equal(t, http.StatusCreated, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, "req-1", resp.Meta.RequestID)
}

func TestList(t *testing.T) {
	h := &BaseHandler{}

	t.Run("counts items", func(t *testing.T) {
		c, w := newTestContext(t)
		List(h, c, []string{"a", "b", "c"})

		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, 3, resp.Meta.Total)
	})

	t.Run("nil renders as empty array", func(t *testing.T) {
		c, w := newTestContext(t)
		List[string](h, c, nil)

		assert.Contains(t, w.Body.String(), `"data":[]`)
	})
}

func TestBaseHandlerNotifications(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext(t)
	ctx, _ := notification.WithInbox(c.Request.Context())
	c.Request = c.Request.WithContext(ctx)

	notification.NewNotifier(nil).NotifySuccess(ctx, "3 installments created")
	h.Success(c, nil)

	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	require.Len(t, resp.Meta.Notifications, 1)
	assert.Equal(t, "success", resp.Meta.Notifications[0].Level)
	assert.Equal(t, "3 installments created", resp.Meta.Notifications[0].Message)
}

func TestBaseHandlerHandleError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:       "not found",
			err:        shared.NotFoundError("Installment", "42"),
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:        "wrapped domain error",
			err:         fmt.Errorf("replan: %w", shared.NewDomainError("INSUFFICIENT_INSTALLMENTS", "At least one installment is required")),
			wantStatus:  http.StatusUnprocessableEntity,
			wantCode:    "INSUFFICIENT_INSTALLMENTS",
			wantMessage: "At least one installment is required",
		},
		{
			name:       "field error",
			err:        shared.NewDomainError("INVALID_AMOUNT", "Amount must be positive"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_AMOUNT",
		},
		{
			name:       "conflict",
			err:        shared.NewDomainError("CONCURRENCY_CONFLICT", "retry"),
			wantStatus: http.StatusConflict,
			wantCode:   "CONCURRENCY_CONFLICT",
		},
		{
			name:        "store failure hides driver detail",
			err:         shared.NewPersistenceError("load", shared.CollectionExpenses, errors.New("dial tcp 10.0.0.3:5432: refused")),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "PERSISTENCE_ERROR",
			wantMessage: "The data store is unavailable, try again later",
		},
		{
			name:       "archive unavailable",
			err:        backup.ErrNoArchive,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "ARCHIVE_UNAVAILABLE",
		},
		{
			name:        "unknown error",
			err:         errors.New("boom"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "INTERNAL_ERROR",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			c, w := newTestContext(t)
			c.Set(middleware.RequestIDKey, "req-9")

			h.HandleError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, "req-9", resp.Error.RequestID)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, resp.Error.Message)
			}
			assert.NotContains(t, w.Body.String(), "10.0.0.3")
		})
	}

	t.Run("import rejection lists problems", func(t *testing.T) {
		h := &BaseHandler{}
		c, w := newTestContext(t)

		h.HandleError(c, &backup.ImportError{Problems: []string{"checksum mismatch", "unknown collection widgets"}})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, "IMPORT_REJECTED", resp.Error.Code)
		assert.Equal(t, []string{"checksum mismatch", "unknown collection widgets"}, resp.Error.Problems)
	})

	t.Run("nil error writes nothing", func(t *testing.T) {
		h := &BaseHandler{}
		c, w := newTestContext(t)
		h.HandleError(c, nil)
		assert.Empty(t, w.Body.String())
	})
}

func TestPathID(t *testing.T) {
	h := &BaseHandler{}

	c, w := newTestContext(t)
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}
	_, ok := h.pathID(c, "service")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid service ID format")

	c, _ = newTestContext(t)
	c.Params = gin.Params{{Key: "id", Value: "6f1c2a60-4a8e-4c53-9a6f-2f0f3c9d5e10"}}
	id, ok := h.pathID(c, "service")
	assert.True(t, ok)
	assert.Equal(t, "6f1c2a60-4a8e-4c53-9a6f-2f0f3c9d5e10", id.String())
}
