package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type adjustTarget struct {
	Amount    decimal.Decimal `json:"amount" binding:"cents"`
	Count     int             `json:"count" binding:"required,min=1"`
	Direction string          `json:"direction" binding:"required,oneof=ADD SUBTRACT"`
}

func TestHandleValidationError(t *testing.T) {
	SetupValidator()
	router := gin.New()
	router.POST("/bind", func(c *gin.Context) {
		var req adjustTarget
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name     string
		body     string
		wantCode int
		contains []string
	}{
		{
			name:     "valid",
			body:     `{"amount":"12.50","count":1,"direction":"ADD"}`,
			wantCode: http.StatusOK,
		},
		{
			name:     "field errors use json names",
			body:     `{"amount":"1","count":0,"direction":"UP"}`,
			wantCode: http.StatusBadRequest,
			contains: []string{"VALIDATION_ERROR", `"field":"count"`, "Must be one of: ADD SUBTRACT"},
		},
		{
			name:     "sub-cent amount",
			body:     `{"amount":"0.001","count":1,"direction":"ADD"}`,
			wantCode: http.StatusBadRequest,
			contains: []string{`"field":"amount"`, "at most two decimal places"},
		},
		{
			name:     "malformed json",
			body:     `{"count":`,
			wantCode: http.StatusBadRequest,
			contains: []string{"BAD_REQUEST"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/bind", strings.NewReader(tt.body)))
			assert.Equal(t, tt.wantCode, w.Code)
			for _, want := range tt.contains {
				assert.Contains(t, w.Body.String(), want)
			}
		})
	}
}
