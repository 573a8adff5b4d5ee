package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/infrastructure/notification"
	"github.com/fieldservice/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmation(t *testing.T) {
	router := gin.New()
	router.Use(Confirmation())
	router.GET("/c", func(c *gin.Context) {
		confirmed := shared.ConfirmerFromContext(c.Request.Context(), nil).Confirm(c.Request.Context(), "sure?")
		c.String(http.StatusOK, strconv.FormatBool(confirmed))
	})

	for query, want := range map[string]string{
		"":              "false",
		"?confirm=true": "true",
		"?confirm=1":    "true",
		"?confirm=no":   "false",
		"?confirm=0":    "false",
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/c"+query, nil))
		assert.Equal(t, want, w.Body.String(), query)
	}
}

func TestNotifications(t *testing.T) {
	notifier := notification.NewNotifier(nil)
	router := gin.New()
	router.Use(Notifications())
	router.GET("/n", func(c *gin.Context) {
		notifier.NotifySuccess(c.Request.Context(), "saved")
		inbox := notification.InboxFromContext(c.Request.Context())
		require.NotNil(t, inbox)
		c.JSON(http.StatusOK, inbox.Messages())
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/n", nil))
	assert.JSONEq(t, `[{"level":"success","message":"saved"}]`, w.Body.String())
}

func TestMetrics(t *testing.T) {
	registry := telemetry.NewRegistry("test")
	metrics := telemetry.NewHTTPMetrics(registry)

	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/items/1", "/items/2", "/missing"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	count, err := testutil.GatherAndCount(registry.Gatherer(), "test_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per route template and status")

	assert.NotPanics(t, func() { Metrics(nil) })
}
