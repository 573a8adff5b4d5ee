package middleware

import (
	"github.com/fieldservice/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// Metrics records every request in m, labelled by the matched route
// template rather than the raw path.
func Metrics(m *telemetry.HTTPMetrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		done := m.Start()
		c.Next()
		done(c.Request.Method, c.FullPath(), c.Writer.Status())
	}
}
