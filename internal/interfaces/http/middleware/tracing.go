package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tracing starts a server span per request, continuing the caller's trace
// when the request carries W3C trace context. skipPaths are not traced.
func Tracing(service string, provider trace.TracerProvider, skipPaths ...string) gin.HandlerFunc {
	return otelgin.Middleware(service,
		otelgin.WithTracerProvider(provider),
		otelgin.WithPropagators(otel.GetTextMapPropagator()),
		otelgin.WithFilter(func(r *http.Request) bool {
			return !slices.Contains(skipPaths, r.URL.Path)
		}),
	)
}

// TraceAttributes tags the request span with the request ID, the
// idempotency key and the confirmation flag. It must run after Tracing
// and RequestID.
func TraceAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}
		attrs := []attribute.KeyValue{attribute.String("request_id", GetRequestID(c))}
		if key := c.GetHeader(IdempotencyKeyHeader); key != "" {
			attrs = append(attrs, attribute.String("idempotency_key", key))
		}
		if confirm, ok := c.GetQuery(ConfirmQueryParam); ok {
			attrs = append(attrs, attribute.String("confirm", confirm))
		}
		span.SetAttributes(attrs...)
		c.Next()
	}
}
