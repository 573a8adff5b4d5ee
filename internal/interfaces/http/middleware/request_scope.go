package middleware

import (
	"strconv"

	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/infrastructure/notification"
	"github.com/gin-gonic/gin"
)

// ConfirmQueryParam is the query flag that approves confirmations for one request
const ConfirmQueryParam = "confirm"

// Notifications attaches a notification inbox to the request context so
// handlers can return the messages raised while serving it.
func Notifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _ := notification.WithInbox(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Confirmation answers every confirmation raised by the request with the
// value of the confirm query flag. Without the flag, or with an unparsable
// value, confirmations are declined.
func Confirmation() gin.HandlerFunc {
	return func(c *gin.Context) {
		approved, err := strconv.ParseBool(c.Query(ConfirmQueryParam))
		if err != nil {
			approved = false
		}
		ctx := shared.WithConfirmer(c.Request.Context(), shared.StaticConfirmer(approved))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
