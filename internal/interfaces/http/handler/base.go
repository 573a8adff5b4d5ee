package handler

import (
	"errors"
	"net/http"

	"github.com/fieldservice/backend/internal/application/backup"
	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/infrastructure/logger"
	"github.com/fieldservice/backend/internal/infrastructure/notification"
	"github.com/fieldservice/backend/internal/interfaces/http/dto"
	"github.com/fieldservice/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// codedError is implemented by errors that carry an API error code
type codedError interface {
	error
	Code() string
}

// meta collects the request ID and the notifications raised while serving the request
func meta(c *gin.Context) *dto.Meta {
	m := &dto.Meta{RequestID: middleware.GetRequestID(c)}
	if inbox := notification.InboxFromContext(c.Request.Context()); inbox != nil {
		for _, msg := range inbox.Messages() {
			m.Notifications = append(m.Notifications, dto.Notification{Level: string(msg.Level), Message: msg.Message})
		}
	}
	if m.IsEmpty() {
		return nil
	}
	return m
}

func (h *BaseHandler) respond(c *gin.Context, status int, resp dto.Response) {
	m := meta(c)
	if m != nil {
		if resp.Meta == nil {
			resp.Meta = m
		} else {
			resp.Meta.RequestID = m.RequestID
			resp.Meta.Notifications = m.Notifications
		}
	}
	c.JSON(status, resp)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	h.respond(c, http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	h.respond(c, http.StatusCreated, dto.NewSuccessResponse(data))
}

// List sends a success response with the item count in meta
func List[T any](h *BaseHandler, c *gin.Context, items []T) {
	h.respond(c, http.StatusOK, dto.NewListResponse(items))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	h.respond(c, statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// HandleError converts engine errors to HTTP responses
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var importErr *backup.ImportError
	if errors.As(err, &importErr) {
		resp := dto.NewErrorResponseWithRequestID(importErr.Code(), "Backup rejected", middleware.GetRequestID(c))
		resp.Error.Problems = importErr.Problems
		h.respond(c, dto.GetHTTPStatus(importErr.Code()), resp)
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.Error(c, dto.GetHTTPStatus(domainErr.Code), domainErr.Code, domainErr.Message)
		return
	}

	// Store failures are logged in full but reported without driver detail
	logger.GetGinLogger(c).Error("request failed", zap.Error(err))
	var coded codedError
	if errors.As(err, &coded) {
		h.Error(c, dto.GetHTTPStatus(coded.Code()), coded.Code(), "The data store is unavailable, try again later")
		return
	}
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
}

// bindJSON binds the request body and writes the validation response on failure
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// bindQuery binds query parameters and writes the validation response on failure
func bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// pathID parses the :id path parameter
func (h *BaseHandler) pathID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid "+what+" ID format")
		return uuid.Nil, false
	}
	return id, true
}
