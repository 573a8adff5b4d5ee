// Package notification delivers operation outcomes to users.
package notification

import (
	"context"
	"sync"

	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Level distinguishes success from error notifications
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Message is one notification delivered during a request
type Message struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Inbox collects the notifications raised while serving one request
type Inbox struct {
	mu       sync.Mutex
	messages []Message
}

func (i *Inbox) add(level Level, msg string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.messages = append(i.messages, Message{Level: level, Message: msg})
}

// Messages returns a copy of the collected notifications
func (i *Inbox) Messages() []Message {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]Message(nil), i.messages...)
}

type inboxKey struct{}

// WithInbox attaches a fresh Inbox to ctx
func WithInbox(ctx context.Context) (context.Context, *Inbox) {
	inbox := &Inbox{}
	return context.WithValue(ctx, inboxKey{}, inbox), inbox
}

// InboxFromContext returns the request Inbox, or nil
func InboxFromContext(ctx context.Context) *Inbox {
	inbox, _ := ctx.Value(inboxKey{}).(*Inbox)
	return inbox
}

// Notifier logs every notification and adds it to the request Inbox when
// one is attached to the context.
type Notifier struct {
	logger *zap.Logger
}

// NewNotifier creates a notifier that logs through logger
func NewNotifier(l *zap.Logger) *Notifier {
	if l == nil {
		l = zap.NewNop()
	}
	return &Notifier{logger: l.Named("notify")}
}

// NotifySuccess implements shared.Notifier
func (n *Notifier) NotifySuccess(ctx context.Context, message string) {
	n.deliver(ctx, LevelSuccess, message)
}

// NotifyError implements shared.Notifier
func (n *Notifier) NotifyError(ctx context.Context, message string) {
	n.deliver(ctx, LevelError, message)
}

func (n *Notifier) deliver(ctx context.Context, level Level, message string) {
	fields := []zap.Field{zap.String("level", string(level))}
	if id := logger.GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	n.logger.Info(message, fields...)

	if inbox := InboxFromContext(ctx); inbox != nil {
		inbox.add(level, message)
	}
}

var _ shared.Notifier = (*Notifier)(nil)
