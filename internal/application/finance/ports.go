package finance

import (
	"context"
	"errors"

	"github.com/fieldservice/backend/internal/domain/finance"
	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// MoneyFormatter renders amounts for user-facing notifications
type MoneyFormatter interface {
	FormatMoney(m valueobject.Money) string
}

// Observer receives operation outcomes and summary snapshots, e.g. for metrics
type Observer interface {
	ObserveOperation(operation string, err error)
	ObserveSummary(summary finance.FinancialSummary)
}

type plainFormatter struct{}

func (plainFormatter) FormatMoney(m valueobject.Money) string {
	return m.String()
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, error)          {}
func (nopObserver) ObserveSummary(finance.FinancialSummary) {}

// errDeclined aborts a unit of work when the user refuses a confirmation
var errDeclined = errors.New("operation declined")

// declinedMessage is the notification of a declined operation
const declinedMessage = "Operation canceled, nothing was changed"

// outcome emits exactly one notification for a finished mutation and
// records it with the observer.
type outcome struct {
	notifier shared.Notifier
	observer Observer
	logger   *zap.Logger
}

func (o outcome) finish(ctx context.Context, operation string, err error, success, failure string) {
	o.observer.ObserveOperation(operation, err)
	if err != nil {
		o.logger.Warn("operation failed", zap.String("operation", operation), zap.Error(err))
		o.notifier.NotifyError(ctx, failure+": "+errorMessage(err))
		return
	}
	o.logger.Info("operation completed", zap.String("operation", operation))
	o.notifier.NotifySuccess(ctx, success)
}

func errorMessage(err error) string {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}
