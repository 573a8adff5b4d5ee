package handler

import (
	"fmt"
	"time"

	"github.com/fieldservice/backend/internal/domain/shared/valueobject"
	"github.com/fieldservice/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// toMoney converts a request amount to Money
func toMoney(d decimal.Decimal) valueobject.Money {
	return valueobject.NewMoney(d)
}

// dateOr returns the date, or fallback when it was not sent
func dateOr(d dto.Date, fallback time.Time) time.Time {
	if d.IsZero() {
		return fallback
	}
	return d.Time
}

// queryDate parses an optional date query parameter
func queryDate(c *gin.Context, param string) (*time.Time, error) {
	raw := c.Query(param)
	if raw == "" {
		return nil, nil
	}
	d, err := dto.ParseDate(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", param, err)
	}
	return &d.Time, nil
}
