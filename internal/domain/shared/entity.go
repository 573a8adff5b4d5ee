package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries the identity and timestamps shared by ledger records
type BaseEntity struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewBaseEntity stamps a fresh ID with both timestamps set to now
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// Touch marks the record as modified now
func (e *BaseEntity) Touch() {
	e.UpdatedAt = time.Now()
}

// DateOf truncates t to midnight UTC of its calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current date at midnight UTC.
func Today() time.Time {
	return DateOf(time.Now())
}

// MonthStart returns the first day of t's month.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// Period is a half-open time range [Start, End). A zero End means unbounded.
type Period struct {
	Start time.Time
	End   time.Time
}

// MonthPeriod returns the calendar month containing t.
func MonthPeriod(t time.Time) Period {
	start := MonthStart(t)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

// AllTime returns an unbounded period.
func AllTime() Period {
	return Period{}
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	if !p.Start.IsZero() && t.Before(p.Start) {
		return false
	}
	if !p.End.IsZero() && !t.Before(p.End) {
		return false
	}
	return true
}

// Next returns the period of the same length immediately after p.
func (p Period) Next() Period {
	return Period{Start: p.End, End: p.End.AddDate(0, 1, 0)}
}
