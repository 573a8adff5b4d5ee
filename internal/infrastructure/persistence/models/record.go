package models

import (
	"time"
)

// CollectionRecord stores one collection as a single JSON document.
// Version increases by one on every write and guards concurrent units of work.
type CollectionRecord struct {
	Collection string    `gorm:"type:varchar(64);primaryKey"`
	Payload    string    `gorm:"type:text;not null"`
	Version    int       `gorm:"not null;default:1"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CollectionRecord) TableName() string {
	return "collection_records"
}
