// Package models contains GORM persistence models that map to database tables.
// Domain entities stay free of GORM tags; the record store keeps every
// collection as one JSON payload row, so the only table model is
// CollectionRecord.
package models
