package backup

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fieldservice/backend/internal/domain/shared"
)

const (
	// BundleFormat tags every exported bundle
	BundleFormat = "fieldservice-backup"
	// BundleVersion is the bundle layout version written by Export
	BundleVersion = "1.0"
)

// Bundle is a full-state export of every collection
type Bundle struct {
	Format     string                                `json:"format"`
	Version    string                                `json:"version"`
	ExportedAt time.Time                             `json:"exported_at"`
	Checksum   string                                `json:"checksum"`
	Data       map[shared.Collection]json.RawMessage `json:"data"`
}

// ComputeChecksum returns the rolling hash of the bundle's serialized data
func (b *Bundle) ComputeChecksum() (string, error) {
	raw, err := json.Marshal(b.Data)
	if err != nil {
		return "", fmt.Errorf("serialize bundle data: %w", err)
	}
	return Checksum(string(raw)), nil
}

// Checksum hashes s with h = h*31 + c over its characters, wrapping at 32
// bits, and renders the result as eight hex digits.
func Checksum(s string) string {
	var h int32
	for _, c := range s {
		h = h*31 + int32(c)
	}
	return fmt.Sprintf("%08x", uint32(h))
}

// ImportError lists every reason a bundle was refused
type ImportError struct {
	Problems []string
}

// Error implements the error interface
func (e *ImportError) Error() string {
	return fmt.Sprintf("backup rejected: %s", strings.Join(e.Problems, "; "))
}

// Code returns the error code used by the HTTP layer
func (e *ImportError) Code() string {
	return "IMPORT_REJECTED"
}
