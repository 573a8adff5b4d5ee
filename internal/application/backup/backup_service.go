package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fieldservice/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ArchiveStore keeps exported bundles outside the record store
type ArchiveStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// ErrNoArchive is returned by archive operations when no ArchiveStore is configured
var ErrNoArchive = shared.NewDomainError("ARCHIVE_UNAVAILABLE", "No backup archive is configured")

// Service exports and imports the full state of the record store
type Service struct {
	store    shared.RecordStore
	scope    shared.TransactionScope
	archive  ArchiveStore
	notifier shared.Notifier
	logger   *zap.Logger
	clock    func() time.Time
}

// NewService creates a backup service. archive may be nil.
func NewService(
	store shared.RecordStore,
	scope shared.TransactionScope,
	archive ArchiveStore,
	notifier shared.Notifier,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		scope:    scope,
		archive:  archive,
		notifier: notifier,
		logger:   logger.Named("backup"),
		clock:    time.Now,
	}
}

// SetClock overrides the time source
func (s *Service) SetClock(clock func() time.Time) {
	s.clock = clock
}

// Export bundles every collection with a checksum of its data
func (s *Service) Export(ctx context.Context) (*Bundle, error) {
	bundle := &Bundle{
		Format:     BundleFormat,
		Version:    BundleVersion,
		ExportedAt: s.clock().UTC(),
		Data:       make(map[shared.Collection]json.RawMessage),
	}
	for _, c := range shared.AllCollections() {
		raw, err := s.store.Load(ctx, c)
		if err != nil {
			return nil, shared.NewPersistenceError("load", c, err)
		}
		if len(raw) == 0 || string(raw) == "null" {
			raw = json.RawMessage("[]")
		}
		bundle.Data[c] = raw
	}

	sum, err := bundle.ComputeChecksum()
	if err != nil {
		return nil, err
	}
	bundle.Checksum = sum
	s.logger.Info("state exported", zap.String("checksum", sum))
	return bundle, nil
}

// Validate checks a bundle's tag, checksum and references without writing
func (s *Service) Validate(bundle *Bundle) error {
	var problems []string
	if bundle.Format != BundleFormat {
		problems = append(problems, fmt.Sprintf("unsupported format %q", bundle.Format))
	}
	if bundle.Version != BundleVersion {
		problems = append(problems, fmt.Sprintf("unsupported version %q", bundle.Version))
	}
	if len(problems) > 0 {
		return &ImportError{Problems: problems}
	}

	sum, err := bundle.ComputeChecksum()
	if err != nil {
		return &ImportError{Problems: []string{err.Error()}}
	}
	if sum != bundle.Checksum {
		return &ImportError{Problems: []string{
			fmt.Sprintf("checksum mismatch: bundle says %s, data hashes to %s", bundle.Checksum, sum),
		}}
	}

	collections, problems := decodeCollections(bundle.Data)
	problems = append(problems, checkReferences(collections)...)
	if len(problems) > 0 {
		return &ImportError{Problems: problems}
	}
	return nil
}

// Import replaces the full state with bundle after validating it. Nothing
// is written when validation fails.
func (s *Service) Import(ctx context.Context, bundle *Bundle) error {
	err := s.importBundle(ctx, bundle)
	s.finish(ctx, "Backup restored", "Backup import failed", err)
	return err
}

func (s *Service) importBundle(ctx context.Context, bundle *Bundle) error {
	if err := s.Validate(bundle); err != nil {
		return err
	}
	return s.scope.Execute(ctx, func(tx shared.RecordStore) error {
		for _, c := range shared.AllCollections() {
			raw, ok := bundle.Data[c]
			if !ok || len(raw) == 0 || string(raw) == "null" {
				raw = json.RawMessage("[]")
			}
			if err := tx.Save(ctx, c, raw); err != nil {
				return shared.NewPersistenceError("save", c, err)
			}
		}
		return nil
	})
}

// ExportToArchive exports the state and stores it under key
func (s *Service) ExportToArchive(ctx context.Context, key string) (*Bundle, error) {
	bundle, err := s.exportToArchive(ctx, key)
	s.finish(ctx, "Backup archived as "+key, "Backup archive failed", err)
	return bundle, err
}

func (s *Service) exportToArchive(ctx context.Context, key string) (*Bundle, error) {
	if s.archive == nil {
		return nil, ErrNoArchive
	}
	bundle, err := s.Export(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("encode bundle: %w", err)
	}
	if err := s.archive.Put(ctx, key, data); err != nil {
		return nil, fmt.Errorf("archive bundle %s: %w", key, err)
	}
	return bundle, nil
}

// ImportFromArchive restores the bundle stored under key
func (s *Service) ImportFromArchive(ctx context.Context, key string) error {
	err := s.importFromArchive(ctx, key)
	s.finish(ctx, "Backup "+key+" restored", "Backup restore failed", err)
	return err
}

func (s *Service) importFromArchive(ctx context.Context, key string) error {
	if s.archive == nil {
		return ErrNoArchive
	}
	data, err := s.archive.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("fetch bundle %s: %w", key, err)
	}
	var bundle Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return &ImportError{Problems: []string{fmt.Sprintf("bundle %s is not valid JSON: %v", key, err)}}
	}
	return s.importBundle(ctx, &bundle)
}

func (s *Service) finish(ctx context.Context, success, failure string, err error) {
	if err == nil {
		s.logger.Info(success)
		s.notifier.NotifySuccess(ctx, success)
		return
	}
	s.logger.Warn(failure, zap.Error(err))
	var importErr *ImportError
	if errors.As(err, &importErr) {
		s.notifier.NotifyError(ctx, fmt.Sprintf("%s: %d problems found", failure, len(importErr.Problems)))
		return
	}
	s.notifier.NotifyError(ctx, failure+": "+err.Error())
}
