package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed sql/*.sql
var embedded embed.FS

// Option configures New
type Option func(*options)

type options struct {
	dir string
}

// FromDir reads migrations from a directory instead of the embedded set
func FromDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// Migrator moves the collection_records schema between versions
type Migrator struct {
	migrate *migrate.Migrate
	source  fs.FS
	logger  *zap.Logger
}

// Status is the schema version of a database next to the migrations it lacks
type Status struct {
	Version uint
	Dirty   bool
	Pending []Listed
}

// New opens a Migrator on db, a postgres connection
func New(db *sql.DB, logger *zap.Logger, opts ...Option) (*Migrator, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	source, err := sourceFS(o.dir)
	if err != nil {
		return nil, err
	}
	driver, err := iofs.New(source, ".")
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}
	target, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres migration target: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", driver, "postgres", target)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return &Migrator{migrate: m, source: source, logger: logger}, nil
}

func sourceFS(dir string) (fs.FS, error) {
	if dir == "" {
		return fs.Sub(embedded, "sql")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("migration directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("migration directory %s is a file", dir)
	}
	return os.DirFS(dir), nil
}

// apply runs one migrate command. Nothing left to apply is not an error.
func (m *Migrator) apply(command string, step func() error) error {
	log := m.logger.With(zap.String("command", command))
	log.Info("Applying migrations")

	err := step()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Info("Schema already current")
		return nil
	case err != nil:
		return fmt.Errorf("migrate %s: %w", command, err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	log.Info("Schema migrated", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// Up applies every pending migration
func (m *Migrator) Up() error { return m.apply("up", m.migrate.Up) }

// Down reverts every applied migration
func (m *Migrator) Down() error { return m.apply("down", m.migrate.Down) }

// Steps moves n migrations, up when positive and down when negative
func (m *Migrator) Steps(n int) error {
	return m.apply(fmt.Sprintf("step %d", n), func() error { return m.migrate.Steps(n) })
}

// GoTo moves the schema to version
func (m *Migrator) GoTo(version uint) error {
	return m.apply(fmt.Sprintf("goto %d", version), func() error { return m.migrate.Migrate(version) })
}

// Version reports the applied version. A fresh database is version 0.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, dirty, nil
}

// Status lists the source migrations newer than the applied version
func (m *Migrator) Status() (Status, error) {
	version, dirty, err := m.Version()
	if err != nil {
		return Status{}, err
	}
	all, err := ListMigrations(m.source)
	if err != nil {
		return Status{}, err
	}
	st := Status{Version: version, Dirty: dirty, Pending: []Listed{}}
	for _, l := range all {
		if l.Version > version {
			st.Pending = append(st.Pending, l)
		}
	}
	return st, nil
}

// Force records version as applied without running anything. It clears
// the dirty flag left by a failed migration.
func (m *Migrator) Force(version int) error {
	m.logger.Warn("Forcing schema version", zap.Int("version", version))
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

func (m *Migrator) Close() error {
	srcErr, dbErr := m.migrate.Close()
	return errors.Join(srcErr, dbErr)
}
