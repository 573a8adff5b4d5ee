package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fieldservice/backend/internal/infrastructure/config"
	"github.com/fieldservice/backend/internal/infrastructure/logger"
	"github.com/fieldservice/backend/internal/infrastructure/migration"
	"github.com/fieldservice/backend/internal/infrastructure/persistence"
	"github.com/google/subcommands"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

type globals struct {
	dir      string
	logLevel string
	out      io.Writer
}

func (g *globals) stdout() io.Writer {
	if g.out == nil {
		return os.Stdout
	}
	return g.out
}

func (g *globals) logger() *zap.Logger {
	log, err := logger.New(logger.Config{Level: g.logLevel, Format: "console", Output: "stderr"})
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func (g *globals) migrationDir() (string, error) {
	if g.dir == "" {
		return "", nil
	}
	return filepath.Abs(g.dir)
}

// withMigrator connects to the configured postgres database and runs fn
func (g *globals) withMigrator(fn func(*migration.Migrator) error) subcommands.ExitStatus {
	log := g.logger()
	defer logger.Sync(log)

	if err := g.runMigrator(log, fn); err != nil {
		log.Error("Migration failed", zap.Error(err))
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (g *globals) runMigrator(log *zap.Logger, fn func(*migration.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if cfg.Database.Driver != persistence.DriverPostgres {
		return fmt.Errorf("driver %q: SQL migrations target postgres, sqlite is migrated by the server on start", cfg.Database.Driver)
	}
	dir, err := g.migrationDir()
	if err != nil {
		return err
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	var opts []migration.Option
	if dir != "" {
		opts = append(opts, migration.FromDir(dir))
	}
	m, err := migration.New(db, log, opts...)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}

func schemaCommands(g *globals) []subcommands.Command {
	return []subcommands.Command{
		&simpleCmd{g: g, name: "up", synopsis: "apply all pending migrations",
			run: func(m *migration.Migrator, _ []string) error { return m.Up() }},
		&simpleCmd{g: g, name: "down", synopsis: "revert all migrations",
			run: func(m *migration.Migrator, _ []string) error { return m.Down() }},
		&simpleCmd{g: g, name: "step", args: "[--] <n>", synopsis: "apply n migrations, negative n reverts",
			run: func(m *migration.Migrator, args []string) error {
				n, err := intArg(args, "step count")
				if err != nil {
					return err
				}
				return m.Steps(n)
			}},
		&simpleCmd{g: g, name: "goto", args: "<version>", synopsis: "migrate to a version",
			run: func(m *migration.Migrator, args []string) error {
				v, err := intArg(args, "version")
				if err != nil {
					return err
				}
				if v < 0 {
					return fmt.Errorf("version must not be negative")
				}
				return m.GoTo(uint(v))
			}},
		&simpleCmd{g: g, name: "force", args: "<version>", synopsis: "mark a version applied, clearing the dirty flag",
			run: func(m *migration.Migrator, args []string) error {
				v, err := intArg(args, "version")
				if err != nil {
					return err
				}
				return m.Force(v)
			}},
		&simpleCmd{g: g, name: "status", synopsis: "show the applied version and pending migrations",
			run: func(m *migration.Migrator, _ []string) error {
				st, err := m.Status()
				if err != nil {
					return err
				}
				printStatus(g.stdout(), st)
				return nil
			}},
	}
}

func intArg(args []string, what string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected exactly one %s", what)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, args[0])
	}
	return n, nil
}

func printStatus(w io.Writer, st migration.Status) {
	dirty := ""
	if st.Dirty {
		dirty = " (dirty)"
	}
	fmt.Fprintf(w, "version %d%s\n", st.Version, dirty)
	if len(st.Pending) == 0 {
		fmt.Fprintln(w, "schema is current")
		return
	}
	fmt.Fprintf(w, "%d pending:\n", len(st.Pending))
	for _, l := range st.Pending {
		fmt.Fprintf(w, "  %06d  %s\n", l.Version, l.Name)
	}
}

// simpleCmd runs one Migrator call with positional arguments
type simpleCmd struct {
	g        *globals
	name     string
	args     string
	synopsis string
	run      func(*migration.Migrator, []string) error
}

func (c *simpleCmd) Name() string     { return c.name }
func (c *simpleCmd) Synopsis() string { return c.synopsis }
func (c *simpleCmd) Usage() string {
	return fmt.Sprintf("migrate [-path dir] %s %s\n\n  %s.\n", c.name, c.args, c.synopsis)
}
func (*simpleCmd) SetFlags(*flag.FlagSet) {}

func (c *simpleCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	return c.g.withMigrator(func(m *migration.Migrator) error { return c.run(m, args) })
}

func fileCommands(g *globals) []subcommands.Command {
	return []subcommands.Command{&createCmd{g: g}, &listCmd{g: g}}
}

type createCmd struct {
	g           *globals
	description string
}

func (*createCmd) Name() string     { return "create" }
func (*createCmd) Synopsis() string { return "write an empty up/down migration pair" }
func (*createCmd) Usage() string {
	return `migrate -path <dir> create [-description text] <name>

  Writes NNNNNN_<name>.up.sql and .down.sql with the next free version.
`
}

func (c *createCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.description, "description", "", "Description placed in the file header")
}

func (c *createCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	dir, err := c.g.migrationDir()
	if err != nil || dir == "" {
		fmt.Fprintln(os.Stderr, "create needs -path pointing at the migration sources")
		return subcommands.ExitUsageError
	}
	mf, err := migration.CreateMigration(dir, f.Arg(0), c.description)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(c.g.stdout(), "created %s\n        %s\n", mf.UpPath, mf.DownPath)
	return subcommands.ExitSuccess
}

type listCmd struct {
	g *globals
}

func (*listCmd) Name() string           { return "list" }
func (*listCmd) Synopsis() string       { return "list available migrations" }
func (*listCmd) Usage() string          { return "migrate [-path dir] list\n" }
func (*listCmd) SetFlags(*flag.FlagSet) {}

func (c *listCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	dir, err := c.g.migrationDir()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	var listed []migration.Listed
	if dir == "" {
		listed, err = migration.Embedded()
	} else {
		listed, err = migration.ListMigrations(os.DirFS(dir))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if len(listed) == 0 {
		fmt.Fprintln(c.g.stdout(), "no migrations")
	}
	for _, l := range listed {
		fmt.Fprintf(c.g.stdout(), "%06d  %s\n", l.Version, l.Name)
	}
	return subcommands.ExitSuccess
}
