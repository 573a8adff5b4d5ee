// Command migrate manages the postgres schema of the record store.
//
// Migrations are embedded in the binary; -path points at a directory of
// NNNNNN_name.{up,down}.sql files instead, which create writes to.
// Connection settings come from the FS_DATABASE_* environment.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	g := &globals{}
	flag.StringVar(&g.dir, "path", "", "Migration directory (default: migrations embedded in the binary)")
	flag.StringVar(&g.logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range schemaCommands(g) {
		commander.Register(c, "schema")
	}
	for _, c := range fileCommands(g) {
		commander.Register(c, "files")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
