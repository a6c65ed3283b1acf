// Command migrate manages the ledger's PostgreSQL schema.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charity/backend/internal/infrastructure/config"
	"github.com/charity/backend/internal/infrastructure/logger"
	"github.com/charity/backend/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

// env is what a command runs against. db and migrator are nil for offline commands.
type env struct {
	log      *zap.Logger
	path     string
	args     []string
	db       *sql.DB
	migrator *migration.Migrator
}

type command struct {
	usage   string
	help    string
	offline bool
	run     func(e *env) error
}

var commands = map[string]command{
	"up": {usage: "up", help: "Apply all pending migrations", run: func(e *env) error {
		return e.migrator.Up()
	}},
	"down": {usage: "down", help: "Roll back all migrations", run: func(e *env) error {
		return e.migrator.Down()
	}},
	"step": {usage: "step <n>", help: "Apply n migrations (negative rolls back)", run: func(e *env) error {
		n, err := intArg(e.args, "step count")
		if err != nil {
			return err
		}
		return e.migrator.Steps(n)
	}},
	"goto": {usage: "goto <version>", help: "Migrate to a specific version", run: func(e *env) error {
		v, err := intArg(e.args, "version")
		if err != nil {
			return err
		}
		return e.migrator.GoTo(uint(v))
	}},
	"force": {usage: "force <version>", help: "Set the version after a failed migration", run: func(e *env) error {
		v, err := intArg(e.args, "version")
		if err != nil {
			return err
		}
		return e.migrator.Force(v)
	}},
	"version": {usage: "version", help: "Show the current schema version", run: func(e *env) error {
		status, err := e.migrator.Status()
		if err != nil {
			return err
		}
		if !status.Applied {
			e.log.Info("No migrations applied")
			return nil
		}
		e.log.Info("Current migration version",
			zap.Uint("version", status.Version),
			zap.Bool("dirty", status.Dirty),
		)
		return nil
	}},
	"verify": {usage: "verify", help: "Check the ledger tables exist and the schema is clean", run: verify},
	"create": {usage: "create <name> [desc]", help: "Create a new migration file pair", offline: true, run: func(e *env) error {
		if len(e.args) == 0 {
			return fmt.Errorf("migration name required")
		}
		desc := strings.Join(e.args[1:], " ")
		mf, err := migration.CreateMigration(e.path, e.args[0], desc)
		if err != nil {
			return err
		}
		e.log.Info("Migration created",
			zap.Uint("version", mf.Version),
			zap.String("up_file", mf.UpPath),
			zap.String("down_file", mf.DownPath),
		)
		return nil
	}},
	"list": {usage: "list", help: "List migration files", offline: true, run: func(e *env) error {
		migrations, err := migration.ListMigrations(e.path)
		if err != nil {
			return err
		}
		for _, m := range migrations {
			fmt.Printf("  %06d  %s\n", m.Version, m.Name)
		}
		return nil
	}},
}

func main() {
	var (
		migrationsPath string
		logLevel       string
	)
	flag.StringVar(&migrationsPath, "path", defaultMigrationsPath, "Path to migrations directory")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		printUsage()
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{Level: logLevel, Format: "console", Output: "stdout", TimeFormat: time.DateTime})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	absPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		log.Fatal("Failed to resolve migrations path", zap.Error(err))
	}
	e := &env{log: log, path: absPath, args: args[1:]}
	log.Debug("Migration CLI started", zap.String("command", args[0]), zap.String("migrations_path", absPath))

	if !cmd.offline {
		closeFn, err := e.connect()
		if err != nil {
			log.Fatal("Failed to prepare database", zap.Error(err))
		}
		defer closeFn()
	}

	if err := cmd.run(e); err != nil {
		log.Error("Command failed", zap.String("command", args[0]), zap.Error(err))
		os.Exit(1)
	}
}

func (e *env) connect() (func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	m, err := migration.New(db, e.path, e.log)
	if err != nil {
		db.Close()
		return nil, err
	}
	e.db, e.migrator = db, m
	return func() {
		_ = m.Close()
	}, nil
}

func verify(e *env) error {
	status, err := e.migrator.Status()
	if err != nil {
		return err
	}
	if status.Dirty {
		return fmt.Errorf("schema is dirty at version %d, run force after fixing it", status.Version)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	missing, err := migration.MissingTables(ctx, e.db, migration.LedgerTables...)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing ledger tables: %s", strings.Join(missing, ", "))
	}
	e.log.Info("Ledger schema verified", zap.Uint("version", status.Version))
	return nil
}

func intArg(args []string, name string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%s required", name)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, args[0])
	}
	return n, nil
}

func printUsage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(os.Stderr, "Donation ledger migration tool\n\nUsage:\n  migrate [flags] <command> [arguments]\n\nCommands:")
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-22s%s\n", commands[name].usage, commands[name].help)
	}
	fmt.Fprintln(os.Stderr, "\nFlags:")
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr, "\nDatabase settings come from LEDGER_DATABASE_* environment variables.")
}
