package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/stemsi/examprint/internal/config"
	"github.com/stemsi/examprint/internal/logger"
)

// migrateLog routes golang-migrate's progress lines through zerolog.
type migrateLog struct {
	log     zerolog.Logger
	verbose bool
}

func (l migrateLog) Printf(format string, v ...interface{}) {
	l.log.Info().Msgf(format, v...)
}

func (l migrateLog) Verbose() bool { return l.verbose }

func main() {
	var (
		migrationDir string
		verbose      bool
	)
	flag.StringVar(&migrationDir, "path", "migrations", "Path to migration files")
	flag.BoolVar(&verbose, "v", false, "Log every migration step")
	flag.Usage = printUsage
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat).With().Str("component", "migrate").Logger()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(2)
	}

	m, err := migrate.New("file://"+migrationDir, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("path", migrationDir).Msg("Migration failed to initialize")
	}
	m.Log = migrateLog{log: log, verbose: verbose}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Warn().AnErr("source", srcErr).AnErr("database", dbErr).Msg("Close migrator")
		}
	}()

	if err := run(m, args); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Str("command", args[0]).Msg("Schema already up to date")
			return
		}
		log.Fatal().Err(err).Str("command", args[0]).Msg("Migration failed")
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		log.Info().Str("command", args[0]).Msg("No migration applied")
	case err != nil:
		log.Fatal().Err(err).Msg("Read schema version")
	default:
		log.Info().Str("command", args[0]).Uint("version", version).Bool("dirty", dirty).Msg("Schema version")
	}
}

// run applies one command. up and down take an optional step count; without
// it they apply or revert everything.
func run(m *migrate.Migrate, args []string) error {
	switch args[0] {
	case "up", "down":
		if len(args) < 2 {
			if args[0] == "up" {
				return m.Up()
			}
			return m.Down()
		}
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return fmt.Errorf("%s: step count %q must be a positive integer", args[0], args[1])
		}
		if args[0] == "down" {
			n = -n
		}
		return m.Steps(n)
	case "goto":
		v, err := versionArg(args)
		if err != nil {
			return err
		}
		return m.Migrate(uint(v))
	case "force":
		v, err := versionArg(args)
		if err != nil {
			return err
		}
		return m.Force(v)
	case "version":
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func versionArg(args []string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%s requires a version argument", args[0])
	}
	v, err := strconv.Atoi(args[1])
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s: invalid version %q", args[0], args[1])
	}
	return v, nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: migrate [flags] <command>")
	fmt.Fprintln(os.Stderr, "Commands: up [N], down [N], goto <version>, force <version>, version")
	fmt.Fprintln(os.Stderr, "Flags:")
	flag.PrintDefaults()
}
