package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	sqlite_migrate "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDBPath returns the default path for the pagesum database.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".pagesum", "pagesum.db"), nil
}

// OpenSQLite opens a SQLite database connection with WAL mode enabled and the
// pragmas we rely on.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w",
			err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000",
		dbPath,
	)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; one connection avoids SQLITE_BUSY
	// between our own goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := configurePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	return db, nil
}

// configurePragmas sets additional SQLite pragmas.
func configurePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -16384",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// SqliteConfig holds the configuration for a SqliteStore.
type SqliteConfig struct {
	// DatabaseFileName is the full path of the database file.
	DatabaseFileName string

	// SkipMigrations leaves the schema untouched when opening.
	SkipMigrations bool

	// SkipMigrationDbBackup disables the VACUUM INTO backup taken before
	// migrations run.
	SkipMigrationDbBackup bool
}

// SqliteStore is a migrated SQLite database exposing the generated queries.
type SqliteStore struct {
	*BaseDB

	cfg *SqliteConfig
	log *slog.Logger
}

// NewSqliteStore opens the database named in cfg and brings its schema up to
// date.
func NewSqliteStore(cfg *SqliteConfig, log *slog.Logger) (*SqliteStore,
	error) {

	if log == nil {
		log = slog.Default()
	}

	rawDB, err := OpenSQLite(cfg.DatabaseFileName)
	if err != nil {
		return nil, err
	}

	s := &SqliteStore{
		BaseDB: NewBaseDB(rawDB),
		cfg:    cfg,
		log:    log.With("component", "sqlite"),
	}

	if !cfg.SkipMigrations {
		if err := s.ExecuteMigrations(TargetLatest); err != nil {
			rawDB.Close()
			return nil, fmt.Errorf("error executing migrations: %w",
				err)
		}
	}

	return s, nil
}

// ExecuteMigrations runs the embedded migrations against the database up to
// target.
func (s *SqliteStore) ExecuteMigrations(target MigrationTarget,
	optFuncs ...MigrateOpt) error {

	opts := defaultMigrateOptions()
	for _, optFunc := range optFuncs {
		optFunc(opts)
	}

	inMemory := strings.Contains(s.cfg.DatabaseFileName, ":memory:")
	if !s.cfg.SkipMigrationDbBackup && !inMemory {
		err := backupSqliteDatabase(
			s.BaseDB.DB, s.cfg.DatabaseFileName, s.log,
		)
		if err != nil {
			return err
		}
	}

	driver, err := sqlite_migrate.WithInstance(
		s.BaseDB.DB, &sqlite_migrate.Config{},
	)
	if err != nil {
		return fmt.Errorf("error creating sqlite migration: %w", err)
	}

	return applyMigrations(
		sqlSchemas, driver, "migrations", "sqlite", target, opts, s.log,
	)
}

// Close closes the underlying database connection.
func (s *SqliteStore) Close() error {
	return s.BaseDB.DB.Close()
}
