package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/source/httpfs"
)

const (
	// LatestMigrationVersion is the latest migration version of the
	// database, used for downgrade protection.
	//
	// NOTE: This MUST be updated when a new migration is added.
	LatestMigrationVersion uint = 1
)

// ErrMigrationDowngrade is returned when the database schema is newer than
// the binary knows about.
var ErrMigrationDowngrade = errors.New("database downgrade detected")

// MigrationTarget selects the version applyMigrations moves the schema to.
type MigrationTarget func(mig *migrate.Migrate, currentDBVersion int,
	maxMigrationVersion uint) error

var (
	// TargetLatest migrates to the newest embedded version.
	TargetLatest = func(mig *migrate.Migrate, _ int, _ uint) error {
		return mig.Up()
	}

	// TargetVersion migrates up or down to the given version.
	TargetVersion = func(version uint) MigrationTarget {
		return func(mig *migrate.Migrate, _ int, _ uint) error {
			return mig.Migrate(version)
		}
	}
)

type migrateOptions struct {
	latestVersion uint
}

func defaultMigrateOptions() *migrateOptions {
	return &migrateOptions{
		latestVersion: LatestMigrationVersion,
	}
}

// MigrateOpt is a functional option for ExecuteMigrations.
type MigrateOpt func(*migrateOptions)

// WithLatestVersion overrides the version considered latest.
func WithLatestVersion(version uint) MigrateOpt {
	return func(o *migrateOptions) {
		o.latestVersion = version
	}
}

// migrationLogger adapts slog to migrate.Logger.
type migrationLogger struct {
	log *slog.Logger
}

// Printf implements migrate.Logger.
func (m *migrationLogger) Printf(format string, v ...any) {
	m.log.Info(fmt.Sprintf(strings.TrimRight(format, "\n"), v...))
}

// Verbose implements migrate.Logger.
func (m *migrationLogger) Verbose() bool {
	return false
}

// applyMigrations runs the migrations found under path in fsys using driver.
func applyMigrations(fsys fs.FS, driver database.Driver, path, dbName string,
	targetVersion MigrationTarget, opts *migrateOptions,
	log *slog.Logger) error {

	source, err := httpfs.New(http.FS(fsys), path)
	if err != nil {
		return err
	}

	sqlMigrate, err := migrate.NewWithInstance(
		"migrations", source, dbName, driver,
	)
	if err != nil {
		return err
	}

	version, dirty, err := sqlMigrate.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("unable to determine current migration "+
			"version: %w", err)
	}

	if dirty {
		return fmt.Errorf("database is in a dirty state at version "+
			"%v, manual intervention required", version)
	}

	if version > opts.latestVersion {
		return fmt.Errorf("%w: db_version=%v, "+
			"latest_migration_version=%v", ErrMigrationDowngrade,
			version, opts.latestVersion)
	}

	current, _, err := driver.Version()
	if err != nil {
		return fmt.Errorf("unable to get current db version: %w", err)
	}
	log.InfoContext(context.Background(), "Applying migrations",
		"current_db_version", current,
		"latest_migration_version", opts.latestVersion,
	)

	sqlMigrate.Log = &migrationLogger{log}

	err = targetVersion(sqlMigrate, current, opts.latestVersion)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	current, _, err = driver.Version()
	if err != nil {
		return fmt.Errorf("unable to get current db version: %w", err)
	}
	log.InfoContext(context.Background(), "Database version after "+
		"migration", "current_db_version", current)

	return nil
}

// backupSqliteDatabase writes a copy of srcDB next to dbFullFilePath using
// VACUUM INTO.
func backupSqliteDatabase(srcDB *sql.DB, dbFullFilePath string,
	log *slog.Logger) error {

	if srcDB == nil {
		return fmt.Errorf("backup source database is nil")
	}

	backupPath := fmt.Sprintf(
		"%s.%d.backup", dbFullFilePath, time.Now().UnixNano(),
	)

	log.InfoContext(context.Background(), "Creating backup of database "+
		"file", "source", dbFullFilePath, "backup", backupPath)

	if _, err := srcDB.Exec("VACUUM INTO ?;", backupPath); err != nil {
		return fmt.Errorf("backup database: %w", err)
	}

	return nil
}
