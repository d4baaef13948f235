package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const (
	// DefaultDatabasePath is the SQLite database file used when none is configured.
	DefaultDatabasePath = "prtransfer.db"

	sqliteDriverNameConstant            = "sqlite"
	sqliteOpenErrorTemplateConstant     = "unable to open state database %s: %w"
	sqliteMigrationErrorTemplate        = "unable to apply state schema v%d: %w"
	sqliteVersionErrorTemplateConstant  = "unable to read state schema version: %w"
	sqliteQueryErrorTemplateConstant    = "unable to read processed pull requests from %s: %w"
	sqliteRecordErrorTemplateConstant   = "unable to record pull request %d in %s: %w"
	sqliteBusyTimeoutPragmaConstant     = "PRAGMA busy_timeout = 5000"
	schemaVersionTableExistsQuery       = "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'"
	schemaVersionQueryConstant          = "SELECT COALESCE(MAX(version), 0) FROM schema_version"
	selectProcessedQueryConstant        = "SELECT id FROM processed_pull_requests ORDER BY id"
	insertProcessedStatementConstant    = "INSERT OR IGNORE INTO processed_pull_requests (id, recorded_at, outcome) VALUES (?, ?, ?)"
	selectProcessedEntriesQueryConstant = "SELECT id, recorded_at, outcome FROM processed_pull_requests ORDER BY id"
)

type schemaMigration struct {
	version    int
	statements string
}

var schemaMigrations = []schemaMigration{
	{
		version: 1,
		statements: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS processed_pull_requests (
	id          INTEGER PRIMARY KEY,
	recorded_at TIMESTAMP NOT NULL,
	outcome     TEXT NOT NULL
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}

// ProcessedEntry is one recorded identifier with its bookkeeping.
type ProcessedEntry struct {
	ID         int       `db:"id"`
	RecordedAt time.Time `db:"recorded_at"`
	Outcome    Outcome   `db:"outcome"`
}

// SQLiteStore keeps the processed set in a SQLite database.
type SQLiteStore struct {
	mutex        sync.Mutex
	database     *sqlx.DB
	databasePath string
	clock        func() time.Time
}

// OpenSQLiteStore opens or creates the database at databasePath and applies pending schema migrations.
func OpenSQLiteStore(executionContext context.Context, databasePath string) (*SQLiteStore, error) {
	if len(databasePath) == 0 {
		return nil, ErrPathNotConfigured
	}

	database, openError := sqlx.Open(sqliteDriverNameConstant, databasePath)
	if openError != nil {
		return nil, fmt.Errorf(sqliteOpenErrorTemplateConstant, databasePath, openError)
	}
	database.SetMaxOpenConns(1)

	if _, pragmaError := database.ExecContext(executionContext, sqliteBusyTimeoutPragmaConstant); pragmaError != nil {
		_ = database.Close()
		return nil, fmt.Errorf(sqliteOpenErrorTemplateConstant, databasePath, pragmaError)
	}

	store := &SQLiteStore{database: database, databasePath: databasePath, clock: time.Now}
	if migrationError := store.migrate(executionContext); migrationError != nil {
		_ = database.Close()
		return nil, migrationError
	}
	return store, nil
}

// Load returns every recorded identifier.
func (store *SQLiteStore) Load(executionContext context.Context) (IdentifierSet, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	var identifiers []int
	if queryError := store.database.SelectContext(executionContext, &identifiers, selectProcessedQueryConstant); queryError != nil {
		return IdentifierSet{}, fmt.Errorf(sqliteQueryErrorTemplateConstant, store.databasePath, queryError)
	}
	return NewIdentifierSet(identifiers...), nil
}

// Entries returns every recorded identifier with its outcome, ordered by identifier.
func (store *SQLiteStore) Entries(executionContext context.Context) ([]ProcessedEntry, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	var entries []ProcessedEntry
	if queryError := store.database.SelectContext(executionContext, &entries, selectProcessedEntriesQueryConstant); queryError != nil {
		return nil, fmt.Errorf(sqliteQueryErrorTemplateConstant, store.databasePath, queryError)
	}
	return entries, nil
}

// RecordSuccess records identifier as transferred. Re-recording is a no-op.
func (store *SQLiteStore) RecordSuccess(executionContext context.Context, identifier int) error {
	return store.record(executionContext, identifier, OutcomeTransferred)
}

// RecordSkipped records identifier as skipped. Re-recording is a no-op.
func (store *SQLiteStore) RecordSkipped(executionContext context.Context, identifier int) error {
	return store.record(executionContext, identifier, OutcomeSkipped)
}

// Close closes the database.
func (store *SQLiteStore) Close() error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.database.Close()
}

func (store *SQLiteStore) record(executionContext context.Context, identifier int, outcome Outcome) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	_, insertError := store.database.ExecContext(executionContext, insertProcessedStatementConstant, identifier, store.clock().UTC(), string(outcome))
	if insertError != nil {
		return fmt.Errorf(sqliteRecordErrorTemplateConstant, identifier, store.databasePath, insertError)
	}
	return nil
}

func (store *SQLiteStore) migrate(executionContext context.Context) error {
	currentVersion := 0

	var tableCount int
	if countError := store.database.GetContext(executionContext, &tableCount, schemaVersionTableExistsQuery); countError != nil {
		return fmt.Errorf(sqliteVersionErrorTemplateConstant, countError)
	}
	if tableCount > 0 {
		if versionError := store.database.GetContext(executionContext, &currentVersion, schemaVersionQueryConstant); versionError != nil {
			return fmt.Errorf(sqliteVersionErrorTemplateConstant, versionError)
		}
	}

	for _, migration := range schemaMigrations {
		if migration.version <= currentVersion {
			continue
		}
		transaction, beginError := store.database.BeginTxx(executionContext, nil)
		if beginError != nil {
			return fmt.Errorf(sqliteMigrationErrorTemplate, migration.version, beginError)
		}
		if _, execError := transaction.ExecContext(executionContext, migration.statements); execError != nil {
			_ = transaction.Rollback()
			return fmt.Errorf(sqliteMigrationErrorTemplate, migration.version, execError)
		}
		if commitError := transaction.Commit(); commitError != nil {
			return fmt.Errorf(sqliteMigrationErrorTemplate, migration.version, commitError)
		}
	}
	return nil
}
