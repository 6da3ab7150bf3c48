package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/habitsense/internal/profile"
	"github.com/hrygo/habitsense/store"
)

// SQLite is meant for single-user instances and development. Writes are
// serialized through a single connection.
type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the SQLite database at profile.DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	// Ensure a DSN is set before attempting to open the database.
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	// Connect to the database with some sane settings:
	// - Foreign keys are enforced: logs and events reference habits.
	// - Journal mode set to WAL: it's the recommended journal mode for most applications
	// as it prevents locking issues.
	//
	// Notes:
	// - When using the `modernc.org/sqlite` driver, each pragma must be prefixed with `_pragma=`.
	//
	// References:
	// - https://pkg.go.dev/modernc.org/sqlite#Driver.Open
	// - https://www.sqlite.org/pragma.html
	sqliteDB, err := sql.Open("sqlite", profile.DSN+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	sqliteDB.SetMaxOpenConns(1)    // SQLite: single connection is optimal with WAL
	sqliteDB.SetMaxIdleConns(1)    // Keep the single connection ready
	sqliteDB.SetConnMaxLifetime(0) // No lifetime limit (local file, no network)
	sqliteDB.SetConnMaxIdleTime(0)

	driver := DB{db: sqliteDB, profile: profile}

	return &driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) IsInitialized(ctx context.Context) (bool, error) {
	// Check if the database is initialized by checking if the habit table exists.
	var exists bool
	err := d.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM sqlite_master WHERE type='table' AND name='habit')").Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check if database is initialized")
	}
	return exists, nil
}

func (d *DB) Migrations() []store.Migration {
	return []store.Migration{
		{
			Version: "0.1.0",
			Statements: []string{
				`CREATE TABLE habit (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					uid TEXT NOT NULL,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL,
					icon TEXT NOT NULL DEFAULT '',
					polarity TEXT NOT NULL CHECK (polarity IN ('good', 'bad')),
					mode TEXT NOT NULL CHECK (mode IN ('binary', 'counter')),
					daily_goal INTEGER NOT NULL DEFAULT 0,
					goal_kind TEXT NOT NULL DEFAULT '',
					archived INTEGER NOT NULL DEFAULT 0,
					created_ts BIGINT NOT NULL DEFAULT (strftime('%s', 'now')),
					updated_ts BIGINT NOT NULL DEFAULT (strftime('%s', 'now')),
					UNIQUE (user_id, uid)
				)`,
				`CREATE TABLE habit_log (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					habit_uid TEXT NOT NULL,
					date TEXT NOT NULL,
					value INTEGER NOT NULL DEFAULT 1,
					created_ts BIGINT NOT NULL DEFAULT (strftime('%s', 'now')),
					FOREIGN KEY (user_id, habit_uid) REFERENCES habit (user_id, uid)
				)`,
				`CREATE INDEX idx_habit_log_user_date ON habit_log (user_id, date)`,
				`CREATE TABLE habit_event (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					habit_uid TEXT NOT NULL,
					date TEXT NOT NULL,
					count INTEGER NOT NULL DEFAULT 1,
					occurred_ts BIGINT NOT NULL DEFAULT (strftime('%s', 'now')),
					FOREIGN KEY (user_id, habit_uid) REFERENCES habit (user_id, uid)
				)`,
				`CREATE INDEX idx_habit_event_user_date ON habit_event (user_id, date)`,
			},
		},
	}
}

func (d *DB) FindMigrationHistoryList(ctx context.Context) ([]*store.MigrationHistory, error) {
	if _, err := d.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS migration_history (
		version TEXT NOT NULL PRIMARY KEY,
		created_ts BIGINT NOT NULL DEFAULT (strftime('%s', 'now'))
	)`); err != nil {
		return nil, errors.Wrap(err, "failed to create migration_history table")
	}

	rows, err := d.db.QueryContext(ctx, "SELECT version, created_ts FROM migration_history ORDER BY created_ts DESC")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list migration history")
	}
	defer rows.Close()

	var list []*store.MigrationHistory
	for rows.Next() {
		var h store.MigrationHistory
		if err := rows.Scan(&h.Version, &h.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan migration history")
		}
		list = append(list, &h)
	}
	return list, rows.Err()
}

func (d *DB) UpsertMigrationHistory(ctx context.Context, tx *sql.Tx, version string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO migration_history (version) VALUES (?)
		ON CONFLICT (version) DO UPDATE SET version = excluded.version
	`, version)
	return errors.Wrap(err, "failed to upsert migration history")
}
