package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/habitsense/internal/profile"
	"github.com/hrygo/habitsense/store"
)

// uniqueViolation is the PostgreSQL error code of a unique constraint violation.
const uniqueViolation = "23505"

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the PostgreSQL database at profile.DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &DB{db: db, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) IsInitialized(ctx context.Context) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_name = 'habit')").Scan(&exists)
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
					id SERIAL PRIMARY KEY,
					uid TEXT NOT NULL,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL,
					icon TEXT NOT NULL DEFAULT '',
					polarity TEXT NOT NULL CHECK (polarity IN ('good', 'bad')),
					mode TEXT NOT NULL CHECK (mode IN ('binary', 'counter')),
					daily_goal INTEGER NOT NULL DEFAULT 0,
					goal_kind TEXT NOT NULL DEFAULT '',
					archived BOOLEAN NOT NULL DEFAULT FALSE,
					created_ts BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
					updated_ts BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
					UNIQUE (user_id, uid)
				)`,
				`CREATE TABLE habit_log (
					id SERIAL PRIMARY KEY,
					user_id TEXT NOT NULL,
					habit_uid TEXT NOT NULL,
					date TEXT NOT NULL,
					value INTEGER NOT NULL DEFAULT 1,
					created_ts BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
					FOREIGN KEY (user_id, habit_uid) REFERENCES habit (user_id, uid)
				)`,
				`CREATE INDEX idx_habit_log_user_date ON habit_log (user_id, date)`,
				`CREATE TABLE habit_event (
					id SERIAL PRIMARY KEY,
					user_id TEXT NOT NULL,
					habit_uid TEXT NOT NULL,
					date TEXT NOT NULL,
					count INTEGER NOT NULL DEFAULT 1,
					occurred_ts BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
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
		created_ts BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
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
		INSERT INTO migration_history (version) VALUES ($1)
		ON CONFLICT (version) DO UPDATE SET version = EXCLUDED.version
	`, version)
	return errors.Wrap(err, "failed to upsert migration history")
}

// placeholder returns the PostgreSQL positional parameter $n.
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// conditions accumulates WHERE or SET fragments with their positional arguments.
type conditions struct {
	parts []string
	args  []any
}

func (c *conditions) add(column string, value any) {
	c.args = append(c.args, value)
	c.parts = append(c.parts, column+" = "+placeholder(len(c.args)))
}

func (c *conditions) addOp(column, op string, value any) {
	c.args = append(c.args, value)
	c.parts = append(c.parts, column+" "+op+" "+placeholder(len(c.args)))
}

func (c *conditions) raw(expr string) {
	c.parts = append(c.parts, expr)
}

func (c *conditions) join(sep string) string {
	return strings.Join(c.parts, sep)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
