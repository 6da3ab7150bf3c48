package store

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/hrygo/habitsense/internal/version"
)

// Migration is a schema change applied atomically.
type Migration struct {
	Version    string
	Statements []string
}

// MigrationHistory records an applied migration.
type MigrationHistory struct {
	Version   string
	CreatedTs int64
}

// ErrSchemaNewer is returned when the database was migrated by a newer binary.
var ErrSchemaNewer = errors.New("database schema is newer than this binary")

// Migrate applies, in version order, every driver migration newer than the latest applied one.
func (s *Store) Migrate(ctx context.Context) error {
	histories, err := s.driver.FindMigrationHistoryList(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to find migration history")
	}
	applied := make([]string, 0, len(histories))
	for _, h := range histories {
		applied = append(applied, h.Version)
	}
	current := version.Latest(applied)

	byVersion := make(map[string]Migration)
	versions := make([]string, 0)
	for _, m := range s.driver.Migrations() {
		if !version.IsValid(m.Version) {
			return errors.Errorf("invalid migration version %q", m.Version)
		}
		byVersion[m.Version] = m
		versions = append(versions, m.Version)
	}
	if known := version.Latest(versions); current != "" && !version.IsVersionGreaterOrEqualThan(known, current) {
		return errors.Wrapf(ErrSchemaNewer, "schema %s, binary supports up to %s", current, known)
	}

	count := 0
	for _, v := range version.Sorted(versions) {
		if current != "" && !version.IsVersionGreaterThan(v, current) {
			continue
		}
		if err := s.applyMigration(ctx, byVersion[v]); err != nil {
			return err
		}
		count++
	}
	if count > 0 {
		slog.Info("Store: schema migrated", "from", current, "applied", count)
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, m Migration) error {
	tx, err := s.driver.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	for _, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "failed to apply migration %s", m.Version)
		}
	}
	if err := s.driver.UpsertMigrationHistory(ctx, tx, m.Version); err != nil {
		return errors.Wrapf(err, "failed to record migration %s", m.Version)
	}
	return errors.Wrap(tx.Commit(), "failed to commit migration")
}
