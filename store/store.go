package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/hrygo/habitsense/internal/profile"
)

// ErrAlreadyExists is returned, wrapped, when a habit UID is already taken by the user.
var ErrAlreadyExists = errors.New("already exists")

// Driver is the database-specific implementation behind Store.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)
	// Migrations returns the schema migrations of the driver, keyed by semantic version.
	Migrations() []Migration

	FindMigrationHistoryList(ctx context.Context) ([]*MigrationHistory, error)
	UpsertMigrationHistory(ctx context.Context, tx *sql.Tx, version string) error

	CreateHabit(ctx context.Context, create *Habit) (*Habit, error)
	ListHabits(ctx context.Context, find *FindHabit) ([]*Habit, error)
	UpdateHabit(ctx context.Context, update *UpdateHabit) (*Habit, error)

	CreateHabitLog(ctx context.Context, create *HabitLog) (*HabitLog, error)
	ListHabitLogs(ctx context.Context, find *FindHabitLog) ([]*HabitLog, error)

	CreateHabitEvent(ctx context.Context, create *HabitEvent) (*HabitEvent, error)
	ListHabitEvents(ctx context.Context, find *FindHabitEvent) ([]*HabitEvent, error)
}

// Store provides database access to habits, logs and events.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}
