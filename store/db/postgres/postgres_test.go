package postgres

import (
	"testing"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/habitsense/internal/profile"
	"github.com/hrygo/habitsense/internal/version"
	"github.com/hrygo/habitsense/store"
)

func ptr[T any](v T) *T {
	return &v
}

func TestNewDB(t *testing.T) {
	_, err := NewDB(&profile.Profile{Driver: "postgres"})
	assert.Error(t, err)

	driver, err := NewDB(&profile.Profile{Driver: "postgres", DSN: "postgres://localhost:5432/habitsense?sslmode=disable"})
	require.NoError(t, err)
	defer driver.Close()
	assert.NotNil(t, driver.GetDB())
}

func TestDateFilter(t *testing.T) {
	where := dateFilter("alice", ptr("smoke"), ptr("2024-05-16"), ptr("2024-06-14"))
	assert.Equal(t, "user_id = $1 AND habit_uid = $2 AND date >= $3 AND date <= $4", where.join(" AND "))
	assert.Equal(t, []any{"alice", "smoke", "2024-05-16", "2024-06-14"}, where.args)

	where = dateFilter("bob", nil, nil, ptr("2024-06-14"))
	assert.Equal(t, "user_id = $1 AND date <= $2", where.join(" AND "))
}

func TestBuildHabitUpdate(t *testing.T) {
	set := buildHabitUpdate(&store.UpdateHabit{UserID: "alice", UID: "run", Name: ptr("Jog"), Archived: ptr(true), UpdatedTs: 42})
	assert.Equal(t, "updated_ts = $1, name = $2, archived = $3", set.join(", "))
	assert.Equal(t, []any{int64(42), "Jog", true}, set.args)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: uniqueViolation}))
	assert.True(t, isUniqueViolation(errors.Wrap(&pq.Error{Code: uniqueViolation}, "insert")))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestMigrations(t *testing.T) {
	d := &DB{}
	for _, m := range d.Migrations() {
		assert.True(t, version.IsValid(m.Version), m.Version)
		assert.NotEmpty(t, m.Statements)
	}
}
