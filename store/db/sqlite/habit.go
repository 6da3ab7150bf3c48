package sqlite

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/habitsense/store"
)

const habitColumns = "id, uid, user_id, name, icon, polarity, mode, daily_goal, goal_kind, archived, created_ts, updated_ts"

func (d *DB) CreateHabit(ctx context.Context, create *store.Habit) (*store.Habit, error) {
	stmt := `
		INSERT INTO habit (uid, user_id, name, icon, polarity, mode, daily_goal, goal_kind, archived)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + habitColumns
	row := d.db.QueryRowContext(ctx, stmt,
		create.UID,
		create.UserID,
		create.Name,
		create.Icon,
		create.Polarity,
		create.Mode,
		create.DailyGoal,
		create.GoalKind,
		create.Archived,
	)
	habit, err := scanHabit(row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, errors.Wrapf(store.ErrAlreadyExists, "habit %s", create.UID)
		}
		return nil, errors.Wrap(err, "failed to create habit")
	}
	return habit, nil
}

func (d *DB) ListHabits(ctx context.Context, find *store.FindHabit) ([]*store.Habit, error) {
	where, args := []string{"user_id = ?"}, []any{find.UserID}
	if find.UID != nil {
		where, args = append(where, "uid = ?"), append(args, *find.UID)
	}
	if !find.IncludeArchived {
		where = append(where, "archived = 0")
	}

	rows, err := d.db.QueryContext(ctx, "SELECT "+habitColumns+" FROM habit WHERE "+strings.Join(where, " AND ")+" ORDER BY id ASC", args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list habits")
	}
	defer rows.Close()

	var list []*store.Habit
	for rows.Next() {
		habit, err := scanHabit(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan habit")
		}
		list = append(list, habit)
	}
	return list, rows.Err()
}

func (d *DB) UpdateHabit(ctx context.Context, update *store.UpdateHabit) (*store.Habit, error) {
	set, args := []string{"updated_ts = ?"}, []any{update.UpdatedTs}
	if v := update.Name; v != nil {
		set, args = append(set, "name = ?"), append(args, *v)
	}
	if v := update.Icon; v != nil {
		set, args = append(set, "icon = ?"), append(args, *v)
	}
	if v := update.DailyGoal; v != nil {
		set, args = append(set, "daily_goal = ?"), append(args, *v)
	}
	if v := update.Archived; v != nil {
		set, args = append(set, "archived = ?"), append(args, *v)
	}
	args = append(args, update.UserID, update.UID)

	stmt := "UPDATE habit SET " + strings.Join(set, ", ") + " WHERE user_id = ? AND uid = ? RETURNING " + habitColumns
	habit, err := scanHabit(d.db.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		return nil, errors.Wrap(err, "failed to update habit")
	}
	return habit, nil
}

func (d *DB) CreateHabitLog(ctx context.Context, create *store.HabitLog) (*store.HabitLog, error) {
	stmt := `
		INSERT INTO habit_log (user_id, habit_uid, date, value, created_ts)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id, user_id, habit_uid, date, value, created_ts
	`
	var log store.HabitLog
	err := d.db.QueryRowContext(ctx, stmt,
		create.UserID,
		create.HabitUID,
		create.Date,
		create.Value,
		create.CreatedTs,
	).Scan(&log.ID, &log.UserID, &log.HabitUID, &log.Date, &log.Value, &log.CreatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create habit log")
	}
	return &log, nil
}

func (d *DB) ListHabitLogs(ctx context.Context, find *store.FindHabitLog) ([]*store.HabitLog, error) {
	where, args := dateFilter(find.UserID, find.HabitUID, find.FromDate, find.ToDate)
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, user_id, habit_uid, date, value, created_ts
		FROM habit_log
		WHERE `+where+`
		ORDER BY date ASC, id ASC`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list habit logs")
	}
	defer rows.Close()

	var list []*store.HabitLog
	for rows.Next() {
		var log store.HabitLog
		if err := rows.Scan(&log.ID, &log.UserID, &log.HabitUID, &log.Date, &log.Value, &log.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan habit log")
		}
		list = append(list, &log)
	}
	return list, rows.Err()
}

func (d *DB) CreateHabitEvent(ctx context.Context, create *store.HabitEvent) (*store.HabitEvent, error) {
	stmt := `
		INSERT INTO habit_event (user_id, habit_uid, date, count, occurred_ts)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id, user_id, habit_uid, date, count, occurred_ts
	`
	var event store.HabitEvent
	err := d.db.QueryRowContext(ctx, stmt,
		create.UserID,
		create.HabitUID,
		create.Date,
		create.Count,
		create.OccurredTs,
	).Scan(&event.ID, &event.UserID, &event.HabitUID, &event.Date, &event.Count, &event.OccurredTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create habit event")
	}
	return &event, nil
}

func (d *DB) ListHabitEvents(ctx context.Context, find *store.FindHabitEvent) ([]*store.HabitEvent, error) {
	where, args := dateFilter(find.UserID, find.HabitUID, find.FromDate, find.ToDate)
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, user_id, habit_uid, date, count, occurred_ts
		FROM habit_event
		WHERE `+where+`
		ORDER BY date ASC, id ASC`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list habit events")
	}
	defer rows.Close()

	var list []*store.HabitEvent
	for rows.Next() {
		var event store.HabitEvent
		if err := rows.Scan(&event.ID, &event.UserID, &event.HabitUID, &event.Date, &event.Count, &event.OccurredTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan habit event")
		}
		list = append(list, &event)
	}
	return list, rows.Err()
}

func dateFilter(userID string, habitUID, from, to *string) (string, []any) {
	where, args := []string{"user_id = ?"}, []any{userID}
	if habitUID != nil {
		where, args = append(where, "habit_uid = ?"), append(args, *habitUID)
	}
	if from != nil {
		where, args = append(where, "date >= ?"), append(args, *from)
	}
	if to != nil {
		where, args = append(where, "date <= ?"), append(args, *to)
	}
	return strings.Join(where, " AND "), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHabit(row scanner) (*store.Habit, error) {
	var h store.Habit
	if err := row.Scan(
		&h.ID,
		&h.UID,
		&h.UserID,
		&h.Name,
		&h.Icon,
		&h.Polarity,
		&h.Mode,
		&h.DailyGoal,
		&h.GoalKind,
		&h.Archived,
		&h.CreatedTs,
		&h.UpdatedTs,
	); err != nil {
		return nil, err
	}
	return &h, nil
}
