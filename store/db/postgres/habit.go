package postgres

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hrygo/habitsense/store"
)

const habitColumns = "id, uid, user_id, name, icon, polarity, mode, daily_goal, goal_kind, archived, created_ts, updated_ts"

func (d *DB) CreateHabit(ctx context.Context, create *store.Habit) (*store.Habit, error) {
	query := `
		INSERT INTO habit (uid, user_id, name, icon, polarity, mode, daily_goal, goal_kind, archived)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + habitColumns
	habit, err := scanHabit(d.db.QueryRowContext(ctx, query,
		create.UID,
		create.UserID,
		create.Name,
		create.Icon,
		create.Polarity,
		create.Mode,
		create.DailyGoal,
		create.GoalKind,
		create.Archived,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errors.Wrapf(store.ErrAlreadyExists, "habit %s", create.UID)
		}
		return nil, errors.Wrap(err, "failed to create habit")
	}
	return habit, nil
}

func (d *DB) ListHabits(ctx context.Context, find *store.FindHabit) ([]*store.Habit, error) {
	where := &conditions{}
	where.add("user_id", find.UserID)
	if find.UID != nil {
		where.add("uid", *find.UID)
	}
	if !find.IncludeArchived {
		where.raw("archived = FALSE")
	}

	rows, err := d.db.QueryContext(ctx, "SELECT "+habitColumns+" FROM habit WHERE "+where.join(" AND ")+" ORDER BY id ASC", where.args...)
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
	set := buildHabitUpdate(update)
	n := len(set.args)
	args := append(set.args, update.UserID, update.UID)
	query := "UPDATE habit SET " + set.join(", ") +
		" WHERE user_id = " + placeholder(n+1) + " AND uid = " + placeholder(n+2) +
		" RETURNING " + habitColumns

	habit, err := scanHabit(d.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, errors.Wrap(err, "failed to update habit")
	}
	return habit, nil
}

func buildHabitUpdate(update *store.UpdateHabit) *conditions {
	set := &conditions{}
	set.add("updated_ts", update.UpdatedTs)
	if v := update.Name; v != nil {
		set.add("name", *v)
	}
	if v := update.Icon; v != nil {
		set.add("icon", *v)
	}
	if v := update.DailyGoal; v != nil {
		set.add("daily_goal", *v)
	}
	if v := update.Archived; v != nil {
		set.add("archived", *v)
	}
	return set
}

func (d *DB) CreateHabitLog(ctx context.Context, create *store.HabitLog) (*store.HabitLog, error) {
	query := `
		INSERT INTO habit_log (user_id, habit_uid, date, value, created_ts)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, habit_uid, date, value, created_ts
	`
	var log store.HabitLog
	err := d.db.QueryRowContext(ctx, query,
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
	where := dateFilter(find.UserID, find.HabitUID, find.FromDate, find.ToDate)
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, user_id, habit_uid, date, value, created_ts
		FROM habit_log
		WHERE `+where.join(" AND ")+`
		ORDER BY date ASC, id ASC`, where.args...)
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
	query := `
		INSERT INTO habit_event (user_id, habit_uid, date, count, occurred_ts)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, habit_uid, date, count, occurred_ts
	`
	var event store.HabitEvent
	err := d.db.QueryRowContext(ctx, query,
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
	where := dateFilter(find.UserID, find.HabitUID, find.FromDate, find.ToDate)
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, user_id, habit_uid, date, count, occurred_ts
		FROM habit_event
		WHERE `+where.join(" AND ")+`
		ORDER BY date ASC, id ASC`, where.args...)
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

func dateFilter(userID string, habitUID, from, to *string) *conditions {
	where := &conditions{}
	where.add("user_id", userID)
	if habitUID != nil {
		where.add("habit_uid", *habitUID)
	}
	if from != nil {
		where.addOp("date", ">=", *from)
	}
	if to != nil {
		where.addOp("date", "<=", *to)
	}
	return where
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
