package store

import (
	"context"
	"time"

	"github.com/hrygo/habitsense/analytics/model"
)

// Habit represents a tracked habit owned by a user.
// Habit 表示用户追踪的一个习惯。
type Habit struct {
	ID        int32
	UID       string
	UserID    string
	Name      string
	Icon      string
	Polarity  model.Polarity
	Mode      model.TrackingMode
	DailyGoal int
	GoalKind  model.GoalKind
	Archived  bool
	CreatedTs int64
	UpdatedTs int64
}

// ToModel converts the stored habit into the analytics record, keyed by UID.
func (h *Habit) ToModel() model.Habit {
	return model.Habit{
		ID:        h.UID,
		Name:      h.Name,
		Icon:      h.Icon,
		Polarity:  h.Polarity,
		Mode:      h.Mode,
		DailyGoal: h.DailyGoal,
		GoalKind:  h.GoalKind,
		Archived:  h.Archived,
	}
}

// FindHabit is the filter of ListHabits.
type FindHabit struct {
	UserID          string
	UID             *string
	IncludeArchived bool
}

// UpdateHabit changes mutable habit fields. Nil fields are left untouched.
type UpdateHabit struct {
	UserID    string
	UID       string
	Name      *string
	Icon      *string
	DailyGoal *int
	Archived  *bool
	UpdatedTs int64
}

// HabitLog records one completion of a good habit.
// HabitLog 记录一次正向习惯的完成。
type HabitLog struct {
	ID        int32
	UserID    string
	HabitUID  string
	Date      string // YYYY-MM-DD
	Value     int
	CreatedTs int64
}

// ToModel converts the stored log into the analytics record.
func (l *HabitLog) ToModel() model.LogEntry {
	entry := model.LogEntry{HabitID: l.HabitUID, Date: l.Date, Value: l.Value}
	if l.CreatedTs > 0 {
		entry.CreatedAt = time.Unix(l.CreatedTs, 0)
	}
	return entry
}

// FindHabitLog is the filter of ListHabitLogs. Dates are inclusive YYYY-MM-DD bounds.
type FindHabitLog struct {
	UserID   string
	HabitUID *string
	FromDate *string
	ToDate   *string
}

// HabitEvent records an occurrence of a bad habit.
// HabitEvent 记录一次负向习惯的发生。
type HabitEvent struct {
	ID         int32
	UserID     string
	HabitUID   string
	Date       string // YYYY-MM-DD
	Count      int
	OccurredTs int64
}

// ToModel converts the stored event into the analytics record.
func (e *HabitEvent) ToModel() model.EventEntry {
	entry := model.EventEntry{HabitID: e.HabitUID, Date: e.Date, Count: e.Count}
	if e.OccurredTs > 0 {
		entry.OccurredAt = time.Unix(e.OccurredTs, 0)
	}
	return entry
}

// FindHabitEvent is the filter of ListHabitEvents. Dates are inclusive YYYY-MM-DD bounds.
type FindHabitEvent struct {
	UserID   string
	HabitUID *string
	FromDate *string
	ToDate   *string
}

func (s *Store) CreateHabit(ctx context.Context, create *Habit) (*Habit, error) {
	return s.driver.CreateHabit(ctx, create)
}

func (s *Store) ListHabits(ctx context.Context, find *FindHabit) ([]*Habit, error) {
	return s.driver.ListHabits(ctx, find)
}

// GetHabit returns the habit with the given UID, or nil when it does not exist.
func (s *Store) GetHabit(ctx context.Context, userID, uid string) (*Habit, error) {
	list, err := s.driver.ListHabits(ctx, &FindHabit{UserID: userID, UID: &uid, IncludeArchived: true})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpdateHabit(ctx context.Context, update *UpdateHabit) (*Habit, error) {
	return s.driver.UpdateHabit(ctx, update)
}

func (s *Store) CreateHabitLog(ctx context.Context, create *HabitLog) (*HabitLog, error) {
	return s.driver.CreateHabitLog(ctx, create)
}

func (s *Store) ListHabitLogs(ctx context.Context, find *FindHabitLog) ([]*HabitLog, error) {
	return s.driver.ListHabitLogs(ctx, find)
}

func (s *Store) CreateHabitEvent(ctx context.Context, create *HabitEvent) (*HabitEvent, error) {
	return s.driver.CreateHabitEvent(ctx, create)
}

func (s *Store) ListHabitEvents(ctx context.Context, find *FindHabitEvent) ([]*HabitEvent, error) {
	return s.driver.ListHabitEvents(ctx, find)
}
