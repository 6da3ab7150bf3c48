// Package model defines the habit-tracking records consumed by the analytics engine.
package model

import (
	"time"
)

// Polarity tells whether a habit is a behavior to build or one to break.
type Polarity string

const (
	PolarityGood Polarity = "good"
	PolarityBad  Polarity = "bad"
)

// IsValid reports whether p is a known polarity.
func (p Polarity) IsValid() bool {
	return p == PolarityGood || p == PolarityBad
}

// TrackingMode controls how occurrences within one day are counted.
type TrackingMode string

const (
	// ModeBinary allows at most one meaningful occurrence per day.
	ModeBinary TrackingMode = "binary"
	// ModeCounter counts repeated occurrences against a daily target.
	ModeCounter TrackingMode = "counter"
)

// IsValid reports whether m is a known tracking mode.
func (m TrackingMode) IsValid() bool {
	return m == ModeBinary || m == ModeCounter
}

// GoalKind is the direction of a daily goal.
type GoalKind string

const (
	GoalMinimum GoalKind = "minimum"
	GoalMaximum GoalKind = "maximum"
)

// Habit is a tracked behavior.
type Habit struct {
	ID        string       `json:"id" yaml:"id"`
	Name      string       `json:"name" yaml:"name"`
	Icon      string       `json:"icon,omitempty" yaml:"icon"`
	Polarity  Polarity     `json:"polarity" yaml:"polarity"`
	Mode      TrackingMode `json:"mode" yaml:"mode"`
	DailyGoal int          `json:"daily_goal,omitempty" yaml:"daily_goal"`
	GoalKind  GoalKind     `json:"goal_kind,omitempty" yaml:"goal_kind"`
	Archived  bool         `json:"archived,omitempty" yaml:"archived"`
}

// IsGood reports whether the habit is a desired behavior.
func (h *Habit) IsGood() bool {
	return h.Polarity == PolarityGood
}

// IsCounter reports whether the habit counts repeated daily occurrences.
func (h *Habit) IsCounter() bool {
	return h.Mode == ModeCounter
}

// LogEntry records a completion of a good habit.
type LogEntry struct {
	HabitID   string    `json:"habit_id" yaml:"habit_id"`
	Date      string    `json:"date,omitempty" yaml:"date"`
	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at"`
	Value     int       `json:"value,omitempty" yaml:"value"`
}

// Amount is the counter increment of the log, defaulting to 1.
func (l *LogEntry) Amount() int {
	if l.Value <= 0 {
		return 1
	}
	return l.Value
}

// EventEntry records an occurrence of a bad habit, or auxiliary counting for a good counter habit.
type EventEntry struct {
	HabitID    string    `json:"habit_id" yaml:"habit_id"`
	Date       string    `json:"date,omitempty" yaml:"date"`
	OccurredAt time.Time `json:"occurred_at,omitempty" yaml:"occurred_at"`
	Count      int       `json:"count,omitempty" yaml:"count"`
}

// Amount is the occurrence count of the event, defaulting to 1.
func (e *EventEntry) Amount() int {
	if e.Count <= 0 {
		return 1
	}
	return e.Count
}

// Record is a dated record resolved against a reference location.
type Record struct {
	HabitID string
	Day     Day
	At      time.Time
	Amount  int
}

// resolve picks the calendar day of a record. An explicit date wins; the timestamp,
// converted to loc, is the fallback. A timestamp on another day than the explicit
// date is replaced by the local midnight of that date.
func resolve(date string, ts time.Time, loc *time.Location) (Day, time.Time, bool) {
	if date != "" {
		if d, err := ParseDay(date); err == nil {
			if ts.IsZero() || DayOf(ts.In(loc)) != d {
				return d, d.In(loc), true
			}
			return d, ts, true
		}
	}
	if ts.IsZero() {
		return 0, time.Time{}, false
	}
	return DayOf(ts.In(loc)), ts, true
}

// ResolveLogs drops logs without a resolvable day and resolves the rest.
func ResolveLogs(logs []LogEntry, loc *time.Location) []Record {
	out := make([]Record, 0, len(logs))
	for i := range logs {
		l := &logs[i]
		day, at, ok := resolve(l.Date, l.CreatedAt, loc)
		if !ok {
			continue
		}
		out = append(out, Record{HabitID: l.HabitID, Day: day, At: at, Amount: l.Amount()})
	}
	return out
}

// ResolveEvents drops events without a resolvable day and resolves the rest.
func ResolveEvents(events []EventEntry, loc *time.Location) []Record {
	out := make([]Record, 0, len(events))
	for i := range events {
		e := &events[i]
		day, at, ok := resolve(e.Date, e.OccurredAt, loc)
		if !ok {
			continue
		}
		out = append(out, Record{HabitID: e.HabitID, Day: day, At: at, Amount: e.Amount()})
	}
	return out
}

// GroupByHabit indexes records by habit ID, keeping input order within a habit.
func GroupByHabit(records []Record) map[string][]Record {
	out := make(map[string][]Record)
	for _, r := range records {
		out[r.HabitID] = append(out[r.HabitID], r)
	}
	return out
}

// ActiveHabits returns the non-archived habits in input order.
func ActiveHabits(habits []Habit) []Habit {
	out := make([]Habit, 0, len(habits))
	for _, h := range habits {
		if !h.Archived {
			out = append(out, h)
		}
	}
	return out
}
