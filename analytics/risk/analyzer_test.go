package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/habitsense/analytics/model"
)

// now is a Friday evening.
var now = time.Date(2024, 6, 14, 18, 0, 0, 0, time.UTC)

func dayAt(offset int) string {
	return model.DayOf(now).AddDays(offset).String()
}

func badHabit(id string, mode model.TrackingMode) model.Habit {
	return model.Habit{ID: id, Name: id, Polarity: model.PolarityBad, Mode: mode}
}

func goodHabit(id string, mode model.TrackingMode, goal int) model.Habit {
	return model.Habit{ID: id, Name: id, Polarity: model.PolarityGood, Mode: mode, DailyGoal: goal, GoalKind: model.GoalMinimum}
}

func findHabit(t *testing.T, res Result, id string) HabitRisk {
	t.Helper()
	for _, h := range res.Habits {
		if h.HabitID == id {
			return h
		}
	}
	require.FailNow(t, "habit not found", id)
	return HabitRisk{}
}

func TestAnalyze_BadHabit(t *testing.T) {
	tests := []struct {
		name        string
		habit       model.Habit
		events      []model.EventEntry
		wantLevel   model.RiskLevel
		wantStreak  int
		wantCount   int
		wantMessage string
		wantAction  string
	}{
		{
			name:        "no events",
			habit:       badHabit("smoke", model.ModeBinary),
			wantLevel:   model.RiskGood,
			wantMessage: "No occurrence recorded",
			wantAction:  ActionStayFree,
		},
		{
			name:        "event right now",
			habit:       badHabit("smoke", model.ModeBinary),
			events:      []model.EventEntry{{HabitID: "smoke", Date: dayAt(0), OccurredAt: now}},
			wantLevel:   model.RiskCritical,
			wantCount:   1,
			wantMessage: "Occurred once today (0h ago)",
			wantAction:  ActionSubstitute,
		},
		{
			name:  "three occurrences today on a counter",
			habit: badHabit("snack", model.ModeCounter),
			events: []model.EventEntry{
				{HabitID: "snack", OccurredAt: now.Add(-5 * time.Hour)},
				{HabitID: "snack", OccurredAt: now.Add(-3 * time.Hour)},
				{HabitID: "snack", OccurredAt: now.Add(-1 * time.Hour)},
			},
			wantLevel:   model.RiskCritical,
			wantCount:   3,
			wantMessage: "Occurred 3 times today",
			wantAction:  ActionSubstitute,
		},
		{
			name:  "binary clamps today's count",
			habit: badHabit("smoke", model.ModeBinary),
			events: []model.EventEntry{
				{HabitID: "smoke", OccurredAt: now.Add(-2 * time.Hour), Count: 4},
			},
			wantLevel:   model.RiskCritical,
			wantCount:   1,
			wantMessage: "Occurred once today (2h ago)",
			wantAction:  ActionSubstitute,
		},
		{
			name:        "yesterday evening within 24h",
			habit:       badHabit("smoke", model.ModeBinary),
			events:      []model.EventEntry{{HabitID: "smoke", OccurredAt: now.Add(-20 * time.Hour)}},
			wantLevel:   model.RiskCritical,
			wantMessage: "Occurred 20h ago",
			wantAction:  ActionSubstitute,
		},
		{
			name:        "thirty hours ago",
			habit:       badHabit("smoke", model.ModeBinary),
			events:      []model.EventEntry{{HabitID: "smoke", OccurredAt: now.Add(-30 * time.Hour)}},
			wantLevel:   model.RiskWarning,
			wantMessage: "Recent occurrence, stay alert",
			wantAction:  ActionFindTrigger,
		},
		{
			name:        "three days clean",
			habit:       badHabit("smoke", model.ModeBinary),
			events:      []model.EventEntry{{HabitID: "smoke", OccurredAt: now.Add(-75 * time.Hour)}},
			wantLevel:   model.RiskGood,
			wantStreak:  3,
			wantMessage: "3 days without an occurrence",
			wantAction:  ActionContinueStreak,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Analyze([]model.Habit{tt.habit}, nil, tt.events, now)
			require.Len(t, res.Habits, 1)

			got := res.Habits[0]
			assert.Equal(t, tt.wantLevel, got.Level)
			assert.Equal(t, tt.wantStreak, got.CurrentStreak)
			assert.Equal(t, tt.wantCount, got.TodayCount)
			assert.Equal(t, tt.wantMessage, got.Message)
			assert.Equal(t, tt.wantAction, got.SuggestedAction)
		})
	}
}

func TestAnalyze_GoodBinaryHabit(t *testing.T) {
	t.Run("never started", func(t *testing.T) {
		res := Analyze([]model.Habit{goodHabit("run", model.ModeBinary, 0)}, nil, nil, now)
		got := res.Habits[0]
		assert.Equal(t, model.RiskWarning, got.Level)
		assert.Equal(t, "Never started", got.Message)
		assert.Equal(t, ActionStartToday, got.SuggestedAction)
		assert.Empty(t, got.LastActionDate)
	})

	t.Run("six days before today but not today", func(t *testing.T) {
		var logs []model.LogEntry
		for i := 1; i <= 6; i++ {
			logs = append(logs, model.LogEntry{HabitID: "run", Date: dayAt(-i)})
		}

		res := Analyze([]model.Habit{goodHabit("run", model.ModeBinary, 0)}, logs, nil, now)
		got := res.Habits[0]
		assert.Equal(t, 6, got.CurrentStreak)
		assert.Equal(t, model.RiskCritical, got.Level)
		assert.Equal(t, "Not done for 1 day", got.Message)
		assert.Equal(t, dayAt(-1), got.LastActionDate)
		assert.False(t, got.DoneToday)
	})

	t.Run("done today", func(t *testing.T) {
		logs := []model.LogEntry{
			{HabitID: "run", Date: dayAt(0)},
			{HabitID: "run", Date: dayAt(-1)},
		}
		res := Analyze([]model.Habit{goodHabit("run", model.ModeBinary, 0)}, logs, nil, now)
		got := res.Habits[0]
		assert.Equal(t, model.RiskWarning, got.Level)
		assert.True(t, got.DoneToday)
		assert.Equal(t, 2, got.CurrentStreak)
		assert.Equal(t, "Done today, 2 days streak", got.Message)
	})

	t.Run("gap breaks the streak", func(t *testing.T) {
		logs := []model.LogEntry{
			{HabitID: "run", Date: dayAt(0)},
			{HabitID: "run", Date: dayAt(-2)},
			{HabitID: "run", Date: dayAt(-3)},
		}
		res := Analyze([]model.Habit{goodHabit("run", model.ModeBinary, 0)}, logs, nil, now)
		assert.Equal(t, 1, res.Habits[0].CurrentStreak)
	})

	t.Run("last done a week ago", func(t *testing.T) {
		logs := []model.LogEntry{{HabitID: "run", Date: dayAt(-7)}}
		res := Analyze([]model.Habit{goodHabit("run", model.ModeBinary, 0)}, logs, nil, now)
		got := res.Habits[0]
		assert.Equal(t, 0, got.CurrentStreak)
		assert.Equal(t, "Not done for 7 days", got.Message)
	})

	t.Run("streak scan is capped", func(t *testing.T) {
		var logs []model.LogEntry
		for i := 0; i < 400; i++ {
			logs = append(logs, model.LogEntry{HabitID: "run", Date: dayAt(-i)})
		}
		res := Analyze([]model.Habit{goodHabit("run", model.ModeBinary, 0)}, logs, nil, now)
		assert.Equal(t, maxStreakScan, res.Habits[0].CurrentStreak)
	})
}

func TestAnalyze_GoodCounterHabit(t *testing.T) {
	habit := goodHabit("water", model.ModeCounter, 3)

	tests := []struct {
		name        string
		values      []int
		wantLevel   model.RiskLevel
		wantMessage string
		wantDone    bool
	}{
		{"nothing today", nil, model.RiskCritical, "0/3 today", false},
		{"partially done", []int{1, 1}, model.RiskWarning, "2/3 today", false},
		{"goal reached", []int{2, 1}, model.RiskWarning, "Goal reached: 3/3 today", true},
		{"goal exceeded", []int{5}, model.RiskWarning, "Goal reached: 5/3 today", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := []model.LogEntry{{HabitID: "water", Date: dayAt(-1), Value: 3}}
			for _, v := range tt.values {
				logs = append(logs, model.LogEntry{HabitID: "water", Date: dayAt(0), Value: v})
			}

			res := Analyze([]model.Habit{habit}, logs, nil, now)
			got := res.Habits[0]
			assert.Equal(t, tt.wantLevel, got.Level)
			assert.Equal(t, tt.wantMessage, got.Message)
			assert.Equal(t, tt.wantDone, got.DoneToday)
			assert.Equal(t, 3, got.DailyGoal)
			assert.Equal(t, model.ModeCounter, got.Mode)
		})
	}
}

func TestAnalyze_FiltersAndOrders(t *testing.T) {
	habits := []model.Habit{
		badHabit("clean", model.ModeBinary),
		goodHabit("read", model.ModeBinary, 0),
		{ID: "old", Name: "old", Polarity: model.PolarityBad, Mode: model.ModeBinary, Archived: true},
		badHabit("smoke", model.ModeBinary),
	}
	logs := []model.LogEntry{
		{HabitID: "read", Date: dayAt(-2)},
		{HabitID: "read"}, // dateless, dropped
	}
	events := []model.EventEntry{
		{HabitID: "smoke", OccurredAt: now.Add(-time.Hour)},
		{HabitID: "old", OccurredAt: now.Add(-time.Hour)},
		{HabitID: "clean"}, // dateless, dropped
	}

	res := Analyze(habits, logs, events, now)
	require.Len(t, res.Habits, 3)

	// Critical habits first, in input order, then good.
	assert.Equal(t, "read", res.Habits[0].HabitID)
	assert.Equal(t, "smoke", res.Habits[1].HabitID)
	assert.Equal(t, "clean", res.Habits[2].HabitID)
	assert.Equal(t, model.RiskGood, findHabit(t, res, "clean").Level)

	for _, h := range res.Habits {
		assert.GreaterOrEqual(t, h.CurrentStreak, 0)
	}
	assert.Len(t, res.Critical(), 2)
	assert.Empty(t, res.Warnings())
}

func TestAnalyze_GlobalState(t *testing.T) {
	habits := []model.Habit{badHabit("smoke", model.ModeBinary), goodHabit("read", model.ModeBinary, 0)}

	tests := []struct {
		name       string
		events     []model.EventEntry
		logs       []model.LogEntry
		wantLevel  model.RiskLevel
		wantSpiral bool
		wantRecent int
	}{
		{
			name:      "calm",
			logs:      []model.LogEntry{{HabitID: "read", Date: dayAt(0)}},
			wantLevel: model.RiskGood,
		},
		{
			name:       "one old relapse",
			events:     []model.EventEntry{{HabitID: "smoke", Date: dayAt(-3)}},
			logs:       []model.LogEntry{{HabitID: "read", Date: dayAt(0)}},
			wantLevel:  model.RiskWarning,
			wantRecent: 1,
		},
		{
			name: "two relapses in the window",
			events: []model.EventEntry{
				{HabitID: "smoke", Date: dayAt(-3)},
				{HabitID: "smoke", Date: dayAt(-5)},
				{HabitID: "smoke", Date: dayAt(-1)},
			},
			logs:       []model.LogEntry{{HabitID: "read", Date: dayAt(0)}},
			wantLevel:  model.RiskCritical,
			wantSpiral: true,
			wantRecent: 2,
		},
		{
			name: "two critical habits",
			events: []model.EventEntry{
				{HabitID: "smoke", OccurredAt: now.Add(-time.Hour)},
			},
			logs:       []model.LogEntry{{HabitID: "read", Date: dayAt(-3)}},
			wantLevel:  model.RiskCritical,
			wantSpiral: true,
			wantRecent: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Analyze(habits, tt.logs, tt.events, now)
			assert.Equal(t, tt.wantLevel, res.Global.Level)
			assert.Equal(t, tt.wantSpiral, res.Global.SpiralDetected)
			assert.Equal(t, tt.wantRecent, res.Global.RecentRelapses)
			assert.NotEmpty(t, res.Global.Message)
		})
	}
}
