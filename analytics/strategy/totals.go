package strategy

import (
	"time"

	"github.com/hrygo/habitsense/analytics/model"
	"github.com/hrygo/habitsense/analytics/risk"
)

// CollectTotals counts the entries of every non-archived habit. Good habits count
// their log entries, bad habits their event entries; streaks come from the risk result.
func CollectTotals(habits []model.Habit, logs []model.LogEntry, events []model.EventEntry, r risk.Result, loc *time.Location) Totals {
	logCount := countByHabit(model.ResolveLogs(logs, loc))
	eventCount := countByHabit(model.ResolveEvents(events, loc))

	streaks := make(map[string]int, len(r.Habits))
	for _, h := range r.Habits {
		streaks[h.HabitID] = h.CurrentStreak
	}

	var t Totals
	for _, h := range model.ActiveHabits(habits) {
		ht := HabitTotal{
			HabitID:       h.ID,
			Name:          h.Name,
			Icon:          h.Icon,
			Polarity:      h.Polarity,
			CurrentStreak: streaks[h.ID],
		}
		if h.IsGood() {
			ht.Total = logCount[h.ID]
			t.GoodTotal += ht.Total
		} else {
			ht.Total = eventCount[h.ID]
			t.BadTotal += ht.Total
		}
		t.Habits = append(t.Habits, ht)
	}
	return t
}

// Period counts the entries of non-archived habits whose day falls in [from, to].
func Period(habits []model.Habit, logs []model.LogEntry, events []model.EventEntry, from, to model.Day, loc *time.Location) PeriodTotals {
	polarity := make(map[string]model.Polarity)
	for _, h := range model.ActiveHabits(habits) {
		polarity[h.ID] = h.Polarity
	}

	var p PeriodTotals
	for _, r := range model.ResolveLogs(logs, loc) {
		if r.Day >= from && r.Day <= to && polarity[r.HabitID] == model.PolarityGood {
			p.Good++
		}
	}
	for _, r := range model.ResolveEvents(events, loc) {
		if r.Day >= from && r.Day <= to && polarity[r.HabitID] == model.PolarityBad {
			p.Bad++
		}
	}
	return p
}

// TrailingWindows measures the last window days up to today and the window before it.
func TrailingWindows(habits []model.Habit, logs []model.LogEntry, events []model.EventEntry, today model.Day, window int, loc *time.Location) (current, previous PeriodTotals) {
	current = Period(habits, logs, events, today.AddDays(1-window), today, loc)
	previous = Period(habits, logs, events, today.AddDays(1-2*window), today.AddDays(-window), loc)
	return current, previous
}

func countByHabit(records []model.Record) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.HabitID]++
	}
	return counts
}
