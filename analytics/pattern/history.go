package pattern

import (
	"sort"
	"time"

	"github.com/hrygo/habitsense/analytics/model"
)

// history is the relapse and completion record the detectors share. It is built
// fresh for every Detect call.
type history struct {
	bad  []model.Habit
	good []model.Habit

	// negatives holds one record per occurrence of a bad habit.
	negatives     []model.Record
	negDays       map[model.Day]map[string]bool
	negDaysByHab  map[string]map[model.Day]bool
	loggedByHabit map[string]map[model.Day]bool
}

func newHistory(habits []model.Habit, logs []model.LogEntry, events []model.EventEntry, loc *time.Location) *history {
	h := &history{
		negDays:       make(map[model.Day]map[string]bool),
		negDaysByHab:  make(map[string]map[model.Day]bool),
		loggedByHabit: make(map[string]map[model.Day]bool),
	}

	badIDs := make(map[string]bool)
	for _, habit := range model.ActiveHabits(habits) {
		if habit.IsGood() {
			h.good = append(h.good, habit)
			continue
		}
		h.bad = append(h.bad, habit)
		badIDs[habit.ID] = true
	}

	for _, r := range model.ResolveEvents(events, loc) {
		if !badIDs[r.HabitID] {
			continue
		}
		h.negatives = append(h.negatives, r)
		if h.negDays[r.Day] == nil {
			h.negDays[r.Day] = make(map[string]bool)
		}
		h.negDays[r.Day][r.HabitID] = true
		if h.negDaysByHab[r.HabitID] == nil {
			h.negDaysByHab[r.HabitID] = make(map[model.Day]bool)
		}
		h.negDaysByHab[r.HabitID][r.Day] = true
	}

	for _, r := range model.ResolveLogs(logs, loc) {
		if h.loggedByHabit[r.HabitID] == nil {
			h.loggedByHabit[r.HabitID] = make(map[model.Day]bool)
		}
		h.loggedByHabit[r.HabitID][r.Day] = true
	}
	return h
}

// distinctDays returns the sorted distinct days with at least one occurrence.
func (h *history) distinctDays() []model.Day {
	days := make([]model.Day, 0, len(h.negDays))
	for d := range h.negDays {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}

// badHabitsWhere returns the IDs of bad habits, in habit order, for which keep is true.
func (h *history) badHabitsWhere(keep func(id string) bool) []string {
	var ids []string
	for _, b := range h.bad {
		if keep(b.ID) {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

// weekdayCounts buckets occurrences by weekday.
func (h *history) weekdayCounts() [7]int {
	var counts [7]int
	for _, r := range h.negatives {
		counts[r.Day.Weekday()]++
	}
	return counts
}

// peakWeekday returns the weekday with most occurrences; the earliest weekday wins ties.
func peakWeekday(counts [7]int) (time.Weekday, int) {
	best := time.Sunday
	for d := time.Monday; d <= time.Saturday; d++ {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best, counts[best]
}
