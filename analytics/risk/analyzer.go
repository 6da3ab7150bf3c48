// Package risk classifies the current risk level and streak state of each habit.
package risk

import (
	"fmt"
	"sort"
	"time"

	"github.com/hrygo/habitsense/analytics/model"
)

const (
	// maxStreakScan bounds the backward streak scan.
	maxStreakScan = 365
	// spiralWindowDays is how far back, inclusive of today, relapses count toward a spiral.
	spiralWindowDays = 3
	// spiralThreshold is the number of recent relapses or critical habits that makes a spiral.
	spiralThreshold = 2

	criticalWindowHours = 24
	warningWindowHours  = 48

	encouragingStreak = 5
)

// Suggested actions shown next to a habit.
const (
	ActionSubstitute     = "Apply a substitution action immediately"
	ActionFindTrigger    = "Identify your trigger"
	ActionContinueStreak = "Continue your streak"
	ActionStartToday     = "Start today"
	ActionDoItNow        = "Do it now to restart your streak"
	ActionKeepMomentum   = "Keep the momentum going"
	ActionFirstStep      = "Log your first repetition now"
	ActionKeepPushing    = "Keep going to reach today's goal"
	ActionAcknowledge    = "Goal reached, acknowledge today's progress"
	ActionStayFree       = "Stay mindful, nothing to fix"
)

// HabitRisk is the risk assessment of a single habit.
type HabitRisk struct {
	HabitID         string             `json:"habit_id"`
	Name            string             `json:"name"`
	Icon            string             `json:"icon,omitempty"`
	Polarity        model.Polarity     `json:"polarity"`
	Level           model.RiskLevel    `json:"level"`
	Message         string             `json:"message"`
	LastActionDate  string             `json:"last_action_date,omitempty"`
	LastActionAt    *time.Time         `json:"last_action_at,omitempty"`
	CurrentStreak   int                `json:"current_streak"`
	SuggestedAction string             `json:"suggested_action"`
	DoneToday       bool               `json:"done_today"`
	TodayCount      int                `json:"today_count"`
	Mode            model.TrackingMode `json:"mode"`
	DailyGoal       int                `json:"daily_goal,omitempty"`
}

// GlobalState summarizes risk across all habits.
type GlobalState struct {
	Level          model.RiskLevel `json:"level"`
	SpiralDetected bool            `json:"spiral_detected"`
	Message        string          `json:"message"`
	RecentRelapses int             `json:"recent_relapses"`
	CriticalHabits int             `json:"critical_habits"`
}

// Result is the output of Analyze.
type Result struct {
	Habits []HabitRisk `json:"habits"`
	Global GlobalState `json:"global"`
}

// Critical returns the habits classified critical, in ranked order.
func (r *Result) Critical() []HabitRisk {
	return r.byLevel(model.RiskCritical)
}

// Warnings returns the habits classified warning, in ranked order.
func (r *Result) Warnings() []HabitRisk {
	return r.byLevel(model.RiskWarning)
}

func (r *Result) byLevel(level model.RiskLevel) []HabitRisk {
	var out []HabitRisk
	for _, h := range r.Habits {
		if h.Level == level {
			out = append(out, h)
		}
	}
	return out
}

// Analyze classifies every non-archived habit relative to now. Results are sorted
// critical first; habits with the same level keep their input order.
func Analyze(habits []model.Habit, logs []model.LogEntry, events []model.EventEntry, now time.Time) Result {
	loc := now.Location()
	today := model.DayOf(now)
	logsByHabit := model.GroupByHabit(model.ResolveLogs(logs, loc))
	eventsByHabit := model.GroupByHabit(model.ResolveEvents(events, loc))

	active := model.ActiveHabits(habits)
	results := make([]HabitRisk, 0, len(active))
	for i := range active {
		h := &active[i]
		if h.IsGood() {
			results = append(results, analyzeGood(h, logsByHabit[h.ID], eventsByHabit[h.ID], today))
		} else {
			results = append(results, analyzeBad(h, eventsByHabit[h.ID], now, today))
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Level.Rank() < results[j].Level.Rank()
	})

	return Result{
		Habits: results,
		Global: assessGlobal(active, eventsByHabit, results, today),
	}
}

func newHabitRisk(h *model.Habit) HabitRisk {
	return HabitRisk{
		HabitID:   h.ID,
		Name:      h.Name,
		Icon:      h.Icon,
		Polarity:  h.Polarity,
		Mode:      h.Mode,
		DailyGoal: h.DailyGoal,
	}
}

func analyzeBad(h *model.Habit, events []model.Record, now time.Time, today model.Day) HabitRisk {
	r := newHabitRisk(h)
	if len(events) == 0 {
		r.Level = model.RiskGood
		r.Message = "No occurrence recorded"
		r.SuggestedAction = ActionStayFree
		return r
	}

	last := latest(events)
	r.setLastAction(last)
	r.TodayCount = countOn(events, today, h.IsCounter())
	r.DoneToday = r.TodayCount > 0

	hours := now.Sub(last.At).Hours()
	if hours < 0 {
		hours = 0
	}

	switch {
	case hours < criticalWindowHours:
		r.Level = model.RiskCritical
		switch {
		case r.TodayCount > 1:
			r.Message = fmt.Sprintf("Occurred %d times today", r.TodayCount)
		case r.TodayCount == 1:
			r.Message = fmt.Sprintf("Occurred once today (%dh ago)", int(hours))
		default:
			r.Message = fmt.Sprintf("Occurred %dh ago", int(hours))
		}
		r.SuggestedAction = ActionSubstitute
	case hours < warningWindowHours:
		r.Level = model.RiskWarning
		r.Message = "Recent occurrence, stay alert"
		r.SuggestedAction = ActionFindTrigger
	default:
		r.Level = model.RiskGood
		r.CurrentStreak = int(hours / 24)
		r.Message = fmt.Sprintf("%s without an occurrence", plural(r.CurrentStreak, "day"))
		r.SuggestedAction = ActionContinueStreak
	}
	return r
}

func analyzeGood(h *model.Habit, logs, events []model.Record, today model.Day) HabitRisk {
	r := newHabitRisk(h)

	activity := make([]model.Record, 0, len(logs)+len(events))
	activity = append(activity, logs...)
	activity = append(activity, events...)
	if len(activity) == 0 {
		r.Level = model.RiskWarning
		r.Message = "Never started"
		r.SuggestedAction = ActionStartToday
		return r
	}

	last := latest(activity)
	r.setLastAction(last)
	r.CurrentStreak = currentStreak(activeDays(activity), today)
	r.TodayCount = countOn(logs, today, h.IsCounter())

	daysSince := int(today - last.Day)
	if daysSince < 0 {
		daysSince = 0
	}

	if h.IsCounter() && h.DailyGoal > 0 {
		goal := h.DailyGoal
		r.DoneToday = r.TodayCount >= goal
		if r.TodayCount < goal {
			r.Message = fmt.Sprintf("%d/%d today", r.TodayCount, goal)
			if r.TodayCount == 0 {
				r.Level = model.RiskCritical
				r.SuggestedAction = ActionFirstStep
			} else {
				r.Level = model.RiskWarning
				r.SuggestedAction = ActionKeepPushing
			}
			return r
		}
		// Reaching the goal stays a warning so the day still gets acknowledged.
		r.Level = model.RiskWarning
		r.Message = fmt.Sprintf("Goal reached: %d/%d today", r.TodayCount, goal)
		r.SuggestedAction = ActionAcknowledge
		return r
	}

	r.DoneToday = r.TodayCount > 0
	switch {
	case !r.DoneToday && daysSince >= 1:
		r.Level = model.RiskCritical
		r.Message = fmt.Sprintf("Not done for %s", plural(daysSince, "day"))
		r.SuggestedAction = ActionDoItNow
	case r.CurrentStreak >= encouragingStreak || r.DoneToday:
		r.Level = model.RiskWarning
		if r.DoneToday {
			r.Message = fmt.Sprintf("Done today, %s streak", plural(r.CurrentStreak, "day"))
		} else {
			r.Message = fmt.Sprintf("%s streak, keep it alive", plural(r.CurrentStreak, "day"))
		}
		r.SuggestedAction = ActionKeepMomentum
	default:
		r.Level = model.RiskGood
		r.Message = "On track"
		r.SuggestedAction = ActionContinueStreak
	}
	return r
}

func (r *HabitRisk) setLastAction(last model.Record) {
	at := last.At
	r.LastActionDate = last.Day.String()
	r.LastActionAt = &at
}

func assessGlobal(active []model.Habit, eventsByHabit map[string][]model.Record, results []HabitRisk, today model.Day) GlobalState {
	recent := 0
	for i := range active {
		if active[i].IsGood() {
			continue
		}
		for _, e := range eventsByHabit[active[i].ID] {
			if e.Day >= today.AddDays(-spiralWindowDays) && e.Day <= today {
				recent++
			}
		}
	}

	critical := 0
	for _, r := range results {
		if r.Level == model.RiskCritical {
			critical++
		}
	}

	g := GlobalState{
		SpiralDetected: recent >= spiralThreshold || critical >= spiralThreshold,
		RecentRelapses: recent,
		CriticalHabits: critical,
	}

	switch {
	case g.SpiralDetected:
		g.Level = model.RiskCritical
		if recent >= spiralThreshold {
			g.Message = fmt.Sprintf("Spiral detected: %d relapses in the last %d days", recent, spiralWindowDays)
		} else {
			g.Message = fmt.Sprintf("Spiral detected: %d habits are critical", critical)
		}
	case critical == 1:
		g.Level = model.RiskWarning
		g.Message = "One habit needs attention"
	case recent == 1:
		g.Level = model.RiskWarning
		g.Message = "One recent relapse, stay vigilant"
	default:
		g.Level = model.RiskGood
		g.Message = "Everything is under control"
	}
	return g
}
