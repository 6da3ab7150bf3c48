// Package strategy composes the strategic view of a user's habits: a health
// score, a monthly trend, ranked victories and challenges, and a 7-day risk forecast.
package strategy

import (
	"github.com/hrygo/habitsense/analytics/model"
	"github.com/hrygo/habitsense/analytics/pattern"
	"github.com/hrygo/habitsense/analytics/risk"
)

// Grade buckets the health score.
type Grade string

const (
	GradeExcellent Grade = "excellent"
	GradeGood      Grade = "good"
	GradeAverage   Grade = "average"
	GradePoor      Grade = "poor"
)

// Color is the display color associated with the grade.
func (g Grade) Color() string {
	switch g {
	case GradeExcellent:
		return "#10b981"
	case GradeGood:
		return "#3b82f6"
	case GradeAverage:
		return "#f59e0b"
	default:
		return "#ef4444"
	}
}

// Breakdown holds the subcomponents of the health score. They sum to the score.
type Breakdown struct {
	GoodVsBad      int `json:"good_vs_bad"`
	StreakQuality  int `json:"streak_quality"`
	PatternsHealth int `json:"patterns_health"`
	Progression    int `json:"progression"`
}

// Total sums the subcomponents.
func (b Breakdown) Total() int {
	return b.GoodVsBad + b.StreakQuality + b.PatternsHealth + b.Progression
}

// HealthScore is the composite 0-100 score.
type HealthScore struct {
	Score     int       `json:"score"`
	Grade     Grade     `json:"grade"`
	Color     string    `json:"color"`
	Breakdown Breakdown `json:"breakdown"`
}

// TrendLabel classifies the monthly trend.
type TrendLabel string

const (
	TrendImproving TrendLabel = "improving"
	TrendDeclining TrendLabel = "declining"
	TrendStable    TrendLabel = "stable"
)

// Baseline tells where the previous period totals come from.
type Baseline string

const (
	// BaselineEstimated derives the previous period from current totals (0.85x good, 1.15x bad).
	BaselineEstimated Baseline = "estimated"
	// BaselineMeasured uses totals counted over the previous window.
	BaselineMeasured Baseline = "measured"
)

// PeriodTotals counts positive and negative actions in a period.
type PeriodTotals struct {
	Good int `json:"good"`
	Bad  int `json:"bad"`
}

// MonthlyTrend compares the current period with the previous one.
type MonthlyTrend struct {
	Current    PeriodTotals `json:"current"`
	Previous   PeriodTotals `json:"previous"`
	GoodChange int          `json:"good_change"`
	BadChange  int          `json:"bad_change"`
	Trend      TrendLabel   `json:"trend"`
	Baseline   Baseline     `json:"baseline"`
}

// VictoryKind identifies why a habit is celebrated.
type VictoryKind string

const (
	VictoryLongestStreak VictoryKind = "longest_streak"
	VictoryMostCompleted VictoryKind = "most_completed"
	VictoryLongRun       VictoryKind = "long_run"
)

// Victory is a habit worth celebrating.
type Victory struct {
	Kind        VictoryKind `json:"kind"`
	HabitID     string      `json:"habit_id"`
	Name        string      `json:"name"`
	Icon        string      `json:"icon,omitempty"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Value       int         `json:"value"`
}

// ChallengeKind identifies the source of a challenge.
type ChallengeKind string

const (
	ChallengeCriticalHabit ChallengeKind = "critical_habit"
	ChallengePattern       ChallengeKind = "pattern"
	ChallengeSpiral        ChallengeKind = "spiral"
	ChallengeWarningHabit  ChallengeKind = "warning_habit"
)

// Challenge is something the user should work on next.
type Challenge struct {
	Kind        ChallengeKind `json:"kind"`
	HabitID     string        `json:"habit_id,omitempty"`
	PatternID   string        `json:"pattern_id,omitempty"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Suggestion  string        `json:"suggestion"`
}

// PredictionRisk is the forecast risk of a day.
type PredictionRisk string

const (
	PredictionSafe    PredictionRisk = "safe"
	PredictionCaution PredictionRisk = "caution"
	PredictionDanger  PredictionRisk = "danger"
)

// Prediction forecasts one day.
type Prediction struct {
	Date       model.Day      `json:"date"`
	Weekday    string         `json:"weekday"`
	DayIndex   int            `json:"day_index"`
	Risk       PredictionRisk `json:"risk"`
	Confidence int            `json:"confidence"`
	Reason     string         `json:"reason"`
	Suggestion string         `json:"suggestion"`
}

// HabitTotal is the aggregate record of one habit.
type HabitTotal struct {
	HabitID       string         `json:"habit_id"`
	Name          string         `json:"name"`
	Icon          string         `json:"icon,omitempty"`
	Polarity      model.Polarity `json:"polarity"`
	Total         int            `json:"total"`
	CurrentStreak int            `json:"current_streak"`
}

// Totals are the aggregate counts the composer scores.
type Totals struct {
	GoodTotal int          `json:"good_total"`
	BadTotal  int          `json:"bad_total"`
	Habits    []HabitTotal `json:"habits"`
}

// Input gathers everything Compose needs.
type Input struct {
	Totals   Totals
	Patterns pattern.Result
	Risk     risk.Result
	Today    model.Day
	// Previous, when set, replaces the estimated previous period.
	Previous *PeriodTotals
	// Current, when set, replaces the totals as the current period of the trend.
	Current *PeriodTotals
}

// Result is the output of Compose.
type Result struct {
	HealthScore HealthScore  `json:"health_score"`
	Trend       MonthlyTrend `json:"trend"`
	Victories   []Victory    `json:"victories"`
	Challenges  []Challenge  `json:"challenges"`
	Predictions []Prediction `json:"predictions"`
}
