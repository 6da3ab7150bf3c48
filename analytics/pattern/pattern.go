// Package pattern detects recurring behavioral signals in the relapse history.
//
// Four independent detectors scan the history: temporal (day of week), cascade
// (co-occurring bad habits), trigger (relapses after a missed good habit) and
// cyclic (regular gaps between relapses). Each detector has a minimum sample size
// and stays silent below it. Candidates are ranked by severity weight times
// confidence and only the strongest few are reported.
package pattern

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hrygo/habitsense/analytics/model"
)

// Type identifies the detector that produced a pattern.
type Type string

const (
	TypeTemporal Type = "temporal"
	TypeCascade  Type = "cascade"
	TypeTrigger  Type = "trigger"
	TypeCyclic   Type = "cyclic"
)

// Severity of a detected pattern.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Weight is the ranking multiplier of the severity.
func (s Severity) Weight() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	default:
		return 1
	}
}

const (
	// MaxPatterns caps the ranked pattern list.
	MaxPatterns = 4
	// significantConfidence is the confidence a high pattern needs to count as significant.
	significantConfidence = 70
)

var patternNamespace = uuid.NewMD5(uuid.NameSpaceOID, []byte("habitsense.pattern"))

// Pattern is a detected behavioral signal.
type Pattern struct {
	ID              string   `json:"id"`
	Type            Type     `json:"type"`
	Severity        Severity `json:"severity"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Confidence      int      `json:"confidence"`
	RelatedHabitIDs []string `json:"related_habit_ids"`
}

// Score is the ranking key of the pattern.
func (p *Pattern) Score() int {
	return p.Severity.Weight() * p.Confidence
}

// WeekdayInsight describes the weekday with the most relapses.
type WeekdayInsight struct {
	Weekday     time.Weekday `json:"weekday"`
	Name        string       `json:"name"`
	Occurrences int          `json:"occurrences"`
	Share       int          `json:"share"`
}

// Result is the output of Detect.
type Result struct {
	Patterns               []Pattern       `json:"patterns"`
	HasSignificantPatterns bool            `json:"has_significant_patterns"`
	MostDangerousDay       *WeekdayInsight `json:"most_dangerous_day,omitempty"`
	AverageCycleDays       *float64        `json:"average_cycle_days,omitempty"`
	// CycleDays is the mean gap between relapse dates rounded to whole days.
	CycleDays int `json:"cycle_days,omitempty"`
}

// First returns the highest ranked pattern of type t, or nil.
func (r *Result) First(t Type) *Pattern {
	for i := range r.Patterns {
		if r.Patterns[i].Type == t {
			return &r.Patterns[i]
		}
	}
	return nil
}

// HighSeverityCount counts the reported high severity patterns.
func (r *Result) HighSeverityCount() int {
	n := 0
	for _, p := range r.Patterns {
		if p.Severity == SeverityHigh {
			n++
		}
	}
	return n
}

// Detect scans the history of the non-archived habits relative to now.
func Detect(habits []model.Habit, logs []model.LogEntry, events []model.EventEntry, now time.Time) Result {
	h := newHistory(habits, logs, events, now.Location())
	today := model.DayOf(now)

	var candidates []Pattern
	candidates = append(candidates, detectTemporal(h)...)
	candidates = append(candidates, detectCascade(h)...)
	candidates = append(candidates, detectTrigger(h, today)...)
	candidates = append(candidates, detectCyclic(h)...)

	ranked := rank(candidates)
	avg, cycle := averageCycle(h)
	res := Result{
		Patterns:         ranked,
		MostDangerousDay: mostDangerousDay(h),
		AverageCycleDays: avg,
		CycleDays:        cycle,
	}
	for _, p := range ranked {
		if p.Severity == SeverityHigh && p.Confidence >= significantConfidence {
			res.HasSignificantPatterns = true
			break
		}
	}
	return res
}

// rank orders candidates by score, keeping detector order on ties, and keeps the top MaxPatterns.
func rank(candidates []Pattern) []Pattern {
	ranked := make([]Pattern, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score() > ranked[j].Score()
	})
	if len(ranked) > MaxPatterns {
		ranked = ranked[:MaxPatterns]
	}
	return ranked
}

func patternID(key string) string {
	return uuid.NewSHA1(patternNamespace, []byte(key)).String()
}

// confidence rounds v and clamps it to [0, ceiling].
func confidence(v float64, ceiling int) int {
	c := int(math.Round(v))
	if c > ceiling {
		c = ceiling
	}
	if c < 0 {
		c = 0
	}
	return c
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
