package strategy

import (
	"fmt"
	"math"

	"github.com/hrygo/habitsense/analytics/model"
	"github.com/hrygo/habitsense/analytics/pattern"
	"github.com/hrygo/habitsense/analytics/risk"
)

const (
	maxRatioPoints       = 40
	maxStreakPoints      = 30
	maxPatternPoints     = 20
	maxProgressionPoints = 10

	// streakTarget is the average good streak that earns full streak points.
	streakTarget = 30
	// highPatternPenalty is removed from the pattern points per high severity pattern.
	highPatternPenalty = 7

	// previousGoodFactor and previousBadFactor estimate the previous period from the current one.
	previousGoodFactor = 0.85
	previousBadFactor  = 1.15
	// trendThreshold is the percentage change that moves the trend off stable.
	trendThreshold = 10

	maxVictories   = 3
	maxChallenges  = 3
	longRunStreak  = 7
	predictionDays = 7

	defaultPredictionConfidence = 70
)

// Compose builds the strategic view from the totals and the analyzer outputs.
func Compose(in Input) Result {
	return Result{
		HealthScore: computeHealthScore(in.Totals, in.Patterns),
		Trend:       computeTrend(trendTotals(in), in.Previous),
		Victories:   rankVictories(in.Totals, in.Risk),
		Challenges:  rankChallenges(in.Risk, in.Patterns),
		Predictions: predict(in.Today, in.Patterns),
	}
}

func computeHealthScore(t Totals, p pattern.Result) HealthScore {
	b := Breakdown{
		GoodVsBad:      ratioPoints(t.GoodTotal, t.BadTotal),
		StreakQuality:  clamp(round(maxStreakPoints*averageGoodStreak(t.Habits)/streakTarget), 0, maxStreakPoints),
		PatternsHealth: clamp(maxPatternPoints-highPatternPenalty*p.HighSeverityCount(), 0, maxPatternPoints),
		Progression:    progressionPoints(t.GoodTotal, t.BadTotal),
	}
	score := b.Total()
	grade := gradeOf(score)
	return HealthScore{
		Score:     score,
		Grade:     grade,
		Color:     grade.Color(),
		Breakdown: b,
	}
}

func ratioPoints(good, bad int) int {
	if good+bad <= 0 {
		return 0
	}
	return clamp(round(maxRatioPoints*float64(good)/float64(good+bad)), 0, maxRatioPoints)
}

func progressionPoints(good, bad int) int {
	switch {
	case good > bad:
		return maxProgressionPoints
	case good == bad:
		return maxProgressionPoints / 2
	default:
		return 0
	}
}

func averageGoodStreak(habits []HabitTotal) float64 {
	sum, n := 0, 0
	for _, h := range habits {
		if h.Polarity != model.PolarityGood {
			continue
		}
		sum += h.CurrentStreak
		n++
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

func gradeOf(score int) Grade {
	switch {
	case score >= 80:
		return GradeExcellent
	case score >= 60:
		return GradeGood
	case score >= 40:
		return GradeAverage
	default:
		return GradePoor
	}
}

func trendTotals(in Input) Totals {
	if in.Current == nil {
		return in.Totals
	}
	return Totals{GoodTotal: in.Current.Good, BadTotal: in.Current.Bad}
}

func computeTrend(t Totals, previous *PeriodTotals) MonthlyTrend {
	trend := MonthlyTrend{
		Current:  PeriodTotals{Good: t.GoodTotal, Bad: t.BadTotal},
		Baseline: BaselineMeasured,
	}
	if previous != nil {
		trend.Previous = *previous
	} else {
		trend.Baseline = BaselineEstimated
		trend.Previous = PeriodTotals{
			Good: round(float64(t.GoodTotal) * previousGoodFactor),
			Bad:  round(float64(t.BadTotal) * previousBadFactor),
		}
	}

	trend.GoodChange = percentChange(trend.Current.Good, trend.Previous.Good)
	trend.BadChange = percentChange(trend.Current.Bad, trend.Previous.Bad)
	switch {
	case trend.GoodChange > trendThreshold && trend.BadChange < -trendThreshold:
		trend.Trend = TrendImproving
	case trend.GoodChange < -trendThreshold || trend.BadChange > trendThreshold:
		trend.Trend = TrendDeclining
	default:
		trend.Trend = TrendStable
	}
	return trend
}

// percentChange is the rounded change from prev to cur; growth from zero counts as 100%.
func percentChange(cur, prev int) int {
	if prev == 0 {
		if cur > 0 {
			return 100
		}
		return 0
	}
	return round(float64(cur-prev) / float64(prev) * 100)
}

func rankVictories(t Totals, r risk.Result) []Victory {
	victories := make([]Victory, 0, maxVictories)
	seen := make(map[string]bool)
	add := func(v Victory) {
		if len(victories) >= maxVictories || seen[v.HabitID] {
			return
		}
		seen[v.HabitID] = true
		victories = append(victories, v)
	}

	var longest, most *HabitTotal
	for i := range t.Habits {
		h := &t.Habits[i]
		if h.Polarity != model.PolarityGood {
			continue
		}
		if h.CurrentStreak > 0 && (longest == nil || h.CurrentStreak > longest.CurrentStreak) {
			longest = h
		}
		if h.Total > 0 && (most == nil || h.Total > most.Total) {
			most = h
		}
	}

	if longest != nil {
		add(Victory{
			Kind:        VictoryLongestStreak,
			HabitID:     longest.HabitID,
			Name:        longest.Name,
			Icon:        longest.Icon,
			Title:       "Longest streak",
			Description: fmt.Sprintf("%s is on a %s streak", longest.Name, days(longest.CurrentStreak)),
			Value:       longest.CurrentStreak,
		})
	}
	if most != nil {
		add(Victory{
			Kind:        VictoryMostCompleted,
			HabitID:     most.HabitID,
			Name:        most.Name,
			Icon:        most.Icon,
			Title:       "Most completed",
			Description: fmt.Sprintf("%s was completed %d times", most.Name, most.Total),
			Value:       most.Total,
		})
	}
	for _, h := range r.Habits {
		if h.Level != model.RiskGood || h.CurrentStreak <= longRunStreak {
			continue
		}
		add(Victory{
			Kind:        VictoryLongRun,
			HabitID:     h.HabitID,
			Name:        h.Name,
			Icon:        h.Icon,
			Title:       "Long run",
			Description: fmt.Sprintf("%s has held for %s", h.Name, days(h.CurrentStreak)),
			Value:       h.CurrentStreak,
		})
	}
	return victories
}

func rankChallenges(r risk.Result, p pattern.Result) []Challenge {
	challenges := make([]Challenge, 0, maxChallenges)
	add := func(c Challenge) {
		if len(challenges) < maxChallenges {
			challenges = append(challenges, c)
		}
	}

	critical := r.Critical()
	if len(critical) > 0 {
		h := critical[0]
		add(Challenge{
			Kind:        ChallengeCriticalHabit,
			HabitID:     h.HabitID,
			Title:       fmt.Sprintf("%s needs attention", h.Name),
			Description: h.Message,
			Suggestion:  h.SuggestedAction,
		})
	}

	for _, pt := range p.Patterns {
		if pt.Severity != pattern.SeverityHigh {
			continue
		}
		add(Challenge{
			Kind:        ChallengePattern,
			PatternID:   pt.ID,
			Title:       pt.Title,
			Description: pt.Description,
			Suggestion:  patternSuggestion(pt.Type),
		})
		break
	}

	if r.Global.SpiralDetected {
		add(Challenge{
			Kind:        ChallengeSpiral,
			Title:       "Relapse spiral",
			Description: r.Global.Message,
			Suggestion:  "Slow down and focus on a single habit today",
		})
	}

	for _, h := range r.Warnings() {
		add(Challenge{
			Kind:        ChallengeWarningHabit,
			HabitID:     h.HabitID,
			Title:       fmt.Sprintf("Keep an eye on %s", h.Name),
			Description: h.Message,
			Suggestion:  h.SuggestedAction,
		})
	}
	return challenges
}

func patternSuggestion(t pattern.Type) string {
	switch t {
	case pattern.TypeTemporal:
		return "Plan a substitution activity for that day"
	case pattern.TypeCascade:
		return "Break the chain after the first relapse"
	case pattern.TypeTrigger:
		return "Protect the good habit that keeps relapses away"
	case pattern.TypeCyclic:
		return "Prepare ahead of the next expected relapse"
	default:
		return "Review the pattern"
	}
}

func predict(today model.Day, p pattern.Result) []Prediction {
	temporal := p.First(pattern.TypeTemporal)
	cyclic := p.First(pattern.TypeCyclic)
	cycle := 0
	if cyclic != nil {
		cycle = p.CycleDays
	}

	predictions := make([]Prediction, 0, predictionDays)
	for i := 0; i < predictionDays; i++ {
		day := today.AddDays(i)
		pr := Prediction{
			Date:       day,
			Weekday:    day.Weekday().String(),
			DayIndex:   i,
			Risk:       PredictionSafe,
			Confidence: defaultPredictionConfidence,
			Reason:     "No elevated risk detected",
			Suggestion: "Keep your routine",
		}

		if temporal != nil && p.MostDangerousDay != nil && day.Weekday() == p.MostDangerousDay.Weekday {
			pr.Risk = PredictionDanger
			pr.Confidence = temporal.Confidence
			pr.Reason = "This weekday is historically your highest-risk day"
			pr.Suggestion = "Plan a substitution activity"
		}

		if cycle > 0 && i%cycle == 0 {
			reason := fmt.Sprintf("A relapse is due on your %d-day cycle", cycle)
			suggestion := "Prepare a plan before the urge comes back"
			if pr.Risk == PredictionSafe {
				pr.Risk = PredictionCaution
				pr.Reason = reason
				pr.Suggestion = suggestion
			} else {
				pr.Reason += "; " + reason
				pr.Suggestion += "; " + suggestion
			}
			if cyclic.Confidence > pr.Confidence {
				pr.Confidence = cyclic.Confidence
			}
		}
		predictions = append(predictions, pr)
	}
	return predictions
}

func round(v float64) int {
	return int(math.Round(v))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func days(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}
