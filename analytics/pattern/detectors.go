package pattern

import (
	"fmt"
	"math"

	"github.com/hrygo/habitsense/analytics/model"
)

// Detector policy. These thresholds are product policy, not fitted statistics.
const (
	temporalMinOccurrences = 5
	temporalMinShare       = 30.0
	temporalHighShare      = 50.0
	temporalBonusSample    = 10
	temporalBonus          = 20
	temporalMaxConfidence  = 95

	cascadeMinHabits      = 2
	cascadeMinOccurrences = 8
	cascadeMinDays        = 3
	cascadeMinRate        = 50.0
	cascadeHighRate       = 75.0
	cascadeBonusCoDays    = 5
	cascadeBonus          = 15
	cascadeMaxConfidence  = 90

	triggerMinOccurrences = 5
	triggerWindowDays     = 30
	triggerMinMissed      = 5
	triggerMinRelapses    = 3
	triggerMinRate        = 40.0
	triggerHighRate       = 60.0
	triggerBonusRelapses  = 5
	triggerBonus          = 10
	triggerMaxConfidence  = 85

	cyclicMinOccurrences = 6
	cyclicMinDates       = 4
	cyclicMaxCV          = 0.3
	cyclicMinMeanGap     = 3.0
	cyclicMaxMeanGap     = 14.0
	cyclicHighMeanGap    = 7.0
	cyclicMaxConfidence  = 90
)

func detectTemporal(h *history) []Pattern {
	n := len(h.negatives)
	if n < temporalMinOccurrences {
		return nil
	}

	weekday, count := peakWeekday(h.weekdayCounts())
	share := percent(count, n)
	if share < temporalMinShare {
		return nil
	}

	severity := SeverityMedium
	if share >= temporalHighShare {
		severity = SeverityHigh
	}
	raw := share
	if n >= temporalBonusSample {
		raw += temporalBonus
	}

	related := h.badHabitsWhere(func(id string) bool {
		for d := range h.negDaysByHab[id] {
			if d.Weekday() == weekday {
				return true
			}
		}
		return false
	})

	return []Pattern{{
		ID:              patternID(fmt.Sprintf("temporal:%d", weekday)),
		Type:            TypeTemporal,
		Severity:        severity,
		Title:           fmt.Sprintf("%s is your riskiest day", weekday),
		Description:     fmt.Sprintf("%d%% of relapses (%d of %d) happen on a %s", int(math.Round(share)), count, n, weekday),
		Confidence:      confidence(raw, temporalMaxConfidence),
		RelatedHabitIDs: related,
	}}
}

func detectCascade(h *history) []Pattern {
	if len(h.bad) < cascadeMinHabits || len(h.negatives) < cascadeMinOccurrences {
		return nil
	}

	var out []Pattern
	for i := 0; i < len(h.bad); i++ {
		a := h.bad[i]
		aDays := h.negDaysByHab[a.ID]
		if len(aDays) < cascadeMinDays {
			continue
		}
		for j := i + 1; j < len(h.bad); j++ {
			b := h.bad[j]
			bDays := h.negDaysByHab[b.ID]

			coDays := 0
			for d := range aDays {
				if bDays[d] {
					coDays++
				}
			}
			rate := percent(coDays, len(aDays))
			if rate < cascadeMinRate {
				continue
			}

			severity := SeverityMedium
			if rate >= cascadeHighRate {
				severity = SeverityHigh
			}
			raw := rate
			if coDays >= cascadeBonusCoDays {
				raw += cascadeBonus
			}

			out = append(out, Pattern{
				ID:              patternID(fmt.Sprintf("cascade:%s:%s", a.ID, b.ID)),
				Type:            TypeCascade,
				Severity:        severity,
				Title:           fmt.Sprintf("%s tends to bring %s", a.Name, b.Name),
				Description:     fmt.Sprintf("On %d of the %d days with %s, %s happened too", coDays, len(aDays), a.Name, b.Name),
				Confidence:      confidence(raw, cascadeMaxConfidence),
				RelatedHabitIDs: []string{a.ID, b.ID},
			})
		}
	}
	return out
}

func detectTrigger(h *history, today model.Day) []Pattern {
	if len(h.negatives) < triggerMinOccurrences {
		return nil
	}

	var out []Pattern
	for _, g := range h.good {
		logged := h.loggedByHabit[g.ID]

		var missed []model.Day
		for i := 1; i <= triggerWindowDays; i++ {
			d := today.AddDays(-i)
			if !logged[d] {
				missed = append(missed, d)
			}
		}
		if len(missed) < triggerMinMissed {
			continue
		}

		relapses := 0
		involved := make(map[string]bool)
		for _, d := range missed {
			hit := false
			for _, day := range []model.Day{d, d.AddDays(1)} {
				for id := range h.negDays[day] {
					involved[id] = true
					hit = true
				}
			}
			if hit {
				relapses++
			}
		}
		if relapses < triggerMinRelapses {
			continue
		}

		rate := percent(relapses, len(missed))
		if rate < triggerMinRate {
			continue
		}

		severity := SeverityMedium
		if rate >= triggerHighRate {
			severity = SeverityHigh
		}
		raw := rate
		if relapses > triggerBonusRelapses {
			raw += triggerBonus
		}

		related := append([]string{g.ID}, h.badHabitsWhere(func(id string) bool { return involved[id] })...)
		out = append(out, Pattern{
			ID:              patternID("trigger:" + g.ID),
			Type:            TypeTrigger,
			Severity:        severity,
			Title:           fmt.Sprintf("Skipping %s opens the door to relapses", g.Name),
			Description:     fmt.Sprintf("%d of the %d days you skipped %s were followed by a relapse", relapses, len(missed), g.Name),
			Confidence:      confidence(raw, triggerMaxConfidence),
			RelatedHabitIDs: related,
		})
	}
	return out
}

func detectCyclic(h *history) []Pattern {
	if len(h.negatives) < cyclicMinOccurrences {
		return nil
	}
	days := h.distinctDays()
	if len(days) < cyclicMinDates {
		return nil
	}

	mean, stdDev := gapStats(days)
	if mean < cyclicMinMeanGap || mean > cyclicMaxMeanGap || stdDev >= cyclicMaxCV*mean {
		return nil
	}

	severity := SeverityMedium
	if mean <= cyclicHighMeanGap {
		severity = SeverityHigh
	}

	related := h.badHabitsWhere(func(id string) bool { return len(h.negDaysByHab[id]) > 0 })
	return []Pattern{{
		ID:              patternID("cyclic"),
		Type:            TypeCyclic,
		Severity:        severity,
		Title:           fmt.Sprintf("Relapses come back every %d days", int(math.Round(mean))),
		Description:     fmt.Sprintf("Across %d relapse days the gap averages %.1f days (deviation %.1f)", len(days), mean, stdDev),
		Confidence:      confidence(100-stdDev/mean*100, cyclicMaxConfidence),
		RelatedHabitIDs: related,
	}}
}

// gapStats returns the mean and population standard deviation of the gaps between sorted days.
func gapStats(days []model.Day) (mean, stdDev float64) {
	if len(days) < 2 {
		return 0, 0
	}
	gaps := make([]float64, 0, len(days)-1)
	sum := 0.0
	for i := 1; i < len(days); i++ {
		g := float64(days[i] - days[i-1])
		gaps = append(gaps, g)
		sum += g
	}
	mean = sum / float64(len(gaps))

	variance := 0.0
	for _, g := range gaps {
		variance += (g - mean) * (g - mean)
	}
	variance /= float64(len(gaps))
	return mean, math.Sqrt(variance)
}

func mostDangerousDay(h *history) *WeekdayInsight {
	n := len(h.negatives)
	if n < temporalMinOccurrences {
		return nil
	}
	weekday, count := peakWeekday(h.weekdayCounts())
	return &WeekdayInsight{
		Weekday:     weekday,
		Name:        weekday.String(),
		Occurrences: count,
		Share:       int(math.Round(percent(count, n))),
	}
}

// averageCycle returns the mean relapse gap rounded to tenths for display, and
// rounded to whole days from the unrounded mean.
func averageCycle(h *history) (*float64, int) {
	days := h.distinctDays()
	if len(days) < cyclicMinDates {
		return nil, 0
	}
	mean, _ := gapStats(days)
	avg := math.Round(mean*10) / 10
	return &avg, int(math.Round(mean))
}
