package risk

import (
	"fmt"

	"github.com/hrygo/habitsense/analytics/model"
)

// latest returns the record with the most recent timestamp. Records are non-empty.
func latest(records []model.Record) model.Record {
	last := records[0]
	for _, r := range records[1:] {
		if r.At.After(last.At) || (r.At.Equal(last.At) && r.Day > last.Day) {
			last = r
		}
	}
	return last
}

// countOn sums record amounts on day. Binary habits count at most once per day.
func countOn(records []model.Record, day model.Day, counter bool) int {
	total := 0
	for _, r := range records {
		if r.Day == day {
			total += r.Amount
		}
	}
	if !counter && total > 1 {
		return 1
	}
	return total
}

func activeDays(records []model.Record) map[model.Day]struct{} {
	days := make(map[model.Day]struct{}, len(records))
	for _, r := range records {
		days[r.Day] = struct{}{}
	}
	return days
}

// currentStreak counts consecutive active days ending today, or ending yesterday
// when today has no activity yet.
func currentStreak(days map[model.Day]struct{}, today model.Day) int {
	cursor := today
	if _, ok := days[today]; !ok {
		cursor = today.AddDays(-1)
	}

	streak := 0
	for i := 0; i < maxStreakScan; i++ {
		if _, ok := days[cursor]; !ok {
			break
		}
		streak++
		cursor = cursor.AddDays(-1)
	}
	return streak
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
