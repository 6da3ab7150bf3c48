package model

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DayLayout is the wire format of a calendar day.
const DayLayout = "2006-01-02"

const secondsPerDay = 24 * 60 * 60

// Day is a timezone-naive calendar date, stored as days since 1970-01-01.
type Day int

// DayOf returns the calendar day of t in t's own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay)
}

// ParseDay parses "YYYY-MM-DD". A longer ISO timestamp is accepted and truncated to its date part.
func ParseDay(s string) (Day, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DayLayout) {
		s = s[:len(DayLayout)]
	}
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid day %q", s)
	}
	return DayOf(t), nil
}

// Time returns midnight of the day in UTC.
func (d Day) Time() time.Time {
	return time.Unix(int64(d)*secondsPerDay, 0).UTC()
}

// In returns local midnight of the day in loc.
func (d Day) In(loc *time.Location) time.Time {
	y, m, dd := d.Time().Date()
	return time.Date(y, m, dd, 0, 0, 0, 0, loc)
}

// AddDays returns the day n days after d.
func (d Day) AddDays(n int) Day {
	return d + Day(n)
}

// Weekday returns the day of the week.
func (d Day) Weekday() time.Weekday {
	return d.Time().Weekday()
}

func (d Day) String() string {
	return d.Time().Format(DayLayout)
}

// MarshalText encodes the day as "YYYY-MM-DD".
func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a "YYYY-MM-DD" day.
func (d *Day) UnmarshalText(b []byte) error {
	parsed, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
