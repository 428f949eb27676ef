package reporting

import (
	"fmt"
	"time"

	"dinidesk_backend/internal/model"
)

type Granularity string

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

const periodLayout = "2006-01-02"

func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case Daily, Weekly, Monthly:
		return g, nil
	case "":
		return Daily, nil
	}
	return "", model.Invalid("granularity must be daily, weekly or monthly, not %q", s)
}

// bucketStart maps t to the first day of its bucket. Weeks start on Monday.
func (g Granularity) bucketStart(t time.Time) time.Time {
	d := model.DateOnly(t)
	switch g {
	case Weekly:
		return d.AddDate(0, 0, -((int(d.Weekday()) + 6) % 7))
	case Monthly:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return d
}

func (g Granularity) next(t time.Time) time.Time {
	switch g {
	case Weekly:
		return t.AddDate(0, 0, 7)
	case Monthly:
		return t.AddDate(0, 1, 0)
	}
	return t.AddDate(0, 0, 1)
}

// Key is the period label of t, the first day of its bucket.
func (g Granularity) Key(t time.Time) string {
	return g.bucketStart(t).Format(periodLayout)
}

// Periods lists every bucket label from start to end, both included.
func (g Granularity) Periods(start, end time.Time) []string {
	var out []string
	last := g.bucketStart(end)
	for t := g.bucketStart(start); !t.After(last); t = g.next(t) {
		out = append(out, t.Format(periodLayout))
	}
	return out
}

// sqlBucket returns the SQL expression grouping column into the same labels
// as Key for the given dialect.
func (g Granularity) sqlBucket(dialect, column string) string {
	if dialect == "postgres" {
		unit := map[Granularity]string{Daily: "day", Weekly: "week", Monthly: "month"}[g]
		return fmt.Sprintf("to_char(date_trunc('%s', %s AT TIME ZONE 'UTC'), 'YYYY-MM-DD')", unit, column)
	}
	switch g {
	case Weekly:
		return fmt.Sprintf("date(%s, 'weekday 0', '-6 days')", column)
	case Monthly:
		return fmt.Sprintf("strftime('%%Y-%%m-01', %s)", column)
	}
	return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s)", column)
}

// span converts an inclusive day range into a half-open time range.
func span(start, end time.Time) (time.Time, time.Time, error) {
	from, to := model.DateOnly(start), model.DateOnly(end)
	if to.Before(from) {
		return time.Time{}, time.Time{}, model.Invalid("end date is before start date")
	}
	return from, to.AddDate(0, 0, 1), nil
}
