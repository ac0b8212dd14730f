// Package recurrence expands an event definition into the calendar dates it
// covers.
//
// Monthly series are computed from the start date, not chained from the
// previous occurrence, and clamp to the last day of a shorter month:
// Jan 31 -> Feb 29 (leap year) -> Mar 31 -> Apr 30. The day of month comes
// from the event's anchor day when set, otherwise from the start date.
package recurrence

import (
	"time"

	"smallsched/src-server/model"
)

// Date returns t's calendar date at UTC midnight.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// AddMonthsClamped moves t by n calendar months, keeping the day of month
// unless the target month is shorter.
func AddMonthsClamped(t time.Time, n int) time.Time {
	return addMonthsOnDay(t, n, t.Day())
}

func addMonthsOnDay(t time.Time, n int, day int) time.Time {
	y, m, _ := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	return time.Date(first.Year(), first.Month(), min(day, daysIn(first.Year(), first.Month())), 0, 0, 0, 0, time.UTC)
}

// AnchorDay is the day of month a monthly series lands on.
func AnchorDay(e model.Event) int {
	if e.AnchorDay > 0 {
		return e.AnchorDay
	}
	return e.StartDate.Day()
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthBounds returns the first and last calendar day of the month.
func MonthBounds(year int, month time.Month) (time.Time, time.Time) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return first, time.Date(year, month, daysIn(year, month), 0, 0, 0, 0, time.UTC)
}

// Step returns the i-th date of the event's series, ignoring its count.
func Step(e model.Event, i int) (time.Time, bool) {
	start := Date(e.StartDate)
	switch e.Frequency {
	case model.FrequencyDaily:
		return start.AddDate(0, 0, i), true
	case model.FrequencyWeekly:
		return start.AddDate(0, 0, 7*i), true
	case model.FrequencyBiWeekly:
		return start.AddDate(0, 0, 14*i), true
	case model.FrequencyMonthly:
		return addMonthsOnDay(start, i, AnchorDay(e)), true
	}
	return time.Time{}, false
}

// Occurrences lists every date of the event's series in order. An event that
// would not pass validation yields an empty list.
func Occurrences(e model.Event) []time.Time {
	if e.Occurrences < 1 || e.Occurrences > model.MaxOccurrences || !e.Frequency.IsValid() {
		return []time.Time{}
	}
	dates := make([]time.Time, 0, e.Occurrences)
	for i := range e.Occurrences {
		date, _ := Step(e, i)
		dates = append(dates, date)
	}
	return dates
}

// IndexOf returns the position of date in dates, or -1.
func IndexOf(dates []time.Time, date time.Time) int {
	for i, d := range dates {
		if SameDate(d, date) {
			return i
		}
	}
	return -1
}

func OccursOn(e model.Event, date time.Time) bool {
	return IndexOf(Occurrences(e), date) != -1
}

// InRange returns the occurrences falling within [from, to], both inclusive.
func InRange(e model.Event, from, to time.Time) []time.Time {
	from, to = Date(from), Date(to)
	dates := make([]time.Time, 0)
	for _, d := range Occurrences(e) {
		if d.Before(from) {
			continue
		}
		if d.After(to) {
			break
		}
		dates = append(dates, d)
	}
	return dates
}
