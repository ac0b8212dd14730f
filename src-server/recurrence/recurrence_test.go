package recurrence_test

import (
	"testing"
	"time"

	"smallsched/src-server/model"
	"smallsched/src-server/recurrence"

	"github.com/xyedo/rrule"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestOccurrencesFixedSteps(t *testing.T) {
	start := date(2024, 1, 1)
	for freq, delta := range map[model.Frequency]int{
		model.FrequencyDaily:    1,
		model.FrequencyWeekly:   7,
		model.FrequencyBiWeekly: 14,
	} {
		for _, n := range []int{1, 2, 5, 60} {
			dates := recurrence.Occurrences(model.Event{Name: "x", StartDate: start, Frequency: freq, Occurrences: n})
			if len(dates) != n {
				t.Fatalf("%s x%d: got %d dates", freq, n, len(dates))
			}
			if !dates[0].Equal(start) {
				t.Errorf("%s x%d: first date = %v", freq, n, dates[0])
			}
			for i := 1; i < len(dates); i++ {
				if !dates[i].After(dates[i-1]) {
					t.Errorf("%s x%d: not strictly increasing at %d", freq, n, i)
				}
				if got := dates[i].Sub(dates[i-1]); got != time.Duration(delta)*24*time.Hour {
					t.Errorf("%s x%d: delta at %d = %v", freq, n, i, got)
				}
			}
		}
	}
}

func TestOccurrencesIgnoresTimeOfDay(t *testing.T) {
	e := model.Event{Name: "x", StartDate: time.Date(2024, 5, 10, 18, 45, 0, 0, time.UTC), Frequency: model.FrequencyDaily, Occurrences: 2}
	dates := recurrence.Occurrences(e)
	if !dates[0].Equal(date(2024, 5, 10)) || !dates[1].Equal(date(2024, 5, 11)) {
		t.Errorf("got %v", dates)
	}
}

func TestOccurrencesMonthlyClamp(t *testing.T) {
	e := model.Event{Name: "rent", StartDate: date(2024, 1, 31), Frequency: model.FrequencyMonthly, Occurrences: 6}
	want := []time.Time{
		date(2024, 1, 31),
		date(2024, 2, 29),
		date(2024, 3, 31),
		date(2024, 4, 30),
		date(2024, 5, 31),
		date(2024, 6, 30),
	}
	got := recurrence.Occurrences(e)
	if len(got) != len(want) {
		t.Fatalf("got %d dates", len(got))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("occurrence %d = %v, want %v", i, got[i], want[i])
		}
		if !got[i].Equal(recurrence.AddMonthsClamped(e.StartDate, i)) {
			t.Errorf("occurrence %d is not start + %d months", i, i)
		}
	}

	// non leap year, across a year boundary
	e = model.Event{Name: "bill", StartDate: date(2022, 11, 30), Frequency: model.FrequencyMonthly, Occurrences: 4}
	got = recurrence.Occurrences(e)
	for i, w := range []time.Time{date(2022, 11, 30), date(2022, 12, 30), date(2023, 1, 30), date(2023, 2, 28)} {
		if !got[i].Equal(w) {
			t.Errorf("occurrence %d = %v, want %v", i, got[i], w)
		}
	}
}

func TestOccurrencesMonthlyAnchor(t *testing.T) {
	e := model.Event{Name: "rent", StartDate: date(2024, 2, 29), Frequency: model.FrequencyMonthly, Occurrences: 3, AnchorDay: 31}
	got := recurrence.Occurrences(e)
	for i, want := range []time.Time{date(2024, 2, 29), date(2024, 3, 31), date(2024, 4, 30)} {
		if !got[i].Equal(want) {
			t.Errorf("occurrence %d = %v, want %v", i, got[i], want)
		}
	}
	if recurrence.AnchorDay(model.Event{StartDate: date(2024, 2, 29)}) != 29 {
		t.Error("anchor day should default to the start day")
	}
}

// For everything RFC 5545 can express the same way, the series must agree
// with a real RRULE expansion.
func TestOccurrencesMatchRRule(t *testing.T) {
	start := date(2024, 1, 15)
	for freq, opt := range map[model.Frequency]rrule.ROption{
		model.FrequencyDaily:    {Freq: rrule.DAILY, Interval: 1},
		model.FrequencyWeekly:   {Freq: rrule.WEEKLY, Interval: 1},
		model.FrequencyBiWeekly: {Freq: rrule.WEEKLY, Interval: 2},
		model.FrequencyMonthly:  {Freq: rrule.MONTHLY, Interval: 1},
	} {
		opt.Count = 24
		opt.Dtstart = start
		r, err := rrule.NewRRule(opt)
		if err != nil {
			t.Fatal(err)
		}
		want := r.All()
		got := recurrence.Occurrences(model.Event{Name: "x", StartDate: start, Frequency: freq, Occurrences: 24})
		if len(got) != len(want) {
			t.Fatalf("%s: got %d dates, rrule gives %d", freq, len(got), len(want))
		}
		for i := range want {
			if !recurrence.SameDate(got[i], want[i]) {
				t.Errorf("%s: occurrence %d = %v, rrule gives %v", freq, i, got[i], want[i])
			}
		}
	}
}

func TestOccurrencesInvalid(t *testing.T) {
	if got := recurrence.Occurrences(model.Event{StartDate: date(2024, 1, 1), Frequency: model.FrequencyDaily}); len(got) != 0 {
		t.Errorf("zero occurrences should expand to nothing, got %v", got)
	}
	if got := recurrence.Occurrences(model.Event{StartDate: date(2024, 1, 1), Frequency: "hourly", Occurrences: 3}); len(got) != 0 {
		t.Errorf("unknown frequency should expand to nothing, got %v", got)
	}
	if got := recurrence.Occurrences(model.Event{StartDate: date(2024, 1, 1), Frequency: model.FrequencyDaily, Occurrences: 1 << 62}); len(got) != 0 {
		t.Errorf("oversized series should expand to nothing, got %d dates", len(got))
	}
	if recurrence.OccursOn(model.Event{StartDate: date(2024, 1, 1), Frequency: model.FrequencyDaily, Occurrences: model.MaxOccurrences + 1}, date(2024, 1, 1)) {
		t.Error("oversized series should not occur")
	}
	if got := recurrence.Occurrences(model.Event{StartDate: date(2024, 1, 1), Frequency: model.FrequencyDaily, Occurrences: model.MaxOccurrences}); len(got) != model.MaxOccurrences {
		t.Errorf("series at the cap expanded to %d dates", len(got))
	}
}

func TestOccursOnMatchesOccurrences(t *testing.T) {
	events := []model.Event{
		{Name: "a", StartDate: date(2024, 1, 1), Frequency: model.FrequencyDaily, Occurrences: 10},
		{Name: "b", StartDate: date(2024, 1, 3), Frequency: model.FrequencyWeekly, Occurrences: 5},
		{Name: "c", StartDate: date(2024, 1, 5), Frequency: model.FrequencyBiWeekly, Occurrences: 4},
		{Name: "d", StartDate: date(2024, 1, 31), Frequency: model.FrequencyMonthly, Occurrences: 3},
	}
	for _, e := range events {
		set := make(map[time.Time]struct{})
		for _, d := range recurrence.Occurrences(e) {
			set[d] = struct{}{}
		}
		for d := date(2023, 12, 1); d.Before(date(2024, 5, 1)); d = d.AddDate(0, 0, 1) {
			_, want := set[d]
			if got := recurrence.OccursOn(e, d); got != want {
				t.Errorf("%s: OccursOn(%s) = %v, want %v", e.Name, d.Format(time.DateOnly), got, want)
			}
			// time of day on the query must not matter either
			if got := recurrence.OccursOn(e, d.Add(15*time.Hour)); got != want {
				t.Errorf("%s: OccursOn(%s 15:00) = %v, want %v", e.Name, d.Format(time.DateOnly), got, want)
			}
		}
	}
}

func TestInRangeAndMonthBounds(t *testing.T) {
	first, last := recurrence.MonthBounds(2024, time.February)
	if !first.Equal(date(2024, 2, 1)) || !last.Equal(date(2024, 2, 29)) {
		t.Errorf("MonthBounds = %v, %v", first, last)
	}
	e := model.Event{Name: "x", StartDate: date(2024, 1, 25), Frequency: model.FrequencyWeekly, Occurrences: 10}
	got := recurrence.InRange(e, first, last)
	want := []time.Time{date(2024, 2, 1), date(2024, 2, 8), date(2024, 2, 15), date(2024, 2, 22), date(2024, 2, 29)}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("%d: got %v, want %v", i, got[i], want[i])
		}
	}
}
