// Package ical renders stored events as an iCalendar feed so other calendar
// apps can subscribe to them.
package ical

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"smallsched/src-server/model"
	"smallsched/src-server/recurrence"

	ics "github.com/arran4/golang-ical"
	"github.com/xyedo/rrule"
)

const (
	prodID    = "-//smallsched//smallsched//EN"
	uidDomain = "smallsched"

	// RRULE BYMONTHDAY skips months that are too short, so only days every
	// month has can be written as a monthly rule.
	maxRuleMonthDay = 28
)

func UID(e model.Event) string {
	return fmt.Sprintf("%d@%s", e.ID, uidDomain)
}

// RRule returns the recurrence rule for e, or false when the series can't be
// expressed as one and has to be listed as RDATEs.
func RRule(e model.Event) (string, bool) {
	opt := rrule.ROption{
		Interval: 1,
		Count:    e.Occurrences,
	}
	switch e.Frequency {
	case model.FrequencyDaily:
		opt.Freq = rrule.DAILY
	case model.FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
	case model.FrequencyBiWeekly:
		opt.Freq = rrule.WEEKLY
		opt.Interval = 2
	case model.FrequencyMonthly:
		if recurrence.AnchorDay(e) > maxRuleMonthDay {
			return "", false
		}
		opt.Freq = rrule.MONTHLY
	default:
		return "", false
	}
	r, err := rrule.NewRRule(opt)
	if err != nil {
		slog.Warn("can't build rrule", "event", e.String(), "error", err)
		return "", false
	}
	// keep the rule part only; DTSTART is written on the VEVENT
	rule := r.String()
	if i := strings.LastIndex(rule, "RRULE:"); i >= 0 {
		rule = rule[i+len("RRULE:"):]
	}
	return rule, true
}

// Export writes one all-day VEVENT per record.
func Export(events []model.Event, now time.Time) string {
	cal := ics.NewCalendar()
	cal.SetProductId(prodID)
	cal.SetMethod(ics.MethodPublish)
	cal.SetName("smallsched")

	for _, e := range events {
		dates := recurrence.Occurrences(e)
		if len(dates) == 0 {
			slog.Warn("skipping invalid event in export", "event", e.String())
			continue
		}

		vevent := cal.AddEvent(UID(e))
		vevent.SetDtStampTime(now.UTC())
		vevent.SetSummary(e.Name)
		vevent.SetAllDayStartAt(dates[0])
		vevent.SetAllDayEndAt(dates[0].AddDate(0, 0, 1))

		if len(dates) == 1 {
			continue
		}
		if rule, ok := RRule(e); ok {
			vevent.AddRrule(rule)
			continue
		}
		for _, d := range dates[1:] {
			vevent.AddProperty(ics.ComponentPropertyRdate, d.Format("20060102"), ics.WithValue(string(ics.ValueDataTypeDate)))
		}
	}
	return cal.Serialize()
}
