package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var ErrUnknownDate = errors.New("can't understand date")

var dateLayouts = []string{
	time.DateOnly,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
}

func NewWhen() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// ParseDate reads a calendar date, either as YYYY-MM-DD (and a few slash
// layouts) or in plain English relative to now ("tomorrow", "next friday").
// The result is the UTC midnight of that date as seen in now's location.
func ParseDate(w *when.Parser, s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("ParseDate: %w: empty input", ErrUnknownDate)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOf(t), nil
		}
	}

	result, err := w.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("ParseDate: %w", err)
	}
	if result == nil {
		return time.Time{}, fmt.Errorf("ParseDate: %w: %q", ErrUnknownDate, s)
	}
	return dateOf(result.Time.In(now.Location())), nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
