package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

var ErrInvalidEvent = errors.New("invalid event")

// MaxOccurrences caps the length of a series. Occurrence lists are built in
// full, so an unbounded count would exhaust memory on every query.
const MaxOccurrences = 10000

// Event is one recurring event definition. The series it stands for is
// derived from StartDate, Frequency and Occurrences, never stored.
type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Name        string    `bun:"name,notnull" json:"name"`             // required
	StartDate   time.Time `bun:"start_date,notnull" json:"start_date"` // required
	Frequency   Frequency `bun:"frequency,notnull" json:"frequency"`   // required
	Occurrences int       `bun:"occurrences,notnull" json:"occurrences"`

	// AnchorDay is the day of month a monthly series is pinned to. Zero means
	// the start date's day. It is set when a monthly series is shifted or split
	// so that a start clamped to a short month does not drag later dates.
	AnchorDay int `bun:"anchor_day,notnull,default:0" json:"anchor_day,omitempty"`
}

func (e *Event) Validate() error {
	switch {
	case strings.TrimSpace(e.Name) == "":
		return fmt.Errorf("(*Event).Validate: %w: name is blank", ErrInvalidEvent)
	case e.StartDate.IsZero():
		return fmt.Errorf("(*Event).Validate: %w: start date is blank", ErrInvalidEvent)
	case !e.Frequency.IsValid():
		return fmt.Errorf("(*Event).Validate: %w: unknown frequency %q", ErrInvalidEvent, e.Frequency)
	case e.Occurrences < 1:
		return fmt.Errorf("(*Event).Validate: %w: occurrences must be at least 1, got %d", ErrInvalidEvent, e.Occurrences)
	case e.Occurrences > MaxOccurrences:
		return fmt.Errorf("(*Event).Validate: %w: occurrences must be at most %d, got %d", ErrInvalidEvent, MaxOccurrences, e.Occurrences)
	case e.AnchorDay < 0 || e.AnchorDay > 31:
		return fmt.Errorf("(*Event).Validate: %w: anchor day %d out of range", ErrInvalidEvent, e.AnchorDay)
	case e.AnchorDay != 0 && e.Frequency != FrequencyMonthly:
		return fmt.Errorf("(*Event).Validate: %w: anchor day only applies to monthly events", ErrInvalidEvent)
	case e.AnchorDay != 0 && e.StartDate.Day() != min(e.AnchorDay, lastDayOfMonth(e.StartDate)):
		return fmt.Errorf("(*Event).Validate: %w: start date %s does not fall on anchor day %d",
			ErrInvalidEvent, e.StartDate.Format(time.DateOnly), e.AnchorDay)
	}
	return nil
}

func lastDayOfMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Normalize drops the time-of-day from StartDate. Only the calendar date
// takes part in occurrence math.
func (e *Event) Normalize() {
	e.Name = strings.TrimSpace(e.Name)
	if e.StartDate.IsZero() {
		return
	}
	y, m, d := e.StartDate.Date()
	e.StartDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if e.AnchorDay == e.StartDate.Day() {
		e.AnchorDay = 0
	}
}

// Clone returns a copy without the store-assigned id.
func (e Event) Clone() Event {
	return Event{
		Name:        e.Name,
		StartDate:   e.StartDate,
		Frequency:   e.Frequency,
		Occurrences: e.Occurrences,
		AnchorDay:   e.AnchorDay,
	}
}

func (e Event) String() string {
	return fmt.Sprintf("#%d %q %s %s x%d", e.ID, e.Name, e.StartDate.Format(time.DateOnly), e.Frequency, e.Occurrences)
}
