package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"smallsched/src-server/model"
	"smallsched/src-server/recurrence"
	"smallsched/src-server/store"
)

var ErrInvalidMonth = errors.New("invalid month")

// Outcome tells which edit a single-occurrence delete turned into.
type Outcome string

const (
	OutcomeNoop      Outcome = "noop"      // unknown id or date not in the series
	OutcomeRemoved   Outcome = "removed"   // the only occurrence: record deleted
	OutcomeShifted   Outcome = "shifted"   // first occurrence: start moved forward
	OutcomeShortened Outcome = "shortened" // last occurrence: count reduced
	OutcomeSplit     Outcome = "split"     // middle occurrence: record replaced by two
)

type DeleteResult struct {
	Outcome Outcome `json:"outcome"`
	// Updated is the mutated record for OutcomeShifted and OutcomeShortened.
	Updated *model.Event `json:"updated,omitempty"`
	// Before and After are the records replacing the original on OutcomeSplit.
	Before *model.Event `json:"before,omitempty"`
	After  *model.Event `json:"after,omitempty"`
}

// Observer is told about every mutation; used for metrics.
type Observer interface {
	ObserveMutation(op string, outcome string)
}

type EventService struct {
	store    store.Store
	observer Observer
}

func New(s store.Store) *EventService {
	return &EventService{store: s}
}

func (es *EventService) WithObserver(o Observer) *EventService {
	es.observer = o
	return es
}

func (es *EventService) observe(op string, outcome string) {
	if es.observer != nil {
		es.observer.ObserveMutation(op, outcome)
	}
}

// Insert validates e and stores it under a fresh id, which is written back to e.
func (es *EventService) Insert(ctx context.Context, e *model.Event) error {
	e.Normalize()
	if err := e.Validate(); err != nil {
		return fmt.Errorf("(*EventService).Insert: %w", err)
	}
	if err := es.store.Insert(ctx, e); err != nil {
		return fmt.Errorf("(*EventService).Insert: %w", err)
	}
	es.observe("insert", "inserted")
	slog.Info("event added", "event", e.String())
	return nil
}

// DeleteWhole removes the record. A missing id is not an error; the bool
// reports whether anything was removed.
func (es *EventService) DeleteWhole(ctx context.Context, id int64) (bool, error) {
	removed, err := es.store.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("(*EventService).DeleteWhole: %w", err)
	}
	if !removed {
		es.observe("delete", string(OutcomeNoop))
		slog.Debug("delete of unknown event ignored", "id", id)
		return false, nil
	}
	es.observe("delete", string(OutcomeRemoved))
	slog.Info("event deleted", "id", id)
	return true, nil
}

// DeleteOccurrence removes a single date from an event's series.
func (es *EventService) DeleteOccurrence(ctx context.Context, id int64, date time.Time) (DeleteResult, error) {
	var result DeleteResult
	if err := es.store.RunInTx(ctx, func(tx store.Store) error {
		var err error
		result, err = deleteOccurrence(ctx, tx, id, date)
		return err
	}); err != nil {
		return DeleteResult{}, fmt.Errorf("(*EventService).DeleteOccurrence: %w", err)
	}

	es.observe("delete_occurrence", string(result.Outcome))
	switch result.Outcome {
	case OutcomeNoop:
		slog.Debug("occurrence delete ignored", "id", id, "date", date.Format(time.DateOnly))
	case OutcomeSplit:
		slog.Info("event split",
			"id", id,
			"date", date.Format(time.DateOnly),
			"before", result.Before.String(),
			"after", result.After.String(),
		)
	default:
		slog.Info("occurrence deleted", "id", id, "date", date.Format(time.DateOnly), "outcome", result.Outcome)
	}
	return result, nil
}

func deleteOccurrence(ctx context.Context, tx store.Store, id int64, date time.Time) (DeleteResult, error) {
	eventModel, err := tx.FindByID(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return DeleteResult{Outcome: OutcomeNoop}, nil
	case err != nil:
		return DeleteResult{}, err
	}

	dates := recurrence.Occurrences(*eventModel)
	index := recurrence.IndexOf(dates, date)
	switch {
	case index == -1:
		return DeleteResult{Outcome: OutcomeNoop}, nil

	// the sole occurrence; checked before the last-index case
	case len(dates) == 1:
		if _, err := tx.Delete(ctx, id); err != nil {
			return DeleteResult{}, err
		}
		return DeleteResult{Outcome: OutcomeRemoved}, nil

	case index == 0:
		moveStart(eventModel, dates[1])
		eventModel.Occurrences--
		if err := tx.Update(ctx, eventModel); err != nil {
			return DeleteResult{}, err
		}
		return DeleteResult{Outcome: OutcomeShifted, Updated: eventModel}, nil

	case index == len(dates)-1:
		eventModel.Occurrences--
		if err := tx.Update(ctx, eventModel); err != nil {
			return DeleteResult{}, err
		}
		return DeleteResult{Outcome: OutcomeShortened, Updated: eventModel}, nil
	}

	before := eventModel.Clone()
	before.Occurrences = index

	after := eventModel.Clone()
	moveStart(&after, dates[index+1])
	after.Occurrences = eventModel.Occurrences - index - 1

	if _, err := tx.Delete(ctx, id); err != nil {
		return DeleteResult{}, err
	}
	if err := tx.Insert(ctx, &before); err != nil {
		return DeleteResult{}, err
	}
	if err := tx.Insert(ctx, &after); err != nil {
		return DeleteResult{}, err
	}
	return DeleteResult{Outcome: OutcomeSplit, Before: &before, After: &after}, nil
}

// moveStart re-bases the series on a later occurrence. A monthly series keeps
// its day of month even if the new start was clamped to a short month.
func moveStart(e *model.Event, start time.Time) {
	anchor := recurrence.AnchorDay(*e)
	e.StartDate = start
	e.AnchorDay = 0
	if e.Frequency == model.FrequencyMonthly && anchor != start.Day() {
		e.AnchorDay = anchor
	}
}

func (es *EventService) All(ctx context.Context) ([]model.Event, error) {
	eventModels, err := es.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("(*EventService).All: %w", err)
	}
	return eventModels, nil
}

// Get returns store.ErrNotFound for an unknown id.
func (es *EventService) Get(ctx context.Context, id int64) (*model.Event, error) {
	eventModel, err := es.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("(*EventService).Get: %w", err)
	}
	return eventModel, nil
}

// EventsOn returns every record with an occurrence on date.
func (es *EventService) EventsOn(ctx context.Context, date time.Time) ([]model.Event, error) {
	eventModels, err := es.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("(*EventService).EventsOn: %w", err)
	}
	onDate := make([]model.Event, 0)
	for _, e := range eventModels {
		if recurrence.OccursOn(e, date) {
			onDate = append(onDate, e)
		}
	}
	return onDate, nil
}

// EventsForMonth maps each date of the month that has occurrences to the
// records contributing to it, in record order. Keys are UTC midnights.
func (es *EventService) EventsForMonth(ctx context.Context, year int, month time.Month) (map[time.Time][]model.Event, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("(*EventService).EventsForMonth: %w: %d", ErrInvalidMonth, month)
	}
	eventModels, err := es.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("(*EventService).EventsForMonth: %w", err)
	}

	firstDay, lastDay := recurrence.MonthBounds(year, month)
	eventsInMonth := make(map[time.Time][]model.Event)
	for _, e := range eventModels {
		for _, d := range recurrence.InRange(e, firstDay, lastDay) {
			eventsInMonth[d] = append(eventsInMonth[d], e)
		}
	}
	return eventsInMonth, nil
}
