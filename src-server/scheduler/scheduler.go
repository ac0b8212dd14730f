package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"smallsched/src-server/model"

	"github.com/robfig/cron/v3"
)

type EventSource interface {
	EventsOn(ctx context.Context, date time.Time) ([]model.Event, error)
}

type FeedRefresher interface {
	Refresh(ctx context.Context) (int, error)
}

// Observer receives job results; used for metrics.
type Observer interface {
	ObserveReminder(notifier string, err error)
	SetFeedEvents(n int)
}

type nopObserver struct{}

func (nopObserver) ObserveReminder(string, error) {}
func (nopObserver) SetFeedEvents(int)             {}

// cronLogger sends cron's own messages, recovered job panics included, to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}

type Scheduler struct {
	cron     *cron.Cron
	loc      *time.Location
	observer Observer

	ctx    context.Context
	cancel context.CancelFunc
}

func New(ctx context.Context, loc *time.Location, observer Observer) *Scheduler {
	if observer == nil {
		observer = nopObserver{}
	}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger{}),
			cron.WithChain(cron.Recover(cronLogger{})),
		),
		loc:      loc,
		observer: observer,
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	return s
}

// AddFeedRefresh prefetches the feed on spec (standard 5 field cron).
func (s *Scheduler) AddFeedRefresh(spec string, feed FeedRefresher) error {
	if _, err := s.cron.AddFunc(spec, func() {
		RefreshFeed(s.ctx, feed, s.observer)
	}); err != nil {
		return fmt.Errorf("(*Scheduler).AddFeedRefresh: %w", err)
	}
	return nil
}

// AddReminders sends today's events to every notifier on spec.
func (s *Scheduler) AddReminders(spec string, events EventSource, notifiers []Notifier) error {
	if _, err := s.cron.AddFunc(spec, func() {
		SendReminders(s.ctx, Today(time.Now(), s.loc), events, notifiers, s.observer)
	}); err != nil {
		return fmt.Errorf("(*Scheduler).AddReminders: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() {
	slog.Info("scheduler started", "jobs", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	slog.Debug("scheduler stopped")
}

// Today is the calendar date of now in loc, as a UTC midnight.
func Today(now time.Time, loc *time.Location) time.Time {
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func RefreshFeed(ctx context.Context, feed FeedRefresher, observer Observer) {
	count, err := feed.Refresh(ctx)
	if err != nil {
		slog.Warn("RefreshFeed: can't refresh feed", "error", err)
		return
	}
	observer.SetFeedEvents(count)
}

// SendReminders looks up the events on day and hands them to every notifier
// at once. A failing notifier doesn't stop the others.
func SendReminders(ctx context.Context, day time.Time, events EventSource, notifiers []Notifier, observer Observer) {
	eventModels, err := events.EventsOn(ctx, day)
	if err != nil {
		slog.Error("SendReminders: can't get events", "date", day.Format(time.DateOnly), "error", err)
		return
	}
	if len(eventModels) == 0 {
		slog.Debug("SendReminders: nothing today", "date", day.Format(time.DateOnly))
		return
	}

	var wg sync.WaitGroup
	for _, n := range notifiers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := n.Notify(ctx, day, eventModels)
			if err != nil {
				slog.Error("SendReminders: notifier failed", "notifier", n.Name(), "error", err)
			}
			observer.ObserveReminder(n.Name(), err)
		}()
	}
	wg.Wait()
}
