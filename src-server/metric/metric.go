package metric

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/uptrace/bun"
)

const namespace = "smallsched"

type Metrics struct {
	queryLatency *prometheus.HistogramVec
	mutations    *prometheus.CounterVec
	notifySent   *prometheus.CounterVec
	databasePing prometheus.Gauge
	feedEvents   prometheus.Gauge
}

// New registers every collector on reg. Pass prometheus.DefaultRegisterer to
// expose them on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		queryLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "database_query_microsec",
			Help:      "The latency of database queries in microseconds",
			Buckets:   prometheus.ExponentialBuckets(50, 2, 12),
		}, []string{"operation"}),
		mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_mutations_total",
			Help:      "Event mutations by operation and outcome",
		}, []string{"op", "outcome"}),
		notifySent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_sent_total",
			Help:      "Reminder deliveries by notifier and result",
		}, []string{"notifier", "result"}),
		databasePing: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "database_empty_read_microsec",
			Help:      "The latency of an empty database read in microseconds",
		}),
		feedEvents: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_events",
			Help:      "Number of events in the last parsed feed",
		}),
	}
}

// ObserveMutation counts one mutation of the event store.
func (m *Metrics) ObserveMutation(op string, outcome string) {
	m.mutations.WithLabelValues(op, outcome).Inc()
}

// ObserveReminder counts one reminder delivery.
func (m *Metrics) ObserveReminder(notifier string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.notifySent.WithLabelValues(notifier, result).Inc()
}

func (m *Metrics) SetFeedEvents(n int) {
	m.feedEvents.Set(float64(n))
}

// QueryHook times every query bun runs.
func (m *Metrics) QueryHook() bun.QueryHook {
	return queryHook{m: m}
}

type queryHook struct {
	m *Metrics
}

var _ bun.QueryHook = queryHook{}

func (h queryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h queryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	h.m.queryLatency.
		WithLabelValues(event.Operation()).
		Observe(float64(time.Since(event.StartTime).Microseconds()))
}

// CollectDatabasePing measures an empty read every interval until ctx is done.
func (m *Metrics) CollectDatabasePing(ctx context.Context, db Pinger, interval time.Duration) {
	m.databasePing.Set(0)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Debug("database ping collection stopped")
			return
		case <-ticker.C:
			latency, err := database(ctx, db)
			if err != nil {
				slog.Error("can't get database latency", "error", err)
				continue
			}
			m.databasePing.Set(float64(latency.Microseconds()))
		}
	}
}
