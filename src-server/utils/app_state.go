package utils

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"smallsched/src-server/feed"
	"smallsched/src-server/metric"
	"smallsched/src-server/service"
	"smallsched/src-server/store"

	"github.com/olebedev/when"
	"github.com/prometheus/client_golang/prometheus"
)

type AppState struct {
	Config  *Config
	Store   *store.BunStore
	Events  *service.EventService
	Catalog *feed.Catalog
	Metrics *metric.Metrics
	When    *when.Parser

	// receives OS signals; anything that wants the app to stop may send here
	AppCloseSignalChan chan os.Signal

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
}

// NewAppState opens the database and wires the services. Metrics are
// registered on reg.
func NewAppState(ctx context.Context, config *Config, reg prometheus.Registerer) (*AppState, error) {
	as := &AppState{
		Config:             config,
		When:               NewWhen(),
		Metrics:            metric.New(reg),
		AppCloseSignalChan: make(chan os.Signal, 1),
	}
	as.ctx, as.cancel = context.WithCancel(ctx)

	var err error
	as.Store, err = store.Open(as.ctx, config.GetDatabasePath(), as.Metrics.QueryHook())
	if err != nil {
		as.cancel()
		return nil, fmt.Errorf("NewAppState: %w", err)
	}
	as.Events = service.New(as.Store).WithObserver(as.Metrics)

	fetcher, err := feed.NewFetcher(config.GetFeedURL(), config.GetFeedCacheDir())
	if err != nil {
		as.Store.Close()
		as.cancel()
		return nil, fmt.Errorf("NewAppState: %w", err)
	}
	as.Catalog = feed.NewCatalog(fetcher)

	return as, nil
}

// Context is cancelled by GracefulShutdown.
func (as *AppState) Context() context.Context {
	return as.ctx
}

// GracefulShutdown stops background work and closes the database. Safe to
// call more than once.
func (as *AppState) GracefulShutdown() error {
	var err error
	as.shutdownOnce.Do(func() {
		as.cancel()
		if closeErr := as.Store.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("(*AppState).GracefulShutdown: %w", closeErr))
		}
		slog.Debug("app state shut down")
	})
	return err
}
