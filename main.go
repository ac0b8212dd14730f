package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smallsched/src-server/route"
	"smallsched/src-server/scheduler"
	"smallsched/src-server/utils"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	logLevel   = new(slog.LevelVar)
	jsonOutput bool

	as *utils.AppState

	// replaced in tests, where the root command runs more than once
	metricsRegisterer prometheus.Registerer = prometheus.DefaultRegisterer
)

func init() {
	if err := godotenv.Load(); err != nil {
		slog.Debug(err.Error())
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.RFC1123Z,
		}),
	))

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(dayCmd)
	rootCmd.AddCommand(monthCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(skipCmd)
	rootCmd.AddCommand(exploreCmd)
	rootCmd.AddCommand(exportCmd)
}

var rootCmd = &cobra.Command{
	Use:           "smallsched",
	Short:         "A small scheduler for recurring events",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config, err := utils.NewConfig()
		if err != nil {
			return err
		}
		logLevel.Set(config.GetLogLevel())

		as, err = utils.NewAppState(context.Background(), config, metricsRegisterer)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if as != nil {
			return as.GracefulShutdown()
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, reminders and feed refresh (default)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(ctx context.Context) error {
	config := as.Config

	go as.Metrics.CollectDatabasePing(as.Context(), as.Store, config.GetMetricCollectionInterval())

	notifiers := []scheduler.Notifier{scheduler.LogNotifier{}}
	if config.DiscordEnabled() {
		discordNotifier, err := scheduler.NewDiscordNotifier(config.GetDiscordAppToken(), config.GetDiscordChannelID())
		if err != nil {
			return err
		}
		notifiers = append(notifiers, discordNotifier)
	}
	sched := scheduler.New(as.Context(), config.GetLocation(), as.Metrics)
	if err := sched.AddFeedRefresh(config.GetFeedRefreshCron(), as.Catalog); err != nil {
		return err
	}
	if err := sched.AddReminders(config.GetReminderCron(), as.Events, notifiers); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	// warm the feed cache so /explore answers quickly
	go scheduler.RefreshFeed(as.Context(), as.Catalog, as.Metrics)

	muxer := http.NewServeMux()
	muxer.Handle("GET /metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              net.JoinHostPort("127.0.0.1", config.GetPort()),
		Handler:           route.Handler(muxer, as),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("cannot start HTTP server", "error", err)
			as.AppCloseSignalChan <- syscall.SIGTERM
		}
	}()

	slog.Info("app is now running, press Ctrl+C to exit", "addr", server.Addr)

	signal.Notify(as.AppCloseSignalChan, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	select {
	case <-as.AppCloseSignalChan:
	case <-ctx.Done():
	}
	slog.Info("Gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP server did not shut down cleanly", "error", err)
	}
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
