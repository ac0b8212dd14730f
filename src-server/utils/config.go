package utils

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const DefaultFeedURL = "https://raw.githubusercontent.com/YolBolsun/SmallSchedulingApp/main/defaultEvents.csv"

type Config struct {
	port     string
	logLevel slog.Level

	dataDir      string
	feedURL      string
	feedCacheDir string

	feedRefreshCron string
	reminderCron    string
	location        *time.Location

	discordAppToken  string
	discordChannelID string

	metricCollectionInterval time.Duration
}

// NewConfig reads the environment. Every invalid variable is reported in the
// returned error.
func NewConfig() (*Config, error) {
	var errs []error
	fail := func(err error) {
		errs = append(errs, err)
	}

	c := &Config{
		port: func() string {
			port := os.Getenv("PORT")
			if port == "" {
				port = "8080"
			}
			slog.Debug("env", "PORT", port)
			return port
		}(),

		logLevel: func() slog.Level {
			var level slog.Level
			logLevel := os.Getenv("LOG_LEVEL")
			if logLevel == "" {
				return slog.LevelInfo
			}
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				fail(fmt.Errorf("invalid LOG_LEVEL: %w", err))
				return slog.LevelInfo
			}
			return level
		}(),

		dataDir: func() string {
			dataDir := os.Getenv("DATA_DIR")
			if dataDir == "" {
				configDir, err := os.UserConfigDir()
				if err != nil {
					slog.Warn("DATA_DIR is not set and there is no user config dir, using ./data", "error", err)
					return "data"
				}
				dataDir = filepath.Join(configDir, "smallsched")
			}
			slog.Debug("env", "DATA_DIR", dataDir)
			return filepath.Clean(dataDir)
		}(),
		feedURL: func() string {
			feedURL := os.Getenv("FEED_URL")
			if feedURL == "" {
				feedURL = DefaultFeedURL
			}
			slog.Debug("env", "FEED_URL", feedURL)
			return feedURL
		}(),
		feedCacheDir: func() string {
			feedCacheDir := os.Getenv("FEED_CACHE_DIR")
			if feedCacheDir == "" {
				cacheDir, err := os.UserCacheDir()
				if err != nil {
					return filepath.Join(os.TempDir(), "smallsched")
				}
				feedCacheDir = filepath.Join(cacheDir, "smallsched")
			}
			slog.Debug("env", "FEED_CACHE_DIR", feedCacheDir)
			return filepath.Clean(feedCacheDir)
		}(),

		feedRefreshCron: func() string {
			spec := os.Getenv("FEED_REFRESH_CRON")
			if spec == "" {
				spec = "0 * * * *"
			}
			if _, err := cron.ParseStandard(spec); err != nil {
				fail(fmt.Errorf("invalid FEED_REFRESH_CRON %q: %w", spec, err))
			}
			slog.Debug("env", "FEED_REFRESH_CRON", spec)
			return spec
		}(),
		reminderCron: func() string {
			spec := os.Getenv("REMINDER_CRON")
			if spec == "" {
				spec = "0 8 * * *"
			}
			if _, err := cron.ParseStandard(spec); err != nil {
				fail(fmt.Errorf("invalid REMINDER_CRON %q: %w", spec, err))
			}
			slog.Debug("env", "REMINDER_CRON", spec)
			return spec
		}(),
		location: func() *time.Location {
			timezoneStr := os.Getenv("TIMEZONE")
			var loc *time.Location
			var err error
			switch timezoneStr {
			case "":
				slog.Debug("TIMEZONE is not set, using local timezone", "timezone", time.Local)
				loc = time.Local
			case "UTC":
				loc = time.UTC
			default:
				loc, err = time.LoadLocation(timezoneStr)
				if err != nil {
					fail(fmt.Errorf("invalid TIMEZONE %q: %w", timezoneStr, err))
					return time.Local
				}
			}
			slog.Debug("env", "TIMEZONE", timezoneStr)
			return loc
		}(),

		discordAppToken: func() string {
			discordAppToken := strings.TrimSpace(os.Getenv("DISCORD_APP_TOKEN"))
			if len(discordAppToken) > 3 {
				slog.Debug("env", "DISCORD_APP_TOKEN", discordAppToken[0:3]+"...")
			}
			return discordAppToken
		}(),
		discordChannelID: func() string {
			discordChannelID := strings.TrimSpace(os.Getenv("DISCORD_CHANNEL_ID"))
			slog.Debug("env", "DISCORD_CHANNEL_ID", discordChannelID)
			return discordChannelID
		}(),

		metricCollectionInterval: func() time.Duration {
			interval := os.Getenv("METRIC_COLLECTION_INTERVAL")
			if interval == "" {
				interval = "30s"
			}
			duration, err := time.ParseDuration(interval)
			if err != nil || duration <= 0 {
				fail(fmt.Errorf("invalid METRIC_COLLECTION_INTERVAL %q", interval))
				return 30 * time.Second
			}
			slog.Debug("env", "METRIC_COLLECTION_INTERVAL", duration)
			return duration
		}(),
	}

	if (c.discordAppToken == "") != (c.discordChannelID == "") {
		fail(errors.New("DISCORD_APP_TOKEN and DISCORD_CHANNEL_ID must be set together"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("NewConfig: %w", err)
	}
	return c, nil
}

// Get PORT env, default to 8080
func (c *Config) GetPort() string {
	return c.port
}

// Get LOG_LEVEL env, default to info
func (c *Config) GetLogLevel() slog.Level {
	return c.logLevel
}

// Get DATA_DIR env
func (c *Config) GetDataDir() string {
	return c.dataDir
}

// Path of the event database inside DATA_DIR
func (c *Config) GetDatabasePath() string {
	return filepath.Join(c.dataDir, "events.db")
}

// Get FEED_URL env
func (c *Config) GetFeedURL() string {
	return c.feedURL
}

// Get FEED_CACHE_DIR env
func (c *Config) GetFeedCacheDir() string {
	return c.feedCacheDir
}

// Get FEED_REFRESH_CRON env
func (c *Config) GetFeedRefreshCron() string {
	return c.feedRefreshCron
}

// Get REMINDER_CRON env
func (c *Config) GetReminderCron() string {
	return c.reminderCron
}

// Get TIMEZONE env
func (c *Config) GetLocation() *time.Location {
	return c.location
}

// Get DISCORD_APP_TOKEN env
func (c *Config) GetDiscordAppToken() string {
	return c.discordAppToken
}

// Get DISCORD_CHANNEL_ID env
func (c *Config) GetDiscordChannelID() string {
	return c.discordChannelID
}

func (c *Config) DiscordEnabled() bool {
	return c.discordAppToken != "" && c.discordChannelID != ""
}

// Get METRIC_COLLECTION_INTERVAL env
func (c *Config) GetMetricCollectionInterval() time.Duration {
	return c.metricCollectionInterval
}
