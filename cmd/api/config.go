package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"planner.onebusaway.org/internal/appconf"
	"planner.onebusaway.org/internal/logging"
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML configuration file"},
		&cli.StringSliceFlag{Name: "env-file", Value: cli.NewStringSlice(".env"), Usage: "dotenv files loaded before reading PLANNER_* variables"},
		&cli.StringFlag{Name: "env", Usage: "Environment (development|test|production)"},
		&cli.IntFlag{Name: "port", Usage: "API server port"},
		&cli.StringFlag{Name: "api-keys", Usage: "Comma separated API keys"},
		&cli.IntFlag{Name: "rate-limit", Usage: "Requests per second per API key, 0 disables limiting"},
		&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
		&cli.StringFlag{Name: "gtfs-url", Usage: "URL or path of a static GTFS zip file"},
		&cli.StringFlag{Name: "trip-updates-urls", Usage: "Comma separated GTFS-realtime trip update feeds"},
		&cli.StringFlag{Name: "realtime-auth-header-key", Usage: "Header name sent to the realtime feeds"},
		&cli.StringFlag{Name: "realtime-auth-header-value", Usage: "Header value sent to the realtime feeds"},
		&cli.StringFlag{Name: "redis-addr", Usage: "Redis address of the journey cache, empty disables it"},
	}
}

// loadConfig layers the configuration sources, each overriding the previous
// one: defaults, the YAML file, dotenv files and PLANNER_* variables, then
// command line flags.
func loadConfig(c *cli.Context) (appconf.Config, error) {
	cfg := appconf.Default()

	if path := c.String("config"); path != "" {
		if err := appconf.LoadFile(&cfg, path); err != nil {
			return cfg, err
		}
	}
	if err := appconf.LoadDotEnv(c.StringSlice("env-file")...); err != nil {
		return cfg, err
	}
	if err := appconf.ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	applyFlags(c, &cfg)

	if err := appconf.Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyFlags(c *cli.Context, cfg *appconf.Config) {
	if c.IsSet("env") {
		cfg.EnvName = c.String("env")
	}
	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	if c.IsSet("api-keys") {
		cfg.ApiKeys = appconf.SplitList(c.String("api-keys"))
	}
	if c.IsSet("rate-limit") {
		cfg.RateLimit = c.Int("rate-limit")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("gtfs-url") {
		cfg.Gtfs.StaticURL = c.String("gtfs-url")
	}
	if c.IsSet("trip-updates-urls") {
		cfg.Gtfs.TripUpdatesURLs = appconf.SplitList(c.String("trip-updates-urls"))
	}
	if c.IsSet("realtime-auth-header-key") {
		cfg.Gtfs.AuthHeaderKey = c.String("realtime-auth-header-key")
	}
	if c.IsSet("realtime-auth-header-value") {
		cfg.Gtfs.AuthHeaderValue = c.String("realtime-auth-header-value")
	}
	if c.IsSet("redis-addr") {
		cfg.Cache.RedisAddr = c.String("redis-addr")
	}
	cfg.Env = appconf.EnvFlagToEnvironment(cfg.EnvName)
}

func newLogger(cfg appconf.Config, w io.Writer) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return logging.NewStructuredLogger(w, level), nil
}
