package main

import (
	"encoding/json"
	"io"

	"github.com/urfave/cli/v2"
)

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "load the timetable and print what it contains",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print machine readable output"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			cfg.Gtfs.ReloadInterval = 0
			cfg.Gtfs.RealtimeInterval = 0
			cfg.Cache.RedisAddr = ""

			logger, err := newLogger(cfg, c.App.ErrWriter)
			if err != nil {
				return err
			}
			application, err := buildApplication(c.Context, cfg, logger, nil)
			if err != nil {
				return err
			}
			defer closeApplication(application)

			if c.Bool("json") {
				stats, err := application.GtfsManager.Stats()
				if err != nil {
					return err
				}
				return printJSON(c.App.Writer, stats)
			}
			return application.GtfsManager.PrintStatistics(c.App.Writer)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
