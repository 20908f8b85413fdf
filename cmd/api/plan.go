package main

import (
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kr/pretty"
	"github.com/urfave/cli/v2"

	"planner.onebusaway.org/internal/models"
	"planner.onebusaway.org/internal/restapi"
)

func planCommand() *cli.Command {
	return &cli.Command{
		Name:      "plan",
		Usage:     "compute journeys once and print them",
		ArgsUsage: "FROM TO",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "datetime", Usage: "reference time, 20060102T150405 in the dataset timezone"},
			&cli.BoolFlag{Name: "arrive-by", Usage: "treat datetime as the latest arrival"},
			&cli.IntFlag{Name: "max-transfers", Value: -1, Usage: "transfer limit, negative keeps the configured one"},
			&cli.StringFlag{Name: "max-duration", Usage: "ISO 8601 or Go duration"},
			&cli.StringSliceFlag{Name: "forbid", Usage: "line, route or stop id to avoid"},
			&cli.BoolFlag{Name: "wheelchair"},
			&cli.StringFlag{Name: "realtime", Value: "base", Usage: "base, adapted or realtime"},
			&cli.BoolFlag{Name: "debug", Usage: "dump the journeys as Go values"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return cli.Exit("plan needs an origin and a destination", 2)
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			// One-shot runs never poll for updates.
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

			api := restapi.NewRestAPI(application)
			defer api.Shutdown()

			entry, refs, fieldErrors, err := api.PlanJourneys(c.Context, planParams(c))
			if err != nil {
				return err
			}
			if len(fieldErrors) > 0 {
				return cli.Exit(describeFieldErrors(fieldErrors), 2)
			}

			if c.Bool("debug") {
				_, err = pretty.Fprintf(c.App.Writer, "%# v\n", entry)
				return err
			}
			return printJourneys(c.App.Writer, entry, refs, application.GtfsManager.Dataset().Location)
		},
	}
}

func planParams(c *cli.Context) url.Values {
	params := url.Values{
		"from":     {c.Args().Get(0)},
		"to":       {c.Args().Get(1)},
		"realtime": {c.String("realtime")},
		"detail":   {models.DetailDetailed},
	}
	if c.IsSet("datetime") {
		params.Set("datetime", c.String("datetime"))
	}
	if c.Bool("arrive-by") {
		params.Set("clockwise", "false")
	}
	if n := c.Int("max-transfers"); n >= 0 {
		params.Set("max_transfers", strconv.Itoa(n))
	}
	if c.IsSet("max-duration") {
		params.Set("max_duration", c.String("max-duration"))
	}
	if c.Bool("wheelchair") {
		params.Set("wheelchair", "true")
	}
	for _, id := range c.StringSlice("forbid") {
		params.Add("forbidden_id[]", id)
	}
	return params
}

func describeFieldErrors(fieldErrors map[string][]string) string {
	keys := make([]string, 0, len(fieldErrors))
	for k := range fieldErrors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, strings.Join(fieldErrors[k], "; "))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// printJourneys writes one block per journey: a summary line, then one line
// per segment.
func printJourneys(w io.Writer, entry models.JourneysEntry, refs models.ReferencesModel, loc *time.Location) error {
	if len(entry.Journeys) == 0 {
		_, err := fmt.Fprintln(w, "no journey found")
		return err
	}
	names := map[string]string{}
	for _, stop := range refs.Stops {
		names[stop.ID] = stop.Name
	}
	clock := func(ms int64) string {
		return time.UnixMilli(ms).In(loc).Format("Mon 15:04")
	}

	for i, j := range entry.Journeys {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s -> %s  %s, %d transfer(s)\n",
			clock(j.DepartureTime), clock(j.ArrivalTime),
			time.Duration(j.Duration)*time.Second, j.Transfers)
		for _, seg := range j.Segments {
			line := fmt.Sprintf("  %s %-17s %s -> %s", clock(seg.DepartureTime), seg.Type, names[seg.FromStopID], names[seg.ToStopID])
			if seg.VehicleJourneyID != "" {
				line += fmt.Sprintf(" [%s %s]", seg.LineID, seg.Headsign)
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	if entry.Truncated {
		_, err := fmt.Fprintln(w, "search stopped early, results may be incomplete")
		return err
	}
	return nil
}
