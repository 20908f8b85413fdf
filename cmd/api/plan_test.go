package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner.onebusaway.org/internal/models"
)

func TestPlanCommand(t *testing.T) {
	feed := writeTestFeed(t)

	out, err := runApp(t, "--gtfs-url", feed, "plan", "--datetime", "20240102T075500", "S1", "S2")
	require.NoError(t, err)

	lines := bytes.Split([]byte(out), []byte("\n"))
	require.GreaterOrEqual(t, len(lines), 2)
	assert.Equal(t, "Tue 08:00 -> Tue 08:10  10m0s, 0 transfer(s)", string(lines[0]))
	assert.Contains(t, out, "Central -> Pine St")
	assert.Contains(t, out, "North")
}

func TestPlanCommandDebug(t *testing.T) {
	feed := writeTestFeed(t)

	out, err := runApp(t, "--gtfs-url", feed, "plan", "--datetime", "20240102T075500", "--debug", "S1", "S2")
	require.NoError(t, err)
	assert.Contains(t, out, "models.JourneysEntry{")
	assert.Contains(t, out, `VehicleJourneyID: "T1"`)
}

func TestPlanCommandErrors(t *testing.T) {
	feed := writeTestFeed(t)

	_, err := runApp(t, "--gtfs-url", feed, "plan", "S1")
	assert.ErrorContains(t, err, "origin and a destination")

	_, err = runApp(t, "--gtfs-url", feed, "plan", "S1", "S9")
	assert.ErrorContains(t, err, "to:")

	out, err := runApp(t, "--gtfs-url", feed, "plan", "--datetime", "20240107T090000", "S1", "S2")
	require.NoError(t, err)
	assert.Equal(t, "no journey found", out)
}

func TestStatsCommand(t *testing.T) {
	feed := writeTestFeed(t)

	out, err := runApp(t, "--gtfs-url", feed, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Stop Points: 2")
	assert.Contains(t, out, "Vehicle Journeys: 1")

	out, err = runApp(t, "--gtfs-url", feed, "stats", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"stopPoints": 2`)
	assert.Contains(t, out, `"agencies": 1`)
}

func TestPrintJourneys(t *testing.T) {
	at := func(h, m int) int64 {
		return time.Date(2024, time.January, 1, h, m, 0, 0, time.UTC).UnixMilli()
	}
	entry := models.JourneysEntry{
		Truncated: true,
		Journeys: []models.Journey{{
			DepartureTime: at(8, 0),
			ArrivalTime:   at(8, 13),
			Duration:      780,
			Segments: []models.Segment{
				{Type: "public_transport", FromStopID: "S1", ToStopID: "S2", DepartureTime: at(8, 0), VehicleJourneyID: "T1", LineID: "L1", Headsign: "North"},
				{Type: "walking", FromStopID: "S2", ToStopID: "S3", DepartureTime: at(8, 10)},
			},
		}},
	}
	refs := models.ReferencesModel{Stops: []models.Stop{{ID: "S1", Name: "Central"}, {ID: "S2", Name: "Pine St"}, {ID: "S3", Name: "Annex"}}}

	var buf bytes.Buffer
	require.NoError(t, printJourneys(&buf, entry, refs, time.UTC))
	assert.Equal(t, "Mon 08:00 -> Mon 08:13  13m0s, 0 transfer(s)\n"+
		"  Mon 08:00 public_transport  Central -> Pine St [L1 North]\n"+
		"  Mon 08:10 walking           Pine St -> Annex\n"+
		"search stopped early, results may be incomplete\n", buf.String())
}

func TestDescribeFieldErrors(t *testing.T) {
	assert.Equal(t, "from: unknown\nto: missing; invalid",
		describeFieldErrors(map[string][]string{"to": {"missing", "invalid"}, "from": {"unknown"}}))
}
