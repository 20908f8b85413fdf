package main

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

var testFeed = map[string]string{
	"agency.txt": `agency_id,agency_name,agency_url,agency_timezone
A,Test Transit,http://example.com,UTC
`,
	"stops.txt": `stop_id,stop_name,stop_lat,stop_lon
S1,Central,47.6000,-122.3300
S2,Pine St,47.6100,-122.3300
`,
	"routes.txt": `route_id,agency_id,route_short_name,route_long_name,route_type
R1,A,1,Downtown,3
`,
	"calendar.txt": `service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date
ALL,1,1,1,1,1,1,1,20240101,20240107
`,
	"trips.txt": `route_id,service_id,trip_id,trip_headsign
R1,ALL,T1,North
`,
	"stop_times.txt": `trip_id,arrival_time,departure_time,stop_id,stop_sequence
T1,08:00:00,08:00:00,S1,1
T1,08:10:00,08:10:00,S2,2
`,
}

// writeTestFeed stores testFeed as a zip archive and returns its path.
func writeTestFeed(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range testFeed {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "gtfs.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

// runApp runs the command line with args and returns what the command
// printed.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &logs
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"planner", "--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	return strings.TrimSpace(out.String()), err
}
