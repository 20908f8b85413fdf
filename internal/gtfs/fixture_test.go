package gtfs

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// sampleFeed is a small network in Seattle running on weekdays of January
// 2024, with Jan 2 removed. Jan 1 2024 is a Monday, day 0 of the dataset.
func sampleFeed() map[string]string {
	return map[string]string{
		"agency.txt": `agency_id,agency_name,agency_url,agency_timezone
A,Test Transit,http://example.com,America/Los_Angeles
`,
		"stops.txt": `stop_id,stop_code,stop_name,stop_lat,stop_lon,location_type,parent_station,wheelchair_boarding,zone_id
STA,,Central Station,47.6000,-122.3300,1,,1,
S1,101,Central North,47.6001,-122.3301,0,STA,1,z1
S2,102,Central South,47.6002,-122.3302,0,STA,0,z1
S3,103,Pine St,47.6100,-122.3300,0,,0,z2
S4,104,Pine St Annex,47.6105,-122.3300,0,,0,z2
S5,105,Hill Top,47.6200,-122.3300,0,,0,z3
`,
		"routes.txt": `route_id,agency_id,route_short_name,route_long_name,route_type
R1,A,1,Downtown,3
R2,A,2,Hill Tram,0
`,
		"calendar.txt": `service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date
WK,1,1,1,1,1,0,0,20240101,20240131
`,
		"calendar_dates.txt": `service_id,date,exception_type
WK,20240102,2
`,
		"trips.txt": `route_id,service_id,trip_id,trip_headsign,direction_id,block_id,wheelchair_accessible,bikes_allowed
R1,WK,T1,North,0,B1,1,2
R1,WK,T2,South,1,B1,1,2
R2,WK,T3,Hill,0,,0,1
R2,WK,F1,Down,1,,0,0
R1,WK,BAD,Broken,0,,0,0
`,
		"stop_times.txt": `trip_id,arrival_time,departure_time,stop_id,stop_sequence,pickup_type,drop_off_type
T1,08:00:00,08:00:00,S1,1,0,0
T1,08:10:00,08:10:00,S3,2,0,0
T2,08:15:00,08:15:00,S3,1,0,0
T2,08:25:00,08:25:00,S1,2,0,0
T3,08:20:00,08:20:00,S4,10,0,1
T3,08:30:00,08:30:00,S5,20,0,0
T3,08:40:00,08:40:00,S1,30,2,0
F1,00:00:00,00:00:00,S5,1,0,0
F1,00:05:00,00:05:00,S4,2,0,0
BAD,09:00:00,09:00:00,S1,1,0,0
BAD,08:50:00,08:50:00,S3,2,0,0
`,
		"frequencies.txt": `trip_id,start_time,end_time,headway_secs,exact_times
F1,06:00:00,07:00:00,600,0
`,
		"transfers.txt": `from_stop_id,to_stop_id,transfer_type,min_transfer_time
S3,S4,2,180
S4,S3,3,0
`,
	}
}

func zipFeed(t testing.TB, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(strings.TrimLeft(content, "\n")))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// writeFeed stores a feed archive in a temporary directory and returns its
// path.
func writeFeed(t testing.TB, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gtfs.zip")
	require.NoError(t, os.WriteFile(path, zipFeed(t, files), 0o600))
	return path
}

func seattle(t testing.TB) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	return loc
}
