package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner.onebusaway.org/internal/calendar"
	"planner.onebusaway.org/internal/frequency"
)

func hm(h, m int32) int32 { return h*3600 + m*60 }

func everyDay(t *testing.T, days int) *calendar.ValidityPattern {
	t.Helper()
	all := make([]int, days)
	for i := range all {
		all[i] = i
	}
	vp, err := calendar.FromDays(days, all...)
	require.NoError(t, err)
	return vp
}

func stopTimes(pairs ...any) []StopTimeSpec {
	var out []StopTimeSpec
	for i := 0; i < len(pairs); i += 2 {
		at := pairs[i+1].(int32)
		out = append(out, StopTimeSpec{StopPoint: pairs[i].(string), Arrival: at, Departure: at})
	}
	return out
}

func lineNetwork(t *testing.T) *Builder {
	t.Helper()
	vp := everyDay(t, 7)
	b := NewBuilder(7)
	b.AddStopArea(StopAreaSpec{ID: "center", Name: "Center"})
	b.AddStopPoint(StopPointSpec{ID: "A", Name: "A"})
	b.AddStopPoint(StopPointSpec{ID: "B", Name: "B", StopArea: "center"})
	b.AddStopPoint(StopPointSpec{ID: "B2", Name: "B2", StopArea: "center"})
	b.AddStopPoint(StopPointSpec{ID: "C", Name: "C"})
	b.AddLine(LineSpec{ID: "L1", Name: "Line 1", Network: "metro"})
	b.AddRoute(RouteSpec{ID: "R1", Line: "L1"})
	b.AddVehicleJourney(VehicleJourneySpec{ID: "vj1", Route: "R1", Validity: vp, StopTimes: stopTimes("A", hm(8, 0), "B", hm(8, 10), "C", hm(8, 20))})
	b.AddVehicleJourney(VehicleJourneySpec{ID: "vj2", Route: "R1", Validity: vp, StopTimes: stopTimes("A", hm(23, 50), "B", hm(24, 10), "C", hm(24, 20))})
	b.AddVehicleJourney(VehicleJourneySpec{ID: "vj3", Route: "R1", Validity: vp, StopTimes: stopTimes("C", hm(8, 30), "A", hm(8, 50))})
	b.AddSymmetricConnection("B", "B2", 120)
	return b
}

func TestBuildGroupsPatterns(t *testing.T) {
	ds, err := lineNetwork(t).Build()
	require.NoError(t, err)

	assert.Len(t, ds.JourneyPatterns, 2)
	vj1, _ := ds.VehicleJourneyByID("vj1")
	vj2, _ := ds.VehicleJourneyByID("vj2")
	vj3, _ := ds.VehicleJourneyByID("vj3")
	assert.Equal(t, ds.VehicleJourneys[vj1].Pattern, ds.VehicleJourneys[vj2].Pattern)
	assert.NotEqual(t, ds.VehicleJourneys[vj1].Pattern, ds.VehicleJourneys[vj3].Pattern)
	assert.Len(t, ds.ValidityPatterns, 1, "identical calendars are shared")

	b, ok := ds.StopPointByID("B")
	require.True(t, ok)
	center, ok := ds.StopAreaByID("center")
	require.True(t, ok)
	assert.Equal(t, center, ds.StopPoints[b].StopArea)

	a, _ := ds.StopPointByID("A")
	autoArea, ok := ds.StopAreaByID("area:A")
	require.True(t, ok)
	assert.Equal(t, autoArea, ds.StopPoints[a].StopArea)
	assert.Len(t, ds.PatternsAt(a), 2)
}

func TestOvertakingJourneysGetTheirOwnPattern(t *testing.T) {
	b := lineNetwork(t)
	b.AddVehicleJourney(VehicleJourneySpec{ID: "express", Route: "R1", Validity: everyDay(t, 7), StopTimes: stopTimes("A", hm(8, 5), "B", hm(8, 8), "C", hm(8, 15))})
	b.AddVehicleJourney(VehicleJourneySpec{ID: "follower", Route: "R1", Validity: everyDay(t, 7), StopTimes: stopTimes("A", hm(9, 0), "B", hm(9, 10), "C", hm(9, 20))})
	b.AddVehicleJourney(VehicleJourneySpec{ID: "twin", Route: "R1", Validity: everyDay(t, 7), StopTimes: stopTimes("A", hm(8, 0), "B", hm(8, 10), "C", hm(8, 20))})
	offDay, err := calendar.FromDays(7)
	require.NoError(t, err)
	b.AddVehicleJourney(VehicleJourneySpec{ID: "idle", Route: "R1", Validity: offDay, StopTimes: stopTimes("A", hm(8, 2), "B", hm(8, 4), "C", hm(8, 6))})
	ds, err := b.Build()
	require.NoError(t, err)

	pattern := func(id string) JourneyPatternIdx {
		idx, ok := ds.VehicleJourneyByID(id)
		require.True(t, ok, id)
		return ds.VehicleJourneys[idx].Pattern
	}
	assert.Len(t, ds.JourneyPatterns, 3)
	assert.NotEqual(t, pattern("vj1"), pattern("express"), "express overtakes vj1 between A and B")
	assert.Equal(t, pattern("vj1"), pattern("follower"))
	assert.Equal(t, pattern("vj1"), pattern("twin"), "identical stop times never overtake")
	assert.Equal(t, pattern("vj1"), pattern("idle"), "journeys without a common day never overtake")

	r1, _ := ds.RouteByID("R1")
	assert.Len(t, ds.Routes[r1].Patterns, 3)
}

func TestDepartureIndexUsesTimeOfDay(t *testing.T) {
	ds, err := lineNetwork(t).Build()
	require.NoError(t, err)

	vj2, _ := ds.VehicleJourneyByID("vj2")
	jp := ds.JourneyPatterns[ds.VehicleJourneys[vj2].Pattern]

	deps := ds.Departures(jp.Points[1])
	require.Len(t, deps, 2)
	assert.Equal(t, TimeEntry{Key: hm(0, 10), Shift: 1, VehicleJourney: vj2}, deps[0])
	assert.Equal(t, hm(8, 10), deps[1].Key)
	assert.Equal(t, int32(0), deps[1].Shift)
}

func TestDepartureIndexAppliesAccessDurations(t *testing.T) {
	b := NewBuilder(2)
	b.AddStopPoint(StopPointSpec{ID: "A"}).AddStopPoint(StopPointSpec{ID: "B"})
	b.AddVehicleJourney(VehicleJourneySpec{
		ID:       "vj",
		Validity: everyDay(t, 2),
		StopTimes: []StopTimeSpec{
			{StopPoint: "A", Arrival: hm(8, 0), Departure: hm(8, 0), BoardingDuration: 120},
			{StopPoint: "B", Arrival: hm(8, 10), Departure: hm(8, 10), AlightingDuration: 60, NoPickup: true},
		},
	})
	ds, err := b.Build()
	require.NoError(t, err)

	jp := ds.JourneyPatterns[0]
	assert.Equal(t, hm(7, 58), ds.Departures(jp.Points[0])[0].Key)
	assert.Empty(t, ds.Departures(jp.Points[1]), "no pickup at B")
	assert.Equal(t, hm(8, 11), ds.Arrivals(jp.Points[1])[0].Key)
}

func TestConnectionsIncludeSelfLinks(t *testing.T) {
	ds, err := lineNetwork(t).SetDefaultTransfer(60).Build()
	require.NoError(t, err)

	b, _ := ds.StopPointByID("B")
	b2, _ := ds.StopPointByID("B2")
	assert.ElementsMatch(t, []Link{{Stop: b, Duration: 60}, {Stop: b2, Duration: 120}}, ds.ConnectionsFrom(b))
	assert.Contains(t, ds.ConnectionsTo(b2), Link{Stop: b, Duration: 120})
}

func TestConnectionsKeepShortestDuplicate(t *testing.T) {
	b := lineNetwork(t).AddConnection("A", "C", 600).AddConnection("A", "C", 300)
	ds, err := b.Build()
	require.NoError(t, err)

	a, _ := ds.StopPointByID("A")
	c, _ := ds.StopPointByID("C")
	assert.Contains(t, ds.ConnectionsFrom(a), Link{Stop: c, Duration: 300})
	assert.NotContains(t, ds.ConnectionsFrom(a), Link{Stop: c, Duration: 600})
}

func TestForbiddenTransferDropsSelfLink(t *testing.T) {
	ds, err := lineNetwork(t).AddConnection("C", "C", 30).ForbidTransferAt("C").ForbidTransferAt("A").Build()
	require.NoError(t, err)

	a, _ := ds.StopPointByID("A")
	c, _ := ds.StopPointByID("C")
	for _, sp := range []StopPointIdx{a, c} {
		for _, link := range ds.ConnectionsFrom(sp) {
			assert.NotEqual(t, sp, link.Stop)
		}
	}

	derived, err := NewBuilderFrom(ds).Build()
	require.NoError(t, err)
	assert.Equal(t, ds.Connections, derived.Connections, "derived datasets keep the forbidden stops")

	_, err = lineNetwork(t).ForbidTransferAt("Z").Build()
	assert.ErrorContains(t, err, `forbidden transfer references unknown stop point "Z"`)
}

func TestStayInNavigation(t *testing.T) {
	vp := everyDay(t, 3)
	b := NewBuilder(3)
	b.AddStopPoint(StopPointSpec{ID: "A"}).AddStopPoint(StopPointSpec{ID: "B"}).AddStopPoint(StopPointSpec{ID: "C"})
	b.AddVehicleJourney(VehicleJourneySpec{ID: "first", Validity: vp, StopTimes: stopTimes("A", hm(23, 0), "B", hm(23, 50))})
	b.AddVehicleJourney(VehicleJourneySpec{ID: "second", Validity: vp, StopTimes: stopTimes("B", hm(0, 5), "C", hm(0, 30))})
	b.LinkStayIn("first", "second")
	ds, err := b.Build()
	require.NoError(t, err)

	first, _ := ds.VehicleJourneyByID("first")
	second, _ := ds.VehicleJourneyByID("second")

	next, base, ok := ds.StayInSuccessor(first, calendar.NewDateTime(1, 0))
	require.True(t, ok)
	assert.Equal(t, second, next)
	assert.Equal(t, calendar.NewDateTime(2, 0), base, "continuation runs on the following day")

	prev, base, ok := ds.StayInPredecessor(second, calendar.NewDateTime(2, 0))
	require.True(t, ok)
	assert.Equal(t, first, prev)
	assert.Equal(t, calendar.NewDateTime(1, 0), base)

	assert.Equal(t, []VehicleJourneyIdx{first, second}, ds.Block(second))

	_, _, ok = ds.StayInSuccessor(second, 0)
	assert.False(t, ok)
}

func TestBuildReportsEveryViolation(t *testing.T) {
	vp := everyDay(t, 2)
	b := NewBuilder(2)
	b.AddStopPoint(StopPointSpec{ID: "A"}).AddStopPoint(StopPointSpec{ID: "B"}).AddStopPoint(StopPointSpec{ID: "A"})
	b.AddVehicleJourney(VehicleJourneySpec{ID: "empty", Validity: vp})
	b.AddVehicleJourney(VehicleJourneySpec{ID: "backwards", Validity: vp, StopTimes: stopTimes("A", hm(9, 0), "B", hm(8, 0))})
	b.AddVehicleJourney(VehicleJourneySpec{ID: "ghost", Validity: vp, StopTimes: stopTimes("Z", hm(9, 0))})
	b.AddVehicleJourney(VehicleJourneySpec{ID: "x", Validity: vp, StopTimes: stopTimes("A", hm(9, 0), "B", hm(9, 10))})
	b.AddVehicleJourney(VehicleJourneySpec{ID: "y", Validity: vp, StopTimes: stopTimes("A", hm(9, 20), "B", hm(9, 30))})
	b.AddVehicleJourney(VehicleJourneySpec{ID: "freq", Validity: vp, StopTimes: stopTimes("A", 0, "B", 600),
		Frequency: &frequency.Window{Start: hm(8, 0), End: hm(9, 0), Headway: 0}})
	b.LinkStayIn("x", "y")
	b.LinkStayIn("x", "missing")
	b.AddConnection("A", "B", -1)

	_, err := b.Build()
	require.Error(t, err)
	var invErr *InvariantError
	require.ErrorAs(t, err, &invErr)

	assert.Len(t, invErr.Violations, 8)
	assert.Contains(t, invErr.Violations, `duplicate stop point "A"`)
	assert.Contains(t, invErr.Violations, `vehicle journey "empty" has no stop times`)
	assert.Contains(t, invErr.Violations, `vehicle journey "backwards" stop times are not ordered at position 1`)
	assert.Contains(t, invErr.Violations, "stay-in link x -> y does not continue at the terminal stop")
	assert.Contains(t, err.Error(), "schedule invariants violated")
}

func TestValidateJourney(t *testing.T) {
	ds, err := lineNetwork(t).Build()
	require.NoError(t, err)

	ok := VehicleJourneySpec{ID: "new", Route: "R1", Validity: everyDay(t, 7), StopTimes: stopTimes("A", hm(10, 0), "C", hm(10, 20))}
	assert.NoError(t, ds.ValidateJourney(ok))
	assert.NoError(t, ds.ValidateJourney(VehicleJourneySpec{ID: "vj1", StopTimes: stopTimes("A", hm(10, 0))}), "existing ids are not checked")

	testCases := []struct {
		name    string
		spec    VehicleJourneySpec
		message string
	}{
		{"unordered", VehicleJourneySpec{ID: "x", StopTimes: stopTimes("A", hm(10, 0), "C", hm(9, 50))}, `vehicle journey "x" stop times are not ordered at position 1`},
		{"unknown stop", VehicleJourneySpec{ID: "x", StopTimes: stopTimes("Z", hm(10, 0))}, `vehicle journey "x" stop time 0 references unknown stop point "Z"`},
		{"unknown route", VehicleJourneySpec{ID: "x", Route: "R9", StopTimes: stopTimes("A", hm(10, 0))}, `vehicle journey "x" references unknown route "R9"`},
		{"short validity", VehicleJourneySpec{ID: "x", Validity: everyDay(t, 3), StopTimes: stopTimes("A", hm(10, 0))}, `vehicle journey "x" validity covers 3 days, dataset covers 7`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ds.ValidateJourney(tc.spec)
			var invErr *InvariantError
			require.ErrorAs(t, err, &invErr)
			assert.Equal(t, []string{tc.message}, invErr.Violations)
		})
	}
}

func TestStayInCycleIsRejected(t *testing.T) {
	vp := everyDay(t, 2)
	b := NewBuilder(2)
	b.AddStopPoint(StopPointSpec{ID: "A"}).AddStopPoint(StopPointSpec{ID: "B"})
	b.AddVehicleJourney(VehicleJourneySpec{ID: "out", Validity: vp, StopTimes: stopTimes("A", hm(8, 0), "B", hm(8, 30))})
	b.AddVehicleJourney(VehicleJourneySpec{ID: "back", Validity: vp, StopTimes: stopTimes("B", hm(9, 0), "A", hm(9, 30))})
	b.LinkStayIn("out", "back").LinkStayIn("back", "out")

	_, err := b.Build()
	var invErr *InvariantError
	require.ErrorAs(t, err, &invErr)
	assert.Contains(t, invErr.Violations, `stay-in chain through "out" is cyclic`)
}

func TestValidityLengthMustMatchDataset(t *testing.T) {
	b := NewBuilder(3)
	b.AddStopPoint(StopPointSpec{ID: "A"})
	b.AddVehicleJourney(VehicleJourneySpec{ID: "vj", Validity: calendar.NewValidityPattern(10), StopTimes: stopTimes("A", hm(8, 0))})

	_, err := b.Build()
	assert.ErrorContains(t, err, "validity covers 10 days, dataset covers 3")
}

func TestLookupAndExpansion(t *testing.T) {
	ds, err := lineNetwork(t).Build()
	require.NoError(t, err)

	points, ok := ds.StopPointsFor("center")
	require.True(t, ok)
	assert.Len(t, points, 2)

	points, ok = ds.StopPointsFor("A")
	require.True(t, ok)
	assert.Len(t, points, 1)

	_, ok = ds.StopPointsFor("nowhere")
	assert.False(t, ok)

	refs := ds.Lookup("metro")
	require.Len(t, refs, 1)
	assert.Equal(t, ObjectNetwork, refs[0].Type)
	assert.Len(t, ds.NetworkLines("metro"), 1)

	assert.Empty(t, ds.Lookup("nowhere"))
	assert.Equal(t, "L1", ds.LineOf(0).ID)
}

func TestIsActivePerLevel(t *testing.T) {
	base := everyDay(t, 3)
	cancelled := base.Clone()
	require.NoError(t, cancelled.Remove(1))

	b := NewBuilder(3)
	b.AddStopPoint(StopPointSpec{ID: "A"})
	b.AddVehicleJourney(VehicleJourneySpec{
		ID:            "vj",
		Validity:      base,
		LevelValidity: map[RTLevel]*calendar.ValidityPattern{Adapted: cancelled, RealTime: cancelled},
		StopTimes:     stopTimes("A", hm(8, 0)),
	})
	ds, err := b.Build()
	require.NoError(t, err)

	assert.True(t, ds.IsActive(0, Base, 1))
	assert.False(t, ds.IsActive(0, Adapted, 1))
	assert.False(t, ds.IsActive(0, RealTime, 1))
	assert.True(t, ds.IsActive(0, RealTime, 2))
	assert.False(t, ds.IsActive(0, Base, 5), "out of range days are inactive")
}

func TestNewBuilderFromRoundTrips(t *testing.T) {
	ds, err := lineNetwork(t).Build()
	require.NoError(t, err)

	copyDS, err := NewBuilderFrom(ds).Build()
	require.NoError(t, err)

	assert.Equal(t, ds.Stats(), copyDS.Stats())
	for i := range ds.VehicleJourneys {
		assert.Equal(t, ds.VehicleJourneySpec(VehicleJourneyIdx(i)), copyDS.VehicleJourneySpec(VehicleJourneyIdx(i)))
	}
}

func TestParseRTLevel(t *testing.T) {
	for _, level := range []RTLevel{Base, Adapted, RealTime} {
		got, err := ParseRTLevel(level.String())
		require.NoError(t, err)
		assert.Equal(t, level, got)
	}
	_, err := ParseRTLevel("future")
	assert.Error(t, err)
}
