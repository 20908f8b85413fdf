package restapi

import (
	"net/http"

	"planner.onebusaway.org/internal/models"
)

const dateLayout = "2006-01-02"

// datasetHandler describes the generation currently served.
func (api *RestAPI) datasetHandler(w http.ResponseWriter, r *http.Request) {
	g := api.GtfsManager.Generation()
	ds := g.Dataset
	stats := ds.Stats()

	entry := models.DatasetEntry{
		Version:          g.Version,
		LoadedAt:         g.LoadedAt.UnixMilli(),
		StartDate:        ds.DayZero.Format(dateLayout),
		EndDate:          ds.DayZero.AddDate(0, 0, ds.Days-1).Format(dateLayout),
		Timezone:         ds.Location.String(),
		Disruptions:      g.Disruptions,
		SkippedTrips:     g.Skipped,
		StopAreas:        stats.StopAreas,
		StopPoints:       stats.StopPoints,
		Lines:            stats.Lines,
		Routes:           stats.Routes,
		JourneyPatterns:  stats.JourneyPatterns,
		VehicleJourneys:  stats.VehicleJourneys,
		ValidityPatterns: stats.ValidityPatterns,
		Connections:      stats.Connections,
		Coverage:         []models.AgencyCoverage{},
		Agencies:         make([]models.AgencyReference, 0, len(g.Agencies)),
	}
	if !g.RealtimeAt.IsZero() {
		entry.RealtimeAt = g.RealtimeAt.UnixMilli()
	}

	lat, lon, latSpan, lonSpan := g.RegionBounds()
	for _, a := range g.Agencies {
		entry.Agencies = append(entry.Agencies, models.NewAgencyReference(a.ID, a.Name, a.URL, a.Timezone))
		entry.Coverage = append(entry.Coverage, models.NewAgencyCoverage(a.ID, lat, latSpan, lon, lonSpan))
	}

	api.sendResponse(w, r, models.NewEntryResponse(entry, models.NewEmptyReferences()))
}
