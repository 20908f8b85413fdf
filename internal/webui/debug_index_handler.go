package webui

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/davecgh/go-spew/spew"

	"planner.onebusaway.org/internal/app"
	"planner.onebusaway.org/internal/schedule"
)

//go:embed debug_index.html
var templateFS embed.FS

var debugTemplate = template.Must(template.ParseFS(templateFS, "debug_index.html"))

// debugLimit caps the number of objects dumped for the large collections.
const debugLimit = 200

// WebUI serves a human readable dump of the loaded timetable.
type WebUI struct {
	*app.Application
}

type debugData struct {
	Title     string
	Version   uint64
	DataTypes []string
	Pre       string
}

var dataTypes = []string{"stats", "agencies", "stops", "areas", "lines", "journeys", "realtime"}

var dumper = spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true, SortKeys: true}

func writeDebugData(w http.ResponseWriter, title string, version uint64, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := debugTemplate.Execute(w, debugData{
		Title:     title,
		Version:   version,
		DataTypes: dataTypes,
		Pre:       dumper.Sdump(data),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func head[T any](items []T) []T {
	if len(items) > debugLimit {
		return items[:debugLimit]
	}
	return items
}

func (webUI *WebUI) debugIndexHandler(w http.ResponseWriter, r *http.Request) {
	if webUI.GtfsManager == nil || webUI.GtfsManager.Generation() == nil {
		http.Error(w, "dataset not loaded", http.StatusServiceUnavailable)
		return
	}
	g := webUI.GtfsManager.Generation()
	ds := g.Dataset

	var data interface{}
	var title string

	switch r.URL.Query().Get("dataType") {
	case "stats":
		data, _ = webUI.GtfsManager.Stats()
		title = "Dataset - Statistics"
	case "agencies":
		data = g.Agencies
		title = "Dataset - Agencies"
	case "stops":
		data = head(ds.StopPoints)
		title = "Dataset - Stop Points"
	case "areas":
		data = head(ds.StopAreas)
		title = "Dataset - Stop Areas"
	case "lines":
		data = head(ds.Lines)
		title = "Dataset - Lines"
	case "journeys":
		data = head(ds.VehicleJourneys)
		title = "Dataset - Vehicle Journeys"
	case "realtime":
		var realtime []schedule.VehicleJourney
		for _, vj := range ds.VehicleJourneys {
			if vj.Realtime {
				realtime = append(realtime, vj)
			}
		}
		data = head(realtime)
		title = "Realtime - Vehicle Journeys"
	default:
		data = map[string]string{
			"error": "Please use one of the following: stats, agencies, stops, areas, lines, journeys, realtime.",
		}
		title = "Choose a data type"
	}

	writeDebugData(w, title, g.Version, data)
}
