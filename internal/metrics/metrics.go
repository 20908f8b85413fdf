package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Search outcomes recorded by ObserveSearch.
const (
	OutcomeOK        = "ok"
	OutcomeEmpty     = "empty"
	OutcomeTruncated = "truncated"
	OutcomeInvalid   = "invalid"
	OutcomeCached    = "cached"
)

type Collector struct {
	reg *prometheus.Registry

	Searches       *prometheus.CounterVec // outcome label
	SearchDuration prometheus.Histogram
	SearchRounds   prometheus.Histogram
	Journeys       prometheus.Histogram

	Reloads        *prometheus.CounterVec // kind, result labels
	ReloadDuration *prometheus.HistogramVec

	Generation      prometheus.Gauge
	Disruptions     prometheus.Gauge
	StopPoints      prometheus.Gauge
	VehicleJourneys prometheus.Gauge

	HTTPRequests *prometheus.CounterVec // status class label
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_searches_total",
			Help: "Journey searches by outcome.",
		}, []string{"outcome"}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "planner_search_duration_seconds",
			Help:    "Time spent computing journeys.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		SearchRounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "planner_search_rounds",
			Help:    "Rounds run by the main pass of a search.",
			Buckets: prometheus.LinearBuckets(1, 1, 12),
		}),
		Journeys: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "planner_search_journeys",
			Help:    "Journeys returned per search.",
			Buckets: prometheus.LinearBuckets(0, 1, 10),
		}),
		Reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_reloads_total",
			Help: "Dataset reload attempts by kind and result.",
		}, []string{"kind", "result"}),
		ReloadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "planner_reload_duration_seconds",
			Help:    "Duration of dataset reloads.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"kind"}),
		Generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_dataset_generation",
			Help: "Version of the dataset generation being served.",
		}),
		Disruptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_dataset_disruptions",
			Help: "Disruptions applied to the served generation.",
		}),
		StopPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_dataset_stop_points",
			Help: "Stop points in the served generation.",
		}),
		VehicleJourneys: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_dataset_vehicle_journeys",
			Help: "Vehicle journeys in the served generation.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_http_requests_total",
			Help: "HTTP requests by status class.",
		}, []string{"code"}),
	}

	reg.MustRegister(
		c.Searches, c.SearchDuration, c.SearchRounds, c.Journeys,
		c.Reloads, c.ReloadDuration,
		c.Generation, c.Disruptions, c.StopPoints, c.VehicleJourneys,
		c.HTTPRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveSearch records one journey search.
func (c *Collector) ObserveSearch(outcome string, rounds, journeys int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Searches.WithLabelValues(outcome).Inc()
	if outcome == OutcomeInvalid || outcome == OutcomeCached {
		return
	}
	c.SearchDuration.Observe(elapsed.Seconds())
	c.SearchRounds.Observe(float64(rounds))
	c.Journeys.Observe(float64(journeys))
}

// ObserveReload matches the gtfs manager's OnReload hook.
func (c *Collector) ObserveReload(kind string, err error, elapsed time.Duration) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.Reloads.WithLabelValues(kind, result).Inc()
	c.ReloadDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// SetGeneration publishes the shape of the generation being served.
func (c *Collector) SetGeneration(version uint64, disruptions, stopPoints, vehicleJourneys int) {
	if c == nil {
		return
	}
	c.Generation.Set(float64(version))
	c.Disruptions.Set(float64(disruptions))
	c.StopPoints.Set(float64(stopPoints))
	c.VehicleJourneys.Set(float64(vehicleJourneys))
}

// ObserveHTTP counts a response by status class ("2xx", "4xx", ...).
func (c *Collector) ObserveHTTP(status int) {
	if c == nil {
		return
	}
	class := "5xx"
	switch {
	case status < 200:
		class = "1xx"
	case status < 300:
		class = "2xx"
	case status < 400:
		class = "3xx"
	case status < 500:
		class = "4xx"
	}
	c.HTTPRequests.WithLabelValues(class).Inc()
}

func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
