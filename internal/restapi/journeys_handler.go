package restapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"planner.onebusaway.org/internal/cache"
	"planner.onebusaway.org/internal/gtfs"
	"planner.onebusaway.org/internal/logging"
	"planner.onebusaway.org/internal/metrics"
	"planner.onebusaway.org/internal/models"
	"planner.onebusaway.org/internal/utils"
)

// plannedJourneys is what the journey cache stores for one request.
type plannedJourneys struct {
	Entry      models.JourneysEntry   `json:"entry"`
	References models.ReferencesModel `json:"references"`
	Detail     string                 `json:"detail"`
}

func (api *RestAPI) journeysHandler(w http.ResponseWriter, r *http.Request) {
	g := api.GtfsManager.Generation()
	planned, fieldErrors, err := api.planJourneys(r.Context(), g, r.URL.Query())
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}

	entry, err := models.Reduce(planned.Entry, planned.Detail)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	references, err := models.Reduce(planned.References, planned.Detail)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendResponse(w, r, models.NewOKResponse(map[string]interface{}{
		"entry":      entry,
		"references": references,
	}))
}

// planJourneys answers one journeys query against g, going through the
// journey cache when one is configured. Input problems are returned as field
// errors; the error return is reserved for failures of the service itself.
func (api *RestAPI) planJourneys(ctx context.Context, g *gtfs.Generation, params url.Values) (*plannedJourneys, utils.FieldErrors, error) {
	logger := logging.FromContext(ctx)
	fieldErrors := utils.FieldErrors{}
	q := api.parseJourneyQuery(g.Dataset, params, fieldErrors)
	if len(fieldErrors) > 0 {
		api.Metrics.ObserveSearch(metrics.OutcomeInvalid, 0, 0, 0)
		return nil, fieldErrors, nil
	}

	var key string
	if api.Cache != nil {
		keyParams := url.Values{}
		for k, v := range params {
			keyParams[k] = v
		}
		keyParams.Set("datetime", strconv.FormatInt(q.when.Unix(), 10))
		key = cache.Key(g.Version, "journeys", keyParams)

		var cached plannedJourneys
		if api.Cache.Get(ctx, key, &cached) {
			api.Metrics.ObserveSearch(metrics.OutcomeCached, cached.Entry.Rounds, len(cached.Entry.Journeys), 0)
			return &cached, nil, nil
		}
	}

	searchCtx := ctx
	if timeout := api.Config.Planner.SearchTimeout.Std(); timeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := g.Planner.Compute(searchCtx, q.request)
	elapsed := time.Since(start)
	if err != nil {
		if plannerErrors, ok := plannerFieldErrors(err); ok {
			api.Metrics.ObserveSearch(metrics.OutcomeInvalid, 0, 0, elapsed)
			return nil, plannerErrors, nil
		}
		return nil, nil, err
	}

	outcome := metrics.OutcomeOK
	switch {
	case result.Truncated:
		outcome = metrics.OutcomeTruncated
	case len(result.Journeys) == 0:
		outcome = metrics.OutcomeEmpty
	}
	api.Metrics.ObserveSearch(outcome, result.Rounds, len(result.Journeys), elapsed)
	logging.LogOperation(logger, "journey_search",
		slog.Int("journeys", len(result.Journeys)),
		slog.Int("rounds", result.Rounds),
		slog.Bool("truncated", result.Truncated),
		slog.Uint64("generation", g.Version),
		slog.Int64("duration_ms", elapsed.Milliseconds()))

	entry, references := renderJourneys(g, q, result)
	planned := &plannedJourneys{Entry: entry, References: references, Detail: q.detail}

	// Truncated answers depend on load, so only complete ones are reused.
	if key != "" && !result.Truncated {
		if err := api.Cache.Set(ctx, key, planned); err != nil {
			logging.LogError(logger, "failed to cache journeys", err)
		}
	}
	return planned, nil, nil
}

// PlanJourneys answers a journeys query given as API parameters against the
// current generation, without the HTTP layer. The entry is not reduced to a
// detail level.
func (api *RestAPI) PlanJourneys(ctx context.Context, params url.Values) (models.JourneysEntry, models.ReferencesModel, utils.FieldErrors, error) {
	if api.GtfsManager == nil || api.GtfsManager.Generation() == nil {
		return models.JourneysEntry{}, models.ReferencesModel{}, nil, gtfs.ErrNotLoaded
	}
	planned, fieldErrors, err := api.planJourneys(ctx, api.GtfsManager.Generation(), params)
	if err != nil || len(fieldErrors) > 0 {
		return models.JourneysEntry{}, models.ReferencesModel{}, fieldErrors, err
	}
	return planned.Entry, planned.References, nil, nil
}
