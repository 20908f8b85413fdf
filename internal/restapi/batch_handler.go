package restapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/sourcegraph/conc/iter"

	"planner.onebusaway.org/internal/models"
	"planner.onebusaway.org/internal/utils"
)

const (
	maxBatchBodyBytes   = 1 << 20
	batchMaxConcurrency = 4
)

// batchHandler plans the same origin and destination at several reference
// datetimes. Every datetime is planned against the same generation; items
// fail independently.
func (api *RestAPI) batchHandler(w http.ResponseWriter, r *http.Request) {
	var body models.BatchRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		api.validationErrorResponse(w, r, map[string][]string{"body": {fmt.Sprintf("invalid JSON: %v", err)}})
		return
	}

	fieldErrors := utils.FieldErrors{}
	if strings.TrimSpace(body.From) == "" {
		fieldErrors.Add("from", "missing required field")
	}
	if strings.TrimSpace(body.To) == "" {
		fieldErrors.Add("to", "missing required field")
	}
	maxBatch := api.Config.Planner.MaxBatch
	switch {
	case len(body.DateTimes) == 0:
		fieldErrors.Add("datetimes", "at least one datetime is required")
	case maxBatch > 0 && len(body.DateTimes) > maxBatch:
		fieldErrors.Add("datetimes", fmt.Sprintf("at most %d datetimes per batch", maxBatch))
	}
	detail, err := models.ParseDetail(firstParam(body.Params, "detail"))
	if err != nil {
		fieldErrors.Add("detail", err.Error())
	}
	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}

	g := api.GtfsManager.Generation()
	ctx := r.Context()
	mapper := iter.Mapper[string, models.BatchItem]{MaxGoroutines: batchMaxConcurrency}
	items := mapper.Map(body.DateTimes, func(datetime *string) models.BatchItem {
		item := models.BatchItem{DateTime: *datetime}
		planned, itemErrors, err := api.planJourneys(ctx, g, batchParams(body, *datetime))
		switch {
		case err != nil:
			item.Error = "internal server error"
		case len(itemErrors) > 0:
			item.Error = describeFieldErrors(itemErrors)
		default:
			item.Result = &planned.Entry
		}
		return item
	})

	// References are shared by every item of the batch.
	refs := newReferenceBuilder(g)
	for _, item := range items {
		if item.Result == nil {
			continue
		}
		for _, j := range item.Result.Journeys {
			for _, seg := range j.Segments {
				addSegmentReferences(refs, seg)
			}
		}
	}

	list, err := models.Reduce(items, detail)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	reducedRefs, err := models.Reduce(refs.references(), detail)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendResponse(w, r, models.NewOKResponse(map[string]interface{}{
		"limitExceeded": false,
		"list":          list,
		"references":    reducedRefs,
	}))
}

// batchParams builds the journeys query of one batch item.
func batchParams(body models.BatchRequest, datetime string) url.Values {
	params := url.Values{}
	for k, v := range body.Params {
		params[k] = append([]string(nil), v...)
	}
	params.Set("from", body.From)
	params.Set("to", body.To)
	params.Set("datetime", datetime)
	if body.Clockwise != nil {
		params.Set("clockwise", strconv.FormatBool(*body.Clockwise))
	}
	return params
}

// addSegmentReferences records the entities a rendered segment names.
func addSegmentReferences(refs *referenceBuilder, seg models.Segment) {
	ds := refs.ds
	for _, id := range []string{seg.FromStopID, seg.ToStopID} {
		if sp, ok := ds.StopPointByID(id); ok {
			refs.addStopPoint(sp)
		}
	}
	for _, st := range seg.StopTimes {
		if sp, ok := ds.StopPointByID(st.StopID); ok {
			refs.addStopPoint(sp)
		}
	}
	if seg.VehicleJourneyID == "" {
		return
	}
	if vj, ok := ds.VehicleJourneyByID(seg.VehicleJourneyID); ok {
		refs.addVehicleJourney(vj)
	}
}

func firstParam(params map[string][]string, key string) string {
	if values := params[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

// describeFieldErrors flattens field errors into one deterministic message.
func describeFieldErrors(fieldErrors utils.FieldErrors) string {
	keys := make([]string, 0, len(fieldErrors))
	for k := range fieldErrors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(fieldErrors[k], "; ")))
	}
	return strings.Join(parts, ", ")
}
