package restapi

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"planner.onebusaway.org/internal/app"
)

type RestAPI struct {
	*app.Application
	rateLimiter *RateLimitMiddleware
}

// NewRestAPI creates a new RestAPI instance with initialized rate limiter.
// A configured rate limit of zero disables limiting.
func NewRestAPI(app *app.Application) *RestAPI {
	limit := app.Config.RateLimit
	if limit == 0 {
		limit = -1
	}
	return &RestAPI{
		Application: app,
		rateLimiter: NewRateLimitMiddleware(limit, time.Second),
	}
}

// Handler returns the router wrapped in the middleware chain, outermost
// first: security headers, request logging, compression, rate limiting.
// Each mount may register additional routes on the router.
func (api *RestAPI) Handler(mounts ...func(*httprouter.Router)) http.Handler {
	router := httprouter.New()
	api.SetRoutes(router)
	for _, mount := range mounts {
		mount(router)
	}

	var handler http.Handler = router
	if api.rateLimiter != nil {
		handler = api.rateLimiter.Handler(handler)
	}
	handler = CompressionMiddleware(handler)
	handler = NewRequestLoggingMiddleware(api.Logger, api.Metrics)(handler)
	return api.WithSecurityHeaders(handler)
}

// Shutdown stops the rate limiter's cleanup goroutine.
func (api *RestAPI) Shutdown() {
	if api.rateLimiter != nil {
		api.rateLimiter.Stop()
	}
}
