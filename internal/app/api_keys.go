package app

import "net/http"

// APIKeyHeader may carry the key instead of the "key" query parameter.
const APIKeyHeader = "X-API-Key"

// RequestAPIKey returns the key of r, preferring the query parameter.
func RequestAPIKey(r *http.Request) string {
	if key := r.URL.Query().Get("key"); key != "" {
		return key
	}
	return r.Header.Get(APIKeyHeader)
}

func (app *Application) RequestHasInvalidAPIKey(r *http.Request) bool {
	return app.IsInvalidAPIKey(RequestAPIKey(r))
}

func (app *Application) IsInvalidAPIKey(key string) bool {
	if key == "" {
		return true
	}
	for _, validKey := range app.Config.ApiKeys {
		if key == validKey {
			return false
		}
	}
	return true
}
