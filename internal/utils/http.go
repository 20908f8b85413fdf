package utils

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
)

// ExtractIDFromParams returns a route parameter without its ".json" suffix.
func ExtractIDFromParams(r *http.Request, paramName string) string {
	params := httprouter.ParamsFromContext(r.Context())
	rawID := params.ByName(paramName)
	return strings.TrimSuffix(rawID, ".json")
}

// FieldErrors collects validation messages per query parameter.
type FieldErrors map[string][]string

func (fe FieldErrors) Add(key, message string) {
	fe[key] = append(fe[key], message)
}

func (fe FieldErrors) invalid(key string) {
	fe.Add(key, fmt.Sprintf("Invalid field value for field %q.", key))
}

// ParseFloatParam returns 0 when key is absent and records malformed values.
func ParseFloatParam(params url.Values, key string, fieldErrors FieldErrors) float64 {
	val := params.Get(key)
	if val == "" {
		return 0
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		fieldErrors.invalid(key)
	}
	return f
}

// ParseIntParam returns def when key is absent.
func ParseIntParam(params url.Values, key string, def int, fieldErrors FieldErrors) int {
	val := params.Get(key)
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		fieldErrors.invalid(key)
		return def
	}
	return n
}

// ParseBoolParam accepts the strconv.ParseBool spellings.
func ParseBoolParam(params url.Values, key string, def bool, fieldErrors FieldErrors) bool {
	val := params.Get(key)
	if val == "" {
		return def
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		fieldErrors.invalid(key)
		return def
	}
	return b
}

// ListParam merges repeated "key" and "key[]" parameters, dropping blanks.
func ListParam(params url.Values, key string) []string {
	var out []string
	for _, name := range []string{key, key + "[]"} {
		for _, v := range params[name] {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}
