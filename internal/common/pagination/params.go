package pagination

import (
	"fmt"
	"net/http"
	"strconv"
)

// Params is a parsed page request.
type Params struct {
	Page  int // 1-based
	Limit int // items per page
}

// ParseQueryParams reads the page and limit query parameters, applying
// config defaults for whichever is absent. A page below 1, a non-integer
// value, or a limit outside [1, config.MaxLimit] is an error; deliveries
// listings treat that as a validation failure, not a silent clamp.
func ParseQueryParams(r *http.Request, config Config) (Params, error) {
	params := Params{
		Page:  config.DefaultPage,
		Limit: config.DefaultLimit,
	}

	q := r.URL.Query()

	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return params, fmt.Errorf("invalid query parameter: page must be a positive integer")
		}
		params.Page = page
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > config.MaxLimit {
			return params, fmt.Errorf("invalid query parameter: limit must be between 1 and %d", config.MaxLimit)
		}
		params.Limit = limit
	}

	return params, nil
}
