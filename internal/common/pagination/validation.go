package pagination

import "fmt"

// Validate rejects params a caller could only have constructed by hand:
// ParseQueryParams never produces an invalid pair, but service-layer
// callers build Params directly.
func (p Params) Validate(config Config) error {
	if p.Page < 1 {
		return fmt.Errorf("page must be a positive integer")
	}
	if p.Limit < 1 || p.Limit > config.MaxLimit {
		return fmt.Errorf("limit must be between 1 and %d", config.MaxLimit)
	}
	return nil
}

// WithDefaults fills zero or out-of-range fields from config instead of
// erroring: missing page/limit take the defaults, an oversized limit is
// clamped to MaxLimit.
func (p Params) WithDefaults(config Config) Params {
	if p.Page <= 0 {
		p.Page = config.DefaultPage
	}
	if p.Limit <= 0 {
		p.Limit = config.DefaultLimit
	}
	if p.Limit > config.MaxLimit {
		p.Limit = config.MaxLimit
	}
	return p
}
