package pagination

// Metadata describes the page a listing response covers.
type Metadata struct {
	Total      int64 `json:"total"`       // records matching the filter, across all pages
	Page       int   `json:"page"`        // 1-based page served
	Limit      int   `json:"limit"`       // page size used
	TotalPages int   `json:"total_pages"` // ceil(Total/Limit), at least 1
}
