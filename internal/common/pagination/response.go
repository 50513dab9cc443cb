package pagination

// Response wraps one page of items together with its Metadata. T is the
// handler's DTO type, so the JSON shape stays uniform across listings.
type Response[T any] struct {
	Data       []T      `json:"data"`
	Pagination Metadata `json:"pagination"`
}

// NewResponse builds a Response from a page of items and its metadata.
func NewResponse[T any](data []T, metadata Metadata) Response[T] {
	return Response[T]{
		Data:       data,
		Pagination: metadata,
	}
}
