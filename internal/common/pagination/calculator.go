package pagination

// CalculateOffset converts a 1-based page into the row offset handed to
// the repository: (page-1)*limit.
func CalculateOffset(page, limit int) int {
	return (page - 1) * limit
}

// CalculateTotalPages returns ceil(total/limit), with a floor of one page
// so an empty listing still renders page 1 of 1.
func CalculateTotalPages(total int64, limit int) int {
	if total == 0 {
		return 1
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
