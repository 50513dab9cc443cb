package pagination_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"notify-dispatch/internal/common/pagination"
)

func TestCalculateOffset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		page, limit, want int
	}{
		{1, 25, 0},
		{2, 25, 25},
		{5, 25, 100},
		{1, 1, 0},
		{12, 50, 550},
		{2000, 25, 49975},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, pagination.CalculateOffset(tt.page, tt.limit),
			"page=%d limit=%d", tt.page, tt.limit)
	}
}

func TestCalculateTotalPages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		total int64
		limit int
		want  int
	}{
		{"empty listing still has one page", 0, 25, 1},
		{"partial page", 13, 25, 1},
		{"exact fit", 75, 25, 3},
		{"one record spills over", 76, 25, 4},
		{"one under exact fit", 74, 25, 3},
		{"single-item pages", 9, 1, 9},
		{"large backlog", 123456, 50, 2470},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pagination.CalculateTotalPages(tt.total, tt.limit))
		})
	}
}
