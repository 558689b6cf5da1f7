package reports

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseListFilter(t *testing.T) {
	cases := []struct {
		name  string
		query string
		def   int
		want  ListFilter
	}{
		{
			name:  "defaults",
			query: "",
			def:   DefaultAdminLimit,
			want:  ListFilter{SortBy: "createdAt", Desc: true, Page: 1, Limit: 20},
		},
		{
			name:  "user default limit",
			query: "page=3",
			def:   DefaultUserLimit,
			want:  ListFilter{SortBy: "createdAt", Desc: true, Page: 3, Limit: 10},
		},
		{
			name:  "filters and ascending sort",
			query: "status=Resolved&category=Parks&sortBy=title&sortOrder=asc&limit=5",
			def:   DefaultAdminLimit,
			want:  ListFilter{Status: StatusResolved, Category: CategoryParks, SortBy: "title", Page: 1, Limit: 5},
		},
		{
			name:  "limit is capped",
			query: "limit=5000&page=-2",
			def:   DefaultAdminLimit,
			want:  ListFilter{SortBy: "createdAt", Desc: true, Page: 1, Limit: MaxLimit},
		},
		{
			name:  "unknown sort field falls back",
			query: "sortBy=password_hash;drop&limit=abc",
			def:   DefaultAdminLimit,
			want:  ListFilter{SortBy: "createdAt", Desc: true, Page: 1, Limit: 20},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q, err := url.ParseQuery(tc.query)
			assert.NoError(t, err)
			assert.Equal(t, tc.want, ParseListFilter(q, tc.def))
		})
	}
}

func TestSkip(t *testing.T) {
	assert.Equal(t, 0, ListFilter{Page: 1, Limit: 20}.Skip())
	assert.Equal(t, 40, ListFilter{Page: 3, Limit: 20}.Skip())
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(1, 10, 0)
	assert.Equal(t, Pagination{CurrentPage: 1, TotalPages: 0, TotalReports: 0}, p)

	p = NewPagination(1, 10, 10)
	assert.Equal(t, 1, p.TotalPages)
	assert.False(t, p.HasNext)
	assert.False(t, p.HasPrev)

	p = NewPagination(2, 10, 21)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNext)
	assert.True(t, p.HasPrev)

	p = NewPagination(3, 10, 21)
	assert.False(t, p.HasNext)
}
