package reports

import (
	"net/url"
	"strconv"
)

const (
	DefaultUserLimit  = 10
	DefaultAdminLimit = 20
	MaxLimit          = 100
)

type sortField struct {
	column string // postgres
	field  string // mongo
}

var sortFields = map[string]sortField{
	"createdAt":       {"created_at", "createdAt"},
	"updatedAt":       {"updated_at", "updatedAt"},
	"statusUpdatedAt": {"status_updated_at", "statusUpdatedAt"},
	"title":           {"title", "title"},
	"category":        {"category", "category"},
	"status":          {"status", "status"},
}

type ListFilter struct {
	UserID   string
	Status   Status
	Category Category
	SortBy   string
	Desc     bool
	Page     int
	Limit    int
}

// ParseListFilter reads page, limit, status, category, sortBy and sortOrder from a query string.
func ParseListFilter(q url.Values, defaultLimit int) ListFilter {
	f := ListFilter{
		Status:   Status(q.Get("status")),
		Category: Category(q.Get("category")),
		SortBy:   q.Get("sortBy"),
		Desc:     q.Get("sortOrder") != "asc",
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	if f.Limit < 1 {
		f.Limit = defaultLimit
	}
	return f.normalized()
}

func (f ListFilter) normalized() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultAdminLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if _, ok := sortFields[f.SortBy]; !ok {
		f.SortBy = "createdAt"
	}
	return f
}

func (f ListFilter) Skip() int {
	return (f.Page - 1) * f.Limit
}

type Pagination struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int   `json:"totalPages"`
	TotalReports int64 `json:"totalReports"`
	HasNext      bool  `json:"hasNext"`
	HasPrev      bool  `json:"hasPrev"`
}

func NewPagination(page, limit int, total int64) Pagination {
	if limit < 1 {
		limit = 1
	}
	pages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{
		CurrentPage:  page,
		TotalPages:   pages,
		TotalReports: total,
		HasNext:      page < pages,
		HasPrev:      page > 1,
	}
}
