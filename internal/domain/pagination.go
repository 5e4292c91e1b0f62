package domain

// Pagination bounds for list endpoints.
const (
	MinPageLimit = 10
	MaxPageLimit = 100
)

// PageQuery is the normalized paging request.
type PageQuery struct {
	Page    int
	Limit   int
	OrderBy SortOrder
}

// Normalize clamps the query into valid bounds.
func (q PageQuery) Normalize() PageQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < MinPageLimit {
		q.Limit = MinPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	if q.OrderBy != SortDesc {
		q.OrderBy = SortAsc
	}
	return q
}

// Offset converts the 1-based page into a row offset.
func (q PageQuery) Offset() int { return (q.Page - 1) * q.Limit }

// Page is an offset-paginated slice of results.
type Page[T any] struct {
	Items  []T   `json:"items"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Total  int64 `json:"total"`
}
