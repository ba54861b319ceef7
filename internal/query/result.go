package query

import "time"

// Meta describes how a result set was produced. TotalCount is the
// number of records matching the filter before pagination;
// FilteredCount is the number actually returned. CacheHit is reserved
// for providers that add a cache layer and defaults to false.
type Meta struct {
	TotalCount    int           `json:"total_count"`
	FilteredCount int           `json:"filtered_count"`
	HasMore       bool          `json:"has_more"`
	ExecutionTime time.Duration `json:"execution_time"`
	CacheHit      bool          `json:"cache_hit"`
}

// Result wraps a result set with its metadata.
type Result[T any] struct {
	Data []T  `json:"data"`
	Meta Meta `json:"meta"`
}

// NewMeta computes result metadata. HasMore is true iff a limit was
// supplied and the unpaginated result length exceeds offset+limit.
func NewMeta(total, returned int, page Page, started time.Time) Meta {
	return Meta{
		TotalCount:    total,
		FilteredCount: returned,
		HasMore:       page.Limit > 0 && total > page.Offset+page.Limit,
		ExecutionTime: time.Since(started),
	}
}
