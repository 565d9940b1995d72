package client

import (
	"net/url"
	"strconv"
)

// Sort modes accepted by the listing endpoint.
const (
	SortRelevance = "relevance"
	SortPriceAsc  = "price-asc"
	SortPriceDesc = "price-desc"
	SortNewest    = "newest"
	SortOldest    = "oldest"
)

// AdQuery is a committed listing query. Zero values are omitted from the
// encoded parameters.
type AdQuery struct {
	Category string
	Search   string
	PriceMin *float64
	PriceMax *float64
	Sort     string
	Page     int
	Limit    int
}

// Values encodes the query as URL parameters. Pure: the same query always
// yields the same encoding.
func (q AdQuery) Values() url.Values {
	values := url.Values{}
	if q.Category != "" {
		values.Set("category", q.Category)
	}
	if q.Search != "" {
		values.Set("search", q.Search)
	}
	if q.PriceMin != nil {
		values.Set("price_min", strconv.FormatFloat(*q.PriceMin, 'f', -1, 64))
	}
	if q.PriceMax != nil {
		values.Set("price_max", strconv.FormatFloat(*q.PriceMax, 'f', -1, 64))
	}
	if q.Sort != "" {
		values.Set("sort", q.Sort)
	}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	return values
}

// ListFilters holds draft filter edits that have not been committed yet.
// Editing a draft never triggers a fetch; Apply produces the committed query
// the caller then passes to Ads. The draft/committed split keeps rapid filter
// edits from firing a request per keystroke.
type ListFilters struct {
	draft     AdQuery
	committed AdQuery
}

// NewListFilters starts with the provided query both as draft and committed.
func NewListFilters(initial AdQuery) *ListFilters {
	return &ListFilters{draft: initial, committed: initial}
}

// Draft returns the current uncommitted edits.
func (f *ListFilters) Draft() AdQuery {
	return f.draft
}

// Edit mutates the draft without affecting the committed query.
func (f *ListFilters) Edit(edit func(*AdQuery)) {
	edit(&f.draft)
}

// Apply commits the draft, resets paging to the first page, and returns the
// query to fetch with.
func (f *ListFilters) Apply() AdQuery {
	f.draft.Page = 1
	f.committed = f.draft
	return f.committed
}

// Committed returns the last applied query.
func (f *ListFilters) Committed() AdQuery {
	return f.committed
}

// Reset discards draft edits, restoring the committed state.
func (f *ListFilters) Reset() {
	f.draft = f.committed
}
