package client

import (
	"testing"
)

func TestAdQueryValuesOmitsZeroFields(t *testing.T) {
	if got := (AdQuery{}).Values().Encode(); got != "" {
		t.Fatalf("expected empty encoding for zero query, got %q", got)
	}

	min, max := 100.0, 199.5
	q := AdQuery{
		Category: "rifles",
		Search:   "tokyo marui",
		PriceMin: &min,
		PriceMax: &max,
		Sort:     SortPriceAsc,
		Page:     2,
		Limit:    20,
	}

	values := q.Values()
	expect := map[string]string{
		"category":  "rifles",
		"search":    "tokyo marui",
		"price_min": "100",
		"price_max": "199.5",
		"sort":      "price-asc",
		"page":      "2",
		"limit":     "20",
	}
	for key, want := range expect {
		if got := values.Get(key); got != want {
			t.Fatalf("expected %s=%q, got %q", key, want, got)
		}
	}

	// Encoding is pure.
	if q.Values().Encode() != values.Encode() {
		t.Fatal("expected identical queries to encode identically")
	}
}

func TestListFiltersDraftDoesNotLeakUntilApplied(t *testing.T) {
	filters := NewListFilters(AdQuery{Sort: SortNewest, Page: 1, Limit: 20})

	filters.Edit(func(q *AdQuery) {
		q.Search = "plate carrier"
		q.Sort = SortPriceAsc
	})

	if filters.Committed().Search != "" {
		t.Fatal("expected draft edits to stay out of the committed query")
	}
	if filters.Draft().Search != "plate carrier" {
		t.Fatalf("expected draft to hold the edit, got %+v", filters.Draft())
	}

	applied := filters.Apply()
	if applied.Search != "plate carrier" || applied.Sort != SortPriceAsc {
		t.Fatalf("expected applied query to carry the edits, got %+v", applied)
	}
	if applied.Page != 1 {
		t.Fatalf("expected apply to reset to the first page, got %d", applied.Page)
	}
	if filters.Committed() != applied {
		t.Fatal("expected committed state to match the applied query")
	}
}

func TestListFiltersResetDiscardsDraft(t *testing.T) {
	filters := NewListFilters(AdQuery{Sort: SortNewest, Limit: 20})
	filters.Edit(func(q *AdQuery) { q.Search = "discard me" })

	filters.Reset()

	if filters.Draft().Search != "" {
		t.Fatalf("expected reset to discard draft edits, got %+v", filters.Draft())
	}
}
