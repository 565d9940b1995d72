package repositories

import (
	"context"

	"github.com/gearmarket/backend/internal/models"
)

// Sort modes accepted by ad listing queries. Relevance has no ranking column
// behind it and falls back to newest-first.
const (
	SortRelevance = "relevance"
	SortPriceAsc  = "price-asc"
	SortPriceDesc = "price-desc"
	SortNewest    = "newest"
	SortOldest    = "oldest"
)

// AdFilter bounds a public ad listing query. Limit and Offset are assumed to
// be validated by the caller.
type AdFilter struct {
	Search   string
	PriceMin *float64
	PriceMax *float64
	Sort     string
	Limit    int
	Offset   int
}

// AdUpdate carries a partial update; nil fields are left untouched. The
// owning user is never part of an update.
type AdUpdate struct {
	Title       *string
	Description *string
	Price       *float64
	Image       *string
	Location    *string
	Seller      *string
	Rating      *float64
	IsFavorite  *bool
	Status      *string
}

// AdRepository defines the data access contract for marketplace listings.
type AdRepository interface {
	Create(ctx context.Context, ad models.Ad) error
	FindByID(ctx context.Context, id string) (models.Ad, error)
	OwnerOf(ctx context.Context, id string) (string, error)
	List(ctx context.Context, filter AdFilter) ([]models.Ad, int, error)
	ListByUser(ctx context.Context, userID, status string, limit, offset int) ([]models.Ad, int, error)
	Update(ctx context.Context, id string, update AdUpdate) (models.Ad, error)
	Delete(ctx context.Context, id string) error
}
