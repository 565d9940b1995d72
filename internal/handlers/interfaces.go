package handlers

import (
	"context"
	"io"

	"github.com/gearmarket/backend/internal/auth"
	"github.com/gearmarket/backend/internal/models"
	"github.com/gearmarket/backend/internal/repositories"
)

// UserStore captures the persistence operations required by the auth handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	Update(ctx context.Context, user models.User) error
}

// ProfileStore captures persistence for public user profiles.
type ProfileStore interface {
	Create(ctx context.Context, profile models.Profile) error
	Find(ctx context.Context, id string) (models.Profile, error)
	Update(ctx context.Context, id string, update repositories.ProfileUpdate) (models.Profile, error)
	SearchByName(ctx context.Context, query string, limit, offset int) ([]models.PublicProfile, int, error)
}

// AdStore captures persistence for marketplace listings.
type AdStore interface {
	Create(ctx context.Context, ad models.Ad) error
	FindByID(ctx context.Context, id string) (models.Ad, error)
	OwnerOf(ctx context.Context, id string) (string, error)
	List(ctx context.Context, filter repositories.AdFilter) ([]models.Ad, int, error)
	ListByUser(ctx context.Context, userID, status string, limit, offset int) ([]models.Ad, int, error)
	Update(ctx context.Context, id string, update repositories.AdUpdate) (models.Ad, error)
	Delete(ctx context.Context, id string) error
}

// SessionManager issues, refreshes, and revokes authentication tokens.
type SessionManager interface {
	Issue(ctx context.Context, identity auth.Identity) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	RevokeAll(ctx context.Context, userID string)
}

// ImageStorage persists uploaded ad images and returns their public location.
type ImageStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}
