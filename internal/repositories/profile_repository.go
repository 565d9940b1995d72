package repositories

import (
	"context"

	"github.com/gearmarket/backend/internal/models"
)

// ProfileUpdate carries a partial profile update; nil fields are left untouched.
type ProfileUpdate struct {
	FullName  *string
	AvatarURL *string
	Bio       *string
	Location  *string
	Phone     *string
	Website   *string
}

// ProfileRepository defines the data access contract for public profiles.
type ProfileRepository interface {
	Create(ctx context.Context, profile models.Profile) error
	Find(ctx context.Context, id string) (models.Profile, error)
	Update(ctx context.Context, id string, update ProfileUpdate) (models.Profile, error)
	SearchByName(ctx context.Context, query string, limit, offset int) ([]models.PublicProfile, int, error)
}
