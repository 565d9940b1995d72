package models

import "time"

// User represents an account within the GearMarket platform.
type User struct {
	ID        string
	Email     string
	Password  string
	Role      string
	FullName  string
	Phone     string
	AvatarURL string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoleAuthenticated is the default role assigned to registered users.
const RoleAuthenticated = "authenticated"

// Profile is the public-facing record supplementing a user account.
type Profile struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url"`
	Bio       string    `json:"bio,omitempty"`
	Location  string    `json:"location,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Website   string    `json:"website,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PublicProfile is the subset of a profile exposed on unauthenticated reads.
type PublicProfile struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

// Ad is a single marketplace listing.
type Ad struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Image       string    `json:"image,omitempty"`
	Location    string    `json:"location,omitempty"`
	Seller      string    `json:"seller,omitempty"`
	Rating      float64   `json:"rating"`
	IsFavorite  bool      `json:"is_favorite"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const (
	AdStatusActive   = "active"
	AdStatusSold     = "sold"
	AdStatusInactive = "inactive"
)

// ValidAdStatus reports whether the provided status is one of the lifecycle states.
func ValidAdStatus(status string) bool {
	switch status {
	case AdStatusActive, AdStatusSold, AdStatusInactive:
		return true
	}
	return false
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
