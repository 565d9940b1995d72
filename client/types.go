package client

import "time"

// UserMetadata is the optional profile metadata attached to an account.
type UserMetadata struct {
	FullName  string `json:"full_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// User is the account record returned by the auth endpoints.
type User struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	Role         string       `json:"role"`
	UserMetadata UserMetadata `json:"user_metadata"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Ad is a marketplace listing.
type Ad struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Image       string    `json:"image"`
	Location    string    `json:"location"`
	Seller      string    `json:"seller"`
	Rating      float64   `json:"rating"`
	IsFavorite  bool      `json:"is_favorite"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AdList is a page of listings plus the total match count.
type AdList struct {
	Ads   []Ad `json:"ads"`
	Total int  `json:"total"`
	Page  int  `json:"page"`
	Limit int  `json:"limit"`
}

// Profile is the caller's own profile record.
type Profile struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url"`
	Bio       string    `json:"bio"`
	Location  string    `json:"location"`
	Phone     string    `json:"phone"`
	Website   string    `json:"website"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PublicProfile is the subset of a profile visible to everyone.
type PublicProfile struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

// UserSearchResult is a page of public profiles matching a name query.
type UserSearchResult struct {
	Users []PublicProfile `json:"users"`
	Total int             `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// RegisterParams is the input to Register.
type RegisterParams struct {
	Email        string        `json:"email"`
	Password     string        `json:"password"`
	UserMetadata *UserMetadata `json:"user_metadata,omitempty"`
}

// RegisterResult reports the created account and whether a session was
// issued immediately. SessionIssued is false when the server requires email
// confirmation before the first login.
type RegisterResult struct {
	User          User
	SessionIssued bool
}

// AccountUpdate is the partial input to UpdateAccount.
type AccountUpdate struct {
	Email        *string       `json:"email,omitempty"`
	UserMetadata *UserMetadata `json:"user_metadata,omitempty"`
}

// NewAd is the input to CreateAd.
type NewAd struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Image       string  `json:"image,omitempty"`
	Location    string  `json:"location,omitempty"`
	Seller      string  `json:"seller,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	IsFavorite  bool    `json:"is_favorite,omitempty"`
}

// AdPatch is the partial input to UpdateAd. Nil fields are left untouched.
type AdPatch struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Image       *string  `json:"image,omitempty"`
	Location    *string  `json:"location,omitempty"`
	Seller      *string  `json:"seller,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	IsFavorite  *bool    `json:"is_favorite,omitempty"`
	Status      *string  `json:"status,omitempty"`
}

// ProfilePatch is the partial input to UpdateMyProfile.
type ProfilePatch struct {
	FullName  *string `json:"full_name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	Location  *string `json:"location,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Website   *string `json:"website,omitempty"`
}

// Health is the service health report.
type Health struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}
