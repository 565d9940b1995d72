package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/gearmarket/backend/internal/auth"
	"github.com/gearmarket/backend/internal/logging"
	"github.com/gearmarket/backend/internal/middleware"
	"github.com/gearmarket/backend/internal/models"
	"github.com/gearmarket/backend/internal/repositories"
)

// AuthHandler implements registration, login, and session endpoints.
type AuthHandler struct {
	Users    UserStore
	Profiles ProfileStore
	Sessions SessionManager
	Limiter  RateLimiter

	// RequireEmailConfirm withholds the session from registration responses
	// until the address is confirmed out of band.
	RequireEmailConfirm bool

	NowFunc func() time.Time
}

type userMetadataPayload struct {
	FullName  string `json:"full_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type userPayload struct {
	ID           string              `json:"id"`
	Email        string              `json:"email"`
	Role         string              `json:"role"`
	UserMetadata userMetadataPayload `json:"user_metadata"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

type sessionPayload struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
}

func newUserPayload(user models.User) userPayload {
	return userPayload{
		ID:    user.ID,
		Email: user.Email,
		Role:  user.Role,
		UserMetadata: userMetadataPayload{
			FullName:  user.FullName,
			Phone:     user.Phone,
			AvatarURL: user.AvatarURL,
		},
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

func newSessionPayload(tokens models.SessionTokens, now time.Time) *sessionPayload {
	return &sessionPayload{
		AccessToken:  tokens.AccessToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(tokens.AccessExpiresAt.Sub(now).Seconds()),
		ExpiresAt:    tokens.AccessExpiresAt.Unix(),
		RefreshToken: tokens.RefreshToken,
	}
}

type registerRequest struct {
	Email        string               `json:"email"`
	Password     string               `json:"password"`
	UserMetadata *userMetadataPayload `json:"user_metadata"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type updateAccountRequest struct {
	Email        *string              `json:"email"`
	UserMetadata *userMetadataPayload `json:"user_metadata"`
}

// Register handles POST /api/auth/register.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Profiles == nil || h.Sessions == nil {
		logger.Error("registration dependencies unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error", "Failed to register user")
		return
	}

	if !allowRequest(h.Limiter, r, "register") {
		respondError(ctx, w, http.StatusTooManyRequests, "Too many requests", "Please wait before trying again")
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid register payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "Registration failed", "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		respondError(ctx, w, http.StatusBadRequest, "Registration failed", "Email and password are required")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Registration failed", "Invalid email address")
		return
	}
	if len(req.Password) < 6 {
		respondError(ctx, w, http.StatusBadRequest, "Registration failed", "Password must be at least 6 characters")
		return
	}

	if _, err := h.Users.FindByEmail(ctx, req.Email); err == nil {
		respondError(ctx, w, http.StatusBadRequest, "Registration failed", "An account with this email already exists")
		return
	} else if !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("register user lookup failed", "error", err, "email", req.Email)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error", "Failed to register user")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("register failed to hash password", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error", "Failed to register user")
		return
	}

	now := h.now()
	user := models.User{
		ID:        uuid.NewString(),
		Email:     req.Email,
		Password:  string(hashed),
		Role:      models.RoleAuthenticated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.UserMetadata != nil {
		user.FullName = strings.TrimSpace(req.UserMetadata.FullName)
		user.Phone = strings.TrimSpace(req.UserMetadata.Phone)
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, http.StatusBadRequest, "Registration failed", "An account with this email already exists")
			return
		}
		logger.Error("register failed to create user", "error", err, "email", req.Email)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error", "Failed to register user")
		return
	}

	if err := h.Profiles.Create(ctx, models.Profile{
		ID:        user.ID,
		FullName:  user.FullName,
		Phone:     user.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		logger.Error("register failed to create profile", "error", err, "userId", user.ID)
	}

	var session *sessionPayload
	if !h.RequireEmailConfirm {
		tokens, err := h.Sessions.Issue(ctx, auth.Identity{ID: user.ID, Email: user.Email, Role: user.Role})
		if err != nil {
			logger.Error("register failed to issue session", "error", err, "userId", user.ID)
			respondError(ctx, w, http.StatusInternalServerError, "Internal server error", "Failed to register user")
			return
		}
		session = newSessionPayload(tokens, h.now())
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user":    newUserPayload(user),
		"session": session,
	})
}

// Login handles POST /api/auth/login.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Sessions == nil {
		logger.Error("authentication dependencies unavailable", "hasUsers", h.Users != nil, "hasSessions", h.Sessions != nil)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error", "Failed to login")
		return
	}

	if !allowRequest(h.Limiter, r, "login") {
		respondError(ctx, w, http.StatusTooManyRequests, "Too many requests", "Please wait before trying again")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "Login failed", "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		respondError(ctx, w, http.StatusBadRequest, "Login failed", "Email and password are required")
		return
	}

	user, err := h.Users.FindByEmail(ctx, req.Email)
	if err != nil {
		logger.Warn("login user lookup failed", "email", req.Email, "error", err)
		respondError(ctx, w, http.StatusUnauthorized, "Login failed", "Invalid login credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logger.Warn("login password mismatch", "userId", user.ID)
		respondError(ctx, w, http.StatusUnauthorized, "Login failed", "Invalid login credentials")
		return
	}

	tokens, err := h.Sessions.Issue(ctx, auth.Identity{ID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		logger.Error("failed to issue session", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error", "Failed to login")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"user":    newUserPayload(user),
		"session": newSessionPayload(tokens, h.now()),
	})
}

// Logout handles POST /api/auth/logout. Revocation is best effort; the
// response is successful even when no sessions remained.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "Unauthorized", "Missing or invalid authorization header")
		return
	}

	if h.Sessions != nil {
		h.Sessions.RevokeAll(ctx, identity.ID)
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{
		"message": "Logout successful",
	})
}

// Profile handles GET /api/auth/profile.
func (h AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "Unauthorized", "Missing or invalid authorization header")
		return
	}

	user, err := h.Users.FindByID(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusUnauthorized, "User not found", "No user associated with this token")
			return
		}
		logger.Error("profile lookup failed", "error", err, "userId", identity.ID)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error", "Failed to get user profile")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"user": newUserPayload(user),
	})
}

// UpdateAccount handles PUT /api/auth/profile.
func (h AuthHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "Unauthorized", "Missing or invalid authorization header")
		return
	}

	var req updateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid account update payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "Failed to update profile", "Invalid request body")
		return
	}

	user, err := h.Users.FindByID(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusUnauthorized, "User not found", "No user associated with this token")
			return
		}
		logger.Error("account lookup failed", "error", err, "userId", identity.ID)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error", "Failed to update profile")
		return
	}

	if req.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*req.Email))
		if _, err := mail.ParseAddress(email); err != nil {
			respondError(ctx, w, http.StatusBadRequest, "Failed to update profile", "Invalid email address")
			return
		}
		user.Email = email
	}
	if req.UserMetadata != nil {
		if req.UserMetadata.FullName != "" {
			user.FullName = strings.TrimSpace(req.UserMetadata.FullName)
		}
		if req.UserMetadata.Phone != "" {
			user.Phone = strings.TrimSpace(req.UserMetadata.Phone)
		}
		if req.UserMetadata.AvatarURL != "" {
			user.AvatarURL = strings.TrimSpace(req.UserMetadata.AvatarURL)
		}
	}
	user.UpdatedAt = h.now()

	if err := h.Users.Update(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, http.StatusBadRequest, "Failed to update profile", "An account with this email already exists")
			return
		}
		logger.Error("account update failed", "error", err, "userId", identity.ID)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error", "Failed to update profile")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"user":    newUserPayload(user),
	})
}

// Refresh handles POST /api/auth/refresh.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Sessions == nil {
		logger.Error("session manager unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error", "Failed to refresh token")
		return
	}

	if !allowRequest(h.Limiter, r, "refresh") {
		respondError(ctx, w, http.StatusTooManyRequests, "Too many requests", "Please wait before trying again")
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid refresh payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "Token refresh failed", "Invalid request body")
		return
	}

	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		respondError(ctx, w, http.StatusBadRequest, "Token refresh failed", "Refresh token is required")
		return
	}

	tokens, err := h.Sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrRefreshTokenExpired) || errors.Is(err, auth.ErrSessionNotFound) {
			logger.Warn("refresh rejected", "error", err)
			respondError(ctx, w, http.StatusUnauthorized, "Token refresh failed", "Invalid or expired refresh token")
			return
		}
		logger.Error("refresh failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error", "Failed to refresh token")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"message": "Token refreshed successfully",
		"session": newSessionPayload(tokens, h.now()),
	})
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
