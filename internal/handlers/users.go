package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gearmarket/backend/internal/logging"
	"github.com/gearmarket/backend/internal/middleware"
	"github.com/gearmarket/backend/internal/models"
	"github.com/gearmarket/backend/internal/repositories"
)

// UserHandler implements public profile and per-user listing endpoints.
type UserHandler struct {
	Profiles ProfileStore
	Ads      AdStore
}

type updateProfileRequest struct {
	FullName  *string `json:"full_name"`
	AvatarURL *string `json:"avatar_url"`
	Bio       *string `json:"bio"`
	Location  *string `json:"location"`
	Phone     *string `json:"phone"`
	Website   *string `json:"website"`
}

type userSearchResponse struct {
	Users []models.PublicProfile `json:"users"`
	Total int                    `json:"total"`
	Page  int                    `json:"page"`
	Limit int                    `json:"limit"`
}

// Get handles GET /api/users/{id}, returning the public profile subset.
func (h UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	id := chi.URLParam(r, "id")

	profile, err := h.Profiles.Find(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "User not found", "The requested user does not exist")
			return
		}
		logger.Error("get profile failed", "error", err, "userId", id)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error", "Failed to fetch user profile")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"profile": models.PublicProfile{
			ID:        profile.ID,
			FullName:  profile.FullName,
			AvatarURL: profile.AvatarURL,
			CreatedAt: profile.CreatedAt,
		},
	})
}

// MyProfile handles GET /api/users/me/profile.
func (h UserHandler) MyProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "Unauthorized", "Missing or invalid authorization header")
		return
	}

	profile, err := h.Profiles.Find(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "Profile not found", "User profile does not exist")
			return
		}
		logger.Error("get own profile failed", "error", err, "userId", identity.ID)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error", "Failed to fetch user profile")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"profile": profile})
}

// UpdateMyProfile handles PUT /api/users/me/profile.
func (h UserHandler) UpdateMyProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "Unauthorized", "Missing or invalid authorization header")
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid profile update payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "Failed to update profile", "Invalid request body")
		return
	}

	if msg, ok := validateProfileUpdate(req); !ok {
		respondError(ctx, w, http.StatusBadRequest, "Failed to update profile", msg)
		return
	}

	profile, err := h.Profiles.Update(ctx, identity.ID, repositories.ProfileUpdate{
		FullName:  req.FullName,
		AvatarURL: req.AvatarURL,
		Bio:       req.Bio,
		Location:  req.Location,
		Phone:     req.Phone,
		Website:   req.Website,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "Profile not found", "User profile does not exist")
			return
		}
		logger.Error("profile update failed", "error", err, "userId", identity.ID)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error", "Failed to update profile")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"profile": profile,
	})
}

// ListAds handles GET /api/users/{id}/ads.
func (h UserHandler) ListAds(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	id := chi.URLParam(r, "id")
	query := r.URL.Query()
	page, limit, offset := parsePagination(query)

	status := query.Get("status")
	if status != "" && !models.ValidAdStatus(status) {
		respondError(ctx, w, http.StatusBadRequest, "Failed to fetch user ads", "status must be one of active, sold, inactive")
		return
	}

	ads, total, err := h.Ads.ListByUser(ctx, id, status, limit, offset)
	if err != nil {
		logger.Error("list user ads failed", "error", err, "userId", id)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error", "Failed to fetch user ads")
		return
	}

	respondJSON(ctx, w, http.StatusOK, adListResponse{Ads: nonNilAds(ads), Total: total, Page: page, Limit: limit})
}

// Search handles GET /api/users/search.
func (h UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	query := r.URL.Query()
	q := strings.TrimSpace(query.Get("q"))
	if q == "" {
		respondError(ctx, w, http.StatusBadRequest, "Failed to search users", "q is required")
		return
	}

	page, limit, offset := parsePagination(query)

	users, total, err := h.Profiles.SearchByName(ctx, q, limit, offset)
	if err != nil {
		logger.Error("search users failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error", "Failed to search users")
		return
	}

	if users == nil {
		users = []models.PublicProfile{}
	}

	respondJSON(ctx, w, http.StatusOK, userSearchResponse{Users: users, Total: total, Page: page, Limit: limit})
}

func validateProfileUpdate(req updateProfileRequest) (string, bool) {
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" || len(name) > 100 {
			return "full_name must be between 1 and 100 characters", false
		}
		*req.FullName = name
	}
	if req.Bio != nil && len(*req.Bio) > 500 {
		return "bio must be at most 500 characters", false
	}
	if req.Location != nil && len(*req.Location) > 100 {
		return "location must be at most 100 characters", false
	}
	return "", true
}
