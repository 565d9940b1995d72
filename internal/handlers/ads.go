package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gearmarket/backend/internal/logging"
	"github.com/gearmarket/backend/internal/middleware"
	"github.com/gearmarket/backend/internal/models"
	"github.com/gearmarket/backend/internal/repositories"
)

const maxImageUploadBytes = 10 << 20

// AdHandler implements the marketplace listing endpoints.
type AdHandler struct {
	Ads    AdStore
	Images ImageStorage

	NowFunc func() time.Time
}

type createAdRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       *float64 `json:"price"`
	Image       string   `json:"image"`
	Location    string   `json:"location"`
	Seller      string   `json:"seller"`
	Rating      float64  `json:"rating"`
	IsFavorite  bool     `json:"is_favorite"`
}

type updateAdRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Image       *string  `json:"image"`
	Location    *string  `json:"location"`
	Seller      *string  `json:"seller"`
	Rating      *float64 `json:"rating"`
	IsFavorite  *bool    `json:"is_favorite"`
	Status      *string  `json:"status"`
}

type adListResponse struct {
	Ads   []models.Ad `json:"ads"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// List handles GET /api/ads. The category parameter is accepted but not yet
// backed by a column, matching the web client's expectations.
func (h AdHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	query := r.URL.Query()
	page, limit, offset := parsePagination(query)

	filter := repositories.AdFilter{
		Search: strings.TrimSpace(query.Get("search")),
		Sort:   query.Get("sort"),
		Limit:  limit,
		Offset: offset,
	}

	if raw := query.Get("price_min"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			respondError(ctx, w, http.StatusBadRequest, "Failed to fetch ads", "price_min must be a number")
			return
		}
		filter.PriceMin = &v
	}
	if raw := query.Get("price_max"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			respondError(ctx, w, http.StatusBadRequest, "Failed to fetch ads", "price_max must be a number")
			return
		}
		filter.PriceMax = &v
	}

	ads, total, err := h.Ads.List(ctx, filter)
	if err != nil {
		logger.Error("list ads failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error", "Failed to fetch ads")
		return
	}

	respondJSON(ctx, w, http.StatusOK, adListResponse{Ads: nonNilAds(ads), Total: total, Page: page, Limit: limit})
}

// Get handles GET /api/ads/{id}.
func (h AdHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	id := chi.URLParam(r, "id")

	ad, err := h.Ads.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "Ad not found", "The requested ad does not exist")
			return
		}
		logger.Error("get ad failed", "error", err, "adId", id)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error", "Failed to fetch ad")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"ad": ad})
}

// Create handles POST /api/ads.
func (h AdHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "Unauthorized", "Missing or invalid authorization header")
		return
	}

	var req createAdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid create ad payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "Failed to create ad", "Invalid request body")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if msg, ok := validateAdFields(req.Title, req.Description, req.Price, true); !ok {
		respondError(ctx, w, http.StatusBadRequest, "Failed to create ad", msg)
		return
	}

	now := h.now()
	ad := models.Ad{
		ID:          uuid.NewString(),
		UserID:      identity.ID,
		Title:       req.Title,
		Description: req.Description,
		Price:       *req.Price,
		Image:       req.Image,
		Location:    req.Location,
		Seller:      req.Seller,
		Rating:      req.Rating,
		IsFavorite:  req.IsFavorite,
		Status:      models.AdStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.Ads.Create(ctx, ad); err != nil {
		logger.Error("create ad failed", "error", err, "userId", identity.ID)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error", "Failed to create ad")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]any{
		"message": "Ad created successfully",
		"ad":      ad,
	})
}

// Update handles PUT /api/ads/{id}. The current owner is re-read before the
// write; a lost update between the two reads is last-write-wins.
func (h AdHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "Unauthorized", "Missing or invalid authorization header")
		return
	}

	id := chi.URLParam(r, "id")

	var req updateAdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid update ad payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "Failed to update ad", "Invalid request body")
		return
	}

	if msg, ok := validateAdUpdate(req); !ok {
		respondError(ctx, w, http.StatusBadRequest, "Failed to update ad", msg)
		return
	}

	if !h.requireOwner(ctx, w, id, identity.ID, "update") {
		return
	}

	ad, err := h.Ads.Update(ctx, id, repositories.AdUpdate{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Image:       req.Image,
		Location:    req.Location,
		Seller:      req.Seller,
		Rating:      req.Rating,
		IsFavorite:  req.IsFavorite,
		Status:      req.Status,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "Ad not found", "The requested ad does not exist")
			return
		}
		logger.Error("update ad failed", "error", err, "adId", id)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error", "Failed to update ad")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"message": "Ad updated successfully",
		"ad":      ad,
	})
}

// Delete handles DELETE /api/ads/{id}.
func (h AdHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "Unauthorized", "Missing or invalid authorization header")
		return
	}

	id := chi.URLParam(r, "id")

	if !h.requireOwner(ctx, w, id, identity.ID, "delete") {
		return
	}

	if err := h.Ads.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "Ad not found", "The requested ad does not exist")
			return
		}
		logger.Error("delete ad failed", "error", err, "adId", id)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error", "Failed to delete ad")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{
		"message": "Ad deleted successfully",
	})
}

// MyAds handles GET /api/ads/my/ads.
func (h AdHandler) MyAds(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "Unauthorized", "Missing or invalid authorization header")
		return
	}

	query := r.URL.Query()
	page, limit, offset := parsePagination(query)

	status := query.Get("status")
	if status != "" && !models.ValidAdStatus(status) {
		respondError(ctx, w, http.StatusBadRequest, "Failed to fetch user ads", "status must be one of active, sold, inactive")
		return
	}

	ads, total, err := h.Ads.ListByUser(ctx, identity.ID, status, limit, offset)
	if err != nil {
		logger.Error("list own ads failed", "error", err, "userId", identity.ID)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error", "Failed to fetch user ads")
		return
	}

	respondJSON(ctx, w, http.StatusOK, adListResponse{Ads: nonNilAds(ads), Total: total, Page: page, Limit: limit})
}

// UploadImage handles POST /api/ads/{id}/image.
func (h AdHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "Unauthorized", "Missing or invalid authorization header")
		return
	}

	if h.Images == nil {
		logger.Error("image storage unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error", "Image storage is not configured")
		return
	}

	id := chi.URLParam(r, "id")

	if !h.requireOwner(ctx, w, id, identity.ID, "update") {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageUploadBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		logger.Warn("invalid image upload", "error", err, "adId", id)
		respondError(ctx, w, http.StatusBadRequest, "Failed to upload image", "A multipart field named image is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		respondError(ctx, w, http.StatusBadRequest, "Failed to upload image", "Only jpg, png, and webp images are accepted")
		return
	}

	key := "ads/" + id + "/" + uuid.NewString() + ext
	location, err := h.Images.Save(ctx, key, file)
	if err != nil {
		logger.Error("image upload failed", "error", err, "adId", id)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error", "Failed to upload image")
		return
	}

	ad, err := h.Ads.Update(ctx, id, repositories.AdUpdate{Image: &location})
	if err != nil {
		logger.Error("image reference update failed", "error", err, "adId", id)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error", "Failed to upload image")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"message": "Image uploaded successfully",
		"ad":      ad,
	})
}

// requireOwner re-reads the current owner and writes the failure response
// when the ad is missing or owned by someone else.
func (h AdHandler) requireOwner(ctx context.Context, w http.ResponseWriter, adID, userID, verb string) bool {
	owner, err := h.Ads.OwnerOf(ctx, adID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "Ad not found", "The requested ad does not exist")
			return false
		}
		logging.FromContext(ctx).Error("ad owner lookup failed", "error", err, "adId", adID)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error", "Failed to "+verb+" ad")
		return false
	}

	if owner != userID {
		respondError(ctx, w, http.StatusForbidden, "Forbidden", "You can only "+verb+" your own ads")
		return false
	}

	return true
}

func validateAdFields(title, description string, price *float64, required bool) (string, bool) {
	if required {
		if title == "" || description == "" || price == nil {
			return "title, description, and price are required", false
		}
	}
	if len(title) > 100 {
		return "title must be at most 100 characters", false
	}
	if len(description) > 1000 {
		return "description must be at most 1000 characters", false
	}
	if price != nil && *price < 0 {
		return "price must not be negative", false
	}
	return "", true
}

func validateAdUpdate(req updateAdRequest) (string, bool) {
	title, description := "", ""
	if req.Title != nil {
		title = strings.TrimSpace(*req.Title)
		if title == "" {
			return "title must not be empty", false
		}
		*req.Title = title
	}
	if req.Description != nil {
		description = strings.TrimSpace(*req.Description)
		if description == "" {
			return "description must not be empty", false
		}
		*req.Description = description
	}
	if msg, ok := validateAdFields(title, description, req.Price, false); !ok {
		return msg, false
	}
	if req.Status != nil && !models.ValidAdStatus(*req.Status) {
		return "status must be one of active, sold, inactive", false
	}
	return "", true
}

func nonNilAds(ads []models.Ad) []models.Ad {
	if ads == nil {
		return []models.Ad{}
	}
	return ads
}

func (h AdHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
