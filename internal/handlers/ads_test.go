package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gearmarket/backend/internal/auth"
	"github.com/gearmarket/backend/internal/models"
	"github.com/gearmarket/backend/internal/repositories"
)

type inMemoryAdStore struct {
	ads map[string]models.Ad
}

func newInMemoryAdStore() *inMemoryAdStore {
	return &inMemoryAdStore{ads: make(map[string]models.Ad)}
}

func (s *inMemoryAdStore) Create(_ context.Context, ad models.Ad) error {
	if _, ok := s.ads[ad.ID]; ok {
		return repositories.ErrConflict
	}
	s.ads[ad.ID] = ad
	return nil
}

func (s *inMemoryAdStore) FindByID(_ context.Context, id string) (models.Ad, error) {
	ad, ok := s.ads[id]
	if !ok {
		return models.Ad{}, repositories.ErrNotFound
	}
	return ad, nil
}

func (s *inMemoryAdStore) OwnerOf(_ context.Context, id string) (string, error) {
	ad, ok := s.ads[id]
	if !ok {
		return "", repositories.ErrNotFound
	}
	return ad.UserID, nil
}

func (s *inMemoryAdStore) List(_ context.Context, filter repositories.AdFilter) ([]models.Ad, int, error) {
	var matches []models.Ad
	for _, ad := range s.ads {
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(ad.Title), needle) && !strings.Contains(strings.ToLower(ad.Description), needle) {
				continue
			}
		}
		if filter.PriceMin != nil && ad.Price < *filter.PriceMin {
			continue
		}
		if filter.PriceMax != nil && ad.Price > *filter.PriceMax {
			continue
		}
		matches = append(matches, ad)
	}

	switch filter.Sort {
	case repositories.SortPriceAsc:
		sort.Slice(matches, func(i, j int) bool { return matches[i].Price < matches[j].Price })
	case repositories.SortPriceDesc:
		sort.Slice(matches, func(i, j int) bool { return matches[i].Price > matches[j].Price })
	case repositories.SortOldest:
		sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.Before(matches[j].CreatedAt) })
	default:
		sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	}

	total := len(matches)
	if filter.Offset >= len(matches) {
		return nil, total, nil
	}
	matches = matches[filter.Offset:]
	if len(matches) > filter.Limit {
		matches = matches[:filter.Limit]
	}
	return matches, total, nil
}

func (s *inMemoryAdStore) ListByUser(_ context.Context, userID, status string, limit, offset int) ([]models.Ad, int, error) {
	var matches []models.Ad
	for _, ad := range s.ads {
		if ad.UserID != userID {
			continue
		}
		if status != "" && ad.Status != status {
			continue
		}
		matches = append(matches, ad)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })

	total := len(matches)
	if offset >= len(matches) {
		return nil, total, nil
	}
	matches = matches[offset:]
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, total, nil
}

func (s *inMemoryAdStore) Update(_ context.Context, id string, update repositories.AdUpdate) (models.Ad, error) {
	ad, ok := s.ads[id]
	if !ok {
		return models.Ad{}, repositories.ErrNotFound
	}
	if update.Title != nil {
		ad.Title = *update.Title
	}
	if update.Description != nil {
		ad.Description = *update.Description
	}
	if update.Price != nil {
		ad.Price = *update.Price
	}
	if update.Image != nil {
		ad.Image = *update.Image
	}
	if update.Location != nil {
		ad.Location = *update.Location
	}
	if update.Seller != nil {
		ad.Seller = *update.Seller
	}
	if update.Rating != nil {
		ad.Rating = *update.Rating
	}
	if update.IsFavorite != nil {
		ad.IsFavorite = *update.IsFavorite
	}
	if update.Status != nil {
		ad.Status = *update.Status
	}
	s.ads[id] = ad
	return ad, nil
}

func (s *inMemoryAdStore) Delete(_ context.Context, id string) error {
	if _, ok := s.ads[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.ads, id)
	return nil
}

// staticVerifier resolves bearer tokens from a fixed token-to-identity table.
type staticVerifier struct {
	identities map[string]auth.Identity
}

func (v staticVerifier) Verify(token string) (auth.Identity, error) {
	identity, ok := v.identities[token]
	if !ok {
		return auth.Identity{}, auth.ErrInvalidAccessToken
	}
	return identity, nil
}

func newAdTestRouter(t *testing.T, ads AdStore, identities map[string]auth.Identity) chi.Router {
	t.Helper()
	manager, _ := newTestSessionManager(t)
	router := chi.NewRouter()
	RegisterRoutes(router, Dependencies{
		Users:    newInMemoryUserStore(),
		Profiles: newInMemoryProfileStore(),
		Ads:      ads,
		Sessions: manager,
		Verifier: staticVerifier{identities: identities},
	})
	return router
}

func seedAd(store *inMemoryAdStore, userID string, title string, price float64, createdAt time.Time) models.Ad {
	ad := models.Ad{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Price:     price,
		Status:    models.AdStatusActive,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	store.ads[ad.ID] = ad
	return ad
}

func TestAdHandlerListPriceWindowSortedAscending(t *testing.T) {
	store := newInMemoryAdStore()
	base := time.Now().UTC().Add(-time.Hour)
	for i, price := range []float64{50, 120, 150, 210, 180} {
		seedAd(store, "seller-1", fmt.Sprintf("Listing %d", i+1), price, base.Add(time.Duration(i)*time.Minute))
	}

	router := newAdTestRouter(t, store, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/ads?price_min=100&price_max=200&sort=price-asc&page=1&limit=2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp adListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Total != 3 {
		t.Fatalf("expected 3 ads in price window, got %d", resp.Total)
	}
	if len(resp.Ads) != 2 {
		t.Fatalf("expected page of 2 ads, got %d", len(resp.Ads))
	}
	if resp.Ads[0].Price != 120 || resp.Ads[1].Price != 150 {
		t.Fatalf("expected prices [120 150], got [%v %v]", resp.Ads[0].Price, resp.Ads[1].Price)
	}
	if resp.Page != 1 || resp.Limit != 2 {
		t.Fatalf("expected page=1 limit=2, got page=%d limit=%d", resp.Page, resp.Limit)
	}
}

func TestAdHandlerListRejectsNonNumericPrices(t *testing.T) {
	router := newAdTestRouter(t, newInMemoryAdStore(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/ads?price_min=cheap", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestAdHandlerListClampsPagination(t *testing.T) {
	store := newInMemoryAdStore()
	seedAd(store, "seller-1", "Only listing", 10, time.Now().UTC())

	router := newAdTestRouter(t, store, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/ads?page=0&limit=500", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp adListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Page != 1 {
		t.Fatalf("expected page to clamp to 1, got %d", resp.Page)
	}
	if resp.Limit != maxPageLimit {
		t.Fatalf("expected limit to clamp to %d, got %d", maxPageLimit, resp.Limit)
	}
}

func TestAdHandlerCreate(t *testing.T) {
	store := newInMemoryAdStore()
	identities := map[string]auth.Identity{
		"seller-token": {ID: "seller-1", Email: "seller@example.com", Role: models.RoleAuthenticated},
	}
	router := newAdTestRouter(t, store, identities)

	price := 320.0
	body, _ := json.Marshal(createAdRequest{
		Title:       "Tokyo Marui AK-74MN",
		Description: "Lightly used AEG",
		Price:       &price,
		Location:    "Portland, OR",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/ads", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer seller-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var resp struct {
		Ad models.Ad `json:"ad"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Ad.UserID != "seller-1" {
		t.Fatalf("expected ad owned by caller, got %q", resp.Ad.UserID)
	}
	if resp.Ad.Status != models.AdStatusActive {
		t.Fatalf("expected new ads to start active, got %q", resp.Ad.Status)
	}
	if _, ok := store.ads[resp.Ad.ID]; !ok {
		t.Fatal("expected ad to be persisted")
	}
}

func TestAdHandlerCreateRequiresAuth(t *testing.T) {
	router := newAdTestRouter(t, newInMemoryAdStore(), nil)

	price := 10.0
	body, _ := json.Marshal(createAdRequest{Title: "No auth", Description: "x", Price: &price})

	req := httptest.NewRequest(http.MethodPost, "/api/ads", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestAdHandlerCreateValidation(t *testing.T) {
	identities := map[string]auth.Identity{"t": {ID: "seller-1"}}
	router := newAdTestRouter(t, newInMemoryAdStore(), identities)

	longTitle := strings.Repeat("x", 101)
	negative := -5.0
	valid := 10.0

	cases := []struct {
		name    string
		payload createAdRequest
	}{
		{"missing fields", createAdRequest{Title: "only title"}},
		{"title too long", createAdRequest{Title: longTitle, Description: "d", Price: &valid}},
		{"negative price", createAdRequest{Title: "t", Description: "d", Price: &negative}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, _ := json.Marshal(tc.payload)
			req := httptest.NewRequest(http.MethodPost, "/api/ads", bytes.NewReader(body))
			req.Header.Set("Authorization", "Bearer t")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status %d got %d: %s", http.StatusBadRequest, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAdHandlerGet(t *testing.T) {
	store := newInMemoryAdStore()
	ad := seedAd(store, "seller-1", "Plate carrier", 95.50, time.Now().UTC())

	router := newAdTestRouter(t, store, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/ads/"+ad.ID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp struct {
		Ad models.Ad `json:"ad"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Ad.ID != ad.ID {
		t.Fatalf("expected ad %s, got %s", ad.ID, resp.Ad.ID)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/ads/"+uuid.NewString(), nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d for unknown ad, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestAdHandlerUpdateEnforcesOwnership(t *testing.T) {
	store := newInMemoryAdStore()
	ad := seedAd(store, "seller-1", "KWA MP9", 210, time.Now().UTC())

	identities := map[string]auth.Identity{
		"owner-token":    {ID: "seller-1"},
		"intruder-token": {ID: "someone-else"},
	}
	router := newAdTestRouter(t, store, identities)

	newTitle := "KWA MP9 GBB"
	body, _ := json.Marshal(updateAdRequest{Title: &newTitle})

	req := httptest.NewRequest(http.MethodPut, "/api/ads/"+ad.ID, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer intruder-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d got %d", http.StatusForbidden, rec.Code)
	}

	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Message != "You can only update your own ads" {
		t.Fatalf("unexpected forbidden message: %+v", resp)
	}

	body, _ = json.Marshal(updateAdRequest{Title: &newTitle})
	req = httptest.NewRequest(http.MethodPut, "/api/ads/"+ad.ID, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer owner-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if store.ads[ad.ID].Title != newTitle {
		t.Fatalf("expected title to be updated, got %q", store.ads[ad.ID].Title)
	}
}

func TestAdHandlerDeleteEnforcesOwnership(t *testing.T) {
	store := newInMemoryAdStore()
	ad := seedAd(store, "seller-1", "Dye i5 goggles", 180, time.Now().UTC())

	identities := map[string]auth.Identity{
		"owner-token":    {ID: "seller-1"},
		"intruder-token": {ID: "someone-else"},
	}
	router := newAdTestRouter(t, store, identities)

	req := httptest.NewRequest(http.MethodDelete, "/api/ads/"+ad.ID, nil)
	req.Header.Set("Authorization", "Bearer intruder-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d got %d", http.StatusForbidden, rec.Code)
	}

	// The rejected delete must not remove the listing.
	req = httptest.NewRequest(http.MethodGet, "/api/ads/"+ad.ID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected ad to remain retrievable, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/ads/"+ad.ID, nil)
	req.Header.Set("Authorization", "Bearer owner-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	if _, ok := store.ads[ad.ID]; ok {
		t.Fatal("expected ad to be deleted")
	}
}

func TestAdHandlerMyAdsRoutePrecedence(t *testing.T) {
	store := newInMemoryAdStore()
	base := time.Now().UTC()
	seedAd(store, "seller-1", "Mine active", 10, base)
	sold := seedAd(store, "seller-1", "Mine sold", 20, base.Add(time.Minute))
	soldStatus := models.AdStatusSold
	if _, err := store.Update(context.Background(), sold.ID, repositories.AdUpdate{Status: &soldStatus}); err != nil {
		t.Fatalf("mark ad sold: %v", err)
	}
	seedAd(store, "other", "Not mine", 30, base)

	identities := map[string]auth.Identity{"mine": {ID: "seller-1"}}
	router := newAdTestRouter(t, store, identities)

	req := httptest.NewRequest(http.MethodGet, "/api/ads/my/ads", nil)
	req.Header.Set("Authorization", "Bearer mine")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp adListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("expected 2 own ads, got %d", resp.Total)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/ads/my/ads?status=sold", nil)
	req.Header.Set("Authorization", "Bearer mine")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 1 || resp.Ads[0].ID != sold.ID {
		t.Fatalf("expected single sold ad, got %+v", resp)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/ads/my/ads?status=bogus", nil)
	req.Header.Set("Authorization", "Bearer mine")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d for invalid status, got %d", http.StatusBadRequest, rec.Code)
	}
}
