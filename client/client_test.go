package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestClientLoginStoresSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode login payload: %v", err)
		}
		if payload["email"] != "a@b.com" || payload["password"] != "secret1" {
			t.Fatalf("unexpected credentials: %+v", payload)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": "Login successful",
			"user":    map[string]any{"id": "user-1", "email": "a@b.com"},
			"session": map[string]any{
				"access_token":  "access-1",
				"token_type":    "bearer",
				"expires_in":    900,
				"refresh_token": "refresh-1",
			},
		})
	}))
	defer server.Close()

	store := NewMemoryTokenStore()
	c := New(server.URL, store)

	user, err := c.Login(context.Background(), "a@b.com", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != "user-1" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if !c.IsAuthenticated() {
		t.Fatal("expected authenticated after login")
	}
	tokens, ok := store.Load()
	if !ok || tokens.AccessToken != "access-1" || tokens.RefreshToken != "refresh-1" {
		t.Fatalf("unexpected stored tokens: ok=%v %+v", ok, tokens)
	}
}

func TestClientLoginFailureLeavesTokensUntouched(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":   "Login failed",
			"message": "Invalid login credentials",
		})
	}))
	defer server.Close()

	store := NewMemoryTokenStore()
	existing := Tokens{AccessToken: "keep-me", RefreshToken: "keep-me-too", ExpiresAt: time.Now().Add(time.Hour)}
	_ = store.Save(existing)

	c := New(server.URL, store)

	_, err := c.Login(context.Background(), "a@b.com", "wrong")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Err != "Login failed" || apiErr.Message != "Invalid login credentials" {
		t.Fatalf("unexpected error envelope: %+v", apiErr)
	}

	tokens, ok := store.Load()
	if !ok || tokens.AccessToken != existing.AccessToken {
		t.Fatalf("expected stored tokens to survive a failed login, got ok=%v %+v", ok, tokens)
	}
}

func TestClientRegisterWithImmediateSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]any{"id": "user-1", "email": "a@b.com"},
			"session": map[string]any{
				"access_token":  "access-1",
				"refresh_token": "refresh-1",
				"expires_in":    900,
			},
		})
	}))
	defer server.Close()

	c := New(server.URL, NewMemoryTokenStore())

	result, err := c.Register(context.Background(), RegisterParams{Email: "a@b.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !result.SessionIssued {
		t.Fatal("expected an immediate session")
	}
	if !c.IsAuthenticated() {
		t.Fatal("expected authenticated after registration with session")
	}
}

func TestClientRegisterWithoutSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user":    map[string]any{"id": "user-1", "email": "a@b.com"},
			"session": nil,
		})
	}))
	defer server.Close()

	c := New(server.URL, NewMemoryTokenStore())

	result, err := c.Register(context.Background(), RegisterParams{Email: "a@b.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if result.SessionIssued {
		t.Fatal("expected no session when confirmation is required")
	}
	if c.IsAuthenticated() {
		t.Fatal("expected unauthenticated without a session")
	}
}

func TestClientRefreshesOnceAndReplays(t *testing.T) {
	var refreshes atomic.Int32
	var profileCalls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/profile":
			profileCalls.Add(1)
			auth := r.Header.Get("Authorization")
			if auth != "Bearer fresh-access" {
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized", "message": "Invalid or expired token"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"user": map[string]any{"id": "user-1", "email": "a@b.com"},
			})
		case "/api/auth/refresh":
			refreshes.Add(1)
			var payload map[string]string
			_ = json.NewDecoder(r.Body).Decode(&payload)
			if payload["refresh_token"] != "refresh-1" {
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "Token refresh failed"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"session": map[string]any{
					"access_token":  "fresh-access",
					"refresh_token": "fresh-refresh",
					"expires_in":    900,
				},
			})
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	store := NewMemoryTokenStore()
	_ = store.Save(Tokens{AccessToken: "stale-access", RefreshToken: "refresh-1", ExpiresAt: time.Now().Add(time.Hour)})

	c := New(server.URL, store)

	user, err := c.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if user.ID != "user-1" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if got := refreshes.Load(); got != 1 {
		t.Fatalf("expected exactly one refresh, got %d", got)
	}
	if got := profileCalls.Load(); got != 2 {
		t.Fatalf("expected original call plus one replay, got %d", got)
	}

	tokens, _ := store.Load()
	if tokens.AccessToken != "fresh-access" || tokens.RefreshToken != "fresh-refresh" {
		t.Fatalf("expected rotated tokens to be stored, got %+v", tokens)
	}
}

func TestClientFailedRefreshClearsTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
	}))
	defer server.Close()

	store := NewMemoryTokenStore()
	_ = store.Save(Tokens{AccessToken: "stale", RefreshToken: "stale-refresh", ExpiresAt: time.Now().Add(time.Hour)})

	c := New(server.URL, store)

	_, err := c.CurrentUser(context.Background())
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}

	if _, ok := store.Load(); ok {
		t.Fatal("expected tokens to be cleared after a failed refresh")
	}
	if c.IsAuthenticated() {
		t.Fatal("expected unauthenticated after session expiry")
	}
}

func TestClientDoesNotRefreshUnauthenticatedRequests(t *testing.T) {
	var refreshes atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/refresh" {
			refreshes.Add(1)
		}
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized", "message": "Missing or invalid authorization header"})
	}))
	defer server.Close()

	c := New(server.URL, NewMemoryTokenStore())

	_, err := c.CurrentUser(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected a plain 401 APIError, got %v", err)
	}
	if refreshes.Load() != 0 {
		t.Fatal("expected no refresh attempt without a held token")
	}
}

func TestClientLogoutClearsLocallyDespiteServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Internal server error"})
	}))
	defer server.Close()

	store := NewMemoryTokenStore()
	_ = store.Save(Tokens{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour)})

	c := New(server.URL, store)

	err := c.Logout(context.Background())
	if err == nil {
		t.Fatal("expected the remote failure to be reported")
	}
	if _, ok := store.Load(); ok {
		t.Fatal("expected local tokens to be cleared regardless of the remote outcome")
	}
}

func TestClientAdsSendsQueryParameters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("price_min") != "100" || q.Get("price_max") != "200" || q.Get("sort") != "price-asc" {
			t.Fatalf("unexpected query: %s", r.URL.RawQuery)
		}
		if q.Get("page") != "1" || q.Get("limit") != "2" {
			t.Fatalf("unexpected pagination: %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(AdList{
			Ads:   []Ad{{ID: "ad-1", Price: 120}, {ID: "ad-2", Price: 150}},
			Total: 3, Page: 1, Limit: 2,
		})
	}))
	defer server.Close()

	c := New(server.URL, nil)

	min, max := 100.0, 200.0
	list, err := c.Ads(context.Background(), AdQuery{PriceMin: &min, PriceMax: &max, Sort: SortPriceAsc, Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("ads: %v", err)
	}
	if list.Total != 3 || len(list.Ads) != 2 || list.Ads[0].Price != 120 || list.Ads[1].Price != 150 {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestClientUploadAdImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ads/ad-1/image" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Fatalf("missing image field: %v", err)
		}
		defer file.Close()
		if header.Filename != "gun.jpg" {
			t.Fatalf("unexpected filename: %s", header.Filename)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ad": map[string]any{"id": "ad-1", "image": "https://cdn.example.com/ads/ad-1/pic.jpg"},
		})
	}))
	defer server.Close()

	store := NewMemoryTokenStore()
	_ = store.Save(Tokens{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour)})
	c := New(server.URL, store)

	ad, err := c.UploadAdImage(context.Background(), "ad-1", "gun.jpg", strings.NewReader("jpeg-bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if ad.Image == "" {
		t.Fatalf("expected image URL on the updated ad, got %+v", ad)
	}
}
