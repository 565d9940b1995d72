package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrSessionExpired is returned when a 401 could not be recovered by a token
// refresh. Stored tokens are cleared before it is returned.
var ErrSessionExpired = errors.New("session expired")

// APIError carries the server's stable {error, message} envelope alongside
// the HTTP status.
type APIError struct {
	Status  int
	Err     string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (%d): %s", e.Err, e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%d)", e.Err, e.Status)
}

// Client is a typed HTTP client for the GearMarket API. It attaches bearer
// tokens from the configured store and transparently retries a request once
// after refreshing an expired access token.
//
// A nil Store is allowed: the client then never authenticates and every
// protected call fails with the server's 401 envelope.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Store      TokenStore

	// NowFunc overrides the time source in tests.
	NowFunc func() time.Time

	// refreshMu serializes token refreshes so a refresh completes before the
	// replayed request is issued.
	refreshMu sync.Mutex
}

// New constructs a client for the given base URL. Pass a nil store to run
// unauthenticated.
func New(baseURL string, store TokenStore) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: http.DefaultClient,
		Store:      store,
	}
}

// IsAuthenticated reports whether a complete, unexpired token triple is
// stored. It never performs network I/O.
func (c *Client) IsAuthenticated() bool {
	if c.Store == nil {
		return false
	}
	tokens, ok := c.Store.Load()
	if !ok {
		return false
	}
	return tokens.Valid(c.now())
}

// ClearTokens drops the stored session triple.
func (c *Client) ClearTokens() error {
	if c.Store == nil {
		return nil
	}
	return c.Store.Clear()
}

// Register creates an account. When the server issues a session immediately
// it is stored; SessionIssued is false when email confirmation is required
// first.
func (c *Client) Register(ctx context.Context, params RegisterParams) (RegisterResult, error) {
	var envelope struct {
		User    User            `json:"user"`
		Session json.RawMessage `json:"session"`
	}
	if err := c.postJSON(ctx, "/api/auth/register", params, &envelope); err != nil {
		return RegisterResult{}, err
	}

	issued := c.storeSession(envelope.Session)
	return RegisterResult{User: envelope.User, SessionIssued: issued}, nil
}

// Login authenticates with email and password and stores the issued session.
func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	payload := map[string]string{"email": email, "password": password}
	var envelope struct {
		User    User            `json:"user"`
		Session json.RawMessage `json:"session"`
	}
	if err := c.postJSON(ctx, "/api/auth/login", payload, &envelope); err != nil {
		return User{}, err
	}

	c.storeSession(envelope.Session)
	return envelope.User, nil
}

// Logout invalidates the caller's sessions server-side. Local tokens are
// cleared even when the remote call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, "", nil)
	if clearErr := c.ClearTokens(); clearErr != nil && err == nil {
		err = clearErr
	}
	if errors.Is(err, ErrSessionExpired) {
		return nil
	}
	return err
}

// CurrentUser fetches the account behind the stored access token.
func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	var envelope struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/profile", nil, nil, "", &envelope); err != nil {
		return User{}, err
	}
	return envelope.User, nil
}

// UpdateAccount applies a partial update to the caller's account record.
func (c *Client) UpdateAccount(ctx context.Context, update AccountUpdate) (User, error) {
	var envelope struct {
		User User `json:"user"`
	}
	if err := c.putJSON(ctx, "/api/auth/profile", update, &envelope); err != nil {
		return User{}, err
	}
	return envelope.User, nil
}

// Ads fetches a page of listings matching the query.
func (c *Client) Ads(ctx context.Context, query AdQuery) (AdList, error) {
	var list AdList
	if err := c.do(ctx, http.MethodGet, "/api/ads", query.Values(), nil, "", &list); err != nil {
		return AdList{}, err
	}
	return list, nil
}

// Ad fetches a single listing.
func (c *Client) Ad(ctx context.Context, id string) (Ad, error) {
	var envelope struct {
		Ad Ad `json:"ad"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/ads/"+url.PathEscape(id), nil, nil, "", &envelope); err != nil {
		return Ad{}, err
	}
	return envelope.Ad, nil
}

// CreateAd publishes a new listing owned by the caller.
func (c *Client) CreateAd(ctx context.Context, ad NewAd) (Ad, error) {
	var envelope struct {
		Ad Ad `json:"ad"`
	}
	if err := c.postJSON(ctx, "/api/ads", ad, &envelope); err != nil {
		return Ad{}, err
	}
	return envelope.Ad, nil
}

// UpdateAd applies a partial update to one of the caller's listings.
func (c *Client) UpdateAd(ctx context.Context, id string, patch AdPatch) (Ad, error) {
	var envelope struct {
		Ad Ad `json:"ad"`
	}
	if err := c.putJSON(ctx, "/api/ads/"+url.PathEscape(id), patch, &envelope); err != nil {
		return Ad{}, err
	}
	return envelope.Ad, nil
}

// DeleteAd removes one of the caller's listings.
func (c *Client) DeleteAd(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/ads/"+url.PathEscape(id), nil, nil, "", nil)
}

// MyAds fetches a page of the caller's own listings. Pass an empty status to
// include every lifecycle state.
func (c *Client) MyAds(ctx context.Context, status string, page, limit int) (AdList, error) {
	values := pageValues(page, limit)
	if status != "" {
		values.Set("status", status)
	}

	var list AdList
	if err := c.do(ctx, http.MethodGet, "/api/ads/my/ads", values, nil, "", &list); err != nil {
		return AdList{}, err
	}
	return list, nil
}

// UploadAdImage attaches an image to one of the caller's listings and returns
// the updated ad.
func (c *Client) UploadAdImage(ctx context.Context, id, filename string, contents io.Reader) (Ad, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("image", filename)
	if err != nil {
		return Ad{}, fmt.Errorf("build image form: %w", err)
	}
	if _, err := io.Copy(part, contents); err != nil {
		return Ad{}, fmt.Errorf("read image: %w", err)
	}
	if err := form.Close(); err != nil {
		return Ad{}, fmt.Errorf("finish image form: %w", err)
	}

	var envelope struct {
		Ad Ad `json:"ad"`
	}
	path := "/api/ads/" + url.PathEscape(id) + "/image"
	if err := c.do(ctx, http.MethodPost, path, nil, buf.Bytes(), form.FormDataContentType(), &envelope); err != nil {
		return Ad{}, err
	}
	return envelope.Ad, nil
}

// UserProfile fetches the public subset of another user's profile.
func (c *Client) UserProfile(ctx context.Context, id string) (PublicProfile, error) {
	var envelope struct {
		Profile PublicProfile `json:"profile"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(id), nil, nil, "", &envelope); err != nil {
		return PublicProfile{}, err
	}
	return envelope.Profile, nil
}

// MyProfile fetches the caller's full profile record.
func (c *Client) MyProfile(ctx context.Context) (Profile, error) {
	var envelope struct {
		Profile Profile `json:"profile"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/users/me/profile", nil, nil, "", &envelope); err != nil {
		return Profile{}, err
	}
	return envelope.Profile, nil
}

// UpdateMyProfile applies a partial update to the caller's profile.
func (c *Client) UpdateMyProfile(ctx context.Context, patch ProfilePatch) (Profile, error) {
	var envelope struct {
		Profile Profile `json:"profile"`
	}
	if err := c.putJSON(ctx, "/api/users/me/profile", patch, &envelope); err != nil {
		return Profile{}, err
	}
	return envelope.Profile, nil
}

// UserAds fetches a page of another user's listings.
func (c *Client) UserAds(ctx context.Context, id string, page, limit int) (AdList, error) {
	var list AdList
	path := "/api/users/" + url.PathEscape(id) + "/ads"
	if err := c.do(ctx, http.MethodGet, path, pageValues(page, limit), nil, "", &list); err != nil {
		return AdList{}, err
	}
	return list, nil
}

// SearchUsers looks up public profiles by name.
func (c *Client) SearchUsers(ctx context.Context, q string, page, limit int) (UserSearchResult, error) {
	values := pageValues(page, limit)
	values.Set("q", q)

	var result UserSearchResult
	if err := c.do(ctx, http.MethodGet, "/api/users/search", values, nil, "", &result); err != nil {
		return UserSearchResult{}, err
	}
	return result, nil
}

// CheckHealth fetches the service health report.
func (c *Client) CheckHealth(ctx context.Context) (Health, error) {
	var health Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, "", &health); err != nil {
		return Health{}, err
	}
	return health, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, body, "application/json", out)
}

func (c *Client) putJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, http.MethodPut, path, nil, body, "application/json", out)
}

// do issues the request, attaching the stored bearer token when one is held.
// A 401 on an authenticated request triggers exactly one refresh-and-replay;
// a failed refresh clears the stored tokens and returns ErrSessionExpired.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, contentType string, out any) error {
	token := c.currentAccessToken()

	status, payload, err := c.send(ctx, method, path, query, body, contentType, token)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && token != "" {
		replayToken, refreshErr := c.refreshAfter401(ctx, token)
		if refreshErr != nil {
			return refreshErr
		}

		status, payload, err = c.send(ctx, method, path, query, body, contentType, replayToken)
		if err != nil {
			return err
		}
	}

	if status >= 400 {
		return decodeAPIError(status, payload)
	}

	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body []byte, contentType, token string) (int, []byte, error) {
	target := c.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}

	return resp.StatusCode, payload, nil
}

// refreshAfter401 exchanges the stored refresh token for a new session and
// returns the access token to replay with. When another caller already
// refreshed while we waited on the mutex, its fresh token is reused instead
// of burning a second refresh.
func (c *Client) refreshAfter401(ctx context.Context, staleToken string) (string, error) {
	if c.Store == nil {
		return "", ErrSessionExpired
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	tokens, ok := c.Store.Load()
	if ok && tokens.AccessToken != "" && tokens.AccessToken != staleToken {
		return tokens.AccessToken, nil
	}
	if !ok || tokens.RefreshToken == "" {
		_ = c.Store.Clear()
		return "", ErrSessionExpired
	}

	payload, err := json.Marshal(map[string]string{"refresh_token": tokens.RefreshToken})
	if err != nil {
		return "", fmt.Errorf("encode refresh request: %w", err)
	}

	status, body, err := c.send(ctx, http.MethodPost, "/api/auth/refresh", nil, payload, "application/json", "")
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		_ = c.Store.Clear()
		return "", ErrSessionExpired
	}

	var envelope struct {
		Session json.RawMessage `json:"session"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		_ = c.Store.Clear()
		return "", ErrSessionExpired
	}

	fresh, ok := normalizeSession(envelope.Session, c.now())
	if !ok {
		_ = c.Store.Clear()
		return "", ErrSessionExpired
	}
	if err := c.Store.Save(fresh); err != nil {
		return "", fmt.Errorf("persist refreshed tokens: %w", err)
	}

	return fresh.AccessToken, nil
}

// storeSession normalizes and persists a session object from a response.
// Returns false for absent or null sessions.
func (c *Client) storeSession(raw json.RawMessage) bool {
	tokens, ok := normalizeSession(raw, c.now())
	if !ok {
		return false
	}
	if c.Store != nil {
		if err := c.Store.Save(tokens); err != nil {
			return false
		}
	}
	return true
}

func (c *Client) currentAccessToken() string {
	if c.Store == nil {
		return ""
	}
	tokens, ok := c.Store.Load()
	if !ok {
		return ""
	}
	return tokens.AccessToken
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) now() time.Time {
	if c.NowFunc != nil {
		return c.NowFunc()
	}
	return time.Now()
}

func decodeAPIError(status int, payload []byte) error {
	apiErr := &APIError{Status: status, Err: http.StatusText(status)}

	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &envelope); err == nil {
		if envelope.Error != "" {
			apiErr.Err = envelope.Error
		}
		apiErr.Message = envelope.Message
	}

	return apiErr
}

func pageValues(page, limit int) url.Values {
	values := url.Values{}
	if page > 0 {
		values.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	return values
}
