package auth

import (
	"context"
	"testing"
	"time"
)

func TestManagerIssueAndVerify(t *testing.T) {
	store := NewInMemorySessionStore()
	manager := NewManager("test-secret", time.Minute, time.Hour, store)

	identity := Identity{ID: "user-1", Email: "buyer@example.com", Role: "authenticated"}
	tokens, err := manager.Issue(context.Background(), identity)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("expected both tokens to be issued, got %+v", tokens)
	}

	if !store.Has(tokens.RefreshToken) {
		t.Fatal("expected refresh token to be persisted")
	}

	verified, err := manager.Verify(tokens.AccessToken)
	if err != nil {
		t.Fatalf("verify access token: %v", err)
	}
	if verified != identity {
		t.Fatalf("expected identity %+v, got %+v", identity, verified)
	}
}

func TestManagerVerifyRejectsForgedTokens(t *testing.T) {
	store := NewInMemorySessionStore()
	manager := NewManager("test-secret", time.Minute, time.Hour, store)
	other := NewManager("other-secret", time.Minute, time.Hour, NewInMemorySessionStore())

	tokens, err := other.Issue(context.Background(), Identity{ID: "user-1"})
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	if _, err := manager.Verify(tokens.AccessToken); err == nil {
		t.Fatal("expected token signed with a different secret to fail verification")
	}

	if _, err := manager.Verify("not-a-jwt"); err == nil {
		t.Fatal("expected malformed token to fail verification")
	}

	if _, err := manager.Verify(""); err == nil {
		t.Fatal("expected empty token to fail verification")
	}
}

func TestManagerRefreshRotatesTokens(t *testing.T) {
	store := NewInMemorySessionStore()
	manager := NewManager("test-secret", time.Minute, time.Hour, store)

	identity := Identity{ID: "user-1", Email: "buyer@example.com", Role: "authenticated"}
	tokens, err := manager.Issue(context.Background(), identity)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	refreshed, err := manager.Refresh(context.Background(), tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh tokens: %v", err)
	}

	if refreshed.RefreshToken == tokens.RefreshToken {
		t.Fatal("expected a new refresh token to be issued")
	}
	if store.Has(tokens.RefreshToken) {
		t.Fatal("expected the spent refresh token to be deleted")
	}

	verified, err := manager.Verify(refreshed.AccessToken)
	if err != nil {
		t.Fatalf("verify refreshed access token: %v", err)
	}
	if verified != identity {
		t.Fatalf("expected identity to survive refresh, got %+v", verified)
	}

	if _, err := manager.Refresh(context.Background(), tokens.RefreshToken); err == nil {
		t.Fatal("expected reuse of a spent refresh token to fail")
	}
}

func TestManagerRefreshExpired(t *testing.T) {
	store := NewInMemorySessionStore()
	manager := NewManager("test-secret", time.Minute, time.Hour, store)

	expired := Session{
		RefreshToken: "stale-token",
		UserID:       "user-1",
		ExpiresAt:    time.Now().UTC().Add(-time.Minute),
	}
	if err := store.Save(context.Background(), expired); err != nil {
		t.Fatalf("save session: %v", err)
	}

	if _, err := manager.Refresh(context.Background(), "stale-token"); err != ErrRefreshTokenExpired {
		t.Fatalf("expected ErrRefreshTokenExpired, got %v", err)
	}

	if store.Has("stale-token") {
		t.Fatal("expected expired session to be removed")
	}
}

func TestManagerRevokeAll(t *testing.T) {
	store := NewInMemorySessionStore()
	manager := NewManager("test-secret", time.Minute, time.Hour, store)

	first, err := manager.Issue(context.Background(), Identity{ID: "user-1"})
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}
	second, err := manager.Issue(context.Background(), Identity{ID: "user-1"})
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}
	other, err := manager.Issue(context.Background(), Identity{ID: "user-2"})
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	manager.RevokeAll(context.Background(), "user-1")

	if store.Has(first.RefreshToken) || store.Has(second.RefreshToken) {
		t.Fatal("expected all of the user's refresh tokens to be revoked")
	}
	if !store.Has(other.RefreshToken) {
		t.Fatal("expected other users' sessions to remain")
	}
}
