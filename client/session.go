package client

import (
	"encoding/json"
	"time"
)

const defaultSessionLifetime = 3600 * time.Second

// wireSession tolerates the field-name variants the server and older
// deployments have emitted for session objects. Variants stop here: the rest
// of the package only sees Tokens.
type wireSession struct {
	AccessToken       string `json:"access_token"`
	AccessTokenCamel  string `json:"accessToken"`
	BareToken         string `json:"token"`
	RefreshToken      string `json:"refresh_token"`
	RefreshTokenCamel string `json:"refreshToken"`
	ExpiresIn         int64  `json:"expires_in"`
	ExpiresInCamel    int64  `json:"expiresIn"`
	ExpiresAt         int64  `json:"expires_at"`
	ExpiresAtCamel    int64  `json:"expiresAt"`
}

// normalizeSession converts a raw session object into the canonical triple.
// The absolute expiry wins over a relative lifetime; a session with neither
// defaults to one hour.
func normalizeSession(raw json.RawMessage, now time.Time) (Tokens, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return Tokens{}, false
	}

	var wire wireSession
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Tokens{}, false
	}

	access := firstNonEmpty(wire.AccessToken, wire.AccessTokenCamel, wire.BareToken)
	if access == "" {
		return Tokens{}, false
	}

	tokens := Tokens{
		AccessToken:  access,
		RefreshToken: firstNonEmpty(wire.RefreshToken, wire.RefreshTokenCamel),
	}

	switch {
	case wire.ExpiresAt > 0:
		tokens.ExpiresAt = time.Unix(wire.ExpiresAt, 0)
	case wire.ExpiresAtCamel > 0:
		tokens.ExpiresAt = time.Unix(wire.ExpiresAtCamel, 0)
	case wire.ExpiresIn > 0:
		tokens.ExpiresAt = now.Add(time.Duration(wire.ExpiresIn) * time.Second)
	case wire.ExpiresInCamel > 0:
		tokens.ExpiresAt = now.Add(time.Duration(wire.ExpiresInCamel) * time.Second)
	default:
		tokens.ExpiresAt = now.Add(defaultSessionLifetime)
	}

	return tokens, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
