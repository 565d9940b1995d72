package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gearmarket/backend/internal/logging"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 50
)

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

// respondError emits the stable failure envelope. Internal error objects never
// cross this boundary.
func respondError(ctx context.Context, w http.ResponseWriter, status int, title, message string) {
	respondJSON(ctx, w, status, map[string]string{
		"error":   title,
		"message": message,
	})
}

// parsePagination extracts page and limit query parameters, clamping them to
// page >= 1 and 1 <= limit <= 50, and derives the row offset.
func parsePagination(query url.Values) (page, limit, offset int) {
	page = 1
	if raw := query.Get("page"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 1 {
			page = v
		}
	}

	limit = defaultPageLimit
	if raw := query.Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	return page, limit, (page - 1) * limit
}
