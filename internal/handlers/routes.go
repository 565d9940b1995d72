package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gearmarket/backend/internal/middleware"
)

// RegisterRoutes wires HTTP handlers into the provided router.
func RegisterRoutes(r chi.Router, deps Dependencies) {
	health := HealthHandler{}
	auth := AuthHandler{
		Users:               deps.Users,
		Profiles:            deps.Profiles,
		Sessions:            deps.Sessions,
		Limiter:             deps.AuthLimiter,
		RequireEmailConfirm: deps.RequireEmailConfirm,
	}
	ads := AdHandler{Ads: deps.Ads, Images: deps.Images}
	users := UserHandler{Profiles: deps.Profiles, Ads: deps.Ads}

	requireAuth := middleware.RequireAuth(deps.Verifier)
	optionalAuth := middleware.OptionalAuth(deps.Verifier)

	r.Get("/health", health.Handle)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", auth.Register)
		r.Post("/login", auth.Login)
		r.Post("/refresh", auth.Refresh)
		r.With(requireAuth).Post("/logout", auth.Logout)
		r.With(requireAuth).Get("/profile", auth.Profile)
		r.With(requireAuth).Put("/profile", auth.UpdateAccount)
	})

	r.Route("/api/ads", func(r chi.Router) {
		r.With(optionalAuth).Get("/", ads.List)
		r.With(requireAuth).Post("/", ads.Create)
		r.With(requireAuth).Get("/my/ads", ads.MyAds)
		r.With(optionalAuth).Get("/{id}", ads.Get)
		r.With(requireAuth).Put("/{id}", ads.Update)
		r.With(requireAuth).Delete("/{id}", ads.Delete)
		r.With(requireAuth).Post("/{id}/image", ads.UploadImage)
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Get("/search", users.Search)
		r.With(requireAuth).Get("/me/profile", users.MyProfile)
		r.With(requireAuth).Put("/me/profile", users.UpdateMyProfile)
		r.Get("/{id}", users.Get)
		r.Get("/{id}/ads", users.ListAds)
	})
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users               UserStore
	Profiles            ProfileStore
	Ads                 AdStore
	Sessions            SessionManager
	Verifier            middleware.TokenVerifier
	Images              ImageStorage
	AuthLimiter         RateLimiter
	RequireEmailConfirm bool
	Metrics             http.Handler
}
