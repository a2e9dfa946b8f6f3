package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/middleware"
)

// Options carries the cross-cutting router configuration.
type Options struct {
	JWTSecret      string
	DefaultLocale  string
	AllowedOrigins []string
	RateLimit      int
	CountryLookup  middleware.CountryLookup
	StaticDir      string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)
	if opts.RateLimit > 0 {
		r.Use(middleware.RateLimit(opts.RateLimit, time.Minute))
	}

	r.Get("/v1/healthz", app.Health)
	r.Post("/v1/auth/google", app.AuthGoogleVerify)
	r.Get("/v1/stats", app.PlatformStats)
	r.Get("/v1/stats/top", app.TopResources)

	// Public catalog; the optional token only adds per-user annotations.
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWTOptional(opts.JWTSecret))
		r.Get("/v1/resources", app.ListResources)
		r.Get("/v1/resources/search", app.SearchResources)
		r.Get("/v1/resources/{id}", app.GetResource)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret))

		r.Get("/v1/me", app.Me)
		r.Post("/v1/auth/logout", app.Logout)

		r.Post("/v1/resources", app.CreateResource)
		r.Delete("/v1/resources/{id}", app.DeleteResource)
		r.Post("/v1/resources/{id}/download", app.DownloadResource)
		r.Post("/v1/resources/{id}/rating", app.RateResource)
		r.Post("/v1/resources/{id}/validate", app.ToggleValidation)

		r.Put("/v1/me/favorites/{id}", app.AddFavorite)
		r.Delete("/v1/me/favorites/{id}", app.RemoveFavorite)
		r.Get("/v1/me/favorites", app.ListFavorites)

		r.Get("/v1/me/quota", app.GetQuota)
		r.Get("/v1/me/quota/events", app.QuotaEvents)

		r.Post("/v1/billing/checkout", app.CreateCheckout)
		r.Post("/v1/billing/confirm", app.ConfirmUpgrade)
		r.Get("/v1/billing/upgrades", app.ListUpgrades)
	})

	if opts.StaticDir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}
