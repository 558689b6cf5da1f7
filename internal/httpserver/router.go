package httpserver

import (
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"crowdwatch/internal/api"
	"crowdwatch/internal/auth"
	"crowdwatch/internal/enrich"
	"crowdwatch/internal/logging"
	"crowdwatch/internal/metrics"
	"crowdwatch/internal/ratelimit"
	"crowdwatch/internal/reports"
)

// Deps is everything the router needs. Realtime, Uploads, Metrics and
// AuthLimiter are optional.
type Deps struct {
	Logger      logrus.FieldLogger
	Auth        *auth.Service
	Reports     reports.Common
	Validate    *validator.Validate
	MaxUpload   int64
	Enrich      *enrich.Handler
	Realtime    http.Handler
	Uploads     http.Handler
	Metrics     *metrics.Metrics
	AuthLimiter *ratelimit.Limiter
	CORSOrigins []string

	// TrustedProxies may set the client address through X-Forwarded-For.
	TrustedProxies []*net.IPNet
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(ratelimit.RealIP(d.TrustedProxies))
	r.Use(logging.Requests(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: explicitOrigins(d.CORSOrigins),
		MaxAge:           300,
	}))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}
	if d.Realtime != nil {
		r.Method(http.MethodGet, "/ws", d.Realtime)
	}
	if d.Uploads != nil {
		r.Method(http.MethodGet, "/uploads/*", d.Uploads)
	}

	secured := auth.JWTMiddleware(d.Auth, d.Logger)

	// Auth
	authHandler := &auth.Handler{Service: d.Auth, Validate: d.Validate, Logger: d.Logger}
	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if d.AuthLimiter != nil {
				r.Use(d.AuthLimiter.Middleware)
			}
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})
		r.With(secured).Get("/verify", authHandler.Verify)
	})

	// Reports
	userReports := &reports.Handler{Common: d.Reports, Validate: d.Validate, MaxUpload: d.MaxUpload}
	r.Route("/api/reports", func(r chi.Router) {
		r.Use(secured)
		r.Post("/", userReports.Create)
		r.Get("/my-reports", userReports.Mine)
		r.Get("/{id}", userReports.Get)
		r.Put("/{id}/status", userReports.TouchStatus)
		r.Delete("/{id}", userReports.Delete)
	})

	// Admin
	admin := &reports.AdminHandler{Common: d.Reports, Validate: d.Validate}
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(secured, auth.RequireRole(auth.RoleAdmin))
		r.Get("/reports", admin.List)
		r.Put("/reports/{id}/status", admin.UpdateStatus)
		r.Put("/reports/{id}/assign", admin.Assign)
		r.Delete("/reports/{id}", admin.Delete)
		r.Get("/stats", admin.Stats)
		r.Get("/export", admin.Export)
	})

	// Enrichment
	if d.Enrich != nil {
		r.Group(func(r chi.Router) {
			r.Use(secured)
			r.Get("/api/geocode/reverse", d.Enrich.ReverseGeocode)
			r.Post("/api/classify", d.Enrich.Classify)
			r.Post("/api/translate", d.Enrich.Translate)
		})
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.Error(w, http.StatusNotFound, "Route not found")
	})
	return r
}

// explicitOrigins reports whether credentials may be allowed. With a wildcard
// go-chi/cors would echo any requesting origin.
func explicitOrigins(origins []string) bool {
	if len(origins) == 0 {
		return false
	}
	for _, o := range origins {
		if strings.Contains(o, "*") {
			return false
		}
	}
	return true
}
