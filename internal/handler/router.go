package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	catalogueHandler "github.com/mobiledjay/backend/internal/handler/catalogue"
	"github.com/mobiledjay/backend/internal/handler/dj"
	"github.com/mobiledjay/backend/internal/handler/live"
	"github.com/mobiledjay/backend/internal/handler/patron"
	middlewarePkg "github.com/mobiledjay/backend/internal/middleware"
	"github.com/mobiledjay/backend/internal/model/catalogue"
	"github.com/mobiledjay/backend/internal/service/coordination"
	"github.com/mobiledjay/backend/pkg/utils"
)

// Dependencies are the services the HTTP surface is built on.
type Dependencies struct {
	Store     *coordination.Store
	Songs     catalogue.Store
	Karaoke   catalogue.Store
	Deliverer patron.Deliverer
	// Limiter throttles patron submissions; nil disables throttling.
	Limiter *middlewarePkg.RateLimiter
	Live    live.Config
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	var limit func(http.Handler) http.Handler
	if deps.Limiter != nil {
		limit = deps.Limiter.Handler
	}

	// Create handlers
	patronHandler := patron.New(deps.Store, deps.Songs, deps.Karaoke, deps.Deliverer, limit)
	djHandler := dj.New(deps.Store)
	catalogueRoutes := catalogueHandler.New(deps.Songs, deps.Karaoke)
	liveHandler := live.New(deps.Store, deps.Live)

	r.Route("/api", func(api chi.Router) {
		patronHandler.RegisterRoutes(api)
		djHandler.RegisterRoutes(api)
		catalogueRoutes.RegisterRoutes(api)
		liveHandler.RegisterRoutes(api)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	return r
}
