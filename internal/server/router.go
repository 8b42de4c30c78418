package server

import (
	"net/http"
	"time"

	"github.com/STTM-NSU/fintrack/internal/logger"
	"github.com/STTM-NSU/fintrack/internal/portfolio"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type API struct {
	svc    *portfolio.Service
	logger logger.Logger
}

func NewRouter(svc *portfolio.Service, logger logger.Logger) http.Handler {
	a := &API{
		svc:    svc,
		logger: logger.With("component", "api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(a.logRequests)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", a.health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/investments", func(r chi.Router) {
			r.Get("/", a.listPositions)
			r.Post("/", a.createPosition)
			r.Get("/overview", a.overview)
			r.Get("/merged", a.merged)
			r.Get("/{id}", a.getPosition)
			r.Put("/{id}", a.updatePosition)
			r.Delete("/{id}", a.deletePosition)
			r.Get("/{id}/history", a.positionLots)
			r.Post("/{id}/history", a.addPositionLot)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", a.listCategories)
			r.Post("/", a.createCategory)
			r.Delete("/{id}", a.deleteCategory)
		})

		r.Get("/marketprices/{assetName}", a.marketPrices)

		r.Route("/portfolio", func(r chi.Router) {
			r.Get("/stats", a.stats)
			r.Get("/history", a.history)
			r.Get("/change", a.change)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/refresh", a.runRefresh)
			r.Post("/backfill", a.runBackfill)
		})
	})

	return r
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.logger.Debugf("%s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}
