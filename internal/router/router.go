// Package router wires the HTTP routes of the FormMatic API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/formmatic/formmatic/internal/auth"
	"github.com/formmatic/formmatic/internal/handler"
	"github.com/formmatic/formmatic/internal/metrics"
	mw "github.com/formmatic/formmatic/internal/middleware"
)

// Handlers groups the route handlers.
type Handlers struct {
	Auth        *handler.AuthHandler
	Transaction *handler.TransactionHandler
	Fill        *handler.FillHandler
	Draft       *handler.DraftHandler
	Catalog     *handler.CatalogHandler
}

// Options configures the cross-cutting middleware.
type Options struct {
	JWTSecret   string
	CORSOrigins []string
	RateLimiter *mw.RateLimiter
	Logger      *zap.Logger
}

func New(h Handlers, opts Options) *chi.Mux {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Use(mw.Recovery(log))
	r.Use(mw.Logger(log))
	r.Use(mw.CORS(opts.CORSOrigins))
	r.Use(metrics.InstrumentHandler)

	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(r chi.Router) {
		// Public routes, credentials limited per client IP
		r.Group(func(r chi.Router) {
			if opts.RateLimiter != nil {
				r.Use(opts.RateLimiter.Handler)
			}
			r.Post("/auth/login", h.Auth.Login)
			r.Post("/auth/register", h.Auth.Register)
		})
		r.Get("/scenarios", h.Catalog.Scenarios)
		r.Get("/formCodes", h.Catalog.FormCodes)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(opts.JWTSecret))
			if opts.RateLimiter != nil {
				r.Use(opts.RateLimiter.Handler)
			}

			r.Get("/auth/me", h.Auth.Me)

			// Transactions
			r.Post("/save", h.Transaction.Save)
			r.Post("/update", h.Transaction.Update)
			r.Get("/getRecent", h.Transaction.Recent)
			r.Get("/get", h.Transaction.Search)
			r.Get("/getByDate", h.Transaction.ByDate)
			r.Get("/getByTransaction", h.Transaction.ByTransaction)
			r.Delete("/delete", h.Transaction.Delete)
			r.Put("/put", h.Transaction.Put)

			// Documents
			r.Post("/fillPdf", h.Fill.FillPDF)
			r.Post("/print", h.Fill.Print)

			// Drafts
			r.Get("/draft/{key}", h.Draft.Get)
			r.Put("/draft/{key}", h.Draft.Put)
			r.Delete("/draft", h.Draft.Delete)
		})
	})

	return r
}
