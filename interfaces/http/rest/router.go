package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"artion-backend/application/ports"
	"artion-backend/application/sagas"
	"artion-backend/infrastructure/config"
	"artion-backend/infrastructure/observability"
	"artion-backend/interfaces/http/rest/handlers"
	"artion-backend/interfaces/http/rest/middleware"
	"artion-backend/pkg/auth"
	"artion-backend/pkg/common"
	pkgerrors "artion-backend/pkg/errors"
)

// Router creates and configures the HTTP router
type Router struct {
	registry  *sagas.Registry
	orphans   ports.OrphanStore
	validator *auth.JWTValidator
	collector *observability.Collector
	config    *config.Config
	logger    *zap.Logger
}

// NewRouter creates a new router instance. collector may be nil when
// metrics are disabled.
func NewRouter(
	registry *sagas.Registry,
	orphans ports.OrphanStore,
	validator *auth.JWTValidator,
	collector *observability.Collector,
	cfg *config.Config,
	logger *zap.Logger,
) *Router {
	return &Router{
		registry:  registry,
		orphans:   orphans,
		validator: validator,
		collector: collector,
		config:    cfg,
		logger:    logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	var recorder middleware.RequestRecorder
	if rt.collector != nil {
		recorder = rt.collector
	}

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger, recorder))

	if rt.config.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   rt.config.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.collector != nil {
		router.Handle("/metrics", rt.collector.Handler())
	}

	errHandler := pkgerrors.NewErrorHandler(rt.logger, rt.config.IsDevelopment())
	sessions := handlers.NewSessionHandler(rt.registry, errHandler, rt.logger)
	orphans := handlers.NewOrphanHandler(rt.orphans, errHandler, rt.logger)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.validator, rt.logger))

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessions.OpenSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", sessions.GetSession)
				r.Delete("/", sessions.CloseSession)
				r.Put("/selection", sessions.ReplaceSelection)
				r.Post("/selection/items", sessions.AddItem)
				r.Delete("/selection/items/{contract}/{tokenID}", sessions.RemoveItem)
				r.Get("/authorization", sessions.GetAuthorization)
				r.Post("/approve", sessions.Approve)
				r.Post("/commit", sessions.Commit)
			})
		})

		r.Route("/orphans", func(r chi.Router) {
			r.Get("/", orphans.ListOrphans)
			r.Post("/{bundleID}/resolve", orphans.ResolveOrphan)
		})
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ready",
		"sessions": rt.registry.Len(),
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}
