// Package api exposes the HTTP surface: storefront callbacks (orders,
// checkout, page sync), the subscription forms, the provider webhook, and
// the admin catalog endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ignite/listbridge/internal/cache"
	"github.com/ignite/listbridge/internal/config"
	"github.com/ignite/listbridge/internal/ecommerce"
	"github.com/ignite/listbridge/internal/mailchimp"
	"github.com/ignite/listbridge/internal/membership"
	"github.com/ignite/listbridge/internal/subscription"
)

// UserDirectory resolves users for the webhook and the group refresh.
type UserDirectory interface {
	FindUserByEmail(ctx context.Context, email string) (int64, error)
	Email(ctx context.Context, userID int64) (string, error)
}

// Pinger validates provider credentials.
type Pinger interface {
	Ping(ctx context.Context) (*mailchimp.AccountInfo, error)
}

// Server is the HTTP API server.
type Server struct {
	cfg       *config.Config
	orch      *subscription.Orchestrator
	pusher    *ecommerce.Pusher
	store     *membership.Store
	refresher *membership.Refresher
	catalog   *cache.Catalog
	users     UserDirectory
	pinger    Pinger
	log       zerolog.Logger

	handler http.Handler
	server  *http.Server
}

// NewServer creates the API server and builds its routes.
func NewServer(
	cfg *config.Config,
	orch *subscription.Orchestrator,
	pusher *ecommerce.Pusher,
	store *membership.Store,
	refresher *membership.Refresher,
	catalog *cache.Catalog,
	users UserDirectory,
	pinger Pinger,
	log zerolog.Logger,
) *Server {
	s := &Server{
		cfg:       cfg,
		orch:      orch,
		pusher:    pusher,
		store:     store,
		refresher: refresher,
		catalog:   catalog,
		users:     users,
		pinger:    pinger,
		log:       log.With().Str("component", "api").Logger(),
	}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(withVisitorID)

	if len(s.cfg.Server.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.Server.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/webhook", s.handleWebhookVerify)
	r.Post("/webhook", s.handleWebhook)

	r.Post("/subscribe/widget", s.handleSubscribeWidget)
	r.Post("/subscribe/shortcode", s.handleSubscribeShortcode)

	r.Post("/session/sync", s.handleSessionSync)
	r.Get("/groups/refresh", s.handleGroupsRefresh)
	r.Post("/groups/refresh", s.handleGroupsRefresh)

	r.Post("/checkout/checkbox", s.handleCheckboxAvailability)

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", s.handleNewOrder)
		r.Post("/{orderID}/completed", s.handleOrderCompleted)
		r.Post("/{orderID}/status", s.handleOrderStatus)
		r.Delete("/{orderID}", s.handleOrderDeleted)
	})

	r.Route("/catalog", func(r chi.Router) {
		r.Get("/ping", s.handlePing)
		r.Get("/lists", s.handleLists)
		r.Get("/lists/{listID}/groups", s.handleGroups)
	})

	return r
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.server = &http.Server{
		Addr:              s.cfg.Server.Addr(),
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      11 * time.Minute, // outbound provider calls can run long
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
