package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pranavmodi/salesbot-sub002/internal/auth"
	"github.com/pranavmodi/salesbot-sub002/internal/cleaner"
	"github.com/pranavmodi/salesbot-sub002/internal/config"
	"github.com/pranavmodi/salesbot-sub002/internal/crm"
	"github.com/pranavmodi/salesbot-sub002/internal/leadgen"
	"github.com/pranavmodi/salesbot-sub002/internal/logs"
	"github.com/pranavmodi/salesbot-sub002/internal/outreach"
	"github.com/pranavmodi/salesbot-sub002/internal/pkg/httputil"
	"github.com/pranavmodi/salesbot-sub002/internal/tracking"
	"github.com/pranavmodi/salesbot-sub002/internal/worker"
)

type ctxKey int

const tenantKey ctxKey = 0

// Server is the HTTP API over the CRM, outreach, research, and leadgen
// services. Every /api route is tenant-scoped through the X-Tenant-ID
// header.
type Server struct {
	cfg         *config.Config
	store       *crm.Store
	templates   *outreach.TemplateStore
	history     *outreach.HistoryStore
	leads       *leadgen.Store
	logManager  *logs.Manager
	cleaner     *cleaner.Cleaner
	scheduler   *worker.Scheduler
	trackingH   *tracking.Handler
	authManager *auth.Manager
	router      *chi.Mux
	server      *http.Server
}

// Deps carries the constructed services the API exposes.
type Deps struct {
	DB          *sql.DB
	Redis       *redis.Client
	Store       *crm.Store
	Templates   *outreach.TemplateStore
	History     *outreach.HistoryStore
	Leads       *leadgen.Store
	LogManager  *logs.Manager
	Scheduler   *worker.Scheduler
	AuthManager *auth.Manager
}

// NewServer assembles the router.
func NewServer(cfg *config.Config, d Deps) *Server {
	s := &Server{
		cfg:         cfg,
		store:       d.Store,
		templates:   d.Templates,
		history:     d.History,
		leads:       d.Leads,
		logManager:  d.LogManager,
		cleaner:     cleaner.New(d.DB),
		scheduler:   d.Scheduler,
		authManager: d.AuthManager,
	}

	rec := tracking.NewRecorder(d.DB, d.Redis)
	s.trackingH = tracking.NewHandler(rec, cfg.Email.TrackingSecret, cfg.Email.TrackingBaseURL)

	s.router = s.routes()
	return s
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	// CORS - allow credentials for auth cookies
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Tenant-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	// Tracking routes stay unauthenticated: they are hit from
	// recipients' mail clients.
	r.Mount("/t", s.trackingH.Routes())

	if s.authManager != nil {
		r.Get("/auth/login", s.authManager.HandleLogin)
		r.Get("/auth/callback", s.authManager.HandleCallback(s.defaultTenantID))
		r.Get("/auth/logout", s.authManager.HandleLogout)
		r.Get("/auth/user", s.authManager.HandleUserInfo)
	}

	r.Route("/api", func(r chi.Router) {
		if s.authManager != nil && s.cfg.Auth.Enabled {
			r.Use(s.requireAuth)
		}
		r.Use(s.requireTenant)

		r.Route("/companies", func(r chi.Router) {
			r.Get("/", s.handleListCompanies)
			r.Post("/", s.handleCreateCompany)
			r.Get("/{id}", s.handleGetCompany)
			r.Put("/{id}", s.handleUpdateCompany)
			r.Delete("/{id}", s.handleDeleteCompany)
			r.Post("/{id}/research", s.handleTriggerResearch)
			r.Delete("/{id}/research", s.handleClearCompanyResearch)
		})

		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", s.handleListContacts)
			r.Post("/", s.handleCreateContact)
			r.Get("/{id}", s.handleGetContact)
			r.Put("/{id}", s.handleUpdateContact)
			r.Delete("/{id}", s.handleDeleteContact)
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", s.handleListCampaigns)
			r.Post("/", s.handleCreateCampaign)
			r.Get("/{id}", s.handleGetCampaign)
			r.Put("/{id}/status", s.handleSetCampaignStatus)
			r.Post("/{id}/send", s.handleSendCampaign)
			r.Get("/{id}/contacts", s.handleListCampaignContacts)
			r.Post("/{id}/contacts", s.handleAddCampaignContacts)
		})

		r.Route("/email", func(r chi.Router) {
			r.Get("/history", s.handleListHistory)
			r.Delete("/history", s.handleClearHistory)
			r.Get("/templates", s.handleListTemplates)
			r.Post("/templates", s.handleCreateTemplate)
			r.Get("/templates/{id}", s.handleGetTemplate)
			r.Put("/templates/{id}", s.handleUpdateTemplate)
			r.Post("/templates/{id}/preview", s.handlePreviewTemplate)
			r.Get("/accounts", s.handleEmailAccounts)
			r.Get("/config/debug", s.handleEmailConfigDebug)
		})

		r.Route("/leadgen", func(r chi.Router) {
			r.Get("/companies", s.handleLeadgenCompanies)
			r.Get("/postings", s.handleLeadgenPostings)
			r.Get("/logs", s.handleLeadgenLogs)
			r.Post("/fetch", s.handleLeadgenFetch)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/logs", s.handleListLogFiles)
			r.Get("/logs/{name}", s.handleReadLogFile)
			r.Get("/cleanup/preview", s.handleCleanupPreview)
		})
	})

	return r
}

// requireAuth rejects unauthenticated /api requests.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authManager.IsAuthenticated(r) {
			httputil.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireTenant resolves the tenant from the X-Tenant-ID header and
// stores it on the request context.
func (s *Server) requireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-Tenant-ID")
		if raw == "" {
			httputil.BadRequest(w, "missing X-Tenant-ID header")
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.BadRequest(w, "invalid X-Tenant-ID header")
			return
		}
		ctx := context.WithValue(r.Context(), tenantKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tenantID(r *http.Request) uuid.UUID {
	id, _ := r.Context().Value(tenantKey).(uuid.UUID)
	return id
}

// defaultTenantID resolves the tenant for OAuth logins: the header when
// present, otherwise the first tenant row (single-tenant deployments).
func (s *Server) defaultTenantID(r *http.Request) string {
	if raw := r.Header.Get("X-Tenant-ID"); raw != "" {
		return raw
	}
	tenants, err := s.store.ListTenants(r.Context())
	if err != nil || len(tenants) == 0 {
		return ""
	}
	return tenants[0].ID.String()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
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
