// Package api provides the HTTP API used by the popup, overlay and options
// pages.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/artpar/envswitch/internal/core/domain"
	"github.com/artpar/envswitch/internal/core/urlbuild"
	"github.com/artpar/envswitch/internal/shell/api/middleware"
	"github.com/artpar/envswitch/internal/shell/api/openapi"
	"github.com/artpar/envswitch/internal/shell/clip"
	"github.com/artpar/envswitch/internal/shell/navigate"
	"github.com/artpar/envswitch/internal/shell/store"
	"github.com/artpar/envswitch/internal/shell/switcher"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// =============================================================================
// Handler
// =============================================================================

// Config holds optional settings for the handler.
type Config struct {
	// AllowedOrigins are the CORS origins allowed to call the API, e.g.
	// "chrome-extension://<id>". Empty allows any origin.
	AllowedOrigins []string

	// AllowRemote accepts requests from non-loopback addresses.
	AllowRemote bool

	// Version is reported in the OpenAPI document.
	Version string
}

// Handler provides HTTP handlers for the API.
type Handler struct {
	svc     *switcher.Service
	logger  *slog.Logger
	cfg     Config
	openapi *openapi.Generator
}

// NewHandler creates a new API handler.
func NewHandler(svc *switcher.Service, l *slog.Logger, cfg Config) *Handler {
	if l == nil {
		l = slog.Default()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return &Handler{
		svc:     svc,
		logger:  l,
		cfg:     cfg,
		openapi: newSpecGenerator(cfg.Version),
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(h.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(corsOptions(h.cfg.AllowedOrigins)))
	r.Use(middleware.NewAccessMiddleware(middleware.AccessConfig{
		AllowRemote: h.cfg.AllowRemote,
		Logger:      h.logger,
	}).Handler)
	if h.cfg.AllowRemote {
		r.Use(chimw.RealIP)
	}
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusNotFound, "Not Found", "no route for "+r.Method+" "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed", r.Method+" is not supported on "+r.URL.Path)
	})

	// Health and docs
	r.Get("/health", h.handleHealth)
	r.Get("/openapi.json", h.openapi.Handler())

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Switcher routes
		r.Get("/context", h.handleContext)
		r.Post("/switch", h.handleSwitch)
		r.Post("/copy", h.handleCopy)

		// Settings routes
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.handleGetSettings)
			r.Put("/", h.handleReplaceSettings)
			r.Post("/reset", h.handleResetSettings)
			r.Patch("/flags/{key}", h.handleSetFlag)
			r.Post("/collapsed/toggle", h.handleToggleCollapsed)
			r.Get("/rules", h.handleGetRules)
			r.Put("/rules", h.handleSetRules)
		})

		// Project routes
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.handleListProjects)
			r.Post("/", h.handleCreateProject)
			r.Get("/{name}", h.handleGetProject)
			r.Patch("/{name}", h.handleUpdateProject)
			r.Delete("/{name}", h.handleDeleteProject)
			r.Post("/{name}/domains", h.handleAddDomain)
			r.Put("/{name}/domains/{domain}", h.handleEditDomain)
			r.Delete("/{name}/domains/{domain}", h.handleRemoveDomain)
			r.Post("/{name}/tools", h.handleAddTool)
			r.Delete("/{name}/tools", h.handleRemoveTool)
		})
	})

	return r
}

func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := chimw.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// =============================================================================
// Helper Functions
// =============================================================================

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, http.StatusBadRequest, "Bad Request", "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, title, detail string) {
	h.writeJSON(w, status, ErrorResponse{
		Errors: []APIError{{
			Status: strconv.Itoa(status),
			Title:  title,
			Detail: detail,
		}},
	})
}

// writeServiceError maps a service error to a status code. Errors that are
// not the caller's fault are logged and reported without detail.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(op+" failed", "error", err, "request_id", chimw.GetReqID(r.Context()))
		h.writeError(w, status, http.StatusText(status), op+" failed")
		return
	}
	h.writeError(w, status, http.StatusText(status), err.Error())
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrProjectNotFound),
		errors.Is(err, domain.ErrDomainNotFound),
		errors.Is(err, domain.ErrToolNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrProjectExists),
		errors.Is(err, domain.ErrDomainExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrEmptyName),
		errors.Is(err, domain.ErrEmptyDomain),
		errors.Is(err, domain.ErrEmptyToolURL),
		errors.Is(err, domain.ErrUnknownSettingKey),
		errors.Is(err, domain.ErrNotAFlag),
		errors.Is(err, urlbuild.ErrInvalidURL),
		errors.Is(err, switcher.ErrEmptyTarget),
		errors.Is(err, switcher.ErrWildcardTarget),
		errors.Is(err, store.ErrUnknownKey),
		errors.Is(err, store.ErrInvalidData):
		return http.StatusBadRequest
	case errors.Is(err, switcher.ErrInvalidSettings):
		return http.StatusUnprocessableEntity
	case errors.Is(err, navigate.ErrNoIncognitoCommand),
		errors.Is(err, clip.ErrUnsupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
