// Package middleware provides HTTP middleware for the envswitch API.
package middleware

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
)

// =============================================================================
// Access Configuration
// =============================================================================

// AccessConfig holds configuration for the access middleware.
type AccessConfig struct {
	// AllowRemote accepts requests from non-loopback addresses. When false,
	// only 127.0.0.0/8 and ::1 may call the API.
	AllowRemote bool

	// Logger for access middleware logging.
	Logger *slog.Logger
}

// =============================================================================
// Access Middleware
// =============================================================================

// AccessMiddleware rejects requests the local API should not serve. The
// settings it guards drive browser navigation, so by default only the local
// machine may reach it.
type AccessMiddleware struct {
	config AccessConfig
}

// NewAccessMiddleware creates a new access middleware with the given config.
func NewAccessMiddleware(cfg AccessConfig) *AccessMiddleware {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &AccessMiddleware{config: cfg}
}

// Handler returns the middleware handler function.
// It must run before any middleware that rewrites RemoteAddr from headers.
func (m *AccessMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.config.AllowRemote && !IsLoopback(r.RemoteAddr) {
			m.config.Logger.Warn("rejected non-local request",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			writeJSONError(w, http.StatusForbidden, "Forbidden", "API only accepts local connections")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// IsLoopback reports whether a RemoteAddr ("host:port" or bare host) is a
// loopback address.
func IsLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// =============================================================================
// JSON Error Response
// =============================================================================

// JSONAPIError represents a JSON:API error object.
type JSONAPIError struct {
	Status string `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

// JSONAPIErrorResponse represents a JSON:API error response.
type JSONAPIErrorResponse struct {
	Errors []JSONAPIError `json:"errors"`
}

// writeJSONError writes a JSON:API formatted error response.
func writeJSONError(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(JSONAPIErrorResponse{
		Errors: []JSONAPIError{
			{
				Status: strconv.Itoa(status),
				Title:  title,
				Detail: detail,
			},
		},
	})
}
