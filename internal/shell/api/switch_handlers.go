package api

import (
	"net/http"

	"github.com/artpar/envswitch/internal/shell/switcher"
)

// =============================================================================
// Switcher Handlers
// =============================================================================

func (h *Handler) handleContext(w http.ResponseWriter, r *http.Request) {
	pageURL := r.URL.Query().Get("url")
	if pageURL == "" {
		h.writeError(w, http.StatusBadRequest, "Bad Request", "url query parameter is required")
		return
	}

	view, err := h.svc.Context(r.Context(), pageURL)
	if err != nil {
		h.writeServiceError(w, r, "resolve context", err)
		return
	}

	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleSwitch(w http.ResponseWriter, r *http.Request) {
	var req SwitchRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.URL == "" {
		h.writeError(w, http.StatusBadRequest, "Bad Request", "url is required")
		return
	}

	result, err := h.svc.Switch(r.Context(), switcher.SwitchRequest{
		PageURL:  req.URL,
		Domain:   req.Domain,
		Protocol: req.Protocol,
		DryRun:   req.DryRun,
	})
	if err != nil {
		h.writeServiceError(w, r, "switch", err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleCopy(w http.ResponseWriter, r *http.Request) {
	var req CopyRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.URL == "" {
		h.writeError(w, http.StatusBadRequest, "Bad Request", "url is required")
		return
	}

	var (
		copied string
		err    error
	)
	switch req.What {
	case "path":
		copied, err = h.svc.CopyPath(r.Context(), req.URL)
	case "url":
		copied, err = h.svc.CopyURL(r.Context(), req.URL, req.Domain, req.Protocol)
	default:
		h.writeError(w, http.StatusBadRequest, "Bad Request", `what must be "path" or "url"`)
		return
	}
	if err != nil {
		h.writeServiceError(w, r, "copy", err)
		return
	}

	h.writeJSON(w, http.StatusOK, CopyResponse{Copied: copied})
}
