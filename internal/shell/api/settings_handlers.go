package api

import (
	"errors"
	"net/http"

	"github.com/artpar/envswitch/internal/core/domain"
	"github.com/artpar/envswitch/internal/core/validation"
	"github.com/artpar/envswitch/internal/shell/switcher"
	"github.com/go-chi/chi/v5"
)

// =============================================================================
// Settings Handlers
// =============================================================================

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.Settings(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "load settings", err)
		return
	}

	h.writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) handleReplaceSettings(w http.ResponseWriter, r *http.Request) {
	next := domain.DefaultSettings()
	if !h.decode(w, r, &next) {
		return
	}

	warnings, err := h.svc.Replace(r.Context(), next)
	if errors.Is(err, switcher.ErrInvalidSettings) {
		h.writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Errors: []APIError{{
				Status: "422",
				Title:  "Unprocessable Entity",
				Detail: err.Error(),
				Fields: warnings,
			}},
		})
		return
	}
	if err != nil {
		h.writeServiceError(w, r, "save settings", err)
		return
	}

	saved, err := h.svc.Settings(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "load settings", err)
		return
	}

	h.writeJSON(w, http.StatusOK, SettingsResponse{Settings: saved, Warnings: nonNil(warnings)})
}

func (h *Handler) handleResetSettings(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Reset(r.Context()); err != nil {
		h.writeServiceError(w, r, "reset settings", err)
		return
	}

	h.writeJSON(w, http.StatusOK, domain.DefaultSettings())
}

func (h *Handler) handleSetFlag(w http.ResponseWriter, r *http.Request) {
	key, err := domain.ParseSettingKey(chi.URLParam(r, "key"))
	if err != nil {
		h.writeServiceError(w, r, "set flag", err)
		return
	}

	var req FlagRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Value == nil {
		h.writeError(w, http.StatusBadRequest, "Bad Request", "value is required")
		return
	}

	if err := h.svc.SetFlag(r.Context(), key, *req.Value); err != nil {
		h.writeServiceError(w, r, "set flag", err)
		return
	}

	h.writeJSON(w, http.StatusOK, FlagResponse{Key: key, Value: *req.Value})
}

func (h *Handler) handleToggleCollapsed(w http.ResponseWriter, r *http.Request) {
	collapsed, err := h.svc.ToggleCollapsed(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "toggle collapsed", err)
		return
	}

	h.writeJSON(w, http.StatusOK, FlagResponse{Key: domain.KeyCollapsedState, Value: collapsed})
}

// =============================================================================
// Protocol Rule Handlers
// =============================================================================

func (h *Handler) handleGetRules(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.Settings(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "load rules", err)
		return
	}

	h.writeJSON(w, http.StatusOK, RulesResponse{
		Rules:    settings.ProtocolRules,
		Text:     domain.FormatProtocolRules(settings.ProtocolRules),
		Warnings: nonNil(validation.ValidateProtocolRules(settings.ProtocolRules)),
	})
}

func (h *Handler) handleSetRules(w http.ResponseWriter, r *http.Request) {
	var req RulesRequest
	if !h.decode(w, r, &req) {
		return
	}

	rules := req.Rules
	if req.Text != nil {
		rules = domain.ParseProtocolRulesText(*req.Text)
	}
	if rules == nil {
		rules = []string{}
	}

	updated, err := h.svc.Edit(r.Context(), func(s *domain.Settings) error {
		s.ProtocolRules = rules
		return nil
	})
	if err != nil {
		h.writeServiceError(w, r, "save rules", err)
		return
	}

	h.writeJSON(w, http.StatusOK, RulesResponse{
		Rules:    updated.ProtocolRules,
		Text:     domain.FormatProtocolRules(updated.ProtocolRules),
		Warnings: nonNil(validation.ValidateProtocolRules(updated.ProtocolRules)),
	})
}

func nonNil(errs []validation.FieldError) []validation.FieldError {
	if errs == nil {
		return []validation.FieldError{}
	}
	return errs
}
