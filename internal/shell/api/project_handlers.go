package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/artpar/envswitch/internal/core/domain"
	"github.com/go-chi/chi/v5"
)

// =============================================================================
// Project Handlers
// =============================================================================

func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.Settings(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "list projects", err)
		return
	}

	h.writeJSON(w, http.StatusOK, ListProjectsResponse{
		Projects: settings.Projects,
		Total:    len(settings.Projects),
	})
}

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")

	settings, err := h.svc.Settings(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "get project", err)
		return
	}
	project, err := settings.FindProject(name)
	if err != nil {
		h.writeServiceError(w, r, "get project", err)
		return
	}

	h.writeJSON(w, http.StatusOK, project)
}

func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if !h.decode(w, r, &req) {
		return
	}

	var created domain.Project
	_, err := h.svc.Edit(r.Context(), func(s *domain.Settings) error {
		p, err := s.AddProject(req.Name)
		if err != nil {
			return err
		}
		created = p.Clone()
		return nil
	})
	if err != nil {
		h.writeServiceError(w, r, "create project", err)
		return
	}

	h.logger.Info("project created", "name", created.Name)
	h.writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")

	var req UpdateProjectRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.editProject(w, r, "update project", name, func(s *domain.Settings) (string, error) {
		if req.FloatingEnabled != nil {
			if err := s.SetFloatingEnabled(name, *req.FloatingEnabled); err != nil {
				return "", err
			}
		}
		if req.Name != nil {
			if err := s.RenameProject(name, *req.Name); err != nil {
				return "", err
			}
			return strings.TrimSpace(*req.Name), nil
		}
		return name, nil
	})
}

func (h *Handler) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")

	_, err := h.svc.Edit(r.Context(), func(s *domain.Settings) error {
		return s.DeleteProject(name)
	})
	if err != nil {
		h.writeServiceError(w, r, "delete project", err)
		return
	}

	h.logger.Info("project deleted", "name", name)
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Domain Handlers
// =============================================================================

func (h *Handler) handleAddDomain(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")

	var req DomainRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.editProject(w, r, "add domain", name, func(s *domain.Settings) (string, error) {
		return name, s.AddDomain(name, req.Domain, req.Label)
	})
}

func (h *Handler) handleEditDomain(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	oldDomain := pathParam(r, "domain")

	var req DomainRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.editProject(w, r, "edit domain", name, func(s *domain.Settings) (string, error) {
		return name, s.EditDomain(name, oldDomain, req.Domain, req.Label)
	})
}

func (h *Handler) handleRemoveDomain(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	value := pathParam(r, "domain")

	h.editProject(w, r, "remove domain", name, func(s *domain.Settings) (string, error) {
		return name, s.RemoveDomain(name, value)
	})
}

// =============================================================================
// Tool Handlers
// =============================================================================

func (h *Handler) handleAddTool(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")

	var req ToolRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.editProject(w, r, "add tool", name, func(s *domain.Settings) (string, error) {
		return name, s.AddTool(name, req.URL, req.Label)
	})
}

func (h *Handler) handleRemoveTool(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	toolURL := r.URL.Query().Get("url")
	if toolURL == "" {
		h.writeError(w, http.StatusBadRequest, "Bad Request", "url query parameter is required")
		return
	}

	h.editProject(w, r, "remove tool", name, func(s *domain.Settings) (string, error) {
		return name, s.RemoveTool(name, toolURL)
	})
}

// =============================================================================
// Helper Functions
// =============================================================================

// editProject runs fn inside a settings edit and responds with the project
// named by fn's result.
func (h *Handler) editProject(w http.ResponseWriter, r *http.Request, op, name string, fn func(*domain.Settings) (string, error)) {
	var project domain.Project
	_, err := h.svc.Edit(r.Context(), func(s *domain.Settings) error {
		final, err := fn(s)
		if err != nil {
			return err
		}
		p, err := s.FindProject(final)
		if err != nil {
			return err
		}
		project = p.Clone()
		return nil
	})
	if err != nil {
		h.writeServiceError(w, r, op, err)
		return
	}

	h.logger.Debug(op, "project", name)
	h.writeJSON(w, http.StatusOK, project)
}

// pathParam returns an unescaped URL parameter. Project names may contain
// spaces and domains may be wildcard patterns.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}
