package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/advisorhub/mira/internal/api/middleware"
	"github.com/advisorhub/mira/internal/tools"
	"github.com/advisorhub/mira/pkg/models"
)

type toolInfo struct {
	Name        string                 `json:"name"`
	Module      models.MiraModule      `json:"module"`
	Description string                 `json:"description,omitempty"`
	Schema      map[string]interface{} `json:"schema,omitempty"`
}

// ListTools serves GET /api/v1/tools. The module query parameter filters
// by module.
func (h *Handlers) ListTools(w http.ResponseWriter, r *http.Request) {
	var descs []tools.ToolDescriptor
	if module := models.MiraModule(r.URL.Query().Get("module")); module != "" {
		descs = h.tools.ForModule(module)
	} else {
		for _, name := range h.tools.Names() {
			if d, ok := h.tools.Get(name); ok {
				descs = append(descs, d)
			}
		}
	}
	out := make([]toolInfo, 0, len(descs))
	for _, d := range descs {
		out = append(out, toolInfo{Name: d.Name, Module: d.Module, Description: d.Description, Schema: d.Schema})
	}
	respondJSON(w, http.StatusOK, out)
}

type executeToolBody struct {
	Args     map[string]interface{} `json:"args"`
	TenantID string                 `json:"tenantId"`
}

// ExecuteTool serves POST /api/v1/tools/{toolName}. The tool runs with the
// default retry policy and the categorized result is returned as-is.
func (h *Handlers) ExecuteTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "toolName")

	var body executeToolBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	tenant := strings.TrimSpace(body.TenantID)
	if tenant == "" {
		tenant = middleware.GetTenantID(r.Context())
	}

	res := h.tools.ExecuteWithRetry(r.Context(), name, tools.ExecuteInput{Args: body.Args, TenantID: tenant}, nil, nil)
	respondJSON(w, toolStatus(res), res)
}

func toolStatus(res models.ToolResult) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.Error.Code {
	case tools.CodeToolNotFound, tools.CodeNotFound:
		return http.StatusNotFound
	case tools.CodeValidation:
		return http.StatusBadRequest
	case tools.CodePermissionDenied:
		return http.StatusForbidden
	case tools.CodeUniqueViolation, tools.CodeForeignKeyViolation:
		return http.StatusConflict
	case tools.CodeDatabaseConnection, tools.CodeDatabaseTimeout, tools.CodeNetworkError:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
