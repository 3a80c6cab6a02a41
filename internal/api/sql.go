package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/costlens/costlens/internal/auth"
	"github.com/costlens/costlens/internal/sqlexec"
)

type validateRequest struct {
	SQL string `json:"sql"`
}

type validateResponse struct {
	sqlexec.ValidationResult
	Suggestion string `json:"suggestion,omitempty"`
}

type executeRequest struct {
	SQL      string `json:"sql"`
	Parallel *bool  `json:"parallel"`
}

type previewRequest struct {
	SQL   string `json:"sql"`
	Limit int    `json:"limit"`
}

const defaultPreviewLimit = 1000

func handleValidate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Validator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "VALIDATOR_NOT_CONFIGURED", "validator dependency is not configured", false, nil)
		return
	}
	if err := requireAnyRole(r, auth.RoleQueryRunner); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var req validateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid validate request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}

	result := deps.Validator.Validate(r.Context(), req.SQL)
	sqlexec.ObserveValidation(result)

	response := validateResponse{ValidationResult: result}
	if !result.Valid && result.Error != nil {
		response.Suggestion = sqlexec.Suggestion(result.Error.Category, result.Error.Message)
	}
	writeJSON(w, http.StatusOK, response)
}

func handleExecute(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Executor == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXECUTOR_NOT_CONFIGURED", "executor dependency is not configured", false, nil)
		return
	}
	if err := requireAnyRole(r, auth.RoleQueryRunner); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var req executeRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid execute request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}

	parallel := true
	if req.Parallel != nil {
		parallel = *req.Parallel
	}
	result := deps.Executor.Execute(r.Context(), req.SQL, parallel)
	writeJSON(w, http.StatusOK, result)
}

func handlePreview(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Executor == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXECUTOR_NOT_CONFIGURED", "executor dependency is not configured", false, nil)
		return
	}
	if err := requireAnyRole(r, auth.RoleQueryRunner); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var req previewRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid preview request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = deps.PreviewLimit
	}
	if limit <= 0 {
		limit = defaultPreviewLimit
	}
	result := deps.Executor.ExecuteWithLimit(r.Context(), req.SQL, limit)
	writeJSON(w, http.StatusOK, result)
}
