package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/costlens/costlens/internal/auth"
)

type multiJoinRequest struct {
	Tables []string `json:"tables"`
}

func handleListTables(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema dependency is not configured", false, nil)
		return
	}
	if err := requireAnyRole(r, auth.RoleSchemaReader, auth.RoleQueryRunner); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	tables := deps.Schema.ListTables()
	writeJSON(w, http.StatusOK, map[string]any{
		"tables": tables,
		"count":  len(tables),
	})
}

func handleGetTable(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema dependency is not configured", false, nil)
		return
	}
	if err := requireAnyRole(r, auth.RoleSchemaReader, auth.RoleQueryRunner); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	tableName := strings.TrimSpace(r.PathValue("table"))
	if tableName == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "TABLE_REQUIRED", "table path parameter is required", false, nil)
		return
	}
	info, ok := deps.Schema.TableInfo(tableName)
	if !ok {
		writeError(r.Context(), w, http.StatusNotFound, "TABLE_NOT_FOUND", "table was not found", false, map[string]any{"table": tableName})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func handleSearchSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema dependency is not configured", false, nil)
		return
	}
	if err := requireAnyRole(r, auth.RoleSchemaReader, auth.RoleQueryRunner); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	keyword := strings.TrimSpace(r.URL.Query().Get("keyword"))
	if keyword == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "KEYWORD_REQUIRED", "keyword query parameter is required", false, nil)
		return
	}
	hits := deps.Schema.SearchByKeyword(keyword)
	writeJSON(w, http.StatusOK, map[string]any{
		"results": hits,
		"count":   len(hits),
	})
}

// handleJoinPath resolves the join route between two tables. In metadata
// mode only direct relationships are known; in graph mode multi-hop routes
// are resolved through the join graph.
func handleJoinPath(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema dependency is not configured", false, nil)
		return
	}
	if err := requireAnyRole(r, auth.RoleSchemaReader, auth.RoleQueryRunner); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	from := strings.TrimSpace(r.URL.Query().Get("from"))
	to := strings.TrimSpace(r.URL.Query().Get("to"))
	if from == "" || to == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "TABLES_REQUIRED", "from and to query parameters are required", false, nil)
		return
	}
	hint, ok := deps.Schema.JoinHint(from, to)
	if !ok {
		writeError(r.Context(), w, http.StatusNotFound, "JOIN_PATH_NOT_FOUND", "no join path between the tables", false, map[string]any{"from": from, "to": to})
		return
	}
	writeJSON(w, http.StatusOK, hint)
}

func handleMultiJoinPath(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Graph == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "GRAPH_NOT_CONFIGURED", "multi-table join paths require the graph context mode", false, nil)
		return
	}
	if err := requireAnyRole(r, auth.RoleSchemaReader, auth.RoleQueryRunner); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var req multiJoinRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid join path request body", false, map[string]any{"details": err.Error()})
		return
	}
	if len(req.Tables) < 2 {
		writeError(r.Context(), w, http.StatusBadRequest, "TABLES_REQUIRED", "at least two tables are required", false, nil)
		return
	}

	plan := deps.Graph.OptimalJoinPath(req.Tables)
	if plan == nil {
		writeError(r.Context(), w, http.StatusNotFound, "JOIN_PATH_NOT_FOUND", "the requested tables are not fully connected", false, map[string]any{"tables": req.Tables})
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func handleSchemaContext(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema dependency is not configured", false, nil)
		return
	}
	if err := requireAnyRole(r, auth.RoleSchemaReader, auth.RoleQueryRunner); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"context": deps.Schema.ContextText()})
}
