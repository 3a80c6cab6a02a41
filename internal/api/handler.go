package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/costlens/costlens/internal/auth"
	"github.com/costlens/costlens/internal/config"
	"github.com/costlens/costlens/internal/observability"
	"github.com/costlens/costlens/internal/schema"
	"github.com/costlens/costlens/internal/sqlexec"
)

type ReadinessCheck func(ctx context.Context) error

// Validator is the dry-run validation capability consumed by the API.
type Validator interface {
	Validate(ctx context.Context, sqlText string) sqlexec.ValidationResult
}

// Executor is the query execution capability consumed by the API.
type Executor interface {
	Execute(ctx context.Context, sqlText string, parallel bool) sqlexec.ExecutionResult
	ExecuteWithLimit(ctx context.Context, sqlText string, limit int) sqlexec.ExecutionResult
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Schema            schema.Context
	// Graph is set in graph context mode and enables the join-path routes.
	Graph        *schema.Graph
	Validator    Validator
	Executor     Executor
	PreviewLimit int
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protected := http.NewServeMux()
	protected.HandleFunc("GET /v1/schema/tables", func(w http.ResponseWriter, r *http.Request) {
		handleListTables(deps, w, r)
	})
	protected.HandleFunc("GET /v1/schema/tables/{table}", func(w http.ResponseWriter, r *http.Request) {
		handleGetTable(deps, w, r)
	})
	protected.HandleFunc("GET /v1/schema/search", func(w http.ResponseWriter, r *http.Request) {
		handleSearchSchema(deps, w, r)
	})
	protected.HandleFunc("GET /v1/schema/join-path", func(w http.ResponseWriter, r *http.Request) {
		handleJoinPath(deps, w, r)
	})
	protected.HandleFunc("POST /v1/schema/join-path", func(w http.ResponseWriter, r *http.Request) {
		handleMultiJoinPath(deps, w, r)
	})
	protected.HandleFunc("GET /v1/schema/context", func(w http.ResponseWriter, r *http.Request) {
		handleSchemaContext(deps, w, r)
	})
	protected.HandleFunc("POST /v1/sql/validate", func(w http.ResponseWriter, r *http.Request) {
		handleValidate(deps, w, r)
	})
	protected.HandleFunc("POST /v1/sql/execute", func(w http.ResponseWriter, r *http.Request) {
		handleExecute(deps, w, r)
	})
	protected.HandleFunc("POST /v1/sql/preview", func(w http.ResponseWriter, r *http.Request) {
		handlePreview(deps, w, r)
	})

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	mux.Handle("GET /v1/schema/tables", protectedHandler)
	mux.Handle("GET /v1/schema/tables/{table}", protectedHandler)
	mux.Handle("GET /v1/schema/search", protectedHandler)
	mux.Handle("GET /v1/schema/join-path", protectedHandler)
	mux.Handle("POST /v1/schema/join-path", protectedHandler)
	mux.Handle("GET /v1/schema/context", protectedHandler)
	mux.Handle("POST /v1/sql/validate", protectedHandler)
	mux.Handle("POST /v1/sql/execute", protectedHandler)
	mux.Handle("POST /v1/sql/preview", protectedHandler)

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// CheckWarehouseConfig verifies the warehouse settings are present without
// opening a connection.
func CheckWarehouseConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.Warehouse.Host == "" {
			return errors.New("warehouse host is not configured")
		}
		if cfg.Warehouse.Database == "" {
			return errors.New("warehouse database is not configured")
		}
		return nil
	}
}

// CheckSchemaCatalog verifies that a schema context has been constructed.
func CheckSchemaCatalog(deps Dependencies) ReadinessCheck {
	return func(_ context.Context) error {
		if deps.Schema == nil {
			return errors.New("schema catalog is not loaded")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func requireAnyRole(r *http.Request, roles ...string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	for _, role := range roles {
		if identity.HasRole(role) {
			return nil
		}
	}
	return fmt.Errorf("missing required role, expected one of %q", strings.Join(roles, ","))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
