package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/costlens/costlens/internal/auth"
	"github.com/costlens/costlens/internal/config"
	"github.com/costlens/costlens/internal/schema"
)

func TestHealthEndpoint(t *testing.T) {
	cfg, err := config.Load("costlens-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}

	h := NewHandler(cfg, Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestReadyEndpointReturns503WhenDependencyFails(t *testing.T) {
	cfg, err := config.Load("costlens-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}

	h := NewHandler(cfg, Dependencies{
		Readiness: func(context.Context) error {
			return errors.New("dependency down")
		},
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestReadyEndpointWithoutChecks(t *testing.T) {
	cfg, err := config.Load("costlens-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}

	h := NewHandler(cfg, Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestProtectedRouteRequiresAuth(t *testing.T) {
	cfg, err := config.Load("costlens-api", mapLookup(map[string]string{
		"COSTLENS_AUTH_REQUIRED": "true",
	}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	validator, err := auth.NewStaticAPIKeyValidator("k1:analyst:schema_reader")
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}

	h := NewHandler(cfg, Dependencies{
		AuthMiddleware: auth.Middleware(nil, validator),
		Schema:         newFakeSchemaContext(),
	})

	unauthResp := httptest.NewRecorder()
	h.ServeHTTP(unauthResp, httptest.NewRequest(http.MethodGet, "/v1/schema/tables", nil))
	if unauthResp.Code != http.StatusUnauthorized {
		t.Fatalf("unauth status = %d", unauthResp.Code)
	}

	authReq := httptest.NewRequest(http.MethodGet, "/v1/schema/tables", nil)
	authReq.Header.Set("X-API-Key", "k1")
	authResp := httptest.NewRecorder()
	h.ServeHTTP(authResp, authReq)
	if authResp.Code != http.StatusOK {
		t.Fatalf("auth status = %d, body = %s", authResp.Code, authResp.Body.String())
	}
}

func TestProtectedRouteForbiddenWithoutRole(t *testing.T) {
	cfg, err := config.Load("costlens-api", mapLookup(map[string]string{
		"COSTLENS_AUTH_REQUIRED": "true",
	}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	validator, err := auth.NewStaticAPIKeyValidator("k1:intern:viewer")
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}

	h := NewHandler(cfg, Dependencies{
		AuthMiddleware: auth.Middleware(nil, validator),
		Schema:         newFakeSchemaContext(),
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/schema/tables", nil)
	req.Header.Set("X-API-Key", "k1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestAuthRequiredWithoutMiddlewareFailsClosed(t *testing.T) {
	cfg, err := config.Load("costlens-api", mapLookup(map[string]string{
		"COSTLENS_AUTH_REQUIRED": "true",
	}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}

	h := NewHandler(cfg, Dependencies{Schema: newFakeSchemaContext()})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/schema/tables", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if body["error_code"] != "AUTH_MIDDLEWARE_MISSING" {
		t.Fatalf("error_code = %v", body["error_code"])
	}
}

func TestCombineReadinessChecksStopsOnFirstFailure(t *testing.T) {
	order := make([]int, 0, 3)
	combined := CombineReadinessChecks(
		func(_ context.Context) error {
			order = append(order, 1)
			return nil
		},
		nil,
		func(_ context.Context) error {
			order = append(order, 2)
			return errors.New("boom")
		},
		func(_ context.Context) error {
			order = append(order, 3)
			return nil
		},
	)

	err := combined(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("execution order = %#v", order)
	}
}

func TestCheckWarehouseConfig(t *testing.T) {
	cfg, err := config.Load("costlens-api", mapLookup(map[string]string{
		"COSTLENS_DB_NAME": "cost_reporting",
	}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	if err := CheckWarehouseConfig(cfg)(context.Background()); err != nil {
		t.Fatalf("CheckWarehouseConfig() error = %v", err)
	}

	cfg.Warehouse.Database = ""
	if err := CheckWarehouseConfig(cfg)(context.Background()); err == nil {
		t.Fatal("CheckWarehouseConfig() expected error for empty database")
	}
}

func TestCheckSchemaCatalog(t *testing.T) {
	if err := CheckSchemaCatalog(Dependencies{})(context.Background()); err == nil {
		t.Fatal("CheckSchemaCatalog() expected error when schema is missing")
	}
	deps := Dependencies{Schema: newFakeSchemaContext()}
	if err := CheckSchemaCatalog(deps)(context.Background()); err != nil {
		t.Fatalf("CheckSchemaCatalog() error = %v", err)
	}
}

// fakeSchemaContext is an in-memory schema.Context covering the handlers'
// lookup needs.
type fakeSchemaContext struct {
	tables []schema.TableSummary
	info   map[string]schema.TableInfo
	hits   []schema.SearchHit
	hint   schema.JoinHint
	hintOK bool
	text   string
}

func newFakeSchemaContext() *fakeSchemaContext {
	return &fakeSchemaContext{
		tables: []schema.TableSummary{
			{Name: "daily_costs", Description: "Daily cost line items"},
			{Name: "services", Description: "Service master data"},
		},
		info: map[string]schema.TableInfo{
			"daily_costs": {
				Table: schema.Table{Name: "daily_costs", Description: "Daily cost line items"},
				Connected: []schema.Neighbor{
					{Table: "services", JoinCondition: "daily_costs.service_id = services.id", Relationship: "many-to-one"},
				},
			},
		},
		hint: schema.JoinHint{
			Condition: "daily_costs.service_id = services.id",
			Type:      "many-to-one",
		},
		hintOK: true,
		text:   "# Database schema",
	}
}

func (f *fakeSchemaContext) ListTables() []schema.TableSummary { return f.tables }

func (f *fakeSchemaContext) TableInfo(name string) (schema.TableInfo, bool) {
	info, ok := f.info[name]
	return info, ok
}

func (f *fakeSchemaContext) SearchByKeyword(string) []schema.SearchHit { return f.hits }

func (f *fakeSchemaContext) JoinHint(string, string) (schema.JoinHint, bool) {
	return f.hint, f.hintOK
}

func (f *fakeSchemaContext) ContextText() string { return f.text }

func mapLookup(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
