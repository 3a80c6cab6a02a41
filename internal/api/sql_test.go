package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/costlens/costlens/internal/sqlexec"
)

type fakeValidator struct {
	result sqlexec.ValidationResult
	calls  []string
}

func (f *fakeValidator) Validate(_ context.Context, sqlText string) sqlexec.ValidationResult {
	f.calls = append(f.calls, sqlText)
	return f.result
}

type fakeExecutor struct {
	result    sqlexec.ExecutionResult
	sqls      []string
	parallels []bool
	limits    []int
}

func (f *fakeExecutor) Execute(_ context.Context, sqlText string, parallel bool) sqlexec.ExecutionResult {
	f.sqls = append(f.sqls, sqlText)
	f.parallels = append(f.parallels, parallel)
	return f.result
}

func (f *fakeExecutor) ExecuteWithLimit(_ context.Context, sqlText string, limit int) sqlexec.ExecutionResult {
	f.sqls = append(f.sqls, sqlText)
	f.limits = append(f.limits, limit)
	return f.result
}

func TestValidateEndpointAcceptsQuery(t *testing.T) {
	validator := &fakeValidator{result: sqlexec.ValidationResult{Valid: true}}
	h := NewHandler(testConfig(t), Dependencies{Validator: validator})

	req := httptest.NewRequest(http.MethodPost, "/v1/sql/validate",
		strings.NewReader(`{"sql":"SELECT 1"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if body["is_valid"] != true {
		t.Fatalf("is_valid = %v", body["is_valid"])
	}
	if _, ok := body["suggestion"]; ok {
		t.Fatalf("suggestion should be omitted for valid queries: %v", body["suggestion"])
	}
	if len(validator.calls) != 1 || validator.calls[0] != "SELECT 1" {
		t.Fatalf("validator calls = %v", validator.calls)
	}
}

func TestValidateEndpointReturnsSuggestionOnFailure(t *testing.T) {
	validator := &fakeValidator{result: sqlexec.ValidationResult{
		Valid: false,
		Error: &sqlexec.ValidationError{
			Code:     1146,
			Message:  "Table 'reporting.daily_cost' doesn't exist",
			Category: sqlexec.CategoryUnknownTable,
		},
	}}
	h := NewHandler(testConfig(t), Dependencies{Validator: validator})

	req := httptest.NewRequest(http.MethodPost, "/v1/sql/validate",
		strings.NewReader(`{"sql":"SELECT 1 FROM daily_cost"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if body["is_valid"] != false {
		t.Fatalf("is_valid = %v", body["is_valid"])
	}
	if body["suggestion"] != "Check the table name and re-query the schema catalog." {
		t.Fatalf("suggestion = %v", body["suggestion"])
	}
	errBody, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("error = %v", body["error"])
	}
	if errBody["code"] != float64(1146) || errBody["category"] != "unknown_table" {
		t.Fatalf("error = %v", errBody)
	}
}

func TestValidateEndpointRequiresSQL(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{Validator: &fakeValidator{}})

	req := httptest.NewRequest(http.MethodPost, "/v1/sql/validate", strings.NewReader(`{"sql":"  "}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestValidateEndpointRejectsBadJSON(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{Validator: &fakeValidator{}})

	req := httptest.NewRequest(http.MethodPost, "/v1/sql/validate", strings.NewReader(`{"sql":`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestValidateEndpointWithoutValidator(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{})

	req := httptest.NewRequest(http.MethodPost, "/v1/sql/validate", strings.NewReader(`{"sql":"SELECT 1"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotImplemented)
	}
}

func TestExecuteEndpointDefaultsToParallel(t *testing.T) {
	executor := &fakeExecutor{result: sqlexec.ExecutionResult{Success: true, Rows: []sqlexec.Row{}, RowCount: 0}}
	h := NewHandler(testConfig(t), Dependencies{Executor: executor})

	req := httptest.NewRequest(http.MethodPost, "/v1/sql/execute",
		strings.NewReader(`{"sql":"SELECT amount FROM daily_costs"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if len(executor.parallels) != 1 || !executor.parallels[0] {
		t.Fatalf("parallels = %v, want [true]", executor.parallels)
	}
}

func TestExecuteEndpointHonorsParallelFalse(t *testing.T) {
	executor := &fakeExecutor{result: sqlexec.ExecutionResult{Success: true}}
	h := NewHandler(testConfig(t), Dependencies{Executor: executor})

	req := httptest.NewRequest(http.MethodPost, "/v1/sql/execute",
		strings.NewReader(`{"sql":"SELECT 1","parallel":false}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(executor.parallels) != 1 || executor.parallels[0] {
		t.Fatalf("parallels = %v, want [false]", executor.parallels)
	}
}

func TestExecuteEndpointRequiresSQL(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{Executor: &fakeExecutor{}})

	req := httptest.NewRequest(http.MethodPost, "/v1/sql/execute", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestPreviewEndpointUsesRequestLimit(t *testing.T) {
	executor := &fakeExecutor{result: sqlexec.ExecutionResult{Success: true}}
	h := NewHandler(testConfig(t), Dependencies{Executor: executor, PreviewLimit: 200})

	req := httptest.NewRequest(http.MethodPost, "/v1/sql/preview",
		strings.NewReader(`{"sql":"SELECT * FROM daily_costs","limit":25}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(executor.limits) != 1 || executor.limits[0] != 25 {
		t.Fatalf("limits = %v, want [25]", executor.limits)
	}
}

func TestPreviewEndpointFallsBackToConfiguredLimit(t *testing.T) {
	executor := &fakeExecutor{result: sqlexec.ExecutionResult{Success: true}}
	h := NewHandler(testConfig(t), Dependencies{Executor: executor, PreviewLimit: 200})

	req := httptest.NewRequest(http.MethodPost, "/v1/sql/preview",
		strings.NewReader(`{"sql":"SELECT * FROM daily_costs"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(executor.limits) != 1 || executor.limits[0] != 200 {
		t.Fatalf("limits = %v, want [200]", executor.limits)
	}
}

func TestPreviewEndpointDefaultLimit(t *testing.T) {
	executor := &fakeExecutor{result: sqlexec.ExecutionResult{Success: true}}
	h := NewHandler(testConfig(t), Dependencies{Executor: executor})

	req := httptest.NewRequest(http.MethodPost, "/v1/sql/preview",
		strings.NewReader(`{"sql":"SELECT * FROM daily_costs"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(executor.limits) != 1 || executor.limits[0] != defaultPreviewLimit {
		t.Fatalf("limits = %v, want [%d]", executor.limits, defaultPreviewLimit)
	}
}
