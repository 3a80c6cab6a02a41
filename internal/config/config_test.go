package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	lookup := mapLookup(map[string]string{})
	cfg, err := Load("costlens-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.Warehouse.Host != "localhost" || cfg.Warehouse.Port != 3306 {
		t.Fatalf("Warehouse = %s:%d", cfg.Warehouse.Host, cfg.Warehouse.Port)
	}
	if cfg.Warehouse.Charset != "utf8mb4" {
		t.Fatalf("Warehouse.Charset = %q", cfg.Warehouse.Charset)
	}
	if cfg.Warehouse.MaxOpenConns != 10 {
		t.Fatalf("Warehouse.MaxOpenConns = %d", cfg.Warehouse.MaxOpenConns)
	}
	if cfg.Schema.CatalogPath != "./data/schema_metadata.yaml" {
		t.Fatalf("Schema.CatalogPath = %q", cfg.Schema.CatalogPath)
	}
	if cfg.Schema.ContextMode != "graph" {
		t.Fatalf("Schema.ContextMode = %q", cfg.Schema.ContextMode)
	}
	if cfg.Executor.Workers != 4 {
		t.Fatalf("Executor.Workers = %d", cfg.Executor.Workers)
	}
	if cfg.Executor.MaxFailureRatio != 0.5 {
		t.Fatalf("Executor.MaxFailureRatio = %f", cfg.Executor.MaxFailureRatio)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	lookup := mapLookup(map[string]string{"COSTLENS_PROFILE": "prod"})
	cfg, err := Load("costlens-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadTestProfileDefaults(t *testing.T) {
	lookup := mapLookup(map[string]string{"COSTLENS_PROFILE": "test"})
	cfg, err := Load("costlens-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Address != ":18080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelWarn {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"COSTLENS_PROFILE":                     "test",
		"COSTLENS_SERVICE_NAME":                "costlens-custom",
		"COSTLENS_HTTP_ADDR":                   ":9999",
		"COSTLENS_HTTP_READ_TIMEOUT":           "2s",
		"COSTLENS_HTTP_WRITE_TIMEOUT":          "3s",
		"COSTLENS_DB_HOST":                     "warehouse.example.com",
		"COSTLENS_DB_PORT":                     "3307",
		"COSTLENS_DB_USER":                     "reporter",
		"COSTLENS_DB_PASSWORD":                 "hunter2",
		"COSTLENS_DB_NAME":                     "cost_reporting",
		"COSTLENS_DB_CHARSET":                  "latin1",
		"COSTLENS_DB_MAX_OPEN_CONNS":           "42",
		"COSTLENS_DB_MAX_IDLE_CONNS":           "17",
		"COSTLENS_DB_CONN_MAX_IDLE_TIME":       "90s",
		"COSTLENS_DB_CONN_MAX_LIFETIME":        "1h",
		"COSTLENS_SCHEMA_CATALOG":              "/etc/costlens/schema.yaml",
		"COSTLENS_SCHEMA_MODE":                 "metadata",
		"COSTLENS_EXECUTOR_WORKERS":            "8",
		"COSTLENS_EXECUTOR_MAX_FAILURE_RATIO":  "0.25",
		"COSTLENS_LOG_LEVEL":                   "error",
		"COSTLENS_AUTH_REQUIRED":               "true",
		"COSTLENS_AUTH_STATIC_KEYS":            "k1:analyst:query_runner",
	})
	cfg, err := Load("costlens-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "costlens-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP.ReadTimeout = %s", cfg.HTTP.ReadTimeout)
	}
	if cfg.HTTP.WriteTimeout != 3*time.Second {
		t.Fatalf("HTTP.WriteTimeout = %s", cfg.HTTP.WriteTimeout)
	}
	if cfg.Warehouse.Host != "warehouse.example.com" {
		t.Fatalf("Warehouse.Host = %q", cfg.Warehouse.Host)
	}
	if cfg.Warehouse.Port != 3307 {
		t.Fatalf("Warehouse.Port = %d", cfg.Warehouse.Port)
	}
	if cfg.Warehouse.User != "reporter" {
		t.Fatalf("Warehouse.User = %q", cfg.Warehouse.User)
	}
	if cfg.Warehouse.Password != "hunter2" {
		t.Fatalf("Warehouse.Password = %q", cfg.Warehouse.Password)
	}
	if cfg.Warehouse.Database != "cost_reporting" {
		t.Fatalf("Warehouse.Database = %q", cfg.Warehouse.Database)
	}
	if cfg.Warehouse.Charset != "latin1" {
		t.Fatalf("Warehouse.Charset = %q", cfg.Warehouse.Charset)
	}
	if cfg.Warehouse.MaxOpenConns != 42 {
		t.Fatalf("Warehouse.MaxOpenConns = %d", cfg.Warehouse.MaxOpenConns)
	}
	if cfg.Warehouse.MaxIdleConns != 17 {
		t.Fatalf("Warehouse.MaxIdleConns = %d", cfg.Warehouse.MaxIdleConns)
	}
	if cfg.Warehouse.ConnMaxIdleTime != 90*time.Second {
		t.Fatalf("Warehouse.ConnMaxIdleTime = %s", cfg.Warehouse.ConnMaxIdleTime)
	}
	if cfg.Warehouse.ConnMaxLifetime != time.Hour {
		t.Fatalf("Warehouse.ConnMaxLifetime = %s", cfg.Warehouse.ConnMaxLifetime)
	}
	if cfg.Schema.CatalogPath != "/etc/costlens/schema.yaml" {
		t.Fatalf("Schema.CatalogPath = %q", cfg.Schema.CatalogPath)
	}
	if cfg.Schema.ContextMode != "metadata" {
		t.Fatalf("Schema.ContextMode = %q", cfg.Schema.ContextMode)
	}
	if cfg.Executor.Workers != 8 {
		t.Fatalf("Executor.Workers = %d", cfg.Executor.Workers)
	}
	if cfg.Executor.MaxFailureRatio != 0.25 {
		t.Fatalf("Executor.MaxFailureRatio = %f", cfg.Executor.MaxFailureRatio)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required = false, want true")
	}
	if cfg.Auth.StaticKeys != "k1:analyst:query_runner" {
		t.Fatalf("StaticKeys = %q", cfg.Auth.StaticKeys)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"COSTLENS_PROFILE": "oops"},
		{"COSTLENS_HTTP_READ_TIMEOUT": "NaN"},
		{"COSTLENS_DB_PORT": "oops"},
		{"COSTLENS_DB_MAX_OPEN_CONNS": "oops"},
		{"COSTLENS_SCHEMA_MODE": "hybrid"},
		{"COSTLENS_EXECUTOR_WORKERS": "oops"},
		{"COSTLENS_EXECUTOR_MAX_FAILURE_RATIO": "1.5"},
		{"COSTLENS_EXECUTOR_MAX_FAILURE_RATIO": "bad"},
		{"COSTLENS_AUTH_REQUIRED": "not-bool"},
		{"COSTLENS_LOG_LEVEL": "verbose"},
	}
	for _, env := range tests {
		_, err := Load("costlens-api", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
