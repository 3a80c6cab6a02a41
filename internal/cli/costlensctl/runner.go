// Package costlensctl implements the costlensctl command against the HTTP
// API.
package costlensctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("costlensctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "costlens API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 30*time.Second), "HTTP timeout (e.g. 30s)")
	limit := fs.Int("limit", 0, "row limit for the preview command")
	noParallel := fs.Bool("no-parallel", false, "disable partitioned execution for the execute command")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	req, err := buildRequest(fs.Args(), *limit, !*noParallel)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n\n", err)
		writeUsage(stderr)
		return 2
	}

	endpoint := strings.TrimRight(*baseURL, "/") + req.path
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}
	code, responseBody, err := doRequest(ctx, client, req.method, endpoint, *apiKey, req.body)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func buildRequest(args []string, limit int, parallel bool) (request, error) {
	command := strings.TrimSpace(args[0])
	rest := args[1:]

	switch command {
	case "health":
		return request{method: http.MethodGet, path: "/v1/health"}, nil
	case "ready":
		return request{method: http.MethodGet, path: "/v1/ready"}, nil
	case "tables":
		return request{method: http.MethodGet, path: "/v1/schema/tables"}, nil
	case "table":
		if len(rest) != 1 {
			return request{}, fmt.Errorf("usage: table <name>")
		}
		return request{method: http.MethodGet, path: "/v1/schema/tables/" + url.PathEscape(rest[0])}, nil
	case "search":
		if len(rest) != 1 {
			return request{}, fmt.Errorf("usage: search <keyword>")
		}
		return request{
			method: http.MethodGet,
			path:   "/v1/schema/search",
			query:  url.Values{"keyword": {rest[0]}},
		}, nil
	case "join-path":
		if len(rest) == 2 {
			return request{
				method: http.MethodGet,
				path:   "/v1/schema/join-path",
				query:  url.Values{"from": {rest[0]}, "to": {rest[1]}},
			}, nil
		}
		if len(rest) > 2 {
			return request{
				method: http.MethodPost,
				path:   "/v1/schema/join-path",
				body:   map[string]any{"tables": rest},
			}, nil
		}
		return request{}, fmt.Errorf("usage: join-path <table> <table> [more tables]")
	case "schema-context":
		return request{method: http.MethodGet, path: "/v1/schema/context"}, nil
	case "validate":
		if len(rest) != 1 {
			return request{}, fmt.Errorf("usage: validate <sql>")
		}
		return request{
			method: http.MethodPost,
			path:   "/v1/sql/validate",
			body:   map[string]any{"sql": rest[0]},
		}, nil
	case "execute":
		if len(rest) != 1 {
			return request{}, fmt.Errorf("usage: execute <sql>")
		}
		return request{
			method: http.MethodPost,
			path:   "/v1/sql/execute",
			body:   map[string]any{"sql": rest[0], "parallel": parallel},
		}, nil
	case "preview":
		if len(rest) != 1 {
			return request{}, fmt.Errorf("usage: preview <sql>")
		}
		body := map[string]any{"sql": rest[0]}
		if limit > 0 {
			body["limit"] = limit
		}
		return request{method: http.MethodPost, path: "/v1/sql/preview", body: body}, nil
	default:
		return request{}, fmt.Errorf("unknown command %q", command)
	}
}

func doRequest(ctx context.Context, client *http.Client, method, endpoint, apiKey string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", false
	}
	pretty, err := json.MarshalIndent(decoded, "", "  ")
	if err != nil {
		return "", false
	}
	return string(pretty), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: costlensctl [flags] <command>")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                       service health")
	_, _ = fmt.Fprintln(w, "  ready                        dependency readiness")
	_, _ = fmt.Fprintln(w, "  tables                       list catalog tables")
	_, _ = fmt.Fprintln(w, "  table <name>                 table columns and join neighbors")
	_, _ = fmt.Fprintln(w, "  search <keyword>             search tables and glossary terms")
	_, _ = fmt.Fprintln(w, "  join-path <t1> <t2> [...]    join route between tables")
	_, _ = fmt.Fprintln(w, "  schema-context               full schema as prompt context")
	_, _ = fmt.Fprintln(w, "  validate <sql>               dry-run validate a statement")
	_, _ = fmt.Fprintln(w, "  execute <sql>                run a statement (partitioned when wide)")
	_, _ = fmt.Fprintln(w, "  preview <sql>                run with a row cap")
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func durationOr(value, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}
