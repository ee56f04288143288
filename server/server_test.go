package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hedgeflow/config"
	"hedgeflow/hedge"
	"hedgeflow/logger"
	"hedgeflow/models"
)

type stubExecutor struct {
	rec  models.RunRecord
	err  error
	args []string
}

func (s *stubExecutor) Execute(ctx context.Context, args []string) (models.RunRecord, error) {
	s.args = args
	return s.rec, s.err
}

func serve(t *testing.T, exec Executor, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return serveWith(t, NewServer(config.ServerConfig{}, exec, true, logger.Logger()), method, path, body)
}

func serveWith(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	router, err := srv.buildRouter()
	if err != nil {
		t.Fatalf("buildRouter: %v", err)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestHedgeEndpoint(t *testing.T) {
	exec := &stubExecutor{rec: models.RunRecord{RunID: "r", Payload: `{"orderId":"1"}`}}
	w := serve(t, exec, http.MethodPost, "/v1/hedge", `{"args":["800","100000","0.01"]}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["result"] != `{"orderId":"1"}` {
		t.Fatalf("unexpected result %q", resp["result"])
	}
	if len(exec.args) != 3 || exec.args[1] != "100000" {
		t.Fatalf("unexpected args %v", exec.args)
	}
}

func TestHedgeEndpointErrors(t *testing.T) {
	tests := []struct {
		stage string
		code  int
	}{
		{hedge.StageInput, http.StatusBadRequest},
		{hedge.StageStrikeSelection, http.StatusUnprocessableEntity},
		{hedge.StageOrderExecution, http.StatusBadGateway},
		{hedge.StageResultEncoding, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		exec := &stubExecutor{err: &hedge.StageError{Stage: tt.stage, Err: errors.New("failed")}}
		w := serve(t, exec, http.MethodPost, "/v1/hedge", `{"args":[]}`)
		if w.Code != tt.code {
			t.Fatalf("stage %s: status %d, want %d", tt.stage, w.Code, tt.code)
		}
		var resp map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp["stage"] != tt.stage || resp["error"] == "" {
			t.Fatalf("unexpected body %s", w.Body.String())
		}
	}
}

func TestHedgeEndpointBadBody(t *testing.T) {
	w := serve(t, &stubExecutor{}, http.MethodPost, "/v1/hedge", `not json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	if w := serve(t, &stubExecutor{}, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Fatalf("healthz status %d", w.Code)
	}
	w := serve(t, &stubExecutor{}, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Fatalf("metrics status %d", w.Code)
	}
}

func TestRecentRuns(t *testing.T) {
	exec := &stubExecutor{err: &hedge.StageError{Stage: hedge.StageMarketData, Err: errors.New("feed down")}}
	srv := NewServer(config.ServerConfig{}, exec, false, logger.Logger())
	serveWith(t, srv, http.MethodPost, "/v1/hedge", `{"args":["800","100000","0.01"]}`)

	exec.err = nil
	exec.rec = models.RunRecord{RunID: "r2", Payload: `{"orderId":"7"}`}
	exec.rec.Outcome.OrderID = "7"
	serveWith(t, srv, http.MethodPost, "/v1/hedge", `{"args":["800","100000","0.01"]}`)

	w := serveWith(t, srv, http.MethodGet, "/api/runs", "")
	var resp struct {
		Runs []runSummary `json:"runs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(resp.Runs))
	}
	if resp.Runs[0].Stage != hedge.StageMarketData || resp.Runs[1].OrderID != "7" {
		t.Fatalf("unexpected runs %+v", resp.Runs)
	}

	if w := serveWith(t, srv, http.MethodGet, "/metrics", ""); w.Code != http.StatusNotFound {
		t.Fatalf("metrics served while disabled: %d", w.Code)
	}
}

func TestNormalizeAddress(t *testing.T) {
	cases := map[string]string{
		"":                     "0.0.0.0:8080",
		"  :9090  ":            "0.0.0.0:9090",
		"localhost":            "localhost:8080",
		"[::1]:443":            "[::1]:443",
		"::1":                  "[::1]:8080",
		"*:8080":               "0.0.0.0:8080",
		"http://10.0.0.5:8080": "10.0.0.5:8080",
		"tcp://localhost:5050": "localhost:5050",
	}
	for input, want := range cases {
		if got := normalizeAddress(input); got != want {
			t.Fatalf("normalizeAddress(%q) = %q, want %q", input, got, want)
		}
	}
}
