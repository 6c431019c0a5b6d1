package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kingrea/warroom/internal/config"
	"github.com/kingrea/warroom/internal/metrics"
	"github.com/kingrea/warroom/internal/synthesis"
)

var testSummary = synthesis.Summary{
	Title:      "Ship the checkout fix",
	Strategy:   "Lock inventory rows before charging.",
	Components: []string{"checkout", "inventory"},
	RiskLevel:  synthesis.RiskMedium,
	Complexity: synthesis.ComplexityLow,
}

func startTestServer(t *testing.T, synth synthesis.Synthesizer, settings Settings, opts ...Option) *Server {
	t.Helper()
	settings.Port = 0
	srv := NewServer(settings, synth, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	if err := srv.Start(ctx); err != nil {
		cancel()
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	})
	return srv
}

func decodeResponse(t *testing.T, body io.Reader) synthesis.Response {
	t.Helper()
	var out synthesis.Response
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestServerHealthEndpoint(t *testing.T) {
	t.Parallel()
	srv := startTestServer(t, synthesis.Disabled{}, Settings{})

	resp, err := http.Get(srv.BaseURL() + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var payload healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if payload.Status != string(StatusReady) {
		t.Fatalf("expected ready status, got %s", payload.Status)
	}
	if payload.Version != Version {
		t.Fatalf("expected version %s, got %s", Version, payload.Version)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestSynthesizeReturnsSummary(t *testing.T) {
	t.Parallel()
	var gotDirective string
	var gotHistory []synthesis.Turn
	synth := synthesis.Func(func(_ context.Context, directive string, history []synthesis.Turn) (synthesis.Summary, error) {
		gotDirective = directive
		gotHistory = history
		return testSummary, nil
	})
	srv := startTestServer(t, synth, Settings{})

	body := `{"directiveText":"Approved","history":[{"speakerLabel":"cto","text":"Lock the rows."}]}`
	resp, err := http.Post(srv.BaseURL()+"/synthesize", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("synthesize request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	out := decodeResponse(t, resp.Body)
	if out.Summary == nil || out.Summary.Title != testSummary.Title {
		t.Fatalf("unexpected summary %+v", out.Summary)
	}
	if out.Error != "" {
		t.Fatalf("unexpected error field %q", out.Error)
	}
	if gotDirective != "Approved" {
		t.Fatalf("directive = %q", gotDirective)
	}
	if len(gotHistory) != 1 || gotHistory[0].SpeakerLabel != "cto" {
		t.Fatalf("history = %+v", gotHistory)
	}
}

func TestSynthesizeRejectsMalformedJSONBeforeModelCall(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	synth := synthesis.Func(func(context.Context, string, []synthesis.Turn) (synthesis.Summary, error) {
		calls.Add(1)
		return testSummary, nil
	})
	srv := NewServer(Settings{}, synth)

	for _, body := range []string{`{"directiveText":`, `[]`, `{"directiveText":"   "}`} {
		req := httptest.NewRequest(http.MethodPost, "/synthesize", strings.NewReader(body))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, rec.Code)
		}
		out := decodeResponse(t, rec.Body)
		if out.Error == "" || out.Summary != nil {
			t.Fatalf("body %q: unexpected response %+v", body, out)
		}
	}
	if calls.Load() != 0 {
		t.Fatalf("model called %d times for malformed input", calls.Load())
	}
}

func TestSynthesizeBackendFailureReturns500(t *testing.T) {
	t.Parallel()
	synth := synthesis.Func(func(context.Context, string, []synthesis.Turn) (synthesis.Summary, error) {
		return synthesis.Summary{}, errors.New("upstream exploded")
	})
	srv := NewServer(Settings{}, synth)

	req := httptest.NewRequest(http.MethodPost, "/synthesize", strings.NewReader(`{"directiveText":"go"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	out := decodeResponse(t, rec.Body)
	if !strings.Contains(out.Error, "upstream exploded") {
		t.Fatalf("unexpected error %q", out.Error)
	}
}

func TestSynthesizeRejectsOversizedPayload(t *testing.T) {
	t.Parallel()
	srv := startTestServer(t, synthesis.Disabled{}, Settings{MaxBodyBytes: 64})

	body := `{"directiveText":"` + strings.Repeat("x", 256) + `"}`
	resp, err := http.Post(srv.BaseURL()+"/synthesize", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("synthesize request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.StatusCode)
	}
}

func TestClientTalksToServer(t *testing.T) {
	t.Parallel()
	synth := synthesis.Func(func(context.Context, string, []synthesis.Turn) (synthesis.Summary, error) {
		return testSummary, nil
	})
	srv := startTestServer(t, synth, Settings{})

	client := synthesis.NewClient(srv.BaseURL())
	summary, err := client.Synthesize(context.Background(), "Approved", nil)
	if err != nil {
		t.Fatalf("client synthesize: %v", err)
	}
	if summary.Title != testSummary.Title {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestMetricsEndpointServesPrometheusText(t *testing.T) {
	t.Parallel()
	srv := NewServer(Settings{}, synthesis.Disabled{}, WithMetrics(metrics.Default()))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "warroom_http_requests_total") {
		t.Fatalf("metrics output missing http counter")
	}
}

func TestStartTwiceFails(t *testing.T) {
	t.Parallel()
	srv := startTestServer(t, synthesis.Disabled{}, Settings{})
	if err := srv.Start(context.Background()); err == nil {
		t.Fatalf("expected second start to fail")
	}
	if srv.Addr() == "" {
		t.Fatalf("expected bound address")
	}
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Host = " 0.0.0.0 "
	cfg.Server.Port = 9100
	cfg.Server.MaxBodyBytes = 0

	settings := SettingsFromConfig(cfg)
	if settings.Host != "0.0.0.0" {
		t.Fatalf("host = %q", settings.Host)
	}
	if settings.Address() != "0.0.0.0:9100" {
		t.Fatalf("address = %q", settings.Address())
	}
	if settings.MaxBodyBytes != DefaultMaxBodyBytes {
		t.Fatalf("max body = %d", settings.MaxBodyBytes)
	}
	if got := SettingsFromConfig(nil); got.Port != DefaultPort || got.URL() != "http://127.0.0.1:8787" {
		t.Fatalf("unexpected nil-config settings %+v", got)
	}
}
