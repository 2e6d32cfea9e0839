package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/costgate/internal/domain"
	"github.com/kailas-cloud/costgate/internal/domain/rate"
	domusage "github.com/kailas-cloud/costgate/internal/domain/usage"
	costuc "github.com/kailas-cloud/costgate/internal/usecase/cost"
	governuc "github.com/kailas-cloud/costgate/internal/usecase/govern"
	healthuc "github.com/kailas-cloud/costgate/internal/usecase/health"
	quotauc "github.com/kailas-cloud/costgate/internal/usecase/quota"
)

// --- Mocks ---

type mockGovernor struct {
	generateFn func(ctx context.Context, req governuc.Request) (governuc.Result, error)
	limitFn    func(tier string) (int64, error)
}

func (m *mockGovernor) Generate(ctx context.Context, req governuc.Request) (governuc.Result, error) {
	return m.generateFn(ctx, req)
}

func (m *mockGovernor) LimitFor(tier string) (int64, error) {
	if m.limitFn != nil {
		return m.limitFn(tier)
	}
	return 875, nil
}

type mockUsage struct {
	statsFn   func(ctx context.Context, identifier string, limitCents int64) (quotauc.Stats, error)
	historyFn func(ctx context.Context, identifier string, weeks int) (quotauc.History, error)
}

func (m *mockUsage) Stats(ctx context.Context, identifier string, limitCents int64) (quotauc.Stats, error) {
	return m.statsFn(ctx, identifier, limitCents)
}

func (m *mockUsage) History(ctx context.Context, identifier string, weeks int) (quotauc.History, error) {
	return m.historyFn(ctx, identifier, weeks)
}

type mockRates struct {
	info rate.Info
}

func (m *mockRates) Info(context.Context) rate.Info         { return m.info }
func (m *mockRates) ForceRefresh(context.Context) rate.Info { return m.info }

type mockPricing struct{}

func (m *mockPricing) Pricing(context.Context) costuc.View {
	return costuc.View{Model: "gpt-4o-mini"}
}

type mockLedger struct {
	entriesFn func(ctx context.Context, day string) ([]domusage.CostEntry, error)
	summaryFn func(ctx context.Context, day string) (domusage.DailySummary, error)
}

func (m *mockLedger) Entries(ctx context.Context, day string) ([]domusage.CostEntry, error) {
	return m.entriesFn(ctx, day)
}

func (m *mockLedger) DailySummary(ctx context.Context, day string) (domusage.DailySummary, error) {
	return m.summaryFn(ctx, day)
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

// --- Helpers ---

func testRouter(s *Server) chi.Router {
	r := chi.NewRouter()
	s.Register(r)
	return r
}

func defaultServer() *Server {
	return NewServer(
		&mockGovernor{
			generateFn: func(_ context.Context, req governuc.Request) (governuc.Result, error) {
				return governuc.Result{Text: "answer", CostCents: 42}, nil
			},
		},
		&mockUsage{
			statsFn: func(_ context.Context, id string, limit int64) (quotauc.Stats, error) {
				return quotauc.Stats{Identifier: id, LimitCents: limit}, nil
			},
			historyFn: func(_ context.Context, id string, weeks int) (quotauc.History, error) {
				return quotauc.History{Identifier: id}, nil
			},
		},
		&mockRates{info: rate.Info{Rate: 5.25, Source: "primary", Cached: true}},
		&mockPricing{},
		&mockLedger{
			summaryFn: func(_ context.Context, day string) (domusage.DailySummary, error) {
				return domusage.DailySummary{Day: day, Entries: 2}, nil
			},
			entriesFn: func(_ context.Context, day string) ([]domusage.CostEntry, error) {
				return []domusage.CostEntry{{ID: "e1"}, {ID: "e2"}}, nil
			},
		},
		&mockHealth{report: healthuc.Report{Status: healthuc.Healthy}},
		zap.NewNop(),
	)
}

func doJSON(t *testing.T, r chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

// --- Tests ---

func TestGenerate_OK(t *testing.T) {
	r := testRouter(defaultServer())

	rr := doJSON(t, r, "POST", "/v1/generate", `{"identifier":"u1","tier":"free","prompt":"hello"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rr.Code, rr.Body.String())
	}

	var res governuc.Result
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Text != "answer" || res.CostCents != 42 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestGenerate_MissingFields(t *testing.T) {
	r := testRouter(defaultServer())

	tests := []struct {
		name string
		body string
	}{
		{"no identifier", `{"prompt":"hello"}`},
		{"no prompt", `{"identifier":"u1"}`},
		{"blank prompt", `{"identifier":"u1","prompt":"   "}`},
		{"malformed json", `{`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, r, "POST", "/v1/generate", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("got %d, want 400", rr.Code)
			}
		})
	}
}

func TestGenerate_QuotaExceeded_402(t *testing.T) {
	srv := defaultServer()
	srv.govern = &mockGovernor{
		generateFn: func(context.Context, governuc.Request) (governuc.Result, error) {
			return governuc.Result{}, fmt.Errorf("estimated over limit: %w", domain.ErrQuotaExceeded)
		},
	}
	r := testRouter(srv)

	rr := doJSON(t, r, "POST", "/v1/generate", `{"identifier":"u1","prompt":"hello"}`)
	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("got %d, want 402", rr.Code)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Code != codeQuotaExceeded {
		t.Errorf("got code %s, want %s", errResp.Code, codeQuotaExceeded)
	}
}

func TestGenerate_ProviderError_502(t *testing.T) {
	srv := defaultServer()
	srv.govern = &mockGovernor{
		generateFn: func(context.Context, governuc.Request) (governuc.Result, error) {
			return governuc.Result{}, fmt.Errorf("upstream: %w", domain.ErrProviderError)
		},
	}
	r := testRouter(srv)

	rr := doJSON(t, r, "POST", "/v1/generate", `{"identifier":"u1","prompt":"hello"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("got %d, want 502", rr.Code)
	}
}

func TestGenerate_UnknownTier_400(t *testing.T) {
	srv := defaultServer()
	srv.govern = &mockGovernor{
		generateFn: func(context.Context, governuc.Request) (governuc.Result, error) {
			return governuc.Result{}, fmt.Errorf("tier %q: %w", "platinum", domain.ErrUnknownTier)
		},
	}
	r := testRouter(srv)

	rr := doJSON(t, r, "POST", "/v1/generate", `{"identifier":"u1","tier":"platinum","prompt":"hello"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rr.Code)
	}
}

func TestGenerate_PassesClientIP(t *testing.T) {
	var got governuc.Request
	srv := defaultServer()
	srv.govern = &mockGovernor{
		generateFn: func(_ context.Context, req governuc.Request) (governuc.Result, error) {
			got = req
			return governuc.Result{}, nil
		},
	}
	r := testRouter(srv)

	req := httptest.NewRequest("POST", "/v1/generate", strings.NewReader(`{"identifier":"u1","prompt":"hello"}`))
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if got.IP != "203.0.113.9" {
		t.Errorf("expected first forwarded hop, got %q", got.IP)
	}
}

func TestUsageStats(t *testing.T) {
	r := testRouter(defaultServer())

	rr := doJSON(t, r, "GET", "/v1/usage/u1?tier=free", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}

	var stats quotauc.Stats
	if err := json.NewDecoder(rr.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Identifier != "u1" || stats.LimitCents != 875 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestUsageHistory_WeeksValidation(t *testing.T) {
	r := testRouter(defaultServer())

	if rr := doJSON(t, r, "GET", "/v1/usage/u1/history?weeks=8", ""); rr.Code != http.StatusOK {
		t.Errorf("weeks=8: got %d, want 200", rr.Code)
	}
	for _, q := range []string{"weeks=0", "weeks=53", "weeks=abc"} {
		if rr := doJSON(t, r, "GET", "/v1/usage/u1/history?"+q, ""); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", q, rr.Code)
		}
	}
}

func TestPricing(t *testing.T) {
	r := testRouter(defaultServer())

	rr := doJSON(t, r, "GET", "/v1/pricing", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	var view costuc.View
	if err := json.NewDecoder(rr.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Model != "gpt-4o-mini" {
		t.Errorf("unexpected model %q", view.Model)
	}
}

func TestExchangeRate(t *testing.T) {
	r := testRouter(defaultServer())

	rr := doJSON(t, r, "GET", "/v1/exchange-rate", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	var info rate.Info
	if err := json.NewDecoder(rr.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Rate != 5.25 || !info.Cached {
		t.Errorf("unexpected info %+v", info)
	}
}

func TestExchangeRefresh(t *testing.T) {
	r := testRouter(defaultServer())

	rr := doJSON(t, r, "POST", "/v1/exchange-rate/refresh", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
}

func TestLedgerDaily(t *testing.T) {
	r := testRouter(defaultServer())

	rr := doJSON(t, r, "GET", "/v1/ledger/daily/2026-09-02", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}

	var resp struct {
		Day     string               `json:"day"`
		Entries int64                `json:"entries"`
		Items   []domusage.CostEntry `json:"items"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Day != "2026-09-02" || resp.Entries != 2 {
		t.Errorf("unexpected summary %+v", resp)
	}
	if len(resp.Items) != 0 {
		t.Error("items must be omitted unless requested")
	}
}

func TestLedgerDaily_WithEntries(t *testing.T) {
	r := testRouter(defaultServer())

	rr := doJSON(t, r, "GET", "/v1/ledger/daily/2026-09-02?entries=true", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}

	var resp struct {
		Items []domusage.CostEntry `json:"items"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Errorf("expected 2 items, got %d", len(resp.Items))
	}
}

func TestLedgerDaily_BadDate_404(t *testing.T) {
	srv := defaultServer()
	srv.ledger = &mockLedger{
		summaryFn: func(_ context.Context, day string) (domusage.DailySummary, error) {
			return domusage.DailySummary{}, fmt.Errorf("ledger day %q: %w", day, domain.ErrNotFound)
		},
	}
	r := testRouter(srv)

	rr := doJSON(t, r, "GET", "/v1/ledger/daily/not-a-date", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	r := testRouter(defaultServer())

	rr := doJSON(t, r, "GET", "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}

	var report healthuc.Report
	if err := json.NewDecoder(rr.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Status != healthuc.Healthy {
		t.Errorf("unexpected status %q", report.Status)
	}
}
