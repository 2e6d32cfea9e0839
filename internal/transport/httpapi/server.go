package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

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

const maxPromptBytes = 64 * 1024

// Governor runs the governed operation pipeline.
type Governor interface {
	Generate(ctx context.Context, req governuc.Request) (governuc.Result, error)
	LimitFor(tier string) (int64, error)
}

// UsageReader serves per-identifier usage views.
type UsageReader interface {
	Stats(ctx context.Context, identifier string, limitCents int64) (quotauc.Stats, error)
	History(ctx context.Context, identifier string, weeks int) (quotauc.History, error)
}

// RateReader serves the exchange rate diagnostic surface.
type RateReader interface {
	Info(ctx context.Context) rate.Info
	ForceRefresh(ctx context.Context) rate.Info
}

// PricingReader serves the pricing diagnostic surface.
type PricingReader interface {
	Pricing(ctx context.Context) costuc.View
}

// LedgerReader serves daily ledger views.
type LedgerReader interface {
	Entries(ctx context.Context, day string) ([]domusage.CostEntry, error)
	DailySummary(ctx context.Context, day string) (domusage.DailySummary, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the governance API over chi.
type Server struct {
	govern        Governor
	usage         UsageReader
	rates         RateReader
	pricing       PricingReader
	ledger        LedgerReader
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	govern Governor,
	usage UsageReader,
	rates RateReader,
	pricing PricingReader,
	ledger LedgerReader,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		govern:  govern,
		usage:   usage,
		rates:   rates,
		pricing: pricing,
		ledger:  ledger,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrQuotaExceeded, http.StatusPaymentRequired, codeQuotaExceeded),
		sentinelHandler(domain.ErrUnknownTier, http.StatusBadRequest, codeUnknownTier),
		sentinelHandler(domain.ErrUnknownModel, http.StatusBadRequest, codeUnknownModel),
		sentinelHandler(domain.ErrProviderError, http.StatusBadGateway, codeProviderError),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
	}
	return s
}

// Register mounts all API routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Post("/v1/generate", s.generate)
	r.Get("/v1/usage/{identifier}", s.usageStats)
	r.Get("/v1/usage/{identifier}/history", s.usageHistory)
	r.Get("/v1/pricing", s.pricingView)
	r.Get("/v1/exchange-rate", s.exchangeRate)
	r.Post("/v1/exchange-rate/refresh", s.exchangeRefresh)
	r.Get("/v1/ledger/daily/{date}", s.ledgerDaily)
	r.Get("/healthz", s.healthz)
}

// generateRequest is the POST /v1/generate body.
type generateRequest struct {
	Identifier string `json:"identifier"`
	Tier       string `json:"tier"`
	Prompt     string `json:"prompt"`
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPromptBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Identifier == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "identifier is required")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "prompt is required")
		return
	}

	result, err := s.govern.Generate(r.Context(), governuc.Request{
		Identifier: req.Identifier,
		IP:         clientIP(r),
		Tier:       req.Tier,
		Prompt:     req.Prompt,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) usageStats(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")

	limit, err := s.govern.LimitFor(r.URL.Query().Get("tier"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	stats, err := s.usage.Stats(r.Context(), identifier, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) usageHistory(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")

	weeks := 4
	if raw := r.URL.Query().Get("weeks"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 52 {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "weeks must be 1..52")
			return
		}
		weeks = n
	}

	history, err := s.usage.History(r.Context(), identifier, weeks)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) pricingView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pricing.Pricing(r.Context()))
}

func (s *Server) exchangeRate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.rates.Info(r.Context()))
}

func (s *Server) exchangeRefresh(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.rates.ForceRefresh(r.Context()))
}

func (s *Server) ledgerDaily(w http.ResponseWriter, r *http.Request) {
	day := chi.URLParam(r, "date")

	summary, err := s.ledger.DailySummary(r.Context(), day)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := struct {
		domusage.DailySummary
		Items []domusage.CostEntry `json:"items,omitempty"`
	}{DailySummary: summary}

	if r.URL.Query().Get("entries") == "true" {
		entries, err := s.ledger.Entries(r.Context(), day)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		resp.Items = entries
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// clientIP extracts the caller address, honoring X-Forwarded-For.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Error codes returned by the API.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeNotFound         = "not_found"
	codeQuotaExceeded    = "quota_exceeded"
	codeUnknownTier      = "unknown_tier"
	codeUnknownModel     = "unknown_model"
	codeProviderError    = "provider_error"
	codeInternal         = "internal_error"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrQuotaExceeded,
		domain.ErrUnknownTier,
		domain.ErrUnknownModel,
		domain.ErrProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	writeError(w, http.StatusInternalServerError, codeInternal, msg)
}
