package govern

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/costgate/internal/domain"
	"github.com/kailas-cloud/costgate/internal/domain/usage"
	"github.com/kailas-cloud/costgate/internal/usecase/cost"
	"github.com/kailas-cloud/costgate/internal/usecase/ledger"
	"github.com/kailas-cloud/costgate/internal/usecase/quota"
)

// OperationGenerate is the billed operation name for text generation.
const OperationGenerate = "generate"

// Config holds governance policy for the generate pipeline.
type Config struct {
	Limits            map[string]int64 // tier -> weekly limit in centavos
	ExpectedOutTokens int64            // planning figure for pre-call estimates
}

// Request is one governed generation request.
type Request struct {
	Identifier string
	IP         string
	Tier       string
	Prompt     string
}

// Result is the answered request with its accounting trail.
type Result struct {
	Text      string            `json:"text"`
	Model     string            `json:"model"`
	TokensIn  int64             `json:"tokens_in"`
	TokensOut int64             `json:"tokens_out"`
	CostCents int64             `json:"cost_cents"`
	EntryID   string            `json:"entry_id"`
	Quota     quota.CheckResult `json:"quota"`
}

// Service runs the governed operation pipeline: estimate the cost of a
// prompt, admit it against the caller's weekly quota, run the paid call,
// then account the actual cost in the weekly aggregate and the ledger.
// Denial happens before any money is spent; accounting happens after,
// with no second limit check.
type Service struct {
	calc   Estimator
	quota  QuotaTracker
	ledger Ledger
	ai     AIClient
	cfg    Config
	logger *zap.Logger
}

// New creates a governance service.
func New(calc Estimator, tracker QuotaTracker, led Ledger, ai AIClient, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		calc:   calc,
		quota:  tracker,
		ledger: led,
		ai:     ai,
		cfg:    cfg,
		logger: logger,
	}
}

// Generate runs one governed generation. Returns domain.ErrQuotaExceeded
// when the weekly quota denies the estimated cost.
func (s *Service) Generate(ctx context.Context, req Request) (Result, error) {
	limit, err := s.limitFor(req.Tier)
	if err != nil {
		return Result{}, err
	}

	// Pre-call estimate: prompt tokens approximated at 4 chars per token,
	// output at the configured planning figure.
	estIn := estimateTokens(req.Prompt)
	est := s.calc.Estimate(ctx, estIn, s.cfg.ExpectedOutTokens)

	check, err := s.quota.Check(ctx, req.Identifier, est.Cents, limit)
	if err != nil {
		return Result{}, err
	}
	if !check.Allowed {
		return Result{Quota: check}, fmt.Errorf(
			"identifier %s: estimated %d centavos over %d limit: %w",
			req.Identifier, est.Cents, limit, domain.ErrQuotaExceeded,
		)
	}

	completion, err := s.ai.Complete(ctx, req.Prompt)
	if err != nil {
		return Result{}, err
	}

	// Bill the provider's reported usage, not the estimate.
	actual := s.calc.Estimate(ctx, completion.TokensIn, completion.TokensOut)

	weekly, err := s.quota.Record(ctx, req.Identifier, OperationGenerate, actual.Cents)
	if err != nil {
		return Result{}, err
	}

	entry, err := s.ledger.Append(ctx, ledger.AppendParams{
		Identifier: req.Identifier,
		IP:         req.IP,
		Operation:  OperationGenerate,
		TokensIn:   completion.TokensIn,
		TokensOut:  completion.TokensOut,
		CostCents:  actual.Cents,
		Model:      completion.Model,
		Source:     usage.SourceAI,
		Duration:   completion.Duration,
	})
	if err != nil {
		return Result{}, err
	}

	s.logger.Info("governed operation completed",
		zap.String("identifier", req.Identifier),
		zap.Int64("estimated_cents", est.Cents),
		zap.Int64("actual_cents", actual.Cents),
		zap.Int64("week_total_cents", weekly.TotalCents()),
	)

	remaining := limit - weekly.TotalCents()
	if remaining < 0 {
		remaining = 0
	}
	check.CurrentUsage = weekly.TotalCents()
	check.Remaining = remaining

	return Result{
		Text:      completion.Text,
		Model:     completion.Model,
		TokensIn:  completion.TokensIn,
		TokensOut: completion.TokensOut,
		CostCents: actual.Cents,
		EntryID:   entry.ID,
		Quota:     check,
	}, nil
}

// LimitFor resolves a tier name to its weekly limit in centavos.
func (s *Service) LimitFor(tier string) (int64, error) {
	return s.limitFor(tier)
}

func (s *Service) limitFor(tier string) (int64, error) {
	if tier == "" {
		tier = "free"
	}
	limit, ok := s.cfg.Limits[tier]
	if !ok {
		return 0, fmt.Errorf("tier %q: %w", tier, domain.ErrUnknownTier)
	}
	return limit, nil
}

// estimateTokens approximates the token count of a prompt at 4 characters
// per token, rounding up, minimum 1 for a non-empty prompt.
func estimateTokens(prompt string) int64 {
	if len(prompt) == 0 {
		return 0
	}
	return int64((len(prompt) + 3) / 4)
}

var _ Estimator = (*cost.Calculator)(nil)
