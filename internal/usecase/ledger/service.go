package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/costgate/internal/domain"
	"github.com/kailas-cloud/costgate/internal/domain/usage"
)

// AppendParams carries the facts of one billed operation. The service
// assigns the entry's identity and timestamp.
type AppendParams struct {
	Identifier string
	IP         string
	Operation  string
	TokensIn   int64
	TokensOut  int64
	CostCents  int64
	Model      string
	Source     usage.Source
	Duration   time.Duration
}

// Service writes the append-only cost ledger. Entries are immutable:
// the service mints the id and timestamp, appends, and never updates.
type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

// New creates a ledger service.
func New(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Append records one billed operation. Persistence failures propagate:
// a cost event that cannot be written must not be silently dropped.
func (s *Service) Append(ctx context.Context, params AppendParams) (usage.CostEntry, error) {
	entry := usage.CostEntry{
		ID:         uuid.NewString(),
		Identifier: params.Identifier,
		IP:         params.IP,
		Operation:  params.Operation,
		TokensIn:   params.TokensIn,
		TokensOut:  params.TokensOut,
		CostCents:  params.CostCents,
		Model:      params.Model,
		Source:     params.Source,
		Duration:   params.Duration,
		CreatedAt:  s.now().UTC(),
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		return usage.CostEntry{}, fmt.Errorf("ledger append: %w", err)
	}

	s.logger.Info("cost entry recorded",
		zap.String("entry_id", entry.ID),
		zap.String("identifier", entry.Identifier),
		zap.String("operation", entry.Operation),
		zap.Int64("cost_cents", entry.CostCents),
		zap.String("source", string(entry.Source)),
	)
	return entry, nil
}

// Entries returns all entries recorded on the given day (2006-01-02).
func (s *Service) Entries(ctx context.Context, day string) ([]usage.CostEntry, error) {
	if _, err := time.Parse("2006-01-02", day); err != nil {
		return nil, fmt.Errorf("ledger day %q: %w", day, domain.ErrNotFound)
	}
	return s.repo.Entries(ctx, day)
}

// DailySummary returns the rolled-up view of one day.
func (s *Service) DailySummary(ctx context.Context, day string) (usage.DailySummary, error) {
	if _, err := time.Parse("2006-01-02", day); err != nil {
		return usage.DailySummary{}, fmt.Errorf("ledger day %q: %w", day, domain.ErrNotFound)
	}
	return s.repo.DailySummary(ctx, day)
}

// Today returns today's rolled-up summary.
func (s *Service) Today(ctx context.Context) (usage.DailySummary, error) {
	return s.repo.DailySummary(ctx, s.now().UTC().Format("2006-01-02"))
}
