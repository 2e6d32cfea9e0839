package ledger

import (
	"context"

	"github.com/kailas-cloud/costgate/internal/domain/usage"
)

// Repository is the consumer interface for ledger persistence (ISP).
type Repository interface {
	Append(ctx context.Context, entry usage.CostEntry) error
	Entries(ctx context.Context, day string) ([]usage.CostEntry, error)
	DailySummary(ctx context.Context, day string) (usage.DailySummary, error)
	Count(ctx context.Context, day string) (int64, error)
}
