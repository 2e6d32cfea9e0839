package quota

import (
	"context"
	"time"

	"github.com/kailas-cloud/costgate/internal/domain/usage"
)

// Repository is the consumer interface for weekly usage persistence (ISP).
type Repository interface {
	Find(ctx context.Context, identifier string, weekStart time.Time) (usage.Weekly, error)
	Record(ctx context.Context, identifier string, weekStart time.Time, operation string, costCents int64, at time.Time) (int64, error)
	History(ctx context.Context, identifier string, from time.Time, weekCount int) ([]usage.Weekly, error)
}
