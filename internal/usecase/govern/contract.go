package govern

import (
	"context"

	"github.com/kailas-cloud/costgate/internal/domain/usage"
	"github.com/kailas-cloud/costgate/internal/transport/openai"
	"github.com/kailas-cloud/costgate/internal/usecase/cost"
	"github.com/kailas-cloud/costgate/internal/usecase/ledger"
	"github.com/kailas-cloud/costgate/internal/usecase/quota"
)

// Estimator prices token counts before and after the paid call.
type Estimator interface {
	Estimate(ctx context.Context, inTokens, outTokens int64) cost.Estimate
}

// QuotaTracker admits and accounts per-identifier weekly spend.
type QuotaTracker interface {
	Check(ctx context.Context, identifier string, estCents, limitCents int64) (quota.CheckResult, error)
	Record(ctx context.Context, identifier, operation string, actualCents int64) (usage.Weekly, error)
}

// Ledger records every billed operation.
type Ledger interface {
	Append(ctx context.Context, params ledger.AppendParams) (usage.CostEntry, error)
}

// AIClient runs the metered provider call.
type AIClient interface {
	Complete(ctx context.Context, prompt string) (openai.Completion, error)
	Model() string
}
