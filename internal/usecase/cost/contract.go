package cost

import (
	"context"

	"github.com/kailas-cloud/costgate/internal/domain/rate"
)

// RateConverter converts USD amounts using the current exchange rate.
type RateConverter interface {
	Convert(ctx context.Context, usd float64) float64
	Info(ctx context.Context) rate.Info
}
