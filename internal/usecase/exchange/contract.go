package exchange

import (
	"context"

	"github.com/kailas-cloud/costgate/internal/domain/rate"
)

// Source is one remote exchange-rate source, tried in declared priority order.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (rate.Quote, error)
}
