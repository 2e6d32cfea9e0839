package health

import (
	"context"

	"github.com/kailas-cloud/costgate/internal/domain/rate"
)

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// AIChecker checks AI provider availability.
type AIChecker interface {
	HealthCheck(ctx context.Context) error
}

// RateInformer reports the exchange rate snapshot in use.
type RateInformer interface {
	Info(ctx context.Context) rate.Info
}
