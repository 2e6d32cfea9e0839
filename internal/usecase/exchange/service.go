package exchange

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/costgate/internal/domain/rate"
	"github.com/kailas-cloud/costgate/internal/metrics"
)

// Config holds rate acquisition policy.
type Config struct {
	TTL          time.Duration // cache lifetime before a refresh is attempted
	FallbackRate float64       // used when no fetch ever succeeded
	MinRate      float64       // sanity band lower bound, inclusive
	MaxRate      float64       // sanity band upper bound, inclusive
}

// Service produces the current USD to local-currency rate.
// The cached snapshot is replaced wholesale; readers never block on a
// refresh. Rate acquisition never fails: a dead provider chain degrades
// to the stale cache, then to the hard-coded fallback.
type Service struct {
	mu      sync.RWMutex
	cached  *rate.Rate // nil until the first successful fetch
	sources []Source
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a rate service.
func New(sources []Source, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		sources: sources,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Current returns the rate snapshot to bill against right now.
func (s *Service) Current(ctx context.Context) rate.Rate {
	s.mu.RLock()
	cached := s.cached
	s.mu.RUnlock()

	if cached != nil && cached.Age(s.now()) < s.cfg.TTL {
		return *cached
	}

	if fresh, ok := s.refresh(ctx); ok {
		return fresh
	}

	// Stale-but-available beats the hard-coded constant.
	if cached != nil {
		return *cached
	}
	return rate.Fallback(s.cfg.FallbackRate)
}

// Rate returns the current local-currency-per-USD value.
func (s *Service) Rate(ctx context.Context) float64 {
	return s.Current(ctx).Value()
}

// Convert converts a USD amount into local currency. No rounding here;
// the rounding policy belongs to the caller.
func (s *Service) Convert(ctx context.Context, usd float64) float64 {
	return usd * s.Rate(ctx)
}

// Info returns the diagnostic view of the rate in use.
func (s *Service) Info(ctx context.Context) rate.Info {
	r := s.Current(ctx)
	return rate.Info{
		Rate:   r.Value(),
		Source: r.Source(),
		Date:   r.Date(),
		Cached: !r.IsFallback(),
		Age:    r.Age(s.now()) / time.Millisecond,
	}
}

// ForceRefresh fetches a fresh rate ignoring the TTL, for operator-triggered
// recalibration. A failed refresh keeps the existing cache in place.
func (s *Service) ForceRefresh(ctx context.Context) rate.Info {
	if _, ok := s.refresh(ctx); !ok {
		s.logger.Warn("Forced rate refresh failed, keeping previous snapshot")
	}
	return s.Info(ctx)
}

// refresh walks the provider chain and publishes the first sane quote.
func (s *Service) refresh(ctx context.Context) (rate.Rate, bool) {
	for _, src := range s.sources {
		quote, err := src.Fetch(ctx)
		if err != nil {
			s.logger.Warn("Exchange rate fetch failed",
				zap.String("provider", src.Name()),
				zap.Error(err),
			)
			continue
		}

		if quote.Rate < s.cfg.MinRate || quote.Rate > s.cfg.MaxRate {
			metrics.ExchangeFetchesTotal.WithLabelValues(src.Name(), "out_of_band").Inc()
			s.logger.Warn("Exchange rate out of sanity band",
				zap.String("provider", src.Name()),
				zap.Float64("rate", quote.Rate),
				zap.Float64("min", s.cfg.MinRate),
				zap.Float64("max", s.cfg.MaxRate),
			)
			continue
		}

		fresh := rate.New(quote.Rate, src.Name(), quote.Date, s.now())

		s.mu.Lock()
		s.cached = &fresh
		s.mu.Unlock()

		metrics.ExchangeRate.Set(quote.Rate)
		s.logger.Info("Exchange rate refreshed",
			zap.String("provider", src.Name()),
			zap.Float64("rate", quote.Rate),
			zap.String("date", quote.Date),
		)
		return fresh, true
	}

	return rate.Rate{}, false
}
