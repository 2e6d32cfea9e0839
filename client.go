// Package costgate embeds the cost governance core in a host service:
// exchange-rate acquisition, token cost estimation, weekly quotas and the
// usage ledger over a shared Redis or Valkey store, without the HTTP API.
package costgate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/costgate/internal/db"
	dbRedis "github.com/kailas-cloud/costgate/internal/db/redis"
	"github.com/kailas-cloud/costgate/internal/domain/rate"
	"github.com/kailas-cloud/costgate/internal/domain/usage"
	ledgerrepo "github.com/kailas-cloud/costgate/internal/repository/ledger"
	usagerepo "github.com/kailas-cloud/costgate/internal/repository/usage"
	exchangeTransport "github.com/kailas-cloud/costgate/internal/transport/exchange"
	costuc "github.com/kailas-cloud/costgate/internal/usecase/cost"
	exchangeuc "github.com/kailas-cloud/costgate/internal/usecase/exchange"
	ledgeruc "github.com/kailas-cloud/costgate/internal/usecase/ledger"
	quotauc "github.com/kailas-cloud/costgate/internal/usecase/quota"
)

const defaultReadinessTimeout = 10 * time.Second

// Re-exported result types so SDK users avoid internal imports.
type (
	// CheckResult is a quota admission decision.
	CheckResult = quotauc.CheckResult
	// Stats is the current-week usage view.
	Stats = quotauc.Stats
	// History is the multi-week usage view.
	History = quotauc.History
	// Estimate is a token count converted to money.
	Estimate = costuc.Estimate
	// RateInfo is the exchange rate diagnostic view.
	RateInfo = rate.Info
	// CostEntry is one immutable ledger record.
	CostEntry = usage.CostEntry
	// DailySummary is the rolled-up view of one ledger day.
	DailySummary = usage.DailySummary
	// AppendParams carries the facts of one billed operation.
	AppendParams = ledgeruc.AppendParams
	// ModelPricing holds USD prices per million tokens.
	ModelPricing = costuc.Pricing
)

// Client is the costgate SDK entry point.
type Client struct {
	store   db.Store
	rates   *exchangeuc.Service
	calc    *costuc.Calculator
	tracker *quotauc.Tracker
	ledger  *ledgeruc.Service
}

// New creates a costgate Client and connects to the database.
func New(opts ...Option) (*Client, error) {
	cfg := defaultClientConfig()
	for _, o := range opts {
		o(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("costgate: database address required (use WithStore)")
	}
	if len(cfg.pricing) == 0 {
		return nil, errors.New("costgate: pricing table required (use WithPricing)")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("costgate: create store: %w", err)
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("costgate: database not ready: %w", err)
	}

	sources := make([]exchangeuc.Source, 0, len(cfg.rateSources))
	for _, src := range cfg.rateSources {
		sources = append(sources, exchangeTransport.NewClient(src.Name, src.BaseURL, cfg.currency, cfg.fetchTimeout))
	}
	rates := exchangeuc.New(sources, exchangeuc.Config{
		TTL:          cfg.rateTTL,
		FallbackRate: cfg.fallbackRate,
		MinRate:      cfg.minRate,
		MaxRate:      cfg.maxRate,
	}, cfg.logger)

	return &Client{
		store:   store,
		rates:   rates,
		calc:    costuc.New(cfg.defaultModel, cfg.pricing, rates),
		tracker: quotauc.New(usagerepo.New(store), cfg.logger),
		ledger:  ledgeruc.New(ledgerrepo.New(store), cfg.logger),
	}, nil
}

// Close releases the database connection.
func (c *Client) Close() {
	c.store.Close()
}

// Estimate prices token counts for the default model.
func (c *Client) Estimate(ctx context.Context, inTokens, outTokens int64) Estimate {
	return c.calc.Estimate(ctx, inTokens, outTokens)
}

// CheckQuota reports whether an operation estimated at estCents may
// proceed under limitCents this week.
func (c *Client) CheckQuota(ctx context.Context, identifier string, estCents, limitCents int64) (CheckResult, error) {
	return c.tracker.Check(ctx, identifier, estCents, limitCents)
}

// RecordUsage adds an operation's actual cost to the current week.
func (c *Client) RecordUsage(ctx context.Context, identifier, operation string, actualCents int64) error {
	_, err := c.tracker.Record(ctx, identifier, operation, actualCents)
	return err
}

// UsageStats returns the current-week usage view for an identifier.
func (c *Client) UsageStats(ctx context.Context, identifier string, limitCents int64) (Stats, error) {
	return c.tracker.Stats(ctx, identifier, limitCents)
}

// UsageHistory returns up to weeks of past usage, most recent first.
func (c *Client) UsageHistory(ctx context.Context, identifier string, weeks int) (History, error) {
	return c.tracker.History(ctx, identifier, weeks)
}

// AppendEntry writes one billed operation to the ledger.
func (c *Client) AppendEntry(ctx context.Context, params AppendParams) (CostEntry, error) {
	return c.ledger.Append(ctx, params)
}

// LedgerDay returns the rolled-up summary of one day (2006-01-02).
func (c *Client) LedgerDay(ctx context.Context, day string) (DailySummary, error) {
	return c.ledger.DailySummary(ctx, day)
}

// ExchangeRate returns the diagnostic view of the rate in use.
func (c *Client) ExchangeRate(ctx context.Context) RateInfo {
	return c.rates.Info(ctx)
}

// Option configures the Client.
type Option func(*clientConfig)

// RateSource names one remote exchange-rate endpoint.
type RateSource struct {
	Name    string
	BaseURL string
}

type clientConfig struct {
	addrs        []string
	password     string
	logger       *zap.Logger
	currency     string
	rateSources  []RateSource
	rateTTL      time.Duration
	fetchTimeout time.Duration
	fallbackRate float64
	minRate      float64
	maxRate      float64
	defaultModel string
	pricing      map[string]ModelPricing
}

func defaultClientConfig() *clientConfig {
	return &clientConfig{
		logger:       zap.NewNop(),
		currency:     "BRL",
		rateTTL:      time.Hour,
		fetchTimeout: 5 * time.Second,
		fallbackRate: 5.33,
		minRate:      3,
		maxRate:      10,
	}
}

// WithStore connects to a Redis or Valkey store.
func WithStore(addrs []string, password string) Option {
	return func(c *clientConfig) {
		c.addrs = addrs
		c.password = password
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithPricing sets the pricing table and the default model to bill for.
func WithPricing(defaultModel string, pricing map[string]ModelPricing) Option {
	return func(c *clientConfig) {
		c.defaultModel = defaultModel
		c.pricing = pricing
	}
}

// WithRateSources sets the exchange-rate providers, tried in order.
func WithRateSources(sources ...RateSource) Option {
	return func(c *clientConfig) {
		c.rateSources = sources
	}
}

// WithCurrency sets the local currency code. Defaults to BRL.
func WithCurrency(currency string) Option {
	return func(c *clientConfig) {
		c.currency = currency
	}
}

// WithFallbackRate overrides the hard-coded fallback rate.
func WithFallbackRate(rate float64) Option {
	return func(c *clientConfig) {
		c.fallbackRate = rate
	}
}
