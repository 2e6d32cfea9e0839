package cost

import (
	"context"

	"github.com/kailas-cloud/costgate/internal/domain"
	"github.com/kailas-cloud/costgate/internal/domain/rate"
)

// Pricing holds USD prices per million tokens for one model.
type Pricing struct {
	InputPerMillionUSD  float64
	OutputPerMillionUSD float64
}

// Estimate is a token count converted to money. Cents is the billable
// amount; the floats are intermediates kept for diagnostics.
type Estimate struct {
	Model string  `json:"model"`
	USD   float64 `json:"usd"`
	Local float64 `json:"local"`
	Cents int64   `json:"cents"`
}

// Calculator converts token counts into billable minor currency units.
// Deterministic apart from the slowly changing exchange rate.
type Calculator struct {
	model  string // default model for Estimate
	prices map[string]Pricing
	rates  RateConverter
}

// New creates a calculator billing for defaultModel.
func New(defaultModel string, prices map[string]Pricing, rates RateConverter) *Calculator {
	if prices == nil {
		prices = map[string]Pricing{}
	}
	return &Calculator{model: defaultModel, prices: prices, rates: rates}
}

// Estimate prices the given token counts for the default model.
func (c *Calculator) Estimate(ctx context.Context, inTokens, outTokens int64) Estimate {
	est, _ := c.EstimateModel(ctx, c.model, inTokens, outTokens)
	return est
}

// EstimateModel prices the given token counts for a specific model.
// Cents is always rounded up: billing must never under-charge.
func (c *Calculator) EstimateModel(ctx context.Context, model string, inTokens, outTokens int64) (Estimate, error) {
	p, ok := c.prices[model]
	if !ok {
		return Estimate{}, domain.ErrUnknownModel
	}
	if inTokens < 0 {
		inTokens = 0
	}
	if outTokens < 0 {
		outTokens = 0
	}

	usd := float64(inTokens)/1e6*p.InputPerMillionUSD + float64(outTokens)/1e6*p.OutputPerMillionUSD
	local := c.rates.Convert(ctx, usd)

	return Estimate{
		Model: model,
		USD:   usd,
		Local: local,
		Cents: domain.CeilCents(local),
	}, nil
}

// Example is a worked pricing example for operator pages.
type Example struct {
	Name      string `json:"name"`
	TokensIn  int64  `json:"tokens_in"`
	TokensOut int64  `json:"tokens_out"`
	Cents     int64  `json:"cents"`
	Display   string `json:"display"`
}

// View is the diagnostic pricing composition. Not on the hot path.
type View struct {
	Model       string    `json:"model"`
	USDIn       float64   `json:"usd_per_million_in"`
	USDOut      float64   `json:"usd_per_million_out"`
	LocalIn     float64   `json:"local_per_million_in"`
	LocalOut    float64   `json:"local_per_million_out"`
	RateInfo    rate.Info `json:"rate_info"`
	Examples    []Example `json:"examples"`
}

// Pricing returns the diagnostic view for the default model.
func (c *Calculator) Pricing(ctx context.Context) View {
	p := c.prices[c.model]
	info := c.rates.Info(ctx)

	examples := []Example{
		{Name: "short", TokensIn: 800, TokensOut: 400},
		{Name: "average", TokensIn: 2500, TokensOut: 1500},
		{Name: "long", TokensIn: 6000, TokensOut: 3000},
	}
	for i := range examples {
		est, _ := c.EstimateModel(ctx, c.model, examples[i].TokensIn, examples[i].TokensOut)
		examples[i].Cents = est.Cents
		examples[i].Display = domain.FormatBRL(est.Cents)
	}

	return View{
		Model:    c.model,
		USDIn:    p.InputPerMillionUSD,
		USDOut:   p.OutputPerMillionUSD,
		LocalIn:  c.rates.Convert(ctx, p.InputPerMillionUSD),
		LocalOut: c.rates.Convert(ctx, p.OutputPerMillionUSD),
		RateInfo: info,
		Examples: examples,
	}
}
