package usage

import "time"

// Source identifies how a billed operation was served.
type Source string

// Cost entry sources.
const (
	SourceAI       Source = "ai"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
)

// CostEntry is one immutable ledger record per billed operation.
// Written once, read only for aggregation.
type CostEntry struct {
	ID         string        `json:"id"`
	Identifier string        `json:"identifier"`
	IP         string        `json:"ip,omitempty"`
	Operation  string        `json:"operation"`
	TokensIn   int64         `json:"tokens_in"`
	TokensOut  int64         `json:"tokens_out"`
	CostCents  int64         `json:"cost_cents"`
	Model      string        `json:"model"`
	Source     Source        `json:"source"`
	Duration   time.Duration `json:"duration_ms"`
	CreatedAt  time.Time     `json:"created_at"`
}

// DailySummary is the rolled-up view of one day of ledger entries.
type DailySummary struct {
	Day       string           `json:"day"` // 2006-01-02
	Entries   int64            `json:"entries"`
	CostCents int64            `json:"cost_cents"`
	TokensIn  int64            `json:"tokens_in"`
	TokensOut int64            `json:"tokens_out"`
	BySource  map[string]int64 `json:"by_source"`
	ByOp      map[string]int64 `json:"by_operation"`
}
