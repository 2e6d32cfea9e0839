package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/costgate/internal/domain"
	domusage "github.com/kailas-cloud/costgate/internal/domain/usage"
)

// Hash field names of a daily summary.
const (
	fieldEntries   = "entries"
	fieldCostCents = "cost_cents"
	fieldTokensIn  = "tokens_in"
	fieldTokensOut = "tokens_out"
	srcFieldPrefix = "src:"
	opFieldPrefix  = "op:"
)

// store is the consumer interface for ledger persistence (ISP).
type store interface {
	RPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LLen(ctx context.Context, key string) (int64, error)
	HIncrBy(ctx context.Context, key, field string, val int64) (int64, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// Repo persists immutable cost entries as per-day append-only lists and
// rolls them into per-day summary hashes at append time.
type Repo struct {
	store store
}

// New creates a ledger repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Append writes one cost entry and updates the day's summary counters.
// The entry list is append-only; entries are never rewritten.
func (r *Repo) Append(ctx context.Context, entry domusage.CostEntry) error {
	day := entry.CreatedAt.UTC().Format("2006-01-02")

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cost entry: %w", err)
	}
	if err := r.store.RPush(ctx, entriesKey(day), string(data)); err != nil {
		return fmt.Errorf("append cost entry: %w", err)
	}

	sumKey := summaryKey(day)
	increments := []struct {
		field string
		val   int64
	}{
		{fieldEntries, 1},
		{fieldCostCents, entry.CostCents},
		{fieldTokensIn, entry.TokensIn},
		{fieldTokensOut, entry.TokensOut},
		{srcFieldPrefix + string(entry.Source), 1},
		{opFieldPrefix + entry.Operation, entry.CostCents},
	}
	for _, inc := range increments {
		if _, err := r.store.HIncrBy(ctx, sumKey, inc.field, inc.val); err != nil {
			return fmt.Errorf("roll up cost entry %s: %w", sumKey, err)
		}
	}
	return nil
}

// Entries returns all cost entries recorded on the given day (2006-01-02).
func (r *Repo) Entries(ctx context.Context, day string) ([]domusage.CostEntry, error) {
	raw, err := r.store.LRange(ctx, entriesKey(day), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", day, err)
	}

	entries := make([]domusage.CostEntry, 0, len(raw))
	for _, item := range raw {
		var e domusage.CostEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("decode ledger entry %s: %w", day, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// DailySummary returns the rolled-up view of one day.
// A day with no entries yields a zero summary, not an error.
func (r *Repo) DailySummary(ctx context.Context, day string) (domusage.DailySummary, error) {
	fields, err := r.store.HGetAll(ctx, summaryKey(day))
	if err != nil {
		return domusage.DailySummary{}, fmt.Errorf("read daily summary %s: %w", day, err)
	}

	sum := domusage.DailySummary{
		Day:      day,
		BySource: map[string]int64{},
		ByOp:     map[string]int64{},
	}
	for f, v := range fields {
		switch {
		case f == fieldEntries:
			sum.Entries = parseInt(v)
		case f == fieldCostCents:
			sum.CostCents = parseInt(v)
		case f == fieldTokensIn:
			sum.TokensIn = parseInt(v)
		case f == fieldTokensOut:
			sum.TokensOut = parseInt(v)
		case strings.HasPrefix(f, srcFieldPrefix):
			sum.BySource[f[len(srcFieldPrefix):]] = parseInt(v)
		case strings.HasPrefix(f, opFieldPrefix):
			sum.ByOp[f[len(opFieldPrefix):]] = parseInt(v)
		}
	}
	return sum, nil
}

// Count returns the number of entries recorded on the given day.
func (r *Repo) Count(ctx context.Context, day string) (int64, error) {
	n, err := r.store.LLen(ctx, entriesKey(day))
	if err != nil {
		return 0, fmt.Errorf("count ledger %s: %w", day, err)
	}
	return n, nil
}

func entriesKey(day string) string {
	return domain.KeyPrefix + "ledger:entries:" + day
}

func summaryKey(day string) string {
	return domain.KeyPrefix + "ledger:day:" + day
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

// Day formats a timestamp as a ledger day key segment.
func Day(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
