package usage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/costgate/internal/domain"
	domusage "github.com/kailas-cloud/costgate/internal/domain/usage"
)

// Hash field names of a weekly usage row.
const (
	fieldTotalCents = "total_cents"
	fieldOpCount    = "op_count"
	fieldLastOpAt   = "last_op_at"
	opFieldPrefix   = "op:"
	costFieldPrefix = "cost:"
)

// store is the consumer interface for weekly usage rows (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	HIncrBy(ctx context.Context, key, field string, val int64) (int64, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
}

// Repo persists per-(identifier, week) spending aggregates as hashes.
// All counter updates go through HINCRBY, so concurrent Record calls for
// the same identifier never lose deltas.
type Repo struct {
	store store
}

// New creates a weekly usage repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Find loads the aggregate for (identifier, weekStart).
// Returns domain.ErrNotFound when no spend was ever recorded for that week.
func (r *Repo) Find(ctx context.Context, identifier string, weekStart time.Time) (domusage.Weekly, error) {
	key := rowKey(identifier, weekStart)
	fields, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domusage.Weekly{}, fmt.Errorf("find weekly usage %s: %w", key, err)
	}
	if len(fields) == 0 {
		return domusage.Weekly{}, domain.ErrNotFound
	}
	return rowFromHash(identifier, weekStart, fields), nil
}

// Record atomically adds one operation to the aggregate, creating the row
// on first use. Returns the total after the increment.
func (r *Repo) Record(
	ctx context.Context,
	identifier string, weekStart time.Time,
	operation string, costCents int64, at time.Time,
) (int64, error) {
	key := rowKey(identifier, weekStart)

	total, err := r.store.HIncrBy(ctx, key, fieldTotalCents, costCents)
	if err != nil {
		return 0, fmt.Errorf("record usage %s: %w", key, err)
	}
	if _, err := r.store.HIncrBy(ctx, key, fieldOpCount, 1); err != nil {
		return 0, fmt.Errorf("record usage %s: %w", key, err)
	}
	if _, err := r.store.HIncrBy(ctx, key, opFieldPrefix+operation, 1); err != nil {
		return 0, fmt.Errorf("record usage %s: %w", key, err)
	}
	if _, err := r.store.HIncrBy(ctx, key, costFieldPrefix+operation, costCents); err != nil {
		return 0, fmt.Errorf("record usage %s: %w", key, err)
	}

	lastOp := strconv.FormatInt(at.UTC().UnixMilli(), 10)
	if err := r.store.HSet(ctx, key, map[string]string{fieldLastOpAt: lastOp}); err != nil {
		return 0, fmt.Errorf("record usage %s: %w", key, err)
	}

	return total, nil
}

// History returns up to weekCount rows ending at the week of `from`,
// most recent first. Weeks with no recorded spend are omitted.
func (r *Repo) History(
	ctx context.Context, identifier string, from time.Time, weekCount int,
) ([]domusage.Weekly, error) {
	if weekCount <= 0 {
		return nil, nil
	}

	starts := make([]time.Time, weekCount)
	keys := make([]string, weekCount)
	week := domusage.WeekStart(from)
	for i := 0; i < weekCount; i++ {
		starts[i] = week
		keys[i] = rowKey(identifier, week)
		week = week.AddDate(0, 0, -7)
	}

	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("usage history %s: %w", identifier, err)
	}

	rows := make([]domusage.Weekly, 0, weekCount)
	for i, fields := range hashes {
		if len(fields) == 0 {
			continue
		}
		rows = append(rows, rowFromHash(identifier, starts[i], fields))
	}
	return rows, nil
}

func rowKey(identifier string, weekStart time.Time) string {
	return domain.KeyPrefix + "usage:" + identifier + ":" + weekStart.UTC().Format("2006-01-02")
}

func rowFromHash(identifier string, weekStart time.Time, fields map[string]string) domusage.Weekly {
	var totalCents, opCount int64
	var lastOpAt time.Time
	opBreakdown := map[string]int64{}
	costByOp := map[string]int64{}

	for f, v := range fields {
		switch {
		case f == fieldTotalCents:
			totalCents = parseInt(v)
		case f == fieldOpCount:
			opCount = parseInt(v)
		case f == fieldLastOpAt:
			if ms := parseInt(v); ms > 0 {
				lastOpAt = time.UnixMilli(ms).UTC()
			}
		case strings.HasPrefix(f, opFieldPrefix):
			opBreakdown[f[len(opFieldPrefix):]] = parseInt(v)
		case strings.HasPrefix(f, costFieldPrefix):
			costByOp[f[len(costFieldPrefix):]] = parseInt(v)
		}
	}

	return domusage.NewWeekly(identifier, weekStart, totalCents, opCount, opBreakdown, costByOp, lastOpAt)
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
