package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/costgate/internal/domain"
	"github.com/kailas-cloud/costgate/internal/domain/usage"
	"github.com/kailas-cloud/costgate/internal/metrics"
)

// CheckResult is the outcome of an admission check. Allowed=false is a
// normal business outcome, not an error.
type CheckResult struct {
	Allowed          bool      `json:"allowed"`
	CurrentUsage     int64     `json:"current_usage_cents"`
	Limit            int64     `json:"limit_cents"`
	Remaining        int64     `json:"remaining_cents"`
	RemainingPercent float64   `json:"remaining_percent"`
	WeekStart        time.Time `json:"week_start"`
	WeekEnd          time.Time `json:"week_end"`
	DaysUntilReset   int       `json:"days_until_reset"`
}

// Stats is the operator-facing usage view for the current week.
type Stats struct {
	Identifier     string           `json:"identifier"`
	WeekStart      time.Time        `json:"week_start"`
	WeekEnd        time.Time        `json:"week_end"`
	UsedCents      int64            `json:"used_cents"`
	UsedDisplay    string           `json:"used_display"`
	LimitCents     int64            `json:"limit_cents"`
	LimitDisplay   string           `json:"limit_display"`
	RemainingCents int64            `json:"remaining_cents"`
	UsedPercent    float64          `json:"used_percent"`
	OpCount        int64            `json:"op_count"`
	OpBreakdown    map[string]int64 `json:"op_breakdown"`
	CostByOp       map[string]int64 `json:"cost_by_op"`
	LastOpAt       time.Time        `json:"last_op_at,omitempty"`
	DaysUntilReset int              `json:"days_until_reset"`
}

// HistoryWeek is one row of the usage history view.
type HistoryWeek struct {
	WeekStart   time.Time `json:"week_start"`
	CostCents   int64     `json:"cost_cents"`
	CostDisplay string    `json:"cost_display"`
	OpCount     int64     `json:"op_count"`
}

// History is the multi-week usage view, most recent first.
type History struct {
	Identifier         string        `json:"identifier"`
	Weeks              []HistoryWeek `json:"weeks"`
	AverageWeeklyCents int64         `json:"average_weekly_cents"`
	PeakWeekStart      time.Time     `json:"peak_week_start,omitempty"`
	PeakWeekCents      int64         `json:"peak_week_cents"`
	TotalCents         int64         `json:"total_cents"`
}

// Tracker enforces per-identifier weekly spending quotas. The week rolls
// over at Monday 00:00 UTC by keying, never by deletion: the check simply
// observes the new week's empty row. Limits are passed by the caller, so
// one tracker serves every tier.
//
// Check and Record are separate calls. Two concurrent requests can both
// pass Check and jointly overshoot the limit by at most one operation;
// Record never blocks, so spend that already happened is always counted.
type Tracker struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

// New creates a weekly quota tracker.
func New(repo Repository, logger *zap.Logger) *Tracker {
	return &Tracker{repo: repo, logger: logger, now: time.Now}
}

// Check reports whether an operation estimated at estCents may proceed
// under limitCents. Read-only: a missing weekly row is observed as zero
// usage, never created here.
func (t *Tracker) Check(ctx context.Context, identifier string, estCents, limitCents int64) (CheckResult, error) {
	now := t.now().UTC()
	weekStart := usage.WeekStart(now)

	weekly, err := t.repo.Find(ctx, identifier, weekStart)
	if errors.Is(err, domain.ErrNotFound) {
		weekly = usage.EmptyWeekly(identifier, weekStart)
	} else if err != nil {
		return CheckResult{}, fmt.Errorf("quota check %s: %w", identifier, err)
	}

	used := weekly.TotalCents()
	allowed := used+estCents <= limitCents

	result := "allowed"
	if !allowed {
		result = "denied"
		t.logger.Warn("weekly quota would be exceeded",
			zap.String("identifier", identifier),
			zap.Int64("used_cents", used),
			zap.Int64("estimated_cents", estCents),
			zap.Int64("limit_cents", limitCents),
		)
	}
	metrics.QuotaChecksTotal.WithLabelValues(result).Inc()

	remaining := limitCents - used
	if remaining < 0 {
		remaining = 0
	}

	return CheckResult{
		Allowed:          allowed,
		CurrentUsage:     used,
		Limit:            limitCents,
		Remaining:        remaining,
		RemainingPercent: remainingPercent(remaining, limitCents),
		WeekStart:        weekStart,
		WeekEnd:          usage.WeekEnd(weekStart),
		DaysUntilReset:   daysUntilReset(now, weekStart),
	}, nil
}

// Record adds an operation's actual cost to the current week. It performs
// no limit check: the spend already happened and must be counted even past
// the limit. Returns the aggregate after the increment.
func (t *Tracker) Record(ctx context.Context, identifier, operation string, actualCents int64) (usage.Weekly, error) {
	now := t.now().UTC()
	weekStart := usage.WeekStart(now)

	if _, err := t.repo.Record(ctx, identifier, weekStart, operation, actualCents, now); err != nil {
		return usage.Weekly{}, fmt.Errorf("quota record %s: %w", identifier, err)
	}
	metrics.UsageRecordedCents.WithLabelValues(operation).Add(float64(actualCents))

	weekly, err := t.repo.Find(ctx, identifier, weekStart)
	if errors.Is(err, domain.ErrNotFound) {
		// Row written a moment ago; treat a racing eviction as empty.
		return usage.EmptyWeekly(identifier, weekStart), nil
	}
	if err != nil {
		return usage.Weekly{}, fmt.Errorf("quota record %s: %w", identifier, err)
	}
	return weekly, nil
}

// Stats returns the current-week usage view for an identifier.
func (t *Tracker) Stats(ctx context.Context, identifier string, limitCents int64) (Stats, error) {
	now := t.now().UTC()
	weekStart := usage.WeekStart(now)

	weekly, err := t.repo.Find(ctx, identifier, weekStart)
	if errors.Is(err, domain.ErrNotFound) {
		weekly = usage.EmptyWeekly(identifier, weekStart)
	} else if err != nil {
		return Stats{}, fmt.Errorf("quota stats %s: %w", identifier, err)
	}

	used := weekly.TotalCents()
	remaining := limitCents - used
	if remaining < 0 {
		remaining = 0
	}
	usedPercent := 0.0
	if limitCents > 0 {
		usedPercent = float64(used) / float64(limitCents) * 100
	}

	return Stats{
		Identifier:     identifier,
		WeekStart:      weekStart,
		WeekEnd:        usage.WeekEnd(weekStart),
		UsedCents:      used,
		UsedDisplay:    domain.FormatBRL(used),
		LimitCents:     limitCents,
		LimitDisplay:   domain.FormatBRL(limitCents),
		RemainingCents: remaining,
		UsedPercent:    usedPercent,
		OpCount:        weekly.OpCount(),
		OpBreakdown:    weekly.OpBreakdown(),
		CostByOp:       weekly.CostByOp(),
		LastOpAt:       weekly.LastOpAt(),
		DaysUntilReset: daysUntilReset(now, weekStart),
	}, nil
}

// History returns up to weeks rows ending at the current week, most recent
// first, with the average and peak across the returned rows.
func (t *Tracker) History(ctx context.Context, identifier string, weeks int) (History, error) {
	if weeks <= 0 {
		weeks = 4
	}

	rows, err := t.repo.History(ctx, identifier, t.now().UTC(), weeks)
	if err != nil {
		return History{}, fmt.Errorf("quota history %s: %w", identifier, err)
	}

	h := History{Identifier: identifier, Weeks: make([]HistoryWeek, 0, len(rows))}
	for _, row := range rows {
		cents := row.TotalCents()
		h.Weeks = append(h.Weeks, HistoryWeek{
			WeekStart:   row.WeekStart(),
			CostCents:   cents,
			CostDisplay: domain.FormatBRL(cents),
			OpCount:     row.OpCount(),
		})
		h.TotalCents += cents
		if cents > h.PeakWeekCents {
			h.PeakWeekCents = cents
			h.PeakWeekStart = row.WeekStart()
		}
	}
	if len(h.Weeks) > 0 {
		h.AverageWeeklyCents = h.TotalCents / int64(len(h.Weeks))
	}
	return h, nil
}

func remainingPercent(remaining, limit int64) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(remaining) / float64(limit) * 100
}

// daysUntilReset counts calendar days until the next Monday 00:00 UTC,
// rounding partial days up. Always in 1..7.
func daysUntilReset(now, weekStart time.Time) int {
	until := usage.WeekEnd(weekStart).Sub(now)
	days := int((until + 24*time.Hour - time.Nanosecond) / (24 * time.Hour))
	if days < 1 {
		days = 1
	}
	if days > 7 {
		days = 7
	}
	return days
}
