package quota

import (
	"context"
	"time"

	"github.com/kailas-cloud/costgate/internal/domain"
	"github.com/kailas-cloud/costgate/internal/domain/usage"
)

// mockRepo is a function-field test double for Repository.
type mockRepo struct {
	findFn    func(ctx context.Context, identifier string, weekStart time.Time) (usage.Weekly, error)
	recordFn  func(ctx context.Context, identifier string, weekStart time.Time, operation string, costCents int64, at time.Time) (int64, error)
	historyFn func(ctx context.Context, identifier string, from time.Time, weekCount int) ([]usage.Weekly, error)
}

func (m *mockRepo) Find(ctx context.Context, identifier string, weekStart time.Time) (usage.Weekly, error) {
	return m.findFn(ctx, identifier, weekStart)
}

func (m *mockRepo) Record(ctx context.Context, identifier string, weekStart time.Time, operation string, costCents int64, at time.Time) (int64, error) {
	return m.recordFn(ctx, identifier, weekStart, operation, costCents, at)
}

func (m *mockRepo) History(ctx context.Context, identifier string, from time.Time, weekCount int) ([]usage.Weekly, error) {
	return m.historyFn(ctx, identifier, from, weekCount)
}

// memRepo is an in-memory Repository for end-to-end tracker tests.
type memRepo struct {
	rows map[string]*memRow
}

type memRow struct {
	totalCents  int64
	opCount     int64
	opBreakdown map[string]int64
	costByOp    map[string]int64
	lastOpAt    time.Time
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[string]*memRow{}}
}

func memKey(identifier string, weekStart time.Time) string {
	return identifier + ":" + weekStart.UTC().Format("2006-01-02")
}

func (m *memRepo) Find(_ context.Context, identifier string, weekStart time.Time) (usage.Weekly, error) {
	row, ok := m.rows[memKey(identifier, weekStart)]
	if !ok {
		return usage.Weekly{}, domain.ErrNotFound
	}
	return usage.NewWeekly(identifier, weekStart, row.totalCents, row.opCount, row.opBreakdown, row.costByOp, row.lastOpAt), nil
}

func (m *memRepo) Record(_ context.Context, identifier string, weekStart time.Time, operation string, costCents int64, at time.Time) (int64, error) {
	key := memKey(identifier, weekStart)
	row, ok := m.rows[key]
	if !ok {
		row = &memRow{opBreakdown: map[string]int64{}, costByOp: map[string]int64{}}
		m.rows[key] = row
	}
	row.totalCents += costCents
	row.opCount++
	row.opBreakdown[operation]++
	row.costByOp[operation] += costCents
	row.lastOpAt = at
	return row.totalCents, nil
}

func (m *memRepo) History(_ context.Context, identifier string, from time.Time, weekCount int) ([]usage.Weekly, error) {
	var rows []usage.Weekly
	week := usage.WeekStart(from)
	for i := 0; i < weekCount; i++ {
		if row, err := m.Find(context.Background(), identifier, week); err == nil {
			rows = append(rows, row)
		}
		week = week.AddDate(0, 0, -7)
	}
	return rows, nil
}
