package usage

import "time"

// WeekStart returns the Monday 00:00:00 UTC of the ISO week containing t.
// Idempotent: WeekStart(WeekStart(t)) == WeekStart(t).
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	monday := t.AddDate(0, 0, -daysSinceMonday)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
}

// WeekEnd returns the exclusive end of the week starting at weekStart.
func WeekEnd(weekStart time.Time) time.Time {
	return weekStart.AddDate(0, 0, 7)
}

// Weekly is the per-identifier spending aggregate for one calendar week.
// A new zero row implicitly starts each week; rows are never deleted and
// never reset in place.
type Weekly struct {
	identifier  string
	weekStart   time.Time
	totalCents  int64
	opCount     int64
	opBreakdown map[string]int64 // operation name -> count
	costByOp    map[string]int64 // operation name -> centavos
	lastOpAt    time.Time
}

// NewWeekly creates a weekly aggregate. Nil breakdown maps become empty.
func NewWeekly(
	identifier string, weekStart time.Time,
	totalCents, opCount int64,
	opBreakdown, costByOp map[string]int64,
	lastOpAt time.Time,
) Weekly {
	if opBreakdown == nil {
		opBreakdown = map[string]int64{}
	}
	if costByOp == nil {
		costByOp = map[string]int64{}
	}
	return Weekly{
		identifier:  identifier,
		weekStart:   weekStart,
		totalCents:  totalCents,
		opCount:     opCount,
		opBreakdown: opBreakdown,
		costByOp:    costByOp,
		lastOpAt:    lastOpAt,
	}
}

// EmptyWeekly returns the zero aggregate observed before any recorded spend.
func EmptyWeekly(identifier string, weekStart time.Time) Weekly {
	return NewWeekly(identifier, weekStart, 0, 0, nil, nil, time.Time{})
}

// Identifier returns the user-or-IP identifier owning the row.
func (w Weekly) Identifier() string { return w.identifier }

// WeekStart returns the Monday the row is keyed by.
func (w Weekly) WeekStart() time.Time { return w.weekStart }

// TotalCents returns the accumulated cost in centavos.
func (w Weekly) TotalCents() int64 { return w.totalCents }

// OpCount returns the number of recorded operations.
func (w Weekly) OpCount() int64 { return w.opCount }

// OpBreakdown returns a copy of the per-operation count map.
func (w Weekly) OpBreakdown() map[string]int64 { return copyMap(w.opBreakdown) }

// CostByOp returns a copy of the per-operation centavos map.
func (w Weekly) CostByOp() map[string]int64 { return copyMap(w.costByOp) }

// LastOpAt returns the timestamp of the most recent recorded operation.
func (w Weekly) LastOpAt() time.Time { return w.lastOpAt }

func copyMap(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
