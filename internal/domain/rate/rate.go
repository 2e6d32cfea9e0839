package rate

import "time"

// SourceFallback is the source name reported when no fetch ever succeeded.
const SourceFallback = "fallback"

// Rate is an immutable USD to local-currency exchange rate snapshot.
// It is replaced wholesale on refresh, never mutated in place.
type Rate struct {
	value     float64
	source    string
	date      string
	fetchedAt time.Time
}

// New creates a rate snapshot from a successful provider fetch.
func New(value float64, source, date string, fetchedAt time.Time) Rate {
	return Rate{
		value:     value,
		source:    source,
		date:      date,
		fetchedAt: fetchedAt,
	}
}

// Fallback creates the hard-coded rate snapshot used when no provider
// has ever answered.
func Fallback(value float64) Rate {
	return Rate{value: value, source: SourceFallback}
}

// Value returns the local-currency-per-USD rate.
func (r Rate) Value() float64 { return r.value }

// Source returns the name of the provider that supplied the rate.
func (r Rate) Source() string { return r.source }

// Date returns the rate date as reported by the provider.
func (r Rate) Date() string { return r.date }

// FetchedAt returns when the rate was fetched. Zero for the fallback rate.
func (r Rate) FetchedAt() time.Time { return r.fetchedAt }

// IsFallback reports whether this is the hard-coded fallback rate.
func (r Rate) IsFallback() bool { return r.source == SourceFallback }

// Age returns how old the snapshot is at the given instant.
func (r Rate) Age(now time.Time) time.Duration {
	if r.fetchedAt.IsZero() {
		return 0
	}
	return now.Sub(r.fetchedAt)
}

// Quote is one provider-reported rate, before validation.
type Quote struct {
	Rate float64
	Date string
}

// Info is the read-only diagnostic view of the cached rate.
type Info struct {
	Rate   float64       `json:"rate"`
	Source string        `json:"source"`
	Date   string        `json:"date,omitempty"`
	Cached bool          `json:"cached"`
	Age    time.Duration `json:"age_ms"`
}
