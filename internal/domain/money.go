package domain

import (
	"fmt"
	"math"
)

// CeilCents converts a local-currency amount to integer centavos, rounding up.
// Ceiling is the billing rule: rounding must never under-charge.
// Floats appear only in the USD/rate intermediate math; this is the single
// point where a float becomes a stored integer.
func CeilCents(local float64) int64 {
	if local <= 0 {
		return 0
	}
	return int64(math.Ceil(local * 100))
}

// FormatBRL renders centavos as a Brazilian currency string, e.g. "R$ 8,75".
func FormatBRL(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%sR$ %d,%02d", sign, cents/100, cents%100)
}
