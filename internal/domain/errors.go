package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrQuotaExceeded signals that a weekly spending quota would be exceeded.
	ErrQuotaExceeded = errors.New("weekly quota exceeded")
	// ErrProviderError signals an AI provider failure.
	ErrProviderError = errors.New("ai provider error")
	// ErrUnknownTier signals an unconfigured plan tier.
	ErrUnknownTier = errors.New("unknown plan tier")
	// ErrUnknownModel signals a model absent from the pricing table.
	ErrUnknownModel = errors.New("model not in pricing table")
)
