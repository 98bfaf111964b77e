// Package backoff computes redelivery delays for failed queue items.
// Strategies are stateless and safe for concurrent use.
package backoff

import (
	"math"
	"time"
)

// Strategy computes the delay before redelivering an item whose attempt
// number attempt (1-indexed) just failed.
type Strategy interface {
	Delay(attempt int) time.Duration
}

// Exponential doubles the delay each attempt.
// Delay = min(Base * 2^(attempt-1), Max). A zero Max means uncapped.
type Exponential struct {
	Base time.Duration
	Max  time.Duration
}

// NewExponential creates an exponential backoff strategy without a cap.
func NewExponential(base time.Duration) *Exponential {
	return &Exponential{Base: base}
}

// Delay returns Base * 2^(attempt-1), capped at Max. Without a Max the
// result saturates at the largest representable duration.
func (e *Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	limit := e.Max
	if limit <= 0 {
		limit = math.MaxInt64
	}
	d := float64(e.Base) * math.Pow(2, float64(attempt-1))
	if d >= float64(limit) {
		return limit
	}
	return time.Duration(d)
}
