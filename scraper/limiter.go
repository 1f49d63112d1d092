package scraper

import "sync/atomic"

// TotalLimiter enforces the running ceiling on raw records across all branch
// workers of one run. Acquisition is a check-and-increment so concurrent
// branches racing near the limit can never overshoot it.
type TotalLimiter struct {
	limit int64
	used  atomic.Int64
}

// NewTotalLimiter returns a limiter for the given ceiling. A limit of zero or
// less means unbounded.
func NewTotalLimiter(limit int) *TotalLimiter {
	return &TotalLimiter{limit: int64(limit)}
}

// TryAcquire reserves one record slot. It returns false once the ceiling is
// reached.
func (l *TotalLimiter) TryAcquire() bool {
	if l.limit <= 0 {
		l.used.Add(1)
		return true
	}
	for {
		cur := l.used.Load()
		if cur >= l.limit {
			return false
		}
		if l.used.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Exhausted reports whether the ceiling has been reached.
func (l *TotalLimiter) Exhausted() bool {
	return l.limit > 0 && l.used.Load() >= l.limit
}

// Used returns the number of slots acquired so far.
func (l *TotalLimiter) Used() int64 {
	return l.used.Load()
}
