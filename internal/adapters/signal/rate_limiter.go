package signal

import (
	"sync"
	"time"

	"github.com/telecare/consult/internal/core"
)

// MediaRateLimiter caps how many analyzer-bound events (frames, audio
// chunks) one connection may submit per interval, so a misbehaving tab
// cannot saturate the analysis pool.
type MediaRateLimiter struct {
	mu       sync.Mutex
	history  map[core.ConnID][]time.Time
	limit    int
	interval time.Duration
}

func NewMediaRateLimiter(limit int, interval time.Duration) *MediaRateLimiter {
	return &MediaRateLimiter{
		history:  make(map[core.ConnID][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *MediaRateLimiter) Allow(sid core.ConnID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[sid]

	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[sid] = fresh
		return false
	}

	fresh = append(fresh, now)
	rl.history[sid] = fresh

	return true
}
