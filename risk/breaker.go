// Package risk holds the pre-trade safety controls: the rolling-window
// circuit breaker and the ordered guard chain.
package risk

import (
	"fmt"
	"sync"
	"time"
)

const (
	DefaultBreakerWindow   = 24 * time.Hour
	DefaultBreakerCooldown = time.Hour
)

// Verdict is the outcome of any safety check. Rejections are data, not
// errors: the reason must explain itself without log inspection.
type Verdict struct {
	Allowed bool
	Reason  string
}

func allow() Verdict { return Verdict{Allowed: true} }

func deny(format string, args ...any) Verdict {
	return Verdict{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

type pnlEntry struct {
	at    time.Time
	delta float64
}

// Breaker blocks trading once rolling realized loss plus the current
// unrealized snapshot exceeds a percentage of equity. Once tripped it stays
// tripped through the cooldown, then re-evaluates fresh. Bad equity input
// always fails closed.
type Breaker struct {
	maxLossPct float64 // fraction of equity, e.g. 0.05
	window     time.Duration
	cooldown   time.Duration
	now        func() time.Time

	mu         sync.Mutex
	realized   []pnlEntry
	unrealized float64
	trippedAt  time.Time // zero when not tripped
}

// NewBreaker builds a breaker with the default 24h window and 1h cooldown.
func NewBreaker(maxLossPct float64) *Breaker {
	return &Breaker{
		maxLossPct: maxLossPct,
		window:     DefaultBreakerWindow,
		cooldown:   DefaultBreakerCooldown,
		now:        time.Now,
	}
}

// WithWindow overrides the rolling window.
func (b *Breaker) WithWindow(w time.Duration) *Breaker {
	b.window = w
	return b
}

// WithCooldown overrides the post-trip cooldown.
func (b *Breaker) WithCooldown(c time.Duration) *Breaker {
	b.cooldown = c
	return b
}

// WithClock injects a clock, for tests.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.now = now
	return b
}

// Check decides whether trading is currently allowed given account equity.
func (b *Breaker) Check(equity float64) Verdict {
	if equity <= 0 {
		return deny("equity %.2f is not positive, failing closed", equity)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.prune(now)

	if !b.trippedAt.IsZero() {
		elapsed := now.Sub(b.trippedAt)
		if elapsed < b.cooldown {
			return deny("circuit breaker tripped, %s of cooldown remaining",
				(b.cooldown - elapsed).Round(time.Second))
		}
		// Cooldown elapsed: fall through and re-evaluate fresh.
	}

	rolling := b.rollingLocked()
	if rolling < 0 {
		lossPct := -rolling / equity
		if lossPct > b.maxLossPct {
			if b.trippedAt.IsZero() {
				b.trippedAt = now
			}
			return deny("rolling loss %.1f%% of equity exceeds %.1f%% limit",
				lossPct*100, b.maxLossPct*100)
		}
	}

	b.trippedAt = time.Time{}
	return allow()
}

// RecordPnL appends a realized PnL delta at the current time.
func (b *Breaker) RecordPnL(delta float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.realized = append(b.realized, pnlEntry{at: b.now(), delta: delta})
}

// UpdateUnrealizedPnL replaces the unrealized snapshot. It never accumulates,
// because the snapshot represents current open exposure, not an event stream.
func (b *Breaker) UpdateUnrealizedPnL(value float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unrealized = value
}

// RollingPnL is the sum of in-window realized deltas plus the unrealized
// snapshot.
func (b *Breaker) RollingPnL() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prune(b.now())
	return b.rollingLocked()
}

// IsTripped reports whether the breaker is currently tripped.
func (b *Breaker) IsTripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.trippedAt.IsZero()
}

func (b *Breaker) prune(now time.Time) {
	cutoff := now.Add(-b.window)
	kept := b.realized[:0]
	for _, e := range b.realized {
		if e.at.After(cutoff) {
			kept = append(kept, e)
		}
	}
	b.realized = kept
}

func (b *Breaker) rollingLocked() float64 {
	sum := b.unrealized
	for _, e := range b.realized {
		sum += e.delta
	}
	return sum
}
