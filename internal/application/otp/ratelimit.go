package otp

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/concierge-api/internal/domain"
)

type rateLimitStore interface {
	Get(ctx context.Context, limitKey string) (*domain.RateLimitRecord, error)
	Put(ctx context.Context, rec *domain.RateLimitRecord) error
	Increment(ctx context.Context, limitKey string, now int64) error
}

// Limiter bounds how often one email may hit one logical endpoint inside a
// rolling window. It fails OPEN: if the backing store is unreachable the
// request is allowed, because the code itself still expires and is
// single-use — locking out legitimate users during a partial outage is the
// worse failure mode here. Do not "fix" this into fail-closed.
type Limiter struct {
	store  rateLimitStore
	limit  int
	window time.Duration
}

func NewLimiter(store rateLimitStore, limit int, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window}
}

// Allow reports whether the (email, endpoint) pair may proceed, counting the
// attempt when it does.
func (l *Limiter) Allow(ctx context.Context, email, endpoint string) bool {
	key := email + "#" + endpoint
	now := time.Now().Unix()

	rec, err := l.store.Get(ctx, key)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		slog.Warn("rate limit store unreachable, failing open", "key", key, "err", err)
		return true
	}

	if err == nil && now-rec.FirstAttempt < int64(l.window.Seconds()) {
		if rec.Count >= l.limit {
			return false
		}
		if err := l.store.Increment(ctx, key, now); err != nil {
			slog.Warn("rate limit increment failed, failing open", "key", key, "err", err)
		}
		return true
	}

	// No record, or the window has elapsed: open a fresh one.
	// TTL is set past the window end so DynamoDB sweeps the row later.
	fresh := &domain.RateLimitRecord{
		LimitKey:     key,
		Count:        1,
		FirstAttempt: now,
		LastAttempt:  now,
		ExpiresAt:    now + 2*int64(l.window.Seconds()),
	}
	if err := l.store.Put(ctx, fresh); err != nil {
		slog.Warn("rate limit reset failed, failing open", "key", key, "err", err)
	}
	return true
}
