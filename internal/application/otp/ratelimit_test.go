package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/concierge-api/internal/domain"
	"github.com/stretchr/testify/assert"
)

// memRateStore is an in-memory rateLimitStore for exercising the limiter's
// counting logic end to end.
type memRateStore struct {
	recs map[string]*domain.RateLimitRecord
	err  error
}

func newMemRateStore() *memRateStore {
	return &memRateStore{recs: make(map[string]*domain.RateLimitRecord)}
}

func (s *memRateStore) Get(_ context.Context, limitKey string) (*domain.RateLimitRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	rec, ok := s.recs[limitKey]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *memRateStore) Put(_ context.Context, rec *domain.RateLimitRecord) error {
	if s.err != nil {
		return s.err
	}
	cp := *rec
	s.recs[rec.LimitKey] = &cp
	return nil
}

func (s *memRateStore) Increment(_ context.Context, limitKey string, now int64) error {
	if s.err != nil {
		return s.err
	}
	rec := s.recs[limitKey]
	rec.Count++
	rec.LastAttempt = now
	return nil
}

func TestLimiter_AllowsUpToLimit(t *testing.T) {
	store := newMemRateStore()
	l := NewLimiter(store, 2, time.Hour)
	ctx := context.Background()

	assert.True(t, l.Allow(ctx, "a@example.com", "request-code"))
	assert.True(t, l.Allow(ctx, "a@example.com", "request-code"))
	assert.False(t, l.Allow(ctx, "a@example.com", "request-code"))
	assert.False(t, l.Allow(ctx, "a@example.com", "request-code"))
}

func TestLimiter_WindowElapsed_ResetsCount(t *testing.T) {
	store := newMemRateStore()
	l := NewLimiter(store, 2, time.Hour)
	ctx := context.Background()

	// An exhausted window that started over an hour ago.
	old := time.Now().Unix() - 3700
	store.recs["a@example.com#request-code"] = &domain.RateLimitRecord{
		LimitKey:     "a@example.com#request-code",
		Count:        2,
		FirstAttempt: old,
		LastAttempt:  old + 60,
	}

	assert.True(t, l.Allow(ctx, "a@example.com", "request-code"))
	// The fresh window starts counting again.
	assert.Equal(t, 1, store.recs["a@example.com#request-code"].Count)
}

func TestLimiter_IsolatesEmails(t *testing.T) {
	store := newMemRateStore()
	l := NewLimiter(store, 1, time.Hour)
	ctx := context.Background()

	assert.True(t, l.Allow(ctx, "a@example.com", "request-code"))
	assert.False(t, l.Allow(ctx, "a@example.com", "request-code"))
	assert.True(t, l.Allow(ctx, "b@example.com", "request-code"))
}

func TestLimiter_IsolatesEndpoints(t *testing.T) {
	store := newMemRateStore()
	l := NewLimiter(store, 1, time.Hour)
	ctx := context.Background()

	assert.True(t, l.Allow(ctx, "a@example.com", "request-code"))
	assert.True(t, l.Allow(ctx, "a@example.com", "other-endpoint"))
}

func TestLimiter_StoreDown_FailsOpen(t *testing.T) {
	store := newMemRateStore()
	store.err = errors.New("dynamo unavailable")
	l := NewLimiter(store, 2, time.Hour)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow(ctx, "a@example.com", "request-code"))
	}
}
