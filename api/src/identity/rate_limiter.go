package identity

import (
	"context"
	"sync"
	"time"

	"github.com/RIKUY-ORG/Rikuy/api/src/model"
	"github.com/RIKUY-ORG/Rikuy/pkg/apperror"
)

type Window struct {
	Period time.Duration
	Max    int
}

var DefaultWindows = []Window{
	{Period: 24 * time.Hour, Max: 3},
	{Period: time.Hour, Max: 2},
}

// RateLimiter bounds issuance attempts per owner over rolling windows, counting the
// attempt log.
type RateLimiter struct {
	log     AttemptLog
	windows []Window
	now     func() time.Time
}

func NewRateLimiter(log AttemptLog, windows ...Window) *RateLimiter {
	if len(windows) == 0 {
		windows = DefaultWindows
	}
	return &RateLimiter{log: log, windows: windows, now: func() time.Time { return time.Now().UTC() }}
}

// Check fails with RateLimitError when any window is full. Callers hold the owner lock
// through Check and Record.
func (r *RateLimiter) Check(ctx context.Context, ownerKey string) error {
	now := r.now()
	longest := time.Duration(0)
	for _, w := range r.windows {
		if w.Period > longest {
			longest = w.Period
		}
	}

	attempts, err := r.log.AttemptsSince(ctx, ownerKey, now.Add(-longest))
	if err != nil {
		return apperror.Internal(err)
	}

	for _, w := range r.windows {
		since := now.Add(-w.Period)
		var inWindow []time.Time
		for _, a := range attempts {
			if a.CreatedAt.After(since) {
				inWindow = append(inWindow, a.CreatedAt)
			}
		}
		if len(inWindow) >= w.Max {
			// the window frees up when its oldest counted attempt ages out
			oldest := inWindow[len(inWindow)-w.Max]
			retry := oldest.Add(w.Period).Sub(now)
			return apperror.RateLimit(int64(retry.Seconds()) + 1)
		}
	}
	return nil
}

func (r *RateLimiter) Record(ctx context.Context, ownerKey string, outcome model.AttemptOutcome, reason string) error {
	return r.log.RecordAttempt(ctx, &model.IssuanceAttempt{
		OwnerKey:  ownerKey,
		Outcome:   outcome,
		Reason:    reason,
		CreatedAt: r.now(),
	})
}

// keyedLocks hands out one mutex per key and drops it once nobody holds it.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: map[string]*keyedLock{}}
}

func (k *keyedLocks) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
