// Package lock guards work that must not run twice at once across callers,
// such as a job order's bulk-pool pass.
package lock

import (
	"context"
	"sync"
	"time"
)

// Locker hands out expiring named guards. A caller that gets ok=false must
// skip the guarded work; release is safe to call more than once.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// Local guards within one process.
type Local struct {
	mu   sync.Mutex
	held map[string]localHold
	seq  uint64
	Now  func() time.Time
}

type localHold struct {
	token   uint64
	expires time.Time
}

func NewLocal() *Local {
	return &Local{held: map[string]localHold{}}
}

func (l *Local) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *Local) TryAcquire(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]localHold{}
	}
	now := l.now()
	if h, ok := l.held[key]; ok && now.Before(h.expires) {
		return func() {}, false, nil
	}
	l.seq++
	token := l.seq
	l.held[key] = localHold{token: token, expires: now.Add(ttl)}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if h, ok := l.held[key]; ok && h.token == token {
				delete(l.held, key)
			}
		})
	}, true, nil
}
