package lock

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestLocalExclusive(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()
	release, ok, err := l.TryAcquire(ctx, "jo-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := l.TryAcquire(ctx, "jo-1", time.Minute); ok {
		t.Fatalf("second acquire must fail while held")
	}
	if _, ok, _ := l.TryAcquire(ctx, "jo-2", time.Minute); !ok {
		t.Fatalf("other key must be independent")
	}
	release()
	release()
	if _, ok, _ := l.TryAcquire(ctx, "jo-1", time.Minute); !ok {
		t.Fatalf("acquire after release must succeed")
	}
}

func TestLocalExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocal()
	l.Now = func() time.Time { return now }
	ctx := context.Background()
	staleRelease, ok, _ := l.TryAcquire(ctx, "jo-1", time.Second)
	if !ok {
		t.Fatalf("acquire failed")
	}
	now = now.Add(2 * time.Second)
	if _, ok, _ := l.TryAcquire(ctx, "jo-1", time.Minute); !ok {
		t.Fatalf("expired hold must be taken over")
	}
	// stale holder must not free the new hold
	staleRelease()
	if _, ok, _ := l.TryAcquire(ctx, "jo-1", time.Minute); ok {
		t.Fatalf("stale release freed the new hold")
	}
}

func TestRedisIntegration(t *testing.T) {
	url := os.Getenv("HIRELINE_REDIS_URL_INTEGRATION")
	if url == "" {
		t.Skip("HIRELINE_REDIS_URL_INTEGRATION not set")
	}
	ctx := context.Background()
	guard, client, err := Dial(ctx, url)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()
	key := "test:" + time.Now().Format(time.RFC3339Nano)
	release, ok, err := guard.TryAcquire(ctx, key, 5*time.Second)
	if err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := guard.TryAcquire(ctx, key, 5*time.Second); ok {
		t.Fatalf("second acquire must fail")
	}
	release()
	if r2, ok, _ := guard.TryAcquire(ctx, key, 5*time.Second); !ok {
		t.Fatalf("acquire after release failed")
	} else {
		r2()
	}
}
