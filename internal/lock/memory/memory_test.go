package memory

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestAcquireRelease(t *testing.T) {
	ctx := context.Background()
	s := New()

	ok, err := s.Acquire(ctx, "k", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	ok, err = s.Acquire(ctx, "k", time.Minute)
	if err != nil || ok {
		t.Fatalf("second acquire should lose: ok=%v err=%v", ok, err)
	}

	if err := s.Release(ctx, "k"); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = s.Acquire(ctx, "k", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}
}

func TestAcquireAfterExpiry(t *testing.T) {
	ctx := context.Background()
	s := New()

	now := time.Now()
	s.SetClock(func() time.Time { return now })

	if ok, _ := s.Acquire(ctx, "k", time.Minute); !ok {
		t.Fatal("first acquire should win")
	}
	now = now.Add(30 * time.Second)
	if ok, _ := s.Acquire(ctx, "k", time.Minute); ok {
		t.Fatal("acquire before expiry should lose")
	}
	now = now.Add(31 * time.Second)
	if ok, _ := s.Acquire(ctx, "k", time.Minute); !ok {
		t.Fatal("acquire after expiry should win")
	}
}

func TestReleaseMissingKey(t *testing.T) {
	if err := New().Release(context.Background(), "absent"); err != nil {
		t.Fatalf("release of absent key should be a no-op, got %v", err)
	}
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	s := New()

	now := time.Now()
	s.SetClock(func() time.Time { return now })

	s.Acquire(ctx, "expired-1", time.Second)
	s.Acquire(ctx, "expired-2", time.Second)
	s.Acquire(ctx, "live", time.Hour)

	now = now.Add(2 * time.Second)
	n, err := s.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 2 {
		t.Errorf("swept %d entries, want 2", n)
	}
	if !s.Held("live") {
		t.Error("live key should survive the sweep")
	}
	if s.Held("expired-1") || s.Held("expired-2") {
		t.Error("expired keys should be gone")
	}
}

func TestAcquireConcurrent(t *testing.T) {
	ctx := context.Background()
	s := New()

	const n = 32
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Acquire(ctx, "contended", time.Minute)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("%d goroutines won the lock, want exactly 1", wins)
	}
}
