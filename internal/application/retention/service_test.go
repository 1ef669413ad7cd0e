package retention

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"selsup/crptgateway/internal/testutil"
)

type fakePurger struct {
	mu      sync.Mutex
	cutoffs []time.Time
	n       int64
	err     error
}

func (f *fakePurger) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.n, f.err
}

func (f *fakePurger) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func TestNewJanitor_Disabled(t *testing.T) {
	repo := &fakePurger{}
	if NewJanitor(repo, testutil.NewNullLogger(), 0, time.Hour) != nil {
		t.Error("expected nil janitor without retention")
	}
	if NewJanitor(repo, testutil.NewNullLogger(), time.Hour, 0) != nil {
		t.Error("expected nil janitor without interval")
	}
	if NewJanitor(nil, testutil.NewNullLogger(), time.Hour, time.Hour) != nil {
		t.Error("expected nil janitor without repository")
	}

	var j *Janitor
	j.Run(context.Background())
}

func TestJanitor_PurgeOnce(t *testing.T) {
	repo := &fakePurger{n: 5}
	j := NewJanitor(repo, testutil.NewNullLogger(), 48*time.Hour, time.Hour)
	now := time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }

	n, err := j.PurgeOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 5 {
		t.Errorf("expected 5 purged, got %d", n)
	}
	if want := now.Add(-48 * time.Hour); !repo.cutoffs[0].Equal(want) {
		t.Errorf("expected cutoff %v, got %v", want, repo.cutoffs[0])
	}
}

func TestJanitor_PurgeOnce_Error(t *testing.T) {
	repo := &fakePurger{err: errors.New("db down")}
	j := NewJanitor(repo, testutil.NewNullLogger(), time.Hour, time.Hour)

	if _, err := j.PurgeOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestJanitor_RunStopsOnCancel(t *testing.T) {
	repo := &fakePurger{}
	j := NewJanitor(repo, testutil.NewNullLogger(), time.Hour, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
	if repo.calls() < 2 {
		t.Errorf("expected at least 2 passes, got %d", repo.calls())
	}
}
