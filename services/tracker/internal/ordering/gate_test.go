package ordering

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/example/tracksm/services/tracker/internal/watched"
)

func TestGate_RejectsWhileBusy(t *testing.T) {
	g := NewGate()
	key := GateKey("u1", watched.Series, 10)

	release, err := g.Acquire(key)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Acquire(key); !errors.Is(err, ErrInFlight) {
		t.Fatalf("expected ErrInFlight, got %v", err)
	}
	if _, err := g.Acquire(GateKey("u1", watched.Series, 11)); err != nil {
		t.Fatalf("other series must be independent: %v", err)
	}
	if _, err := g.Acquire(GateKey("u2", watched.Series, 10)); err != nil {
		t.Fatalf("other users must be independent: %v", err)
	}

	if _, err := g.Acquire(GateKey("u1", watched.Movie, 10)); err != nil {
		t.Fatalf("a movie with the same id must be independent: %v", err)
	}

	release()
	release()
	if g.Busy(key) {
		t.Fatal("expected key released")
	}
	if _, err := g.Acquire(key); err != nil {
		t.Fatalf("expected acquire after release, got %v", err)
	}
}

func TestGate_SingleWinner(t *testing.T) {
	g := NewGate()
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := g.Acquire("u/1"); err == nil {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
}
