package latest

import (
	"sync"
	"testing"
)

func TestTokens_NewerSupersedes(t *testing.T) {
	tk := New()
	first := tk.Begin("series:1")
	second := tk.Begin("series:1")

	if tk.IsCurrent(first) {
		t.Fatal("first token must be superseded")
	}
	if !tk.IsCurrent(second) {
		t.Fatal("second token must be current")
	}

	applied := ""
	if tk.Apply(first, func() { applied = "first" }) {
		t.Fatal("stale apply must report false")
	}
	if !tk.Apply(second, func() { applied = "second" }) || applied != "second" {
		t.Fatalf("expected second applied, got %q", applied)
	}
}

func TestTokens_ResourcesIndependent(t *testing.T) {
	tk := New()
	a := tk.Begin("a")
	_ = tk.Begin("b")
	if !tk.IsCurrent(a) {
		t.Fatal("a token must not be superseded by b")
	}
}

func TestTokens_DoneKeepsMonotonic(t *testing.T) {
	tk := New()
	old := tk.Begin("r")
	tk.Done(old)
	if tk.IsCurrent(old) {
		t.Fatal("released token must not be current")
	}
	fresh := tk.Begin("r")
	if !tk.IsCurrent(fresh) || tk.IsCurrent(old) {
		t.Fatal("expected only the fresh token current")
	}
}

func TestTokens_ZeroTokenNeverCurrent(t *testing.T) {
	tk := New()
	if tk.IsCurrent(Token{}) || tk.Apply(Token{}, func() {}) {
		t.Fatal("zero token must never apply")
	}
}

func TestTokens_ConcurrentOnlyLastApplies(t *testing.T) {
	tk := New()
	toks := make([]Token, 50)
	for i := range toks {
		toks[i] = tk.Begin("q")
	}
	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0
	for _, tok := range toks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tk.Apply(tok, func() {
				mu.Lock()
				applied++
				mu.Unlock()
			})
		}()
	}
	wg.Wait()
	if applied != 1 {
		t.Fatalf("expected exactly one apply, got %d", applied)
	}
}
