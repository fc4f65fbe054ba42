package circuitbreaker

import (
	"sync"
	"testing"
)

func TestRegistry_GetOrCreate(t *testing.T) {
	t.Parallel()

	r := NewRegistry(DefaultConfig())
	b1 := r.GetOrCreate("wikipedia")
	b2 := r.GetOrCreate("wikipedia")
	if b1 != b2 {
		t.Fatal("same provider should return the same breaker")
	}
	if r.GetOrCreate("arxiv") == b1 {
		t.Fatal("different providers should get different breakers")
	}
}

func TestRegistry_States(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MinSamples = 2
	r := NewRegistry(cfg)

	r.GetOrCreate("wikipedia")
	bad := r.GetOrCreate("dictionary")
	bad.RecordError(1.0)
	bad.RecordError(1.0)

	states := r.States()
	if states["wikipedia"] != "closed" {
		t.Errorf("wikipedia = %q, want closed", states["wikipedia"])
	}
	if states["dictionary"] != "open" {
		t.Errorf("dictionary = %q, want open", states["dictionary"])
	}
}

func TestRegistry_ConcurrentGetOrCreate(t *testing.T) {
	t.Parallel()

	r := NewRegistry(DefaultConfig())
	var wg sync.WaitGroup
	breakers := make([]*Breaker, 20)
	for i := range 20 {
		wg.Go(func() {
			breakers[i] = r.GetOrCreate("openlibrary")
		})
	}
	wg.Wait()

	for _, b := range breakers[1:] {
		if b != breakers[0] {
			t.Fatal("concurrent GetOrCreate returned different breakers")
		}
	}
}
