package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	educache "github.com/openedu/educache/internal"
	"github.com/openedu/educache/internal/storage"
	"github.com/openedu/educache/internal/storage/sqlite"
)

func newTestManager(t *testing.T, opts Options) (*Manager, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(t.TempDir() + "/cache.db")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	m, err := NewManager(store, opts)
	if err != nil {
		t.Fatal(err)
	}
	return m, store
}

func TestGetOrCompute_RoundTrip(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, Options{})
	ctx := context.Background()

	want := []byte(`{"title":"Photosynthesis"}`)
	got, err := m.GetOrCompute(ctx, "wikipedia:summary:k1", time.Minute, func(context.Context) ([]byte, error) {
		return want, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(want) {
		t.Errorf("got %q, want %q", got, want)
	}

	// Second call within TTL must not recompute.
	got, err = m.GetOrCompute(ctx, "wikipedia:summary:k1", time.Minute, func(context.Context) ([]byte, error) {
		t.Error("compute should not run on a hit")
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestGetOrCompute_SingleFlight(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, Options{})

	const callers = 16
	var (
		computes atomic.Int64
		release  = make(chan struct{})
		started  sync.WaitGroup
		done     sync.WaitGroup
	)

	results := make([][]byte, callers)
	errs := make([]error, callers)

	started.Add(1)
	for i := range callers {
		done.Go(func() {
			results[i], errs[i] = m.GetOrCompute(context.Background(), "p:op:sf", time.Minute,
				func(context.Context) ([]byte, error) {
					computes.Add(1)
					started.Done()
					<-release
					return []byte("shared"), nil
				})
		})
	}

	started.Wait() // at least one caller is inside the compute
	close(release)
	done.Wait()

	if n := computes.Load(); n != 1 {
		t.Errorf("compute ran %d times, want 1", n)
	}
	for i := range callers {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if string(results[i]) != "shared" {
			t.Errorf("caller %d got %q", i, results[i])
		}
	}
}

func TestGetOrCompute_ErrorNotCached(t *testing.T) {
	t.Parallel()
	m, store := newTestManager(t, Options{})
	ctx := context.Background()

	boom := errors.New("upstream exploded")
	_, err := m.GetOrCompute(ctx, "arxiv:search:bad", time.Minute, func(context.Context) ([]byte, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want the compute error", err)
	}

	// No entry may exist afterwards.
	if _, err := store.GetEntry(ctx, "arxiv:search:bad"); !errors.Is(err, educache.ErrNotFound) {
		t.Errorf("entry exists after failed compute: %v", err)
	}

	// Next call re-attempts.
	got, err := m.GetOrCompute(ctx, "arxiv:search:bad", time.Minute, func(context.Context) ([]byte, error) {
		return []byte("ok"), nil
	})
	if err != nil || string(got) != "ok" {
		t.Errorf("retry = %q, %v; want ok", got, err)
	}
}

func TestGetOrCompute_ExpiredIsMiss(t *testing.T) {
	t.Parallel()
	m, store := newTestManager(t, Options{})
	ctx := context.Background()

	// Plant an already-expired entry directly in the store.
	now := time.Now()
	err := store.PutEntry(ctx, &educache.CacheEntry{
		Key: "p:op:stale", Value: []byte("old"), CreatedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour), SizeBytes: 3,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.Get(ctx, "p:op:stale"); !errors.Is(err, educache.ErrNotFound) {
		t.Errorf("expired entry served: %v", err)
	}

	got, err := m.GetOrCompute(ctx, "p:op:stale", time.Minute, func(context.Context) ([]byte, error) {
		return []byte("fresh"), nil
	})
	if err != nil || string(got) != "fresh" {
		t.Errorf("got %q, %v; want recomputed value", got, err)
	}
}

func TestGetOrCompute_CancelledWaiterDetaches(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, Options{})

	entered := make(chan struct{})
	release := make(chan struct{})

	var firstVal []byte
	var firstErr error
	var done sync.WaitGroup
	done.Go(func() {
		firstVal, firstErr = m.GetOrCompute(context.Background(), "p:op:cancel", time.Minute,
			func(context.Context) ([]byte, error) {
				close(entered)
				<-release
				return []byte("v"), nil
			})
	})

	<-entered

	// A second caller joins the flight then cancels.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.GetOrCompute(ctx, "p:op:cancel", time.Minute, func(context.Context) ([]byte, error) {
		t.Error("second compute must not run")
		return nil, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled waiter err = %v, want context.Canceled", err)
	}

	// The in-flight compute is unaffected.
	close(release)
	done.Wait()
	if firstErr != nil || string(firstVal) != "v" {
		t.Errorf("first caller = %q, %v; want v", firstVal, firstErr)
	}
}

func TestInvalidate(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, Options{})
	ctx := context.Background()

	_, err := m.GetOrCompute(ctx, "p:op:inv", time.Hour, func(context.Context) ([]byte, error) {
		return []byte("v1"), nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Invalidate(ctx, "p:op:inv"); err != nil {
		t.Fatal(err)
	}

	recomputed := false
	_, err = m.GetOrCompute(ctx, "p:op:inv", time.Hour, func(context.Context) ([]byte, error) {
		recomputed = true
		return []byte("v2"), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !recomputed {
		t.Error("invalidated key should recompute")
	}
}

func TestEvictIfOverBudget_OldestFirst(t *testing.T) {
	t.Parallel()
	m, store := newTestManager(t, Options{MaxSizeBytes: 250})
	ctx := context.Background()

	// 4 entries of 100 bytes each, inserted in a known order.
	base := time.Now().Add(-time.Minute)
	for i, key := range []string{"p:op:e1", "p:op:e2", "p:op:e3", "p:op:e4"} {
		err := store.PutEntry(ctx, &educache.CacheEntry{
			Key: key, Value: make([]byte, 100), CreatedAt: base.Add(time.Duration(i) * time.Second),
			ExpiresAt: time.Now().Add(time.Hour), SizeBytes: 100,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	evicted, err := m.EvictIfOverBudget(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if evicted != 2 {
		t.Errorf("evicted = %d, want 2", evicted)
	}

	// The two oldest are gone, the two newest survive.
	for _, key := range []string{"p:op:e1", "p:op:e2"} {
		if _, err := store.GetEntry(ctx, key); !errors.Is(err, educache.ErrNotFound) {
			t.Errorf("%s should be evicted", key)
		}
	}
	for _, key := range []string{"p:op:e3", "p:op:e4"} {
		if _, err := store.GetEntry(ctx, key); err != nil {
			t.Errorf("%s should survive: %v", key, err)
		}
	}
}

func TestRemoveExpired(t *testing.T) {
	t.Parallel()
	m, store := newTestManager(t, Options{})
	ctx := context.Background()
	now := time.Now()

	for key, expiresAt := range map[string]time.Time{
		"p:op:dead": now.Add(-time.Minute),
		"p:op:live": now.Add(time.Hour),
	} {
		err := store.PutEntry(ctx, &educache.CacheEntry{
			Key: key, Value: []byte("x"), CreatedAt: now.Add(-time.Hour),
			ExpiresAt: expiresAt, SizeBytes: 1,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	removed, err := m.RemoveExpired(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := store.GetEntry(ctx, "p:op:live"); err != nil {
		t.Errorf("live entry removed: %v", err)
	}
}

func TestCompression_RoundTrip(t *testing.T) {
	t.Parallel()
	m, store := newTestManager(t, Options{Compress: true, CompressThreshold: 64})
	ctx := context.Background()

	// Highly repetitive payload well above the threshold.
	big := make([]byte, 8192)
	for i := range big {
		big[i] = byte('a' + i%4)
	}

	_, err := m.GetOrCompute(ctx, "p:op:big", time.Hour, func(context.Context) ([]byte, error) {
		return big, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	e, err := store.GetEntry(ctx, "p:op:big")
	if err != nil {
		t.Fatal(err)
	}
	if !e.Compressed {
		t.Error("entry should be stored compressed")
	}
	if e.SizeBytes >= int64(len(big)) {
		t.Errorf("stored size %d not smaller than raw %d", e.SizeBytes, len(big))
	}

	// A fresh manager over the same store must decompress transparently.
	m2, err := NewManager(store, Options{Compress: true, CompressThreshold: 64})
	if err != nil {
		t.Fatal(err)
	}
	got, err := m2.Get(ctx, "p:op:big")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(big) {
		t.Error("decompressed value differs from original")
	}
}

func TestStoreUnavailable_PassThrough(t *testing.T) {
	t.Parallel()
	// storage.Unavailable stands in for a database that failed to open.
	m, err := NewManager(storage.Unavailable{}, Options{})
	if err != nil {
		t.Fatal(err)
	}

	// Every lookup degrades to a miss; the compute result still reaches the caller.
	got, err := m.GetOrCompute(context.Background(), "p:op:x", time.Minute, func(context.Context) ([]byte, error) {
		return []byte("computed"), nil
	})
	if err != nil {
		t.Fatalf("store outage must not fail the caller: %v", err)
	}
	if string(got) != "computed" {
		t.Errorf("got %q, want computed", got)
	}
}

func TestStats(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, Options{})
	ctx := context.Background()

	_, _ = m.GetOrCompute(ctx, "p:op:s", time.Minute, func(context.Context) ([]byte, error) {
		return []byte("v"), nil
	})
	_, _ = m.Get(ctx, "p:op:s")
	_, _ = m.Get(ctx, "p:op:absent")

	st := m.Stats(ctx)
	if st.Hits != 1 {
		t.Errorf("hits = %d, want 1", st.Hits)
	}
	if st.Misses != 2 {
		t.Errorf("misses = %d, want 2", st.Misses)
	}
	if st.Entries != 1 {
		t.Errorf("entries = %d, want 1", st.Entries)
	}
}
