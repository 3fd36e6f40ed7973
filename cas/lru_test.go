package cas

import (
	"testing"

	"github.com/timewinder-dev/looptrace/engine"
	"github.com/timewinder-dev/looptrace/trace"
)

func testTrace(src string) *trace.Trace {
	return engine.New(engine.Options{}).Trace(src)
}

func TestLRUCache_BasicOperation(t *testing.T) {
	underlying := NewMemoryCAS()
	cache := NewLRUCache(underlying, 3) // Small cache for testing

	sources := []string{"console.log(1)", "console.log(2)", "console.log(3)", "console.log(4)"}
	var hashes []Hash
	for _, src := range sources[:3] {
		h, err := cache.Put(testTrace(src))
		if err != nil {
			t.Fatalf("Failed to put trace: %v", err)
		}
		hashes = append(hashes, h)
	}

	retrieved, err := Retrieve[*trace.Trace](cache, hashes[0])
	if err != nil {
		t.Fatalf("Failed to retrieve trace: %v", err)
	}
	if retrieved.Source != sources[0] {
		t.Errorf("Retrieved trace has wrong source: got %q, want %q", retrieved.Source, sources[0])
	}

	stats := cache.Stats()
	if stats.Size != 1 {
		t.Errorf("Cache should have one entry, got %d", stats.Size)
	}

	for _, h := range hashes[1:] {
		if _, err := Retrieve[*trace.Trace](cache, h); err != nil {
			t.Fatalf("Failed to retrieve trace: %v", err)
		}
	}

	h4, err := cache.Put(testTrace(sources[3]))
	if err != nil {
		t.Fatalf("Failed to put trace: %v", err)
	}
	if _, err := Retrieve[*trace.Trace](cache, h4); err != nil {
		t.Fatalf("Failed to retrieve trace: %v", err)
	}

	stats = cache.Stats()
	if stats.Size > stats.MaxSize {
		t.Errorf("Cache size %d exceeds max size %d after eviction", stats.Size, stats.MaxSize)
	}
	if stats.Misses != 4 {
		t.Errorf("Expected 4 misses, got %d", stats.Misses)
	}

	// hashes[0] was evicted, reading it again is a miss served by the underlying store
	if _, err := Retrieve[*trace.Trace](cache, hashes[0]); err != nil {
		t.Fatalf("Failed to retrieve evicted trace: %v", err)
	}
	if got := cache.Stats().Misses; got != 5 {
		t.Errorf("Expected 5 misses, got %d", got)
	}

	if _, err := Retrieve[*trace.Trace](cache, h4); err != nil {
		t.Fatalf("Failed to retrieve trace: %v", err)
	}
	if got := cache.Stats().Hits; got != 1 {
		t.Errorf("Expected 1 hit, got %d", got)
	}
}

func TestLRUCache_Has(t *testing.T) {
	underlying := NewMemoryCAS()
	cache := NewLRUCache(underlying, 10)

	hash, err := cache.Put(testTrace("let x = 42"))
	if err != nil {
		t.Fatalf("Failed to put trace: %v", err)
	}

	if !cache.Has(hash) {
		t.Errorf("Cache should report hash exists")
	}

	if cache.Has(Hash(99999)) {
		t.Errorf("Cache should report non-existent hash doesn't exist")
	}
}

func TestLRUCache_DelegatesNames(t *testing.T) {
	underlying := NewMemoryCAS()
	cache := NewLRUCache(underlying, 10)

	if err := cache.Bind("name", Hash(7)); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	h, ok, err := underlying.Lookup("name")
	if err != nil || !ok || h != Hash(7) {
		t.Errorf("Lookup through underlying store = %v, %v, %v", h, ok, err)
	}
}
