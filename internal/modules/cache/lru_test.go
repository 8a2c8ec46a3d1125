package cache

import "testing"

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := newLRU(2)
	c.set("a", []byte("1"))
	c.set("b", []byte("2"))
	c.set("c", []byte("3")) // evicts "a"

	if _, ok := c.get("a"); ok {
		t.Fatalf("expected a to be evicted")
	}
	if v, ok := c.get("b"); !ok || string(v) != "2" {
		t.Fatalf("expected b to remain")
	}
}

func TestLRUGetPromotesToFront(t *testing.T) {
	c := newLRU(2)
	c.set("a", []byte("1"))
	c.set("b", []byte("2"))
	c.get("a") // promote a
	c.set("c", []byte("3")) // should evict b, not a

	if _, ok := c.get("b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	if _, ok := c.get("a"); !ok {
		t.Fatalf("expected a to remain after promotion")
	}
}

func TestLRUDeleteRemovesEntry(t *testing.T) {
	c := newLRU(2)
	c.set("a", []byte("1"))
	c.delete("a")
	if _, ok := c.get("a"); ok {
		t.Fatalf("expected a to be removed")
	}
}

func TestLRUZeroCapacityDefaultsToOne(t *testing.T) {
	c := newLRU(0)
	c.set("a", []byte("1"))
	c.set("b", []byte("2"))
	if _, ok := c.get("a"); ok {
		t.Fatalf("expected a to be evicted with capacity 1")
	}
}
