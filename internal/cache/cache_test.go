package cache

import (
	"errors"
	"testing"
)

func TestGetOrCreate(t *testing.T) {
	c := New[string, int](0, nil)
	calls := 0
	create := func() (int, error) { calls++; return 42, nil }

	for i := 0; i < 3; i++ {
		v, err := c.GetOrCreate("a", create)
		if err != nil || v != 42 {
			t.Fatalf("GetOrCreate() = %d, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}
	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 || s.Len != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestGetOrCreateErrorNotCached(t *testing.T) {
	c := New[string, int](0, nil)
	boom := errors.New("boom")
	if _, err := c.GetOrCreate("a", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after failure, want 0", c.Len())
	}
	if v, err := c.GetOrCreate("a", func() (int, error) { return 7, nil }); err != nil || v != 7 {
		t.Errorf("retry = %d, %v", v, err)
	}
}

func TestEvictionOrder(t *testing.T) {
	var evicted []string
	c := New[string, int](2, func(k string, _ int) { evicted = append(evicted, k) })
	for i, k := range []string{"a", "b"} {
		v := i
		_, _ = c.GetOrCreate(k, func() (int, error) { return v, nil })
	}
	c.Get("a") // b is now the oldest
	_, _ = c.GetOrCreate("c", func() (int, error) { return 2, nil })

	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("evicted = %v, want [b]", evicted)
	}
	if _, ok := c.Get("b"); ok {
		t.Error("b should be gone")
	}
	if got := c.Stats().Evictions; got != 1 {
		t.Errorf("Evictions = %d, want 1", got)
	}
}

func TestClearAndDelete(t *testing.T) {
	evicted := 0
	c := New[int, int](0, func(int, int) { evicted++ })
	for i := 0; i < 4; i++ {
		v := i
		_, _ = c.GetOrCreate(i, func() (int, error) { return v, nil })
	}
	if !c.Delete(0) || c.Delete(0) {
		t.Error("Delete should succeed once")
	}
	c.Clear()
	if c.Len() != 0 || evicted != 4 {
		t.Errorf("Len() = %d, evicted = %d, want 0, 4", c.Len(), evicted)
	}
}

func TestRecencyOrder(t *testing.T) {
	var r recency[int, string]
	r.init()
	n1 := r.pushFront(1, "a")
	r.pushFront(2, "b")
	n3 := r.pushFront(3, "c")
	r.touch(n1)
	if n := r.oldest(); n == nil || n.key != 2 {
		t.Fatalf("oldest() = %v, want key 2", n)
	}
	r.remove(r.oldest())
	r.remove(n3)
	if r.len != 1 || r.oldest() != n1 {
		t.Errorf("len = %d, oldest key = %d, want 1, 1", r.len, r.oldest().key)
	}
	r.remove(n1)
	if r.oldest() != nil {
		t.Error("oldest() on an empty list should be nil")
	}
}
