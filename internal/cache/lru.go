package cache

// node is an intrusive recency list element holding one cache entry.
type node[K comparable, V any] struct {
	key        K
	value      V
	prev, next *node[K, V]
}

// recency orders entries from most to least recently used. It is a circular
// list around a sentinel, so no operation needs a nil check. Not safe for
// concurrent use; Cache holds its lock around every call.
type recency[K comparable, V any] struct {
	root node[K, V]
	len  int
}

func (r *recency[K, V]) init() {
	r.root.next = &r.root
	r.root.prev = &r.root
	r.len = 0
}

// pushFront inserts a new entry as the most recently used.
func (r *recency[K, V]) pushFront(key K, value V) *node[K, V] {
	n := &node[K, V]{key: key, value: value}
	r.insertAfter(n, &r.root)
	r.len++
	return n
}

// touch marks n most recently used.
func (r *recency[K, V]) touch(n *node[K, V]) {
	if r.root.next == n {
		return
	}
	r.detach(n)
	r.insertAfter(n, &r.root)
}

// remove unlinks n.
func (r *recency[K, V]) remove(n *node[K, V]) {
	r.detach(n)
	n.prev, n.next = nil, nil
	r.len--
}

// oldest returns the least recently used entry, nil when empty.
func (r *recency[K, V]) oldest() *node[K, V] {
	if r.len == 0 {
		return nil
	}
	return r.root.prev
}

func (r *recency[K, V]) insertAfter(n, at *node[K, V]) {
	n.prev = at
	n.next = at.next
	at.next.prev = n
	at.next = n
}

func (r *recency[K, V]) detach(n *node[K, V]) {
	n.prev.next = n.next
	n.next.prev = n.prev
}
