// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package pool caches retired render targets for reuse.
//
// Textures are keyed by a hash of their descriptor and the name they are
// bound under. Each key holds a LIFO bucket, so the most recently retired
// (and most likely still resident) texture is reused first. Entries not
// reused for more than the configured lifetime are released by PurgeStale.
//
// The pool has a hard capacity. Once full, Add returns false and the caller
// releases the texture itself; that is backpressure, not an error.
package pool

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/gogpu/upscale/metrics"
	"github.com/gogpu/upscale/render"
)

// ErrCapacityExceeded is returned by Put when the pool is full.
var ErrCapacityExceeded = errors.New("pool: capacity exceeded")

// Default pool limits.
const (
	// DefaultCapacity is the maximum number of pooled textures.
	DefaultCapacity = 32

	// DefaultLifetime is the number of frames an entry survives unused.
	DefaultLifetime = 3
)

// Stats contains pool usage statistics.
type Stats struct {
	// Entries is the number of textures currently pooled.
	Entries int

	// Capacity is the maximum number of pooled textures.
	Capacity int

	// Buckets is the number of distinct keys in use.
	Buckets int

	// Hits and Misses count TryGet outcomes.
	Hits   uint64
	Misses uint64

	// Rejections counts Add calls refused because the pool was full.
	Rejections uint64

	// Evictions counts stale entries released by PurgeStale.
	Evictions uint64
}

// HitRate returns hits / (hits + misses), or 0 without lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// String returns a human-readable string of pool stats.
func (s Stats) String() string {
	return fmt.Sprintf("Pool[%d/%d entries, %d buckets, %.1f%% hits, %d rejected, %d evicted]",
		s.Entries, s.Capacity, s.Buckets, s.HitRate()*100, s.Rejections, s.Evictions)
}

// entry is a pooled texture.
type entry struct {
	key      uint64
	name     string
	desc     render.TextureDescriptor
	texture  render.Texture
	lastUsed uint64
}

// Pool is a cache of retired render targets.
//
// Pool is safe for concurrent use. Views sharing one pool interleave their
// frames without further coordination.
type Pool struct {
	mu sync.Mutex

	// buckets maps a key to its entries, most recently added last.
	buckets map[uint64][]*entry

	// owned indexes entries by texture identity.
	owned map[render.Texture]*entry

	capacity int
	lifetime uint64

	hits, misses, rejections, evictions uint64

	metrics *metrics.Metrics
}

// Option configures a Pool.
type Option func(*Pool)

// WithCapacity sets the maximum number of pooled textures.
// Values <= 0 select DefaultCapacity.
func WithCapacity(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.capacity = n
		}
	}
}

// WithLifetime sets the number of frames an unused entry survives.
func WithLifetime(frames uint64) Option {
	return func(p *Pool) {
		p.lifetime = frames
	}
}

// WithMetrics records pool activity into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pool) {
		p.metrics = m
	}
}

// New creates an empty pool.
func New(opts ...Option) *Pool {
	p := &Pool{
		buckets:  make(map[uint64][]*entry),
		owned:    make(map[render.Texture]*entry),
		capacity: DefaultCapacity,
		lifetime: DefaultLifetime,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Add retires tex into the pool as of frame. It returns false when the pool
// is full; the caller must then release tex itself.
//
// Adding a texture that is already pooled only refreshes its frame.
func (p *Pool) Add(desc render.TextureDescriptor, name string, tex render.Texture, frame uint64) bool {
	if tex == nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.owned[tex]; ok {
		e.lastUsed = max(e.lastUsed, frame)
		return true
	}
	if len(p.owned) >= p.capacity {
		p.rejections++
		p.metrics.RecordPoolRetiral(false)
		return false
	}

	e := &entry{
		key:      Key(desc, name),
		name:     name,
		desc:     desc.Normalize(),
		texture:  tex,
		lastUsed: frame,
	}
	p.buckets[e.key] = append(p.buckets[e.key], e)
	p.owned[tex] = e

	p.metrics.RecordPoolRetiral(true)
	p.metrics.RecordPoolEntries(len(p.owned))
	return true
}

// Put is Add for callers that want an error. On ErrCapacityExceeded the
// caller still owns tex.
func (p *Pool) Put(desc render.TextureDescriptor, name string, tex render.Texture, frame uint64) error {
	if tex == nil {
		return fmt.Errorf("pool: put %q: nil texture", name)
	}
	if !p.Add(desc, name, tex, frame) {
		return fmt.Errorf("%w: %q (%d entries)", ErrCapacityExceeded, name, p.Capacity())
	}
	return nil
}

// TryGet takes the most recently added texture matching desc and name.
func (p *Pool) TryGet(desc render.TextureDescriptor, name string) (render.Texture, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.take(Key(desc, name), func(*entry) bool { return true })
}

// TryGetForFrame is TryGet restricted to entries retired before frame.
// Textures retired during frame may still be referenced by command buffers
// recorded in that frame.
func (p *Pool) TryGetForFrame(desc render.TextureDescriptor, name string, frame uint64) (render.Texture, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.take(Key(desc, name), func(e *entry) bool { return e.lastUsed < frame })
}

// take pops the newest entry under key accepted by ok.
// Must be called with p.mu held.
func (p *Pool) take(key uint64, ok func(*entry) bool) (render.Texture, bool) {
	bucket := p.buckets[key]
	for i := len(bucket) - 1; i >= 0; i-- {
		e := bucket[i]
		if !ok(e) {
			continue
		}
		bucket = append(bucket[:i], bucket[i+1:]...)
		if len(bucket) == 0 {
			delete(p.buckets, key)
		} else {
			p.buckets[key] = bucket
		}
		delete(p.owned, e.texture)

		p.hits++
		p.metrics.RecordPoolRequest(true)
		p.metrics.RecordPoolEntries(len(p.owned))
		return e.texture, true
	}
	p.misses++
	p.metrics.RecordPoolRequest(false)
	return nil, false
}

// PurgeStale releases every entry whose last use plus the pool lifetime is
// before frame. It returns the number of released textures.
func (p *Pool) PurgeStale(frame uint64) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	released := 0
	for key, bucket := range p.buckets {
		kept := bucket[:0]
		for _, e := range bucket {
			if e.lastUsed+p.lifetime < frame {
				e.texture.Release()
				delete(p.owned, e.texture)
				released++
				continue
			}
			kept = append(kept, e)
		}
		clear(bucket[len(kept):])
		if len(kept) == 0 {
			delete(p.buckets, key)
		} else {
			p.buckets[key] = kept
		}
	}

	if released > 0 {
		p.evictions += uint64(released)
		p.metrics.RecordPoolEvictions(released)
		p.metrics.RecordPoolEntries(len(p.owned))
		slogger().Debug("pool: purged stale textures",
			slog.Int("released", released),
			slog.Uint64("frame", frame),
			slog.Int("remaining", len(p.owned)))
	}
	return released
}

// Cleanup releases every pooled texture.
func (p *Pool) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleanupLocked()
}

func (p *Pool) cleanupLocked() {
	for tex := range p.owned {
		tex.Release()
	}
	clear(p.owned)
	clear(p.buckets)
	p.metrics.RecordPoolEntries(0)
}

// SetCapacity changes the capacity. A changed capacity releases everything
// pooled so the new limit holds immediately.
func (p *Pool) SetCapacity(n int) {
	if n <= 0 {
		n = DefaultCapacity
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if n == p.capacity {
		return
	}
	p.cleanupLocked()
	p.capacity = n
}

// Capacity returns the maximum number of pooled textures.
func (p *Pool) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity
}

// Lifetime returns the staleness grace period in frames.
func (p *Pool) Lifetime() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lifetime
}

// Len returns the number of pooled textures.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.owned)
}

// Stats returns a snapshot of the pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Entries:    len(p.owned),
		Capacity:   p.capacity,
		Buckets:    len(p.buckets),
		Hits:       p.hits,
		Misses:     p.misses,
		Rejections: p.rejections,
		Evictions:  p.evictions,
	}
}

// EntryInfo describes a pooled texture.
type EntryInfo struct {
	Key        uint64
	Name       string
	Descriptor render.TextureDescriptor
	LastUsed   uint64
}

// Entries returns a snapshot of the pooled textures ordered by name, then
// by last use.
func (p *Pool) Entries() []EntryInfo {
	p.mu.Lock()
	infos := make([]EntryInfo, 0, len(p.owned))
	for _, e := range p.owned {
		infos = append(infos, EntryInfo{Key: e.key, Name: e.name, Descriptor: e.desc, LastUsed: e.lastUsed})
	}
	p.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Name != infos[j].Name {
			return infos[i].Name < infos[j].Name
		}
		return infos[i].LastUsed < infos[j].LastUsed
	})
	return infos
}

// LogDebugInfo logs every pooled texture and its age at frame.
func (p *Pool) LogDebugInfo(frame uint64) {
	log := slogger()
	stats := p.Stats()
	log.Debug("pool: "+stats.String(), slog.Uint64("frame", frame))
	for _, e := range p.Entries() {
		log.Debug("pool: entry",
			slog.String("name", e.Name),
			slog.String("texture", e.Descriptor.String()),
			slog.Uint64("age", frame-min(frame, e.LastUsed)))
	}
}
