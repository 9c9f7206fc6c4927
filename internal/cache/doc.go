// Package cache provides the LRU cache the native backend keeps its compiled
// shaders and compute pipelines in.
//
//	c := cache.New[key, *pipeline](32, func(_ key, p *pipeline) { p.destroy() })
//	p, err := c.GetOrCreate(k, func() (*pipeline, error) { return build(k) })
//
// Creation runs under the cache lock, so a pipeline is never built twice for
// one key. Failed creations are not cached. Evicted and cleared values are
// handed to the evict callback so their GPU objects can be released.
package cache
