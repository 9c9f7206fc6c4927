package upscale

import (
	"log/slog"
	"sort"
	"sync"
)

// registryEntry is a registered descriptor with its registration order.
type registryEntry struct {
	desc Descriptor
	seq  uint64
}

// Registry holds the known algorithm descriptors.
//
// Descriptors are deduplicated by Identifier and compete by Name: when two
// descriptors share a Name, only the one with the higher Priority stays.
// Entries are kept ordered by priority ascending, ties broken by registration
// order.
//
// A Registry is created once at startup and passed to every ViewContext.
// It is safe for concurrent use.
//
// Example:
//
//	reg := upscale.NewRegistry()
//	reg.Register(spatial.NewDescriptor(dev))
//	reg.Register(taa.NewDescriptor(dev))
type Registry struct {
	mu      sync.RWMutex
	entries []registryEntry
	seq     uint64
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds d to the registry and reports whether it was kept.
//
// A descriptor whose Identifier is already registered is rejected. When an
// entry with the same Name but a different Identifier exists, the one with
// the higher Priority stays; on equal priority the existing entry stays.
func (r *Registry) Register(d Descriptor) bool {
	if d == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id := d.Identifier()
	for _, e := range r.entries {
		if e.desc.Identifier() == id {
			return false
		}
	}

	r.seq++
	entry := registryEntry{desc: d, seq: r.seq}

	if d.Name() != NameNone {
		for i, e := range r.entries {
			if e.desc.Name() != d.Name() {
				continue
			}
			if e.desc.Priority() >= d.Priority() {
				Logger().Debug("upscale: registration lost name conflict",
					slog.String("identifier", id),
					slog.String("name", d.Name().String()),
					slog.String("kept", e.desc.Identifier()))
				return false
			}
			Logger().Debug("upscale: registration replaced lower priority descriptor",
				slog.String("identifier", id),
				slog.String("replaced", e.desc.Identifier()))
			r.entries[i] = entry
			r.sortLocked()
			return true
		}
	}

	r.entries = append(r.entries, entry)
	r.sortLocked()
	return true
}

// Unregister removes the descriptor registered under id and reports whether
// it was present. The descriptor's Cleanup is not called.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.desc.Identifier() == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// sortLocked orders entries by priority, then registration order.
// Must be called with r.mu held.
func (r *Registry) sortLocked() {
	sort.Slice(r.entries, func(i, j int) bool {
		pi, pj := r.entries[i].desc.Priority(), r.entries[j].desc.Priority()
		if pi != pj {
			return pi < pj
		}
		return r.entries[i].seq < r.entries[j].seq
	})
}

// FindByIdentifier returns the descriptor registered under id, or nil.
func (r *Registry) FindByIdentifier(id string) Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.desc.Identifier() == id {
			return e.desc
		}
	}
	return nil
}

// FindByName returns the descriptor registered for name, or nil.
func (r *Registry) FindByName(name Name) Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.desc.Name() == name {
			return e.desc
		}
	}
	return nil
}

// List returns the registered descriptors ordered by priority ascending.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.desc
	}
	return out
}

// Supported returns the descriptors supported on the current device,
// ordered by priority ascending.
func (r *Registry) Supported() []Descriptor {
	all := r.List()
	out := all[:0]
	for _, d := range all {
		if d.Supported() {
			out = append(out, d)
		}
	}
	return out
}

// AnySupported reports whether any registered descriptor is supported.
func (r *Registry) AnySupported() bool {
	for _, d := range r.List() {
		if d.Supported() {
			return true
		}
	}
	return false
}

// Len returns the number of registered descriptors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Cleanup calls Cleanup on every registered descriptor. Live instances are
// not affected; descriptors drop shared resources they can recreate.
func (r *Registry) Cleanup() {
	for _, d := range r.List() {
		d.Cleanup()
	}
}

// Lookup returns the descriptor registered under id, or an
// *AlgorithmNotFoundError.
func (r *Registry) Lookup(id string) (Descriptor, error) {
	if d := r.FindByIdentifier(id); d != nil {
		return d, nil
	}
	return nil, &AlgorithmNotFoundError{Identifier: id}
}
