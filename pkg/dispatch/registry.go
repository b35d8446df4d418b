package dispatch

import (
	"sync"

	"github.com/typedrest/typedrest/pkg/descriptor"
)

// registry caches one synthesized ServiceMethod per descriptor. Each method
// key carries its own lock so concurrent first use of unrelated methods
// never serializes; concurrent first use of the same method produces exactly
// one surviving plan, which every caller then shares. Synthesis failures are
// cached too: they depend only on configuration, so retrying cannot help.
type registry struct {
	mu      sync.RWMutex
	entries map[string]*methodEntry
}

type methodEntry struct {
	desc *descriptor.Descriptor

	mu   sync.Mutex
	plan *ServiceMethod
	err  error
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]*methodEntry)}
}

// add registers a descriptor. Re-registering a name is a configuration
// mistake and is rejected so two descriptors can never compete for one
// cache slot.
func (r *registry) add(desc *descriptor.Descriptor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[desc.Name]; exists {
		return false
	}
	r.entries[desc.Name] = &methodEntry{desc: desc}
	return true
}

// lookup returns the entry for name, or nil.
func (r *registry) lookup(name string) *methodEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[name]
}

// names returns all registered method names.
func (r *registry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	return out
}

// resolve returns the entry's plan, synthesizing it on first access. The
// two states of an entry are unsynthesized (plan and err both nil) and
// synthesized; the per-entry mutex makes the transition happen exactly once.
func (e *methodEntry) resolve(synth func(*descriptor.Descriptor) (*ServiceMethod, error)) (*ServiceMethod, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.plan == nil && e.err == nil {
		e.plan, e.err = synth(e.desc)
	}
	return e.plan, e.err
}
