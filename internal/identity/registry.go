// registry.go - Server-side table of identities keyed by identity hash.
//
// NOTE: Registry is not thread-safe by itself; the messaging service guards
// it with the same lock as the message store.

package identity

// Registry maps identity hashes to their managers.
type Registry struct {
	managers map[string]*Manager
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{managers: make(map[string]*Manager)}
}

// Register stores m under key. An existing entry is kept.
func (r *Registry) Register(key string, m *Manager) {
	if _, exists := r.managers[key]; exists {
		return
	}
	r.managers[key] = m
}

// Get returns the manager registered under key.
func (r *Registry) Get(key string) (*Manager, bool) {
	m, ok := r.managers[key]
	return m, ok
}

// Resolve returns the manager registered under key, or derives one
// deterministically with FromSeed(key). A derived manager is not registered;
// created reports whether the caller should register it.
func (r *Registry) Resolve(key string) (m *Manager, created bool, err error) {
	if m, ok := r.managers[key]; ok {
		return m, false, nil
	}
	m, err = FromSeed([]byte(key))
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

// Len returns the number of registered identities.
func (r *Registry) Len() int {
	return len(r.managers)
}
