package action

import "sync"

// Constructor builds a fresh Action instance bound to deps. Factory.Create
// calls it on every Create, so any per-action setup it does runs once per
// created instance, not once at registration time.
type Constructor func(deps Deps) Action

// Factory is the name→constructor registry pipelines are built from,
// mirroring the teacher's plugin-registry pattern used for scrapers.
type Factory struct {
	mu    sync.RWMutex
	ctors map[Name]Constructor
}

// NewFactory returns an empty registry.
func NewFactory() *Factory {
	return &Factory{ctors: make(map[Name]Constructor)}
}

// Register binds name to ctor. Re-registering the same name is an error:
// the action set is closed and fixed at startup.
func (f *Factory) Register(name Name, ctor Constructor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.ctors[name]; exists {
		return ErrDuplicateRegistration
	}
	f.ctors[name] = ctor
	return nil
}

// Create builds the action bound to name using deps.
func (f *Factory) Create(name Name, deps Deps) (Action, error) {
	f.mu.RLock()
	ctor, ok := f.ctors[name]
	f.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownAction
	}
	return ctor(deps), nil
}

// RegisteredNames lists every name currently bound, for startup
// completeness checks against AllNames.
func (f *Factory) RegisteredNames() []Name {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]Name, 0, len(f.ctors))
	for n := range f.ctors {
		names = append(names, n)
	}
	return names
}
