package topic

import "sync"

// Registry is the single source of mutual exclusion for turn execution: one
// busy flag and one cached runner per topic key. Entries are created lazily
// and live for the process lifetime.
type Registry struct {
	mu     sync.Mutex
	states map[string]*state
}

type state struct {
	running bool
	runner  any
}

func NewRegistry() *Registry {
	return &Registry{states: make(map[string]*state)}
}

// Acquire reserves the topic's run slot. It returns false when a turn is
// already in flight; callers must not invoke the runner in that case.
func (r *Registry) Acquire(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.stateLocked(key)
	if st.running {
		return false
	}
	st.running = true
	return true
}

// Release clears the busy flag. Safe to call on an already-idle topic.
func (r *Registry) Release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stateLocked(key).running = false
}

func (r *Registry) IsRunning(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked(key).running
}

// Runner returns the cached runner for key, invoking create on first use.
func (r *Registry) Runner(key string, create func() any) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.stateLocked(key)
	if st.runner == nil && create != nil {
		st.runner = create()
	}
	return st.runner
}

func (r *Registry) stateLocked(key string) *state {
	st, ok := r.states[key]
	if !ok {
		st = &state{}
		r.states[key] = st
	}
	return st
}
