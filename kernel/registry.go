package kernel

import "sync"

type subKey struct {
	driver uint32
	sub    uint32
}

// Registry implements the Subscribe and Allow bookkeeping shared by
// in-process Conn implementations (the simulator and the host panel
// backends). Embed it and serve Command yourself.
type Registry struct {
	mu      sync.Mutex
	upcalls map[subKey]Upcall
	grants  map[subKey][]byte
}

// Subscribe records fn for (driver, sub), replacing any previous upcall.
func (r *Registry) Subscribe(driver, sub uint32, fn Upcall) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upcalls == nil {
		r.upcalls = make(map[subKey]Upcall)
	}
	if fn == nil {
		delete(r.upcalls, subKey{driver, sub})
		return nil
	}
	r.upcalls[subKey{driver, sub}] = fn
	return nil
}

// Allow records buf as the grant for (driver, slot).
func (r *Registry) Allow(driver, slot uint32, buf []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.grants == nil {
		r.grants = make(map[subKey][]byte)
	}
	if buf == nil {
		delete(r.grants, subKey{driver, slot})
		return nil
	}
	r.grants[subKey{driver, slot}] = buf
	return nil
}

// Upcall returns the registered upcall for (driver, sub), or nil.
func (r *Registry) Upcall(driver, sub uint32) Upcall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upcalls[subKey{driver, sub}]
}

// Grant returns the granted buffer for (driver, slot), or nil.
func (r *Registry) Grant(driver, slot uint32) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.grants[subKey{driver, slot}]
}
