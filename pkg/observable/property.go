// Package observable provides a value that notifies listeners when it changes.
package observable

import "sync"

// Property holds a value of T and calls registered callbacks after each change.
type Property[T comparable] struct {
	mu        sync.Mutex
	value     T
	nextID    int
	callbacks map[int]func()
}

// New returns a Property holding initial.
func New[T comparable](initial T) *Property[T] {
	return &Property[T]{value: initial, callbacks: make(map[int]func())}
}

// Get returns the current value.
func (p *Property[T]) Get() T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Set stores v. Callbacks run on the caller's goroutine, outside the lock,
// and only when the value actually changed.
func (p *Property[T]) Set(v T) {
	p.mu.Lock()
	if p.value == v {
		p.mu.Unlock()
		return
	}
	p.value = v
	cbs := make([]func(), 0, len(p.callbacks))
	for _, cb := range p.callbacks {
		cbs = append(cbs, cb)
	}
	p.mu.Unlock()

	for _, cb := range cbs {
		cb()
	}
}

// AddCallback registers cb and returns an id for RemoveCallback.
func (p *Property[T]) AddCallback(cb func()) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.callbacks[p.nextID] = cb
	return p.nextID
}

// RemoveCallback unregisters the callback with id.
func (p *Property[T]) RemoveCallback(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.callbacks, id)
}
