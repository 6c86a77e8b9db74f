// Package pool provides typed object pooling on top of sync.Pool.
//
// Example usage:
//
//	m := pool.MapPool.Get()
//	defer pool.MapPool.Put(m)
//
//	m["id"] = 7
//
// Custom pools take a factory and an optional reset function that runs
// before an object goes back into the pool:
//
//	rows := pool.New(
//	    func() []any { return make([]any, 0, 16) },
//	    nil,
//	)
package pool

import "sync"

// Pool is a generic object pool. It is safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
}

// New creates a typed pool. reset may be nil.
func New[T any](newFn func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() any { return newFn() }
	return p
}

// Get returns a pooled object or a new one.
func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

// Put resets obj and returns it to the pool.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	p.pool.Put(obj)
}

// MapPool pools map[string]any values; maps are cleared on Put.
var MapPool = New(
	func() map[string]any { return make(map[string]any, 16) },
	func(m map[string]any) { clear(m) },
)
