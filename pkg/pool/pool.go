// Package pool provides typed object pools for the buffers reused while
// loading survey tables and resolving variables.
//
// Example usage:
//
//	rows := pool.New(
//	    func() *Row { return &Row{} },
//	    func(r *Row) { r.Reset() },
//	)
//	r := rows.Get()
//	defer rows.Put(r)
package pool

import (
	"sync"
	"sync/atomic"
)

// Pool is a typed wrapper around sync.Pool that resets objects on Put and
// counts allocations. It is safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
		gets      int64
	}
}

// New creates a pool. reset, when non-nil, runs before an object is
// returned to the pool.
func New[T any](newFn func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return newFn()
	}
	return p
}

// Get retrieves an object from the pool, allocating one if it is empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	atomic.AddInt64(&p.stats.gets, 1)
	return p.pool.Get().(T)
}

// Put resets obj and returns it to the pool.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats reports the number of objects allocated, currently checked out,
// and handed out in total. Gets minus allocated is the number of reuses.
func (p *Pool[T]) Stats() (allocated, inUse, gets int64) {
	return atomic.LoadInt64(&p.stats.allocated),
		atomic.LoadInt64(&p.stats.inUse),
		atomic.LoadInt64(&p.stats.gets)
}

// Row is a scan buffer for database/sql: Dest[i] points at Values[i].
type Row struct {
	Values []any
	Dest   []any
}

// Resize makes the row n columns wide.
func (r *Row) Resize(n int) {
	if cap(r.Values) < n {
		r.Values = make([]any, n)
		r.Dest = make([]any, n)
	}
	r.Values = r.Values[:n]
	r.Dest = r.Dest[:n]
	for i := range r.Values {
		r.Dest[i] = &r.Values[i]
	}
}

// Reset clears the scanned values so pooled rows do not retain them.
func (r *Row) Reset() {
	for i := range r.Values {
		r.Values[i] = nil
	}
}

// Rows is the shared pool of scan buffers.
var Rows = New(
	func() *Row { return &Row{} },
	func(r *Row) { r.Reset() },
)

// GetRow returns a scan buffer n columns wide from Rows.
func GetRow(n int) *Row {
	r := Rows.Get()
	r.Resize(n)
	return r
}

// PutRow returns r to Rows.
func PutRow(r *Row) { Rows.Put(r) }
