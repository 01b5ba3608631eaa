// Package alloc provides the explicit byte-buffer lifecycle contract
// that every component in this module is built against: buffers are
// obtained from an Allocator and returned to it via FreeCell, with no
// implicit release. Cells are pooled by size, since the streaming
// components hold them across many calls and churn them at block and
// chunk granularity.
package alloc

import "sync"

// Allocator hands out byte cells sized on request and reclaims them when
// the caller is done. A zero-value Allocator is ready to use.
type Allocator struct {
	pools sync.Map // size -> *sync.Pool
}

// New returns a ready-to-use Allocator.
func New() *Allocator {
	return &Allocator{}
}

func (a *Allocator) poolFor(size int) *sync.Pool {
	if p, ok := a.pools.Load(size); ok {
		return p.(*sync.Pool)
	}
	p := &sync.Pool{
		New: func() interface{} {
			buf := make([]byte, size)
			return &buf
		},
	}
	actual, _ := a.pools.LoadOrStore(size, p)
	return actual.(*sync.Pool)
}

// AllocCell returns a zero-filled byte slice of exactly n bytes. The
// slice must be released with FreeCell when no longer needed.
func (a *Allocator) AllocCell(n int) []byte {
	if n <= 0 {
		return nil
	}
	p := a.poolFor(n)
	bufp := p.Get().(*[]byte)
	buf := *bufp
	for i := range buf {
		buf[i] = 0
	}
	return buf
}

// FreeCell releases a cell previously returned by AllocCell. Passing a
// slice not obtained from this allocator, or passing nil, is a no-op.
func (a *Allocator) FreeCell(cell []byte) {
	if cell == nil {
		return
	}
	n := cap(cell)
	p := a.poolFor(n)
	buf := cell[:n]
	p.Put(&buf)
}
