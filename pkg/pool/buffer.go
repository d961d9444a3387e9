package pool

import "sync"

// FixedBufferPool hands out reusable byte slices of one fixed size. It backs
// the copy loops of the native link engine and the archive writer, keeping
// per-file allocations off the GC.
type FixedBufferPool struct {
	size int64
	pool sync.Pool
}

func NewFixedBuffer(size int64) *FixedBufferPool {
	return &FixedBufferPool{
		size: size,
		pool: sync.Pool{
			New: func() any {
				b := make([]byte, int(size))
				return &b
			},
		},
	}
}

func (fp *FixedBufferPool) Get() *[]byte {
	return fp.pool.Get().(*[]byte)
}

func (fp *FixedBufferPool) Put(b *[]byte) {
	// Only put it back if it's the right size.
	if b == nil || int64(cap(*b)) != fp.size {
		return
	}
	*b = (*b)[:fp.size]
	fp.pool.Put(b)
}
