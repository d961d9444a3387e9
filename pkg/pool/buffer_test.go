package pool

import "testing"

func TestFixedBufferPool(t *testing.T) {
	fp := NewFixedBuffer(1024)

	b := fp.Get()
	if len(*b) != 1024 {
		t.Fatalf("Get returned buffer of len %d, want 1024", len(*b))
	}

	// Shrink the slice before returning it; Put must restore the full length.
	*b = (*b)[:10]
	fp.Put(b)

	b2 := fp.Get()
	if len(*b2) != 1024 {
		t.Errorf("recycled buffer has len %d, want 1024", len(*b2))
	}

	t.Run("rejects foreign sizes", func(t *testing.T) {
		foreign := make([]byte, 512)
		fp.Put(&foreign) // must be silently dropped
		got := fp.Get()
		if len(*got) != 1024 {
			t.Errorf("pool handed out a foreign buffer of len %d", len(*got))
		}
	})

	t.Run("nil is a no-op", func(t *testing.T) {
		fp.Put(nil)
	})
}
