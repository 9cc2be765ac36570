package soft

import (
	"fmt"
	"sync"

	"github.com/gekko3d/wavert/rt/device"
)

type Buffer struct {
	dev      *Device
	desc     device.BufferDescriptor
	mu       sync.RWMutex
	data     []byte
	released bool
}

func (b *Buffer) Label() string             { return b.desc.Label }
func (b *Buffer) Count() int                { return b.desc.Count }
func (b *Buffer) Stride() int               { return b.desc.Stride }
func (b *Buffer) Size() int                 { return len(b.data) }
func (b *Buffer) Usage() device.BufferUsage { return b.desc.Usage }

func (b *Buffer) Write(offset int, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return fmt.Errorf("buffer %q: %w", b.desc.Label, device.ErrReleased)
	}
	if offset < 0 || offset+len(data) > len(b.data) {
		return fmt.Errorf("%w: write of %d bytes at %d overflows buffer %q (%d bytes)",
			device.ErrInvalidCommand, len(data), offset, b.desc.Label, len(b.data))
	}
	copy(b.data[offset:], data)
	return nil
}

// Bytes returns a copy of the buffer contents.
func (b *Buffer) Bytes() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]byte(nil), b.data...)
}

// words gives kernels direct access to the storage. Kernel invocations write
// disjoint ranges so no lock is taken.
func (b *Buffer) words() []byte { return b.data }

func (b *Buffer) Release() {
	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return
	}
	b.released = true
	size := len(b.data)
	b.data = nil
	b.mu.Unlock()
	b.dev.free(size, &b.dev.stats.BuffersReleased)
}

func (b *Buffer) Released() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.released
}
