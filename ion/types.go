// Package ion implements an Android-style DMA-coherent shared-memory
// allocator: a heap manager over a coherent backing allocator, a
// handle-keyed buffer registry, and a character-device ioctl dispatch
// compatible with the Linux ion ABI.
package ion

import (
	"sync/atomic"

	"github.com/cvitek/sg2002/dma"
)

// HeapType is the logical pool a buffer is drawn from. In this port all
// types map to the same coherent backing allocator.
type HeapType uint32

const (
	HeapSystem      HeapType = 0
	HeapDmaCoherent HeapType = 1
	HeapCarveout    HeapType = 2
)

func (t HeapType) String() string {
	switch t {
	case HeapSystem:
		return "system"
	case HeapDmaCoherent:
		return "dma_coherent"
	case HeapCarveout:
		return "carveout"
	default:
		return "unknown"
	}
}

// Flags is a bitfield stored on a buffer and not acted on; Mmap does not
// consult it.
type Flags uint32

const (
	FlagCached          Flags = 1 << 0
	FlagCachedNeedsSync Flags = 1 << 1
)

// Handle is the process-wide identity for a buffer: a 32-bit value minted
// from a monotonically increasing counter starting at 1.
type Handle uint32

var handleCounter uint32

// NewHandle mints a fresh handle. Wraparound is not guarded against: it
// is considered fatal and not reached in practice.
func NewHandle() Handle {
	return Handle(atomic.AddUint32(&handleCounter, 1))
}

// Buffer is the kernel record for one allocation.
type Buffer struct {
	Handle   Handle
	DMAInfo  dma.Info
	Size     int
	HeapType HeapType
	Flags    Flags

	refCount int32
	mapped   int32
}

func newBuffer(info dma.Info, size int, heapType HeapType, flags Flags) *Buffer {
	return &Buffer{
		Handle:   NewHandle(),
		DMAInfo:  info,
		Size:     size,
		HeapType: heapType,
		Flags:    flags,
		refCount: 1,
	}
}

// RefCount returns the current reference count.
func (b *Buffer) RefCount() int32 {
	return atomic.LoadInt32(&b.refCount)
}

// IncRef atomically increments the reference count.
func (b *Buffer) IncRef() int32 {
	return atomic.AddInt32(&b.refCount, 1)
}

// DecRef atomically decrements the reference count.
func (b *Buffer) DecRef() int32 {
	return atomic.AddInt32(&b.refCount, -1)
}

// Mapped reports whether mmap has ever resolved this buffer.
func (b *Buffer) Mapped() bool {
	return atomic.LoadInt32(&b.mapped) != 0
}

// SetMapped latches the mapped flag. It is single-shot: once true, it is
// never reset.
func (b *Buffer) SetMapped() {
	atomic.StoreInt32(&b.mapped, 1)
}

// PhysAddrRange is the physical range a kernel mmap layer honors.
type PhysAddrRange struct {
	Start uintptr
	Len   int
}
