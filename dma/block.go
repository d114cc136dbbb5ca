package dma

import (
	"unsafe"
)

// block is one contiguous run of region memory, tracked by address so the
// Go runtime never holds a pointer into the arena.
type block struct {
	addr uint
	size uint
}

func (b *block) read(off uint, buf []byte) {
	var ptr unsafe.Pointer

	ptr = unsafe.Add(ptr, b.addr+off)
	mem := unsafe.Slice((*byte)(ptr), len(buf))

	copy(buf, mem)
}

func (b *block) write(off uint, buf []byte) {
	var ptr unsafe.Pointer

	ptr = unsafe.Add(ptr, b.addr+off)
	mem := unsafe.Slice((*byte)(ptr), len(buf))

	copy(mem, buf)
}
