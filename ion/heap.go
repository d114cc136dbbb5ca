package ion

import (
	"github.com/cvitek/sg2002/dma"
	"github.com/sirupsen/logrus"
)

// HeapManager is a thin wrapper over the coherent allocator: it maps a
// heap-type request onto a backing allocation and wraps the result in a
// freshly-handled Buffer.
type HeapManager struct {
	region *dma.Region
	log    *logrus.Entry
}

// NewHeapManager builds a heap manager over the given coherent region.
func NewHeapManager(region *dma.Region, log *logrus.Entry) *HeapManager {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &HeapManager{region: region, log: log}
}

// AllocBuffer allocates size bytes, aligned to align (0 meaning the
// allocator's default), from heapType, and returns a new unregistered
// Buffer with ref_count=1, mapped=false.
func (h *HeapManager) AllocBuffer(size int, align int, heapType HeapType, flags Flags) (*Buffer, error) {
	if size == 0 {
		return nil, newErr("alloc_buffer", KindInvalidArg, nil)
	}

	if heapType == HeapCarveout {
		h.log.Warn("carveout heap not implemented, using dma heap instead")
	}

	info, err := h.region.AllocCoherent(size, align)
	if err != nil {
		return nil, newErr("alloc_buffer", KindNoMemory, err)
	}

	return newBuffer(info, size, heapType, flags), nil
}

// FreeBuffer releases the backing allocation. If the buffer is still
// referenced elsewhere it logs and proceeds anyway: this is the sole path
// that releases backing memory.
func (h *HeapManager) FreeBuffer(buf *Buffer) error {
	if buf == nil {
		return newErr("free_buffer", KindInvalidBuffer, nil)
	}

	if rc := buf.RefCount(); rc > 1 {
		h.log.WithField("handle", buf.Handle).Warnf("freeing buffer with ref_count=%d", rc)
	}

	h.region.FreeCoherent(buf.DMAInfo)

	return nil
}
