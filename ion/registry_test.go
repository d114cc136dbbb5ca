package ion

import (
	"testing"

	"github.com/cvitek/sg2002/dma"
)

func newTestBuffer(t *testing.T, region *dma.Region, size int) *Buffer {
	t.Helper()

	hm := NewHeapManager(region, nil)
	buf, err := hm.AllocBuffer(size, 0, HeapDmaCoherent, 0)
	if err != nil {
		t.Fatalf("AllocBuffer: %v", err)
	}
	return buf
}

func TestRegistryRegisterUnregister(t *testing.T) {
	region := dma.NewRegion(1 << 20)
	reg := NewRegistry(nil)

	buf := newTestBuffer(t, region, 4096)

	if err := reg.Register(buf); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := reg.Register(buf); err == nil {
		t.Fatal("expected BufferExists on duplicate register")
	} else if ie := err.(*Error); ie.Kind != KindBufferExists {
		t.Fatalf("expected KindBufferExists, got %v", ie.Kind)
	}

	if got, err := reg.Get(buf.Handle); err != nil || got != buf {
		t.Fatalf("Get: got %v, %v", got, err)
	}

	if reg.Count() != 1 {
		t.Fatalf("expected count 1, got %d", reg.Count())
	}

	if _, err := reg.Unregister(buf.Handle); err != nil {
		t.Fatalf("Unregister: %v", err)
	}

	if reg.Count() != 0 {
		t.Fatalf("expected count 0 after unregister, got %d", reg.Count())
	}

	if _, err := reg.Unregister(buf.Handle); err == nil {
		t.Fatal("expected BufferNotFound on second unregister")
	}
}

func TestHandlesMonotonicAndUnique(t *testing.T) {
	seen := map[Handle]bool{}
	var last Handle

	for i := 0; i < 100; i++ {
		h := NewHandle()
		if h <= last {
			t.Fatalf("handle %d not strictly increasing after %d", h, last)
		}
		if seen[h] {
			t.Fatalf("duplicate handle %d", h)
		}
		seen[h] = true
		last = h
	}
}

func TestRefCountAndMapped(t *testing.T) {
	region := dma.NewRegion(1 << 20)
	buf := newTestBuffer(t, region, 4096)

	if buf.RefCount() != 1 {
		t.Fatalf("expected initial ref_count 1, got %d", buf.RefCount())
	}

	buf.IncRef()
	if buf.RefCount() != 2 {
		t.Fatalf("expected ref_count 2, got %d", buf.RefCount())
	}

	buf.DecRef()
	if buf.RefCount() != 1 {
		t.Fatalf("expected ref_count 1, got %d", buf.RefCount())
	}

	if buf.Mapped() {
		t.Fatal("expected mapped=false initially")
	}

	buf.SetMapped()
	if !buf.Mapped() {
		t.Fatal("expected mapped=true after SetMapped")
	}
}

func TestCleanupAllClears(t *testing.T) {
	region := dma.NewRegion(1 << 20)
	reg := NewRegistry(nil)

	buf := newTestBuffer(t, region, 4096)
	reg.Register(buf)

	reg.CleanupAll()

	if reg.Count() != 0 {
		t.Fatalf("expected empty registry after cleanup, got %d", reg.Count())
	}
}
