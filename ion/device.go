package ion

import (
	"github.com/cvitek/sg2002/devfs"
	"github.com/cvitek/sg2002/dma"
	"github.com/sirupsen/logrus"
)

// NonCacheable is the mmap node flag a VFS layer must honor unless a
// buffer's flags request cached mapping (which this port does not act on).
const NonCacheable = true

// Device is the /dev/ion character device: ioctl dispatch plus the
// handle-keyed registry and fd table backing it.
type Device struct {
	heap     *HeapManager
	registry *Registry
	fds      *devfs.FDTable
	log      *logrus.Entry
}

// NewDevice builds an ion device over the given coherent region and
// buffer registry; the fd table is private to this device instance. Pass
// nil for registry to share the process-wide GlobalRegistry, as the real
// /dev/ion singleton does.
func NewDevice(region *dma.Region, registry *Registry, log *logrus.Entry) *Device {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	if registry == nil {
		registry = GlobalRegistry()
	}

	return &Device{
		heap:     NewHeapManager(region, log),
		registry: registry,
		fds:      devfs.NewFDTable(),
		log:      log,
	}
}

func selectHeapType(mask uint32) (HeapType, error) {
	switch {
	case mask&(1<<HeapDmaCoherent) != 0:
		return HeapDmaCoherent, nil
	case mask&(1<<HeapCarveout) != 0:
		return HeapCarveout, nil
	case mask&(1<<HeapSystem) != 0:
		return HeapSystem, nil
	default:
		return 0, newErr("alloc", KindInvalidArg, nil)
	}
}

// Alloc implements ION_IOC_ALLOC: choose a heap type from heap_id_mask
// (DmaCoherent beats Carveout beats System), allocate, register, wrap in
// a buffer file, add to the fd table, and write back fd/paddr.
func (d *Device) Alloc(arg *AllocData) error {
	heapType, err := selectHeapType(arg.HeapIDMask)
	if err != nil {
		return err
	}

	buf, err := d.heap.AllocBuffer(int(arg.Len), int(arg.Align), heapType, Flags(arg.Flags))
	if err != nil {
		return err
	}

	if err := d.registry.Register(buf); err != nil {
		d.heap.FreeBuffer(buf)
		return err
	}

	f := newBufferFile(d, buf)
	fd := d.fds.Add(f)

	arg.Fd = fd
	arg.Paddr = uint64(buf.DMAInfo.BusAddr)

	return nil
}

// Free implements ION_IOC_FREE: unregister the handle and release its
// backing allocation.
func (d *Device) Free(h Handle) error {
	buf, err := d.registry.Unregister(h)
	if err != nil {
		return err
	}

	return d.heap.FreeBuffer(buf)
}

// Import implements ION_IOC_IMPORT. This is a compatibility stub, not a
// real import: the handle written back is the fd's numeric value, with
// no validation. Kept for ABI identity rather than rejected with
// Unsupported — see DESIGN.md.
func (d *Device) Import(arg *FdData) error {
	arg.Handle = uint32(arg.Fd)
	return nil
}

// HeapQuery implements ION_IOC_HEAP_QUERY: writes up to min(cnt,3) heap
// descriptors into the caller-provided entries slice and sets cnt=3.
func (d *Device) HeapQuery(arg *HeapQuery, entries []HeapData) error {
	all := []HeapData{
		{Name: heapDataName("system"), Type: uint32(HeapSystem), HeapID: 0},
		{Name: heapDataName("dma_coherent"), Type: uint32(HeapDmaCoherent), HeapID: 1},
		{Name: heapDataName("carveout"), Type: uint32(HeapCarveout), HeapID: 2},
	}

	if arg.Heaps != 0 {
		n := int(arg.Cnt)
		if n > len(all) {
			n = len(all)
		}
		if n > len(entries) {
			n = len(entries)
		}
		copy(entries[:n], all[:n])
	}

	arg.Cnt = uint32(len(all))

	return nil
}

// Mmap interprets offset as an IonHandle, looks up the buffer, and
// returns a physical range covering min(length, buffer.size) (or the
// whole buffer if length==0). It marks the buffer mapped. A missing
// handle fails the mapping.
func (d *Device) Mmap(offset uint64, length int) (PhysAddrRange, error) {
	h := Handle(uint32(offset))

	buf, err := d.registry.Get(h)
	if err != nil {
		return PhysAddrRange{}, err
	}

	n := length
	if n == 0 || n > buf.Size {
		n = buf.Size
	}

	buf.SetMapped()

	return PhysAddrRange{Start: buf.DMAInfo.BusAddr, Len: n}, nil
}

// FDs exposes the fd table so the tpu device can resolve an fd minted by
// Alloc back to its buffer file.
func (d *Device) FDs() *devfs.FDTable {
	return d.fds
}

// Registry exposes the buffer registry backing this device, so the tpu
// device can resolve buffers by handle.
func (d *Device) Registry() *Registry {
	return d.registry
}

// HeapQueryBuf pairs a HeapQuery argument with the entries slice its
// Heaps pointer designates, resolved by the caller's copy-in layer.
type HeapQueryBuf struct {
	Query   *HeapQuery
	Entries []HeapData
}

// Dispatch implements the /dev/ion ioctl dispatch table. Handlers
// surface typed errors; callers needing the OS-level errno pass the
// returned error through Errno.
func (d *Device) Dispatch(cmd uint32, arg interface{}) error {
	switch cmd {
	case ION_IOC_ALLOC:
		return d.Alloc(arg.(*AllocData))

	case ION_IOC_FREE:
		return d.Free(Handle(arg.(*HandleData).Handle))

	case ION_IOC_IMPORT:
		return d.Import(arg.(*FdData))

	case ION_IOC_HEAP_QUERY:
		b := arg.(*HeapQueryBuf)
		return d.HeapQuery(b.Query, b.Entries)

	default:
		d.log.WithField("cmd", cmd).Warn("unknown ion ioctl")
		return newErr("dispatch", KindNotSupported, nil)
	}
}

// Teardown releases the device's registry entries.
func (d *Device) Teardown() {
	d.registry.CleanupAll()
}
