package ion

// Ioctl command-number encoding, Linux ABI compatible. Ported from the
// Ioc/IoW/IoR/IoWR helpers in the Hailo accelerator driver's ioctl
// constants file (github.com/emergingrobotics/go-hailo, pkg/driver),
// which implement the same `(dir<<30)|(type<<8)|nr|(size<<16)` formula.
const (
	iocNrBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14
	iocDirBits  = 2

	iocNrShift   = 0
	iocTypeShift = iocNrShift + iocNrBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocNone  = 0
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, ioType, nr, size uint32) uint32 {
	return (dir << iocDirShift) | (ioType << iocTypeShift) | (nr << iocNrShift) | (size << iocSizeShift)
}

func ioW(ioType, nr, size uint32) uint32  { return ioc(iocWrite, ioType, nr, size) }
func ioR(ioType, nr, size uint32) uint32  { return ioc(iocRead, ioType, nr, size) }
func ioWR(ioType, nr, size uint32) uint32 { return ioc(iocWrite|iocRead, ioType, nr, size) }
func io(ioType, nr uint32) uint32         { return ioc(iocNone, ioType, nr, 0) }

// magic is the ion ioctl magic byte, 'I'.
const magic = uint32('I')

// Argument struct sizes, used only to build the ioctl command words —
// this port dispatches by Cmd value directly rather than decoding raw
// byte buffers, so the structs below exist for ABI documentation; no
// marshalling to or from raw byte buffers is provided.
const (
	sizeofAllocData  = 8 + 4 + 4 + 4 + 4 + 4 + 8 // len,align,heap_id_mask,flags,fd,unused,paddr(ext)
	sizeofFdData     = 4 + 4
	sizeofHandleData = 4
	sizeofHeapQuery  = 4 + 4 + 4 + 4 + 8
)

// Cmd values, Linux ABI compatible.
var (
	ION_IOC_ALLOC      = ioWR(magic, 0, sizeofAllocData)
	ION_IOC_FREE       = ioW(magic, 1, sizeofHandleData)
	ION_IOC_IMPORT     = ioWR(magic, 5, sizeofFdData)
	ION_IOC_HEAP_QUERY = ioWR(magic, 8, sizeofHeapQuery)
)

// AllocData is the ALLOC ioctl argument: {len,align,heap_id_mask,flags,fd,
// unused}, followed by paddr as an extension field after unused.
type AllocData struct {
	Len         uint64
	Align       uint32
	HeapIDMask  uint32
	Flags       uint32
	Fd          int32
	Unused      uint32
	Paddr       uint64 // out: bus address of the allocation (extension)
}

// FdData is the IMPORT ioctl argument.
type FdData struct {
	Fd     int32
	Handle uint32
}

// HandleData is the FREE ioctl argument.
type HandleData struct {
	Handle uint32
}

const MaxHeapName = 32

// HeapQuery is the HEAP_QUERY ioctl argument.
type HeapQuery struct {
	Cnt       uint32
	Reserved0 uint32
	Reserved1 uint32
	Reserved2 uint32
	Heaps     uint64 // pointer to []HeapData, as a raw address
}

// HeapData describes one heap entry written back by HEAP_QUERY.
type HeapData struct {
	Name      [MaxHeapName]byte
	Type      uint32
	HeapID    uint32
	Reserved0 uint32
	Reserved1 uint32
	Reserved2 uint32
}

func heapDataName(s string) (name [MaxHeapName]byte) {
	copy(name[:], s)
	return
}
