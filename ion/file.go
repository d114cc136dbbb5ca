package ion

import (
	"github.com/sirupsen/logrus"
)

// Stat is the subset of file metadata a BufferFile answers.
type Stat struct {
	Size int
}

// BufferFile is a file object wrapping a Buffer: stat, mmap-target
// physical range, and drop-time free.
type BufferFile struct {
	handle Handle
	size   int
	phys   uintptr

	dev *Device
	log *logrus.Entry
}

func newBufferFile(dev *Device, buf *Buffer) *BufferFile {
	return &BufferFile{
		handle: buf.Handle,
		size:   buf.Size,
		phys:   buf.DMAInfo.BusAddr,
		dev:    dev,
		log:    dev.log,
	}
}

// Path returns the constant path every ion buffer file reports.
func (f *BufferFile) Path() string {
	return "/dev/ion_buffer"
}

// Read always fails: an ion buffer file carries no stream content.
func (f *BufferFile) Read([]byte) (int, error) {
	return 0, newErr("read", KindInvalidArg, nil)
}

// Write always fails, for the same reason as Read.
func (f *BufferFile) Write([]byte) (int, error) {
	return 0, newErr("write", KindInvalidArg, nil)
}

// Stat returns the buffer's size.
func (f *BufferFile) Stat() Stat {
	return Stat{Size: f.size}
}

// Poll always reports ready for both read and write; registration is a
// no-op since there is nothing to wait on.
func (f *BufferFile) Poll() (readable, writable bool) {
	return true, true
}

// PhysRange returns the physical range the kernel mmap layer maps.
func (f *BufferFile) PhysRange() PhysAddrRange {
	return PhysAddrRange{Start: f.phys, Len: f.size}
}

// Handle returns the ion handle this file wraps.
func (f *BufferFile) Handle() Handle {
	return f.handle
}

// Close runs the drop-time free: issue FREE on the owning device. Errors
// are logged only, since a drop/close path cannot return one to its caller.
func (f *BufferFile) Close() {
	if err := f.dev.Free(f.handle); err != nil {
		f.log.WithError(err).WithField("handle", f.handle).Warn("ion_buffer drop: free failed")
	}
}
