package ion

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestIoctlCommandEncoding(t *testing.T) {
	// (dir<<30) | (magic<<8) | nr | (size<<16), magic 'I' = 0x49.
	tests := []struct {
		name string
		cmd  uint32
		want uint32
	}{
		{"free", ION_IOC_FREE, 1<<30 | 4<<16 | 0x49<<8 | 1},
		{"import", ION_IOC_IMPORT, 3<<30 | 8<<16 | 0x49<<8 | 5},
		{"heap_query", ION_IOC_HEAP_QUERY, 3<<30 | 24<<16 | 0x49<<8 | 8},
	}

	for _, tt := range tests {
		if tt.cmd != tt.want {
			t.Errorf("%s: got %#x, want %#x", tt.name, tt.cmd, tt.want)
		}
	}
}

func TestDispatchAllocFree(t *testing.T) {
	d := newTestDevice()

	arg := &AllocData{Len: 4096, HeapIDMask: 1 << HeapDmaCoherent}
	if err := d.Dispatch(ION_IOC_ALLOC, arg); err != nil {
		t.Fatalf("Dispatch(ALLOC): %v", err)
	}
	if arg.Fd < 3 {
		t.Fatalf("expected fd >= 3, got %d", arg.Fd)
	}

	f, err := d.fds.Get(arg.Fd)
	if err != nil {
		t.Fatalf("fd lookup: %v", err)
	}
	h := f.(*BufferFile).Handle()

	if err := d.Dispatch(ION_IOC_FREE, &HandleData{Handle: uint32(h)}); err != nil {
		t.Fatalf("Dispatch(FREE): %v", err)
	}

	err = d.Dispatch(ION_IOC_FREE, &HandleData{Handle: uint32(h)})
	if err == nil {
		t.Fatal("expected second FREE to fail")
	}
	if e := Errno(err); e != unix.ENOENT {
		t.Fatalf("expected ENOENT for missing handle, got %v", e)
	}
}

func TestDispatchUnknownCmd(t *testing.T) {
	d := newTestDevice()

	err := d.Dispatch(0xDEADBEEF, nil)
	if err == nil {
		t.Fatal("expected error for unknown ioctl")
	}
	if e := Errno(err); e != unix.ENOTSUP {
		t.Fatalf("expected ENOTSUP for unknown ioctl, got %v", e)
	}
}

func TestErrnoMapping(t *testing.T) {
	tests := []struct {
		kind Kind
		want unix.Errno
	}{
		{KindInvalidArg, unix.EINVAL},
		{KindNoMemory, unix.ENOMEM},
		{KindInvalidBuffer, unix.ENOENT},
		{KindBufferNotFound, unix.ENOENT},
		{KindBufferExists, unix.EEXIST},
		{KindInvalidHeap, unix.ENOTSUP},
		{KindNotSupported, unix.ENOTSUP},
		{KindInternal, unix.EINTR},
	}

	for _, tt := range tests {
		if got := Errno(newErr("test", tt.kind, nil)); got != tt.want {
			t.Errorf("%v: got %v, want %v", tt.kind, got, tt.want)
		}
	}
}
