package tpu

import (
	"testing"
)

func TestTpuIoctlCommandEncoding(t *testing.T) {
	// (dir<<30) | (magic<<8) | nr | (size<<16), magic 'T' = 0x54.
	if want := uint32(3<<30 | 8<<16 | 0x54<<8 | 0); CVITPU_IOC_SUBMIT_DMABUF != want {
		t.Errorf("submit: got %#x, want %#x", CVITPU_IOC_SUBMIT_DMABUF, want)
	}
	if want := uint32(0x54<<8 | 6); CVITPU_IOC_PIO_MODE != want {
		t.Errorf("pio: got %#x, want %#x", CVITPU_IOC_PIO_MODE, want)
	}
}

func TestDispatchSubmitWait(t *testing.T) {
	r := newTestRig(t)
	fd := r.allocValidHeader(t)

	submit := &SubmitDmabufArg{Fd: fd, SeqNo: 3}
	if _, err := r.tpu.Dispatch(CVITPU_IOC_SUBMIT_DMABUF, submit); err != nil {
		t.Fatalf("Dispatch(SUBMIT_DMABUF): %v", err)
	}

	wait := &WaitDmabufArg{SeqNo: 3}
	if _, err := r.tpu.Dispatch(CVITPU_IOC_WAIT_DMABUF, wait); err != nil {
		t.Fatalf("Dispatch(WAIT_DMABUF): %v", err)
	}
	if wait.Ret != 0 {
		t.Fatalf("expected ret=0, got %d", wait.Ret)
	}
}

func TestDispatchWaitMissSetsRet(t *testing.T) {
	r := newTestRig(t)

	wait := &WaitDmabufArg{SeqNo: 99}
	if _, err := r.tpu.Dispatch(CVITPU_IOC_WAIT_DMABUF, wait); err == nil {
		t.Fatal("expected error waiting on an unknown seq")
	}
	if wait.Ret != -1 {
		t.Fatalf("expected ret=-1 on miss, got %d", wait.Ret)
	}
}

func TestDispatchFenceOps(t *testing.T) {
	r := newTestRig(t)

	if _, err := r.tpu.Dispatch(CVITPU_IOC_DMABUF_FLUSH, &FenceArg{Paddr: 0x1000, Size: 64}); err != nil {
		t.Fatalf("Dispatch(DMABUF_FLUSH): %v", err)
	}
	if _, err := r.tpu.Dispatch(CVITPU_IOC_DMABUF_INVLD, &FenceArg{Paddr: 0x1000, Size: 64}); err != nil {
		t.Fatalf("Dispatch(DMABUF_INVLD): %v", err)
	}
}

func TestDispatchPioModeWarnsAndSucceeds(t *testing.T) {
	r := newTestRig(t)

	if _, err := r.tpu.Dispatch(CVITPU_IOC_PIO_MODE, nil); err != nil {
		t.Fatalf("Dispatch(PIO_MODE): %v", err)
	}
}

func TestDispatchTeeRejected(t *testing.T) {
	r := newTestRig(t)

	for _, cmd := range []uint32{CVITPU_IOC_LOAD_TEE, CVITPU_IOC_SUBMIT_TEE, CVITPU_IOC_UNLOAD_TEE} {
		if _, err := r.tpu.Dispatch(cmd, nil); err == nil {
			t.Fatalf("expected tee ioctl %#x to be rejected", cmd)
		}
	}
}

func TestDispatchUnknownCmdRejected(t *testing.T) {
	r := newTestRig(t)

	if _, err := r.tpu.Dispatch(0xDEADBEEF, nil); err == nil {
		t.Fatal("expected unknown ioctl to be rejected")
	}
}
