package tpu

import (
	"github.com/sirupsen/logrus"
)

// Ioctl command-number encoding, same _IOW/_IOR/_IOWR formula as ion's
// (see ion/ioctl.go and the Hailo driver it is grounded on). The actual
// CVITPU_* vendor numbers are synthesized from the same encoding rule so
// the dispatch table below is internally bit-exact.
const tpuMagic = uint32('T')

const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, nr, size uint32) uint32 {
	return (dir << 30) | (tpuMagic << 8) | nr | (size << 16)
}

var (
	CVITPU_IOC_SUBMIT_DMABUF   = ioc(iocWrite|iocRead, 0, 8)
	CVITPU_IOC_WAIT_DMABUF     = ioc(iocWrite|iocRead, 1, 12)
	CVITPU_IOC_DMABUF_FLUSH    = ioc(iocWrite, 2, 8)
	CVITPU_IOC_DMABUF_INVLD    = ioc(iocWrite, 3, 8)
	CVITPU_IOC_DMABUF_FLUSH_FD = ioc(iocWrite, 4, 4)
	CVITPU_IOC_DMABUF_INVLD_FD = ioc(iocWrite, 5, 4)
	CVITPU_IOC_PIO_MODE        = ioc(iocNone, 6, 0)
	CVITPU_IOC_LOAD_TEE        = ioc(iocNone, 7, 0)
	CVITPU_IOC_SUBMIT_TEE      = ioc(iocNone, 8, 0)
	CVITPU_IOC_UNLOAD_TEE      = ioc(iocNone, 9, 0)
)

// SubmitDmabufArg is the SUBMIT_DMABUF ioctl argument.
type SubmitDmabufArg struct {
	Fd    int32
	SeqNo uint64
}

// WaitDmabufArg is the WAIT_DMABUF ioctl argument.
type WaitDmabufArg struct {
	SeqNo uint64
	Ret   int32
}

// FenceArg is the DMABUF_FLUSH/DMABUF_INVLD ioctl argument.
type FenceArg struct {
	Paddr uintptr
	Size  int
}

// ioFence executes a full I/O fence. On real RISC-V hardware this is
// `fence iorw,iorw`; there is no portable fence instruction reachable
// from hosted Go, so this is a logged no-op standing in for it.
func ioFence(log *logrus.Entry, op string, paddr uintptr, size int) {
	log.WithFields(logrus.Fields{"op": op, "paddr": paddr, "size": size}).Debug("io fence")
}

// Dispatch implements the TPU ioctl dispatch table. Any internal
// TpuError returned by Device is mapped to Unsupported at this boundary.
func (d *Device) Dispatch(cmd uint32, arg interface{}) (ret int32, err error) {
	switch cmd {
	case CVITPU_IOC_SUBMIT_DMABUF:
		a := arg.(*SubmitDmabufArg)
		if e := d.SubmitDmabuf(a.Fd, a.SeqNo); e != nil {
			return 0, ToUnsupported(e)
		}
		return 0, nil

	case CVITPU_IOC_WAIT_DMABUF:
		a := arg.(*WaitDmabufArg)
		r, e := d.WaitDmabuf(a.SeqNo)
		a.Ret = r
		if e != nil {
			return 0, ToUnsupported(e)
		}
		return 0, nil

	case CVITPU_IOC_DMABUF_FLUSH:
		a := arg.(*FenceArg)
		ioFence(d.log, "flush", a.Paddr, a.Size)
		return 0, nil

	case CVITPU_IOC_DMABUF_INVLD:
		a := arg.(*FenceArg)
		ioFence(d.log, "invalidate", a.Paddr, a.Size)
		return 0, nil

	case CVITPU_IOC_DMABUF_FLUSH_FD:
		fd := arg.(int32)
		vaddr, size, e := d.resolveAsHandle(fd)
		if e != nil {
			return 0, ToUnsupported(e)
		}
		ioFence(d.log, "flush_fd", vaddr, size)
		return 0, nil

	case CVITPU_IOC_DMABUF_INVLD_FD:
		fd := arg.(int32)
		vaddr, size, e := d.resolveAsHandle(fd)
		if e != nil {
			return 0, ToUnsupported(e)
		}
		ioFence(d.log, "invalidate_fd", vaddr, size)
		return 0, nil

	case CVITPU_IOC_PIO_MODE:
		d.log.Warn("pio mode requested, not supported")
		return 0, nil

	case CVITPU_IOC_LOAD_TEE, CVITPU_IOC_SUBMIT_TEE, CVITPU_IOC_UNLOAD_TEE:
		return 0, ToUnsupported(newErr("tee", KindNotInitialized, nil))

	default:
		d.log.WithField("cmd", cmd).Warn("unknown tpu ioctl")
		return 0, ToUnsupported(newErr("dispatch", KindNotInitialized, nil))
	}
}
