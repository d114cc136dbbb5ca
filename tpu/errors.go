// Package tpu implements the TDMA+TIU accelerator driver: MMIO register
// shims, the DMA command-buffer header/descriptor codec, platform logic
// (command-id resync, IRQ handling, run-dmabuf control loop, PMU enable/
// disable, suspend/resume register backup), and the /dev/cva_tpu ioctl
// dispatch.
package tpu

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Kind enumerates the TpuError taxonomy.
type Kind int

const (
	KindTimeout Kind = iota
	KindInvalidDmabuf
	KindDmabufNotAligned
	KindPmuBufferNotAligned
	KindTdmaError
	KindTiuError
	KindNotInitialized
	KindBusy
	KindInterrupted
	KindInvalidState
)

// Error is the typed error every tpu component surfaces.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tpu: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("tpu: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindInvalidDmabuf:
		return "invalid dmabuf"
	case KindDmabufNotAligned:
		return "dmabuf not aligned"
	case KindPmuBufferNotAligned:
		return "pmu buffer not aligned"
	case KindTdmaError:
		return "tdma error"
	case KindTiuError:
		return "tiu error"
	case KindNotInitialized:
		return "not initialized"
	case KindBusy:
		return "busy"
	case KindInterrupted:
		return "interrupted"
	default:
		return "invalid state"
	}
}

func newErr(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Errno maps a tpu error to its Linux errno-style code.
func Errno(err error) unix.Errno {
	te, ok := err.(*Error)
	if !ok {
		return unix.EIO
	}

	switch te.Kind {
	case KindTimeout:
		return unix.ETIMEDOUT
	case KindInvalidDmabuf, KindDmabufNotAligned, KindPmuBufferNotAligned:
		return unix.EINVAL
	case KindTdmaError, KindTiuError:
		return unix.EIO
	case KindNotInitialized:
		return unix.ENODEV
	case KindBusy:
		return unix.EBUSY
	case KindInterrupted:
		return unix.EINTR
	default:
		return unix.EINVAL
	}
}

// ToUnsupported maps any internal TpuError to the generic Unsupported
// condition surfaced at the ioctl boundary.
func ToUnsupported(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("unsupported: %w", err)
}
