package ion

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Kind enumerates the ion error taxonomy.
type Kind int

const (
	KindInvalidArg Kind = iota
	KindNoMemory
	KindInvalidBuffer
	KindBufferNotFound
	KindBufferExists
	KindInvalidHeap
	KindNotSupported
	KindInternal
)

// Error is the typed error surfaced by every ion component. The ioctl
// dispatch boundary maps it down to a generic errno via Errno.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ion: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("ion: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func (k Kind) String() string {
	switch k {
	case KindInvalidArg:
		return "invalid argument"
	case KindNoMemory:
		return "no memory"
	case KindInvalidBuffer:
		return "invalid buffer"
	case KindBufferNotFound:
		return "buffer not found"
	case KindBufferExists:
		return "buffer exists"
	case KindInvalidHeap:
		return "invalid heap"
	case KindNotSupported:
		return "not supported"
	default:
		return "internal error"
	}
}

func newErr(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Errno maps an ion error to its generic errno-equivalent:
//
//	InvalidArg -> InvalidInput, NoMemory -> NoMemory,
//	InvalidBuffer|BufferNotFound -> NotFound, BufferExists -> AlreadyExists,
//	InvalidHeap|NotSupported -> Unsupported, Internal -> Interrupted.
func Errno(err error) unix.Errno {
	ie, ok := err.(*Error)
	if !ok {
		return unix.EIO
	}

	switch ie.Kind {
	case KindInvalidArg:
		return unix.EINVAL
	case KindNoMemory:
		return unix.ENOMEM
	case KindInvalidBuffer, KindBufferNotFound:
		return unix.ENOENT
	case KindBufferExists:
		return unix.EEXIST
	case KindInvalidHeap, KindNotSupported:
		return unix.ENOTSUP
	default:
		return unix.EINTR
	}
}
