// Package devfs is a thin stand-in for the file-descriptor table and
// generic VFS device trait. It is intentionally minimal — just enough
// surface for ion and tpu to add a file object, receive an integer fd,
// and resolve an fd back to a file — since the real VFS and process
// address space live elsewhere in the kernel.
package devfs

import (
	"errors"
	"sync"
)

// ErrBadFd is returned when an fd does not resolve to a registered file.
var ErrBadFd = errors.New("devfs: bad file descriptor")

// File is the generic device-file trait every registered object
// implements. Only the path is needed here; richer surfaces (read,
// write, stat, poll) live on the concrete file types and are reached by
// type assertion, the same way Remove reaches an optional Close.
type File interface {
	Path() string
}

// FDTable hands out small integer file descriptors, starting above the
// conventional stdin/stdout/stderr range (fd >= 3).
type FDTable struct {
	mu    sync.Mutex
	next  int32
	files map[int32]File
}

// NewFDTable returns an empty table.
func NewFDTable() *FDTable {
	return &FDTable{
		next:  3,
		files: make(map[int32]File),
	}
}

// Add registers f and returns a freshly minted, non-cloexec fd.
func (t *FDTable) Add(f File) int32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	fd := t.next
	t.next++
	t.files[fd] = f

	return fd
}

// Get resolves fd to its file.
func (t *FDTable) Get(fd int32) (File, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, ok := t.files[fd]
	if !ok {
		return nil, ErrBadFd
	}

	return f, nil
}

// closer is implemented by files that need to run drop-time cleanup (ion
// buffer files issue their FREE here); plain files don't need it.
type closer interface {
	Close()
}

// Remove drops fd from the table, as if the file had been closed, and
// runs the file's Close if it implements one.
func (t *FDTable) Remove(fd int32) {
	t.mu.Lock()
	f, ok := t.files[fd]
	delete(t.files, fd)
	t.mu.Unlock()

	if !ok {
		return
	}

	if c, ok := f.(closer); ok {
		c.Close()
	}
}
