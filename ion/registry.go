package ion

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry is the process-wide handle -> buffer map, guarded by a single
// mutex. A single instance is normally shared process-wide via
// GlobalRegistry.
type Registry struct {
	mu      sync.Mutex
	buffers map[Handle]*Buffer
	log     *logrus.Entry
}

// NewRegistry builds an empty registry.
func NewRegistry(log *logrus.Entry) *Registry {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Registry{
		buffers: make(map[Handle]*Buffer),
		log:     log,
	}
}

// Register inserts buf keyed on its handle. A duplicate handle is a
// BufferExists error (it should never happen given monotonic minting, but
// the registry enforces it regardless).
func (r *Registry) Register(buf *Buffer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.buffers[buf.Handle]; exists {
		return newErr("register", KindBufferExists, nil)
	}

	r.buffers[buf.Handle] = buf
	return nil
}

// Unregister removes and returns the buffer for handle.
func (r *Registry) Unregister(h Handle) (*Buffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	buf, ok := r.buffers[h]
	if !ok {
		return nil, newErr("unregister", KindBufferNotFound, nil)
	}

	delete(r.buffers, h)
	return buf, nil
}

// Get returns the buffer registered under handle h.
func (r *Registry) Get(h Handle) (*Buffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	buf, ok := r.buffers[h]
	if !ok {
		return nil, newErr("get", KindBufferNotFound, nil)
	}

	return buf, nil
}

// IncRef forwards to the buffer's atomic counter.
func (r *Registry) IncRef(h Handle) error {
	buf, err := r.Get(h)
	if err != nil {
		return err
	}
	buf.IncRef()
	return nil
}

// DecRef forwards to the buffer's atomic counter. The registry does not
// itself free on zero: the free path is the explicit FREE ioctl or buffer
// file drop.
func (r *Registry) DecRef(h Handle) error {
	buf, err := r.Get(h)
	if err != nil {
		return err
	}
	buf.DecRef()
	return nil
}

// Count returns the number of registered buffers.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffers)
}

// CleanupAll clears the registry. Used only on device teardown; emits a
// warning if entries remain.
func (r *Registry) CleanupAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n := len(r.buffers); n > 0 {
		r.log.Warnf("cleanup_all: %d buffer(s) still registered", n)
	}

	r.buffers = make(map[Handle]*Buffer)
}

// DebugHandles lists all live handles. Debug-only introspection.
func (r *Registry) DebugHandles() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	handles := make([]Handle, 0, len(r.buffers))
	for h := range r.buffers {
		handles = append(handles, h)
	}
	return handles
}

var (
	globalRegistry     *Registry
	globalRegistryOnce sync.Once
)

// GlobalRegistry returns the process-wide registry instance, initialized
// on first use.
func GlobalRegistry() *Registry {
	globalRegistryOnce.Do(func() {
		globalRegistry = NewRegistry(nil)
	})
	return globalRegistry
}
