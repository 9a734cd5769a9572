package nifti

import (
	"sync"
	"sync/atomic"
)

// registry tracks live images by ID so weak back-references embedded in
// host arrays can be resolved without constituting an ownership edge. An
// entry disappears when its last handle is released (unless persistent),
// after which resolving its ID yields nothing and callers fall back to
// default-metadata reconstruction.
var registry = struct {
	mu   sync.Mutex
	live map[uint64]*entry
	next uint64
}{live: make(map[uint64]*entry)}

type entry struct {
	img        *Image
	refs       atomic.Int64
	persistent atomic.Bool
	discarded  atomic.Bool
}

// Handle is a reference-counted capability over an [Image]. The image
// stays alive as long as any handle references it; marking it persistent
// keeps it alive past the last handle until an explicit Discard. Handles
// may be passed between goroutines; the counting is atomic even though the
// underlying image is not safe for concurrent mutation.
type Handle struct {
	ent      *entry
	id       uint64
	released atomic.Bool
}

// NewHandle registers img and returns the first handle to it.
func NewHandle(img *Image) *Handle {
	ent := &entry{img: img}
	ent.refs.Store(1)
	registry.mu.Lock()
	registry.next++
	id := registry.next
	registry.live[id] = ent
	registry.mu.Unlock()
	return &Handle{ent: ent, id: id}
}

// Image returns the underlying image, or nil after the handle has been
// released.
func (h *Handle) Image() *Image {
	if h == nil || h.released.Load() || h.ent.discarded.Load() {
		return nil
	}
	return h.ent.img
}

// ID returns the registry token identifying the image. It is the value
// embedded in host arrays as a weak back-reference.
func (h *Handle) ID() uint64 {
	return h.id
}

// Retain returns a new handle sharing the same image, incrementing the
// reference count.
func (h *Handle) Retain() *Handle {
	if h == nil || h.released.Load() {
		return nil
	}
	h.ent.refs.Add(1)
	return &Handle{ent: h.ent, id: h.id}
}

// Release drops this handle's reference. When the count reaches zero and
// the image is not persistent, the image is unregistered and weak
// back-references to it stop resolving. Releasing a handle twice is a
// no-op.
func (h *Handle) Release() {
	if h == nil || h.released.Swap(true) {
		return
	}
	if h.ent.refs.Add(-1) > 0 {
		return
	}
	if h.ent.persistent.Load() {
		return
	}
	unregister(h.id, h.ent)
}

// SetPersistent marks the image as kept alive indefinitely (true) or
// reverts it to reference-counted lifetime (false). Reverting when no
// handles remain unregisters the image immediately.
func (h *Handle) SetPersistent(p bool) {
	if h == nil || h.released.Load() {
		return
	}
	h.ent.persistent.Store(p)
	if !p && h.ent.refs.Load() == 0 {
		unregister(h.id, h.ent)
	}
}

// Persistent reports whether the image is marked persistent.
func (h *Handle) Persistent() bool {
	if h == nil || h.released.Load() {
		return false
	}
	return h.ent.persistent.Load()
}

// Refs returns the current reference count.
func (h *Handle) Refs() int64 {
	if h == nil {
		return 0
	}
	return h.ent.refs.Load()
}

// Discard explicitly releases the image regardless of reference count or
// persistence. Outstanding handles observe a released image; weak
// back-references stop resolving.
func (h *Handle) Discard() {
	if h == nil {
		return
	}
	h.released.Store(true)
	h.ent.discarded.Store(true)
	h.ent.persistent.Store(false)
	h.ent.refs.Store(0)
	unregister(h.id, h.ent)
}

func unregister(id uint64, ent *entry) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	// Recheck under the lock: a concurrent Retain-through-resolve may have
	// revived the entry between the count reaching zero and now.
	if ent.refs.Load() > 0 || ent.persistent.Load() {
		return
	}
	if registry.live[id] == ent {
		delete(registry.live, id)
	}
}

// resolve turns a weak back-reference into a live handle, or reports that
// the image is gone. Resolving a stale or zero ID is valid and simply
// fails, which is what triggers default-metadata reconstruction.
func resolve(id uint64) (*Handle, bool) {
	if id == 0 {
		return nil, false
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	ent, ok := registry.live[id]
	if !ok {
		return nil, false
	}
	ent.refs.Add(1)
	return &Handle{ent: ent, id: id}, true
}
