package scene

import "sync/atomic"

// A Handle publishes the current scene to concurrent readers. Queries Load
// a snapshot once and keep using it until they complete; a rebuild Stores
// a new scene without waiting for them. Retired scenes are reclaimed by the
// garbage collector once the last query referencing them returns.
type Handle struct {
	current atomic.Pointer[Scene]
}

// Create a handle that publishes sc. A nil scene is allowed.
func NewHandle(sc *Scene) *Handle {
	h := &Handle{}
	h.current.Store(sc)
	return h
}

// Get the current scene snapshot.
func (h *Handle) Load() *Scene {
	return h.current.Load()
}

// Publish a new scene.
func (h *Handle) Store(sc *Scene) {
	h.current.Store(sc)
}

// Publish a new scene and return the one it replaced.
func (h *Handle) Swap(sc *Scene) *Scene {
	return h.current.Swap(sc)
}
