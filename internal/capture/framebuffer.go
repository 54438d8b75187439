package capture

import "sync"

// FrameBuffer is a single-slot store holding the most recent encoded frame.
// Writers always overwrite; readers observe the latest completed write, or
// nil before the first one. There is no queue and no history.
type FrameBuffer struct {
	mu    sync.Mutex
	frame []byte
}

// Set replaces the stored frame. The buffer takes ownership of the slice;
// callers must not mutate it after handing it over.
func (b *FrameBuffer) Set(frame []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frame = frame
}

// Get returns the most recently stored frame, or nil if nothing has been
// captured yet. The returned slice is never mutated by the buffer.
func (b *FrameBuffer) Get() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frame
}

// Clear drops the stored frame.
func (b *FrameBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frame = nil
}
