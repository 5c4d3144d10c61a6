package hub

import "sync"

// maxAudioChunks bounds AudioState's inbound FIFO (spec.md §4.2 "Bounding").
const maxAudioChunks = 500

// PlaybackSignal is the narrow surface AudioState borrows from the Audio
// Playback Engine so SignalClear can silence output synchronously from a
// worker thread without the hub owning (or even importing) the engine.
// Ownership of the underlying force-mute atomic stays with the engine;
// the hub only ever calls through this interface (spec.md §9 "optional
// weak registration").
type PlaybackSignal interface {
	SignalClear()
}

// AudioState is the inbound-audio sub-state: a bounded FIFO of chunks plus
// an optional borrowed reference to the playback engine so worker threads
// can silence output instantly (spec.md §3.1).
type AudioState struct {
	dirty Dirty[[]AudioChunk]
	ring  *Ring[AudioChunk]

	mu       sync.Mutex
	playback PlaybackSignal
}

// NewAudioState creates an empty AudioState with the spec-mandated FIFO
// bound.
func NewAudioState() *AudioState {
	return &AudioState{ring: NewRing[AudioChunk](maxAudioChunks)}
}

// RegisterForceMute borrows the playback engine's force-mute control so
// SignalClear can act on it. Safe to call once at wiring time; a nil signal
// clears the registration.
func (a *AudioState) RegisterForceMute(p PlaybackSignal) {
	a.mu.Lock()
	a.playback = p
	a.mu.Unlock()
}

// Push enqueues a chunk, marking the FIFO dirty. If the FIFO is full the
// oldest chunk is dropped (try_send semantics, spec.md §4.2); the caller is
// expected to log the drop at WARN via a metrics/log hook of its own.
func (a *AudioState) Push(chunk AudioChunk) (dropped bool) {
	dropped = a.ring.Push(chunk)
	a.dirty.Push(a.ring.Snapshot())
	return dropped
}

// ReadIfDirty drains the FIFO's dirty flag, returning a snapshot exactly
// once per mutation (spec.md I5).
func (a *AudioState) ReadIfDirty() ([]AudioChunk, bool) {
	return a.dirty.ReadIfDirty()
}

// SignalClear sets the borrowed force-mute flag (if registered) so the
// output callback silences on its very next iteration, per spec.md §4.6
// "Smart reset on human interrupt". This does not itself touch the FIFO —
// callers that also need to drop buffered chunks do so separately.
func (a *AudioState) SignalClear() {
	a.mu.Lock()
	p := a.playback
	a.mu.Unlock()
	if p != nil {
		p.SignalClear()
	}
}
