// Package playback implements the Audio Playback Engine: a 30-second
// circular buffer feeding a real-time output callback, with per-segment
// participant/question tagging, instant mute, and smart reset (spec.md
// §4.1).
package playback

import "sync"

// Segment records the participant/question tag for a contiguous run of
// samples in the circular buffer's FIFO (spec.md §3.2). An empty
// ParticipantID or QuestionID means "none" — the spec's Option<id>.
type Segment struct {
	ParticipantID    string
	QuestionID       string
	SamplesRemaining int
}

// CircularBuffer holds interleaved mono f32 samples with a segment FIFO
// tracking which (participant, question) each run of samples belongs to
// (spec.md §3.2).
//
// The buffer's mutex is only ever held for the duration of a copy — Read is
// called from the real-time output callback and must stay inside its ~2ms
// budget (spec.md §4.1, §5).
type CircularBuffer struct {
	mu sync.Mutex

	data     []float32
	capacity int
	readPos  int
	writePos int
	available int

	segments []Segment

	// currentParticipant is updated whenever a segment is popped off the
	// head, and read by the UI through CurrentParticipant under the buffer
	// lock (spec.md §3.2 "current participant").
	currentParticipant   string
	hasCurrentParticipant bool
}

// NewCircularBuffer creates a buffer sized for durationSeconds at
// sampleRate, mono.
func NewCircularBuffer(sampleRate int, durationSeconds int) *CircularBuffer {
	capacity := sampleRate * durationSeconds
	if capacity <= 0 {
		capacity = 1
	}
	return &CircularBuffer{
		data:     make([]float32, capacity),
		capacity: capacity,
	}
}

// Write appends samples tagged with participantID/questionID, overwriting
// the oldest samples (and proportionally draining the oldest segments) if
// the buffer is full (spec.md §4.1 "write", I1).
func (b *CircularBuffer) Write(samples []float32, participantID, questionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeLocked(samples, participantID, questionID)
}

func (b *CircularBuffer) writeLocked(samples []float32, participantID, questionID string) {
	n := len(samples)
	if n == 0 {
		return
	}

	// A single write larger than capacity only the tail fits; the effect is
	// identical to writing the full slice and then overwriting everything
	// but the tail, so just keep the last `capacity` samples up front.
	if n > b.capacity {
		samples = samples[n-b.capacity:]
		n = b.capacity
	}

	overflow := b.available + n - b.capacity
	if overflow > 0 {
		b.discardFromHeadLocked(overflow)
	}

	for i := 0; i < n; i++ {
		b.data[b.writePos] = samples[i]
		b.writePos = (b.writePos + 1) % b.capacity
	}

	if overflow > 0 {
		b.available = b.capacity
	} else {
		b.available += n
	}

	b.appendOrExtendSegmentLocked(participantID, questionID, n)
}

// appendOrExtendSegmentLocked implements the §4.1 "Segment tracking"
// contract: a write whose (participant, question) matches the current tail
// segment extends it; otherwise a new segment is pushed.
func (b *CircularBuffer) appendOrExtendSegmentLocked(participantID, questionID string, n int) {
	if len(b.segments) > 0 {
		tail := &b.segments[len(b.segments)-1]
		if tail.ParticipantID == participantID && tail.QuestionID == questionID {
			tail.SamplesRemaining += n
			return
		}
	}
	b.segments = append(b.segments, Segment{
		ParticipantID:    participantID,
		QuestionID:       questionID,
		SamplesRemaining: n,
	})
}

// discardFromHeadLocked advances readPos past n samples, proportionally
// draining (and popping) segments off the head of the FIFO as it goes
// (spec.md §4.1 "write overwrites..." / I1).
func (b *CircularBuffer) discardFromHeadLocked(n int) {
	b.readPos = (b.readPos + n) % b.capacity
	remaining := n
	for remaining > 0 && len(b.segments) > 0 {
		seg := &b.segments[0]
		if seg.SamplesRemaining <= remaining {
			remaining -= seg.SamplesRemaining
			b.popHeadSegmentLocked()
		} else {
			seg.SamplesRemaining -= remaining
			remaining = 0
		}
	}
	b.available -= n
	if b.available < 0 {
		b.available = 0
	}
}

// popHeadSegmentLocked removes the head segment and updates the observable
// current-participant (spec.md §3.2 "When a segment is popped...").
func (b *CircularBuffer) popHeadSegmentLocked() {
	if len(b.segments) == 0 {
		return
	}
	popped := b.segments[0]
	b.segments = b.segments[1:]
	b.currentParticipant = popped.ParticipantID
	b.hasCurrentParticipant = true
}

// Read copies up to n samples into out (which must have length >= n),
// returning how many were actually available. The tail of out beyond the
// returned count is left untouched — callers (the output callback) zero-pad
// it themselves (spec.md §4.1 "Output callback" step 4).
func (b *CircularBuffer) Read(out []float32) (read int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(out)
	if n > b.available {
		n = b.available
	}

	for i := 0; i < n; i++ {
		out[i] = b.data[b.readPos]
		b.readPos = (b.readPos + 1) % b.capacity
	}
	b.available -= n

	consumed := 0
	for consumed < n && len(b.segments) > 0 {
		seg := &b.segments[0]
		take := seg.SamplesRemaining
		if take > n-consumed {
			take = n - consumed
		}
		seg.SamplesRemaining -= take
		consumed += take
		if seg.SamplesRemaining == 0 {
			b.popHeadSegmentLocked()
		}
	}

	return n
}

// SmartReset keeps only segments whose QuestionID equals qid, discarding all
// others (including segments with no QuestionID at all, treated as foreign
// per spec.md §4.1) while preserving the relative order of kept segments.
// It is idempotent (R2): calling it twice in a row has the same effect as
// calling it once.
func (b *CircularBuffer) SmartReset(qid string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.segments) == 0 {
		return
	}

	kept := make([]float32, 0, b.available)
	keptSegments := make([]Segment, 0, len(b.segments))

	pos := b.readPos
	for _, seg := range b.segments {
		segSamples := make([]float32, seg.SamplesRemaining)
		for i := range segSamples {
			segSamples[i] = b.data[pos]
			pos = (pos + 1) % b.capacity
		}
		if seg.QuestionID == qid {
			kept = append(kept, segSamples...)
			keptSegments = append(keptSegments, seg)
		}
	}

	b.readPos = 0
	b.writePos = 0
	b.available = 0
	b.segments = nil

	for _, s := range kept {
		b.data[b.writePos] = s
		b.writePos = (b.writePos + 1) % b.capacity
	}
	b.available = len(kept)
	b.segments = keptSegments
}

// Reset drops all segments and samples (spec.md §4.1 "reset").
func (b *CircularBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readPos = 0
	b.writePos = 0
	b.available = 0
	b.segments = nil
	b.currentParticipant = ""
	b.hasCurrentParticipant = false
}

// Available returns the current number of unread samples (I1: this always
// equals the sum of segment.SamplesRemaining).
func (b *CircularBuffer) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.available
}

// Capacity returns the buffer's fixed sample capacity.
func (b *CircularBuffer) Capacity() int {
	return b.capacity
}

// FillPercentage returns available/capacity as a percentage in [0,100]
// (spec.md I2).
func (b *CircularBuffer) FillPercentage() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.capacity == 0 {
		return 0
	}
	return float64(b.available) / float64(b.capacity) * 100
}

// CurrentParticipant returns the participant id attached to the segment
// most recently popped off the read head, and whether one has ever been
// popped (spec.md §3.2, §4.1 "current_participant").
func (b *CircularBuffer) CurrentParticipant() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentParticipant, b.hasCurrentParticipant
}

// segmentCountForTest exposes the segment count for invariant checks in
// tests without leaking the segment slice itself.
func (b *CircularBuffer) segmentCountForTest() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.segments)
}
