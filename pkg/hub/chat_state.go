package hub

import "sync"

// ChatState is the append-only chat log with streaming consolidation
// (spec.md §3.1, §3.4, §4.2).
type ChatState struct {
	mu       sync.Mutex
	messages []ChatMessage
	dirty    bool
}

// NewChatState creates an empty ChatState.
func NewChatState() *ChatState {
	return &ChatState{}
}

// Push applies the consolidation contract from spec.md §4.2:
//
//   - If incoming is streaming and the last entry is streaming with the
//     same (participant, question_id), replace the last entry's content
//     in place, keeping its original timestamp.
//   - Otherwise append as a new message.
//   - Either way, if incoming carries status "complete" the (possibly just
//     replaced) last entry's Streaming flag is cleared.
//
// complete is the caller's session_status-derived completion signal;
// bridges map "complete" to true, "started"/"streaming" to false
// (spec.md §4.5.2).
func (c *ChatState) Push(msg ChatMessage, complete bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n := len(c.messages); n > 0 {
		last := c.messages[n-1]
		if msg.Streaming && last.Streaming &&
			last.ParticipantID == msg.ParticipantID && last.QuestionID == msg.QuestionID {
			msg.Timestamp = last.Timestamp
			c.messages[n-1] = msg
			if complete {
				c.messages[n-1].Streaming = false
			}
			c.dirty = true
			return
		}
	}

	c.messages = append(c.messages, msg)
	if complete {
		c.messages[len(c.messages)-1].Streaming = false
	}
	c.dirty = true
}

// ReadIfDirty returns a snapshot of the full chat list exactly once per
// mutation (spec.md I5).
func (c *ChatState) ReadIfDirty() ([]ChatMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil, false
	}
	c.dirty = false
	out := make([]ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out, true
}

// Len reports the current message count (spec.md I6 is tested against
// this).
func (c *ChatState) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Trim keeps only the most recent n messages. The UI may call this to
// bound an otherwise-unbounded session (spec.md §4.2 "Bounding").
func (c *ChatState) Trim(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 0 || len(c.messages) <= n {
		return
	}
	c.messages = append([]ChatMessage(nil), c.messages[len(c.messages)-n:]...)
	c.dirty = true
}
