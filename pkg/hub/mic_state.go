package hub

// MicState tracks the live microphone level/peak/speaking/AEC signals the UI
// polls at ~20 Hz (spec.md §3.1). Each field is independently dirty-tracked
// so the UI only redraws what actually changed.
type MicState struct {
	level      Dirty[float64]
	peak       Dirty[float64]
	isSpeaking Dirty[bool]
	aecEnabled Dirty[bool]
}

// NewMicState creates a MicState with AEC assumed enabled until told
// otherwise.
func NewMicState() *MicState {
	s := &MicState{}
	s.aecEnabled.Push(true)
	return s
}

// SetLevel records the current normalized input level in [0,1].
func (m *MicState) SetLevel(level float64) { m.level.Push(level) }

// SetPeak records the current peak level in [0,1].
func (m *MicState) SetPeak(peak float64) { m.peak.Push(peak) }

// SetSpeaking records the VAD's current speaking state.
func (m *MicState) SetSpeaking(speaking bool) { m.isSpeaking.Push(speaking) }

// SetAEC records whether AEC capture mode is currently active.
func (m *MicState) SetAEC(enabled bool) { m.aecEnabled.Push(enabled) }

// ReadLevelIfDirty, ReadPeakIfDirty, ReadSpeakingIfDirty, and
// ReadAECIfDirty each return their field exactly once per mutation
// (spec.md I5).
func (m *MicState) ReadLevelIfDirty() (float64, bool)    { return m.level.ReadIfDirty() }
func (m *MicState) ReadPeakIfDirty() (float64, bool)      { return m.peak.ReadIfDirty() }
func (m *MicState) ReadSpeakingIfDirty() (bool, bool)     { return m.isSpeaking.ReadIfDirty() }
func (m *MicState) ReadAECIfDirty() (bool, bool)          { return m.aecEnabled.ReadIfDirty() }
