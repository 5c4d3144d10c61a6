package hub

// Status is a snapshot of the dataflow's running state, dirty-tracked as a
// whole (spec.md §3.1).
type Status struct {
	Running bool
	Phase   ConnectionPhase
	Message string // populated on PhaseError, empty otherwise
}

// StatusState tracks the dataflow-running flag and connection phase
// (spec.md §3.1, §4.4).
type StatusState struct {
	dirty Dirty[Status]
}

// NewStatusState creates a StatusState starting in PhaseStopped.
func NewStatusState() *StatusState {
	s := &StatusState{}
	s.dirty.Push(Status{Running: false, Phase: PhaseStopped})
	return s
}

// SetRunning transitions to the given phase, setting Running true only for
// PhaseRunning. message is attached for PhaseError and cleared otherwise.
func (s *StatusState) SetRunning(phase ConnectionPhase, message string) {
	if phase != PhaseError {
		message = ""
	}
	s.dirty.Push(Status{
		Running: phase == PhaseRunning,
		Phase:   phase,
		Message: message,
	})
}

// ReadIfDirty returns the current status exactly once per mutation
// (spec.md I5).
func (s *StatusState) ReadIfDirty() (Status, bool) {
	return s.dirty.ReadIfDirty()
}

// Peek returns the current status without consuming the dirty flag —
// used internally by components that need to branch on phase without
// competing with the UI's poll.
func (s *StatusState) Peek() Status {
	return s.dirty.Peek()
}
