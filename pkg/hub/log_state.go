package hub

// maxLogEntries bounds LogState's ring (spec.md §4.2 "Bounding").
const maxLogEntries = 1000

// LogState is a bounded ring of structured log entries (spec.md §3.1).
// Filtering by a runtime minimum level is applied at write time by the
// System Log Bridge (spec.md §4.5.3, §9 "write-time filtering"); LogState
// itself stores whatever it is given.
type LogState struct {
	dirty Dirty[[]LogEntry]
	ring  *Ring[LogEntry]
}

// NewLogState creates an empty LogState.
func NewLogState() *LogState {
	return &LogState{ring: NewRing[LogEntry](maxLogEntries)}
}

// Push appends an entry, dropping the oldest on overflow, and marks the
// ring dirty. Returns true if an older entry was evicted.
func (l *LogState) Push(entry LogEntry) (dropped bool) {
	dropped = l.ring.Push(entry)
	l.dirty.Push(l.ring.Snapshot())
	return dropped
}

// ReadIfDirty returns a snapshot exactly once per mutation (spec.md I5).
func (l *LogState) ReadIfDirty() ([]LogEntry, bool) {
	return l.dirty.ReadIfDirty()
}
