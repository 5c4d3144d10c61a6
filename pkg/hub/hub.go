package hub

// Hub is the Shared State Hub: a single object, held by many owners (the
// dispatcher's bridges, the mic input bridge, the UI poll loop), aggregating
// independently-locked sub-states (spec.md §3.1, §9 "Global mutable state").
//
// There is no global mutex — every sub-state guards itself. Hub is
// constructed once per dataflow session and treated as an explicit
// dependency injected into every bridge, never a package-level singleton.
type Hub struct {
	Audio  *AudioState
	Chat   *ChatState
	Logs   *LogState
	Mic    *MicState
	Status *StatusState
}

// New constructs a fresh Hub for one dataflow session.
func New() *Hub {
	return &Hub{
		Audio:  NewAudioState(),
		Chat:   NewChatState(),
		Logs:   NewLogState(),
		Mic:    NewMicState(),
		Status: NewStatusState(),
	}
}
