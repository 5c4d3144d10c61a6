package runtime

import (
	"testing"
)

// TestNewWiresForceMuteSignal verifies SignalClear on the Hub's AudioState
// reaches the playback engine's force-mute flag through the borrowed
// PlaybackSignal registration (spec.md §9 "optional weak registration").
func TestNewWiresForceMuteSignal(t *testing.T) {
	r := New(Config{SampleRate: 16000, BufferSeconds: 1})

	if r.Playback.Muted() {
		t.Fatal("expected playback to start unmuted")
	}
	r.Hub.Audio.SignalClear()
	if !r.Playback.Muted() {
		t.Fatal("expected Hub.Audio.SignalClear() to force-mute the playback engine")
	}
}

func TestSetMutedTogglesForceMuteWithoutPausing(t *testing.T) {
	r := New(Config{SampleRate: 16000, BufferSeconds: 1})

	r.SetMuted(true)
	if !r.Playback.Muted() {
		t.Fatal("expected SetMuted(true) to force-mute playback")
	}
	r.SetMuted(false)
	if r.Playback.Muted() {
		t.Fatal("expected SetMuted(false) to clear force-mute")
	}
}

func TestSignalInterruptForceMutesPlayback(t *testing.T) {
	r := New(Config{SampleRate: 16000, BufferSeconds: 1})

	r.SignalInterrupt("qid-42")

	if !r.Playback.Muted() {
		t.Fatal("expected SignalInterrupt to force-mute playback via the audio player's signal_clear")
	}
}

func TestNewConstructsAllBridges(t *testing.T) {
	r := New(Config{SampleRate: 16000, BufferSeconds: 1})
	if r.AudioPlayer == nil || r.PromptInput == nil || r.SystemLog == nil {
		t.Fatalf("expected all three bridges constructed, got %+v %+v %+v", r.AudioPlayer, r.PromptInput, r.SystemLog)
	}
	if r.Hub == nil || r.Mic == nil || r.Playback == nil {
		t.Fatal("expected Hub, Mic, and Playback to be constructed")
	}
}
