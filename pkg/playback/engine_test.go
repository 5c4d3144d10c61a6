package playback

import "testing"

// newTestEngine builds an Engine without calling Start, so these tests never
// touch the real audio device — only the buffer-facing API and the
// force_mute/paused atomics exercised by outputCallback.
func newTestEngine(sampleRate, bufferSeconds int) *Engine {
	return NewEngine(Config{SampleRate: sampleRate, BufferSeconds: bufferSeconds})
}

func TestEngineOutputCallbackSilentWhenPaused(t *testing.T) {
	e := newTestEngine(100, 1)
	e.Write(samplesOf(10, 1), "p1", "q1")
	e.Pause()

	out := make([]byte, 20) // 10 frames * 2 bytes (S16 mono)
	e.outputCallback(out, nil, 10)

	for i, b := range out {
		if b != 0 {
			t.Fatalf("out[%d] = %d, want 0 while paused", i, b)
		}
	}
	// Paused output must not drain the buffer.
	if got := e.BufferFillPercentage(); got == 0 {
		t.Fatal("expected buffer to remain filled while paused")
	}
}

func TestEngineOutputCallbackSilentWhenForceMuted(t *testing.T) {
	e := newTestEngine(100, 1)
	e.Write(samplesOf(10, 1), "p1", "q1")
	e.forceMute.Store(true)

	out := make([]byte, 20)
	e.outputCallback(out, nil, 10)

	for i, b := range out {
		if b != 0 {
			t.Fatalf("out[%d] = %d, want 0 while force-muted", i, b)
		}
	}
}

func TestEngineOutputCallbackConvertsAndZeroPads(t *testing.T) {
	e := newTestEngine(100, 1)
	e.Write(samplesOf(5, 1), "p1", "q1") // only 5 of 10 requested frames available

	out := make([]byte, 20) // 10 frames
	e.outputCallback(out, nil, 10)

	// First 5 frames should be full-scale positive S16LE (32767), the rest
	// zero-padded for the underrun.
	for i := 0; i < 5; i++ {
		lo, hi := out[2*i], out[2*i+1]
		v := int16(lo) | int16(hi)<<8
		if v != 32767 {
			t.Fatalf("frame %d = %d, want 32767", i, v)
		}
	}
	for i := 10; i < 20; i++ {
		if out[i] != 0 {
			t.Fatalf("out[%d] = %d, want 0 (underrun pad)", i, out[i])
		}
	}
}

func TestEngineSignalClearMutesAndClearsBuffer(t *testing.T) {
	e := newTestEngine(100, 1)
	e.Write(samplesOf(10, 1), "p1", "q1")

	e.SignalClear()

	if !e.Muted() {
		t.Fatal("expected Muted() after SignalClear")
	}
	if got := e.BufferFillPercentage(); got != 0 {
		t.Fatalf("BufferFillPercentage() after SignalClear = %v, want 0", got)
	}
}

func TestEngineUnmuteClearsForceMute(t *testing.T) {
	e := newTestEngine(100, 1)
	e.SignalClear()
	if !e.Muted() {
		t.Fatal("expected Muted() after SignalClear")
	}
	e.Unmute()
	if e.Muted() {
		t.Fatal("expected not Muted() after Unmute")
	}
}

func TestEngineSmartResetDelegatesToBuffer(t *testing.T) {
	e := newTestEngine(1000, 1)
	e.Write(samplesOf(100, 1), "bot", "100")

	e.SmartReset("200")

	if got := e.BufferFillPercentage(); got != 0 {
		t.Fatalf("BufferFillPercentage() = %v, want 0 after smart_reset to foreign qid", got)
	}
}
