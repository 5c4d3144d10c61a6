package bridges

import (
	"context"
	"testing"

	"github.com/mofa-studio/mofa-core/pkg/dataflow"
	"github.com/mofa-studio/mofa-core/pkg/hub"
	"github.com/mofa-studio/mofa-core/pkg/playback"
)

func ttsEnvelope(qid, participant, status string, samples []float32) dataflow.Envelope {
	return dataflow.Envelope{
		Node:    "tts",
		Output:  "audio",
		Samples: samples,
		Metadata: dataflow.Metadata{
			dataflow.MetaQuestionID:    dataflow.StringValue(qid),
			dataflow.MetaParticipant:   dataflow.StringValue(participant),
			dataflow.MetaSessionStatus: dataflow.StringValue(status),
		},
	}
}

// TestAudioPlayerHappyPath is spec.md §8.4 scenario 1: a started chunk then
// ten streaming chunks for the same qid yield exactly one session_start and
// eleven audio_complete emissions.
func TestAudioPlayerHappyPath(t *testing.T) {
	h := hub.New()
	sink := &fakeSink{}
	b := NewAudioPlayerBridge(nil, sink, nil, h, nil, nil)
	ctx := context.Background()

	b.handle(ctx, ttsEnvelope("100", "alice", "started", make([]float32, 320)))
	for i := 0; i < 10; i++ {
		b.handle(ctx, ttsEnvelope("100", "alice", "streaming", make([]float32, 320)))
	}

	if got := len(sink.outputs("session_start")); got != 1 {
		t.Fatalf("session_start emissions = %d, want 1", got)
	}
	if got := len(sink.outputs("audio_complete")); got != 11 {
		t.Fatalf("audio_complete emissions = %d, want 11", got)
	}
}

// TestAudioPlayerSessionStartDedupAcrossRepeats is I3/R3: session_start for a
// given qid never fires more than once, even if "started" is observed again.
func TestAudioPlayerSessionStartDedupAcrossRepeats(t *testing.T) {
	h := hub.New()
	sink := &fakeSink{}
	b := NewAudioPlayerBridge(nil, sink, nil, h, nil, nil)
	ctx := context.Background()

	b.handle(ctx, ttsEnvelope("200", "bob", "started", nil))
	b.handle(ctx, ttsEnvelope("200", "bob", "started", nil))
	b.handle(ctx, ttsEnvelope("200", "bob", "streaming", nil))

	if got := len(sink.outputs("session_start")); got != 1 {
		t.Fatalf("session_start emissions = %d, want 1", got)
	}
}

// TestAudioPlayerStaleAudioRejection is spec.md §8.4 scenario 3: after a
// reset to qid 300, a stale 299 chunk is dropped and the matching 300 chunk
// clears filtering mode, is accepted, and triggers exactly one session_start.
func TestAudioPlayerStaleAudioRejection(t *testing.T) {
	h := hub.New()
	sink := &fakeSink{}
	b := NewAudioPlayerBridge(nil, sink, nil, h, nil, nil)
	ctx := context.Background()

	b.SignalReset("300")

	b.handle(ctx, ttsEnvelope("299", "carol", "streaming", []float32{1, 2, 3}))
	if got, _ := h.Audio.ReadIfDirty(); got != nil {
		t.Fatalf("expected stale chunk to be dropped, but audio FIFO is dirty: %+v", got)
	}

	b.handle(ctx, ttsEnvelope("300", "carol", "started", []float32{4, 5, 6}))
	chunks, dirty := h.Audio.ReadIfDirty()
	if !dirty || len(chunks) != 1 {
		t.Fatalf("expected exactly one accepted chunk, got dirty=%v chunks=%+v", dirty, chunks)
	}
	if chunks[0].QuestionID != "300" {
		t.Fatalf("accepted chunk qid = %q, want 300", chunks[0].QuestionID)
	}

	if got := len(sink.outputs("session_start")); got != 1 {
		t.Fatalf("session_start emissions = %d, want 1", got)
	}
}

// TestAudioPlayerMissingQuestionIDTreatedAsNewUtterance covers the smart
// reset gate's third branch: an incoming chunk with no question id at all
// clears filtering mode and is accepted.
func TestAudioPlayerMissingQuestionIDTreatedAsNewUtterance(t *testing.T) {
	h := hub.New()
	b := NewAudioPlayerBridge(nil, &fakeSink{}, nil, h, nil, nil)
	ctx := context.Background()

	b.SignalReset("300")
	b.handle(ctx, dataflow.Envelope{Samples: []float32{1}})

	if b.filteringMode {
		t.Fatal("expected filtering_mode to clear on a chunk with no question id")
	}
	if _, dirty := h.Audio.ReadIfDirty(); !dirty {
		t.Fatal("expected the chunk to be accepted into the audio FIFO")
	}
}

// TestAudioPlayerIntegerQuestionIDCoercesSameAsString exercises the metadata
// extraction contract at the bridge boundary (spec.md §4.5).
func TestAudioPlayerIntegerQuestionIDCoercesSameAsString(t *testing.T) {
	h := hub.New()
	sink := &fakeSink{}
	b := NewAudioPlayerBridge(nil, sink, nil, h, nil, nil)
	ctx := context.Background()

	env := dataflow.Envelope{
		Metadata: dataflow.Metadata{
			dataflow.MetaQuestionID:    dataflow.IntValue(42),
			dataflow.MetaSessionStatus: dataflow.StringValue("started"),
		},
	}
	b.handle(ctx, env)

	chunks, _ := h.Audio.ReadIfDirty()
	if len(chunks) != 1 || chunks[0].QuestionID != "42" {
		t.Fatalf("expected integer question_id 42 to coerce to string \"42\", got %+v", chunks)
	}
}

// TestAudioPlayerSignalResetUnmutesOnAcceptedChunk is spec.md §8.4 scenario
// 2 / I4: signal_clear force-mutes the engine, but the moment a chunk that
// clears filtering_mode is accepted, force_mute must lift again — otherwise
// playback stays silent forever after a human interrupt.
func TestAudioPlayerSignalResetUnmutesOnAcceptedChunk(t *testing.T) {
	h := hub.New()
	engine := playback.NewEngine(playback.Config{SampleRate: 16000, BufferSeconds: 1})
	h.Audio.RegisterForceMute(engine)
	b := NewAudioPlayerBridge(nil, &fakeSink{}, engine, h, nil, nil)
	ctx := context.Background()

	b.SignalReset("300")
	if !engine.Muted() {
		t.Fatal("expected SignalReset to force-mute the engine")
	}

	b.handle(ctx, ttsEnvelope("299", "carol", "streaming", []float32{1, 2, 3}))
	if !engine.Muted() {
		t.Fatal("expected engine to remain muted while a stale chunk is still being filtered")
	}

	b.handle(ctx, ttsEnvelope("300", "carol", "started", []float32{4, 5, 6}))
	if engine.Muted() {
		t.Fatal("expected the matching chunk to lift force_mute on the real engine")
	}
}
