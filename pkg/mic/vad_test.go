package mic

import "testing"

func frame(n int, voiced bool) []float32 {
	v := float32(0.9)
	if !voiced {
		v = 0
	}
	f := make([]float32, n)
	for i := range f {
		f[i] = v
	}
	return f
}

func feed(v *VAD, frames int, voiced bool) []Event {
	var all []Event
	for i := 0; i < frames; i++ {
		all = append(all, v.Process(frame(10, voiced))...)
	}
	return all
}

// TestVADFullUtteranceSequence exercises spec.md §8.4's VAD segmentation
// scenario: 500ms silence, 800ms voice, 120ms silence, 900ms voice, 1100ms
// silence, at 10ms frames (50/80/12/90/110 frames respectively).
func TestVADFullUtteranceSequence(t *testing.T) {
	v := NewVAD(VADConfig{Threshold: 0.01, FrameDurationMs: 10, SpeechEndFrames: 10, QuestionEndSilenceMs: 1000})

	var events []Event
	events = append(events, feed(v, 50, false)...)
	events = append(events, feed(v, 80, true)...)
	events = append(events, feed(v, 12, false)...)
	events = append(events, feed(v, 90, true)...)
	events = append(events, feed(v, 110, false)...)

	wantTypes := []EventType{
		EventSpeechStarted, EventSpeechEnded,
		EventSpeechStarted, EventSpeechEnded,
		EventQuestionEnded,
	}
	if len(events) != len(wantTypes) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(wantTypes), events)
	}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Fatalf("event[%d].Type = %v, want %v", i, events[i].Type, want)
		}
	}

	// Exactly one question id is used throughout (no re-mint on the second
	// speech_started, since question_ended hadn't fired yet).
	qid := events[0].QuestionID
	for i, e := range events {
		if e.QuestionID != qid {
			t.Fatalf("event[%d].QuestionID = %q, want %q (single question id throughout)", i, e.QuestionID, qid)
		}
	}
}

func TestVADNextUtteranceGetsFreshQuestionID(t *testing.T) {
	v := NewVAD(VADConfig{Threshold: 0.01, FrameDurationMs: 10, SpeechEndFrames: 10, QuestionEndSilenceMs: 1000})

	feed(v, 50, false)
	events := feed(v, 20, true)
	firstQID := events[0].QuestionID

	events = append(events, feed(v, 110, false)...) // end speech + end question
	events = append(events, feed(v, 20, true)...)    // next utterance

	var secondQID string
	for _, e := range events {
		if e.Type == EventSpeechStarted {
			secondQID = e.QuestionID
		}
	}
	if secondQID == firstQID {
		t.Fatalf("expected a fresh question id for the next utterance, got %q twice", firstQID)
	}
}

// TestVADQuestionEndBoundary exercises spec.md §8.3: silence one frame short
// of question_end_silence_ms never emits question_ended; the threshold frame
// emits exactly one.
func TestVADQuestionEndBoundary(t *testing.T) {
	v := NewVAD(VADConfig{Threshold: 0.01, FrameDurationMs: 10, SpeechEndFrames: 10, QuestionEndSilenceMs: 1000})

	feed(v, 1, false)
	feed(v, 20, true)     // speech_started
	feed(v, 10, false)    // speech_ended, enters silence window

	// 99 more silent frames beyond the 10 already consumed to reach the
	// utterance's speech_ended = 99 frames into the 100-frame question
	// window; no question_ended yet.
	events := feed(v, 99, false)
	for _, e := range events {
		if e.Type == EventQuestionEnded {
			t.Fatal("question_ended fired one frame early")
		}
	}

	events = feed(v, 1, false)
	found := 0
	for _, e := range events {
		if e.Type == EventQuestionEnded {
			found++
		}
	}
	if found != 1 {
		t.Fatalf("question_ended fired %d times at threshold, want 1", found)
	}
}

func TestVADAudioSegmentCapturesAccumulatedSamples(t *testing.T) {
	v := NewVAD(VADConfig{Threshold: 0.01, FrameDurationMs: 10, SpeechEndFrames: 10, QuestionEndSilenceMs: 1000})

	feed(v, 5, true) // 5 voiced frames of 10 samples each = 50 samples
	events := feed(v, 10, false)

	var segment []float32
	for _, e := range events {
		if e.Type == EventSpeechEnded {
			segment = e.AudioSegment
		}
	}
	// 5 voiced frames + 10 silent frames were all appended to the segment
	// buffer before speech_ended fired.
	if len(segment) != 150 {
		t.Fatalf("len(segment) = %d, want 150", len(segment))
	}
}
