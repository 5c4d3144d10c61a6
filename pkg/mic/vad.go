// Package mic implements the Mic/AEC Input Bridge: dual-mode capture,
// energy-based VAD with two-stage silence timers, optional software echo
// suppression, and question-id minting for outbound speech segments
// (spec.md §4.3).
package mic

import "math"

// EventType enumerates the VAD transitions the bridge reports upstream
// (spec.md §4.3 "Outputs").
type EventType int

const (
	EventSpeechStarted EventType = iota
	EventSpeechEnded
	EventQuestionEnded
)

// Event is one VAD transition. AudioSegment is only populated on
// EventSpeechEnded, holding the full accumulated utterance.
type Event struct {
	Type         EventType
	QuestionID   string
	AudioSegment []float32
}

// MintFunc produces a fresh, opaque question identifier (spec.md §3.3: "an
// integer minted on every speech-start ... the core treats it as an opaque
// string when filtering").
type MintFunc func() string

// VADConfig tunes VAD's frame-silence thresholds.
type VADConfig struct {
	Threshold      float64
	FrameDurationMs float64 // duration of one Process() call's worth of audio
	SpeechEndFrames int     // default 10 ≈ 100ms
	QuestionEndSilenceMs int // default 1000
	Mint           MintFunc
}

func (c *VADConfig) withDefaults() VADConfig {
	out := *c
	if out.Threshold <= 0 {
		out.Threshold = 0.02
	}
	if out.FrameDurationMs <= 0 {
		out.FrameDurationMs = 10
	}
	if out.SpeechEndFrames <= 0 {
		out.SpeechEndFrames = 10
	}
	if out.QuestionEndSilenceMs <= 0 {
		out.QuestionEndSilenceMs = 1000
	}
	if out.Mint == nil {
		out.Mint = defaultMint()
	}
	return out
}

func defaultMint() MintFunc {
	var n int64
	return func() string {
		n++
		return itoa(n)
	}
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

type vadState int

const (
	stateIdle vadState = iota
	stateSpeaking
	stateSilenceWindow
)

// VAD is an energy-based voice activity detector with a two-stage silence
// timer: a short `speech_end_frames` window that ends an utterance, and a
// longer `question_end_silence_ms` window that ends the whole question
// (spec.md §4.3 "VAD transitions").
type VAD struct {
	cfg VADConfig

	state vadState

	activeQuestionID string
	nextQuestionID   string

	segmentBuf []float32

	speechFramesSilent int
	silenceWindowFrames int
	questionEndFrames   int

	lastRMS    float64
	isSpeaking bool
}

// NewVAD constructs a VAD from cfg, filling in spec defaults for unset
// fields.
func NewVAD(cfg VADConfig) *VAD {
	c := cfg.withDefaults()
	framesForQuestionEnd := int(math.Round(float64(c.QuestionEndSilenceMs) / c.FrameDurationMs))
	if framesForQuestionEnd < 1 {
		framesForQuestionEnd = 1
	}
	return &VAD{cfg: c, questionEndFrames: framesForQuestionEnd}
}

// Threshold returns the current RMS trigger threshold.
func (v *VAD) Threshold() float64 { return v.cfg.Threshold }

// SetThreshold updates the RMS trigger threshold.
func (v *VAD) SetThreshold(t float64) { v.cfg.Threshold = t }

// LastRMS returns the RMS of the most recently processed frame.
func (v *VAD) LastRMS() float64 { return v.lastRMS }

// IsSpeaking reports whether the VAD currently considers the signal voiced.
func (v *VAD) IsSpeaking() bool { return v.isSpeaking }

// Process consumes one frame of mono samples in [-1,1] and returns zero or
// more transitions (spec.md §4.3).
func (v *VAD) Process(frame []float32) []Event {
	rms := calculateRMS(frame)
	v.lastRMS = rms
	voiced := rms > v.cfg.Threshold
	v.isSpeaking = voiced || v.state == stateSpeaking

	switch v.state {
	case stateIdle:
		if voiced {
			return v.startSpeaking(frame)
		}
		return nil

	case stateSpeaking:
		v.segmentBuf = append(v.segmentBuf, frame...)
		if voiced {
			v.speechFramesSilent = 0
			return nil
		}
		v.speechFramesSilent++
		if v.speechFramesSilent >= v.cfg.SpeechEndFrames {
			return v.endSpeech()
		}
		return nil

	case stateSilenceWindow:
		if voiced {
			return v.startSpeaking(frame)
		}
		v.silenceWindowFrames++
		if v.silenceWindowFrames >= v.questionEndFrames {
			return v.endQuestion()
		}
		return nil
	}
	return nil
}

func (v *VAD) startSpeaking(frame []float32) []Event {
	if v.activeQuestionID == "" {
		v.activeQuestionID = v.cfg.Mint()
	}
	v.state = stateSpeaking
	v.segmentBuf = append(v.segmentBuf[:0], frame...)
	v.speechFramesSilent = 0
	return []Event{{Type: EventSpeechStarted, QuestionID: v.activeQuestionID}}
}

func (v *VAD) endSpeech() []Event {
	segment := v.segmentBuf
	v.segmentBuf = nil
	v.state = stateSilenceWindow
	v.silenceWindowFrames = 0
	return []Event{{Type: EventSpeechEnded, QuestionID: v.activeQuestionID, AudioSegment: segment}}
}

func (v *VAD) endQuestion() []Event {
	qid := v.activeQuestionID
	v.nextQuestionID = v.cfg.Mint()
	v.activeQuestionID = v.nextQuestionID
	v.nextQuestionID = ""
	v.state = stateIdle
	v.silenceWindowFrames = 0
	return []Event{{Type: EventQuestionEnded, QuestionID: qid}}
}

// Reset returns the VAD to its idle state without discarding the active
// question id. Bridge.SwitchMode does not call it.
func (v *VAD) Reset() {
	v.state = stateIdle
	v.segmentBuf = nil
	v.speechFramesSilent = 0
	v.silenceWindowFrames = 0
	v.isSpeaking = false
}

func calculateRMS(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(frame)))
}
