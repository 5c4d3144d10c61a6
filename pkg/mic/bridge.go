package mic

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/mofa-studio/mofa-core/internal/logging"
	"github.com/mofa-studio/mofa-core/internal/metrics"
	"github.com/mofa-studio/mofa-core/pkg/hub"
)

// Mode selects between the two capture strategies (spec.md §4.3 "Modes").
type Mode int

const (
	ModePlain Mode = iota
	ModeAEC
)

func (m Mode) String() string {
	if m == ModeAEC {
		return "aec"
	}
	return "plain"
}

// ErrAECUnavailable is returned by Start/SwitchMode(ModeAEC) on platforms
// without an echo-cancelling capture facility (spec.md §4.3 "On systems
// without such a facility, this mode is unavailable").
var ErrAECUnavailable = errors.New("mic: AEC capture is unavailable on this host")

// OutputKind enumerates the bridge's outbound dataflow events (spec.md §4.3
// "Outputs").
type OutputKind string

const (
	OutputAudio         OutputKind = "audio"
	OutputAudioSegment  OutputKind = "audio_segment"
	OutputSpeechStarted OutputKind = "speech_started"
	OutputSpeechEnded   OutputKind = "speech_ended"
	OutputIsSpeaking    OutputKind = "is_speaking"
	OutputQuestionEnded OutputKind = "question_ended"
	OutputStatus        OutputKind = "status"
	OutputLog           OutputKind = "log"
)

// Output is one event destined for the external dataflow.
type Output struct {
	Kind       OutputKind
	Samples    []float32
	QuestionID string
	SampleRate int
	IsSpeaking bool
	Message    string
}

const outputQueueCapacity = 256

// Bridge is the Mic/AEC Input Bridge (spec.md §4.3): it owns one capture
// device at a time, runs VAD (and, in Plain mode, software echo
// suppression) on every frame, and emits both a raw audio stream and
// VAD-segmented utterances.
type Bridge struct {
	sampleRate int

	vad  *VAD
	echo *EchoSuppressor

	mode atomic.Int32 // Mode

	hub     *hub.Hub
	logger  logging.Logger
	metrics *metrics.Registry

	outputs chan Output

	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
}

// Config configures a Bridge.
type Config struct {
	SampleRate int
	VAD        VADConfig
	Hub        *hub.Hub
	Logger     logging.Logger
	Metrics    *metrics.Registry
}

// NewBridge constructs a Bridge. It does not start capturing — call Start.
func NewBridge(cfg Config) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	vadCfg := cfg.VAD
	vadCfg.FrameDurationMs = 1000.0 * float64(framesPerCallback) / float64(cfg.SampleRate)
	v := NewVAD(vadCfg)
	b := &Bridge{
		sampleRate: cfg.SampleRate,
		vad:        v,
		echo:       NewEchoSuppressor(cfg.SampleRate),
		hub:        cfg.Hub,
		logger:     logger,
		metrics:    cfg.Metrics,
		outputs:    make(chan Output, outputQueueCapacity),
	}
	b.mode.Store(int32(ModePlain))
	return b
}

// framesPerCallback is a nominal frame size used only to derive the VAD's
// notion of frame duration; the actual malgo callback may deliver a
// different frameCount, which Process handles per-call regardless.
const framesPerCallback = 160 // 10ms @ 16kHz

// Outputs returns the channel the bridge publishes dataflow events to.
func (b *Bridge) Outputs() <-chan Output { return b.outputs }

// Mode reports the currently active capture mode.
func (b *Bridge) Mode() Mode { return Mode(b.mode.Load()) }

// AECAvailable reports whether this host exposes an echo-cancelling capture
// facility. Full platform-level AEC negotiation is backend-specific; this
// heuristic tracks which targets malgo's capture backends commonly expose
// one on.
func AECAvailable() bool {
	switch runtime.GOOS {
	case "darwin", "windows":
		return true
	default:
		return false
	}
}

// Start opens the capture device in mode.
func (b *Bridge) Start(mode Mode) error {
	if mode == ModeAEC && !AECAvailable() {
		return ErrAECUnavailable
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("mic: init malgo context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(b.sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: b.captureCallback,
	})
	if err != nil {
		mctx.Uninit()
		return fmt.Errorf("mic: init malgo device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		return fmt.Errorf("mic: start malgo device: %w", err)
	}

	b.mu.Lock()
	b.malgoCtx = mctx
	b.device = device
	b.mu.Unlock()

	b.mode.Store(int32(mode))
	if b.hub != nil {
		b.hub.Mic.SetAEC(mode == ModeAEC)
	}
	b.emit(Output{Kind: OutputStatus, Message: "capturing:" + mode.String()})
	b.logger.Info("mic bridge started", "mode", mode.String())
	return nil
}

// Stop closes the active capture device.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.device != nil {
		b.device.Uninit()
		b.device = nil
	}
	if b.malgoCtx != nil {
		b.malgoCtx.Uninit()
		b.malgoCtx = nil
	}
	return nil
}

// SwitchMode stops the current capture cleanly and starts a new one in the
// requested mode; the two streams are never open at once (spec.md §4.3
// "Mode switching").
func (b *Bridge) SwitchMode(mode Mode) error {
	if mode == b.Mode() {
		return nil
	}
	if err := b.Stop(); err != nil {
		return err
	}
	return b.Start(mode)
}

// captureCallback runs on the audio driver thread: convert S16LE input to
// float32, run VAD (and, in Plain mode, echo suppression), update shared
// mic state, and publish outputs.
func (b *Bridge) captureCallback(_, pInput []byte, _ uint32) {
	if len(pInput) == 0 {
		return
	}
	samples := bytesToFloat32(pInput)

	mode := b.Mode()
	if mode == ModePlain {
		samples = b.echo.Suppress(samples)
	}

	level, peak := levelAndPeak(samples)
	if b.hub != nil {
		b.hub.Mic.SetLevel(level)
		b.hub.Mic.SetPeak(peak)
	}

	events := b.vad.Process(samples)
	if b.hub != nil {
		b.hub.Mic.SetSpeaking(b.vad.IsSpeaking())
	}

	b.emit(Output{Kind: OutputAudio, Samples: samples, SampleRate: b.sampleRate})
	b.emit(Output{Kind: OutputIsSpeaking, IsSpeaking: b.vad.IsSpeaking()})

	for _, ev := range events {
		switch ev.Type {
		case EventSpeechStarted:
			b.emit(Output{Kind: OutputSpeechStarted, QuestionID: ev.QuestionID})
		case EventSpeechEnded:
			b.emit(Output{Kind: OutputAudioSegment, Samples: ev.AudioSegment, QuestionID: ev.QuestionID, SampleRate: b.sampleRate})
			b.emit(Output{Kind: OutputSpeechEnded, QuestionID: ev.QuestionID})
		case EventQuestionEnded:
			b.emit(Output{Kind: OutputQuestionEnded, QuestionID: ev.QuestionID})
		}
	}
}

// RecordPlayback feeds the Engine's output back into the echo suppressor's
// reference buffer, for Plain-mode detection. Only relevant in Plain mode.
func (b *Bridge) RecordPlayback(samples []float32) {
	b.echo.RecordPlayed(samples)
}

// emit is a non-blocking publish: a full queue drops the event and counts it
// (spec.md §5 "try_send semantics").
func (b *Bridge) emit(o Output) {
	select {
	case b.outputs <- o:
	default:
		if b.metrics != nil {
			b.metrics.IncDroppedAudioChunks(1)
		}
		b.logger.Warn("mic output queue full, dropping event", "kind", string(o.Kind))
	}
}

func bytesToFloat32(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		s := int16(pcm[2*i]) | int16(pcm[2*i+1])<<8
		out[i] = float32(s) / 32768.0
	}
	return out
}

func levelAndPeak(samples []float32) (level, peak float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
		if abs := math.Abs(f); abs > peak {
			peak = abs
		}
	}
	level = math.Sqrt(sum / float64(len(samples)))
	return level, peak
}
