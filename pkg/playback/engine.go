package playback

import (
	"fmt"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/mofa-studio/mofa-core/internal/logging"
	"github.com/mofa-studio/mofa-core/internal/metrics"
)

// Engine drives a malgo playback device off a CircularBuffer. The output
// callback never blocks on the ring buffer's logic beyond the short copy in
// CircularBuffer.Read — force_mute and paused are checked as lock-free
// atomics so a stuck UI goroutine can never stall the audio thread
// (spec.md §4.1, §5).
type Engine struct {
	buf *CircularBuffer

	forceMute atomic.Bool
	paused    atomic.Bool

	sampleRate int
	logger     logging.Logger
	metrics    *metrics.Registry

	// scratch is the callback's f32 read buffer, reused across calls so the
	// audio thread never allocates in steady state (spec.md §5, §9). It
	// only grows, and only if the device ever requests more frames per
	// callback than it already has capacity for.
	scratch []float32

	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
}

// Config configures the engine's buffer size and audio device parameters.
type Config struct {
	SampleRate      int
	BufferSeconds   int // default 30, per spec.md §3.2
	DeviceID        string
	PeriodSizeMS    int
	Logger          logging.Logger
	Metrics         *metrics.Registry
}

// NewEngine constructs an Engine with its circular buffer sized per cfg, but
// does not open the audio device — call Start for that.
func NewEngine(cfg Config) *Engine {
	bufSeconds := cfg.BufferSeconds
	if bufSeconds <= 0 {
		bufSeconds = 30
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	e := &Engine{
		buf:        NewCircularBuffer(cfg.SampleRate, bufSeconds),
		sampleRate: cfg.SampleRate,
		logger:     logger,
		metrics:    cfg.Metrics,
	}
	return e
}

// Start opens and starts the malgo playback device, wiring its data callback
// to drain the circular buffer (spec.md §4.1 "Output callback").
func (e *Engine) Start() error {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("playback: init malgo context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = uint32(e.sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: e.outputCallback,
	})
	if err != nil {
		mctx.Uninit()
		return fmt.Errorf("playback: init malgo device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		return fmt.Errorf("playback: start malgo device: %w", err)
	}

	e.malgoCtx = mctx
	e.device = device
	e.logger.Info("playback engine started", "sample_rate", e.sampleRate)
	return nil
}

// Stop tears down the malgo device and context. Safe to call on an Engine
// that was never Start'ed.
func (e *Engine) Stop() error {
	if e.device != nil {
		e.device.Uninit()
		e.device = nil
	}
	if e.malgoCtx != nil {
		e.malgoCtx.Uninit()
		e.malgoCtx = nil
	}
	return nil
}

// outputCallback implements spec.md §4.1's four-step output callback:
//  1. if paused or force_mute, emit silence and leave the buffer untouched
//  2. otherwise copy as many samples as are available
//  3. zero-pad any shortfall (buffer underrun)
//  4. convert f32 to interleaved S16LE bytes
func (e *Engine) outputCallback(pOutput, _ []byte, _ uint32) {
	if pOutput == nil {
		return
	}
	if e.paused.Load() || e.forceMute.Load() {
		for i := range pOutput {
			pOutput[i] = 0
		}
		return
	}

	frames := len(pOutput) / 2
	if cap(e.scratch) < frames {
		e.scratch = make([]float32, frames)
	} else {
		e.scratch = e.scratch[:frames]
	}
	samples := e.scratch
	read := e.buf.Read(samples)

	for i := 0; i < read; i++ {
		s := samples[i]
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		pOutput[2*i] = byte(v)
		pOutput[2*i+1] = byte(v >> 8)
	}
	for i := read * 2; i < len(pOutput); i++ {
		pOutput[i] = 0
	}

	if e.metrics != nil {
		e.metrics.SetBufferFillPercent(e.buf.FillPercentage())
	}
}

// Write enqueues samples tagged with participantID/questionID (spec.md §4.1
// "write").
func (e *Engine) Write(samples []float32, participantID, questionID string) {
	e.buf.Write(samples, participantID, questionID)
}

// Pause stops audible output without discarding buffered audio (spec.md
// §4.1 "pause").
func (e *Engine) Pause() { e.paused.Store(true) }

// Resume resumes audible output from where it left off (spec.md §4.1
// "resume").
func (e *Engine) Resume() { e.paused.Store(false) }

// Reset discards all buffered audio and clears force-mute (spec.md §4.1
// "reset").
func (e *Engine) Reset() {
	e.buf.Reset()
	e.forceMute.Store(false)
}

// SmartReset discards every buffered segment not tagged with qid (spec.md
// §4.1 "smart_reset").
func (e *Engine) SmartReset(qid string) {
	e.buf.SmartReset(qid)
}

// SignalClear implements hub.PlaybackSignal: it instantly mutes output and
// clears the buffer, for the Audio Player Bridge to call the instant a human
// interrupt is detected (spec.md §4.1 "signal_clear", §4.5.1).
func (e *Engine) SignalClear() {
	e.forceMute.Store(true)
	e.buf.Reset()
	if e.metrics != nil {
		e.metrics.SetBufferFillPercent(0)
	}
}

// Unmute clears the force-mute flag set by SignalClear, letting new audio
// for the next question play out (spec.md §4.5.1 "filtering_mode" exit).
func (e *Engine) Unmute() {
	e.forceMute.Store(false)
}

// Muted reports whether force-mute is currently engaged.
func (e *Engine) Muted() bool {
	return e.forceMute.Load()
}

// BufferFillPercentage reports the buffer's current fill, 0-100 (spec.md
// I2).
func (e *Engine) BufferFillPercentage() float64 {
	return e.buf.FillPercentage()
}

// CurrentParticipant reports the participant tag of the most recently
// consumed segment.
func (e *Engine) CurrentParticipant() (string, bool) {
	return e.buf.CurrentParticipant()
}
