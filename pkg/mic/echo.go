package mic

import (
	"math"
	"sync"
	"time"
)

// EchoSuppressor detects and suppresses speaker echo picked up by the
// microphone in Plain mode, where there is no host-level echo-cancelling
// capture to rely on. It is a software supplement only — Plain mode never
// pretends to be AEC mode, and AEC mode never runs this suppressor at all
// (spec.md §4.3 "Modes").
//
// Detection is correlation-based: the engine keeps a rolling buffer of
// recently played-out samples and compares incoming mic frames against it,
// falling back to an envelope correlation for phase-shifted sounds a
// straight cross-correlation misses.
type EchoSuppressor struct {
	mu sync.Mutex

	played    []float32
	maxBuf    int
	threshold float64

	echoSilence time.Duration
	lastPlayed  time.Time

	enabled bool
}

// NewEchoSuppressor creates an EchoSuppressor tuned for sampleRate.
func NewEchoSuppressor(sampleRate int) *EchoSuppressor {
	return &EchoSuppressor{
		maxBuf:      sampleRate * 2, // ~2 seconds of reference audio
		threshold:   0.55,
		echoSilence: 1200 * time.Millisecond,
		enabled:     true,
	}
}

// RecordPlayed records samples that were just sent to the speakers, for
// later correlation against mic input.
func (es *EchoSuppressor) RecordPlayed(samples []float32) {
	if !es.enabled || len(samples) == 0 {
		return
	}
	es.mu.Lock()
	defer es.mu.Unlock()

	es.played = append(es.played, samples...)
	es.lastPlayed = time.Now()

	if len(es.played) > es.maxBuf {
		es.played = append([]float32(nil), es.played[len(es.played)-es.maxBuf:]...)
	}
}

// IsEcho reports whether input is primarily an echo of recently played
// audio.
func (es *EchoSuppressor) IsEcho(input []float32) bool {
	if !es.enabled || len(input) == 0 {
		return false
	}

	es.mu.Lock()
	defer es.mu.Unlock()

	if time.Since(es.lastPlayed) > es.echoSilence {
		return false
	}
	if len(es.played) == 0 {
		return false
	}

	if es.correlationLocked(input) > es.threshold {
		return true
	}

	envCorr := maxEnvelopeCorrelation(toFloat64(input), toFloat64(es.played), 8)
	return envCorr > es.threshold+0.05
}

// correlationLocked computes the normalized cross-correlation between input
// and the tail of the played-audio buffer (accounting for playback-to-mic
// latency by comparing against the most recent samples).
func (es *EchoSuppressor) correlationLocked(input []float32) float64 {
	compareLen := len(input)
	if compareLen > len(es.played) {
		compareLen = len(es.played)
	}
	if compareLen == 0 {
		return 0
	}

	ref := es.played[len(es.played)-compareLen:]
	in := input[:compareLen]

	inEnergy := energy(in)
	refEnergy := energy(ref)
	if inEnergy == 0 || refEnergy == 0 {
		return 0
	}

	dot := 0.0
	for i := range in {
		dot += float64(in[i]) * float64(ref[i])
	}
	corr := dot / math.Sqrt(inEnergy*refEnergy)
	if corr < 0 {
		return 0
	}
	if corr > 1 {
		return 1
	}
	return corr
}

// Suppress zeroes out input entirely if it is classified as echo, otherwise
// returns it unchanged. This is a conservative, whole-frame mute rather than
// a subtractive cancellation (spec.md §4.3: Plain-mode VAD runs on
// energy; suppression here only keeps that energy reading honest).
func (es *EchoSuppressor) Suppress(input []float32) []float32 {
	if es.IsEcho(input) {
		return make([]float32, len(input))
	}
	return input
}

// ClearBuffer drops the rolling reference buffer, e.g. on reset or
// interrupt.
func (es *EchoSuppressor) ClearBuffer() {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.played = nil
}

// SetThreshold adjusts detection sensitivity in [0,1]; out-of-range values
// are ignored.
func (es *EchoSuppressor) SetThreshold(t float64) {
	es.mu.Lock()
	defer es.mu.Unlock()
	if t >= 0 && t <= 1 {
		es.threshold = t
	}
}

// SetEnabled toggles echo suppression.
func (es *EchoSuppressor) SetEnabled(enabled bool) {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.enabled = enabled
}

func energy(samples []float32) float64 {
	sum := 0.0
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}
	return sum
}

func toFloat64(samples []float32) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s)
	}
	return out
}

// maxEnvelopeCorrelation compares the decimated absolute-value envelopes of
// two signals, catching high-frequency/phase-shifted sounds a raw
// cross-correlation misses.
func maxEnvelopeCorrelation(in, ref []float64, decimation int) float64 {
	if len(in) == 0 || len(ref) == 0 {
		return 0
	}

	inEnv := envelope(in, decimation)
	refEnv := envelope(ref, decimation)

	compareLen := len(inEnv)
	if compareLen > len(refEnv) {
		compareLen = len(refEnv)
	}
	if compareLen == 0 {
		return 0
	}

	inMean := mean(inEnv[:compareLen])
	inVar := 0.0
	centered := make([]float64, compareLen)
	for i := 0; i < compareLen; i++ {
		centered[i] = inEnv[i] - inMean
		inVar += centered[i] * centered[i]
	}
	if inVar <= 0 {
		return 0
	}

	maxCorr := 0.0
	stride := compareLen / 4
	if stride < 2 {
		stride = 2
	}

	searchRange := len(refEnv) - compareLen + 1
	for pos := 0; pos < searchRange; pos += stride {
		refMean := mean(refEnv[pos : pos+compareLen])

		dot, refVar := 0.0, 0.0
		for i := 0; i < compareLen; i++ {
			r := refEnv[pos+i] - refMean
			dot += centered[i] * r
			refVar += r * r
		}
		if refVar > 0 {
			if corr := dot / math.Sqrt(inVar*refVar); corr > maxCorr {
				maxCorr = corr
			}
		}
	}
	return maxCorr
}

func envelope(samples []float64, decimation int) []float64 {
	n := len(samples) / decimation
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < decimation; j++ {
			sum += math.Abs(samples[i*decimation+j])
		}
		out[i] = sum
	}
	return out
}

func mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}
