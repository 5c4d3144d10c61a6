// Package bridges implements the per-node worker bridges the Dataflow
// Dispatcher spawns: one goroutine per bridge, looping receive-decode-update-
// emit against the Shared State Hub (spec.md §4.5).
package bridges

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mofa-studio/mofa-core/internal/logging"
	"github.com/mofa-studio/mofa-core/internal/metrics"
	"github.com/mofa-studio/mofa-core/pkg/dataflow"
	"github.com/mofa-studio/mofa-core/pkg/hub"
)

// EnvelopeSource is the inbound half of a bridge's wire connection.
// *dataflow.NodeConn satisfies this.
type EnvelopeSource interface {
	Receive(ctx context.Context) (dataflow.Envelope, error)
}

// EnvelopeSink is the outbound half of a bridge's wire connection.
// *dataflow.NodeConn satisfies this.
type EnvelopeSink interface {
	Send(ctx context.Context, e dataflow.Envelope) error
}

// PlaybackWriter is the narrow surface the Audio Player Bridge needs from
// the Audio Playback Engine: enqueue one accepted chunk onto the real-time
// ring buffer (spec.md §4.1 "write", §4.5.1 step 3). The Shared State audio
// FIFO the bridge also pushes to is a separate, UI-facing recent-history
// view — not the playback path itself.
type PlaybackWriter interface {
	Write(samples []float32, participantID, questionID string)
	Unmute()
}

// sessionStartCacheSize is the session-start dedup set's bound (spec.md
// §4.5.1 "bounded set (capacity 100, LRU-trim)").
const sessionStartCacheSize = 100

// AudioPlayerBridge is the Audio Player Bridge (spec.md §4.5.1): it consumes
// TTS audio chunks, applies the smart-reset gate and session_start dedup,
// pushes accepted chunks to the Shared State audio FIFO, and emits
// audio_complete/session_start/buffer_status outbound.
type AudioPlayerBridge struct {
	Source   EnvelopeSource
	Sink     EnvelopeSink
	Playback PlaybackWriter
	Hub      *hub.Hub
	Logger   logging.Logger
	Metrics  *metrics.Registry

	seen *lru.Cache[string, struct{}]

	mu              sync.Mutex
	filteringMode   bool
	resetQuestionID string
}

// NewAudioPlayerBridge constructs an AudioPlayerBridge. playback may be nil
// in tests that only care about the dedup/gate/outbound logic.
func NewAudioPlayerBridge(source EnvelopeSource, sink EnvelopeSink, playback PlaybackWriter, h *hub.Hub, logger logging.Logger, reg *metrics.Registry) *AudioPlayerBridge {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	seen, _ := lru.New[string, struct{}](sessionStartCacheSize)
	return &AudioPlayerBridge{
		Source:   source,
		Sink:     sink,
		Playback: playback,
		Hub:      h,
		Logger:   logger,
		Metrics:  reg,
		seen:     seen,
	}
}

// Name identifies this bridge for dispatcher logging.
func (b *AudioPlayerBridge) Name() string { return "audio_player" }

// SignalReset enters filtering_mode for qid, per spec.md §4.6 "Smart reset
// on human interrupt" — called by the turn-coordination layer when the
// external controller observes speech_started and emits reset(qid).
func (b *AudioPlayerBridge) SignalReset(qid string) {
	b.mu.Lock()
	b.filteringMode = true
	b.resetQuestionID = qid
	b.mu.Unlock()

	if b.Hub != nil {
		b.Hub.Audio.SignalClear()
	}
}

// UpdateBufferStatus forwards the UI's authoritative buffer fill percentage
// outbound as buffer_status (spec.md §4.6).
func (b *AudioPlayerBridge) UpdateBufferStatus(ctx context.Context, fillPercent float64) {
	if b.Sink == nil {
		return
	}
	_ = b.Sink.Send(ctx, dataflow.Envelope{
		Node:   b.Name(),
		Output: "buffer_status",
		Metadata: dataflow.Metadata{
			"fill_percentage": dataflow.FloatValue(fillPercent),
		},
	})
}

// Run loops receiving inbound TTS audio chunks until ctx is cancelled.
func (b *AudioPlayerBridge) Run(ctx context.Context) error {
	for {
		env, err := b.Source.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		b.handle(ctx, env)
	}
}

func (b *AudioPlayerBridge) handle(ctx context.Context, env dataflow.Envelope) {
	participant, _ := env.Metadata.StringField(dataflow.MetaParticipant)
	qid, hasQID := env.Metadata.StringField(dataflow.MetaQuestionID)
	sessionStatus, _ := env.Metadata.StringField(dataflow.MetaSessionStatus)

	passed, cleared := b.passesSmartResetGate(qid, hasQID)
	if !passed {
		b.Logger.Warn("audio player dropped stale chunk", "question_id", qid)
		if b.Metrics != nil {
			b.Metrics.IncDroppedAudioChunks(1)
		}
		return
	}
	if cleared && b.Playback != nil {
		b.Playback.Unmute()
	}

	if hasQID && sessionStatus == "started" && !b.seen.Contains(qid) {
		b.seen.Add(qid, struct{}{})
		b.emitSessionStart(ctx, qid, participant)
	}

	if b.Playback != nil {
		b.Playback.Write(env.Samples, participant, qid)
	}

	if b.Hub != nil {
		b.Hub.Audio.Push(hub.AudioChunk{
			Samples:       env.Samples,
			ParticipantID: participant,
			QuestionID:    qid,
			SessionStatus: sessionStatus,
		})
	}

	b.emitAudioComplete(ctx, participant, qid, sessionStatus)
}

// passesSmartResetGate implements spec.md §4.5.1 step 1: while in
// filtering_mode, only a chunk matching reset_question_id (or one with no
// question id at all, treated as a new utterance) is accepted; a match or a
// missing qid also clears filtering_mode. The second return value reports
// whether this call is the one that cleared it, so the caller can lift
// force_mute on the playback engine the instant filtering ends (I4).
func (b *AudioPlayerBridge) passesSmartResetGate(qid string, hasQID bool) (passed, cleared bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.filteringMode {
		return true, false
	}

	if !hasQID || qid == b.resetQuestionID {
		b.filteringMode = false
		b.resetQuestionID = ""
		return true, true
	}

	return false, false
}

func (b *AudioPlayerBridge) emitSessionStart(ctx context.Context, qid, participant string) {
	if b.Metrics != nil {
		b.Metrics.IncSessionStartEmitted()
	}
	if b.Sink == nil {
		return
	}
	_ = b.Sink.Send(ctx, dataflow.Envelope{
		Node:   b.Name(),
		Output: "session_start",
		Metadata: dataflow.Metadata{
			dataflow.MetaQuestionID:  dataflow.StringValue(qid),
			dataflow.MetaParticipant: dataflow.StringValue(participant),
		},
	})
}

func (b *AudioPlayerBridge) emitAudioComplete(ctx context.Context, participant, qid, sessionStatus string) {
	if b.Sink == nil {
		return
	}
	_ = b.Sink.Send(ctx, dataflow.Envelope{
		Node:   b.Name(),
		Output: "audio_complete",
		Metadata: dataflow.Metadata{
			dataflow.MetaParticipant:    dataflow.StringValue(participant),
			dataflow.MetaQuestionID:     dataflow.StringValue(qid),
			dataflow.MetaSessionStatus:  dataflow.StringValue(sessionStatus),
		},
	})
}
