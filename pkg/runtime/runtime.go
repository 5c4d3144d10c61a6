// Package runtime wires the Shared State Hub, Audio Playback Engine,
// Mic/AEC Input Bridge, Dataflow Dispatcher, and per-node worker bridges
// into one running session (spec.md §2 "System Overview").
package runtime

import (
	"context"
	"fmt"

	"github.com/mofa-studio/mofa-core/internal/logging"
	"github.com/mofa-studio/mofa-core/internal/metrics"
	"github.com/mofa-studio/mofa-core/pkg/bridges"
	"github.com/mofa-studio/mofa-core/pkg/dataflow"
	"github.com/mofa-studio/mofa-core/pkg/hub"
	"github.com/mofa-studio/mofa-core/pkg/mic"
	"github.com/mofa-studio/mofa-core/pkg/playback"
)

// NodeEndpoints names the wire endpoint for each dynamic node that
// Runtime.Start dials when it wires up the per-node bridges (spec.md §6.1).
// An empty endpoint is not dialed.
type NodeEndpoints struct {
	AudioPlayer string
	PromptInput string
	SystemLog   string
}

// Config configures a Runtime.
type Config struct {
	SpecPath      string
	SampleRate    int
	BufferSeconds int
	NodeEnv       map[string]string
	Endpoints     NodeEndpoints
	Launcher      dataflow.Launcher
	Logger        logging.Logger
	Metrics       *metrics.Registry
	MinLogLevel   hub.LogLevel
}

// Runtime is the assembled, running session: every component sharing one
// Hub, started and stopped together.
type Runtime struct {
	Hub *hub.Hub

	Playback *playback.Engine
	Mic      *mic.Bridge

	AudioPlayer *bridges.AudioPlayerBridge
	PromptInput *bridges.PromptInputBridge
	SystemLog   *bridges.SystemLogBridge

	dispatcher *dataflow.Dispatcher

	cfg Config

	audioPlayerConn *dataflow.NodeConn
	promptInputConn *dataflow.NodeConn
	systemLogConn   *dataflow.NodeConn
}

// New constructs a Runtime. It does not start any device or network
// connection — call Start for that.
func New(cfg Config) *Runtime {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	minLevel := cfg.MinLogLevel
	if minLevel == "" {
		minLevel = hub.LevelInfo
	}

	h := hub.New()

	engine := playback.NewEngine(playback.Config{
		SampleRate:    cfg.SampleRate,
		BufferSeconds: cfg.BufferSeconds,
		Logger:        logger,
		Metrics:       cfg.Metrics,
	})
	h.Audio.RegisterForceMute(engine)

	micBridge := mic.NewBridge(mic.Config{
		SampleRate: cfg.SampleRate,
		VAD:        mic.VADConfig{},
		Hub:        h,
		Logger:     logger,
		Metrics:    cfg.Metrics,
	})

	audioPlayer := bridges.NewAudioPlayerBridge(nil, nil, engine, h, logger, cfg.Metrics)
	promptInput := bridges.NewPromptInputBridge(nil, nil, h, logger)
	systemLog := bridges.NewSystemLogBridge(nil, h, logger, cfg.Metrics, minLevel)

	r := &Runtime{
		Hub:         h,
		Playback:    engine,
		Mic:         micBridge,
		AudioPlayer: audioPlayer,
		PromptInput: promptInput,
		SystemLog:   systemLog,
		cfg:         cfg,
	}

	r.dispatcher = dataflow.NewDispatcher(dataflow.Config{
		Launcher: cfg.Launcher,
		Bridges:  []dataflow.BridgeRunner{audioPlayer, promptInput, systemLog},
		Hub:      h,
		Logger:   logger,
		Metrics:  cfg.Metrics,
	})

	return r
}

// Start opens the playback device, dials the per-node bridge endpoints,
// starts mic capture in Plain mode, and launches the external dataflow
// (spec.md §4.4 Start sequence).
func (r *Runtime) Start(ctx context.Context) error {
	if err := r.Playback.Start(); err != nil {
		return fmt.Errorf("runtime: start playback: %w", err)
	}

	if err := r.dialBridgeEndpoints(ctx); err != nil {
		r.Playback.Stop()
		return err
	}

	if err := r.Mic.Start(mic.ModePlain); err != nil {
		r.Playback.Stop()
		return fmt.Errorf("runtime: start mic: %w", err)
	}

	if err := r.dispatcher.Start(ctx, r.cfg.SpecPath, r.cfg.NodeEnv); err != nil {
		r.Mic.Stop()
		r.Playback.Stop()
		return fmt.Errorf("runtime: start dispatcher: %w", err)
	}

	return nil
}

func (r *Runtime) dialBridgeEndpoints(ctx context.Context) error {
	if r.cfg.Endpoints.AudioPlayer != "" {
		conn, err := dataflow.DialNode(ctx, r.cfg.Endpoints.AudioPlayer)
		if err != nil {
			return fmt.Errorf("runtime: dial audio player node: %w", err)
		}
		r.audioPlayerConn = conn
		r.AudioPlayer.Source = conn
		r.AudioPlayer.Sink = conn
	}
	if r.cfg.Endpoints.PromptInput != "" {
		conn, err := dataflow.DialNode(ctx, r.cfg.Endpoints.PromptInput)
		if err != nil {
			return fmt.Errorf("runtime: dial prompt input node: %w", err)
		}
		r.promptInputConn = conn
		r.PromptInput.Source = conn
		r.PromptInput.Sink = conn
	}
	if r.cfg.Endpoints.SystemLog != "" {
		conn, err := dataflow.DialNode(ctx, r.cfg.Endpoints.SystemLog)
		if err != nil {
			return fmt.Errorf("runtime: dial system log node: %w", err)
		}
		r.systemLogConn = conn
		r.SystemLog.Source = conn
	}
	return nil
}

// Stop tears down the dispatcher, mic capture, playback device, and any
// dialed bridge connections, in reverse startup order.
func (r *Runtime) Stop(ctx context.Context) error {
	if err := r.dispatcher.Stop(ctx); err != nil {
		return err
	}
	if err := r.Mic.Stop(); err != nil {
		return err
	}
	if err := r.Playback.Stop(); err != nil {
		return err
	}
	for _, conn := range []*dataflow.NodeConn{r.audioPlayerConn, r.promptInputConn, r.systemLogConn} {
		if conn != nil {
			_ = conn.Close()
		}
	}
	return nil
}

// SetMuted toggles force-mute on the playback engine without pausing
// (spec.md §5 "mute without pausing").
func (r *Runtime) SetMuted(muted bool) {
	if muted {
		r.Playback.SignalClear()
	} else {
		r.Playback.Unmute()
	}
}

// ToggleAEC switches the mic bridge between Plain and AEC capture modes
// (spec.md §4.3 "Mode switching").
func (r *Runtime) ToggleAEC(useAEC bool) error {
	mode := mic.ModePlain
	if useAEC {
		mode = mic.ModeAEC
	}
	return r.Mic.SwitchMode(mode)
}

// SendPrompt forwards a user-issued prompt to the dataflow via the Prompt
// Input Bridge.
func (r *Runtime) SendPrompt(ctx context.Context, text string) error {
	return r.PromptInput.SendPrompt(ctx, text)
}

// SignalInterrupt implements the turn-coordination "reset on human
// interrupt" signal (spec.md §4.6): called when the external controller
// observes speech_started, it smart-resets playback and enters the Audio
// Player Bridge's filtering mode for qid.
func (r *Runtime) SignalInterrupt(qid string) {
	r.Playback.SmartReset(qid)
	r.AudioPlayer.SignalReset(qid)
}

// Tick drives the UI-thread turn-coordination signal: forwarding the
// playback engine's current buffer fill outbound as buffer_status (spec.md
// §4.6 "Buffer status"). Call on a periodic timer (typically 50ms).
func (r *Runtime) Tick(ctx context.Context) {
	r.AudioPlayer.UpdateBufferStatus(ctx, r.Playback.BufferFillPercentage())
}
