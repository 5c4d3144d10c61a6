package bridges

import (
	"context"
	"time"

	"github.com/mofa-studio/mofa-core/internal/logging"
	"github.com/mofa-studio/mofa-core/internal/metrics"
	"github.com/mofa-studio/mofa-core/pkg/dataflow"
	"github.com/mofa-studio/mofa-core/pkg/hub"
)

// logLevelOrder ranks hub.LogLevel for the write-time min_level filter
// (spec.md §4.5.3, §9 "write-time filtering").
var logLevelOrder = map[hub.LogLevel]int{
	hub.LevelDebug: 0,
	hub.LevelInfo:  1,
	hub.LevelWarn:  2,
	hub.LevelError: 3,
}

// SystemLogBridge is the System Log Bridge (spec.md §4.5.3): it consumes
// log outputs from every node in the dataflow and pushes entries that meet
// a runtime minimum level to the Shared State log ring.
type SystemLogBridge struct {
	Source EnvelopeSource
	Hub    *hub.Hub
	Logger logging.Logger
	Metrics *metrics.Registry

	minLevel hub.LogLevel
}

// NewSystemLogBridge constructs a SystemLogBridge with the given initial
// minimum level.
func NewSystemLogBridge(source EnvelopeSource, h *hub.Hub, logger logging.Logger, reg *metrics.Registry, minLevel hub.LogLevel) *SystemLogBridge {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if _, ok := logLevelOrder[minLevel]; !ok {
		minLevel = hub.LevelInfo
	}
	return &SystemLogBridge{Source: source, Hub: h, Logger: logger, Metrics: reg, minLevel: minLevel}
}

func (b *SystemLogBridge) Name() string { return "system_log" }

// SetMinLevel changes the runtime filter floor; entries below it are
// dropped at write time and never reach the ring.
func (b *SystemLogBridge) SetMinLevel(level hub.LogLevel) {
	if _, ok := logLevelOrder[level]; ok {
		b.minLevel = level
	}
}

// Run loops receiving inbound log events until ctx is cancelled.
func (b *SystemLogBridge) Run(ctx context.Context) error {
	for {
		env, err := b.Source.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		b.handle(env)
	}
}

func (b *SystemLogBridge) handle(env dataflow.Envelope) {
	level := hub.LevelInfo
	if v, ok := env.Metadata["level"]; ok {
		level = hub.LogLevel(v.AsString())
	}
	if logLevelOrder[level] < logLevelOrder[b.minLevel] {
		return
	}

	node := env.Node
	message := ""
	if v, ok := env.Metadata["message"]; ok {
		message = v.AsString()
	}

	if b.Hub == nil {
		return
	}
	dropped := b.Hub.Logs.Push(hub.LogEntry{
		Level:     level,
		Node:      node,
		Message:   message,
		Timestamp: time.Now(),
	})
	if dropped && b.Metrics != nil {
		b.Metrics.IncDroppedLogEntries(1)
	}
}
