package bridges

import (
	"context"
	"time"

	"github.com/mofa-studio/mofa-core/internal/logging"
	"github.com/mofa-studio/mofa-core/pkg/dataflow"
	"github.com/mofa-studio/mofa-core/pkg/hub"
)

// PromptInputBridge is the Prompt Input Bridge (spec.md §4.5.2): it turns
// inbound LLM text/status events into ChatMessage pushes, and forwards
// user-issued control commands outbound.
type PromptInputBridge struct {
	Source EnvelopeSource
	Sink   EnvelopeSink
	Hub    *hub.Hub
	Logger logging.Logger
}

// NewPromptInputBridge constructs a PromptInputBridge.
func NewPromptInputBridge(source EnvelopeSource, sink EnvelopeSink, h *hub.Hub, logger logging.Logger) *PromptInputBridge {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &PromptInputBridge{Source: source, Sink: sink, Hub: h, Logger: logger}
}

func (b *PromptInputBridge) Name() string { return "prompt_input" }

// Run loops receiving inbound LLM text events until ctx is cancelled.
func (b *PromptInputBridge) Run(ctx context.Context) error {
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

func (b *PromptInputBridge) handle(env dataflow.Envelope) {
	if b.Hub == nil {
		return
	}
	participant, _ := env.Metadata.StringField(dataflow.MetaParticipant)
	qid, _ := env.Metadata.StringField(dataflow.MetaQuestionID)
	sessionStatus, _ := env.Metadata.StringField(dataflow.MetaSessionStatus)

	text := ""
	if v, ok := env.Metadata["text"]; ok {
		text = v.AsString()
	}

	// Streaming is always true going in: this event is one chunk of an
	// in-progress utterance, which is what lets ChatState.Push consolidate
	// it with the previous chunk for the same participant+question. The
	// Push call's complete argument is what actually closes the bubble.
	msg := hub.ChatMessage{
		Sender:        "assistant",
		Content:       text,
		Timestamp:     time.Now().Format("15:04:05"),
		ParticipantID: participant,
		QuestionID:    qid,
		Streaming:     true,
	}
	b.Hub.Chat.Push(msg, sessionStatus == "complete")
}

// SendPrompt issues a send_prompt(text) control command outbound, used by
// the UI to forward a typed-in user prompt into the dataflow.
func (b *PromptInputBridge) SendPrompt(ctx context.Context, text string) error {
	if b.Sink == nil {
		return nil
	}
	return b.Sink.Send(ctx, dataflow.Envelope{
		Node:   b.Name(),
		Output: "send_prompt",
		Metadata: dataflow.Metadata{
			"text": dataflow.StringValue(text),
		},
	})
}

// SendControl issues a bare control command (start, stop, reset) outbound.
func (b *PromptInputBridge) SendControl(ctx context.Context, command string) error {
	if b.Sink == nil {
		return nil
	}
	return b.Sink.Send(ctx, dataflow.Envelope{
		Node:   b.Name(),
		Output: command,
	})
}
