package bridges

import (
	"context"
	"testing"

	"github.com/mofa-studio/mofa-core/pkg/dataflow"
	"github.com/mofa-studio/mofa-core/pkg/hub"
)

func llmTextEnvelope(qid, participant, status, text string) dataflow.Envelope {
	return dataflow.Envelope{
		Node:   "llm",
		Output: "text",
		Metadata: dataflow.Metadata{
			dataflow.MetaQuestionID:    dataflow.StringValue(qid),
			dataflow.MetaParticipant:   dataflow.StringValue(participant),
			dataflow.MetaSessionStatus: dataflow.StringValue(status),
			"text":                     dataflow.StringValue(text),
		},
	}
}

func TestPromptInputStreamingThenCompleteConsolidates(t *testing.T) {
	h := hub.New()
	b := NewPromptInputBridge(nil, nil, h, nil)

	b.handle(llmTextEnvelope("1", "alice", "started", "Hel"))
	b.handle(llmTextEnvelope("1", "alice", "streaming", "Hello"))
	b.handle(llmTextEnvelope("1", "alice", "complete", "Hello there"))

	if got := h.Chat.Len(); got != 1 {
		t.Fatalf("chat length = %d, want 1 (streaming updates should consolidate)", got)
	}

	msgs, dirty := h.Chat.ReadIfDirty()
	if !dirty || len(msgs) != 1 {
		t.Fatalf("expected one consolidated message, got dirty=%v msgs=%+v", dirty, msgs)
	}
	if msgs[0].Content != "Hello there" {
		t.Fatalf("content = %q, want %q", msgs[0].Content, "Hello there")
	}
	if msgs[0].Streaming {
		t.Fatal("expected Streaming=false after session_status=complete")
	}
}

func TestPromptInputDifferentQuestionIDsDoNotConsolidate(t *testing.T) {
	h := hub.New()
	b := NewPromptInputBridge(nil, nil, h, nil)

	b.handle(llmTextEnvelope("1", "alice", "streaming", "first"))
	b.handle(llmTextEnvelope("2", "alice", "streaming", "second"))

	if got := h.Chat.Len(); got != 2 {
		t.Fatalf("chat length = %d, want 2", got)
	}
}

func TestPromptInputSendPromptEmitsOutbound(t *testing.T) {
	sink := &fakeSink{}
	b := NewPromptInputBridge(nil, sink, nil, nil)

	if err := b.SendPrompt(context.Background(), "what time is it"); err != nil {
		t.Fatalf("SendPrompt: %v", err)
	}
	outs := sink.outputs("send_prompt")
	if len(outs) != 1 {
		t.Fatalf("send_prompt emissions = %d, want 1", len(outs))
	}
	if got, _ := outs[0].Metadata.StringField("text"); got != "what time is it" {
		t.Fatalf("text = %q, want %q", got, "what time is it")
	}
}

func TestPromptInputSendControlEmitsOutbound(t *testing.T) {
	sink := &fakeSink{}
	b := NewPromptInputBridge(nil, sink, nil, nil)

	if err := b.SendControl(context.Background(), "reset"); err != nil {
		t.Fatalf("SendControl: %v", err)
	}
	if got := len(sink.outputs("reset")); got != 1 {
		t.Fatalf("reset emissions = %d, want 1", got)
	}
}
