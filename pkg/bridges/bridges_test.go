package bridges

import (
	"context"
	"sync"

	"github.com/mofa-studio/mofa-core/pkg/dataflow"
)

// fakeSource replays a fixed queue of envelopes, then reports ctx.Err() once
// drained and the caller's context is cancelled; otherwise it blocks until
// cancellation so Run's receive loop behaves like a real blocking read.
type fakeSource struct {
	mu   sync.Mutex
	envs []dataflow.Envelope
}

func newFakeSource(envs ...dataflow.Envelope) *fakeSource {
	return &fakeSource{envs: envs}
}

func (f *fakeSource) Receive(ctx context.Context) (dataflow.Envelope, error) {
	f.mu.Lock()
	if len(f.envs) > 0 {
		e := f.envs[0]
		f.envs = f.envs[1:]
		f.mu.Unlock()
		return e, nil
	}
	f.mu.Unlock()

	<-ctx.Done()
	return dataflow.Envelope{}, ctx.Err()
}

// fakeSink records every envelope sent to it.
type fakeSink struct {
	mu   sync.Mutex
	sent []dataflow.Envelope
}

func (f *fakeSink) Send(ctx context.Context, e dataflow.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, e)
	return nil
}

func (f *fakeSink) outputs(kind string) []dataflow.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []dataflow.Envelope
	for _, e := range f.sent {
		if e.Output == kind {
			out = append(out, e)
		}
	}
	return out
}
