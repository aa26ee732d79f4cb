package llmclient

import (
	"context"
	"encoding/json"
	"sync"
)

// FakeClient returns scripted JSON payloads for offline use and tests.
// Replies are consumed in FIFO order; when the queue is empty a minimal
// canned turn payload is returned so the API stays usable without keys.
type FakeClient struct {
	mu    sync.Mutex
	queue []fakeReply
	calls []FakeCall
}

type fakeReply struct {
	raw json.RawMessage
	err error
}

// FakeCall records a single GenerateJSON invocation.
type FakeCall struct {
	Prompt string
	Input  any
}

func NewFakeClient() *FakeClient { return &FakeClient{} }

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

// Enqueue schedules a raw JSON reply.
func (f *FakeClient) Enqueue(raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, fakeReply{raw: json.RawMessage(raw)})
}

// EnqueueErr schedules a failing reply.
func (f *FakeClient) EnqueueErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, fakeReply{err: err})
}

// Calls returns a copy of the recorded invocations.
func (f *FakeClient) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *FakeClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, FakeCall{Prompt: prompt, Input: input})
	if len(f.queue) > 0 {
		reply := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		if reply.err != nil {
			return nil, reply.err
		}
		return reply.raw, nil
	}
	f.mu.Unlock()

	obj := map[string]any{
		"description":          "The scene continues quietly. (offline mode)",
		"options":              []string{"Look around", "Wait"},
		"is_ended":             false,
		"should_update_visuals": false,
	}
	b, _ := json.Marshal(obj)
	return json.RawMessage(b), nil
}

// FakeImageClient returns a fixed tiny PNG for every prompt.
type FakeImageClient struct {
	mu    sync.Mutex
	calls int
	fail  error
}

func NewFakeImageClient() *FakeImageClient { return &FakeImageClient{} }

func (f *FakeImageClient) Name() string { return "FakeImage" }
func (f *FakeImageClient) Close() error { return nil }

// FailWith makes every subsequent call return err.
func (f *FakeImageClient) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

// CallCount reports how many times GenerateImage ran.
func (f *FakeImageClient) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// 1x1 transparent PNG.
var tinyPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func (f *FakeImageClient) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	return append([]byte(nil), tinyPNG...), nil
}
