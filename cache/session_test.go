package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cachestream/errors"
	"github.com/c360/cachestream/message"
)

// fakeTransport is an in-memory Transport. Cache responses are gated so
// tests control exactly when the response "arrives".
type fakeTransport struct {
	mu       sync.Mutex
	handlers map[int]subscription
	nextID   int
	specs    []RequestSpec

	gate chan struct{} // response released when closed; nil means immediate
	resp *Response
	err  error
}

type subscription struct {
	pattern string
	handler MessageHandler
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: make(map[int]subscription)}
}

func (f *fakeTransport) Subscribe(_ context.Context, topic string, handler MessageHandler) (Unsubscribe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.handlers[id] = subscription{pattern: topic, handler: handler}
	return func() error {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, id)
		return nil
	}, nil
}

func (f *fakeTransport) CacheRequest(ctx context.Context, spec RequestSpec) (*Response, error) {
	f.mu.Lock()
	f.specs = append(f.specs, spec)
	gate, resp, err := f.gate, f.resp, f.err
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return &Response{NoData: true}, nil
	}
	return resp, nil
}

// publish delivers a live message to every matching subscription.
func (f *fakeTransport) publish(topic string, m *message.Message) {
	f.mu.Lock()
	var targets []MessageHandler
	for _, sub := range f.handlers {
		if TopicMatches(sub.pattern, topic) {
			targets = append(targets, sub.handler)
		}
	}
	f.mu.Unlock()
	for _, h := range targets {
		h(m)
	}
}

func (f *fakeTransport) subscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

// recorder collects delivered messages by sender id, in order.
type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) handle(m *message.Message) {
	r.mu.Lock()
	r.order = append(r.order, m.SenderID())
	r.mu.Unlock()
	_ = m.Free()
}

func (r *recorder) delivered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func liveMessage(sender string) *message.Message {
	m := message.New()
	m.SetSenderID(sender)
	return m
}

func cachedMessage(sender string) *message.Message {
	return message.NewInbound(message.Inbound{SenderID: sender})
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.CacheName = "test-cache"
	return cfg
}

func newTestSession(t *testing.T, transport Transport, handler MessageHandler, mutate ...func(*Config)) *Session {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	s, err := NewSession(transport, cfg, handler)
	require.NoError(t, err)
	return s
}

func TestFulfillCompletesOnFirstLiveMessage(t *testing.T) {
	ft := newFakeTransport()
	ft.gate = make(chan struct{}) // response never arrives on its own
	ft.resp = &Response{Messages: []*message.Message{cachedMessage("c1")}}
	rec := &recorder{}
	s := newTestSession(t, ft, rec.handle)

	done := make(chan Outcome, 1)
	go func() {
		out, err := s.CacheRequest(context.Background(), Request{
			RequestID: 1,
			Topic:     "orders/filled",
			Flags:     LiveDataFulfill,
		})
		require.NoError(t, err)
		done <- out
	}()

	// Wait for the subscription leg, then publish a live message.
	require.Eventually(t, func() bool { return ft.subscriberCount() == 1 },
		time.Second, 5*time.Millisecond)
	ft.publish("orders/filled", liveMessage("live1"))

	out := <-done
	assert.Equal(t, StatusOK, out.Status)
	assert.Equal(t, uint64(1), out.RequestID)
	assert.Equal(t, []string{"live1"}, rec.delivered())

	// Releasing the late cache response must not deliver anything more.
	close(ft.gate)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"live1"}, rec.delivered())
	assert.Equal(t, 0, s.Outstanding())
}

func TestQueuePolicyDeliversCacheFirst(t *testing.T) {
	ft := newFakeTransport()
	ft.gate = make(chan struct{})
	ft.resp = &Response{Messages: []*message.Message{cachedMessage("c1")}}
	rec := &recorder{}
	s := newTestSession(t, ft, rec.handle)

	done := make(chan Outcome, 1)
	go func() {
		out, err := s.CacheRequest(context.Background(), Request{
			RequestID: 2,
			Topic:     "orders/filled",
			Flags:     LiveDataQueue,
		})
		require.NoError(t, err)
		done <- out
	}()

	require.Eventually(t, func() bool { return ft.subscriberCount() == 1 },
		time.Second, 5*time.Millisecond)

	// Two live messages arrive while the response is outstanding; they
	// must be held back.
	ft.publish("orders/filled", liveMessage("live1"))
	ft.publish("orders/filled", liveMessage("live2"))
	assert.Empty(t, rec.delivered())

	close(ft.gate)
	out := <-done
	assert.Equal(t, StatusOK, out.Status)
	assert.Equal(t, []string{"c1", "live1", "live2"}, rec.delivered())
}

func TestFlowThroughDeliversLiveImmediately(t *testing.T) {
	ft := newFakeTransport()
	ft.gate = make(chan struct{})
	rec := &recorder{}
	s := newTestSession(t, ft, rec.handle)

	done := make(chan Outcome, 1)
	go func() {
		out, err := s.CacheRequest(context.Background(), Request{
			RequestID: 3,
			Topic:     "orders/*",
			Flags:     LiveDataFlowThrough,
		})
		require.NoError(t, err)
		done <- out
	}()

	require.Eventually(t, func() bool { return ft.subscriberCount() == 1 },
		time.Second, 5*time.Millisecond)

	// Live data flows through while the request stays outstanding.
	ft.publish("orders/filled", liveMessage("live1"))
	require.Eventually(t, func() bool { return len(rec.delivered()) == 1 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, s.Outstanding())

	close(ft.gate)
	out := <-done
	assert.Equal(t, StatusIncomplete, out.Status) // empty response → no data
	assert.Equal(t, ReasonNoData, out.Reason)
}

func TestTimeoutProducesIncompleteOnce(t *testing.T) {
	ft := newFakeTransport()
	ft.gate = make(chan struct{}) // never released
	rec := &recorder{}
	s := newTestSession(t, ft, rec.handle)

	// The caller context bounds the request below the configured timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	out, err := s.CacheRequest(ctx, Request{
		RequestID: 4,
		Topic:     "orders/filled",
		Flags:     LiveDataFulfill,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusIncomplete, out.Status)
	assert.Equal(t, ReasonTimeout, out.Reason)
	assert.Equal(t, 0, s.Outstanding())
}

func TestNoWaitReplyDeliversOutcomeViaCallback(t *testing.T) {
	ft := newFakeTransport()
	ft.gate = make(chan struct{})
	rec := &recorder{}
	s := newTestSession(t, ft, rec.handle)

	outcomes := make(chan Outcome, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	ack, err := s.CacheRequest(ctx, Request{
		RequestID:  5,
		Topic:      "orders/filled",
		Flags:      LiveDataFulfill | NoWaitReply,
		OnComplete: func(o Outcome) { outcomes <- o },
	})
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, ack.Status)

	select {
	case out := <-outcomes:
		assert.Equal(t, StatusIncomplete, out.Status)
		assert.Equal(t, ReasonTimeout, out.Reason)
		assert.Equal(t, uint64(5), out.RequestID)
	case <-time.After(2 * time.Second):
		t.Fatal("completion callback never fired")
	}
}

func TestCancelUnblocksInFlightRequest(t *testing.T) {
	ft := newFakeTransport()
	ft.gate = make(chan struct{}) // would block for the full timeout
	rec := &recorder{}
	s := newTestSession(t, ft, rec.handle)

	go func() {
		time.Sleep(100 * time.Millisecond)
		s.CancelRequests()
	}()

	start := time.Now()
	out, err := s.CacheRequest(context.Background(), Request{
		RequestID: 6,
		Topic:     "orders/filled",
		Flags:     LiveDataFulfill,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusIncomplete, out.Status)
	assert.Equal(t, ReasonRequestCancelled, out.Reason)
	assert.Less(t, time.Since(start), 5*time.Second,
		"cancel must unblock well before the configured timeout")
}

func TestCancelDeliversQueuedLiveData(t *testing.T) {
	ft := newFakeTransport()
	ft.gate = make(chan struct{})
	rec := &recorder{}
	s := newTestSession(t, ft, rec.handle)

	done := make(chan Outcome, 1)
	go func() {
		out, err := s.CacheRequest(context.Background(), Request{
			RequestID: 7,
			Topic:     "orders/filled",
			Flags:     LiveDataQueue,
		})
		require.NoError(t, err)
		done <- out
	}()

	require.Eventually(t, func() bool { return ft.subscriberCount() == 1 },
		time.Second, 5*time.Millisecond)
	ft.publish("orders/filled", liveMessage("live1"))

	s.CancelRequests()
	out := <-done
	assert.Equal(t, ReasonRequestCancelled, out.Reason)

	// Buffered live data is still delivered after cancellation.
	require.Eventually(t, func() bool { return len(rec.delivered()) == 1 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"live1"}, rec.delivered())
}

func TestDestroyTerminatesAndRejects(t *testing.T) {
	ft := newFakeTransport()
	ft.gate = make(chan struct{})
	rec := &recorder{}
	s := newTestSession(t, ft, rec.handle)

	done := make(chan Outcome, 1)
	go func() {
		out, err := s.CacheRequest(context.Background(), Request{
			RequestID: 8,
			Topic:     "orders/filled",
			Flags:     LiveDataFulfill,
		})
		require.NoError(t, err)
		done <- out
	}()

	require.Eventually(t, func() bool { return s.Outstanding() == 1 },
		time.Second, 5*time.Millisecond)
	s.Destroy()

	out := <-done
	assert.Equal(t, StatusIncomplete, out.Status)
	assert.Equal(t, ReasonSessionDestroyed, out.Reason)

	_, err := s.CacheRequest(context.Background(), Request{
		RequestID: 9,
		Topic:     "orders/filled",
		Flags:     LiveDataFulfill,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidSession)
}

func TestSuspectResponse(t *testing.T) {
	ft := newFakeTransport()
	ft.resp = &Response{
		Messages: []*message.Message{cachedMessage("c1")},
		Suspect:  true,
	}
	rec := &recorder{}
	s := newTestSession(t, ft, rec.handle)

	out, err := s.CacheRequest(context.Background(), Request{
		RequestID: 10,
		Topic:     "orders/filled",
		Flags:     LiveDataQueue,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusIncomplete, out.Status)
	assert.Equal(t, ReasonSuspectData, out.Reason)
	assert.Equal(t, []string{"c1"}, rec.delivered())
}

func TestOutstandingCeiling(t *testing.T) {
	ft := newFakeTransport()
	ft.gate = make(chan struct{})
	defer close(ft.gate)
	rec := &recorder{}
	s := newTestSession(t, ft, rec.handle, func(c *Config) { c.MaxOutstanding = 1 })

	outcomes := make(chan Outcome, 1)
	_, err := s.CacheRequest(context.Background(), Request{
		RequestID:  11,
		Topic:      "orders/filled",
		Flags:      LiveDataFulfill | NoWaitReply,
		OnComplete: func(o Outcome) { outcomes <- o },
	})
	require.NoError(t, err)

	// The second request exceeds the ceiling and fails fast.
	_, err = s.CacheRequest(context.Background(), Request{
		RequestID: 12,
		Topic:     "orders/filled",
		Flags:     LiveDataFulfill,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrWouldBlock)
	assert.True(t, errors.IsTransient(err))
}

func TestPreflightValidation(t *testing.T) {
	ft := newFakeTransport()
	rec := &recorder{}
	s := newTestSession(t, ft, rec.handle)

	tests := []struct {
		name string
		req  Request
	}{
		{"no policy", Request{Topic: "t"}},
		{"two policies", Request{Topic: "t", Flags: LiveDataFulfill | LiveDataQueue}},
		{"empty topic", Request{Flags: LiveDataFulfill}},
		{"wildcard with fulfill", Request{Topic: "orders/*", Flags: LiveDataFulfill}},
		{"wildcard with queue", Request{Topic: "orders/>", Flags: LiveDataQueue}},
		{"nowait without handler", Request{Topic: "t", Flags: LiveDataFulfill | NoWaitReply}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := s.CacheRequest(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidParam)
			assert.Equal(t, StatusFail, out.Status)
		})
	}
}

func TestRequestSpecCarriesSessionConfig(t *testing.T) {
	ft := newFakeTransport()
	rec := &recorder{}
	s := newTestSession(t, ft, rec.handle, func(c *Config) {
		c.MaxMessages = 10
		c.MaxAgeSeconds = 60
	})

	_, err := s.CacheRequest(context.Background(), Request{
		RequestID:     13,
		Topic:         "orders/filled",
		Flags:         LiveDataFulfill,
		SequenceStart: 5,
		SequenceEnd:   9,
		HasRange:      true,
	})
	require.NoError(t, err)

	require.Len(t, ft.specs, 1)
	spec := ft.specs[0]
	assert.Equal(t, "test-cache", spec.CacheName)
	assert.Equal(t, "orders/filled", spec.Topic)
	assert.Equal(t, 10, spec.MaxMessages)
	assert.Equal(t, 60, spec.MaxAgeSeconds)
	assert.True(t, spec.HasRange)
	assert.Equal(t, uint64(5), spec.SequenceStart)
}

func TestTopicMatches(t *testing.T) {
	tests := []struct {
		pattern string
		topic   string
		want    bool
	}{
		{"orders/filled", "orders/filled", true},
		{"orders/filled", "orders/open", false},
		{"orders/*", "orders/filled", true},
		{"orders/*", "orders/filled/eu", false},
		{"orders/>", "orders/filled/eu", true},
		{"orders/>", "orders", false},
		{"*/filled", "orders/filled", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TopicMatches(tt.pattern, tt.topic),
			"pattern %q topic %q", tt.pattern, tt.topic)
	}
}
