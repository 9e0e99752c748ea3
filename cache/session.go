package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/c360/cachestream/errors"
	"github.com/c360/cachestream/message"
	"github.com/c360/cachestream/metric"
)

// Session issues cache requests over a Transport and tracks every request
// in flight. A session may run many concurrent requests; the outstanding
// set is internally synchronized, individual messages are not.
type Session struct {
	cfg       Config
	transport Transport
	handler   MessageHandler
	log       *slog.Logger
	metrics   *metric.Metrics

	mu          sync.Mutex
	outstanding map[uuid.UUID]*request
	destroyed   bool

	// slots bounds simultaneously outstanding requests.
	slots chan struct{}
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) SessionOption {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics exports request metrics through the registry's core
// metrics. If registry is nil, this option is ignored.
func WithMetrics(registry *metric.MetricsRegistry) SessionOption {
	return func(s *Session) {
		if registry != nil {
			s.metrics = registry.CoreMetrics()
		}
	}
}

// NewSession creates a cache session. Every message the session delivers,
// cached or live, goes through handler; the handler owns each message and
// must free it.
func NewSession(transport Transport, cfg Config, handler MessageHandler, options ...SessionOption) (*Session, error) {
	if transport == nil {
		return nil, errors.WrapInvalid(errors.ErrNilHandle, "Session", "NewSession", "nil transport")
	}
	if handler == nil {
		return nil, errors.WrapInvalid(errors.ErrNilHandle, "Session", "NewSession", "nil message handler")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "Session", "NewSession", "config validation failed")
	}

	s := &Session{
		cfg:         cfg,
		transport:   transport,
		handler:     handler,
		log:         slog.Default(),
		outstanding: make(map[uuid.UUID]*request),
		slots:       make(chan struct{}, cfg.maxOutstanding()),
	}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Request describes one cache request.
type Request struct {
	// RequestID is an application-chosen correlation id echoed in the
	// terminal Outcome.
	RequestID uint64

	// Topic to retrieve. Wildcards are accepted only with the
	// LiveDataFlowThrough policy.
	Topic string

	// Flags select the live-data policy and modifiers.
	Flags RequestFlags

	// Optional sequence range for multi-message replay.
	SequenceStart uint64
	SequenceEnd   uint64
	HasRange      bool

	// OnComplete receives the terminal outcome when NoWaitReply is set.
	// Required with NoWaitReply, ignored otherwise.
	OnComplete CompletionHandler
}

// IsWildcard reports whether a topic contains subscription wildcards.
func IsWildcard(topic string) bool {
	return strings.ContainsAny(topic, "*>")
}

// TopicMatches reports whether a concrete topic matches a subscription
// pattern. Levels are separated by '/'; '*' matches one level and '>'
// matches the remainder.
func TopicMatches(pattern, topic string) bool {
	p := strings.Split(pattern, "/")
	t := strings.Split(topic, "/")
	for i, lvl := range p {
		if lvl == ">" {
			return i < len(t)
		}
		if i >= len(t) {
			return false
		}
		if lvl != "*" && lvl != t[i] {
			return false
		}
	}
	return len(p) == len(t)
}

// validate performs the pre-flight checks that reject a request before
// anything is sent.
func (s *Session) validate(req Request) (RequestFlags, error) {
	policy, err := req.Flags.Policy()
	if err != nil {
		return 0, err
	}
	if req.Topic == "" {
		return 0, errors.WrapInvalid(errors.ErrInvalidParam, "Session", "CacheRequest",
			"topic is required")
	}
	if IsWildcard(req.Topic) && policy != LiveDataFlowThrough {
		return 0, errors.WrapInvalid(errors.ErrInvalidParam, "Session", "CacheRequest",
			"wildcard topics require the flow-through policy")
	}
	if req.Flags&NoWaitReply != 0 && req.OnComplete == nil {
		return 0, errors.WrapInvalid(errors.ErrInvalidParam, "Session", "CacheRequest",
			"NoWaitReply requires a completion handler")
	}
	return policy, nil
}

// acquireSlot applies the outstanding-request ceiling: it blocks for a
// free slot when BlockWhenFull is set and fails with ErrWouldBlock
// otherwise.
func (s *Session) acquireSlot(ctx context.Context) error {
	if s.cfg.BlockWhenFull {
		select {
		case s.slots <- struct{}{}:
			return nil
		case <-ctx.Done():
			return errors.WrapTransient(ctx.Err(), "Session", "CacheRequest",
				"cancelled while waiting for request capacity")
		}
	}
	select {
	case s.slots <- struct{}{}:
		return nil
	default:
		return errors.WrapTransient(errors.ErrWouldBlock, "Session", "CacheRequest",
			"outstanding request ceiling reached")
	}
}

func (s *Session) releaseSlot() {
	select {
	case <-s.slots:
	default:
	}
}

// CacheRequest issues one cache request. By default the call blocks until
// the request reaches its terminal state and returns that Outcome. With
// the NoWaitReply flag it instead returns an in-progress acknowledgment
// as soon as the request is buffered, and the terminal outcome is
// delivered exactly once through req.OnComplete.
//
// The returned error is non-nil only for pre-flight rejection; protocol
// failures, timeouts and cancellations are reported through the Outcome.
func (s *Session) CacheRequest(ctx context.Context, req Request) (Outcome, error) {
	fail := Outcome{RequestID: req.RequestID, Topic: req.Topic, Status: StatusFail}

	policy, err := s.validate(req)
	if err != nil {
		return fail, err
	}

	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return fail, errors.WrapInvalid(errors.ErrInvalidSession, "Session", "CacheRequest",
			"session has been destroyed")
	}
	s.mu.Unlock()

	if err := s.acquireSlot(ctx); err != nil {
		return fail, err
	}

	r := newRequest(ctx, s, req, policy)

	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		s.releaseSlot()
		return fail, errors.WrapInvalid(errors.ErrInvalidSession, "Session", "CacheRequest",
			"session has been destroyed")
	}
	s.outstanding[r.handle] = r
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.CacheRequestsOutstanding.Inc()
	}
	s.log.Debug("cache request issued",
		"request_id", req.RequestID,
		"topic", req.Topic,
		"policy", policy.String(),
		"handle", r.handle)

	r.start()

	if req.Flags&NoWaitReply != 0 {
		return Outcome{RequestID: req.RequestID, Topic: req.Topic, Status: StatusInProgress}, nil
	}
	return r.wait(), nil
}

// remove drops a finished request from the outstanding set.
func (s *Session) remove(r *request) {
	s.mu.Lock()
	delete(s.outstanding, r.handle)
	s.mu.Unlock()
	s.releaseSlot()
	if s.metrics != nil {
		s.metrics.CacheRequestsOutstanding.Dec()
	}
}

// snapshot returns the in-flight requests at this instant.
func (s *Session) snapshot() []*request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*request, 0, len(s.outstanding))
	for _, r := range s.outstanding {
		out = append(out, r)
	}
	return out
}

// CancelRequests forces every in-flight request on this session to its
// cancelled terminal state. Queued live data is still delivered
// afterward. Safe to call from any goroutine, concurrently with in-flight
// requests; blocked CacheRequest calls return promptly.
func (s *Session) CancelRequests() {
	for _, r := range s.snapshot() {
		r.terminate(ReasonRequestCancelled)
	}
}

// Destroy cancels every in-flight request with the session-destroyed
// reason and rejects all future requests. Safe to call from any
// goroutine.
func (s *Session) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	s.mu.Unlock()

	for _, r := range s.snapshot() {
		r.terminate(ReasonSessionDestroyed)
	}
	s.log.Debug("cache session destroyed")
}

// Outstanding returns the number of requests currently in flight.
func (s *Session) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outstanding)
}

// deliver hands one message to the receive path.
func (s *Session) deliver(m *message.Message, disposition string) {
	if s.metrics != nil {
		s.metrics.LiveMessagesDelivered.WithLabelValues(disposition).Inc()
	}
	s.handler(m)
}
