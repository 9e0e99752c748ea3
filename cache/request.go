package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360/cachestream/message"
	"github.com/c360/cachestream/pkg/buffer"
)

// liveQueueCapacity bounds how many live messages a Queue-policy request
// can hold while waiting for its cache response. Overflow drops the
// oldest buffered message.
const liveQueueCapacity = 4096

type requestState uint8

const (
	stateIdle requestState = iota
	stateSubscribing
	stateAwaitingResponse
	stateCompleted
	stateTimedOut
	stateCancelled
)

// request is one in-flight cache request. Exactly one terminal outcome is
// produced, guarded by the terminal sync.Once; every terminal path funnels
// through it.
type request struct {
	handle  uuid.UUID
	spec    Request
	policy  RequestFlags
	session *Session
	started time.Time

	ctx       context.Context
	cancelCtx context.CancelFunc

	mu          sync.Mutex
	state       requestState
	unsubscribe Unsubscribe

	queue    buffer.Buffer[*message.Message]
	terminal sync.Once
	done     chan Outcome
}

func newRequest(parent context.Context, s *Session, spec Request, policy RequestFlags) *request {
	r := &request{
		handle:  uuid.New(),
		spec:    spec,
		policy:  policy,
		session: s,
		started: time.Now(),
		state:   stateIdle,
		done:    make(chan Outcome, 1),
	}
	r.ctx, r.cancelCtx = context.WithTimeout(parent, s.cfg.RequestTimeout)
	if policy == LiveDataQueue {
		q, err := buffer.NewCircularBuffer[*message.Message](liveQueueCapacity,
			buffer.WithOverflowPolicy[*message.Message](buffer.DropOldest),
			buffer.WithDropCallback[*message.Message](func(m *message.Message) {
				s.log.Warn("live queue overflow, dropping oldest buffered message",
					"request_id", spec.RequestID, "topic", spec.Topic)
				_ = m.Free()
			}))
		if err == nil {
			r.queue = q
		}
	}
	return r
}

// start runs the subscription leg and launches the response wait. The
// caller's context bounds the whole request in addition to the configured
// timeout.
func (r *request) start() {
	r.setState(stateSubscribing)
	if r.spec.Flags&NoSubscribe == 0 {
		unsub, err := r.session.transport.Subscribe(r.ctx, r.spec.Topic, r.onLive)
		if err != nil {
			r.session.log.Error("cache request subscription failed",
				"request_id", r.spec.RequestID, "topic", r.spec.Topic, "error", err)
			r.finish(Outcome{
				RequestID: r.spec.RequestID,
				Topic:     r.spec.Topic,
				Status:    StatusIncomplete,
				Reason:    ReasonProtocolError,
			}, stateCompleted, false)
			return
		}
		r.mu.Lock()
		terminal := r.state == stateCompleted || r.state == stateTimedOut || r.state == stateCancelled
		if !terminal {
			r.unsubscribe = unsub
		}
		r.mu.Unlock()
		if terminal {
			// A concurrent cancel or destroy won the race.
			_ = unsub()
			return
		}
	}

	r.setState(stateAwaitingResponse)
	go r.awaitResponse()
}

func (r *request) setState(st requestState) {
	r.mu.Lock()
	r.state = st
	r.mu.Unlock()
}

func (r *request) isTerminal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == stateCompleted || r.state == stateTimedOut || r.state == stateCancelled
}

// wait blocks until the terminal outcome is produced.
func (r *request) wait() Outcome {
	return <-r.done
}

// onLive handles one live message arriving while the request is
// outstanding. Behavior depends on the live-data policy.
func (r *request) onLive(m *message.Message) {
	if r.isTerminal() {
		// Stragglers between completion and unsubscribe flow through.
		r.session.deliver(m, "live")
		return
	}

	switch r.policy {
	case LiveDataFulfill:
		// First matching live message completes the request; the message
		// itself is delivered ahead of the terminal outcome.
		r.session.deliver(m, "live")
		r.finish(Outcome{
			RequestID: r.spec.RequestID,
			Topic:     r.spec.Topic,
			Status:    StatusOK,
		}, stateCompleted, false)

	case LiveDataQueue:
		if r.queue != nil {
			if err := r.queue.Write(m); err == nil {
				return
			}
		}
		// Queue already closed by a racing terminal path.
		r.session.deliver(m, "live")

	case LiveDataFlowThrough:
		r.session.deliver(m, "live")
	}
}

// awaitResponse performs the request/reply leg and maps its result to a
// terminal outcome.
func (r *request) awaitResponse() {
	spec := RequestSpec{
		CacheName:     r.session.cfg.CacheName,
		Topic:         r.spec.Topic,
		MaxMessages:   r.session.cfg.MaxMessages,
		MaxAgeSeconds: r.session.cfg.MaxAgeSeconds,
		ReplyTo:       r.session.cfg.ReplyTo,
		SequenceStart: r.spec.SequenceStart,
		SequenceEnd:   r.spec.SequenceEnd,
		HasRange:      r.spec.HasRange,
	}

	resp, err := r.session.transport.CacheRequest(r.ctx, spec)
	if err != nil {
		switch {
		case r.ctx.Err() == context.DeadlineExceeded:
			r.finish(Outcome{
				RequestID: r.spec.RequestID,
				Topic:     r.spec.Topic,
				Status:    StatusIncomplete,
				Reason:    ReasonTimeout,
			}, stateTimedOut, true)
		case r.ctx.Err() == context.Canceled:
			// A terminal path already ran; finish is a no-op here.
			r.finish(Outcome{
				RequestID: r.spec.RequestID,
				Topic:     r.spec.Topic,
				Status:    StatusIncomplete,
				Reason:    ReasonRequestCancelled,
			}, stateCancelled, true)
		default:
			r.finish(Outcome{
				RequestID: r.spec.RequestID,
				Topic:     r.spec.Topic,
				Status:    StatusIncomplete,
				Reason:    ReasonProtocolError,
			}, stateCompleted, true)
		}
		return
	}

	r.completeWithResponse(resp)
}

// completeWithResponse delivers the cache response and, for the Queue
// policy, replays buffered live data cache-first before the terminal
// outcome is produced.
func (r *request) completeWithResponse(resp *Response) {
	r.terminal.Do(func() {
		r.setState(stateCompleted)

		status := message.StatusCached
		if resp.Suspect {
			status = message.StatusSuspect
		}
		for _, m := range resp.Messages {
			m.TagCacheStatus(status)
			r.session.deliver(m, "cached")
		}

		// Cache-delivered messages always precede buffered live data.
		r.drainQueue()

		outcome := Outcome{
			RequestID: r.spec.RequestID,
			Topic:     r.spec.Topic,
			Status:    StatusOK,
		}
		switch {
		case resp.Suspect:
			outcome.Status = StatusIncomplete
			outcome.Reason = ReasonSuspectData
		case resp.NoData && len(resp.Messages) == 0:
			outcome.Status = StatusIncomplete
			outcome.Reason = ReasonNoData
		}

		r.conclude(outcome)
	})
}

// terminate forces the request to a cancelled-class terminal state.
// Already-buffered live data is still delivered, after the outcome.
func (r *request) terminate(reason IncompleteReason) {
	st := stateCancelled
	r.finish(Outcome{
		RequestID: r.spec.RequestID,
		Topic:     r.spec.Topic,
		Status:    StatusIncomplete,
		Reason:    reason,
	}, st, true)
}

// finish produces the terminal outcome exactly once. When drainAfter is
// set, buffered live data is delivered after the outcome; the normal
// completion path instead drains before concluding.
func (r *request) finish(outcome Outcome, st requestState, drainAfter bool) {
	r.terminal.Do(func() {
		r.setState(st)
		r.conclude(outcome)
		if drainAfter {
			r.drainQueue()
		} else if r.queue != nil {
			r.queue.Clear()
			_ = r.queue.Close()
		}
	})
}

// conclude records metrics, tears down the request legs and delivers the
// outcome to the waiter and, if set, the completion handler.
func (r *request) conclude(outcome Outcome) {
	r.cancelCtx()

	r.mu.Lock()
	unsub := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()
	if unsub != nil {
		if err := unsub(); err != nil {
			r.session.log.Warn("unsubscribe failed",
				"request_id", r.spec.RequestID, "topic", r.spec.Topic, "error", err)
		}
	}

	r.session.remove(r)

	if m := r.session.metrics; m != nil {
		m.CacheRequestsTotal.WithLabelValues(r.policy.String(), outcome.Status.String()).Inc()
		m.CacheRequestDuration.WithLabelValues(r.policy.String()).
			Observe(time.Since(r.started).Seconds())
	}
	r.session.log.Debug("cache request terminal",
		"request_id", r.spec.RequestID,
		"topic", r.spec.Topic,
		"status", outcome.Status.String(),
		"reason", outcome.Reason.String())

	r.done <- outcome
	if r.spec.Flags&NoWaitReply != 0 && r.spec.OnComplete != nil {
		r.spec.OnComplete(outcome)
	}
}

// drainQueue delivers buffered live messages in arrival order and closes
// the queue.
func (r *request) drainQueue() {
	if r.queue == nil {
		return
	}
	for {
		m, ok := r.queue.Read()
		if !ok {
			break
		}
		r.session.deliver(m, "queued")
	}
	_ = r.queue.Close()
	// Sweep anything written in the window before Close took effect.
	for _, m := range r.queue.ReadBatch(liveQueueCapacity) {
		r.session.deliver(m, "queued")
	}
}
