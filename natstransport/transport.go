package natstransport

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/cachestream/cache"
	"github.com/c360/cachestream/errors"
	"github.com/c360/cachestream/message"
	"github.com/c360/cachestream/metric"
)

// ConnectionStatus represents the state of the NATS connection.
type ConnectionStatus int

// Possible connection statuses.
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
)

// String returns the string representation of ConnectionStatus.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// defaultRequestPrefix is the subject prefix cache requests are sent
// under.
const defaultRequestPrefix = "cachestream.cache"

// Transport implements cache.Transport over a NATS connection.
type Transport struct {
	url           string
	requestPrefix string
	clientName    string
	connectWait   time.Duration
	reconnectWait time.Duration
	maxReconnects int
	log           *slog.Logger
	metrics       *metric.Metrics

	status atomic.Value // ConnectionStatus

	mu   sync.Mutex
	conn *nats.Conn
}

// Option configures a Transport.
type Option func(*Transport)

// WithRequestPrefix overrides the subject prefix for cache requests.
func WithRequestPrefix(prefix string) Option {
	return func(t *Transport) {
		if prefix != "" {
			t.requestPrefix = prefix
		}
	}
}

// WithClientName sets the NATS client name.
func WithClientName(name string) Option {
	return func(t *Transport) { t.clientName = name }
}

// WithConnectWait bounds the initial connection attempt.
func WithConnectWait(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.connectWait = d
		}
	}
}

// WithTransportLogger sets the structured logger. Defaults to
// slog.Default.
func WithTransportLogger(log *slog.Logger) Option {
	return func(t *Transport) {
		if log != nil {
			t.log = log
		}
	}
}

// WithTransportMetrics exports connection metrics through the registry's
// core metrics. If registry is nil, this option is ignored.
func WithTransportMetrics(registry *metric.MetricsRegistry) Option {
	return func(t *Transport) {
		if registry != nil {
			t.metrics = registry.CoreMetrics()
		}
	}
}

// New creates a transport for the given NATS URL. Connect must be called
// before use.
func New(url string, options ...Option) *Transport {
	t := &Transport{
		url:           url,
		requestPrefix: defaultRequestPrefix,
		clientName:    "cachestream",
		connectWait:   5 * time.Second,
		reconnectWait: 2 * time.Second,
		maxReconnects: -1,
		log:           slog.Default(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(t)
		}
	}
	t.status.Store(StatusDisconnected)
	return t
}

// Status returns the current connection status.
func (t *Transport) Status() ConnectionStatus {
	return t.status.Load().(ConnectionStatus)
}

func (t *Transport) setConnected(connected bool) {
	if t.metrics == nil {
		return
	}
	if connected {
		t.metrics.TransportConnected.Set(1)
	} else {
		t.metrics.TransportConnected.Set(0)
	}
}

// Connect establishes the NATS connection.
func (t *Transport) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Transport", "Connect",
			"transport already connected")
	}

	t.status.Store(StatusConnecting)
	conn, err := nats.Connect(t.url,
		nats.Name(t.clientName),
		nats.Timeout(t.connectWait),
		nats.ReconnectWait(t.reconnectWait),
		nats.MaxReconnects(t.maxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			t.status.Store(StatusReconnecting)
			t.setConnected(false)
			t.log.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			t.status.Store(StatusConnected)
			t.setConnected(true)
			if t.metrics != nil {
				t.metrics.TransportReconnects.Inc()
			}
			t.log.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			t.status.Store(StatusDisconnected)
			t.setConnected(false)
		}),
	)
	if err != nil {
		t.status.Store(StatusDisconnected)
		return errors.WrapTransient(err, "Transport", "Connect",
			"connect to "+t.url)
	}

	t.conn = conn
	t.status.Store(StatusConnected)
	t.setConnected(true)
	t.log.Info("nats connected", "url", t.url)
	return nil
}

// Close drains and closes the connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return errors.WrapInvalid(errors.ErrAlreadyStopped, "Transport", "Close",
			"transport not connected")
	}
	if err := t.conn.Drain(); err != nil {
		t.conn.Close()
	}
	t.conn = nil
	t.status.Store(StatusDisconnected)
	t.setConnected(false)
	return nil
}

func (t *Transport) connection() (*nats.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil, errors.WrapTransient(errors.ErrNoConnection, "Transport", "connection",
			"transport is not connected")
	}
	return t.conn, nil
}

// Subscribe opens a live subscription on topic. Inbound payloads are
// decoded into messages and handed to handler.
func (t *Transport) Subscribe(_ context.Context, topic string, handler cache.MessageHandler) (cache.Unsubscribe, error) {
	conn, err := t.connection()
	if err != nil {
		return nil, err
	}

	sub, err := conn.Subscribe(ToSubject(topic), func(msg *nats.Msg) {
		m, err := DecodeMessage(msg.Subject, msg.Data, time.Now())
		if err != nil {
			t.log.Warn("dropping undecodable live message",
				"subject", msg.Subject, "error", err)
			return
		}
		handler(m)
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "Transport", "Subscribe",
			"subscribe to "+topic)
	}

	return func() error {
		if err := sub.Unsubscribe(); err != nil {
			return errors.WrapTransient(err, "Transport", "Unsubscribe",
				"unsubscribe from "+topic)
		}
		return nil
	}, nil
}

// CacheRequest performs one request/reply exchange against the cache
// cluster at <prefix>.<cache-name>.
func (t *Transport) CacheRequest(ctx context.Context, spec cache.RequestSpec) (*cache.Response, error) {
	conn, err := t.connection()
	if err != nil {
		return nil, err
	}

	payload, err := cache.EncodeRequest(spec)
	if err != nil {
		return nil, errors.Wrap(err, "Transport", "CacheRequest", "encode request")
	}

	subject := t.requestPrefix + "." + spec.CacheName
	reply, err := conn.RequestWithContext(ctx, subject, payload)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.WrapTransient(err, "Transport", "CacheRequest",
			"request to "+subject)
	}

	resp, err := DecodeResponse(reply.Data, time.Now())
	if err != nil {
		return nil, errors.Wrap(err, "Transport", "CacheRequest", "decode response")
	}
	for _, m := range resp.Messages {
		m.TagCacheStatus(message.StatusCached)
	}
	return resp, nil
}
