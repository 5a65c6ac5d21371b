package nats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aescanero/tradehost/pkg/domain"
	"github.com/aescanero/tradehost/pkg/ports"
	natsgo "github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

var ErrAlreadyRegistered = errors.New("participant already registered")

// Config holds the NATS connection settings
type Config struct {
	URL            string
	SubjectPrefix  string
	ClientName     string
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
	FlushTimeout   time.Duration
}

// Bus implements ports.Bus over NATS core request/reply
type Bus struct {
	conn      *natsgo.Conn
	prefix    string
	local     domain.NodeAddress
	codec     *Codec
	logger    *zap.Logger
	connected atomic.Bool

	mu   sync.Mutex
	subs map[string]*natsgo.Subscription
}

// Connect dials the server and returns a bus whose outgoing messages carry
// local as the sender address
func Connect(cfg Config, local domain.NodeAddress, logger *zap.Logger) (*Bus, error) {
	b := &Bus{
		prefix: cfg.SubjectPrefix,
		local:  local,
		codec:  NewCodec(),
		logger: logger,
		subs:   make(map[string]*natsgo.Subscription),
	}

	opts := []natsgo.Option{
		natsgo.Name(cfg.ClientName),
		natsgo.Timeout(cfg.ConnectTimeout),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.FlusherTimeout(cfg.FlushTimeout),

		// Connection event handlers
		natsgo.RetryOnFailedConnect(true),
		natsgo.ClosedHandler(func(nc *natsgo.Conn) {
			logger.Error("NATS connection closed")
			b.connected.Store(false)
		}),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			logger.Warn("NATS disconnected, attempting reconnect", zap.Error(err))
			b.connected.Store(false)
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
			b.connected.Store(true)
		}),
	}

	conn, err := natsgo.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connection failed: %w", err)
	}
	b.conn = conn
	b.connected.Store(conn.IsConnected())

	logger.Info("NATS bus ready",
		zap.String("url", cfg.URL),
		zap.String("subject_prefix", cfg.SubjectPrefix),
		zap.String("local", local.String()))

	return b, nil
}

// Codec returns the codec so callers can register additional message types
func (b *Bus) Codec() *Codec {
	return b.codec
}

// IsConnected reports whether the connection to the server is up
func (b *Bus) IsConnected() bool {
	return b.connected.Load()
}

// Send publishes msg on the subject of path
func (b *Bus) Send(ctx context.Context, path domain.RoutingPath, msg domain.Message) error {
	subject, err := Subject(b.prefix, path)
	if err != nil {
		return err
	}
	data, err := b.codec.Encode(b.local, msg)
	if err != nil {
		return err
	}
	if err := b.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", msg.MessageType(), subject, err)
	}
	return nil
}

// Request publishes msg on the subject of path and waits for the reply
// until ctx is done
func (b *Bus) Request(ctx context.Context, path domain.RoutingPath, msg domain.Message) (domain.Message, error) {
	subject, err := Subject(b.prefix, path)
	if err != nil {
		return nil, err
	}
	data, err := b.codec.Encode(b.local, msg)
	if err != nil {
		return nil, err
	}

	reply, err := b.conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("request %s to %s failed: %w", msg.MessageType(), subject, err)
	}

	_, out, err := b.codec.Decode(reply.Data)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Register subscribes the participant to its own subject. Requests arriving
// there are answered when the participant also implements ports.Responder.
func (b *Bus) Register(ctx context.Context, p ports.Participant) error {
	id := p.ParticipantID()
	subject := ParticipantSubject(b.prefix, id)

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subs[subject]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, id)
	}

	responder, _ := p.(ports.Responder)
	sub, err := b.conn.Subscribe(subject, func(m *natsgo.Msg) {
		b.dispatch(m, domain.NodeAddress(id), p, responder)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe %s: %w", subject, err)
	}
	b.subs[subject] = sub

	b.logger.Debug("participant registered", zap.String("id", id), zap.String("subject", subject))
	return nil
}

// Unregister drops the participant subscription. Unknown participants are ignored.
func (b *Bus) Unregister(ctx context.Context, p ports.Participant) error {
	subject := ParticipantSubject(b.prefix, p.ParticipantID())

	b.mu.Lock()
	sub, ok := b.subs[subject]
	delete(b.subs, subject)
	b.mu.Unlock()

	if !ok {
		return nil
	}
	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to unsubscribe %s: %w", subject, err)
	}
	return nil
}

// Serve answers every request published on the subject of path with r
func (b *Bus) Serve(path domain.RoutingPath, r ports.Responder) error {
	subject, err := Subject(b.prefix, path)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subs[subject]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, subject)
	}

	segments := path.Segments()
	self := domain.NodeAddress(segments[len(segments)-1])
	sub, err := b.conn.Subscribe(subject, func(m *natsgo.Msg) {
		b.dispatch(m, self, nil, r)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe %s: %w", subject, err)
	}
	b.subs[subject] = sub
	return nil
}

func (b *Bus) dispatch(m *natsgo.Msg, self domain.NodeAddress, p ports.Participant, r ports.Responder) {
	from, msg, err := b.codec.Decode(m.Data)
	if err != nil {
		b.logger.Warn("dropping undecodable message",
			zap.String("subject", m.Subject),
			zap.Error(err))
		if m.Reply != "" {
			_ = m.Respond(b.codec.EncodeError(self, err))
		}
		return
	}

	// One-way delivery
	if m.Reply == "" {
		if p != nil {
			p.HandleMessage(context.Background(), msg)
			return
		}
		if _, err := r.HandleRequest(context.Background(), from, msg); err != nil {
			b.logger.Warn("one-way message failed",
				zap.String("subject", m.Subject),
				zap.String("type", msg.MessageType()),
				zap.Error(err))
		}
		return
	}

	if r == nil {
		_ = m.Respond(b.codec.EncodeError(self, fmt.Errorf("%s does not answer requests", self)))
		return
	}

	reply, err := r.HandleRequest(context.Background(), from, msg)
	var data []byte
	if err != nil {
		data = b.codec.EncodeError(self, err)
	} else if data, err = b.codec.Encode(self, reply); err != nil {
		data = b.codec.EncodeError(self, err)
	}
	if err := m.Respond(data); err != nil {
		b.logger.Warn("failed to send reply",
			zap.String("subject", m.Subject),
			zap.Error(err))
	}
}

// Close drains subscriptions and closes the connection
func (b *Bus) Close() error {
	b.mu.Lock()
	b.subs = make(map[string]*natsgo.Subscription)
	b.mu.Unlock()

	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}
