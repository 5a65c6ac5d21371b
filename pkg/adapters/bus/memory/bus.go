package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aescanero/tradehost/pkg/domain"
	"github.com/aescanero/tradehost/pkg/ports"
	"go.uber.org/zap"
)

var (
	ErrUnreachable          = errors.New("no participant at destination")
	ErrAlreadyRegistered    = errors.New("participant already registered")
	ErrResponderNotAttached = errors.New("no responder attached")
)

// Network is an in-process bus shared by every local node
type Network struct {
	logger *zap.Logger

	mu           sync.RWMutex
	participants map[string]ports.Participant
	responders   map[domain.NodeAddress]ports.Responder
}

// NewNetwork creates an empty network
func NewNetwork(logger *zap.Logger) *Network {
	return &Network{
		logger:       logger,
		participants: make(map[string]ports.Participant),
		responders:   make(map[domain.NodeAddress]ports.Responder),
	}
}

// Attach makes r answer requests addressed to addr
func (n *Network) Attach(addr domain.NodeAddress, r ports.Responder) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.responders[addr] = r
}

// Detach removes the responder at addr
func (n *Network) Detach(addr domain.NodeAddress) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.responders, addr)
}

// Connect returns a bus endpoint that sends as local
func (n *Network) Connect(local domain.NodeAddress) *Bus {
	return &Bus{network: n, local: local}
}

// Deliver pushes a one-way message to a registered participant
func (n *Network) Deliver(ctx context.Context, to domain.NodeAddress, msg domain.Message) error {
	n.mu.RLock()
	p, ok := n.participants[to.String()]
	n.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnreachable, to)
	}
	p.HandleMessage(ctx, msg)
	return nil
}

// Registered returns the IDs of every registered participant, sorted
func (n *Network) Registered() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]string, 0, len(n.participants))
	for id := range n.participants {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// IsRegistered reports whether a participant with id is registered
func (n *Network) IsRegistered(id string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.participants[id]
	return ok
}

func (n *Network) responder(addr domain.NodeAddress) (ports.Responder, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	r, ok := n.responders[addr]
	return r, ok
}

func (n *Network) participant(id string) (ports.Participant, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	p, ok := n.participants[id]
	return p, ok
}

// Bus is one node's endpoint on a Network
type Bus struct {
	network *Network
	local   domain.NodeAddress
}

// target is the last non-empty hop of the path
func target(path domain.RoutingPath) (domain.NodeAddress, error) {
	segments := path.Segments()
	if len(segments) == 0 {
		return "", fmt.Errorf("%w: empty path", ErrUnreachable)
	}
	return domain.NodeAddress(segments[len(segments)-1]), nil
}

// Send delivers msg to the participant or responder at the end of path
func (b *Bus) Send(ctx context.Context, path domain.RoutingPath, msg domain.Message) error {
	to, err := target(path)
	if err != nil {
		return err
	}

	if p, ok := b.network.participant(to.String()); ok {
		p.HandleMessage(ctx, msg)
		return nil
	}

	r, ok := b.network.responder(to)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnreachable, to)
	}
	if _, err := r.HandleRequest(ctx, b.local, msg); err != nil {
		b.network.logger.Warn("one-way message failed",
			zap.String("to", to.String()),
			zap.String("type", msg.MessageType()),
			zap.Error(err))
	}
	return nil
}

// Request delivers msg to the responder at the end of path and waits for
// its reply until ctx is done.
func (b *Bus) Request(ctx context.Context, path domain.RoutingPath, msg domain.Message) (domain.Message, error) {
	to, err := target(path)
	if err != nil {
		return nil, err
	}

	r, ok := b.network.responder(to)
	if !ok {
		return nil, fmt.Errorf("%w: %s: %s", ErrResponderNotAttached, to, msg.MessageType())
	}

	type result struct {
		reply domain.Message
		err   error
	}
	done := make(chan result, 1)
	go func() {
		reply, err := r.HandleRequest(ctx, b.local, msg)
		done <- result{reply: reply, err: err}
	}()

	select {
	case res := <-done:
		return res.reply, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Register joins the network under the participant ID
func (b *Bus) Register(ctx context.Context, p ports.Participant) error {
	b.network.mu.Lock()
	defer b.network.mu.Unlock()

	id := p.ParticipantID()
	if _, exists := b.network.participants[id]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, id)
	}
	b.network.participants[id] = p
	return nil
}

// Unregister leaves the network. Unknown participants are ignored.
func (b *Bus) Unregister(ctx context.Context, p ports.Participant) error {
	b.network.mu.Lock()
	defer b.network.mu.Unlock()

	id := p.ParticipantID()
	if current, ok := b.network.participants[id]; ok && current == p {
		delete(b.network.participants, id)
	}
	return nil
}
