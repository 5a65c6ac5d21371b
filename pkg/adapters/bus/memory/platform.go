package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aescanero/tradehost/pkg/domain"
	"go.uber.org/zap"
)

// Source is a simulated source served by the platform
type Source struct {
	Address  domain.NodeAddress
	Role     domain.SourceRole
	Sessions []domain.SessionInfo

	// Reject makes the source refuse session subscriptions
	Reject bool
	// Silent makes the source never answer requests
	Silent bool
}

// Platform is a local stand-in for the trading platform. It announces its
// sources to subscribers and answers on behalf of every source it serves.
type Platform struct {
	address domain.NodeAddress
	network *Network
	logger  *zap.Logger

	mu          sync.RWMutex
	order       []domain.NodeAddress
	sources     map[domain.NodeAddress]*Source
	subscribers map[domain.NodeAddress]struct{}
	bindings    map[domain.NodeAddress]int
}

// NewPlatform creates a platform and attaches it to the network at address
func NewPlatform(network *Network, address domain.NodeAddress, logger *zap.Logger) *Platform {
	p := &Platform{
		address:     address,
		network:     network,
		logger:      logger,
		sources:     make(map[domain.NodeAddress]*Source),
		subscribers: make(map[domain.NodeAddress]struct{}),
		bindings:    make(map[domain.NodeAddress]int),
	}
	network.Attach(address, p)
	return p
}

// Address returns the platform address
func (p *Platform) Address() domain.NodeAddress {
	return p.address
}

// AddSource starts serving src and announces it to subscribers
func (p *Platform) AddSource(ctx context.Context, src Source) {
	p.mu.Lock()
	if _, exists := p.sources[src.Address]; !exists {
		p.order = append(p.order, src.Address)
	}
	s := src
	s.Sessions = append([]domain.SessionInfo(nil), src.Sessions...)
	p.sources[src.Address] = &s
	subscribers := p.subscriberList()
	p.mu.Unlock()

	p.network.Attach(src.Address, &sourceResponder{platform: p, address: src.Address})
	p.announce(ctx, subscribers, domain.SourceUpdated{Source: src.Address, Role: src.Role, Added: true})
}

// RemoveSource stops serving addr and announces its removal
func (p *Platform) RemoveSource(ctx context.Context, addr domain.NodeAddress) {
	p.mu.Lock()
	src, ok := p.sources[addr]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.sources, addr)
	delete(p.bindings, addr)
	for i, a := range p.order {
		if a == addr {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	subscribers := p.subscriberList()
	p.mu.Unlock()

	p.network.Detach(addr)
	p.announce(ctx, subscribers, domain.SourceUpdated{Source: addr, Role: src.Role, Added: false})
}

// Terminate revokes every sources subscription
func (p *Platform) Terminate(ctx context.Context) {
	p.mu.Lock()
	subscribers := p.subscriberList()
	p.subscribers = make(map[domain.NodeAddress]struct{})
	p.mu.Unlock()

	p.announce(ctx, subscribers, domain.SubscriptionTerminated{})
}

// Subscribers returns the nodes holding a sources subscription
func (p *Platform) Subscribers() []domain.NodeAddress {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.subscriberList()
}

// Bindings returns the number of sessions currently bound to a source
func (p *Platform) Bindings(addr domain.NodeAddress) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.bindings[addr]
}

// HandleRequest answers requests addressed to the platform itself
func (p *Platform) HandleRequest(ctx context.Context, from domain.NodeAddress, msg domain.Message) (domain.Message, error) {
	switch m := msg.(type) {
	case domain.SubscribeToSources:
		p.mu.Lock()
		p.subscribers[from] = struct{}{}
		announcements := make([]domain.Message, 0, len(p.order))
		for _, addr := range p.order {
			src := p.sources[addr]
			announcements = append(announcements, domain.SourceUpdated{Source: src.Address, Role: src.Role, Added: true})
		}
		p.mu.Unlock()

		p.logger.Info("node subscribed to sources", zap.String("node", from.String()))
		for _, a := range announcements {
			if err := p.network.Deliver(ctx, from, a); err != nil {
				p.logger.Warn("failed to announce source",
					zap.String("node", from.String()),
					zap.Error(err))
			}
		}
		return domain.OperationResult{Success: true}, nil

	case domain.UnsubscribeFromSources:
		p.mu.Lock()
		delete(p.subscribers, from)
		p.mu.Unlock()

		p.logger.Info("node unsubscribed from sources",
			zap.String("node", from.String()),
			zap.Bool("immediate", m.Immediate))
		return domain.OperationResult{Success: true}, nil

	default:
		return nil, fmt.Errorf("platform cannot handle %s", msg.MessageType())
	}
}

func (p *Platform) subscriberList() []domain.NodeAddress {
	out := make([]domain.NodeAddress, 0, len(p.subscribers))
	for addr := range p.subscribers {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (p *Platform) announce(ctx context.Context, to []domain.NodeAddress, msg domain.Message) {
	for _, addr := range to {
		if err := p.network.Deliver(ctx, addr, msg); err != nil {
			p.logger.Warn("failed to deliver platform notification",
				zap.String("node", addr.String()),
				zap.String("type", msg.MessageType()),
				zap.Error(err))
		}
	}
}

// sourceResponder answers requests addressed to one simulated source
type sourceResponder struct {
	platform *Platform
	address  domain.NodeAddress
}

func (r *sourceResponder) HandleRequest(ctx context.Context, from domain.NodeAddress, msg domain.Message) (domain.Message, error) {
	p := r.platform

	p.mu.RLock()
	src, ok := p.sources[r.address]
	var snapshot Source
	if ok {
		snapshot = *src
	}
	p.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnreachable, r.address)
	}

	if snapshot.Silent {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	switch msg.(type) {
	case domain.GetSessions:
		return domain.SessionsResponse{Sessions: append([]domain.SessionInfo(nil), snapshot.Sessions...)}, nil

	case domain.SubscribeToData:
		return r.bind(snapshot, domain.SourceRoleDataProvider), nil

	case domain.SubscribeToExecution:
		return r.bind(snapshot, domain.SourceRoleOrderExecutioner), nil

	case domain.UnsubscribeFromData, domain.UnsubscribeFromExecution:
		p.mu.Lock()
		if p.bindings[r.address] > 0 {
			p.bindings[r.address]--
		}
		p.mu.Unlock()
		return domain.OperationResult{Success: true}, nil

	default:
		return nil, fmt.Errorf("source %s cannot handle %s", r.address, msg.MessageType())
	}
}

func (r *sourceResponder) bind(src Source, role domain.SourceRole) domain.OperationResult {
	if src.Reject {
		return domain.OperationResult{Reason: "subscription rejected by source"}
	}
	if src.Role != role {
		return domain.OperationResult{Reason: fmt.Sprintf("source %s does not serve %s", src.Address, role)}
	}

	r.platform.mu.Lock()
	r.platform.bindings[r.address]++
	r.platform.mu.Unlock()
	return domain.OperationResult{Success: true}
}
