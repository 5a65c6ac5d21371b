package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/tradehost/internal/application/session"
	"github.com/aescanero/tradehost/pkg/adapters/bus/memory"
	eventsmemory "github.com/aescanero/tradehost/pkg/adapters/events/memory"
	storagememory "github.com/aescanero/tradehost/pkg/adapters/storage/memory"
	"github.com/aescanero/tradehost/pkg/domain"
	"github.com/aescanero/tradehost/pkg/ports"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errInjected = errors.New("injected failure")

// fakeProvider is a provider whose initialization outcome is scripted
type fakeProvider struct {
	id      string
	source  domain.NodeAddress
	initErr error
	owns    bool

	mu          sync.Mutex
	initialized bool
	info        domain.SessionInfo
	uninits     int
}

func (p *fakeProvider) ParticipantID() string                         { return p.id }
func (p *fakeProvider) HandleMessage(context.Context, domain.Message) {}
func (p *fakeProvider) Source() domain.NodeAddress                    { return p.source }
func (p *fakeProvider) OwnsRegistration() bool                        { return p.owns }

func (p *fakeProvider) Initialize(_ context.Context, info domain.SessionInfo, path domain.RoutingPath) error {
	if path.Destination() != p.source {
		return fmt.Errorf("routed to %s instead of %s", path.Destination(), p.source)
	}
	if p.initErr != nil {
		return p.initErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initialized = true
	p.info = info
	return nil
}

func (p *fakeProvider) UnInitialize(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initialized = false
	p.uninits++
	return nil
}

func (p *fakeProvider) IsInitialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized
}

func (p *fakeProvider) session() (domain.SessionInfo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.info, p.initialized
}

type fakeDataProvider struct{ *fakeProvider }

func (p fakeDataProvider) DataSession() (domain.SessionInfo, bool) { return p.session() }

type fakeExecutionProvider struct{ *fakeProvider }

func (p fakeExecutionProvider) ExecutionSession() (domain.SessionInfo, bool) { return p.session() }

// fakeFactory builds fake providers and remembers every one it built
type fakeFactory struct {
	mu       sync.Mutex
	seq      int
	failData map[domain.NodeAddress]error
	failExec map[domain.NodeAddress]error
	built    []*fakeProvider
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		failData: make(map[domain.NodeAddress]error),
		failExec: make(map[domain.NodeAddress]error),
	}
}

func (f *fakeFactory) build(kind string, source domain.NodeAddress, initErr error) *fakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	p := &fakeProvider{
		id:      fmt.Sprintf("%s-%s-%d", kind, source, f.seq),
		source:  source,
		initErr: initErr,
		owns:    true,
	}
	f.built = append(f.built, p)
	return p
}

func (f *fakeFactory) NewDataProvider(source domain.NodeAddress) ports.DataProvider {
	f.mu.Lock()
	err := f.failData[source]
	f.mu.Unlock()
	return fakeDataProvider{f.build("data", source, err)}
}

func (f *fakeFactory) NewOrderExecutionProvider(source domain.NodeAddress) ports.OrderExecutionProvider {
	f.mu.Lock()
	err := f.failExec[source]
	f.mu.Unlock()
	return fakeExecutionProvider{f.build("exec", source, err)}
}

func (f *fakeFactory) providers() []*fakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeProvider(nil), f.built...)
}

// fakeAlgorithm is a scripted algorithm that can refuse sessions
type fakeAlgorithm struct {
	name    string
	initErr error

	mu       sync.Mutex
	reject   error
	uninits  int
	attached int
	detached int
}

func (a *fakeAlgorithm) Name() string                     { return a.name }
func (a *fakeAlgorithm) Initialize(context.Context) error { return a.initErr }

func (a *fakeAlgorithm) UnInitialize(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.uninits++
	return nil
}

func (a *fakeAlgorithm) SessionInitializing(context.Context, *session.ExpertSession) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.reject != nil {
		return a.reject
	}
	a.attached++
	return nil
}

func (a *fakeAlgorithm) SessionUnInitialized(context.Context, *session.ExpertSession) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detached++
}

func (a *fakeAlgorithm) setReject(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reject = err
}

const hostName = `Test "Host" A`

var template = domain.NewRoutingPath("platform", "")

type fixture struct {
	host     *Host
	network  *memory.Network
	platform *memory.Platform
	factory  *fakeFactory
	algo     *fakeAlgorithm
	events   *eventsmemory.InMemoryEventBus
	store    *storagememory.InMemorySessionStore
}

func newFixture(t *testing.T, sources ...memory.Source) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	f := &fixture{
		network: memory.NewNetwork(logger),
		factory: newFakeFactory(),
		algo:    &fakeAlgorithm{name: "fake"},
		events:  eventsmemory.NewInMemoryEventBus(logger),
		store:   storagememory.NewInMemorySessionStore(),
	}
	f.platform = memory.NewPlatform(f.network, "platform", logger)
	for _, s := range sources {
		f.platform.AddSource(context.Background(), s)
	}

	newAlgorithm := func(ports.AlgorithmHost, string) (ports.Algorithm, error) {
		return f.algo, nil
	}
	f.host = New(hostName, f.network.Connect(domain.NodeAddress(SanitizeName(hostName))), f.factory, newAlgorithm, logger,
		WithRequestTimeout(100*time.Millisecond),
		WithEventBus(f.events),
		WithSessionStore(f.store),
	)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = f.host.Shutdown(ctx)
	})
	return f
}

// initialize brings the host up and waits until the announced sources are applied
func (f *fixture) initialize(t *testing.T, wantData, wantExec int) {
	t.Helper()
	require.NoError(t, f.host.HostInitialize(context.Background(), template))
	require.True(t, f.host.IsConnected())
	require.Eventually(t, func() bool {
		return len(f.host.DataProviderSources()) == wantData && len(f.host.OrderExecutionSources()) == wantExec
	}, time.Second, 5*time.Millisecond)
}

// providerIDs returns the IDs of every registered participant except the host
func (f *fixture) providerIDs() []string {
	var out []string
	for _, id := range f.network.Registered() {
		if id != f.host.BusName() {
			out = append(out, id)
		}
	}
	return out
}

func testInfo(name string) domain.SessionInfo {
	return domain.SessionInfo{
		Name:   name,
		Symbol: domain.Symbol{Name: "EURUSD", Group: "fx"},
	}
}
