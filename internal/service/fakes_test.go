package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"autobot/internal/domain"
	"autobot/internal/repository"
)

// fakeProber answers from fixed tables
type fakeProber struct {
	mu        sync.Mutex
	reachable map[string]time.Duration
	openPorts map[string][]int
	macs      map[string]string
	release   chan struct{} // when set, MeasureLatency blocks until closed

	latencyCalls map[string]int
	portCalls    map[string]int
	resolveCalls map[string]int
	lastTimeout  time.Duration
}

func newFakeProber() *fakeProber {
	return &fakeProber{
		reachable:    map[string]time.Duration{},
		openPorts:    map[string][]int{},
		macs:         map[string]string{},
		latencyCalls: map[string]int{},
		portCalls:    map[string]int{},
		resolveCalls: map[string]int{},
	}
}

func (f *fakeProber) MeasureLatency(ctx context.Context, addr string, timeout time.Duration) domain.Reachability {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latencyCalls[addr]++
	f.lastTimeout = timeout
	if d, ok := f.reachable[addr]; ok {
		return domain.Reachable(d)
	}
	return domain.Unreachable()
}

func (f *fakeProber) ProbePort(ctx context.Context, addr string, port int, timeout time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.portCalls[addr]++
	for _, p := range f.openPorts[addr] {
		if p == port {
			return true
		}
	}
	return false
}

func (f *fakeProber) ResolveHardwareAddress(ctx context.Context, addr string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolveCalls[addr]++
	if mac, ok := f.macs[addr]; ok {
		return mac
	}
	return domain.UnknownHardwareAddress
}

type fakeLinkLayer struct {
	found   map[string]string
	calls   int
	targets []string
}

func (f *fakeLinkLayer) Sweep(ctx context.Context, targets []string) map[string]string {
	f.calls++
	f.targets = targets
	return f.found
}

type fakeRemote struct {
	prefix string
	up     []string
	err    error
	calls  int
}

func (f *fakeRemote) Covers(addr string) bool {
	return len(addr) >= len(f.prefix) && addr[:len(f.prefix)] == f.prefix
}

func (f *fakeRemote) Sweep(ctx context.Context) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.up, nil
}

// fakeSession records the RPCs a deployment issues
type fakeSession struct {
	lockErr, loadErr, commitErr, unlockErr error
	onLock                                 func()

	calls      []string
	loadFormat domain.LoadFormat
	loadScript string
	closed     int
}

func (f *fakeSession) ID() int { return 42 }

func (f *fakeSession) Lock(ctx context.Context) error {
	f.calls = append(f.calls, "lock")
	if f.onLock != nil {
		f.onLock()
	}
	return f.lockErr
}

func (f *fakeSession) Unlock(ctx context.Context) error {
	f.calls = append(f.calls, "unlock")
	return f.unlockErr
}

func (f *fakeSession) Load(ctx context.Context, format domain.LoadFormat, script string) error {
	f.calls = append(f.calls, "load")
	f.loadFormat = format
	f.loadScript = script
	return f.loadErr
}

func (f *fakeSession) Commit(ctx context.Context) error {
	f.calls = append(f.calls, "commit")
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.commitErr
}

func (f *fakeSession) Close() error {
	f.closed++
	return nil
}

type fakeDialer struct {
	session *fakeSession
	err     error
	dials   int
	creds   domain.CredentialGroup
}

func (f *fakeDialer) Address(target string) string { return target + ":830" }

func (f *fakeDialer) Dial(ctx context.Context, target string, creds domain.CredentialGroup) (DeviceSession, error) {
	f.dials++
	f.creds = creds
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

// memCredentials is an in-memory credential document
type memCredentials struct {
	mu      sync.Mutex
	groups  map[string]domain.CredentialGroup
	loadErr error
	saves   int
}

func newMemCredentials(groups map[string]domain.CredentialGroup) *memCredentials {
	if groups == nil {
		groups = map[string]domain.CredentialGroup{}
	}
	return &memCredentials{groups: groups}
}

func (m *memCredentials) LoadCredentials(ctx context.Context) (map[string]domain.CredentialGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := make(map[string]domain.CredentialGroup, len(m.groups))
	for k, v := range m.groups {
		out[k] = v
	}
	return out, nil
}

func (m *memCredentials) SaveCredentials(ctx context.Context, groups map[string]domain.CredentialGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.groups = groups
	return nil
}

// memHistory is an in-memory deployment history
type memHistory struct {
	saved []domain.Deployment
}

func (m *memHistory) SaveDeployment(ctx context.Context, d *domain.Deployment) error {
	m.saved = append(m.saved, *d)
	return nil
}

func (m *memHistory) GetDeployment(ctx context.Context, id string) (*domain.Deployment, error) {
	for i := range m.saved {
		if m.saved[i].ID == id {
			return &m.saved[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memHistory) ListDeployments(ctx context.Context, limit int) ([]domain.Deployment, error) {
	out := []domain.Deployment{}
	for i := len(m.saved) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, m.saved[i])
	}
	return out, nil
}

func (m *memHistory) Close() error { return nil }

var errBoom = errors.New("boom")
