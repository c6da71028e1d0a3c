package service

import (
	"context"
	"errors"
	"log"
	"runtime"
	"sync"
	"time"

	"autobot/internal/domain"
	"autobot/internal/metrics"
)

// ErrScanInProgress is returned when a scan is requested while another runs
var ErrScanInProgress = errors.New("scan already in progress")

// ReachabilityProber answers per-address probe questions
type ReachabilityProber interface {
	MeasureLatency(ctx context.Context, addr string, timeout time.Duration) domain.Reachability
	ProbePort(ctx context.Context, addr string, port int, timeout time.Duration) bool
	ResolveHardwareAddress(ctx context.Context, addr string) string
}

// LinkLayerSweeper resolves hardware addresses for a batch of targets on
// directly attached segments
type LinkLayerSweeper interface {
	Sweep(ctx context.Context, targets []string) map[string]string
}

// RemoteSweeper lists live hosts on a network reached through an
// intermediary
type RemoteSweeper interface {
	Covers(addr string) bool
	Sweep(ctx context.Context) ([]string, error)
}

// DiscoveryOptions holds probe timeouts and limits for scan runs
type DiscoveryOptions struct {
	PingTimeout        time.Duration // detection ping
	ConfirmPingTimeout time.Duration // reporting ping for active hosts
	ManualPingTimeout  time.Duration
	PortTimeout        time.Duration
	Ports              []int
	MaxTargets         int
	YieldEvery         int
}

// DefaultDiscoveryOptions returns the stock timeouts
func DefaultDiscoveryOptions() DiscoveryOptions {
	return DiscoveryOptions{
		PingTimeout:        300 * time.Millisecond,
		ConfirmPingTimeout: 200 * time.Millisecond,
		ManualPingTimeout:  time.Second,
		PortTimeout:        200 * time.Millisecond,
		Ports:              []int{22, 80, 443},
		MaxTargets:         65536,
		YieldEvery:         10,
	}
}

// ScanSession holds the progress and results of one scan run. Results are
// appended in target order; readers get copies.
type ScanSession struct {
	mu       sync.RWMutex
	progress domain.ScanProgress
	results  []domain.DiscoveryResult
	done     chan struct{}
}

func newScanSession(total int) *ScanSession {
	now := time.Now()
	return &ScanSession{
		progress: domain.ScanProgress{
			Status:       domain.ScanRunning,
			TotalTargets: total,
			StartedAt:    &now,
		},
		results: make([]domain.DiscoveryResult, 0, total),
		done:    make(chan struct{}),
	}
}

// Progress returns the current progress
func (s *ScanSession) Progress() domain.ScanProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

// Results returns the results recorded so far
func (s *ScanSession) Results() []domain.DiscoveryResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.DiscoveryResult, len(s.results))
	copy(out, s.results)
	return out
}

// Snapshot returns progress and results read under one lock
func (s *ScanSession) Snapshot() (domain.ScanProgress, []domain.DiscoveryResult) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.DiscoveryResult, len(s.results))
	copy(out, s.results)
	return s.progress, out
}

// Done is closed after the run completes and the scan-complete event is out
func (s *ScanSession) Done() <-chan struct{} {
	return s.done
}

func (s *ScanSession) record(result domain.DiscoveryResult) domain.ScanProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	s.progress.Scanned = len(s.results)
	s.progress.PercentComplete = domain.Percent(s.progress.Scanned, s.progress.TotalTargets)
	s.progress.CurrentAddress = result.Address
	return s.progress
}

func (s *ScanSession) complete() domain.ScanProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.progress.Status = domain.ScanCompleted
	s.progress.CompletedAt = &now
	return s.progress
}

// DiscoveryService runs host discovery scans. One scan runs at a time; each
// run gets a fresh ScanSession.
type DiscoveryService struct {
	prober    ReachabilityProber
	linkLayer LinkLayerSweeper
	remote    RemoteSweeper // nil when no intermediary is configured
	eventBus  *EventBus
	opts      DiscoveryOptions

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	current *ScanSession
	running bool
}

// NewDiscoveryService creates a new discovery service. remote may be nil.
func NewDiscoveryService(prober ReachabilityProber, linkLayer LinkLayerSweeper, remote RemoteSweeper, eventBus *EventBus, opts DiscoveryOptions) *DiscoveryService {
	defaults := DefaultDiscoveryOptions()
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = defaults.PingTimeout
	}
	if opts.ConfirmPingTimeout <= 0 {
		opts.ConfirmPingTimeout = defaults.ConfirmPingTimeout
	}
	if opts.ManualPingTimeout <= 0 {
		opts.ManualPingTimeout = defaults.ManualPingTimeout
	}
	if opts.PortTimeout <= 0 {
		opts.PortTimeout = defaults.PortTimeout
	}
	if opts.Ports == nil {
		opts.Ports = defaults.Ports
	}
	if opts.MaxTargets <= 0 {
		opts.MaxTargets = defaults.MaxTargets
	}
	if opts.YieldEvery <= 0 {
		opts.YieldEvery = defaults.YieldEvery
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &DiscoveryService{
		prober:    prober,
		linkLayer: linkLayer,
		remote:    remote,
		eventBus:  eventBus,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// StartScan expands expr and starts a background run over the targets.
// Input errors are reported before anything touches the network.
func (s *DiscoveryService) StartScan(expr string) (*ScanSession, error) {
	targets, err := domain.ParseTargetsLimit(expr, s.opts.MaxTargets)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrScanInProgress
	}
	session := newScanSession(len(targets))
	s.current = session
	s.running = true
	s.mu.Unlock()

	log.Printf("Discovery: starting scan of %d targets (%s)", len(targets), expr)
	metrics.RecordScanStarted()
	s.publish(EventScanStarted, map[string]interface{}{
		"ip_range":  expr,
		"total_ips": len(targets),
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(s.ctx, session, targets)
	}()

	return session, nil
}

// Current returns the most recent session, or nil before the first scan
func (s *DiscoveryService) Current() *ScanSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Status returns the progress and results of the most recent scan
func (s *DiscoveryService) Status() (domain.ScanProgress, []domain.DiscoveryResult) {
	session := s.Current()
	if session == nil {
		return domain.ScanProgress{Status: domain.ScanIdle}, []domain.DiscoveryResult{}
	}
	return session.Snapshot()
}

// Ping sends a single echo with the manual ping timeout
func (s *DiscoveryService) Ping(ctx context.Context, addr string) domain.Reachability {
	return s.prober.MeasureLatency(ctx, addr, s.opts.ManualPingTimeout)
}

// Close stops a running scan and waits for it to finish. Probes fail fast
// once the context is cancelled, so the run still completes every target.
func (s *DiscoveryService) Close() {
	s.cancel()
	s.wg.Wait()
}

// sweepState holds the once-per-run sweep sets, fetched lazily
type sweepState struct {
	remote        map[string]bool
	remoteFetched bool
	link          map[string]string
	linkFetched   bool
}

func (s *DiscoveryService) run(ctx context.Context, session *ScanSession, targets []string) {
	start := time.Now()
	var sweeps sweepState
	active := 0

	for i, addr := range targets {
		result := s.scanAddress(ctx, addr, targets, &sweeps)
		if result.Status == domain.HostActive {
			active++
		}
		metrics.RecordHost(string(result.Detection))

		progress := session.record(result)
		s.publish(EventScanProgress, progress)

		if i%s.opts.YieldEvery == 0 {
			runtime.Gosched()
		}
	}

	progress := session.complete()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	metrics.RecordScanComplete()
	log.Printf("Discovery: scan complete, %d of %d active (%s)", active, len(targets), time.Since(start).Round(time.Millisecond))
	s.publish(EventScanComplete, map[string]interface{}{
		"progress": progress,
		"active":   active,
	})
	close(session.done)
}

// scanAddress produces the verdict for one address
func (s *DiscoveryService) scanAddress(ctx context.Context, addr string, targets []string, sweeps *sweepState) domain.DiscoveryResult {
	inRemote := s.remote != nil && s.remote.Covers(addr)
	if inRemote {
		if !sweeps.remoteFetched {
			sweeps.remote = s.fetchRemote(ctx)
			sweeps.remoteFetched = true
		}
	} else if !sweeps.linkFetched {
		sweeps.link = s.fetchLinkLayer(ctx, targets)
		sweeps.linkFetched = true
	}

	detection := domain.DetectionNone
	mac, inLink := sweeps.link[addr]
	switch {
	case sweeps.remote[addr]:
		detection = domain.DetectionRemoteSweep
	case inLink:
		detection = domain.DetectionLocalLinkLayer
	case s.prober.MeasureLatency(ctx, addr, s.opts.PingTimeout).Reachable:
		detection = domain.DetectionPing
	}

	result := domain.DiscoveryResult{
		Address:         addr,
		HardwareAddress: domain.UnknownHardwareAddress,
		Latency:         domain.UnavailableLatency,
		Status:          domain.HostAvailable,
		Detection:       detection,
		OpenPorts:       []int{},
	}

	if detection != domain.DetectionNone {
		result.Status = domain.HostActive
		result.Latency = s.prober.MeasureLatency(ctx, addr, s.opts.ConfirmPingTimeout).String()

		for _, port := range s.opts.Ports {
			if s.prober.ProbePort(ctx, addr, port, s.opts.PortTimeout) {
				result.OpenPorts = append(result.OpenPorts, port)
			}
		}
	}

	switch {
	case inLink:
		result.HardwareAddress = mac
	case detection == domain.DetectionPing && !inRemote:
		result.HardwareAddress = s.prober.ResolveHardwareAddress(ctx, addr)
	}

	result.ObservedAt = time.Now()
	return result
}

func (s *DiscoveryService) fetchRemote(ctx context.Context) map[string]bool {
	up, err := s.remote.Sweep(ctx)
	if err != nil {
		log.Printf("Discovery: remote sweep failed, continuing without it: %v", err)
		metrics.RecordRemoteSweepFailure()
		return map[string]bool{}
	}
	set := make(map[string]bool, len(up))
	for _, addr := range up {
		set[addr] = true
	}
	return set
}

func (s *DiscoveryService) fetchLinkLayer(ctx context.Context, targets []string) map[string]string {
	if s.linkLayer == nil {
		return map[string]string{}
	}
	found := s.linkLayer.Sweep(ctx, targets)
	if found == nil {
		return map[string]string{}
	}
	return found
}

func (s *DiscoveryService) publish(eventType EventType, payload interface{}) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(Event{Type: eventType, Payload: payload})
}
