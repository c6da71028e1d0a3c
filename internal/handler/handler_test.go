package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"autobot/internal/domain"
	"autobot/internal/repository"
	"autobot/internal/service"
)

// ============================================================================
// Fakes
// ============================================================================

type stubProber struct {
	reachable map[string]time.Duration
	release   chan struct{}
}

func (p *stubProber) MeasureLatency(ctx context.Context, addr string, timeout time.Duration) domain.Reachability {
	if p.release != nil {
		<-p.release
	}
	if d, ok := p.reachable[addr]; ok {
		return domain.Reachable(d)
	}
	return domain.Unreachable()
}

func (p *stubProber) ProbePort(ctx context.Context, addr string, port int, timeout time.Duration) bool {
	return false
}

func (p *stubProber) ResolveHardwareAddress(ctx context.Context, addr string) string {
	return domain.UnknownHardwareAddress
}

type memCredentials struct {
	mu     sync.Mutex
	groups map[string]domain.CredentialGroup
}

func (m *memCredentials) LoadCredentials(ctx context.Context) (map[string]domain.CredentialGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]domain.CredentialGroup{}
	for k, v := range m.groups {
		out[k] = v
	}
	return out, nil
}

func (m *memCredentials) SaveCredentials(ctx context.Context, groups map[string]domain.CredentialGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups = groups
	return nil
}

type stubSession struct {
	commitErr error
	onLock    func()
}

func (s *stubSession) ID() int                          { return 7 }
func (s *stubSession) Unlock(ctx context.Context) error { return nil }
func (s *stubSession) Close() error                     { return nil }

func (s *stubSession) Lock(ctx context.Context) error {
	if s.onLock != nil {
		s.onLock()
	}
	return nil
}

// Commit fails like a real session would if the push context was cancelled
func (s *stubSession) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commitErr
}
func (s *stubSession) Load(ctx context.Context, format domain.LoadFormat, script string) error {
	return nil
}

type stubDialer struct {
	session *stubSession
}

func (d *stubDialer) Address(target string) string { return target + ":830" }

func (d *stubDialer) Dial(ctx context.Context, target string, creds domain.CredentialGroup) (service.DeviceSession, error) {
	return d.session, nil
}

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
	for i := len(m.saved) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, m.saved[i])
	}
	return out, nil
}

func (m *memHistory) Close() error { return nil }

// ============================================================================
// Test Helpers
// ============================================================================

type testServer struct {
	mux       *http.ServeMux
	prober    *stubProber
	creds     *memCredentials
	session   *stubSession
	history   *memHistory
	discovery *service.DiscoveryService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		mux:     http.NewServeMux(),
		prober:  &stubProber{reachable: map[string]time.Duration{}},
		creds:   &memCredentials{groups: map[string]domain.CredentialGroup{}},
		session: &stubSession{},
		history: &memHistory{},
	}

	credSvc := service.NewCredentialService(ts.creds, nil)
	ts.discovery = service.NewDiscoveryService(ts.prober, nil, nil, nil, service.DiscoveryOptions{MaxTargets: 16})
	t.Cleanup(ts.discovery.Close)
	deploySvc := service.NewDeploymentService(&stubDialer{session: ts.session}, credSvc, ts.history, nil)

	scan := NewScanHandler(ts.discovery)
	creds := NewCredentialHandler(credSvc)
	deploy := NewDeploymentHandler(deploySvc)

	ts.mux.HandleFunc("POST /api/scan", scan.StartScan)
	ts.mux.HandleFunc("GET /api/scan/status", scan.GetStatus)
	ts.mux.HandleFunc("GET /api/ping/{ip}", scan.Ping)
	ts.mux.HandleFunc("GET /api/credentials", creds.List)
	ts.mux.HandleFunc("POST /api/credentials", creds.Upsert)
	ts.mux.HandleFunc("DELETE /api/credentials/{group_name}", creds.Delete)
	ts.mux.HandleFunc("POST /api/push-config", deploy.Push)
	ts.mux.HandleFunc("GET /api/deployments", deploy.List)
	ts.mux.HandleFunc("GET /api/deployments/{id}", deploy.Get)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.mux.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
}

// ============================================================================
// Scan
// ============================================================================

func TestStartScan(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantTotal  int
	}{
		{"cidr", map[string]string{"ip_range": "10.0.0.0/30"}, http.StatusOK, 4},
		{"invalid range", map[string]string{"ip_range": "10.0.0.5-3"}, http.StatusBadRequest, 0},
		{"too many targets", map[string]string{"ip_range": "10.0.0.0/24"}, http.StatusBadRequest, 0},
		{"missing field", map[string]string{}, http.StatusBadRequest, 0},
		{"malformed json", "{", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			w := ts.do(t, http.MethodPost, "/api/scan", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				var resp ErrorResponse
				decode(t, w, &resp)
				if resp.Error == "" {
					t.Error("expected error message")
				}
				return
			}
			var resp ScanStartedResponse
			decode(t, w, &resp)
			if resp.TotalIPs != tt.wantTotal || resp.Message != "Scan started" {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestStartScanConflict(t *testing.T) {
	ts := newTestServer(t)
	ts.prober.release = make(chan struct{})
	defer close(ts.prober.release)

	if w := ts.do(t, http.MethodPost, "/api/scan", map[string]string{"ip_range": "10.0.0.1"}); w.Code != http.StatusOK {
		t.Fatalf("first scan status = %d", w.Code)
	}
	if w := ts.do(t, http.MethodPost, "/api/scan", map[string]string{"ip_range": "10.0.0.2"}); w.Code != http.StatusConflict {
		t.Errorf("second scan status = %d, want 409", w.Code)
	}
}

func TestScanStatus(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/scan/status", nil)
	var idle ScanStatusResponse
	decode(t, w, &idle)
	if idle.Progress.Status != domain.ScanIdle || idle.Results == nil {
		t.Errorf("idle status = %+v", idle)
	}

	ts.prober.reachable["10.0.0.2"] = 2 * time.Millisecond
	ts.do(t, http.MethodPost, "/api/scan", map[string]string{"ip_range": "10.0.0.1-2"})
	select {
	case <-ts.discovery.Current().Done():
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not complete")
	}

	w = ts.do(t, http.MethodGet, "/api/scan/status", nil)
	var done ScanStatusResponse
	decode(t, w, &done)
	if done.Progress.Status != domain.ScanCompleted || done.Progress.PercentComplete != 100 {
		t.Errorf("progress = %+v", done.Progress)
	}
	if len(done.Results) != 2 || done.Results[1].Status != domain.HostActive {
		t.Errorf("results = %+v", done.Results)
	}
}

func TestPing(t *testing.T) {
	ts := newTestServer(t)
	ts.prober.reachable["10.0.0.9"] = 1234 * time.Microsecond

	tests := []struct {
		path       string
		wantStatus int
		want       PingResponse
	}{
		{"/api/ping/10.0.0.9", http.StatusOK, PingResponse{Status: "success", Latency: "1.23ms"}},
		{"/api/ping/10.0.0.8", http.StatusOK, PingResponse{Status: "error", Message: "Request timed out"}},
		{"/api/ping/not-an-ip", http.StatusBadRequest, PingResponse{}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := ts.do(t, http.MethodGet, tt.path, nil)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var got PingResponse
			decode(t, w, &got)
			if got != tt.want {
				t.Errorf("response = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// ============================================================================
// Credentials
// ============================================================================

func TestCredentialsLifecycle(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/credentials", map[string]string{
		"group_name": "core", "username": "admin", "password": "hunter2",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("upsert status = %d (%s)", w.Code, w.Body.String())
	}

	w = ts.do(t, http.MethodGet, "/api/credentials", nil)
	if strings.Contains(w.Body.String(), "hunter2") {
		t.Error("password leaked in listing")
	}
	var list []domain.CredentialSummary
	decode(t, w, &list)
	if len(list) != 1 || list[0].Name != "core" || list[0].Username != "admin" {
		t.Errorf("list = %+v", list)
	}

	for i := 0; i < 2; i++ {
		if w := ts.do(t, http.MethodDelete, "/api/credentials/core", nil); w.Code != http.StatusOK {
			t.Errorf("delete #%d status = %d", i+1, w.Code)
		}
	}

	w = ts.do(t, http.MethodGet, "/api/credentials", nil)
	decode(t, w, &list)
	if len(list) != 0 {
		t.Errorf("list after delete = %+v", list)
	}
}

func TestCredentialsValidation(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/credentials", map[string]string{"group_name": "core", "username": "admin"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var resp ErrorResponse
	decode(t, w, &resp)
	if !strings.Contains(resp.Details, "password is required") {
		t.Errorf("details = %q", resp.Details)
	}
}

// ============================================================================
// Deployments
// ============================================================================

func TestPushConfig(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/push-config", map[string]interface{}{
		"target_ip":       "10.0.0.1",
		"username":        "netops",
		"password":        "pw",
		"commands":        "set system host-name {{name}}",
		"template_values": map[string]string{"name": "r1"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}

	var resp PushResponse
	decode(t, w, &resp)
	if resp.Status != domain.DeploymentSuccess || resp.ID == "" {
		t.Errorf("response = %+v", resp)
	}
	if !strings.Contains(resp.Log, "CLOSED") || len(resp.Entries) == 0 {
		t.Errorf("log = %q", resp.Log)
	}

	w = ts.do(t, http.MethodGet, "/api/deployments/"+resp.ID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("history lookup status = %d", w.Code)
	}
}

func TestPushConfigDeviceFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.session.commitErr = errors.New("commit check failed")

	w := ts.do(t, http.MethodPost, "/api/push-config", map[string]interface{}{
		"target_ip": "10.0.0.1", "username": "netops", "password": "pw", "commands": "set x",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with error outcome", w.Code)
	}
	var resp PushResponse
	decode(t, w, &resp)
	if resp.Status != domain.DeploymentError || resp.FinalState != domain.StateFailed {
		t.Errorf("response = %+v", resp)
	}
}

func TestPushConfigSurvivesClientDisconnect(t *testing.T) {
	ts := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// The client goes away after the session is opened, before commit
	ts.session.onLock = cancel

	body, _ := json.Marshal(map[string]interface{}{
		"target_ip": "10.0.0.1", "username": "netops", "password": "pw", "commands": "set x",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/push-config", bytes.NewReader(body)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.mux.ServeHTTP(w, req)

	if ctx.Err() == nil {
		t.Fatal("request context was not cancelled during the push")
	}
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	var resp PushResponse
	decode(t, w, &resp)
	if resp.Status != domain.DeploymentSuccess || resp.FinalState != domain.StateClosed {
		t.Errorf("outcome = %s/%s, want success/CLOSED: %s", resp.Status, resp.FinalState, resp.Log)
	}
	if len(ts.history.saved) != 1 || ts.history.saved[0].Status != domain.DeploymentSuccess {
		t.Errorf("history = %+v", ts.history.saved)
	}
}

func TestPushConfigInputErrors(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing credentials", map[string]interface{}{"target_ip": "10.0.0.1", "commands": "set x"}},
		{"bad target", map[string]interface{}{"target_ip": "router-1", "username": "u", "password": "p", "commands": "set x"}},
		{"missing commands", map[string]interface{}{"target_ip": "10.0.0.1", "username": "u", "password": "p"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			w := ts.do(t, http.MethodPost, "/api/push-config", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (%s)", w.Code, w.Body.String())
			}
		})
	}
}

func TestDeploymentHistory(t *testing.T) {
	ts := newTestServer(t)

	for i := 0; i < 3; i++ {
		ts.do(t, http.MethodPost, "/api/push-config", map[string]interface{}{
			"target_ip": "10.0.0.1", "username": "u", "password": "p", "commands": "set x",
		})
	}

	w := ts.do(t, http.MethodGet, "/api/deployments?limit=2", nil)
	var list []domain.Deployment
	decode(t, w, &list)
	if len(list) != 2 {
		t.Errorf("expected 2 deployments, got %d", len(list))
	}

	if w := ts.do(t, http.MethodGet, "/api/deployments?limit=abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", w.Code)
	}
	if w := ts.do(t, http.MethodGet, "/api/deployments/missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", w.Code)
	}
}

// ============================================================================
// Middleware
// ============================================================================

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}), mark("a"), mark("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if strings.Join(order, ",") != "a,b" {
		t.Errorf("order = %v, want a,b", order)
	}
}

func TestRecover(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), Recover, Logger)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORS(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/scan", nil))
	if w.Code != http.StatusNoContent || called {
		t.Errorf("preflight status = %d, called = %v", w.Code, called)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}
