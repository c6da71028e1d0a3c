package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"autobot/internal/domain"
	"autobot/internal/metrics"
	"autobot/internal/repository"
)

// DeviceSession is one open management session on a network device
type DeviceSession interface {
	ID() int
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
	Load(ctx context.Context, format domain.LoadFormat, script string) error
	Commit(ctx context.Context) error
	Close() error
}

// DeviceDialer opens management sessions
type DeviceDialer interface {
	Address(target string) string
	Dial(ctx context.Context, target string, creds domain.CredentialGroup) (DeviceSession, error)
}

// CredentialResolver turns a request's credential fields into a usable pair
type CredentialResolver interface {
	Resolve(ctx context.Context, group, username, password string) (domain.CredentialGroup, error)
}

// DeploymentService pushes configuration scripts to devices and keeps the
// history of every push
type DeploymentService struct {
	dialer      DeviceDialer
	credentials CredentialResolver
	history     repository.DeploymentRepository
	eventBus    *EventBus
}

// NewDeploymentService creates a new deployment service. history may be nil.
func NewDeploymentService(dialer DeviceDialer, credentials CredentialResolver, history repository.DeploymentRepository, eventBus *EventBus) *DeploymentService {
	return &DeploymentService{
		dialer:      dialer,
		credentials: credentials,
		history:     history,
		eventBus:    eventBus,
	}
}

// Push runs one deployment to completion. The returned deployment carries
// the full step log whatever the outcome. The error is non-nil only for
// input problems (domain.ErrInvalidRequest, domain.ErrMissingCredentials)
// or when the credential store cannot be read; device failures are
// reported through the deployment's status.
func (s *DeploymentService) Push(ctx context.Context, req domain.DeploymentRequest) (*domain.Deployment, error) {
	req.TargetAddress = strings.TrimSpace(req.TargetAddress)
	if req.TargetAddress == "" {
		return nil, fmt.Errorf("%w: target address is required", domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(req.CommandScript) == "" {
		return nil, fmt.Errorf("%w: command script is required", domain.ErrInvalidRequest)
	}

	// Once started a push runs to completion. Only the dialer's connect
	// and RPC timeouts bound it; a caller that goes away must not abort a
	// commit whose device side outcome would then be unknown.
	ctx = context.WithoutCancel(ctx)

	run := newDeploymentRun(req)
	run.log(domain.StateInit, domain.LevelInfo, "Target %s, device type %s", req.TargetAddress, orDefault(req.DeviceType, "juniper"))

	creds, err := s.credentials.Resolve(ctx, req.CredentialGroup, req.Username, req.Password)
	if err != nil {
		if !errors.Is(err, domain.ErrMissingCredentials) {
			return nil, err
		}
		run.fail(domain.StateInit, err)
		s.finish(run.d)
		return run.d, err
	}
	run.d.Username = creds.Username

	s.execute(ctx, run, creds, req)
	s.finish(run.d)
	return run.d, nil
}

// execute walks the session states. Every path that opened a session
// closes it before returning.
func (s *DeploymentService) execute(ctx context.Context, run *deploymentRun, creds domain.CredentialGroup, req domain.DeploymentRequest) {
	run.log(domain.StateConnecting, domain.LevelInfo, "Opening NETCONF session to %s as %s", s.dialer.Address(req.TargetAddress), creds.Username)
	session, err := s.dialer.Dial(ctx, req.TargetAddress, creds)
	if err != nil {
		run.fail(domain.StateConnecting, err)
		return
	}
	defer session.Close()

	run.log(domain.StateConnected, domain.LevelInfo, "Session %d established", session.ID())

	run.log(domain.StateLocking, domain.LevelInfo, "Locking candidate configuration")
	locked := true
	if err := session.Lock(ctx); err != nil {
		locked = false
		run.log(domain.StateLocking, domain.LevelWarning, "Could not lock candidate configuration (it might be in use): %v", err)
	} else {
		run.log(domain.StateLocking, domain.LevelInfo, "Candidate configuration locked")
	}

	script := domain.Substitute(req.CommandScript, req.TemplateValues)
	run.d.Format = domain.DetectLoadFormat(script)
	run.log(domain.StateLoading, domain.LevelInfo, "Loading %d line(s) in %q format", countLines(script), run.d.Format)
	if err := session.Load(ctx, run.d.Format, script); err != nil {
		run.fail(domain.StateLoading, err)
		run.closeAfterFailure(session)
		return
	}

	run.log(domain.StateCommitting, domain.LevelInfo, "Committing candidate configuration")
	if err := session.Commit(ctx); err != nil {
		run.fail(domain.StateCommitting, err)
		run.closeAfterFailure(session)
		return
	}
	run.log(domain.StateCommitting, domain.LevelInfo, "Configuration committed")

	if locked {
		run.log(domain.StateUnlocking, domain.LevelInfo, "Unlocking candidate configuration")
		if err := session.Unlock(ctx); err != nil {
			run.log(domain.StateUnlocking, domain.LevelWarning, "Unlock failed: %v", err)
		}
	}

	if err := session.Close(); err != nil {
		run.log(domain.StateClosed, domain.LevelWarning, "Session close reported: %v", err)
	} else {
		run.log(domain.StateClosed, domain.LevelInfo, "NETCONF session closed")
	}
	run.d.Status = domain.DeploymentSuccess
	run.d.FinalState = domain.StateClosed
}

// finish stamps, records and announces a deployment
func (s *DeploymentService) finish(d *domain.Deployment) {
	d.FinishedAt = time.Now()
	metrics.RecordDeployment(string(d.Status), d.Duration())

	if d.Status == domain.DeploymentSuccess {
		log.Printf("Deployment %s: %s committed in %s", d.ID, d.Target, d.Duration().Round(time.Millisecond))
	} else {
		log.Printf("Deployment %s: %s failed: %s", d.ID, d.Target, d.Error)
	}

	if s.history != nil {
		// The push already happened; a history write failure must not
		// change its outcome
		if err := s.history.SaveDeployment(context.Background(), d); err != nil {
			log.Printf("Deployment %s: failed to record history: %v", d.ID, err)
		}
	}

	if s.eventBus != nil {
		s.eventBus.Publish(Event{
			Type: EventDeploymentComplete,
			Payload: map[string]interface{}{
				"id":             d.ID,
				"target_address": d.Target,
				"status":         d.Status,
				"final_state":    d.FinalState,
			},
		})
	}
}

// List returns recent deployments, newest first
func (s *DeploymentService) List(ctx context.Context, limit int) ([]domain.Deployment, error) {
	if s.history == nil {
		return []domain.Deployment{}, nil
	}
	return s.history.ListDeployments(ctx, limit)
}

// Get returns one deployment by ID
func (s *DeploymentService) Get(ctx context.Context, id string) (*domain.Deployment, error) {
	if s.history == nil {
		return nil, repository.ErrNotFound
	}
	return s.history.GetDeployment(ctx, id)
}

// deploymentRun accumulates the step log of one push
type deploymentRun struct {
	d    *domain.Deployment
	step int
}

func newDeploymentRun(req domain.DeploymentRequest) *deploymentRun {
	return &deploymentRun{
		d: &domain.Deployment{
			ID:         uuid.NewString(),
			Target:     req.TargetAddress,
			DeviceType: req.DeviceType,
			Status:     domain.DeploymentError,
			FinalState: domain.StateInit,
			Log:        domain.DeploymentLog{},
			StartedAt:  time.Now(),
		},
	}
}

func (r *deploymentRun) log(state domain.DeploymentState, level domain.LogLevel, format string, args ...interface{}) {
	r.step++
	r.d.Log = append(r.d.Log, domain.LogEntry{
		Step:    r.step,
		State:   state,
		Level:   level,
		Message: fmt.Sprintf(format, args...),
		At:      time.Now(),
	})
	if level != domain.LevelError {
		r.d.FinalState = state
	}
}

// fail records err against the state that produced it and moves to FAILED
func (r *deploymentRun) fail(state domain.DeploymentState, err error) {
	r.log(state, domain.LevelError, "%v", err)
	r.log(domain.StateFailed, domain.LevelError, "Deployment aborted in %s", state)
	r.d.Status = domain.DeploymentError
	r.d.FinalState = domain.StateFailed
	r.d.Error = err.Error()
}

// closeAfterFailure closes a session that a failed step left open. The
// entry is tagged FAILED so the deployment's final state stays FAILED.
func (r *deploymentRun) closeAfterFailure(session DeviceSession) {
	if err := session.Close(); err != nil {
		r.log(domain.StateFailed, domain.LevelWarning, "Closing NETCONF session after failure: %v", err)
		return
	}
	r.log(domain.StateFailed, domain.LevelInfo, "NETCONF session closed after failure")
}

func countLines(script string) int {
	n := 0
	for _, line := range strings.Split(script, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
