package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"autobot/internal/domain"
	"autobot/internal/repository"
)

// CredentialService manages the named credential groups used by
// deployments and by the remote sweep intermediary
type CredentialService struct {
	repo     repository.CredentialRepository
	eventBus *EventBus
	mu       sync.Mutex // serializes load/modify/save cycles
}

// NewCredentialService creates a new credential service
func NewCredentialService(repo repository.CredentialRepository, eventBus *EventBus) *CredentialService {
	return &CredentialService{
		repo:     repo,
		eventBus: eventBus,
	}
}

// List returns every group without passwords, sorted by name
func (s *CredentialService) List(ctx context.Context) ([]domain.CredentialSummary, error) {
	groups, err := s.repo.LoadCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	summaries := make([]domain.CredentialSummary, 0, len(groups))
	for name, g := range groups {
		g.Name = name
		summaries = append(summaries, g.ToSummary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Name < summaries[j].Name
	})
	return summaries, nil
}

// Upsert creates or replaces a group
func (s *CredentialService) Upsert(ctx context.Context, group domain.CredentialGroup) error {
	group.Name = strings.TrimSpace(group.Name)
	if group.Name == "" {
		return fmt.Errorf("%w: group name is required", domain.ErrInvalidRequest)
	}
	if !group.Usable() {
		return fmt.Errorf("%w: username and password are required", domain.ErrInvalidRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	groups, err := s.repo.LoadCredentials(ctx)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	groups[group.Name] = group
	if err := s.repo.SaveCredentials(ctx, groups); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}

	log.Printf("Credentials: saved group %q", group.Name)
	s.publishChanged(group.Name, "upserted")
	return nil
}

// Delete removes a group. Deleting a group that does not exist succeeds.
func (s *CredentialService) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups, err := s.repo.LoadCredentials(ctx)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if _, ok := groups[name]; !ok {
		return nil
	}

	delete(groups, name)
	if err := s.repo.SaveCredentials(ctx, groups); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}

	log.Printf("Credentials: deleted group %q", name)
	s.publishChanged(name, "deleted")
	return nil
}

// Lookup returns a usable group by name. The document is re-read on every
// call so edits made outside the process are seen immediately.
func (s *CredentialService) Lookup(ctx context.Context, name string) (domain.CredentialGroup, bool, error) {
	if name == "" {
		return domain.CredentialGroup{}, false, nil
	}
	groups, err := s.repo.LoadCredentials(ctx)
	if err != nil {
		return domain.CredentialGroup{}, false, fmt.Errorf("load credentials: %w", err)
	}
	g, ok := groups[name]
	if !ok || !g.Usable() {
		return domain.CredentialGroup{}, false, nil
	}
	g.Name = name
	return g, true, nil
}

// Resolve picks the credentials for a connection: the named group when it
// exists, otherwise the direct username/password pair. When neither yields
// a complete pair the result is domain.ErrMissingCredentials.
func (s *CredentialService) Resolve(ctx context.Context, group, username, password string) (domain.CredentialGroup, error) {
	if g, ok, err := s.Lookup(ctx, group); err != nil {
		return domain.CredentialGroup{}, err
	} else if ok {
		return g, nil
	}

	direct := domain.CredentialGroup{Username: username, Password: password}
	if direct.Usable() {
		return direct, nil
	}
	if group != "" {
		return domain.CredentialGroup{}, fmt.Errorf("%w: group %q not found", domain.ErrMissingCredentials, group)
	}
	return domain.CredentialGroup{}, domain.ErrMissingCredentials
}

// NotifyExternalChange announces that the credential document was changed
// by something other than this service
func (s *CredentialService) NotifyExternalChange(path string) {
	log.Printf("Credentials: %s changed on disk", path)
	s.publishChanged("", "reloaded")
}

func (s *CredentialService) publishChanged(name, action string) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(Event{
		Type:    EventCredentialsChanged,
		Payload: map[string]string{"group_name": name, "action": action},
	})
}
