package repository

import (
	"context"
	"errors"

	"autobot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// CredentialRepository persists the credential group document. The whole
// document is read before every lookup and rewritten on every change.
type CredentialRepository interface {
	LoadCredentials(ctx context.Context) (map[string]domain.CredentialGroup, error)
	SaveCredentials(ctx context.Context, groups map[string]domain.CredentialGroup) error
}

// DeploymentRepository keeps the audit trail of finished deployments
type DeploymentRepository interface {
	SaveDeployment(ctx context.Context, d *domain.Deployment) error
	GetDeployment(ctx context.Context, id string) (*domain.Deployment, error)
	ListDeployments(ctx context.Context, limit int) ([]domain.Deployment, error)

	// Close releases resources
	Close() error
}
