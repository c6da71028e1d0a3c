package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"autobot/internal/domain"
	"autobot/internal/repository"

	_ "modernc.org/sqlite"
)

// Repository implements repository.DeploymentRepository using SQLite
type Repository struct {
	db *sql.DB
}

// New creates a new SQLite repository
func New(dbPath string) (*Repository, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS deployments (
		id TEXT PRIMARY KEY,
		target TEXT NOT NULL,
		username TEXT,
		device_type TEXT,
		format TEXT,
		status TEXT NOT NULL,
		final_state TEXT NOT NULL,
		error TEXT,
		log JSON NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deployments_started ON deployments(started_at);
	CREATE INDEX IF NOT EXISTS idx_deployments_target ON deployments(target);
	`

	_, err := r.db.Exec(schema)
	return err
}

// SaveDeployment records a finished deployment. Saving the same ID twice
// replaces the earlier record.
func (r *Repository) SaveDeployment(ctx context.Context, d *domain.Deployment) error {
	args, err := insertArgs(d)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO deployments (`+deploymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to insert deployment: %w", err)
	}
	return nil
}

// GetDeployment retrieves a deployment by ID
func (r *Repository) GetDeployment(ctx context.Context, id string) (*domain.Deployment, error) {
	var row deploymentRow
	err := r.db.QueryRowContext(ctx, `
		SELECT `+deploymentColumns+`
		FROM deployments WHERE id = ?
	`, id).Scan(row.scanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query deployment: %w", err)
	}

	return row.toDomain()
}

// ListDeployments returns the most recent deployments first. A limit of
// zero or less returns every record.
func (r *Repository) ListDeployments(ctx context.Context, limit int) ([]domain.Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments ORDER BY started_at DESC, id`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query deployments: %w", err)
	}
	defer rows.Close()

	deployments := []domain.Deployment{}
	for rows.Next() {
		var row deploymentRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan deployment: %w", err)
		}
		d, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, *d)
	}
	return deployments, rows.Err()
}
