package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"autobot/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// ============================================================================
// Time Helpers
// ============================================================================
//
// Timestamps are stored as RFC 3339 text in UTC so they sort lexically and
// read back identically whichever driver wrote them.

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// ============================================================================
// Deployment Row Scanner
// ============================================================================
//
// CRITICAL: Column order must match between:
// - deploymentColumns constant
// - scanArgs() return slice
// - insertArgs() and the INSERT statement

// deploymentRow holds all columns from a deployment query for scanning
type deploymentRow struct {
	ID         string
	Target     string
	Username   sql.NullString
	DeviceType sql.NullString
	Format     sql.NullString
	Status     string
	FinalState string
	Error      sql.NullString
	LogJSON    string
	StartedAt  string
	FinishedAt string
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match deploymentColumns order exactly
func (r *deploymentRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,         // 1
		&r.Target,     // 2
		&r.Username,   // 3
		&r.DeviceType, // 4
		&r.Format,     // 5
		&r.Status,     // 6
		&r.FinalState, // 7
		&r.Error,      // 8
		&r.LogJSON,    // 9
		&r.StartedAt,  // 10
		&r.FinishedAt, // 11
	}
}

// toDomain converts the scanned row to a domain.Deployment
func (r *deploymentRow) toDomain() (*domain.Deployment, error) {
	d := &domain.Deployment{
		ID:         r.ID,
		Target:     r.Target,
		Username:   nullToString(r.Username),
		DeviceType: nullToString(r.DeviceType),
		Format:     domain.LoadFormat(nullToString(r.Format)),
		Status:     domain.DeploymentStatus(r.Status),
		FinalState: domain.DeploymentState(r.FinalState),
		Error:      nullToString(r.Error),
	}

	var err error
	if d.StartedAt, err = parseTime(r.StartedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if d.FinishedAt, err = parseTime(r.FinishedAt); err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}
	if err := json.Unmarshal([]byte(r.LogJSON), &d.Log); err != nil {
		return nil, fmt.Errorf("unmarshal log: %w", err)
	}

	return d, nil
}

// deploymentColumns is the SELECT column list for deployment queries
const deploymentColumns = `id, target, username, device_type, format, status,
	final_state, error, log, started_at, finished_at`

// insertArgs returns the values for an INSERT in deploymentColumns order
func insertArgs(d *domain.Deployment) ([]interface{}, error) {
	log := d.Log
	if log == nil {
		log = domain.DeploymentLog{}
	}
	logJSON, err := json.Marshal(log)
	if err != nil {
		return nil, fmt.Errorf("marshal log: %w", err)
	}

	return []interface{}{
		d.ID,
		d.Target,
		stringToNull(d.Username),
		stringToNull(d.DeviceType),
		stringToNull(string(d.Format)),
		string(d.Status),
		string(d.FinalState),
		stringToNull(d.Error),
		string(logJSON),
		formatTime(d.StartedAt),
		formatTime(d.FinishedAt),
	}, nil
}
