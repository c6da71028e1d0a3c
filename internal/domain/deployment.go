package domain

import (
	"fmt"
	"strings"
	"time"
)

// DeploymentState is a state of the configuration push session
type DeploymentState string

const (
	StateInit       DeploymentState = "INIT"
	StateConnecting DeploymentState = "CONNECTING"
	StateConnected  DeploymentState = "CONNECTED"
	StateLocking    DeploymentState = "LOCKING"
	StateLoading    DeploymentState = "LOADING"
	StateCommitting DeploymentState = "COMMITTING"
	StateUnlocking  DeploymentState = "UNLOCKING"
	StateClosed     DeploymentState = "CLOSED"
	StateFailed     DeploymentState = "FAILED"
)

// order returns the position of a state on the success path. Failed sorts
// after everything so it never counts as "before" another state.
func (s DeploymentState) order() int {
	switch s {
	case StateInit:
		return 0
	case StateConnecting:
		return 1
	case StateConnected:
		return 2
	case StateLocking:
		return 3
	case StateLoading:
		return 4
	case StateCommitting:
		return 5
	case StateUnlocking:
		return 6
	case StateClosed:
		return 7
	default:
		return 8
	}
}

// After reports whether s comes later than other on the success path
func (s DeploymentState) After(other DeploymentState) bool {
	if s == StateFailed || other == StateFailed {
		return false
	}
	return s.order() > other.order()
}

// DeploymentStatus is the terminal outcome of a push
type DeploymentStatus string

const (
	DeploymentSuccess DeploymentStatus = "success"
	DeploymentError   DeploymentStatus = "error"
)

// LoadFormat is the candidate configuration load format
type LoadFormat string

const (
	FormatSet  LoadFormat = "set"
	FormatText LoadFormat = "text"
)

// DetectLoadFormat picks "set" when the script contains "set "
// (case-insensitive), otherwise "text"
func DetectLoadFormat(script string) LoadFormat {
	if strings.Contains(strings.ToLower(script), "set ") {
		return FormatSet
	}
	return FormatText
}

// DeploymentRequest asks for a configuration script to be pushed to a device.
// Either CredentialGroup or Username+Password must resolve to credentials.
type DeploymentRequest struct {
	TargetAddress   string            `json:"target_address"`
	Username        string            `json:"username,omitempty"`
	Password        string            `json:"password,omitempty"`
	CredentialGroup string            `json:"user_group,omitempty"`
	CommandScript   string            `json:"command_script"`
	TemplateValues  map[string]string `json:"template_values,omitempty"`
	DeviceType      string            `json:"device_type,omitempty"`
}

// LogLevel classifies a deployment log entry
type LogLevel string

const (
	LevelInfo    LogLevel = "info"
	LevelWarning LogLevel = "warning"
	LevelError   LogLevel = "error"
)

// LogEntry is one timestamped step of a deployment
type LogEntry struct {
	Step    int             `json:"step"`
	State   DeploymentState `json:"state"`
	Level   LogLevel        `json:"level"`
	Message string          `json:"message"`
	At      time.Time       `json:"at"`
}

// String renders the entry as a console line, e.g.
// "[14:03:07] [3] LOCKING WARNING: Could not lock database"
func (e LogEntry) String() string {
	label := string(e.State)
	if e.Level != LevelInfo {
		label += " " + strings.ToUpper(string(e.Level))
	}
	return fmt.Sprintf("[%s] [%d] %s: %s", e.At.Format("15:04:05"), e.Step, label, e.Message)
}

// DeploymentLog is the ordered, append-only step log of one deployment
type DeploymentLog []LogEntry

// Lines renders every entry with LogEntry.String
func (l DeploymentLog) Lines() []string {
	lines := make([]string, len(l))
	for i, e := range l {
		lines[i] = e.String()
	}
	return lines
}

// Reached reports whether any entry was recorded in the given state
func (l DeploymentLog) Reached(state DeploymentState) bool {
	for _, e := range l {
		if e.State == state {
			return true
		}
	}
	return false
}

// Deployment is the record of one finished configuration push
type Deployment struct {
	ID         string           `json:"id"`
	Target     string           `json:"target_address"`
	Username   string           `json:"username,omitempty"`
	DeviceType string           `json:"device_type,omitempty"`
	Format     LoadFormat       `json:"format,omitempty"`
	Status     DeploymentStatus `json:"status"`
	FinalState DeploymentState  `json:"final_state"`
	Error      string           `json:"error,omitempty"`
	Log        DeploymentLog    `json:"log"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// Duration returns how long the push took
func (d *Deployment) Duration() time.Duration {
	return d.FinishedAt.Sub(d.StartedAt)
}
