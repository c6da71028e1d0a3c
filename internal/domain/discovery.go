package domain

import (
	"fmt"
	"time"
)

// Detection identifies the technique that established a host's presence
type Detection string

const (
	DetectionRemoteSweep    Detection = "RemoteSweep"
	DetectionLocalLinkLayer Detection = "LocalLinkLayer"
	DetectionPing           Detection = "Ping"
	DetectionNone           Detection = "None"
)

// HostStatus is the verdict for one address
type HostStatus string

const (
	HostActive    HostStatus = "Active"
	HostAvailable HostStatus = "Available" // nothing answered, address presumed free
)

// ScanStatus is the lifecycle state of a scan run
type ScanStatus string

const (
	ScanIdle      ScanStatus = "Idle"
	ScanRunning   ScanStatus = "Running"
	ScanCompleted ScanStatus = "Completed"
)

const (
	// UnknownHardwareAddress is reported when no link-layer address was learned
	UnknownHardwareAddress = "unknown"
	// UnavailableLatency is reported when the reporting ping got no reply
	UnavailableLatency = "unavailable"
)

// Reachability is the outcome of one ICMP echo probe
type Reachability struct {
	Reachable bool
	Latency   time.Duration
}

// Reachable builds a successful probe outcome
func Reachable(latency time.Duration) Reachability {
	return Reachability{Reachable: true, Latency: latency}
}

// Unreachable builds a failed probe outcome
func Unreachable() Reachability {
	return Reachability{}
}

// String formats the latency as milliseconds with two decimals, or
// "unavailable" when the host did not answer.
func (r Reachability) String() string {
	if !r.Reachable {
		return UnavailableLatency
	}
	return fmt.Sprintf("%.2fms", float64(r.Latency)/float64(time.Millisecond))
}

// DiscoveryResult is the verdict for one address in one scan run.
// Results are created once and never mutated afterwards.
type DiscoveryResult struct {
	Address         string     `json:"address"`
	HardwareAddress string     `json:"hardware_address"`
	Latency         string     `json:"latency"`
	Status          HostStatus `json:"status"`
	Detection       Detection  `json:"detection"`
	OpenPorts       []int      `json:"open_ports"`
	ObservedAt      time.Time  `json:"observed_at"`
}

// ScanProgress is a point-in-time view of a scan run
type ScanProgress struct {
	Status          ScanStatus `json:"status"`
	PercentComplete int        `json:"percent_complete"`
	CurrentAddress  string     `json:"current_address"`
	TotalTargets    int        `json:"total_targets"`
	Scanned         int        `json:"scanned"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// Percent returns round(100 * done / total), 0 for an empty run
func Percent(done, total int) int {
	if total <= 0 {
		return 0
	}
	return (100*done + total/2) / total
}
