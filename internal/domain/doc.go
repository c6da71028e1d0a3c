// Package domain defines the core types for autobot, a host discovery and
// network device configuration service.
//
// This package contains the value objects shared by the probing adapters,
// the orchestration services and the HTTP layer.
//
// # Discovery
//
// ParseTargets expands an operator supplied range expression (CIDR, final
// octet range, comma list or single address) into target addresses. It
// fails soft: malformed input yields no targets at all.
//
// DiscoveryResult is the per-address verdict of one scan run. Detection
// records which technique established presence, in priority order
// RemoteSweep, LocalLinkLayer, Ping, None.
//
// Reachability is the outcome of a single ICMP echo. Probes report
// unreachable hosts as a value, not an error.
//
// # Deployment
//
// DeploymentRequest carries a configuration script and the credentials for
// one device. DeploymentLog is the ordered step log produced while the
// NETCONF session moves through its states, returned in full whatever the
// outcome.
//
// Substitute expands {{name}} placeholders in a script before it is pushed.
//
// # Design Principles
//
// - Immutable value objects where possible
// - No database or external dependencies
// - Soft failures as values, input errors as sentinel errors
package domain
