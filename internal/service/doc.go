// Package service implements the business logic of autobot.
//
// Services sit between the HTTP handlers and the adapters and repositories.
// They own validation, sequencing and event publishing; they never touch
// the network directly.
//
// # Services
//
// DiscoveryService runs one host discovery scan at a time. Each address is
// checked against the remote sweep set, the local link-layer set and finally
// a direct ping, and the first technique that finds the host wins. Both sets
// are fetched lazily, at most once per run. Results and progress accumulate
// in a ScanSession that pollers read while the scan runs.
//
// DeploymentService pushes a configuration script to one device over
// NETCONF. It walks the session through connect, lock, load, commit, unlock
// and close, logging every step, and records the finished deployment in the
// history store.
//
// CredentialService manages named credential groups in the credential
// document and resolves the credentials a request should use.
//
// # Event System
//
// All services publish events via EventBus. The server bridges them to
// connected clients as Server-Sent Events.
package service
