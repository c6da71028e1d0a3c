// Package repository defines the data access interfaces for autobot.
//
// Two stores back the service:
//
// # Credential document (file subpackage)
//
// Credential groups live in a single JSON or YAML document keyed by group
// name. The document is loaded whole before each read and written whole,
// through a temporary file and rename, on each change. There is no cross
// process locking: the last writer wins.
//
// # Deployment history (sqlite subpackage)
//
// Every finished configuration push is recorded with its step log so
// operators can audit what was sent where. The SQLite database uses WAL mode
// and migrates its schema on startup. Scan results are deliberately not
// persisted.
//
// # Testing
//
// The sqlite repository is tested against in-memory databases, the file
// store against t.TempDir().
package repository
