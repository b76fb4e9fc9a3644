// Package repository defines the run ledger: a persistent record of every
// network run, how each node unit terminated and which events it produced.
//
// # Ledger Interface
//
// The Ledger interface is what the CLI writes through while a network runs
// and reads from when listing past runs. The implementation is in the sqlite
// subpackage.
//
// # SQLite Implementation
//
// The sqlite implementation keeps runs, node exits and events in three
// tables. Events are stored with their packet serialized as JSON; the
// indexed columns (kind, node, session) are the source of truth for queries.
//
// # Schema Migration
//
// The sqlite ledger migrates its schema on startup with CREATE TABLE IF NOT
// EXISTS, so an existing database file is reused as is.
//
// # Testing
//
// The sqlite ledger is tested against in-memory databases.
package repository
