// Package stores provides the SQLite persistence layer for tokenbridge.
// It keeps the per-network deployment record, the phase ledger, the role
// wiring cursor, the run history and the event log, with schema managed by
// embedded migrations.
package stores
