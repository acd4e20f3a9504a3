// Package models defines the GORM models shared by the billing, syncqueue
// and conflict features: the canonical BillingEntry, the durable
// SyncQueueItem, the append-only SyncHistory audit row, and the persisted
// Conflict record.
//
// Status vocabularies are typed string constants, and lifecycle transitions
// go through the MarkX helpers so the one-way invariants (queue items end in
// completed/failed, conflicts leave pending exactly once) live next to the
// data they protect.
package models
