// Package billing owns the local store of billable time entries. Writes are
// local-first: an entry is validated and persisted before any platform is
// involved, and remote propagation happens asynchronously through the sync
// queue. Entries are never deleted locally; a delete only removes remote
// copies.
package billing
