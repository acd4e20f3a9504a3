// Package syncqueue implements the durable work queue at the heart of the
// sync core. Billing changes are enqueued as per-platform items; a
// single-flight dispatcher drains due items in bounded batches, dispatching
// each to its platform adapter and recording every attempt in an append-only
// history. Transient failures are rescheduled with exponential backoff,
// terminal ones fail the item with the error preserved. Aged history can be
// archived to object storage and purged.
package syncqueue
