// Package platform defines the uniform adapter contract over external
// practice-management platforms and the registry that binds configured
// adapter instances to platform identifiers.
//
// # Adapters
//
// Every adapter exposes the same capability set (authentication, time entry
// CRUD with filtered listing, client and matter CRUD/list, user lookup)
// over the canonical schema in types.go. The concrete adapters (clio,
// practicepanther, mycase) are a closed set selected through the factory
// table built at startup; they share one REST transport and differ only in
// their field mapping tables and status vocabularies. Mapping is symmetric:
// map-out on write, map-in plus default substitution on read, with the
// platform-native id and audit timestamps preserved in the entry's Metadata
// bag.
//
// # Shared behavior
//
// BulkCreateTimeEntries and SyncTimeEntries are free functions over the
// Adapter interface rather than per-adapter methods, so partial-success
// semantics are implemented exactly once. The Orchestrator fans those out
// across every configured platform independently; one platform's failure
// never aborts the others.
//
// # Errors
//
// All failures surface as *Error with a stable Code. Retryability is a
// property of the code: API_ERROR and RATE_LIMIT_EXCEEDED flow back into the
// sync queue's backoff loop, VALIDATION_ERROR and AUTHENTICATION_FAILED
// terminate the queue item immediately.
package platform
