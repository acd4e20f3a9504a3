package platform

import (
	"context"
	"fmt"
)

// BulkResult reports a partial-success bulk create.
type BulkResult struct {
	Created []TimeEntry `json:"created"`
	Errors  []string    `json:"errors"`
}

// SyncResult reports a create-or-update pass over a batch of entries.
type SyncResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Errors  []string `json:"errors"`
}

// Succeeded reports whether every entry in the batch went through.
func (r *SyncResult) Succeeded() bool {
	return len(r.Errors) == 0
}

// BulkCreateTimeEntries creates entries sequentially against one adapter,
// continuing past per-item failures. Shared across adapters as a free
// function so partial-success semantics are implemented exactly once.
func BulkCreateTimeEntries(ctx context.Context, adapter Adapter, entries []TimeEntry) *BulkResult {
	result := &BulkResult{}
	for i := range entries {
		created, err := adapter.CreateTimeEntry(ctx, &entries[i])
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("entry %d (%s): %v", i, entries[i].Description, err))
			continue
		}
		result.Created = append(result.Created, *created)
	}
	return result
}

// SyncTimeEntries creates or updates each entry depending on whether it
// already carries a remote id, returning aggregate counts and an error list.
func SyncTimeEntries(ctx context.Context, adapter Adapter, entries []TimeEntry) *SyncResult {
	result := &SyncResult{}
	for i := range entries {
		entry := &entries[i]
		var err error
		if entry.ExternalID == "" {
			_, err = adapter.CreateTimeEntry(ctx, entry)
			if err == nil {
				result.Created++
			}
		} else {
			_, err = adapter.UpdateTimeEntry(ctx, entry)
			if err == nil {
				result.Updated++
			}
		}
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("entry %d (%s): %v", i, entry.Description, err))
		}
	}
	return result
}
