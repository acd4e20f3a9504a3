package platform

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// searchLimit bounds cross-platform client/matter searches per platform.
const searchLimit = 20

// BatchSummary aggregates what a batch touched on one platform.
type BatchSummary struct {
	TotalHours    float64  `json:"total_hours"`
	BillableHours float64  `json:"billable_hours"`
	ClientIDs     []string `json:"client_ids"`
	MatterIDs     []string `json:"matter_ids"`
}

// PlatformSyncResult is the per-platform outcome of a multi-platform sync.
type PlatformSyncResult struct {
	Success bool          `json:"success"`
	Result  *SyncResult   `json:"result,omitempty"`
	Errors  []string      `json:"errors,omitempty"`
	Summary *BatchSummary `json:"summary,omitempty"`
}

// Orchestrator fans operations out across every configured platform
// independently. There is no shared transaction: one platform failing is
// recorded in its own result and never rolls back or aborts the others.
type Orchestrator struct {
	registry *Registry
	logger   *zap.Logger
}

// NewOrchestrator creates a multi-platform orchestrator over a registry.
func NewOrchestrator(registry *Registry, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{registry: registry, logger: logger}
}

// SyncToAllPlatforms runs SyncTimeEntries against every configured platform.
// Panics and errors from one adapter are converted into that platform's
// failed result.
func (o *Orchestrator) SyncToAllPlatforms(ctx context.Context, entries []TimeEntry) map[string]*PlatformSyncResult {
	platforms := o.registry.GetConfiguredPlatforms()
	results := make(map[string]*PlatformSyncResult, len(platforms))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(platforms) + 1)

	for _, name := range platforms {
		name := name
		g.Go(func() error {
			result := o.syncOne(gctx, name, entries)
			mu.Lock()
			results[name] = result
			mu.Unlock()
			return nil // per-platform failures are data, not group errors
		})
	}
	_ = g.Wait()

	return results
}

func (o *Orchestrator) syncOne(ctx context.Context, platformName string, entries []TimeEntry) (result *PlatformSyncResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Adapter panicked during sync",
				zap.String("platform", platformName), zap.Any("panic", r))
			result = &PlatformSyncResult{
				Success: false,
				Errors:  []string{fmt.Sprintf("adapter panic: %v", r)},
			}
		}
	}()

	adapter, err := o.registry.GetAdapter(platformName)
	if err != nil {
		return &PlatformSyncResult{Success: false, Errors: []string{err.Error()}}
	}

	// Copy the batch: adapters fill in ExternalID on create and platforms
	// must not see each other's assignments.
	batch := make([]TimeEntry, len(entries))
	copy(batch, entries)

	syncResult := SyncTimeEntries(ctx, adapter, batch)
	return &PlatformSyncResult{
		Success: syncResult.Succeeded(),
		Result:  syncResult,
		Errors:  syncResult.Errors,
		Summary: summarize(batch),
	}
}

// summarize computes the aggregate view of a batch: total and billable
// hours plus the distinct client and matter ids touched.
func summarize(entries []TimeEntry) *BatchSummary {
	summary := &BatchSummary{}
	clients := map[string]struct{}{}
	matters := map[string]struct{}{}

	for _, e := range entries {
		summary.TotalHours += e.Hours
		if e.Billable {
			summary.BillableHours += e.Hours
		}
		if e.ClientID != "" {
			clients[e.ClientID] = struct{}{}
		}
		if e.MatterID != "" {
			matters[e.MatterID] = struct{}{}
		}
	}

	for id := range clients {
		summary.ClientIDs = append(summary.ClientIDs, id)
	}
	for id := range matters {
		summary.MatterIDs = append(summary.MatterIDs, id)
	}
	return summary
}

// SearchClientsAcrossPlatforms fans a bounded client search out to every
// configured platform. A failing platform contributes an empty result set.
func (o *Orchestrator) SearchClientsAcrossPlatforms(ctx context.Context, query string) map[string][]Client {
	results := make(map[string][]Client)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range o.registry.GetConfiguredPlatforms() {
		name := name
		g.Go(func() error {
			clients := o.searchClients(gctx, name, query)
			mu.Lock()
			results[name] = clients
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (o *Orchestrator) searchClients(ctx context.Context, platformName, query string) []Client {
	adapter, err := o.registry.GetAdapter(platformName)
	if err != nil {
		return []Client{}
	}
	clients, err := adapter.ListClients(ctx, query, searchLimit)
	if err != nil {
		o.logger.Warn("Client search failed",
			zap.String("platform", platformName), zap.Error(err))
		return []Client{}
	}
	return clients
}

// SearchMattersAcrossPlatforms fans a bounded matter search out to every
// configured platform, optionally scoped to one client.
func (o *Orchestrator) SearchMattersAcrossPlatforms(ctx context.Context, query, clientID string) map[string][]Matter {
	results := make(map[string][]Matter)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range o.registry.GetConfiguredPlatforms() {
		name := name
		g.Go(func() error {
			matters := o.searchMatters(gctx, name, query, clientID)
			mu.Lock()
			results[name] = matters
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (o *Orchestrator) searchMatters(ctx context.Context, platformName, query, clientID string) []Matter {
	adapter, err := o.registry.GetAdapter(platformName)
	if err != nil {
		return []Matter{}
	}
	matters, err := adapter.ListMatters(ctx, query, clientID, searchLimit)
	if err != nil {
		o.logger.Warn("Matter search failed",
			zap.String("platform", platformName), zap.Error(err))
		return []Matter{}
	}
	return matters
}
