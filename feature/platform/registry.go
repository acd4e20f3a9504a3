package platform

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry binds platform identifiers to configured adapter instances.
// The set of known platforms is fixed at construction; configuration can
// come and go at runtime.
type Registry struct {
	mu         sync.RWMutex
	factories  map[string]Factory
	adapters   map[string]Adapter
	configs    map[string]Credentials
	configured map[string]bool
	logger     *zap.Logger
}

// NewRegistry builds a registry over the given factory table. Production
// callers pass DefaultFactories(); tests inject their own.
func NewRegistry(factories map[string]Factory, logger *zap.Logger) *Registry {
	return &Registry{
		factories:  factories,
		adapters:   make(map[string]Adapter),
		configs:    make(map[string]Credentials),
		configured: make(map[string]bool),
		logger:     logger,
	}
}

// Configure instantiates (or rebinds) the adapter for a platform and marks
// it ready for dispatch.
func (r *Registry) Configure(platformName string, creds Credentials) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	factory, ok := r.factories[platformName]
	if !ok {
		return NewError(CodePlatformNotFound, platformName, "no adapter registered for platform")
	}

	adapter, exists := r.adapters[platformName]
	if !exists {
		adapter = factory(r.logger)
		r.adapters[platformName] = adapter
	}

	if err := adapter.Configure(creds); err != nil {
		return err
	}

	r.configs[platformName] = creds
	r.configured[platformName] = true
	r.logger.Info("Platform configured", zap.String("platform", platformName))
	return nil
}

// GetAdapter returns the configured adapter for a platform.
func (r *Registry) GetAdapter(platformName string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.factories[platformName]; !ok {
		return nil, NewError(CodePlatformNotFound, platformName, "no adapter registered for platform")
	}
	if !r.configured[platformName] {
		return nil, NewError(CodePlatformNotConfigured, platformName, "platform registered but not configured")
	}
	return r.adapters[platformName], nil
}

// GetAvailablePlatforms lists every platform the registry knows about,
// configured or not.
func (r *Registry) GetAvailablePlatforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetConfiguredPlatforms lists platforms ready for dispatch.
func (r *Registry) GetConfiguredPlatforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.configured))
	for name, ok := range r.configured {
		if ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// RemoveConfiguration forgets a platform's credentials without unregistering
// the adapter type; the platform can be reconfigured later.
func (r *Registry) RemoveConfiguration(platformName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factories[platformName]; !ok {
		return NewError(CodePlatformNotFound, platformName, "no adapter registered for platform")
	}

	delete(r.configs, platformName)
	r.configured[platformName] = false
	r.logger.Info("Platform configuration removed", zap.String("platform", platformName))
	return nil
}

// GetConfiguration returns the platform's configuration with every
// credential field stripped.
func (r *Registry) GetConfiguration(platformName string) (map[string]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.factories[platformName]; !ok {
		return nil, NewError(CodePlatformNotFound, platformName, "no adapter registered for platform")
	}
	if !r.configured[platformName] {
		return nil, NewError(CodePlatformNotConfigured, platformName, "platform registered but not configured")
	}
	return r.configs[platformName].Redacted(), nil
}
