package platform

import (
	"context"

	"go.uber.org/zap"
)

// Adapter is the uniform capability set every platform integration exposes.
// Implementations are a closed set selected through the factory table; there
// is no runtime plugin loading.
type Adapter interface {
	// Name returns the platform identifier (e.g. "clio").
	Name() string
	// Configure binds credentials to the adapter instance. Every other
	// method fails with NOT_CONFIGURED until Configure succeeds.
	Configure(creds Credentials) error

	// Authenticate verifies the credentials against the platform.
	Authenticate(ctx context.Context) error
	// ValidateConnection performs a cheap reachability check.
	ValidateConnection(ctx context.Context) error

	CreateTimeEntry(ctx context.Context, entry *TimeEntry) (*TimeEntry, error)
	UpdateTimeEntry(ctx context.Context, entry *TimeEntry) (*TimeEntry, error)
	DeleteTimeEntry(ctx context.Context, externalID string) error
	GetTimeEntry(ctx context.Context, externalID string) (*TimeEntry, error)
	ListTimeEntries(ctx context.Context, filter EntryFilter) ([]TimeEntry, error)

	CreateClient(ctx context.Context, client *Client) (*Client, error)
	ListClients(ctx context.Context, query string, limit int) ([]Client, error)
	CreateMatter(ctx context.Context, matter *Matter) (*Matter, error)
	ListMatters(ctx context.Context, query, clientID string, limit int) ([]Matter, error)

	ListUsers(ctx context.Context) ([]User, error)
	CurrentUser(ctx context.Context) (*User, error)
}

// Factory constructs an unconfigured adapter instance.
type Factory func(logger *zap.Logger) Adapter

// DefaultFactories returns the closed set of supported platform adapters.
// The registry is built from this table at startup.
func DefaultFactories() map[string]Factory {
	return map[string]Factory{
		PlatformClio:            func(l *zap.Logger) Adapter { return newClioAdapter(l) },
		PlatformPracticePanther: func(l *zap.Logger) Adapter { return newPracticePantherAdapter(l) },
		PlatformMyCase:          func(l *zap.Logger) Adapter { return newMyCaseAdapter(l) },
	}
}

// Supported platform identifiers.
const (
	PlatformClio            = "clio"
	PlatformPracticePanther = "practicepanther"
	PlatformMyCase          = "mycase"
)
