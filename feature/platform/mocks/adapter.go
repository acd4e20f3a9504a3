package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"lexsync/feature/platform"
)

// Adapter is a mock implementation of platform.Adapter
type Adapter struct {
	mock.Mock
	PlatformName string
}

func (m *Adapter) Name() string {
	if m.PlatformName != "" {
		return m.PlatformName
	}
	return "mock"
}

func (m *Adapter) Configure(creds platform.Credentials) error {
	args := m.Called(creds)
	return args.Error(0)
}

func (m *Adapter) Authenticate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *Adapter) ValidateConnection(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *Adapter) CreateTimeEntry(ctx context.Context, entry *platform.TimeEntry) (*platform.TimeEntry, error) {
	args := m.Called(ctx, entry)
	if e, ok := args.Get(0).(*platform.TimeEntry); ok {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Adapter) UpdateTimeEntry(ctx context.Context, entry *platform.TimeEntry) (*platform.TimeEntry, error) {
	args := m.Called(ctx, entry)
	if e, ok := args.Get(0).(*platform.TimeEntry); ok {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Adapter) DeleteTimeEntry(ctx context.Context, externalID string) error {
	args := m.Called(ctx, externalID)
	return args.Error(0)
}

func (m *Adapter) GetTimeEntry(ctx context.Context, externalID string) (*platform.TimeEntry, error) {
	args := m.Called(ctx, externalID)
	if e, ok := args.Get(0).(*platform.TimeEntry); ok {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Adapter) ListTimeEntries(ctx context.Context, filter platform.EntryFilter) ([]platform.TimeEntry, error) {
	args := m.Called(ctx, filter)
	if entries, ok := args.Get(0).([]platform.TimeEntry); ok {
		return entries, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Adapter) CreateClient(ctx context.Context, client *platform.Client) (*platform.Client, error) {
	args := m.Called(ctx, client)
	if c, ok := args.Get(0).(*platform.Client); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Adapter) ListClients(ctx context.Context, query string, limit int) ([]platform.Client, error) {
	args := m.Called(ctx, query, limit)
	if clients, ok := args.Get(0).([]platform.Client); ok {
		return clients, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Adapter) CreateMatter(ctx context.Context, matter *platform.Matter) (*platform.Matter, error) {
	args := m.Called(ctx, matter)
	if mt, ok := args.Get(0).(*platform.Matter); ok {
		return mt, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Adapter) ListMatters(ctx context.Context, query, clientID string, limit int) ([]platform.Matter, error) {
	args := m.Called(ctx, query, clientID, limit)
	if matters, ok := args.Get(0).([]platform.Matter); ok {
		return matters, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Adapter) ListUsers(ctx context.Context) ([]platform.User, error) {
	args := m.Called(ctx)
	if users, ok := args.Get(0).([]platform.User); ok {
		return users, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Adapter) CurrentUser(ctx context.Context) (*platform.User, error) {
	args := m.Called(ctx)
	if u, ok := args.Get(0).(*platform.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
