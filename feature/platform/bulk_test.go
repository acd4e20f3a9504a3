package platform_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"lexsync/feature/platform"
	"lexsync/feature/platform/mocks"
)

func TestBulkCreateTimeEntries_PartialSuccess(t *testing.T) {
	adapter := &mocks.Adapter{}
	adapter.On("CreateTimeEntry", mock.Anything, mock.MatchedBy(func(e *platform.TimeEntry) bool {
		return e.Description == "drafting"
	})).Return(&platform.TimeEntry{ExternalID: "ext-1", Description: "drafting"}, nil)
	adapter.On("CreateTimeEntry", mock.Anything, mock.MatchedBy(func(e *platform.TimeEntry) bool {
		return e.Description == "research"
	})).Return(nil, platform.NewError(platform.CodeValidation, "clio", "hours must be positive"))

	result := platform.BulkCreateTimeEntries(context.Background(), adapter, []platform.TimeEntry{
		{Description: "drafting", Hours: 1.5},
		{Description: "research", Hours: -1},
	})

	assert.Len(t, result.Created, 1)
	assert.Equal(t, "ext-1", result.Created[0].ExternalID)
	assert.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "research")
	adapter.AssertExpectations(t)
}

func TestSyncTimeEntries_CreateOrUpdate(t *testing.T) {
	adapter := &mocks.Adapter{}
	adapter.On("CreateTimeEntry", mock.Anything, mock.Anything).
		Return(&platform.TimeEntry{ExternalID: "new"}, nil).Once()
	adapter.On("UpdateTimeEntry", mock.Anything, mock.Anything).
		Return(&platform.TimeEntry{ExternalID: "ext-9"}, nil).Once()

	result := platform.SyncTimeEntries(context.Background(), adapter, []platform.TimeEntry{
		{Description: "fresh entry"},
		{Description: "known entry", ExternalID: "ext-9"},
	})

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.True(t, result.Succeeded())
	adapter.AssertExpectations(t)
}

func TestSyncTimeEntries_ErrorsDoNotAbortBatch(t *testing.T) {
	adapter := &mocks.Adapter{}
	adapter.On("CreateTimeEntry", mock.Anything, mock.Anything).
		Return(nil, platform.NewError(platform.CodeAPI, "clio", "server error")).Once()
	adapter.On("CreateTimeEntry", mock.Anything, mock.Anything).
		Return(&platform.TimeEntry{ExternalID: "ext-2"}, nil).Once()

	result := platform.SyncTimeEntries(context.Background(), adapter, []platform.TimeEntry{
		{Description: "first"},
		{Description: "second"},
	})

	assert.Equal(t, 1, result.Created)
	assert.Len(t, result.Errors, 1)
	assert.False(t, result.Succeeded())
}
