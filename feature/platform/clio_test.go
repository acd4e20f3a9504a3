package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestClioAdapter(t *testing.T, handler http.HandlerFunc) Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	adapter := newClioAdapter(zap.NewNop())
	err := adapter.Configure(Credentials{
		BaseURL:        server.URL,
		AccessToken:    "tok",
		TimeoutSeconds: 5,
	})
	assert.NoError(t, err)
	return adapter
}

func TestClioAdapter_CreateTimeEntryMapping(t *testing.T) {
	var captured map[string]any
	adapter := newTestClioAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/activities", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"id":           12345,
				"note":         "Draft motion to compel",
				"quantity":     1.5,
				"price":        350.0,
				"date":         "2026-03-02",
				"contact_id":   "77",
				"matter_id":    "901",
				"non_billable": false,
				"state":        "unbilled",
				"updated_at":   "2026-03-02T17:04:05Z",
			},
		})
	})

	created, err := adapter.CreateTimeEntry(context.Background(), &TimeEntry{
		Description: "Draft motion to compel",
		Hours:       1.5,
		Rate:        350,
		Date:        time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		ClientID:    "77",
		MatterID:    "901",
		Billable:    true,
		Status:      "draft",
	})
	assert.NoError(t, err)

	// Canonical fields go out under Clio's names, with the billable flag
	// inverted into non_billable.
	assert.Equal(t, "Draft motion to compel", captured["note"])
	assert.Equal(t, 1.5, captured["quantity"])
	assert.Equal(t, "77", captured["contact_id"])
	assert.Equal(t, "2026-03-02", captured["date"])
	assert.Equal(t, false, captured["non_billable"])

	// The response is unwrapped from the data envelope and mapped back.
	assert.Equal(t, "12345", created.ExternalID)
	assert.Equal(t, 1.5, created.Hours)
	assert.True(t, created.Billable)
	assert.Equal(t, "unbilled", created.Status)
	assert.Equal(t, "12345", created.Metadata["native_id"])
	assert.Equal(t, time.Date(2026, 3, 2, 17, 4, 5, 0, time.UTC), created.UpdatedAt.UTC())
}

func TestClioAdapter_AuthFailureIsPermanent(t *testing.T) {
	var calls atomic.Int32
	adapter := newTestClioAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := adapter.GetTimeEntry(context.Background(), "42")
	assert.True(t, IsCode(err, CodeAuthFailed))
	assert.False(t, Retryable(err))
	assert.Equal(t, int32(1), calls.Load()) // no transport-level retry on auth errors
}

func TestClioAdapter_ValidationFailureIsPermanent(t *testing.T) {
	adapter := newTestClioAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	_, err := adapter.CreateTimeEntry(context.Background(), &TimeEntry{Description: "x"})
	assert.True(t, IsCode(err, CodeValidation))
	assert.False(t, Retryable(err))
}

func TestClioAdapter_ServerErrorRetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	adapter := newTestClioAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := adapter.GetTimeEntry(context.Background(), "42")
	assert.True(t, IsCode(err, CodeAPI))
	assert.True(t, Retryable(err))
	assert.Equal(t, int32(3), calls.Load()) // initial attempt plus two retries
}

func TestClioAdapter_RateLimitHonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	adapter := newTestClioAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"id": 42, "note": "recovered"},
		})
	})

	start := time.Now()
	entry, err := adapter.GetTimeEntry(context.Background(), "42")
	assert.NoError(t, err)
	assert.Equal(t, "recovered", entry.Description)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClioAdapter_RequiresConfiguration(t *testing.T) {
	adapter := newClioAdapter(zap.NewNop())
	_, err := adapter.GetTimeEntry(context.Background(), "42")
	assert.True(t, IsCode(err, CodeNotConfigured))
}

func TestRetryAfterCap(t *testing.T) {
	assert.Equal(t, 2*time.Second, retryAfter(""))
	assert.Equal(t, 5*time.Second, retryAfter("5"))
	assert.Equal(t, maxRetryAfter, retryAfter("86400"))
}
