package platform

import (
	"strconv"
	"time"
)

// TimeEntry is the canonical, platform-neutral time entry schema. Adapters
// translate it to and from their native payloads.
type TimeEntry struct {
	// ID is the local billing entry id, when the entry originated locally.
	ID string `json:"id,omitempty"`
	// ExternalID is the platform-assigned id, empty until the first create.
	ExternalID  string    `json:"external_id,omitempty"`
	Description string    `json:"description"`
	Hours       float64   `json:"hours"`
	Rate        float64   `json:"rate"`
	Date        time.Time `json:"date"`
	ClientID    string    `json:"client_id"`
	MatterID    string    `json:"matter_id"`
	UserID      string    `json:"user_id,omitempty"`
	Billable    bool      `json:"billable"`
	// Status uses the canonical vocabulary (draft, unbilled, billed);
	// adapters translate to the platform's own terms.
	Status string `json:"status,omitempty"`
	// UpdatedAt is the remote last-modified timestamp, when the platform
	// reports one. Zero means unknown.
	UpdatedAt time.Time `json:"updated_at,omitempty"`
	// Metadata preserves platform-native fields (ids, audit timestamps)
	// that have no canonical column.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Client is a canonical practice-management client (the billable party).
type Client struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Email    string            `json:"email,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Matter is a canonical legal matter belonging to a client.
type Matter struct {
	ID          string            `json:"id"`
	ClientID    string            `json:"client_id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Status      string            `json:"status,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// User is a platform user account.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// EntryFilter narrows a time entry listing.
type EntryFilter struct {
	From     *time.Time
	To       *time.Time
	ClientID string
	MatterID string
	UserID   string
	Billable *bool
	Status   string
	Page     int
	PerPage  int
}

// Credentials configures one adapter instance. Credential fields are
// stripped before configuration is ever returned to a caller.
type Credentials struct {
	// BaseURL overrides the platform's default API endpoint.
	BaseURL string `mapstructure:"base_url" default:""`
	// APIKey is the primary API credential.
	APIKey string `mapstructure:"api_key" default:""`
	// APISecret is the secondary credential, where the platform uses one.
	APISecret string `mapstructure:"api_secret" default:""`
	// AccessToken is an OAuth bearer token, where the platform uses one.
	AccessToken string `mapstructure:"access_token" default:""`
	// TimeoutSeconds bounds every adapter request.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"15"`
}

// Redacted returns a copy safe to expose: credential fields are replaced
// with a marker when set, preserving which ones were provided.
func (c Credentials) Redacted() map[string]string {
	out := map[string]string{
		"base_url":        c.BaseURL,
		"timeout_seconds": strconv.Itoa(c.TimeoutSeconds),
	}
	for field, set := range map[string]bool{
		"api_key":      c.APIKey != "",
		"api_secret":   c.APISecret != "",
		"access_token": c.AccessToken != "",
	} {
		if set {
			out[field] = "[redacted]"
		}
	}
	return out
}
