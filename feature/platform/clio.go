package platform

import (
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"
)

// newClioAdapter builds the Clio translator. Clio models time entries as
// "activities" with a decimal quantity, wraps every payload in a "data"
// envelope and speaks OAuth bearer tokens.
func newClioAdapter(logger *zap.Logger) Adapter {
	spec := adapterSpec{
		name:           PlatformClio,
		defaultBaseURL: "https://app.clio.com/api/v4",

		entriesPath:     "/activities",
		clientsPath:     "/contacts",
		mattersPath:     "/matters",
		usersPath:       "/users",
		currentUserPath: "/users/who_am_i",

		envelopeKey: "data",

		entryFields: entryFieldMap{
			ID:          "id",
			Description: "note",
			Hours:       "quantity",
			Rate:        "price",
			Date:        "date",
			ClientID:    "contact_id",
			MatterID:    "matter_id",
			UserID:      "user_id",
			Billable:    "non_billable",
			Status:      "state",
			UpdatedAt:   "updated_at",
		},
		clientFields: resourceFieldMap{ID: "id", Name: "name", Email: "primary_email_address"},
		matterFields: resourceFieldMap{ID: "id", ClientID: "client_id", Name: "display_number", Description: "description", Status: "status"},
		userFields:   resourceFieldMap{ID: "id", Name: "name", Email: "email"},

		statusOut: map[string]string{
			"draft":    "draft",
			"unbilled": "unbilled",
			"billed":   "billed",
		},
		statusIn: map[string]string{
			"draft":    "draft",
			"unbilled": "unbilled",
			"billed":   "billed",
		},
		defaultStatus:    "unbilled",
		dateFormat:       "2006-01-02",
		billableInverted: true,

		authorize: func(creds Credentials) func(*http.Request) {
			token := creds.AccessToken
			if token == "" {
				token = creds.APIKey
			}
			return func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer "+token)
			}
		},
		applyFilter: clioFilter,
	}

	return newRESTAdapter(spec, logger)
}

func clioFilter(f EntryFilter, q url.Values, _ *adapterSpec) {
	if f.From != nil {
		q.Set("created_since", f.From.Format("2006-01-02"))
	}
	if f.To != nil {
		q.Set("created_before", f.To.Format("2006-01-02"))
	}
	if f.ClientID != "" {
		q.Set("contact_id", f.ClientID)
	}
	if f.MatterID != "" {
		q.Set("matter_id", f.MatterID)
	}
	if f.UserID != "" {
		q.Set("user_id", f.UserID)
	}
	if f.Billable != nil {
		q.Set("non_billable", strconv.FormatBool(!*f.Billable))
	}
	if f.Status != "" {
		q.Set("state", f.Status)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PerPage > 0 {
		q.Set("limit", strconv.Itoa(f.PerPage))
	}
}
