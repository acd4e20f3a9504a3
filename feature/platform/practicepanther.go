package platform

import (
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"
)

// newPracticePantherAdapter builds the PracticePanther translator.
// PracticePanther keys time entries on "hours" directly, references the
// billable party as a contact and returns bare JSON objects (no envelope
// for single resources, "items" for lists).
func newPracticePantherAdapter(logger *zap.Logger) Adapter {
	spec := adapterSpec{
		name:           PlatformPracticePanther,
		defaultBaseURL: "https://app.practicepanther.com/api/v2",

		entriesPath:     "/time_entries",
		clientsPath:     "/contacts",
		mattersPath:     "/matters",
		usersPath:       "/users",
		currentUserPath: "/users/me",

		envelopeKey: "items",

		entryFields: entryFieldMap{
			ID:          "id",
			Description: "description",
			Hours:       "hours",
			Rate:        "rate",
			Date:        "date",
			ClientID:    "contact_ref",
			MatterID:    "matter_ref",
			UserID:      "assigned_to_user",
			Billable:    "is_billable",
			Status:      "billing_status",
			UpdatedAt:   "updated_at",
		},
		clientFields: resourceFieldMap{ID: "id", Name: "display_name", Email: "email"},
		matterFields: resourceFieldMap{ID: "id", ClientID: "contact_ref", Name: "name", Description: "notes", Status: "status"},
		userFields:   resourceFieldMap{ID: "id", Name: "display_name", Email: "email"},

		statusOut: map[string]string{
			"draft":    "NotBilled",
			"unbilled": "NotBilled",
			"billed":   "Billed",
		},
		statusIn: map[string]string{
			"NotBilled": "unbilled",
			"Billed":    "billed",
			"InBilling": "billed",
		},
		defaultStatus: "unbilled",
		dateFormat:    "2006-01-02T15:04:05",

		authorize: func(creds Credentials) func(*http.Request) {
			return func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
			}
		},
		applyFilter: practicePantherFilter,
	}

	return newRESTAdapter(spec, logger)
}

func practicePantherFilter(f EntryFilter, q url.Values, _ *adapterSpec) {
	if f.From != nil {
		q.Set("date_from", f.From.Format("2006-01-02"))
	}
	if f.To != nil {
		q.Set("date_to", f.To.Format("2006-01-02"))
	}
	if f.ClientID != "" {
		q.Set("contact_ref", f.ClientID)
	}
	if f.MatterID != "" {
		q.Set("matter_ref", f.MatterID)
	}
	if f.UserID != "" {
		q.Set("assigned_to_user", f.UserID)
	}
	if f.Billable != nil {
		q.Set("is_billable", strconv.FormatBool(*f.Billable))
	}
	if f.Status != "" {
		q.Set("billing_status", f.Status)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(f.PerPage))
	}
}
