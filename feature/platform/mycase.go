package platform

import (
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"
)

// newMyCaseAdapter builds the MyCase translator. MyCase authenticates with
// an API key header pair and wraps everything in a "data" envelope.
func newMyCaseAdapter(logger *zap.Logger) Adapter {
	spec := adapterSpec{
		name:           PlatformMyCase,
		defaultBaseURL: "https://external-integrations.mycase.com/v1",

		entriesPath:     "/time_entries",
		clientsPath:     "/clients",
		mattersPath:     "/cases",
		usersPath:       "/firm_users",
		currentUserPath: "/firm_users/current",

		envelopeKey: "data",

		entryFields: entryFieldMap{
			ID:          "id",
			Description: "description",
			Hours:       "duration",
			Rate:        "rate",
			Date:        "entry_date",
			ClientID:    "client_id",
			MatterID:    "case_id",
			UserID:      "firm_user_id",
			Billable:    "billable",
			Status:      "invoice_status",
			UpdatedAt:   "updated_at",
		},
		clientFields: resourceFieldMap{ID: "id", Name: "name", Email: "email"},
		matterFields: resourceFieldMap{ID: "id", ClientID: "client_id", Name: "name", Description: "description", Status: "case_status"},
		userFields:   resourceFieldMap{ID: "id", Name: "name", Email: "email"},

		statusOut: map[string]string{
			"draft":    "draft",
			"unbilled": "not_invoiced",
			"billed":   "invoiced",
		},
		statusIn: map[string]string{
			"draft":        "draft",
			"not_invoiced": "unbilled",
			"invoiced":     "billed",
		},
		defaultStatus: "unbilled",
		dateFormat:    "2006-01-02",

		authorize: func(creds Credentials) func(*http.Request) {
			return func(req *http.Request) {
				req.Header.Set("X-API-KEY", creds.APIKey)
				if creds.APISecret != "" {
					req.Header.Set("X-API-SECRET", creds.APISecret)
				}
			}
		},
		applyFilter: myCaseFilter,
	}

	return newRESTAdapter(spec, logger)
}

func myCaseFilter(f EntryFilter, q url.Values, _ *adapterSpec) {
	if f.From != nil {
		q.Set("start_date", f.From.Format("2006-01-02"))
	}
	if f.To != nil {
		q.Set("end_date", f.To.Format("2006-01-02"))
	}
	if f.ClientID != "" {
		q.Set("client_id", f.ClientID)
	}
	if f.MatterID != "" {
		q.Set("case_id", f.MatterID)
	}
	if f.UserID != "" {
		q.Set("firm_user_id", f.UserID)
	}
	if f.Billable != nil {
		q.Set("billable", strconv.FormatBool(*f.Billable))
	}
	if f.Status != "" {
		q.Set("invoice_status", f.Status)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PerPage > 0 {
		q.Set("page_size", strconv.Itoa(f.PerPage))
	}
}
