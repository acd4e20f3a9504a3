package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// entryFieldMap names the platform's native key for each canonical time
// entry field. Empty means the platform has no such field.
type entryFieldMap struct {
	ID          string
	Description string
	Hours       string
	Rate        string
	Date        string
	ClientID    string
	MatterID    string
	UserID      string
	Billable    string
	Status      string
	UpdatedAt   string
}

// resourceFieldMap names native keys for clients, matters and users.
type resourceFieldMap struct {
	ID          string
	Name        string
	Email       string
	ClientID    string
	Description string
	Status      string
}

// adapterSpec is the complete per-platform mapping table. The three concrete
// adapters are near-identical translators; everything that differs between
// them lives here, and the shared behavior lives on restAdapter.
type adapterSpec struct {
	name           string
	defaultBaseURL string

	entriesPath     string
	clientsPath     string
	mattersPath     string
	usersPath       string
	currentUserPath string

	// envelopeKey unwraps responses shaped {<key>: ...}; empty means bare.
	envelopeKey string

	entryFields  entryFieldMap
	clientFields resourceFieldMap
	matterFields resourceFieldMap
	userFields   resourceFieldMap

	// statusOut/statusIn translate between the canonical status vocabulary
	// and the platform's own terms (e.g. draft<->unbilled).
	statusOut     map[string]string
	statusIn      map[string]string
	defaultStatus string

	dateFormat string

	// billableInverted marks platforms whose native flag is "non billable".
	billableInverted bool

	authorize func(creds Credentials) func(*http.Request)
	// applyFilter translates an EntryFilter into the platform's query params.
	applyFilter func(f EntryFilter, q url.Values, spec *adapterSpec)
}

// restAdapter implements Adapter generically over an adapterSpec.
type restAdapter struct {
	spec       adapterSpec
	creds      Credentials
	rest       *restClient
	logger     *zap.Logger
	configured bool
}

func newRESTAdapter(spec adapterSpec, logger *zap.Logger) *restAdapter {
	return &restAdapter{spec: spec, logger: logger}
}

func (a *restAdapter) Name() string { return a.spec.name }

func (a *restAdapter) Configure(creds Credentials) error {
	base := creds.BaseURL
	if base == "" {
		base = a.spec.defaultBaseURL
	}
	timeout := time.Duration(creds.TimeoutSeconds) * time.Second

	a.creds = creds
	a.rest = newRESTClient(a.spec.name, base, timeout, a.spec.authorize(creds), a.logger)
	a.configured = true
	return nil
}

func (a *restAdapter) ensureConfigured() error {
	if !a.configured {
		return NewError(CodeNotConfigured, a.spec.name, "adapter invoked before configuration")
	}
	return nil
}

func (a *restAdapter) Authenticate(ctx context.Context) error {
	if err := a.ensureConfigured(); err != nil {
		return err
	}
	_, err := a.CurrentUser(ctx)
	return err
}

func (a *restAdapter) ValidateConnection(ctx context.Context) error {
	if err := a.ensureConfigured(); err != nil {
		return err
	}
	return a.rest.do(ctx, http.MethodGet, a.spec.usersPath, url.Values{"limit": {"1"}}, nil, nil)
}

// --- time entries ---

func (a *restAdapter) CreateTimeEntry(ctx context.Context, entry *TimeEntry) (*TimeEntry, error) {
	if err := a.ensureConfigured(); err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := a.rest.do(ctx, http.MethodPost, a.spec.entriesPath, nil, a.mapEntryOut(entry), &raw); err != nil {
		return nil, err
	}
	return a.mapEntryIn(a.unwrap(raw)), nil
}

func (a *restAdapter) UpdateTimeEntry(ctx context.Context, entry *TimeEntry) (*TimeEntry, error) {
	if err := a.ensureConfigured(); err != nil {
		return nil, err
	}
	if entry.ExternalID == "" {
		return nil, NewError(CodeValidation, a.spec.name, "update requires an external id")
	}
	path := fmt.Sprintf("%s/%s", a.spec.entriesPath, entry.ExternalID)
	var raw map[string]any
	if err := a.rest.do(ctx, http.MethodPut, path, nil, a.mapEntryOut(entry), &raw); err != nil {
		return nil, err
	}
	return a.mapEntryIn(a.unwrap(raw)), nil
}

func (a *restAdapter) DeleteTimeEntry(ctx context.Context, externalID string) error {
	if err := a.ensureConfigured(); err != nil {
		return err
	}
	if externalID == "" {
		return NewError(CodeValidation, a.spec.name, "delete requires an external id")
	}
	path := fmt.Sprintf("%s/%s", a.spec.entriesPath, externalID)
	return a.rest.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (a *restAdapter) GetTimeEntry(ctx context.Context, externalID string) (*TimeEntry, error) {
	if err := a.ensureConfigured(); err != nil {
		return nil, err
	}
	path := fmt.Sprintf("%s/%s", a.spec.entriesPath, externalID)
	var raw map[string]any
	if err := a.rest.do(ctx, http.MethodGet, path, nil, nil, &raw); err != nil {
		return nil, err
	}
	return a.mapEntryIn(a.unwrap(raw)), nil
}

func (a *restAdapter) ListTimeEntries(ctx context.Context, filter EntryFilter) ([]TimeEntry, error) {
	if err := a.ensureConfigured(); err != nil {
		return nil, err
	}
	q := url.Values{}
	a.spec.applyFilter(filter, q, &a.spec)

	var raw map[string]any
	if err := a.rest.do(ctx, http.MethodGet, a.spec.entriesPath, q, nil, &raw); err != nil {
		return nil, err
	}

	items := a.unwrapList(raw)
	entries := make([]TimeEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, *a.mapEntryIn(item))
	}
	return entries, nil
}

// --- clients / matters / users ---

func (a *restAdapter) CreateClient(ctx context.Context, client *Client) (*Client, error) {
	if err := a.ensureConfigured(); err != nil {
		return nil, err
	}
	f := a.spec.clientFields
	payload := map[string]any{f.Name: client.Name}
	if client.Email != "" && f.Email != "" {
		payload[f.Email] = client.Email
	}
	var raw map[string]any
	if err := a.rest.do(ctx, http.MethodPost, a.spec.clientsPath, nil, payload, &raw); err != nil {
		return nil, err
	}
	return a.mapClientIn(a.unwrap(raw)), nil
}

func (a *restAdapter) ListClients(ctx context.Context, query string, limit int) ([]Client, error) {
	if err := a.ensureConfigured(); err != nil {
		return nil, err
	}
	q := url.Values{}
	if query != "" {
		q.Set("query", query)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var raw map[string]any
	if err := a.rest.do(ctx, http.MethodGet, a.spec.clientsPath, q, nil, &raw); err != nil {
		return nil, err
	}
	items := a.unwrapList(raw)
	clients := make([]Client, 0, len(items))
	for _, item := range items {
		clients = append(clients, *a.mapClientIn(item))
	}
	return clients, nil
}

func (a *restAdapter) CreateMatter(ctx context.Context, matter *Matter) (*Matter, error) {
	if err := a.ensureConfigured(); err != nil {
		return nil, err
	}
	f := a.spec.matterFields
	payload := map[string]any{f.Name: matter.Name, f.ClientID: matter.ClientID}
	if matter.Description != "" && f.Description != "" {
		payload[f.Description] = matter.Description
	}
	var raw map[string]any
	if err := a.rest.do(ctx, http.MethodPost, a.spec.mattersPath, nil, payload, &raw); err != nil {
		return nil, err
	}
	return a.mapMatterIn(a.unwrap(raw)), nil
}

func (a *restAdapter) ListMatters(ctx context.Context, query, clientID string, limit int) ([]Matter, error) {
	if err := a.ensureConfigured(); err != nil {
		return nil, err
	}
	q := url.Values{}
	if query != "" {
		q.Set("query", query)
	}
	if clientID != "" {
		q.Set(a.spec.matterFields.ClientID, clientID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var raw map[string]any
	if err := a.rest.do(ctx, http.MethodGet, a.spec.mattersPath, q, nil, &raw); err != nil {
		return nil, err
	}
	items := a.unwrapList(raw)
	matters := make([]Matter, 0, len(items))
	for _, item := range items {
		matters = append(matters, *a.mapMatterIn(item))
	}
	return matters, nil
}

func (a *restAdapter) ListUsers(ctx context.Context) ([]User, error) {
	if err := a.ensureConfigured(); err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := a.rest.do(ctx, http.MethodGet, a.spec.usersPath, nil, nil, &raw); err != nil {
		return nil, err
	}
	items := a.unwrapList(raw)
	users := make([]User, 0, len(items))
	for _, item := range items {
		users = append(users, *a.mapUserIn(item))
	}
	return users, nil
}

func (a *restAdapter) CurrentUser(ctx context.Context) (*User, error) {
	if err := a.ensureConfigured(); err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := a.rest.do(ctx, http.MethodGet, a.spec.currentUserPath, nil, nil, &raw); err != nil {
		return nil, err
	}
	return a.mapUserIn(a.unwrap(raw)), nil
}

// --- mapping ---

// mapEntryOut translates a canonical entry into the platform payload.
func (a *restAdapter) mapEntryOut(entry *TimeEntry) map[string]any {
	f := a.spec.entryFields
	payload := map[string]any{
		f.Description: entry.Description,
		f.Hours:       entry.Hours,
		f.ClientID:    entry.ClientID,
		f.MatterID:    entry.MatterID,
	}
	if f.Rate != "" {
		payload[f.Rate] = entry.Rate
	}
	if f.Date != "" {
		payload[f.Date] = entry.Date.Format(a.spec.dateFormat)
	}
	if f.UserID != "" && entry.UserID != "" {
		payload[f.UserID] = entry.UserID
	}
	if f.Billable != "" {
		billable := entry.Billable
		if a.spec.billableInverted {
			billable = !billable
		}
		payload[f.Billable] = billable
	}
	if f.Status != "" && entry.Status != "" {
		native, ok := a.spec.statusOut[entry.Status]
		if !ok {
			native = entry.Status
		}
		payload[f.Status] = native
	}
	return payload
}

// mapEntryIn translates a platform payload into the canonical schema,
// substituting defaults and preserving native id/audit timestamps in the
// metadata bag.
func (a *restAdapter) mapEntryIn(raw map[string]any) *TimeEntry {
	f := a.spec.entryFields
	entry := &TimeEntry{
		ExternalID:  getString(raw, f.ID),
		Description: getString(raw, f.Description),
		Hours:       getFloat(raw, f.Hours),
		Rate:        getFloat(raw, f.Rate),
		ClientID:    getString(raw, f.ClientID),
		MatterID:    getString(raw, f.MatterID),
		UserID:      getString(raw, f.UserID),
		Billable:    getBool(raw, f.Billable) != a.spec.billableInverted,
		Metadata:    map[string]string{},
	}

	if dateStr := getString(raw, f.Date); dateStr != "" {
		if parsed, err := time.Parse(a.spec.dateFormat, dateStr); err == nil {
			entry.Date = parsed
		}
	}

	entry.Status = a.spec.defaultStatus
	if native := getString(raw, f.Status); native != "" {
		if canonical, ok := a.spec.statusIn[native]; ok {
			entry.Status = canonical
		} else {
			entry.Status = native
		}
	}

	if entry.ExternalID != "" {
		entry.Metadata["native_id"] = entry.ExternalID
	}
	for _, key := range []string{"created_at", "updated_at"} {
		if v := getString(raw, key); v != "" {
			entry.Metadata[key] = v
		}
	}
	if ts := getString(raw, f.UpdatedAt); ts != "" {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			entry.UpdatedAt = parsed
		}
	}

	return entry
}

func (a *restAdapter) mapClientIn(raw map[string]any) *Client {
	f := a.spec.clientFields
	return &Client{
		ID:    getString(raw, f.ID),
		Name:  getString(raw, f.Name),
		Email: getString(raw, f.Email),
	}
}

func (a *restAdapter) mapMatterIn(raw map[string]any) *Matter {
	f := a.spec.matterFields
	return &Matter{
		ID:          getString(raw, f.ID),
		ClientID:    getString(raw, f.ClientID),
		Name:        getString(raw, f.Name),
		Description: getString(raw, f.Description),
		Status:      getString(raw, f.Status),
	}
}

func (a *restAdapter) mapUserIn(raw map[string]any) *User {
	f := a.spec.userFields
	return &User{
		ID:    getString(raw, f.ID),
		Name:  getString(raw, f.Name),
		Email: getString(raw, f.Email),
	}
}

// unwrap strips the platform's single-resource envelope, if any.
func (a *restAdapter) unwrap(raw map[string]any) map[string]any {
	if a.spec.envelopeKey == "" {
		return raw
	}
	if inner, ok := raw[a.spec.envelopeKey].(map[string]any); ok {
		return inner
	}
	return raw
}

// unwrapList strips the platform's list envelope.
func (a *restAdapter) unwrapList(raw map[string]any) []map[string]any {
	key := a.spec.envelopeKey
	if key == "" {
		key = "data"
	}
	list, ok := raw[key].([]any)
	if !ok {
		return nil
	}
	items := make([]map[string]any, 0, len(list))
	for _, elem := range list {
		if m, ok := elem.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items
}

func getString(raw map[string]any, key string) string {
	if key == "" {
		return ""
	}
	switch v := raw[key].(type) {
	case string:
		return v
	case float64:
		// Platforms disagree on whether ids are strings or numbers.
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func getFloat(raw map[string]any, key string) float64 {
	if key == "" {
		return 0
	}
	switch v := raw[key].(type) {
	case float64:
		return v
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

func getBool(raw map[string]any, key string) bool {
	if key == "" {
		return false
	}
	b, _ := raw[key].(bool)
	return b
}
