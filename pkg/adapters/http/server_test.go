package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/adapters/auth"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/autosave"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/editor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const org = "org-a"

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeProvider struct {
	employees []domain.ProviderEmployee
	free      map[string][]domain.Interval
}

func (p *fakeProvider) ListEmployees(ctx context.Context) ([]domain.ProviderEmployee, error) {
	return p.employees, nil
}

func (p *fakeProvider) FreeIntervals(ctx context.Context, id string, from, to time.Time) ([]domain.Interval, error) {
	return p.free[id], nil
}

func newTestService(t *testing.T, opts ...arbor.Option) *arbor.Service {
	t.Helper()
	opts = append([]arbor.Option{arbor.WithAutosave(autosave.WithDebounce(time.Hour))}, opts...)
	svc, err := arbor.New(memory.NewStore(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return svc
}

func newTestHandler(t *testing.T, svc Service, opts ...Option) http.Handler {
	t.Helper()
	h, err := NewHandler(svc, opts...)
	require.NoError(t, err)
	return h
}

// do sends a request as org and decodes a JSON response into out when given.
func do(t *testing.T, h http.Handler, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(OrganizationHeader, org)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if out != nil && w.Code < 300 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var e Error
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e), w.Body.String())
	return e.Code
}

func TestSpec_Valid(t *testing.T) {
	doc, err := Spec()
	require.NoError(t, err)
	assert.NotNil(t, doc.Paths.Find("/forms/{formID}/actions"))
}

func TestHandler_Public(t *testing.T) {
	h := newTestHandler(t, newTestService(t))

	for _, path := range []string{"/health", "/info", "/openapi.yaml"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/info", nil))
	var info map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "arbor-http", info["app"])
	assert.Equal(t, "1.0.0", info["api_version"])
	assert.Equal(t, strings.TrimSpace(arbor.Version), info["version"])
}

func TestHandler_RequiresOrganization(t *testing.T) {
	h := newTestHandler(t, newTestService(t))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/forms", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", errorCode(t, w))
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
}

func TestHandler_BearerAuth(t *testing.T) {
	svc := newTestService(t)
	a, err := auth.New([]byte("secret"))
	require.NoError(t, err)
	h := newTestHandler(t, svc, WithAuthenticator(a))

	_, err = svc.CreateForm(context.Background(), org, arbor.CreateFormInput{InternalName: "Salon"})
	require.NoError(t, err)

	// The development header is ignored once tokens are required.
	req := httptest.NewRequest(http.MethodGet, "/forms", nil)
	req.Header.Set(OrganizationHeader, org)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := a.Issue(org, "ana", time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/forms", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var forms []domain.Form
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &forms))
	assert.Len(t, forms, 1)
}

func TestHandler_FormLifecycle(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)}
	svc := newTestService(t, arbor.WithClock(clock.Now), arbor.WithRestoreWindow(24*time.Hour))
	h := newTestHandler(t, svc)

	var form domain.Form
	w := do(t, h, http.MethodPost, "/forms", arbor.CreateFormInput{InternalName: "Salon"}, &form)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "/forms/"+form.ID, w.Header().Get("Location"))
	assert.Equal(t, org, form.OrganizationID)

	w = do(t, h, http.MethodPost, "/forms", arbor.CreateFormInput{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_input", errorCode(t, w))

	var got domain.Form
	w = do(t, h, http.MethodGet, "/forms/"+form.ID, nil, &got)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Salon", got.Data.InternalName)

	data := got.Data.Clone()
	data.InternalName = "Salon Centro"
	var saved domain.Form
	w = do(t, h, http.MethodPut, "/forms/"+form.ID, data, &saved)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Salon Centro", saved.Data.InternalName)

	var forms []domain.Form
	w = do(t, h, http.MethodGet, "/forms", nil, &forms)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, forms, 1)

	w = do(t, h, http.MethodDelete, "/forms/"+form.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/forms/"+form.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", errorCode(t, w))

	var deleted []domain.Form
	w = do(t, h, http.MethodGet, "/forms?deleted=true", nil, &deleted)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, deleted, 1)
	assert.NotNil(t, deleted[0].DeletedAt)

	var restored domain.Form
	w = do(t, h, http.MethodPost, "/forms/"+form.ID+"/restore", nil, &restored)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Nil(t, restored.DeletedAt)

	w = do(t, h, http.MethodDelete, "/forms/"+form.ID, nil, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	clock.Advance(25 * time.Hour)
	w = do(t, h, http.MethodPost, "/forms/"+form.ID+"/restore", nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "restore_window_expired", errorCode(t, w))
}

func TestHandler_TenantIsolation(t *testing.T) {
	svc := newTestService(t)
	h := newTestHandler(t, svc)
	other, err := svc.CreateForm(context.Background(), "org-b", arbor.CreateFormInput{InternalName: "Clinic"})
	require.NoError(t, err)

	w := do(t, h, http.MethodGet, "/forms/"+other.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var forms []domain.Form
	w = do(t, h, http.MethodGet, "/forms", nil, &forms)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, forms)
}

func TestHandler_ActionsAndDraft(t *testing.T) {
	svc := newTestService(t)
	h := newTestHandler(t, svc)
	form, err := svc.CreateForm(context.Background(), org, arbor.CreateFormInput{InternalName: "Salon"})
	require.NoError(t, err)

	node := editor.NewNode(domain.NodeTypeService, "Haircut")
	body, err := editor.MarshalAction(editor.AddNode{ParentID: domain.RootNodeID, Node: node})
	require.NoError(t, err)

	var data domain.BookingFlowData
	w := do(t, h, http.MethodPost, "/forms/"+form.ID+"/actions", string(body), &data)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, data.ServiceTree.Children, 1)
	assert.Equal(t, node.ID, data.ServiceTree.Children[0].ID)

	var snap autosave.Snapshot
	w = do(t, h, http.MethodGet, "/forms/"+form.ID+"/draft", nil, &snap)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, snap.IsDirty)

	w = do(t, h, http.MethodPost, "/forms/"+form.ID+"/actions", `{"type":"DROP_TABLE","payload":{}}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_input", errorCode(t, w))

	w = do(t, h, http.MethodPost, "/forms/"+form.ID+"/actions", `{"type":"REMOVE_NODE","payload":{"nodeId":"root"}}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/forms/"+form.ID+"/draft/save", nil, &snap)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, snap.IsDirty)
	assert.NotNil(t, snap.LastSaved)

	stored, err := svc.GetForm(context.Background(), org, form.ID)
	require.NoError(t, err)
	assert.True(t, stored.Data.ServiceTree.Contains(node.ID))

	w = do(t, h, http.MethodGet, "/forms/missing/draft", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_Availability(t *testing.T) {
	ctx := context.Background()
	dir := memory.NewDirectory()
	require.NoError(t, dir.SaveOrganization(ctx, domain.Organization{
		ID:            org,
		Timezone:      "UTC",
		BusinessHours: domain.BusinessHours{"monday": {{Start: "09:00", End: "12:00"}}},
	}))
	require.NoError(t, dir.SaveEmployee(ctx, domain.Employee{ID: "e1", OrganizationID: org, ProviderID: "p1", Name: "Ana", Active: true}))
	provider := &fakeProvider{free: map[string][]domain.Interval{
		"p1": {{Start: time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC), End: time.Date(2026, time.March, 2, 11, 0, 0, 0, time.UTC)}},
	}}
	clock := &fakeClock{t: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)}
	svc := newTestService(t,
		arbor.WithEmployeeStore(dir),
		arbor.WithOrganizationStore(dir),
		arbor.WithProvider(provider),
		arbor.WithClock(clock.Now),
	)
	h := newTestHandler(t, svc)

	form, err := svc.CreateForm(ctx, org, arbor.CreateFormInput{InternalName: "Salon"})
	require.NoError(t, err)
	data := form.Data.Clone()
	data.ServiceTree.Children = []domain.FlowNode{{
		ID:      "cut",
		Type:    domain.NodeTypeService,
		Label:   "Haircut",
		Service: &domain.ServiceConfig{DurationMinutes: 60, EmployeeIDs: []string{"e1"}},
	}}
	_, err = svc.SaveForm(ctx, org, form.ID, data)
	require.NoError(t, err)

	var res struct {
		Dates map[string][]domain.Slot `json:"dates"`
	}
	w := do(t, h, http.MethodGet, "/forms/"+form.ID+"/services/cut/availability?year=2026&month=3", nil, &res)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, res.Dates["2026-03-02"], 1)
	assert.Equal(t, "10:00", res.Dates["2026-03-02"][0].Time)

	w = do(t, h, http.MethodGet, "/forms/"+form.ID+"/services/cut/availability?year=2026&month=march", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/forms/"+form.ID+"/services/cut/availability?month=3", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/forms/"+form.ID+"/services/nope/availability?year=2026&month=3", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_ProviderUnavailable(t *testing.T) {
	svc := newTestService(t)
	h := newTestHandler(t, svc)

	w := do(t, h, http.MethodPost, "/employees/sync", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "provider_unavailable", errorCode(t, w))
}

func TestHandler_Employees(t *testing.T) {
	provider := &fakeProvider{employees: []domain.ProviderEmployee{{ID: "p1", Name: "Ana"}}}
	h := newTestHandler(t, newTestService(t, arbor.WithProvider(provider)))

	var rep struct {
		Created int `json:"created"`
	}
	w := do(t, h, http.MethodPost, "/employees/sync", nil, &rep)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, rep.Created)

	var staff []domain.Employee
	w = do(t, h, http.MethodGet, "/employees", nil, &staff)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, staff, 1)
	assert.True(t, staff[0].Active)

	var toggled domain.Employee
	w = do(t, h, http.MethodPost, "/employees/"+staff[0].ID+"/toggle", nil, &toggled)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, toggled.Active)

	w = do(t, h, http.MethodPost, "/employees/ghost/toggle", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_Templates(t *testing.T) {
	catalog, err := memory.NewCatalog(domain.Template{
		ID:   "salon",
		Name: "Hair salon",
		Data: domain.BookingFlowData{
			InternalName: "Hair salon",
			ServiceTree:  domain.FlowNode{ID: domain.RootNodeID, Type: domain.NodeTypeStart},
		},
	})
	require.NoError(t, err)
	h := newTestHandler(t, newTestService(t, arbor.WithCatalog(catalog)))

	var templates []domain.Template
	w := do(t, h, http.MethodGet, "/templates", nil, &templates)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, templates, 1)
	assert.Equal(t, "salon", templates[0].ID)

	var form domain.Form
	w = do(t, h, http.MethodPost, "/forms", arbor.CreateFormInput{TemplateID: "salon"}, &form)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Hair salon", form.Data.InternalName)

	w = do(t, h, http.MethodPost, "/forms", arbor.CreateFormInput{TemplateID: "spa"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_RequestValidation(t *testing.T) {
	svc := newTestService(t)
	h := newTestHandler(t, svc, WithRequestValidation(true))
	form, err := svc.CreateForm(context.Background(), org, arbor.CreateFormInput{InternalName: "Salon"})
	require.NoError(t, err)

	w := do(t, h, http.MethodGet, "/forms/"+form.ID+"/services/cut/availability?year=2026&month=13", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "month")

	w = do(t, h, http.MethodPost, "/forms", `{"internalName": 42}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_input", errorCode(t, w))

	var created domain.Form
	w = do(t, h, http.MethodPost, "/forms", arbor.CreateFormInput{InternalName: "Clinic"}, &created)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

// readEvents collects SSE frames until want frames arrived or the stream ends.
func readEvents(t *testing.T, body io.Reader, want int) []string {
	t.Helper()
	var (
		frames []string
		frame  strings.Builder
	)
	sc := bufio.NewScanner(body)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			frames = append(frames, frame.String())
			frame.Reset()
			if len(frames) == want {
				break
			}
			continue
		}
		frame.WriteString(line + "\n")
	}
	return frames
}

func TestHandler_DraftEvents(t *testing.T) {
	svc := newTestService(t)
	srv := httptest.NewServer(newTestHandler(t, svc))
	defer srv.Close()
	form, err := svc.CreateForm(context.Background(), org, arbor.CreateFormInput{InternalName: "Salon"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/forms/"+form.ID+"/events", nil)
	require.NoError(t, err)
	req.Header.Set(OrganizationHeader, org)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	frames := make(chan []string, 1)
	go func() { frames <- readEvents(t, resp.Body, 2) }()

	// Headers are only sent once the subscription is registered.
	node := editor.NewNode(domain.NodeTypeGroup, "Hair")
	_, err = svc.Dispatch(context.Background(), org, form.ID, editor.AddNode{ParentID: domain.RootNodeID, Node: node})
	require.NoError(t, err)

	select {
	case got := <-frames:
		require.Len(t, got, 2)
		assert.Contains(t, got[0], "event: ping")
		assert.Contains(t, got[1], "event: diff")
		assert.Contains(t, got[1], node.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no draft event received")
	}
}

func TestHandler_StoreEvents(t *testing.T) {
	svc := newTestService(t)
	srv := httptest.NewServer(newTestHandler(t, svc))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	req.Header.Set(OrganizationHeader, org)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	frames := make(chan []string, 1)
	go func() { frames <- readEvents(t, resp.Body, 2) }()

	// Another tenant's form is not forwarded.
	_, err = svc.CreateForm(context.Background(), "org-b", arbor.CreateFormInput{InternalName: "Clinic"})
	require.NoError(t, err)
	form, err := svc.CreateForm(context.Background(), org, arbor.CreateFormInput{InternalName: "Salon"})
	require.NoError(t, err)

	select {
	case got := <-frames:
		require.Len(t, got, 2)
		assert.Contains(t, got[0], "event: ping")
		assert.Contains(t, got[1], fmt.Sprintf(`"formId":%q`, form.ID))
	case <-time.After(2 * time.Second):
		t.Fatal("no store event received")
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: bad", domain.ErrInvalidInput), http.StatusBadRequest, "invalid_input"},
		{fmt.Errorf("%w: %w", domain.ErrInvalidAction, domain.ErrNodeNotFound), http.StatusBadRequest, "invalid_input"},
		{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{domain.ErrFormNotFound, http.StatusNotFound, "not_found"},
		{domain.ErrTemplateNotFound, http.StatusNotFound, "not_found"},
		{domain.ErrRestoreWindowExpired, http.StatusConflict, "restore_window_expired"},
		{fmt.Errorf("calendar: %w", domain.ErrProviderUnavailable), http.StatusServiceUnavailable, "provider_unavailable"},
		{arbor.ErrServiceClosed, http.StatusServiceUnavailable, "unavailable"},
		{domain.ErrWatchUnsupported, http.StatusNotImplemented, "not_implemented"},
		{errors.New("disk full"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		status, code := statusOf(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}
