package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/hpungsan/unicorns/internal/config"
	"github.com/hpungsan/unicorns/internal/errors"
	"github.com/hpungsan/unicorns/internal/logger"
	"github.com/hpungsan/unicorns/internal/store"
	"github.com/hpungsan/unicorns/internal/unicorn"
)

// memRemote is an in-memory collection.
type memRemote struct {
	mu      sync.Mutex
	items   []unicorn.Unicorn
	nextID  int
	listErr error
	failAll error
	lists   int
}

func (m *memRemote) List(_ context.Context) ([]unicorn.Unicorn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]unicorn.Unicorn{}, m.items...), nil
}

func (m *memRemote) Create(_ context.Context, u unicorn.Unicorn) (unicorn.Unicorn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return unicorn.Unicorn{}, m.failAll
	}
	m.nextID++
	u.ID = fmt.Sprintf("u%d", m.nextID)
	m.items = append(m.items, u)
	return u, nil
}

func (m *memRemote) Replace(_ context.Context, id string, u unicorn.Unicorn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	for i := range m.items {
		if m.items[i].ID == id {
			u.ID = id
			m.items[i] = u
			return nil
		}
	}
	return errors.NewRemote(errors.MsgSaveFailed, 404)
}

func (m *memRemote) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	for i := range m.items {
		if m.items[i].ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return errors.NewRemote(errors.MsgDeleteFailed, 404)
}

func setupTest(t *testing.T, items ...unicorn.Unicorn) (http.Handler, *memRemote, *store.Store) {
	t.Helper()
	remote := &memRemote{items: items, nextID: len(items)}
	log := logger.NewLogger(logger.TestConfig())
	st := store.New(remote, store.WithLogger(log))

	cfg := config.DefaultConfig()
	cfg.APIID = "test"

	h := NewHandlers(st, cfg, log, "test")
	return h.Routes(), remote, st
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest("POST", path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func seedItems(n int) []unicorn.Unicorn {
	items := make([]unicorn.Unicorn, n)
	for i := range items {
		items[i] = unicorn.Unicorn{
			ID:    fmt.Sprintf("u%d", i+1),
			Name:  fmt.Sprintf("Unicorn %02d", i+1),
			Age:   unicorn.Age(i * 7),
			Color: "White",
		}
	}
	return items
}

// --- HandleList ---

func TestRoot_RedirectsToList(t *testing.T) {
	h, _, _ := setupTest(t)

	rec := serve(h, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/unicorns" {
		t.Errorf("Location = %q, want /unicorns", loc)
	}
}

func TestHandleList_FirstVisitLoads(t *testing.T) {
	h, remote, _ := setupTest(t, unicorn.Unicorn{ID: "1", Name: "Rainbow", Age: 5, Color: "Purple"})

	rec := serve(h, httptest.NewRequest("GET", "/unicorns", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Rainbow", "Purple", "👶 Baby Unicorn", "<html"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in response", want)
		}
	}

	serve(h, httptest.NewRequest("GET", "/unicorns", nil))
	if remote.lists != 1 {
		t.Errorf("lists = %d, want 1 (second visit uses cache)", remote.lists)
	}

	serve(h, httptest.NewRequest("GET", "/unicorns?refresh=1", nil))
	if remote.lists != 2 {
		t.Errorf("lists = %d, want 2 after ?refresh=1", remote.lists)
	}
}

func TestHandleList_UnknownAge(t *testing.T) {
	var odd, blank unicorn.Unicorn
	if err := json.Unmarshal([]byte(`{"_id":"2","name":"Odd","age":"ancient","color":"Grey"}`), &odd); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if err := json.Unmarshal([]byte(`{"_id":"3","name":"Test"}`), &blank); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	h, _, _ := setupTest(t, unicorn.Unicorn{ID: "1", Name: "Rainbow", Age: 5, Color: "Purple"}, odd, blank)

	rec := serve(h, httptest.NewRequest("GET", "/unicorns", nil))

	body := rec.Body.String()
	if strings.Count(body, "status-unknown") != 2 {
		t.Errorf("expected 2 unknown status rows, got %d", strings.Count(body, "status-unknown"))
	}
	if !strings.Contains(body, "<td>ancient</td>") {
		t.Error("expected stored age text in row")
	}
	if n := strings.Count(body, "status-baby"); n != 1 {
		t.Errorf("baby rows = %d, want 1 (a missing age is not 0)", n)
	}
}

func TestHandleList_HTMXRendersContentOnly(t *testing.T) {
	h, _, _ := setupTest(t, unicorn.Unicorn{ID: "1", Name: "Rainbow"})

	req := httptest.NewRequest("GET", "/unicorns", nil)
	req.Header.Set("HX-Request", "true")
	rec := serve(h, req)

	if strings.Contains(rec.Body.String(), "<html") {
		t.Error("htmx response should not include the layout")
	}
	if !strings.Contains(rec.Body.String(), "Rainbow") {
		t.Error("expected record in htmx fragment")
	}
}

func TestHandleList_Pagination(t *testing.T) {
	h, _, _ := setupTest(t, seedItems(7)...)

	rec := serve(h, httptest.NewRequest("GET", "/unicorns?page=2", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "Unicorn 06") || !strings.Contains(body, "Unicorn 07") {
		t.Error("expected records 6 and 7 on page 2")
	}
	if strings.Contains(body, "Unicorn 01") {
		t.Error("did not expect record 1 on page 2")
	}
	if !strings.Contains(body, `class="page prev"`) {
		t.Error("prev should be enabled on page 2")
	}
	if !strings.Contains(body, `class="page next disabled"`) {
		t.Error("next should be disabled on the last page")
	}
}

func TestHandleList_PrevDisabledOnFirstPage(t *testing.T) {
	h, _, _ := setupTest(t, seedItems(7)...)

	body := serve(h, httptest.NewRequest("GET", "/unicorns", nil)).Body.String()

	if !strings.Contains(body, `class="page prev disabled"`) {
		t.Error("prev should be disabled on page 1")
	}
	if got := strings.Count(body, `href="/unicorns?page=`); got != 3 {
		t.Errorf("page links = %d, want 3 (two page buttons + next)", got)
	}
}

func TestHandleList_PastLastPage(t *testing.T) {
	h, _, _ := setupTest(t, seedItems(3)...)

	body := serve(h, httptest.NewRequest("GET", "/unicorns?page=4", nil)).Body.String()

	if !strings.Contains(body, "Page 4 is empty") {
		t.Error("expected empty-page notice")
	}
}

func TestHandleList_BadPage(t *testing.T) {
	h, _, _ := setupTest(t)

	rec := serve(h, httptest.NewRequest("GET", "/unicorns?page=abc", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleList_EmptyState(t *testing.T) {
	h, _, _ := setupTest(t)

	body := serve(h, httptest.NewRequest("GET", "/unicorns", nil)).Body.String()

	if !strings.Contains(body, "No unicorns found") {
		t.Error("expected empty state")
	}
}

func TestHandleList_ErrorBannerKeepsRecords(t *testing.T) {
	h, remote, _ := setupTest(t, unicorn.Unicorn{ID: "1", Name: "Stale"})
	serve(h, httptest.NewRequest("GET", "/unicorns", nil))

	remote.listErr = errors.NewRemote(errors.MsgAPIError, 500)
	body := serve(h, httptest.NewRequest("GET", "/unicorns?refresh=1", nil)).Body.String()

	if !strings.Contains(body, "Network response was not ok") {
		t.Error("expected error banner")
	}
	if !strings.Contains(body, "Stale") {
		t.Error("expected stale records to stay visible")
	}
}

func TestHandleList_JSON(t *testing.T) {
	h, _, _ := setupTest(t, unicorn.Unicorn{ID: "1", Name: "Test"})

	req := httptest.NewRequest("GET", "/unicorns", nil)
	req.Header.Set("Accept", "application/json")
	rec := serve(h, req)

	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("Content-Type = %q", ct)
	}
	var st store.State
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(st.Records) != 1 || st.Records[0].Name != "Test" {
		t.Errorf("Records = %+v", st.Records)
	}
	if st.Error != "" || st.Loading {
		t.Errorf("Error = %q, Loading = %v", st.Error, st.Loading)
	}
}

// --- HandleSort ---

func TestHandleSort(t *testing.T) {
	h, _, st := setupTest(t)

	rec := serve(h, postForm("/unicorns/sort", url.Values{"field": {"age"}}))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if st.SortField() != store.SortByAge || st.SortOrder() != store.Asc {
		t.Errorf("sort = %s %s, want age asc", st.SortField(), st.SortOrder())
	}

	serve(h, postForm("/unicorns/sort", url.Values{"field": {"age"}}))
	if st.SortOrder() != store.Desc {
		t.Errorf("order = %s, want desc after second click", st.SortOrder())
	}
}

func TestHandleSort_InvalidField(t *testing.T) {
	h, _, st := setupTest(t)

	rec := serve(h, postForm("/unicorns/sort", url.Values{"field": {"weight"}}))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if st.SortField() != store.SortByName {
		t.Errorf("sort field changed to %s", st.SortField())
	}
}

func TestHandleList_SortIndicator(t *testing.T) {
	h, _, _ := setupTest(t, seedItems(2)...)
	serve(h, postForm("/unicorns/sort", url.Values{"field": {"name"}}))

	body := serve(h, httptest.NewRequest("GET", "/unicorns", nil)).Body.String()

	if !strings.Contains(body, "Name ▼") {
		t.Error("expected descending indicator on Name")
	}
	if strings.Index(body, "Unicorn 02") > strings.Index(body, "Unicorn 01") {
		t.Error("expected descending name order")
	}
}

// --- Forms ---

func TestHandleNew(t *testing.T) {
	h, _, _ := setupTest(t)

	body := serve(h, httptest.NewRequest("GET", "/unicorns/new", nil)).Body.String()

	for _, want := range []string{`id="name"`, `id="age"`, `id="color"`, `action="/unicorns"`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in form", want)
		}
	}
}

func TestHandleEdit_Populated(t *testing.T) {
	h, _, _ := setupTest(t, unicorn.Unicorn{ID: "123", Name: "Star", Age: 3, Color: "Gold"})

	rec := serve(h, httptest.NewRequest("GET", "/unicorns/123/edit", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`value="Star"`, `value="3"`, `value="Gold"`, `action="/unicorns/123"`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in form", want)
		}
	}
}

func TestHandleEdit_NotFound(t *testing.T) {
	h, _, _ := setupTest(t)

	rec := serve(h, httptest.NewRequest("GET", "/unicorns/nope/edit", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleCreate(t *testing.T) {
	h, remote, st := setupTest(t)

	rec := serve(h, postForm("/unicorns", url.Values{
		"name":  {"Rainbow"},
		"age":   {"5"},
		"color": {"Purple"},
	}))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303; body: %s", rec.Code, rec.Body.String())
	}
	if len(remote.items) != 1 {
		t.Fatalf("remote items = %d, want 1", len(remote.items))
	}
	got := remote.items[0]
	if got.Name != "Rainbow" || got.Age != 5 || got.Color != "Purple" {
		t.Errorf("created = %+v", got)
	}
	if len(st.Records()) != 1 {
		t.Error("container not refreshed after create")
	}
}

func TestHandleCreate_Validation(t *testing.T) {
	h, remote, _ := setupTest(t)

	rec := serve(h, postForm("/unicorns", url.Values{"age": {"-2"}}))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Name is required", "Age must be a whole number", "Color is required"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in response", want)
		}
	}
	if len(remote.items) != 0 {
		t.Error("invalid form reached the remote")
	}
}

func TestHandleCreate_ValidationJSON(t *testing.T) {
	h, _, _ := setupTest(t)

	req := postForm("/unicorns", url.Values{"name": {"x"}, "color": {"y"}})
	req.Header.Set("Accept", "application/json")
	rec := serve(h, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Fields map[string]string `json:"fields"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != "INVALID_REQUEST" {
		t.Errorf("code = %q", resp.Error.Code)
	}
	if resp.Error.Details.Fields["age"] != "Age is required" {
		t.Errorf("fields = %v", resp.Error.Details.Fields)
	}
}

func TestHandleCreate_RemoteFailure(t *testing.T) {
	h, remote, _ := setupTest(t)
	remote.failAll = errors.NewRemote(errors.MsgSaveFailed, 500)

	rec := serve(h, postForm("/unicorns", url.Values{
		"name":  {"Rainbow"},
		"age":   {"5"},
		"color": {"Purple"},
	}))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Failed to save unicorn") {
		t.Error("expected save failure message")
	}
	if !strings.Contains(body, `value="Rainbow"`) {
		t.Error("expected form to keep submitted values")
	}
}

func TestHandleUpdate(t *testing.T) {
	h, remote, _ := setupTest(t, unicorn.Unicorn{ID: "123", Name: "Star", Age: 3, Color: "Gold"})

	req := postForm("/unicorns/123", url.Values{
		"name":  {"Star"},
		"age":   {"30"},
		"color": {"Gold"},
	})
	req.Header.Set("HX-Request", "true")
	rec := serve(h, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("HX-Redirect"); got != "/unicorns" {
		t.Errorf("HX-Redirect = %q, want /unicorns", got)
	}
	if remote.items[0].Age != 30 {
		t.Errorf("age = %d, want 30", remote.items[0].Age)
	}
}

// --- HandleDelete ---

func TestHandleDelete(t *testing.T) {
	h, remote, st := setupTest(t, unicorn.Unicorn{ID: "123", Name: "Star"})

	req := httptest.NewRequest("DELETE", "/unicorns/123", nil)
	req.Header.Set("Accept", "application/json")
	rec := serve(h, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["deleted"] != true || resp["id"] != "123" {
		t.Errorf("response = %v", resp)
	}
	if len(remote.items) != 0 || st.HasRecords() {
		t.Error("record not removed")
	}
}

func TestHandleDelete_FormPost(t *testing.T) {
	h, _, _ := setupTest(t, unicorn.Unicorn{ID: "123", Name: "Star"})

	rec := serve(h, postForm("/unicorns/123/delete", nil))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
}

func TestHandleDelete_Failure(t *testing.T) {
	h, _, _ := setupTest(t)

	req := httptest.NewRequest("DELETE", "/unicorns/missing", nil)
	req.Header.Set("HX-Request", "true")
	rec := serve(h, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Failed to delete unicorn") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

// --- Misc ---

func TestHandleHelp(t *testing.T) {
	h, _, _ := setupTest(t)

	body := serve(h, httptest.NewRequest("GET", "/help", nil)).Body.String()

	if !strings.Contains(body, "<h1") || !strings.Contains(body, "<table>") {
		t.Error("expected rendered markdown heading and table")
	}
}

func TestMetrics(t *testing.T) {
	h, _, _ := setupTest(t)

	rec := serve(h, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("expected default Go collector metrics")
	}
}

func TestSecurityHeaders(t *testing.T) {
	h, _, _ := setupTest(t)

	rec := serve(h, httptest.NewRequest("GET", "/static/app.css", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing X-Frame-Options")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options")
	}
}
