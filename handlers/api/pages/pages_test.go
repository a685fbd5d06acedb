package pages

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/remiPra/chemins-essentiels-admin/core"
	pagerender "github.com/remiPra/chemins-essentiels-admin/render"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

type mockPageStore struct {
	pages  map[string]*core.Document
	getErr error
}

func newMockPageStore() *mockPageStore {
	return &mockPageStore{pages: make(map[string]*core.Document)}
}

func (m *mockPageStore) GetPage(ctx context.Context, pageID string) (*core.Document, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	doc, ok := m.pages[pageID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return doc, nil
}

func (m *mockPageStore) PutPage(ctx context.Context, doc *core.Document) error {
	m.pages[doc.PageID] = doc
	return nil
}

func (m *mockPageStore) DeletePage(ctx context.Context, pageID string) error {
	delete(m.pages, pageID)
	return nil
}

func withPageID(req *http.Request, pageID string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("pageId", pageID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestHandleGetView(t *testing.T) {
	store := newMockPageStore()
	store.pages["about"] = &core.Document{PageID: "about", Blocks: []core.Block{
		{ID: "1", Type: core.BlockHeading1, Content: "À propos"},
		{ID: "2", Type: core.BlockImage, Content: ""},
	}}
	handler := HandleGetView(pagerender.NewRenderer(store))

	req := withPageID(httptest.NewRequest(http.MethodGet, "/api/pages/about", nil), "about")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var view pagerender.View
	if err := json.NewDecoder(rr.Body).Decode(&view); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if view.State != pagerender.StateReady || len(view.Nodes) != 1 || view.Nodes[0].Text != "À propos" {
		t.Errorf("unexpected view: %+v", view)
	}
}

func TestHandleGetView_Missing(t *testing.T) {
	handler := HandleGetView(pagerender.NewRenderer(newMockPageStore()))

	req := withPageID(httptest.NewRequest(http.MethodGet, "/api/pages/new", nil), "new")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var view pagerender.View
	json.NewDecoder(rr.Body).Decode(&view)
	if view.State != pagerender.StateEmpty {
		t.Errorf("expected empty view, got %q", view.State)
	}
}

func TestHandleGetView_StoreFailure(t *testing.T) {
	store := newMockPageStore()
	store.getErr = errors.New("connection refused")
	handler := HandleGetView(pagerender.NewRenderer(store))

	req := withPageID(httptest.NewRequest(http.MethodGet, "/api/pages/home", nil), "home")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", rr.Code)
	}
}

func TestHandleRenderHTML(t *testing.T) {
	store := newMockPageStore()
	store.pages["home"] = &core.Document{PageID: "home", Blocks: []core.Block{
		{ID: "1", Type: core.BlockHeading2, Content: "Bienvenue"},
		{ID: "2", Type: core.BlockParagraph, Content: "Texte"},
	}}
	handler := HandleRenderHTML(pagerender.NewRenderer(store))

	req := withPageID(httptest.NewRequest(http.MethodGet, "/api/pages/home/html", nil), "home")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "<h2>Bienvenue</h2>") || !strings.Contains(body, "<p>Texte</p>") {
		t.Errorf("unexpected body: %s", body)
	}
}

// brokenWriter accepts headers but fails every body write, like a client
// that went away mid-response.
type brokenWriter struct {
	header http.Header
	status int
}

func (b *brokenWriter) Header() http.Header { return b.header }

func (b *brokenWriter) WriteHeader(status int) { b.status = status }

func (b *brokenWriter) Write(p []byte) (int, error) { return 0, errors.New("broken pipe") }

func TestHandleRenderHTML_WriteFailureLogged(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	store := newMockPageStore()
	store.pages["home"] = &core.Document{PageID: "home", Blocks: []core.Block{
		{ID: "1", Type: core.BlockParagraph, Content: "Texte"},
	}}
	handler := HandleRenderHTML(pagerender.NewRenderer(store))

	w := &brokenWriter{header: http.Header{}}
	req := withPageID(httptest.NewRequest(http.MethodGet, "/api/pages/home/html", nil), "home")
	handler.ServeHTTP(w, req)

	var found bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Message == "Failed to write page HTML" {
			found = true
			if entry.Data["page_id"] != "home" {
				t.Errorf("page_id = %v, want home", entry.Data["page_id"])
			}
		}
	}
	if !found {
		t.Error("expected a warning for the failed write")
	}
}
