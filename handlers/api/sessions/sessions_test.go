package sessions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/remiPra/chemins-essentiels-admin/core"
	"github.com/remiPra/chemins-essentiels-admin/editor"
)

type mockPageStore struct {
	mu      sync.Mutex
	pages   map[string]*core.Document
	getErr  error
	putErr  error
	putHook func()
}

func newMockPageStore() *mockPageStore {
	return &mockPageStore{pages: make(map[string]*core.Document)}
}

func (m *mockPageStore) GetPage(ctx context.Context, pageID string) (*core.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	doc, ok := m.pages[pageID]
	if !ok {
		return nil, fmt.Errorf("page %s: %w", pageID, core.ErrNotFound)
	}
	return doc.Clone(), nil
}

func (m *mockPageStore) PutPage(ctx context.Context, doc *core.Document) error {
	if m.putHook != nil {
		m.putHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.pages[doc.PageID] = doc.Clone()
	return nil
}

func (m *mockPageStore) DeletePage(ctx context.Context, pageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pages, pageID)
	return nil
}

type mockMediaStore struct {
	items map[string]*core.MediaItem
}

func (m *mockMediaStore) ListMedia(ctx context.Context) ([]*core.MediaItem, error) {
	return nil, nil
}

func (m *mockMediaStore) CreateMedia(ctx context.Context, item *core.MediaItem) error {
	m.items[item.ID] = item
	return nil
}

func (m *mockMediaStore) GetMedia(ctx context.Context, id string) (*core.MediaItem, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("media %s: %w", id, core.ErrNotFound)
	}
	return item, nil
}

func (m *mockMediaStore) DeleteMedia(ctx context.Context, id string) error {
	delete(m.items, id)
	return nil
}

type fixture struct {
	store  *mockPageStore
	media  *mockMediaStore
	reg    *editor.Registry
	router http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		store: newMockPageStore(),
		media: &mockMediaStore{items: make(map[string]*core.MediaItem)},
	}
	f.reg = editor.NewRegistry(f.store, nil, nil)

	r := chi.NewRouter()
	r.Post("/api/pages/{pageId}/sessions", HandleOpen(f.reg))
	r.Route("/api/sessions/{sid}", func(r chi.Router) {
		r.Get("/", HandleGet(f.reg))
		r.Delete("/", HandleDiscard(f.reg))
		r.Post("/blocks", HandleAddBlock(f.reg))
		r.Patch("/blocks/{blockId}", HandleEditBlock(f.reg))
		r.Delete("/blocks/{blockId}", HandleDeleteBlock(f.reg))
		r.Post("/blocks/{blockId}/move", HandleMoveBlock(f.reg))
		r.Post("/blocks/{blockId}/image", HandleSelectImage(f.reg, f.media))
		r.Post("/reorder", HandleReorder(f.reg))
		r.Post("/save", HandleSave(f.reg))
	})
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, editor.Snapshot) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	var snap editor.Snapshot
	if rr.Code < 300 && rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
			t.Fatalf("decode snapshot: %v (%s)", err, rr.Body.String())
		}
	}
	return rr, snap
}

func (f *fixture) open(t *testing.T, pageID string) editor.Snapshot {
	t.Helper()
	rr, snap := f.do(t, http.MethodPost, "/api/pages/"+pageID+"/sessions", nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("open session: expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	return snap
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body["error"]
}

func TestOpen_NewPageStartsWithPlaceholder(t *testing.T) {
	f := newFixture()
	snap := f.open(t, "about")

	if snap.State != editor.StateReady || len(snap.Blocks) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Blocks[0].Type != core.BlockHeading1 || snap.Blocks[0].Content != core.DefaultPageTitle {
		t.Errorf("unexpected placeholder block: %+v", snap.Blocks[0])
	}
	if snap.Dirty {
		t.Error("fresh session should not be dirty")
	}
}

func TestOpen_LoadFailure(t *testing.T) {
	f := newFixture()
	f.store.getErr = errors.New("connection refused")

	rr, _ := f.do(t, http.MethodPost, "/api/pages/about/sessions", nil)
	if rr.Code != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", rr.Code)
	}
	if f.reg.Len() != 0 {
		t.Errorf("failed open should not register a session")
	}
}

func TestUnknownSession(t *testing.T) {
	f := newFixture()
	rr, _ := f.do(t, http.MethodGet, "/api/sessions/nope/", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestAddEditSave(t *testing.T) {
	f := newFixture()
	snap := f.open(t, "home")
	base := "/api/sessions/" + snap.ID

	rr, snap := f.do(t, http.MethodPost, base+"/blocks", map[string]string{"type": "paragraph"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add block: expected status 201, got %d", rr.Code)
	}
	if len(snap.Blocks) != 2 || snap.Focus != snap.Blocks[1].ID || !snap.Dirty {
		t.Fatalf("unexpected snapshot after add: %+v", snap)
	}
	added := snap.Blocks[1].ID

	rr, snap = f.do(t, http.MethodPatch, base+"/blocks/"+added, map[string]string{"content": "Bonjour"})
	if rr.Code != http.StatusOK || snap.Blocks[1].Content != "Bonjour" {
		t.Fatalf("edit block failed: %d %+v", rr.Code, snap)
	}

	rr, snap = f.do(t, http.MethodPost, base+"/save", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("save: expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if snap.Dirty {
		t.Error("session should be clean after save")
	}

	stored, err := f.store.GetPage(context.Background(), "home")
	if err != nil {
		t.Fatalf("page not stored: %v", err)
	}
	if len(stored.Blocks) != 2 || stored.Blocks[1].Content != "Bonjour" {
		t.Errorf("stored document mismatch: %+v", stored.Blocks)
	}
}

func TestAddBlock_InvalidType(t *testing.T) {
	f := newFixture()
	snap := f.open(t, "home")

	rr, _ := f.do(t, http.MethodPost, "/api/sessions/"+snap.ID+"/blocks", map[string]string{"type": "video"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestEditBlock_RequiresContent(t *testing.T) {
	f := newFixture()
	snap := f.open(t, "home")

	rr, _ := f.do(t, http.MethodPatch, "/api/sessions/"+snap.ID+"/blocks/"+snap.Blocks[0].ID, map[string]string{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestDeleteLastBlock_Conflict(t *testing.T) {
	f := newFixture()
	snap := f.open(t, "home")

	rr, _ := f.do(t, http.MethodDelete, "/api/sessions/"+snap.ID+"/blocks/"+snap.Blocks[0].ID, nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
	if msg := errorBody(t, rr); msg != core.ErrGuardRejection.Error() {
		t.Errorf("error = %q", msg)
	}

	_, snap = f.do(t, http.MethodGet, "/api/sessions/"+snap.ID+"/", nil)
	if len(snap.Blocks) != 1 {
		t.Errorf("guard rejection must leave the block in place, got %d blocks", len(snap.Blocks))
	}
}

func TestDeleteBlock(t *testing.T) {
	f := newFixture()
	f.store.pages["home"] = &core.Document{PageID: "home", Blocks: []core.Block{
		{ID: "a", Type: core.BlockHeading1, Content: "A"},
		{ID: "b", Type: core.BlockParagraph, Content: "B"},
	}}
	snap := f.open(t, "home")

	rr, snap := f.do(t, http.MethodDelete, "/api/sessions/"+snap.ID+"/blocks/a", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if len(snap.Blocks) != 1 || snap.Blocks[0].ID != "b" {
		t.Errorf("unexpected blocks: %+v", snap.Blocks)
	}
}

func seededFixture(t *testing.T) (*fixture, string) {
	t.Helper()
	f := newFixture()
	f.store.pages["home"] = &core.Document{PageID: "home", Blocks: []core.Block{
		{ID: "a", Type: core.BlockHeading1, Content: "A"},
		{ID: "b", Type: core.BlockParagraph, Content: "B"},
		{ID: "c", Type: core.BlockImage},
		{ID: "d", Type: core.BlockParagraph, Content: "D"},
	}}
	snap := f.open(t, "home")
	return f, "/api/sessions/" + snap.ID
}

func ids(blocks []core.Block) string {
	var out []byte
	for _, b := range blocks {
		out = append(out, b.ID...)
	}
	return string(out)
}

func TestMoveBlock(t *testing.T) {
	testCases := []struct {
		name      string
		block     string
		direction string
		wantCode  int
		wantOrder string
	}{
		{"down", "a", "down", http.StatusOK, "bacd"},
		{"up", "c", "up", http.StatusOK, "acbd"},
		{"up at top is a no-op", "a", "up", http.StatusOK, "abcd"},
		{"down at bottom is a no-op", "d", "down", http.StatusOK, "abcd"},
		{"bad direction", "a", "left", http.StatusBadRequest, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f, base := seededFixture(t)
			rr, snap := f.do(t, http.MethodPost, base+"/blocks/"+tc.block+"/move", map[string]string{"direction": tc.direction})
			if rr.Code != tc.wantCode {
				t.Fatalf("expected status %d, got %d", tc.wantCode, rr.Code)
			}
			if tc.wantOrder != "" && ids(snap.Blocks) != tc.wantOrder {
				t.Errorf("order = %s, want %s", ids(snap.Blocks), tc.wantOrder)
			}
		})
	}
}

func TestReorder(t *testing.T) {
	f, base := seededFixture(t)

	rr, snap := f.do(t, http.MethodPost, base+"/reorder", map[string]string{"draggedId": "a", "targetId": "c"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ids(snap.Blocks) != "bcad" {
		t.Errorf("order = %s, want bcad", ids(snap.Blocks))
	}

	rr, _ = f.do(t, http.MethodPost, base+"/reorder", map[string]string{"draggedId": "a"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing target: expected status 400, got %d", rr.Code)
	}
}

func TestSelectImage(t *testing.T) {
	f, base := seededFixture(t)
	f.media.items["m1"] = &core.MediaItem{ID: "m1", URL: "https://cdn.example.com/m1.jpg", Name: "m1.jpg"}

	rr, snap := f.do(t, http.MethodPost, base+"/blocks/c/image", map[string]string{"mediaId": "m1"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if snap.Blocks[2].Content != "https://cdn.example.com/m1.jpg" {
		t.Errorf("image content = %q", snap.Blocks[2].Content)
	}

	rr, snap = f.do(t, http.MethodPost, base+"/blocks/c/image", map[string]string{"url": "https://elsewhere/x.png"})
	if rr.Code != http.StatusOK || snap.Blocks[2].Content != "https://elsewhere/x.png" {
		t.Errorf("direct url failed: %d %+v", rr.Code, snap.Blocks[2])
	}
}

func TestSelectImage_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		block    string
		body     map[string]string
		wantCode int
	}{
		{"unknown media", "c", map[string]string{"mediaId": "missing"}, http.StatusNotFound},
		{"nothing picked", "c", map[string]string{}, http.StatusBadRequest},
		{"not an image block", "b", map[string]string{"url": "https://x/y.png"}, http.StatusBadRequest},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f, base := seededFixture(t)
			rr, _ := f.do(t, http.MethodPost, base+"/blocks/"+tc.block+"/image", tc.body)
			if rr.Code != tc.wantCode {
				t.Errorf("expected status %d, got %d", tc.wantCode, rr.Code)
			}
		})
	}
}

func TestSave_Failure(t *testing.T) {
	f, base := seededFixture(t)
	f.store.putErr = errors.New("disk full")

	f.do(t, http.MethodPatch, base+"/blocks/b", map[string]string{"content": "changed"})
	rr, _ := f.do(t, http.MethodPost, base+"/save", nil)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rr.Code)
	}

	_, snap := f.do(t, http.MethodGet, base+"/", nil)
	if !snap.Dirty || snap.LastErr == "" || snap.Blocks[1].Content != "changed" {
		t.Errorf("failed save must keep the working copy: %+v", snap)
	}
}

func TestSave_ConcurrentRejected(t *testing.T) {
	f, base := seededFixture(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.store.putHook = func() {
		once.Do(func() {
			close(entered)
			<-release
		})
	}

	done := make(chan int)
	go func() {
		req := httptest.NewRequest(http.MethodPost, base+"/save", nil)
		rr := httptest.NewRecorder()
		f.router.ServeHTTP(rr, req)
		done <- rr.Code
	}()
	<-entered

	rr, _ := f.do(t, http.MethodPost, base+"/save", nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("second save: expected status 409, got %d", rr.Code)
	}

	close(release)
	if code := <-done; code != http.StatusOK {
		t.Errorf("first save: expected status 200, got %d", code)
	}
}

func TestDiscard(t *testing.T) {
	f := newFixture()
	snap := f.open(t, "home")

	rr, _ := f.do(t, http.MethodDelete, "/api/sessions/"+snap.ID+"/", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	rr, _ = f.do(t, http.MethodDelete, "/api/sessions/"+snap.ID+"/", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("second discard: expected status 404, got %d", rr.Code)
	}
}
