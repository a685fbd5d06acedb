// Package storetest holds the behaviour every store backend must share.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/remiPra/chemins-essentiels-admin/core"
)

// Store mirrors stores.Store without importing it (stores imports every backend).
type Store interface {
	core.PageStore
	core.PostStore
	core.MediaStore
	core.ContentStore
}

// Run exercises the full store contract against s. Each backend calls it from
// its own tests with a fresh, empty store.
func Run(t *testing.T, s Store) {
	t.Run("PageRoundTrip", func(t *testing.T) { testPageRoundTrip(t, s) })
	t.Run("PageNotFound", func(t *testing.T) { testPageNotFound(t, s) })
	t.Run("PageOverwrite", func(t *testing.T) { testPageOverwrite(t, s) })
	t.Run("PageDelete", func(t *testing.T) { testPageDelete(t, s) })
	t.Run("PageDataIntegrity", func(t *testing.T) { testPageDataIntegrity(t, s) })
	t.Run("ConcurrentPuts", func(t *testing.T) { testConcurrentPuts(t, s) })
	t.Run("Posts", func(t *testing.T) { testPosts(t, s) })
	t.Run("Media", func(t *testing.T) { testMedia(t, s) })
	t.Run("HomeContent", func(t *testing.T) { testHomeContent(t, s) })
}

func uniquePage(prefix string) string {
	return prefix + "-" + ulid.Make().String()
}

func testPageRoundTrip(t *testing.T, s Store) {
	ctx := context.Background()
	pageID := uniquePage("about")
	doc := &core.Document{PageID: pageID, Blocks: []core.Block{
		{ID: "b1", Type: core.BlockHeading1, Content: "Titre"},
		{ID: "b2", Type: core.BlockParagraph, Content: "Bonjour"},
		{ID: "b3", Type: core.BlockImage, Content: "https://cdn.example.com/a.png"},
	}}

	if err := s.PutPage(ctx, doc); err != nil {
		t.Fatalf("PutPage() failed: %v", err)
	}

	got, err := s.GetPage(ctx, pageID)
	if err != nil {
		t.Fatalf("GetPage() failed: %v", err)
	}
	if got.PageID != pageID {
		t.Errorf("PageID mismatch: got %q, want %q", got.PageID, pageID)
	}
	if !reflect.DeepEqual(got.Blocks, doc.Blocks) {
		t.Errorf("Blocks mismatch:\n got  %+v\n want %+v", got.Blocks, doc.Blocks)
	}
}

func testPageNotFound(t *testing.T, s Store) {
	_, err := s.GetPage(context.Background(), uniquePage("missing"))
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetPage() on missing page: got %v, want ErrNotFound", err)
	}
}

func testPageOverwrite(t *testing.T, s Store) {
	ctx := context.Background()
	pageID := uniquePage("home")

	first := &core.Document{PageID: pageID, Blocks: []core.Block{
		{ID: "a", Type: core.BlockHeading1, Content: "one"},
		{ID: "b", Type: core.BlockParagraph, Content: "two"},
	}}
	second := &core.Document{PageID: pageID, Blocks: []core.Block{
		{ID: "c", Type: core.BlockParagraph, Content: "only"},
	}}

	if err := s.PutPage(ctx, first); err != nil {
		t.Fatalf("PutPage(first) failed: %v", err)
	}
	if err := s.PutPage(ctx, second); err != nil {
		t.Fatalf("PutPage(second) failed: %v", err)
	}

	got, err := s.GetPage(ctx, pageID)
	if err != nil {
		t.Fatalf("GetPage() failed: %v", err)
	}
	if !reflect.DeepEqual(got.Blocks, second.Blocks) {
		t.Errorf("overwrite did not replace document: got %+v", got.Blocks)
	}
}

func testPageDelete(t *testing.T, s Store) {
	ctx := context.Background()
	pageID := uniquePage("post")

	if err := s.PutPage(ctx, &core.Document{PageID: pageID, Blocks: []core.Block{{ID: "a", Type: core.BlockParagraph}}}); err != nil {
		t.Fatalf("PutPage() failed: %v", err)
	}
	if err := s.DeletePage(ctx, pageID); err != nil {
		t.Fatalf("DeletePage() failed: %v", err)
	}
	if _, err := s.GetPage(ctx, pageID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetPage() after delete: got %v, want ErrNotFound", err)
	}
	if err := s.DeletePage(ctx, pageID); err != nil {
		t.Errorf("DeletePage() on absent page should succeed, got %v", err)
	}
}

func testPageDataIntegrity(t *testing.T, s Store) {
	ctx := context.Background()

	testCases := []struct {
		name    string
		content string
	}{
		{"ASCII", "Hello World"},
		{"UTF-8", "Chemins essentiels: été, ça, 世界 🌍"},
		{"JSON-like", `{"elements":[],"appState":{}}`},
		{"Special chars", "!@#$%^&*()_+-=[]{}|;':\",./<>?"},
		{"Newlines", "line1\nline2\nline3"},
		{"Empty", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pageID := uniquePage("integrity")
			doc := &core.Document{PageID: pageID, Blocks: []core.Block{{ID: "x", Type: core.BlockParagraph, Content: tc.content}}}
			if err := s.PutPage(ctx, doc); err != nil {
				t.Fatalf("PutPage() failed: %v", err)
			}
			got, err := s.GetPage(ctx, pageID)
			if err != nil {
				t.Fatalf("GetPage() failed: %v", err)
			}
			if got.Blocks[0].Content != tc.content {
				t.Errorf("Data integrity failed: got %q, want %q", got.Blocks[0].Content, tc.content)
			}
		})
	}
}

func testConcurrentPuts(t *testing.T, s Store) {
	ctx := context.Background()
	pageID := uniquePage("concurrent")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			doc := &core.Document{PageID: pageID, Blocks: []core.Block{
				{ID: fmt.Sprintf("w%d", index), Type: core.BlockParagraph, Content: fmt.Sprintf("writer-%d", index)},
			}}
			if err := s.PutPage(ctx, doc); err != nil {
				t.Errorf("Concurrent PutPage() failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, err := s.GetPage(ctx, pageID)
	if err != nil {
		t.Fatalf("GetPage() failed: %v", err)
	}
	if len(got.Blocks) != 1 {
		t.Errorf("last writer should win with a whole document, got %d blocks", len(got.Blocks))
	}
}

func testPosts(t *testing.T, s Store) {
	ctx := context.Background()
	base := time.Now().Truncate(time.Millisecond).UTC()

	older := &core.Post{ID: ulid.Make().String(), Title: "Older", Slug: "post-older", CreatedAt: base.Add(-time.Hour)}
	newer := &core.Post{ID: ulid.Make().String(), Title: "Newer", Slug: "post-newer", CreatedAt: base}

	for _, p := range []*core.Post{older, newer} {
		if err := s.CreatePost(ctx, p); err != nil {
			t.Fatalf("CreatePost() failed: %v", err)
		}
	}

	got, err := s.GetPost(ctx, newer.ID)
	if err != nil {
		t.Fatalf("GetPost() failed: %v", err)
	}
	if got.Title != "Newer" || got.Slug != "post-newer" || !got.CreatedAt.Equal(newer.CreatedAt) {
		t.Errorf("GetPost() mismatch: %+v", got)
	}

	posts, err := s.ListPosts(ctx)
	if err != nil {
		t.Fatalf("ListPosts() failed: %v", err)
	}
	iNewer, iOlder := indexPost(posts, newer.ID), indexPost(posts, older.ID)
	if iNewer < 0 || iOlder < 0 {
		t.Fatalf("ListPosts() missing created posts: %+v", posts)
	}
	if iNewer > iOlder {
		t.Errorf("ListPosts() should be newest first")
	}

	if err := s.DeletePost(ctx, older.ID); err != nil {
		t.Fatalf("DeletePost() failed: %v", err)
	}
	if _, err := s.GetPost(ctx, older.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetPost() after delete: got %v, want ErrNotFound", err)
	}
	if err := s.DeletePost(ctx, older.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("DeletePost() twice: got %v, want ErrNotFound", err)
	}
}

func testMedia(t *testing.T, s Store) {
	ctx := context.Background()
	item := &core.MediaItem{
		ID:         ulid.Make().String(),
		URL:        "https://cdn.example.com/media/photo.jpg",
		Name:       "photo.jpg",
		UploadedAt: time.Now().Truncate(time.Millisecond).UTC(),
	}

	if err := s.CreateMedia(ctx, item); err != nil {
		t.Fatalf("CreateMedia() failed: %v", err)
	}

	got, err := s.GetMedia(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetMedia() failed: %v", err)
	}
	if got.URL != item.URL || got.Name != item.Name {
		t.Errorf("GetMedia() mismatch: %+v", got)
	}

	items, err := s.ListMedia(ctx)
	if err != nil {
		t.Fatalf("ListMedia() failed: %v", err)
	}
	found := false
	for _, m := range items {
		if m.ID == item.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("ListMedia() does not contain %s", item.ID)
	}

	if err := s.DeleteMedia(ctx, item.ID); err != nil {
		t.Fatalf("DeleteMedia() failed: %v", err)
	}
	if _, err := s.GetMedia(ctx, item.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetMedia() after delete: got %v, want ErrNotFound", err)
	}
}

// testHomeContent does not assume the homepage was never saved: server
// backends share one database across runs.
func testHomeContent(t *testing.T, s Store) {
	ctx := context.Background()

	first := &core.HomeContent{
		HeroTitle:    "Chemins essentiels",
		HeroSubtitle: "Soins énergétiques",
		HeroText:     "Bienvenue.\nPrenez le temps.",
	}
	if err := s.PutHomeContent(ctx, first); err != nil {
		t.Fatalf("PutHomeContent() failed: %v", err)
	}
	got, err := s.GetHomeContent(ctx)
	if err != nil {
		t.Fatalf("GetHomeContent() failed: %v", err)
	}
	if *got != *first {
		t.Errorf("GetHomeContent() = %+v, want %+v", got, first)
	}

	second := &core.HomeContent{HeroTitle: "Nouveau titre"}
	if err := s.PutHomeContent(ctx, second); err != nil {
		t.Fatalf("PutHomeContent(second) failed: %v", err)
	}
	got, err = s.GetHomeContent(ctx)
	if err != nil {
		t.Fatalf("GetHomeContent() failed: %v", err)
	}
	if *got != *second {
		t.Errorf("overwrite should clear omitted fields, got %+v", got)
	}
}

func indexPost(posts []*core.Post, id string) int {
	for i, p := range posts {
		if p.ID == id {
			return i
		}
	}
	return -1
}
