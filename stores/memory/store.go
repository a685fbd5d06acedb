package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/remiPra/chemins-essentiels-admin/core"
	"github.com/sirupsen/logrus"
)

// memStore keeps pages, posts and media records in process memory.
type memStore struct {
	mu    sync.RWMutex
	pages map[string]*core.Document
	posts map[string]*core.Post
	media map[string]*core.MediaItem
	home  *core.HomeContent
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{
		pages: make(map[string]*core.Document),
		posts: make(map[string]*core.Post),
		media: make(map[string]*core.MediaItem),
	}
}

// GetPage returns a copy so callers cannot mutate the stored document.
func (s *memStore) GetPage(ctx context.Context, pageID string) (*core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := logrus.WithField("page_id", pageID)
	doc, ok := s.pages[pageID]
	if !ok {
		log.Warn("Page not found")
		return nil, fmt.Errorf("page %s: %w", pageID, core.ErrNotFound)
	}
	log.Info("Page retrieved successfully")
	return doc.Clone(), nil
}

func (s *memStore) PutPage(ctx context.Context, doc *core.Document) error {
	if doc.PageID == "" {
		return fmt.Errorf("page id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pages[doc.PageID] = doc.Clone()
	logrus.WithFields(logrus.Fields{"page_id": doc.PageID, "blocks": len(doc.Blocks)}).Info("Page saved successfully")
	return nil
}

func (s *memStore) DeletePage(ctx context.Context, pageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pages, pageID)
	logrus.WithField("page_id", pageID).Info("Page deleted")
	return nil
}

func (s *memStore) ListPosts(ctx context.Context) ([]*core.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	posts := make([]*core.Post, 0, len(s.posts))
	for _, p := range s.posts {
		cp := *p
		posts = append(posts, &cp)
	}
	core.SortPostsNewestFirst(posts)

	logrus.Infof("Listed %d posts", len(posts))
	return posts, nil
}

func (s *memStore) CreatePost(ctx context.Context, post *core.Post) error {
	if post.ID == "" {
		return fmt.Errorf("post id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *post
	s.posts[post.ID] = &cp
	logrus.WithFields(logrus.Fields{"post_id": post.ID, "slug": post.Slug}).Info("Post created successfully")
	return nil
}

func (s *memStore) GetPost(ctx context.Context, id string) (*core.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		logrus.WithField("post_id", id).Warn("Post not found")
		return nil, fmt.Errorf("post %s: %w", id, core.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) DeletePost(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		logrus.WithField("post_id", id).Warn("Post not found for deletion")
		return fmt.Errorf("post %s: %w", id, core.ErrNotFound)
	}
	delete(s.posts, id)
	logrus.WithField("post_id", id).Info("Post deleted successfully")
	return nil
}

func (s *memStore) ListMedia(ctx context.Context) ([]*core.MediaItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]*core.MediaItem, 0, len(s.media))
	for _, m := range s.media {
		cp := *m
		items = append(items, &cp)
	}
	core.SortMediaNewestFirst(items)
	return items, nil
}

func (s *memStore) CreateMedia(ctx context.Context, item *core.MediaItem) error {
	if item.ID == "" {
		return fmt.Errorf("media id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *item
	s.media[item.ID] = &cp
	logrus.WithFields(logrus.Fields{"media_id": item.ID, "name": item.Name}).Info("Media recorded successfully")
	return nil
}

func (s *memStore) GetMedia(ctx context.Context, id string) (*core.MediaItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.media[id]
	if !ok {
		logrus.WithField("media_id", id).Warn("Media not found")
		return nil, fmt.Errorf("media %s: %w", id, core.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) DeleteMedia(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.media[id]; !ok {
		logrus.WithField("media_id", id).Warn("Media not found for deletion")
		return fmt.Errorf("media %s: %w", id, core.ErrNotFound)
	}
	delete(s.media, id)
	logrus.WithField("media_id", id).Info("Media deleted successfully")
	return nil
}

func (s *memStore) GetHomeContent(ctx context.Context) (*core.HomeContent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.home == nil {
		logrus.Warn("Homepage content not found")
		return nil, fmt.Errorf("content %s: %w", core.HomeContentKey, core.ErrNotFound)
	}
	cp := *s.home
	return &cp, nil
}

func (s *memStore) PutHomeContent(ctx context.Context, c *core.HomeContent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	s.home = &cp
	logrus.Info("Homepage content saved successfully")
	return nil
}
