package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/remiPra/chemins-essentiels-admin/core"
	"github.com/sirupsen/logrus"
)

const (
	pagesDir   = "pages"
	postsDir   = "posts"
	mediaDir   = "media"
	contentDir = "content"
)

type fsStore struct {
	basePath string
}

// NewStore creates a new filesystem-based store. Every record is one JSON file.
func NewStore(basePath string) *fsStore {
	for _, dir := range []string{pagesDir, postsDir, mediaDir, contentDir} {
		if err := os.MkdirAll(filepath.Join(basePath, dir), 0755); err != nil {
			log.Fatalf("failed to create storage directory: %v", err)
		}
	}
	return &fsStore{basePath: basePath}
}

// recordPath resolves the file of a record and refuses ids that would escape
// the collection directory.
func (s *fsStore) recordPath(collection, id string) (string, error) {
	if id == "" || id == "." || id == ".." || filepath.Base(id) != id || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("invalid id %q: must be a plain name", id)
	}
	dir, err := filepath.Abs(filepath.Join(s.basePath, collection))
	if err != nil {
		return "", err
	}
	p := filepath.Join(dir, id+".json")
	if !strings.HasPrefix(p, dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid path: access denied")
	}
	return p, nil
}

func (s *fsStore) readRecord(collection, id string, v any) error {
	p, err := s.recordPath(collection, id)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s %s: %w", collection, id, core.ErrNotFound)
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s %s: %w", collection, id, err)
	}
	return nil
}

// writeRecord replaces the file atomically so concurrent writers never leave
// a half-written document behind.
func (s *fsStore) writeRecord(collection, id string, v any) error {
	p, err := s.recordPath(collection, id)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", collection, id, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), "."+id+"-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func (s *fsStore) removeRecord(collection, id string) error {
	p, err := s.recordPath(collection, id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s %s: %w", collection, id, core.ErrNotFound)
		}
		return err
	}
	return nil
}

// listRecords decodes every record of a collection, skipping unreadable files.
func listRecords[T any](s *fsStore, collection string) ([]*T, error) {
	dir := filepath.Join(s.basePath, collection)
	log := logrus.WithField("path", dir)

	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*T{}, nil
		}
		log.WithError(err).Error("Failed to read directory")
		return nil, err
	}

	out := make([]*T, 0, len(files))
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			log.WithError(err).Warnf("Failed to read %s, skipping", file.Name())
			continue
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			log.WithError(err).Warnf("Failed to unmarshal %s, skipping", file.Name())
			continue
		}
		out = append(out, &v)
	}
	return out, nil
}

// pageFile is the on-disk shape of a page: the wire document plus its key.
type pageFile struct {
	PageID string       `json:"pageId"`
	Blocks []core.Block `json:"blocks"`
}

func (s *fsStore) GetPage(ctx context.Context, pageID string) (*core.Document, error) {
	log := logrus.WithField("page_id", pageID)

	var f pageFile
	if err := s.readRecord(pagesDir, pageID, &f); err != nil {
		log.WithError(err).Warn("Failed to read page")
		return nil, err
	}
	log.Info("Page retrieved successfully")
	return &core.Document{PageID: pageID, Blocks: f.Blocks}, nil
}

func (s *fsStore) PutPage(ctx context.Context, doc *core.Document) error {
	log := logrus.WithFields(logrus.Fields{"page_id": doc.PageID, "blocks": len(doc.Blocks)})

	if err := s.writeRecord(pagesDir, doc.PageID, pageFile{PageID: doc.PageID, Blocks: doc.Blocks}); err != nil {
		log.WithError(err).Error("Failed to write page")
		return err
	}
	log.Info("Page saved successfully")
	return nil
}

func (s *fsStore) DeletePage(ctx context.Context, pageID string) error {
	err := s.removeRecord(pagesDir, pageID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		logrus.WithError(err).WithField("page_id", pageID).Error("Failed to delete page")
		return err
	}
	logrus.WithField("page_id", pageID).Info("Page deleted")
	return nil
}

func (s *fsStore) ListPosts(ctx context.Context) ([]*core.Post, error) {
	posts, err := listRecords[core.Post](s, postsDir)
	if err != nil {
		return nil, err
	}
	core.SortPostsNewestFirst(posts)
	logrus.Infof("Listed %d posts", len(posts))
	return posts, nil
}

func (s *fsStore) CreatePost(ctx context.Context, post *core.Post) error {
	if err := s.writeRecord(postsDir, post.ID, post); err != nil {
		logrus.WithError(err).WithField("post_id", post.ID).Error("Failed to write post")
		return err
	}
	logrus.WithFields(logrus.Fields{"post_id": post.ID, "slug": post.Slug}).Info("Post created successfully")
	return nil
}

func (s *fsStore) GetPost(ctx context.Context, id string) (*core.Post, error) {
	var p core.Post
	if err := s.readRecord(postsDir, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *fsStore) DeletePost(ctx context.Context, id string) error {
	if err := s.removeRecord(postsDir, id); err != nil {
		logrus.WithError(err).WithField("post_id", id).Warn("Failed to delete post")
		return err
	}
	logrus.WithField("post_id", id).Info("Post deleted successfully")
	return nil
}

func (s *fsStore) ListMedia(ctx context.Context) ([]*core.MediaItem, error) {
	items, err := listRecords[core.MediaItem](s, mediaDir)
	if err != nil {
		return nil, err
	}
	core.SortMediaNewestFirst(items)
	return items, nil
}

func (s *fsStore) CreateMedia(ctx context.Context, item *core.MediaItem) error {
	if err := s.writeRecord(mediaDir, item.ID, item); err != nil {
		logrus.WithError(err).WithField("media_id", item.ID).Error("Failed to write media record")
		return err
	}
	logrus.WithFields(logrus.Fields{"media_id": item.ID, "name": item.Name}).Info("Media recorded successfully")
	return nil
}

func (s *fsStore) GetMedia(ctx context.Context, id string) (*core.MediaItem, error) {
	var m core.MediaItem
	if err := s.readRecord(mediaDir, id, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *fsStore) DeleteMedia(ctx context.Context, id string) error {
	if err := s.removeRecord(mediaDir, id); err != nil {
		logrus.WithError(err).WithField("media_id", id).Warn("Failed to delete media record")
		return err
	}
	logrus.WithField("media_id", id).Info("Media deleted successfully")
	return nil
}

func (s *fsStore) GetHomeContent(ctx context.Context) (*core.HomeContent, error) {
	var c core.HomeContent
	if err := s.readRecord(contentDir, core.HomeContentKey, &c); err != nil {
		logrus.WithError(err).Warn("Failed to read homepage content")
		return nil, err
	}
	return &c, nil
}

func (s *fsStore) PutHomeContent(ctx context.Context, c *core.HomeContent) error {
	if err := s.writeRecord(contentDir, core.HomeContentKey, c); err != nil {
		logrus.WithError(err).Error("Failed to write homepage content")
		return err
	}
	logrus.Info("Homepage content saved successfully")
	return nil
}
