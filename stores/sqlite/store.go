package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/remiPra/chemins-essentiels-admin/core"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)

	schema := []string{
		`CREATE TABLE IF NOT EXISTS pages (
			id TEXT PRIMARY KEY,
			blocks TEXT NOT NULL,
			updated_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS posts (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			slug TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS media (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			name TEXT,
			uploaded_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS content (
			id TEXT PRIMARY KEY,
			hero_title TEXT NOT NULL,
			hero_subtitle TEXT NOT NULL,
			hero_text TEXT NOT NULL,
			updated_at DATETIME
		);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			log.Fatalf("failed to create sqlite schema: %v", err)
		}
	}

	return &sqliteStore{db}
}

func (s *sqliteStore) GetPage(ctx context.Context, pageID string) (*core.Document, error) {
	log := logrus.WithField("page_id", pageID)
	log.Debug("Retrieving page")

	var data string
	err := s.db.QueryRowContext(ctx, "SELECT blocks FROM pages WHERE id = ?", pageID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("Page not found")
			return nil, fmt.Errorf("page %s: %w", pageID, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to retrieve page")
		return nil, err
	}

	doc := &core.Document{PageID: pageID}
	if err := json.Unmarshal([]byte(data), &doc.Blocks); err != nil {
		return nil, fmt.Errorf("decode page %s: %w", pageID, err)
	}
	log.Info("Page retrieved successfully")
	return doc, nil
}

func (s *sqliteStore) PutPage(ctx context.Context, doc *core.Document) error {
	log := logrus.WithFields(logrus.Fields{"page_id": doc.PageID, "blocks": len(doc.Blocks)})

	blocks := doc.Blocks
	if blocks == nil {
		blocks = []core.Block{}
	}
	data, err := json.Marshal(blocks)
	if err != nil {
		return fmt.Errorf("encode page %s: %w", doc.PageID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pages (id, blocks, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET blocks = excluded.blocks, updated_at = excluded.updated_at`,
		doc.PageID, string(data), time.Now().UTC())
	if err != nil {
		log.WithError(err).Error("Failed to save page")
		return err
	}
	log.Info("Page saved successfully")
	return nil
}

func (s *sqliteStore) DeletePage(ctx context.Context, pageID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM pages WHERE id = ?", pageID); err != nil {
		logrus.WithError(err).WithField("page_id", pageID).Error("Failed to delete page")
		return err
	}
	logrus.WithField("page_id", pageID).Info("Page deleted")
	return nil
}

func (s *sqliteStore) ListPosts(ctx context.Context) ([]*core.Post, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, title, slug, created_at FROM posts ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []*core.Post{}
	for rows.Next() {
		var p core.Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Slug, &p.CreatedAt); err != nil {
			return nil, err
		}
		posts = append(posts, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logrus.Infof("Listed %d posts", len(posts))
	return posts, nil
}

func (s *sqliteStore) CreatePost(ctx context.Context, post *core.Post) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO posts (id, title, slug, created_at) VALUES (?, ?, ?, ?)",
		post.ID, post.Title, post.Slug, post.CreatedAt.UTC())
	if err != nil {
		logrus.WithError(err).WithField("post_id", post.ID).Error("Failed to create post")
		return err
	}
	logrus.WithFields(logrus.Fields{"post_id": post.ID, "slug": post.Slug}).Info("Post created successfully")
	return nil
}

func (s *sqliteStore) GetPost(ctx context.Context, id string) (*core.Post, error) {
	p := core.Post{ID: id}
	err := s.db.QueryRowContext(ctx, "SELECT title, slug, created_at FROM posts WHERE id = ?", id).Scan(&p.Title, &p.Slug, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("post %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}

func (s *sqliteStore) DeletePost(ctx context.Context, id string) error {
	return s.deleteRow(ctx, "posts", id)
}

func (s *sqliteStore) ListMedia(ctx context.Context) ([]*core.MediaItem, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, url, name, uploaded_at FROM media ORDER BY uploaded_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*core.MediaItem{}
	for rows.Next() {
		var m core.MediaItem
		if err := rows.Scan(&m.ID, &m.URL, &m.Name, &m.UploadedAt); err != nil {
			return nil, err
		}
		items = append(items, &m)
	}
	return items, rows.Err()
}

func (s *sqliteStore) CreateMedia(ctx context.Context, item *core.MediaItem) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO media (id, url, name, uploaded_at) VALUES (?, ?, ?, ?)",
		item.ID, item.URL, item.Name, item.UploadedAt.UTC())
	if err != nil {
		logrus.WithError(err).WithField("media_id", item.ID).Error("Failed to record media")
		return err
	}
	logrus.WithFields(logrus.Fields{"media_id": item.ID, "name": item.Name}).Info("Media recorded successfully")
	return nil
}

func (s *sqliteStore) GetMedia(ctx context.Context, id string) (*core.MediaItem, error) {
	m := core.MediaItem{ID: id}
	err := s.db.QueryRowContext(ctx, "SELECT url, name, uploaded_at FROM media WHERE id = ?", id).Scan(&m.URL, &m.Name, &m.UploadedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("media %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}
	return &m, nil
}

func (s *sqliteStore) DeleteMedia(ctx context.Context, id string) error {
	return s.deleteRow(ctx, "media", id)
}

func (s *sqliteStore) GetHomeContent(ctx context.Context) (*core.HomeContent, error) {
	var c core.HomeContent
	err := s.db.QueryRowContext(ctx,
		"SELECT hero_title, hero_subtitle, hero_text FROM content WHERE id = ?", core.HomeContentKey,
	).Scan(&c.HeroTitle, &c.HeroSubtitle, &c.HeroText)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logrus.Warn("Homepage content not found")
			return nil, fmt.Errorf("content %s: %w", core.HomeContentKey, core.ErrNotFound)
		}
		logrus.WithError(err).Error("Failed to retrieve homepage content")
		return nil, err
	}
	return &c, nil
}

func (s *sqliteStore) PutHomeContent(ctx context.Context, c *core.HomeContent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO content (id, hero_title, hero_subtitle, hero_text, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET hero_title = excluded.hero_title, hero_subtitle = excluded.hero_subtitle,
			hero_text = excluded.hero_text, updated_at = excluded.updated_at`,
		core.HomeContentKey, c.HeroTitle, c.HeroSubtitle, c.HeroText, time.Now().UTC())
	if err != nil {
		logrus.WithError(err).Error("Failed to save homepage content")
		return err
	}
	logrus.Info("Homepage content saved successfully")
	return nil
}

// deleteRow removes one row by id. table is always a constant from this file.
func (s *sqliteStore) deleteRow(ctx context.Context, table, id string) error {
	log := logrus.WithFields(logrus.Fields{"table": table, "id": id})

	res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		log.WithError(err).Error("Failed to delete row")
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		log.Warn("Row not found for deletion")
		return fmt.Errorf("%s %s: %w", table, id, core.ErrNotFound)
	}
	log.Info("Row deleted successfully")
	return nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
