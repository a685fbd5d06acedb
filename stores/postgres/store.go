package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/remiPra/chemins-essentiels-admin/core"
	"github.com/sirupsen/logrus"
)

const schema = `
CREATE TABLE IF NOT EXISTS pages (
	id TEXT PRIMARY KEY,
	blocks JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS posts (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	slug TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS media (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	uploaded_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS content (
	id TEXT PRIMARY KEY,
	hero_title TEXT NOT NULL,
	hero_subtitle TEXT NOT NULL,
	hero_text TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

type pgStore struct {
	pool *pgxpool.Pool
}

// NewStore opens a connection pool on databaseURL and creates the schema.
func NewStore(databaseURL string) *pgStore {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		log.Fatalf("unable to connect to database: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("unable to reach database: %v", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		log.Fatalf("failed to create postgres schema: %v", err)
	}
	logrus.Info("Connected to PostgreSQL")
	return &pgStore{pool: pool}
}

func (s *pgStore) GetPage(ctx context.Context, pageID string) (*core.Document, error) {
	log := logrus.WithField("page_id", pageID)

	var data []byte
	err := s.pool.QueryRow(ctx, "SELECT blocks FROM pages WHERE id = $1", pageID).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Warn("Page not found")
			return nil, fmt.Errorf("page %s: %w", pageID, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to retrieve page")
		return nil, err
	}

	doc := &core.Document{PageID: pageID}
	if err := json.Unmarshal(data, &doc.Blocks); err != nil {
		return nil, fmt.Errorf("decode page %s: %w", pageID, err)
	}
	log.Info("Page retrieved successfully")
	return doc, nil
}

func (s *pgStore) PutPage(ctx context.Context, doc *core.Document) error {
	log := logrus.WithFields(logrus.Fields{"page_id": doc.PageID, "blocks": len(doc.Blocks)})

	blocks := doc.Blocks
	if blocks == nil {
		blocks = []core.Block{}
	}
	data, err := json.Marshal(blocks)
	if err != nil {
		return fmt.Errorf("encode page %s: %w", doc.PageID, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO pages (id, blocks, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET blocks = EXCLUDED.blocks, updated_at = now()`,
		doc.PageID, data)
	if err != nil {
		log.WithError(err).Error("Failed to save page")
		return err
	}
	log.Info("Page saved successfully")
	return nil
}

func (s *pgStore) DeletePage(ctx context.Context, pageID string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM pages WHERE id = $1", pageID); err != nil {
		logrus.WithError(err).WithField("page_id", pageID).Error("Failed to delete page")
		return err
	}
	logrus.WithField("page_id", pageID).Info("Page deleted")
	return nil
}

func (s *pgStore) ListPosts(ctx context.Context) ([]*core.Post, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, title, slug, created_at FROM posts ORDER BY created_at DESC, id DESC")
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

func (s *pgStore) CreatePost(ctx context.Context, post *core.Post) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO posts (id, title, slug, created_at) VALUES ($1, $2, $3, $4)",
		post.ID, post.Title, post.Slug, post.CreatedAt)
	if err != nil {
		logrus.WithError(err).WithField("post_id", post.ID).Error("Failed to create post")
		return err
	}
	logrus.WithFields(logrus.Fields{"post_id": post.ID, "slug": post.Slug}).Info("Post created successfully")
	return nil
}

func (s *pgStore) GetPost(ctx context.Context, id string) (*core.Post, error) {
	p := core.Post{ID: id}
	err := s.pool.QueryRow(ctx, "SELECT title, slug, created_at FROM posts WHERE id = $1", id).Scan(&p.Title, &p.Slug, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("post %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}

func (s *pgStore) DeletePost(ctx context.Context, id string) error {
	return s.deleteRow(ctx, "posts", id)
}

func (s *pgStore) ListMedia(ctx context.Context) ([]*core.MediaItem, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, url, name, uploaded_at FROM media ORDER BY uploaded_at DESC, id DESC")
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

func (s *pgStore) CreateMedia(ctx context.Context, item *core.MediaItem) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO media (id, url, name, uploaded_at) VALUES ($1, $2, $3, $4)",
		item.ID, item.URL, item.Name, item.UploadedAt)
	if err != nil {
		logrus.WithError(err).WithField("media_id", item.ID).Error("Failed to record media")
		return err
	}
	logrus.WithFields(logrus.Fields{"media_id": item.ID, "name": item.Name}).Info("Media recorded successfully")
	return nil
}

func (s *pgStore) GetMedia(ctx context.Context, id string) (*core.MediaItem, error) {
	m := core.MediaItem{ID: id}
	err := s.pool.QueryRow(ctx, "SELECT url, name, uploaded_at FROM media WHERE id = $1", id).Scan(&m.URL, &m.Name, &m.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("media %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}
	return &m, nil
}

func (s *pgStore) DeleteMedia(ctx context.Context, id string) error {
	return s.deleteRow(ctx, "media", id)
}

// deleteRow removes one row by id. table is always a constant from this file.
func (s *pgStore) GetHomeContent(ctx context.Context) (*core.HomeContent, error) {
	var c core.HomeContent
	err := s.pool.QueryRow(ctx,
		"SELECT hero_title, hero_subtitle, hero_text FROM content WHERE id = $1", core.HomeContentKey,
	).Scan(&c.HeroTitle, &c.HeroSubtitle, &c.HeroText)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logrus.Warn("Homepage content not found")
			return nil, fmt.Errorf("content %s: %w", core.HomeContentKey, core.ErrNotFound)
		}
		logrus.WithError(err).Error("Failed to retrieve homepage content")
		return nil, err
	}
	return &c, nil
}

func (s *pgStore) PutHomeContent(ctx context.Context, c *core.HomeContent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO content (id, hero_title, hero_subtitle, hero_text, updated_at) VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE SET hero_title = EXCLUDED.hero_title, hero_subtitle = EXCLUDED.hero_subtitle,
			hero_text = EXCLUDED.hero_text, updated_at = now()`,
		core.HomeContentKey, c.HeroTitle, c.HeroSubtitle, c.HeroText)
	if err != nil {
		logrus.WithError(err).Error("Failed to save homepage content")
		return err
	}
	logrus.Info("Homepage content saved successfully")
	return nil
}

func (s *pgStore) deleteRow(ctx context.Context, table, id string) error {
	log := logrus.WithFields(logrus.Fields{"table": table, "id": id})

	tag, err := s.pool.Exec(ctx, "DELETE FROM "+table+" WHERE id = $1", id)
	if err != nil {
		log.WithError(err).Error("Failed to delete row")
		return err
	}
	if tag.RowsAffected() == 0 {
		log.Warn("Row not found for deletion")
		return fmt.Errorf("%s %s: %w", table, id, core.ErrNotFound)
	}
	log.Info("Row deleted successfully")
	return nil
}

func (s *pgStore) Close() {
	s.pool.Close()
}
