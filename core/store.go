package core

import (
	"context"
	"sort"
	"time"
)

type (
	// Post is a blog article. Its body is the page document stored under Slug.
	Post struct {
		ID        string    `json:"id" bson:"_id"`
		Title     string    `json:"title" bson:"title"`
		Slug      string    `json:"slug" bson:"slug"`
		CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	}

	// MediaItem is an image uploaded to the media host.
	MediaItem struct {
		ID         string    `json:"id" bson:"_id"`
		URL        string    `json:"url" bson:"url"`
		Name       string    `json:"name" bson:"name"`
		UploadedAt time.Time `json:"uploadedAt" bson:"uploadedAt"`
	}

	// PageStore persists page documents keyed by page id (a slug).
	PageStore interface {
		// GetPage returns ErrNotFound when no document was ever saved for pageID.
		GetPage(ctx context.Context, pageID string) (*Document, error)

		// PutPage overwrites the whole stored document. There is no merge and
		// no version check: the last writer wins.
		PutPage(ctx context.Context, doc *Document) error

		// DeletePage removes a document. Deleting an absent page is not an error.
		DeletePage(ctx context.Context, pageID string) error
	}

	// PostStore persists the blog post list.
	PostStore interface {
		// ListPosts returns posts newest first.
		ListPosts(ctx context.Context) ([]*Post, error)
		CreatePost(ctx context.Context, post *Post) error
		GetPost(ctx context.Context, id string) (*Post, error)
		DeletePost(ctx context.Context, id string) error
	}

	// MediaStore persists the media library records. Files live on the media host.
	MediaStore interface {
		ListMedia(ctx context.Context) ([]*MediaItem, error)
		CreateMedia(ctx context.Context, item *MediaItem) error
		GetMedia(ctx context.Context, id string) (*MediaItem, error)
		DeleteMedia(ctx context.Context, id string) error
	}
)

// SortPostsNewestFirst orders posts by creation time, newest first, with the
// id as a stable tie-break.
func SortPostsNewestFirst(posts []*Post) {
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID > posts[j].ID
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}

func SortMediaNewestFirst(items []*MediaItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].UploadedAt.Equal(items[j].UploadedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].UploadedAt.After(items[j].UploadedAt)
	})
}
