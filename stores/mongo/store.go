package mongo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/remiPra/chemins-essentiels-admin/core"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	pagesCollection   = "pages"
	postsCollection   = "posts"
	mediaCollection   = "media"
	contentCollection = "content"
)

type mongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewStore connects to uri and stores every collection in database.
func NewStore(uri, database string) *mongoStore {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx, nil); err != nil {
		log.Fatalf("failed to ping mongo: %v", err)
	}
	logrus.WithField("database", database).Info("Connected to MongoDB")

	return &mongoStore{client: client, db: client.Database(database)}
}

func notFound(kind, id string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	return err
}

func (s *mongoStore) GetPage(ctx context.Context, pageID string) (*core.Document, error) {
	log := logrus.WithField("page_id", pageID)

	var doc core.Document
	err := s.db.Collection(pagesCollection).FindOne(ctx, bson.D{{Key: "_id", Value: pageID}}).Decode(&doc)
	if err != nil {
		log.WithError(err).Warn("Failed to find page")
		return nil, notFound("page", pageID, err)
	}
	log.Info("Page retrieved successfully")
	return &doc, nil
}

func (s *mongoStore) PutPage(ctx context.Context, doc *core.Document) error {
	log := logrus.WithFields(logrus.Fields{"page_id": doc.PageID, "blocks": len(doc.Blocks)})

	if doc.PageID == "" {
		return fmt.Errorf("page id cannot be empty")
	}
	stored := *doc
	if stored.Blocks == nil {
		stored.Blocks = []core.Block{}
	}
	_, err := s.db.Collection(pagesCollection).ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: doc.PageID}},
		&stored,
		options.Replace().SetUpsert(true))
	if err != nil {
		log.WithError(err).Error("Failed to save page")
		return err
	}
	log.Info("Page saved successfully")
	return nil
}

func (s *mongoStore) DeletePage(ctx context.Context, pageID string) error {
	if _, err := s.db.Collection(pagesCollection).DeleteOne(ctx, bson.D{{Key: "_id", Value: pageID}}); err != nil {
		logrus.WithError(err).WithField("page_id", pageID).Error("Failed to delete page")
		return err
	}
	logrus.WithField("page_id", pageID).Info("Page deleted")
	return nil
}

func (s *mongoStore) ListPosts(ctx context.Context) ([]*core.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.db.Collection(postsCollection).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	posts := []*core.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	logrus.Infof("Listed %d posts", len(posts))
	return posts, nil
}

func (s *mongoStore) CreatePost(ctx context.Context, post *core.Post) error {
	if _, err := s.db.Collection(postsCollection).InsertOne(ctx, post); err != nil {
		logrus.WithError(err).WithField("post_id", post.ID).Error("Failed to create post")
		return err
	}
	logrus.WithFields(logrus.Fields{"post_id": post.ID, "slug": post.Slug}).Info("Post created successfully")
	return nil
}

func (s *mongoStore) GetPost(ctx context.Context, id string) (*core.Post, error) {
	var p core.Post
	if err := s.db.Collection(postsCollection).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&p); err != nil {
		return nil, notFound("post", id, err)
	}
	return &p, nil
}

func (s *mongoStore) DeletePost(ctx context.Context, id string) error {
	return s.deleteOne(ctx, postsCollection, "post", id)
}

func (s *mongoStore) ListMedia(ctx context.Context) ([]*core.MediaItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "uploadedAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.db.Collection(mediaCollection).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	items := []*core.MediaItem{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *mongoStore) CreateMedia(ctx context.Context, item *core.MediaItem) error {
	if _, err := s.db.Collection(mediaCollection).InsertOne(ctx, item); err != nil {
		logrus.WithError(err).WithField("media_id", item.ID).Error("Failed to record media")
		return err
	}
	logrus.WithFields(logrus.Fields{"media_id": item.ID, "name": item.Name}).Info("Media recorded successfully")
	return nil
}

func (s *mongoStore) GetMedia(ctx context.Context, id string) (*core.MediaItem, error) {
	var m core.MediaItem
	if err := s.db.Collection(mediaCollection).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&m); err != nil {
		return nil, notFound("media", id, err)
	}
	return &m, nil
}

func (s *mongoStore) DeleteMedia(ctx context.Context, id string) error {
	return s.deleteOne(ctx, mediaCollection, "media", id)
}

func (s *mongoStore) GetHomeContent(ctx context.Context) (*core.HomeContent, error) {
	var c core.HomeContent
	err := s.db.Collection(contentCollection).FindOne(ctx, bson.D{{Key: "_id", Value: core.HomeContentKey}}).Decode(&c)
	if err != nil {
		logrus.WithError(err).Warn("Failed to find homepage content")
		return nil, notFound("content", core.HomeContentKey, err)
	}
	return &c, nil
}

// PutHomeContent upserts the homepage record; its _id comes from the filter.
func (s *mongoStore) PutHomeContent(ctx context.Context, c *core.HomeContent) error {
	_, err := s.db.Collection(contentCollection).ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: core.HomeContentKey}},
		c,
		options.Replace().SetUpsert(true))
	if err != nil {
		logrus.WithError(err).Error("Failed to save homepage content")
		return err
	}
	logrus.Info("Homepage content saved successfully")
	return nil
}

func (s *mongoStore) deleteOne(ctx context.Context, collection, kind, id string) error {
	log := logrus.WithFields(logrus.Fields{"collection": collection, "id": id})

	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		log.WithError(err).Error("Failed to delete document")
		return err
	}
	if res.DeletedCount == 0 {
		log.Warn("Document not found for deletion")
		return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	log.Info("Document deleted successfully")
	return nil
}

func (s *mongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
