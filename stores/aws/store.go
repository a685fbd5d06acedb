package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/remiPra/chemins-essentiels-admin/core"
	"github.com/sirupsen/logrus"
)

const (
	pagesPrefix   = "pages"
	postsPrefix   = "posts"
	mediaPrefix   = "media"
	contentPrefix = "content"
)

type s3Store struct {
	s3Client *s3.Client
	bucket   string
}

// NewStore creates a new S3-based store. Credentials and region come from
// the default AWS configuration chain.
func NewStore(bucketName string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	return &s3Store{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucketName,
	}
}

// objectKey sanitizes id so it cannot address objects outside its prefix.
func objectKey(prefix, id string) (string, error) {
	if path.Base(id) != id {
		return "", fmt.Errorf("invalid id %q: must not be a path", id)
	}
	if id == "" || id == "." || id == ".." {
		return "", fmt.Errorf("invalid id %q: must not be empty or a dot directory", id)
	}
	return path.Join(prefix, id+".json"), nil
}

func (s *s3Store) getObject(ctx context.Context, prefix, id string, v any) error {
	key, err := objectKey(prefix, id)
	if err != nil {
		return err
	}
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return fmt.Errorf("%s %s: %w", prefix, id, core.ErrNotFound)
		}
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

func (s *s3Store) putObject(ctx context.Context, prefix, id string, v any) error {
	key, err := objectKey(prefix, id)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

func (s *s3Store) deleteObject(ctx context.Context, prefix, id string) error {
	key, err := objectKey(prefix, id)
	if err != nil {
		return err
	}
	_, err = s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// exists reports whether the object is present. S3 deletes are idempotent,
// so posts and media check first to report ErrNotFound.
func (s *s3Store) exists(ctx context.Context, prefix, id string) (bool, error) {
	key, err := objectKey(prefix, id)
	if err != nil {
		return false, err
	}
	_, err = s.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *s3types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func listObjects[T any](ctx context.Context, s *s3Store, prefix string) ([]*T, error) {
	out := []*T{}
	paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix + "/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		for _, object := range page.Contents {
			resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    object.Key,
			})
			if err != nil {
				logrus.WithError(err).Warnf("Failed to get object %s, skipping", aws.ToString(object.Key))
				continue
			}
			data, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				logrus.WithError(err).Warnf("Failed to read object %s, skipping", aws.ToString(object.Key))
				continue
			}
			var v T
			if err := json.Unmarshal(data, &v); err != nil {
				logrus.WithError(err).Warnf("Failed to unmarshal object %s, skipping", aws.ToString(object.Key))
				continue
			}
			out = append(out, &v)
		}
	}
	return out, nil
}

type pageObject struct {
	PageID string       `json:"pageId"`
	Blocks []core.Block `json:"blocks"`
}

func (s *s3Store) GetPage(ctx context.Context, pageID string) (*core.Document, error) {
	var obj pageObject
	if err := s.getObject(ctx, pagesPrefix, pageID, &obj); err != nil {
		logrus.WithError(err).WithField("page_id", pageID).Warn("Failed to get page")
		return nil, err
	}
	return &core.Document{PageID: pageID, Blocks: obj.Blocks}, nil
}

func (s *s3Store) PutPage(ctx context.Context, doc *core.Document) error {
	if err := s.putObject(ctx, pagesPrefix, doc.PageID, pageObject{PageID: doc.PageID, Blocks: doc.Blocks}); err != nil {
		logrus.WithError(err).WithField("page_id", doc.PageID).Error("Failed to save page")
		return err
	}
	logrus.WithFields(logrus.Fields{"page_id": doc.PageID, "blocks": len(doc.Blocks)}).Info("Page saved successfully")
	return nil
}

func (s *s3Store) DeletePage(ctx context.Context, pageID string) error {
	return s.deleteObject(ctx, pagesPrefix, pageID)
}

func (s *s3Store) ListPosts(ctx context.Context) ([]*core.Post, error) {
	posts, err := listObjects[core.Post](ctx, s, postsPrefix)
	if err != nil {
		return nil, err
	}
	core.SortPostsNewestFirst(posts)
	return posts, nil
}

func (s *s3Store) CreatePost(ctx context.Context, post *core.Post) error {
	return s.putObject(ctx, postsPrefix, post.ID, post)
}

func (s *s3Store) GetPost(ctx context.Context, id string) (*core.Post, error) {
	var p core.Post
	if err := s.getObject(ctx, postsPrefix, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *s3Store) DeletePost(ctx context.Context, id string) error {
	ok, err := s.exists(ctx, postsPrefix, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("post %s: %w", id, core.ErrNotFound)
	}
	return s.deleteObject(ctx, postsPrefix, id)
}

func (s *s3Store) ListMedia(ctx context.Context) ([]*core.MediaItem, error) {
	items, err := listObjects[core.MediaItem](ctx, s, mediaPrefix)
	if err != nil {
		return nil, err
	}
	core.SortMediaNewestFirst(items)
	return items, nil
}

func (s *s3Store) CreateMedia(ctx context.Context, item *core.MediaItem) error {
	return s.putObject(ctx, mediaPrefix, item.ID, item)
}

func (s *s3Store) GetMedia(ctx context.Context, id string) (*core.MediaItem, error) {
	var m core.MediaItem
	if err := s.getObject(ctx, mediaPrefix, id, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *s3Store) DeleteMedia(ctx context.Context, id string) error {
	ok, err := s.exists(ctx, mediaPrefix, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("media %s: %w", id, core.ErrNotFound)
	}
	return s.deleteObject(ctx, mediaPrefix, id)
}

func (s *s3Store) GetHomeContent(ctx context.Context) (*core.HomeContent, error) {
	var c core.HomeContent
	if err := s.getObject(ctx, contentPrefix, core.HomeContentKey, &c); err != nil {
		logrus.WithError(err).Warn("Failed to get homepage content")
		return nil, err
	}
	return &c, nil
}

func (s *s3Store) PutHomeContent(ctx context.Context, c *core.HomeContent) error {
	if err := s.putObject(ctx, contentPrefix, core.HomeContentKey, c); err != nil {
		logrus.WithError(err).Error("Failed to save homepage content")
		return err
	}
	logrus.Info("Homepage content saved successfully")
	return nil
}
