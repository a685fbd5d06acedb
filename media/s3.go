package media

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

type s3Host struct {
	s3Client  *s3.Client
	bucket    string
	region    string
	publicURL string
}

// NewS3Host uploads into bucket. publicURL, when set, is the base the object
// keys are served from (a CDN in front of the bucket).
func NewS3Host(bucket, publicURL string) *s3Host {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}
	return &s3Host{
		s3Client:  s3.NewFromConfig(cfg),
		bucket:    bucket,
		region:    cfg.Region,
		publicURL: publicURL,
	}
}

func (h *s3Host) Upload(ctx context.Context, name, contentType string, body io.Reader) (string, error) {
	key := objectKey(name)
	log := logrus.WithFields(logrus.Fields{"bucket": h.bucket, "key": key})

	input := &s3.PutObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := h.s3Client.PutObject(ctx, input); err != nil {
		log.WithError(err).Error("Failed to upload media")
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	log.Info("Media uploaded")
	return publicURL(h.publicURL, h.bucket, h.region, key), nil
}

func objectKey(name string) string {
	return "media/" + strings.ToLower(ulid.Make().String()) + "-" + cleanName(name)
}

func publicURL(base, bucket, region, key string) string {
	if base != "" {
		return strings.TrimRight(base, "/") + "/" + key
	}
	if region == "" || region == "us-east-1" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}
