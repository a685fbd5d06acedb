// Package media uploads image files to the configured media host and returns
// their public URL.
package media

import (
	"context"
	"io"
	"os"
	"path"
	"strings"

	"github.com/sirupsen/logrus"
)

// Host stores an uploaded file and returns the URL it is served from.
type Host interface {
	Upload(ctx context.Context, name, contentType string, body io.Reader) (string, error)
}

// GetHost selects the media host from MEDIA_HOST. It returns nil when no host
// is configured; uploads are then rejected but the library can still be browsed.
func GetHost() Host {
	hostType := os.Getenv("MEDIA_HOST")
	fields := logrus.Fields{"mediaHost": hostType}

	var host Host
	switch hostType {
	case "s3":
		bucket := os.Getenv("MEDIA_S3_BUCKET")
		if bucket == "" {
			bucket = os.Getenv("S3_BUCKET_NAME")
		}
		if bucket == "" {
			logrus.Fatal("MEDIA_S3_BUCKET environment variable must be set for s3 media host")
		}
		fields["bucket"] = bucket
		host = NewS3Host(bucket, os.Getenv("MEDIA_PUBLIC_URL"))
	case "cloudinary":
		cloud := os.Getenv("CLOUDINARY_CLOUD_NAME")
		preset := os.Getenv("CLOUDINARY_UPLOAD_PRESET")
		if cloud == "" || preset == "" {
			logrus.Fatal("CLOUDINARY_CLOUD_NAME and CLOUDINARY_UPLOAD_PRESET must be set for cloudinary media host")
		}
		fields["cloud"] = cloud
		host = NewCloudinaryHost(cloud, preset)
	default:
		fields["mediaHost"] = "none"
	}
	logrus.WithFields(fields).Info("Use media host")
	return host
}

// cleanName keeps the base name of an upload and replaces characters that do
// not belong in an object key.
func cleanName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '-'
	}, name)
}
