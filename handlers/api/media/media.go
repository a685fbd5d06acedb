package media

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/oklog/ulid/v2"
	"github.com/remiPra/chemins-essentiels-admin/core"
	"github.com/remiPra/chemins-essentiels-admin/handlers/api/apierror"
	mediahost "github.com/remiPra/chemins-essentiels-admin/media"
	"github.com/sirupsen/logrus"
)

const MaxUploadSize = 32 << 20

func HandleList(store core.MediaStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := store.ListMedia(r.Context())
		if err != nil {
			logrus.WithError(err).Error("Failed to list media")
			apierror.Render(w, r, err, "Failed to list media")
			return
		}
		if items == nil {
			items = []*core.MediaItem{}
		}
		render.JSON(w, r, items)
	}
}

// HandleUpload sends the multipart "file" field to the media host and records
// the resulting URL in the library.
func HandleUpload(store core.MediaStore, host mediahost.Host) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if host == nil {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, map[string]string{"error": "Media host is not configured"})
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				render.Status(r, http.StatusRequestEntityTooLarge)
				render.JSON(w, r, map[string]string{"error": "File is too large"})
				return
			}
			apierror.BadRequest(w, r, "Multipart field file is required")
			return
		}
		defer file.Close()

		contentType := header.Header.Get("Content-Type")
		if contentType != "" && !strings.HasPrefix(contentType, "image/") {
			apierror.BadRequest(w, r, "Only images can be uploaded")
			return
		}

		log := logrus.WithFields(logrus.Fields{"name": header.Filename, "size": header.Size})
		url, err := host.Upload(r.Context(), header.Filename, contentType, file)
		if err != nil {
			log.WithError(err).Error("Failed to upload media")
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, map[string]string{"error": "Upload to media host failed"})
			return
		}

		item := &core.MediaItem{
			ID:         ulid.Make().String(),
			URL:        url,
			Name:       header.Filename,
			UploadedAt: time.Now().UTC(),
		}
		if err := store.CreateMedia(r.Context(), item); err != nil {
			log.WithError(err).WithField("url", url).Error("Uploaded media could not be recorded")
			apierror.Render(w, r, err, "Failed to record media")
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, item)
	}
}

// HandleDelete removes the library record. The file stays on the host since
// published pages may still reference its URL.
func HandleDelete(store core.MediaStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := store.DeleteMedia(r.Context(), id); err != nil {
			logrus.WithError(err).WithField("media_id", id).Warn("Failed to delete media")
			apierror.Render(w, r, err, "Failed to delete media")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
