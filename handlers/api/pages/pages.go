package pages

import (
	"bytes"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/remiPra/chemins-essentiels-admin/handlers/api/apierror"
	pagerender "github.com/remiPra/chemins-essentiels-admin/render"
	"github.com/sirupsen/logrus"
)

// HandleGetView returns the read-only projection of a page as JSON.
func HandleGetView(renderer *pagerender.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pageID := chi.URLParam(r, "pageId")
		if pageID == "" {
			apierror.BadRequest(w, r, "Page id is required")
			return
		}

		view, err := renderer.Load(r.Context(), pageID)
		if err != nil {
			logrus.WithError(err).WithField("page_id", pageID).Error("Failed to load page view")
			apierror.Render(w, r, err, "Failed to load page")
			return
		}
		render.JSON(w, r, view)
	}
}

// HandleRenderHTML serves the HTML rendering of a page, as the public site
// would show it.
func HandleRenderHTML(renderer *pagerender.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pageID := chi.URLParam(r, "pageId")

		view, err := renderer.Load(r.Context(), pageID)
		if err != nil {
			logrus.WithError(err).WithField("page_id", pageID).Error("Failed to load page for HTML")
			http.Error(w, "Page is temporarily unavailable", apierror.Status(err))
			return
		}

		var buf bytes.Buffer
		if err := pagerender.HTML(&buf, view); err != nil {
			logrus.WithError(err).WithField("page_id", pageID).Error("Failed to render page")
			http.Error(w, "Failed to render page", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := w.Write(buf.Bytes()); err != nil {
			logrus.WithError(err).WithField("page_id", pageID).Warn("Failed to write page HTML")
		}
	}
}
