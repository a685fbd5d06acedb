// Package content serves the fixed-field homepage hero.
package content

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/remiPra/chemins-essentiels-admin/core"
	"github.com/remiPra/chemins-essentiels-admin/handlers/api/apierror"
	"github.com/sirupsen/logrus"
)

// HandleGetHome returns the homepage hero. A hero that was never saved is
// returned with empty fields so the form can be filled in.
func HandleGetHome(store core.ContentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := store.GetHomeContent(r.Context())
		if errors.Is(err, core.ErrNotFound) {
			render.JSON(w, r, core.HomeContent{})
			return
		}
		if err != nil {
			logrus.WithError(err).Error("Failed to load homepage content")
			apierror.Render(w, r, err, "Failed to load homepage content")
			return
		}
		render.JSON(w, r, c)
	}
}

// HandlePutHome replaces every hero field with the request body.
func HandlePutHome(store core.ContentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req core.HomeContent
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			apierror.BadRequest(w, r, "Invalid request body")
			return
		}

		c := req.Trimmed()
		if err := store.PutHomeContent(r.Context(), &c); err != nil {
			logrus.WithError(err).Error("Failed to save homepage content")
			apierror.Render(w, r, err, "Failed to save homepage content")
			return
		}
		logrus.WithField("hero_title", c.HeroTitle).Info("Homepage content updated")
		render.JSON(w, r, c)
	}
}
