// Package apierror maps domain errors onto HTTP responses.
package apierror

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/remiPra/chemins-essentiels-admin/core"
	"github.com/remiPra/chemins-essentiels-admin/editor"
)

// Status returns the HTTP status for err.
func Status(err error) int {
	var lf *core.LoadFailure
	var sf *core.SaveFailure
	switch {
	case errors.As(err, &lf), errors.As(err, &sf):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrNotFound), errors.Is(err, editor.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrGuardRejection), errors.Is(err, core.ErrSaveInProgress):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidBlock):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Render writes {"error": ...} with the status of err. Internal errors are
// reported with msg only so storage details do not leak.
func Render(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := Status(err)
	text := err.Error()
	if status == http.StatusInternalServerError {
		text = msg
	}
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": text})
}

// BadRequest writes a 400 with msg.
func BadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, map[string]string{"error": msg})
}
