package sessions

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/remiPra/chemins-essentiels-admin/core"
	"github.com/remiPra/chemins-essentiels-admin/editor"
	"github.com/remiPra/chemins-essentiels-admin/handlers/api/apierror"
	"github.com/sirupsen/logrus"
)

type (
	addBlockRequest struct {
		Type string `json:"type"`
	}

	editBlockRequest struct {
		Content *string `json:"content"`
	}

	moveRequest struct {
		Direction string `json:"direction"`
	}

	imageRequest struct {
		MediaID string `json:"mediaId"`
		URL     string `json:"url"`
	}

	reorderRequest struct {
		DraggedID string `json:"draggedId"`
		TargetID  string `json:"targetId"`
	}
)

// session resolves {sid}, writing a 404 when it is unknown.
func session(reg *editor.Registry, w http.ResponseWriter, r *http.Request) (*editor.Session, bool) {
	sid := chi.URLParam(r, "sid")
	s, err := reg.Get(sid)
	if err != nil {
		logrus.WithField("session_id", sid).Warn("Editing session not found")
		apierror.Render(w, r, err, "Session not found")
		return nil, false
	}
	return s, true
}

// HandleOpen loads a page into a new editing session.
func HandleOpen(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pageID := chi.URLParam(r, "pageId")
		if pageID == "" {
			apierror.BadRequest(w, r, "Page id is required")
			return
		}

		s, err := reg.Open(r.Context(), pageID)
		if err != nil {
			logrus.WithError(err).WithField("page_id", pageID).Error("Failed to open editing session")
			apierror.Render(w, r, err, "Failed to open editing session")
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, s.Snapshot())
	}
}

func HandleGet(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}
		render.JSON(w, r, s.Snapshot())
	}
}

// HandleDiscard drops the session and its unsaved changes.
func HandleDiscard(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := chi.URLParam(r, "sid")
		if err := reg.Discard(sid); err != nil {
			apierror.Render(w, r, err, "Failed to discard session")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleAddBlock(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}

		var req addBlockRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			apierror.BadRequest(w, r, "Invalid request body")
			return
		}
		t, err := core.ParseBlockType(req.Type)
		if err != nil {
			apierror.Render(w, r, err, "Invalid block type")
			return
		}
		if _, err := s.AddBlock(t); err != nil {
			apierror.Render(w, r, err, "Failed to add block")
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, s.Snapshot())
	}
}

// HandleEditBlock replaces a block's content. Unknown block ids leave the
// session unchanged.
func HandleEditBlock(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}

		var req editBlockRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil || req.Content == nil {
			apierror.BadRequest(w, r, "Field content is required")
			return
		}
		s.EditBlock(chi.URLParam(r, "blockId"), *req.Content)
		render.JSON(w, r, s.Snapshot())
	}
}

// HandleDeleteBlock removes a block, answering 409 when it is the last one.
func HandleDeleteBlock(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}

		blockID := chi.URLParam(r, "blockId")
		if err := s.DeleteBlock(blockID); err != nil {
			logrus.WithFields(logrus.Fields{"session_id": s.ID(), "block_id": blockID}).Info("Refused to delete block")
			apierror.Render(w, r, err, "Failed to delete block")
			return
		}
		render.JSON(w, r, s.Snapshot())
	}
}

func HandleMoveBlock(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}

		var req moveRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			apierror.BadRequest(w, r, "Invalid request body")
			return
		}
		dir, err := editor.ParseDirection(req.Direction)
		if err != nil {
			apierror.BadRequest(w, r, err.Error())
			return
		}
		s.MoveBlock(chi.URLParam(r, "blockId"), dir)
		render.JSON(w, r, s.Snapshot())
	}
}

// HandleSelectImage fills an image block from the media picker, either with
// a media library item or with a URL directly.
func HandleSelectImage(reg *editor.Registry, library core.MediaStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}

		var req imageRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			apierror.BadRequest(w, r, "Invalid request body")
			return
		}

		url := req.URL
		if req.MediaID != "" {
			item, err := library.GetMedia(r.Context(), req.MediaID)
			if err != nil {
				logrus.WithError(err).WithField("media_id", req.MediaID).Warn("Picked media not found")
				apierror.Render(w, r, err, "Failed to look up media")
				return
			}
			url = item.URL
		}
		if url == "" {
			apierror.BadRequest(w, r, "Either mediaId or url is required")
			return
		}

		blockID := chi.URLParam(r, "blockId")
		if !s.SelectImage(blockID, url) {
			apierror.BadRequest(w, r, "No image block with this id")
			return
		}
		render.JSON(w, r, s.Snapshot())
	}
}

// HandleReorder applies a drag and drop.
func HandleReorder(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}

		var req reorderRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil || req.DraggedID == "" || req.TargetID == "" {
			apierror.BadRequest(w, r, "Fields draggedId and targetId are required")
			return
		}
		s.Reorder(req.DraggedID, req.TargetID)
		render.JSON(w, r, s.Snapshot())
	}
}

// HandleSave writes the working copy to the store.
func HandleSave(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}

		if err := s.Save(r.Context()); err != nil {
			logrus.WithError(err).WithField("session_id", s.ID()).Warn("Save did not complete")
			apierror.Render(w, r, err, "Failed to save page")
			return
		}
		render.JSON(w, r, s.Snapshot())
	}
}
