package posts

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/oklog/ulid/v2"
	"github.com/remiPra/chemins-essentiels-admin/core"
	"github.com/remiPra/chemins-essentiels-admin/handlers/api/apierror"
	"github.com/sirupsen/logrus"
)

// Store is what the post handlers need: the post list, plus the pages that
// hold each post's body.
type Store interface {
	core.PostStore
	core.PageStore
}

type createPostRequest struct {
	Title string `json:"title"`
}

// SlugFor returns the page id a post's body is stored under.
func SlugFor(id string) string {
	return "post-" + strings.ToLower(id)
}

func HandleList(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		posts, err := store.ListPosts(r.Context())
		if err != nil {
			logrus.WithError(err).Error("Failed to list posts")
			apierror.Render(w, r, err, "Failed to list posts")
			return
		}
		if posts == nil {
			posts = []*core.Post{}
		}
		render.JSON(w, r, posts)
	}
}

// HandleCreate adds a post. Its body page is created lazily, the first time
// an editor saves it.
func HandleCreate(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createPostRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			apierror.BadRequest(w, r, "Invalid request body")
			return
		}
		title := strings.TrimSpace(req.Title)
		if title == "" {
			apierror.BadRequest(w, r, "Title is required")
			return
		}

		id := ulid.Make().String()
		post := &core.Post{
			ID:        id,
			Title:     title,
			Slug:      SlugFor(id),
			CreatedAt: time.Now().UTC(),
		}
		if err := store.CreatePost(r.Context(), post); err != nil {
			logrus.WithError(err).WithField("title", title).Error("Failed to create post")
			apierror.Render(w, r, err, "Failed to create post")
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, post)
	}
}

// HandleDelete removes a post and the page holding its body.
func HandleDelete(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		log := logrus.WithField("post_id", id)

		post, err := store.GetPost(r.Context(), id)
		if err != nil {
			log.WithError(err).Warn("Failed to get post for deletion")
			apierror.Render(w, r, err, "Failed to delete post")
			return
		}
		if err := store.DeletePost(r.Context(), id); err != nil {
			log.WithError(err).Error("Failed to delete post")
			apierror.Render(w, r, err, "Failed to delete post")
			return
		}
		if err := store.DeletePage(r.Context(), post.Slug); err != nil {
			log.WithError(err).WithField("page_id", post.Slug).Warn("Post deleted but its page was not")
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
