package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/inkwell-blog/inkwell-api/internal/auth"
	"github.com/inkwell-blog/inkwell-api/internal/db"
	"github.com/inkwell-blog/inkwell-api/internal/models"
	"github.com/inkwell-blog/inkwell-api/internal/slug"
)

const (
	maxPageSize = 100
	// maxPage keeps page*limit arithmetic far from integer overflow.
	maxPage = 1 << 31
)

func pageParams(q url.Values) (page, limit int) {
	page = parsePositiveInt(q.Get("page"), 1)
	if page > maxPage {
		page = maxPage
	}
	limit = parsePositiveInt(q.Get("limit"), 10)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

type PostsHandler struct {
	store PostsStore
	roles auth.RoleResolver
	log   *logrus.Logger
}

func NewPostsHandler(store PostsStore, roles auth.RoleResolver, log *logrus.Logger) *PostsHandler {
	return &PostsHandler{store: store, roles: roles, log: log}
}

// postView replaces the raw owner id with an author summary and, on
// detail reads, attaches the resolved series summary.
type postView struct {
	models.Post
	User   models.UserRef `json:"user"`
	Series *seriesRef     `json:"series,omitempty"`
}

type seriesRef struct {
	ID   primitive.ObjectID `json:"_id"`
	Name string             `json:"name"`
	Slug string             `json:"slug"`
}

type postListResponse struct {
	Posts       []postView `json:"posts"`
	HasMore     bool       `json:"hasMore"`
	TotalPosts  int64      `json:"totalPosts"`
	TotalPages  int64      `json:"totalPages"`
	CurrentPage int        `json:"currentPage"`
}

func (h *PostsHandler) authorRefs(r *http.Request, posts []models.Post) map[primitive.ObjectID]models.UserRef {
	ids := make([]primitive.ObjectID, 0, len(posts))
	seen := make(map[primitive.ObjectID]struct{}, len(posts))
	for _, p := range posts {
		if _, ok := seen[p.User]; !ok {
			seen[p.User] = struct{}{}
			ids = append(ids, p.User)
		}
	}
	refs := make(map[primitive.ObjectID]models.UserRef, len(ids))
	users, err := h.store.GetUsersByIDs(r.Context(), ids)
	if err != nil {
		// Author display names are decoration; log and render without.
		h.log.WithError(err).Warn("failed to load post authors")
		return refs
	}
	for i := range users {
		refs[users[i].ID] = users[i].Ref()
	}
	return refs
}

func (h *PostsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit := pageParams(q)

	filter := db.PostFilter{
		Category: q.Get("cat"),
		Search:   q.Get("search"),
		Sort:     q.Get("sort"),
		Featured: q.Get("featured") != "",
		Page:     page,
		Limit:    limit,
	}

	if author := q.Get("author"); author != "" {
		user, err := h.store.GetUserByUsername(r.Context(), author)
		if err != nil {
			serverError(w, h.log, "failed to load author", err)
			return
		}
		if user == nil {
			respondError(w, http.StatusNotFound, "no posts found")
			return
		}
		filter.Author = &user.ID
	}

	posts, total, err := h.store.ListPosts(r.Context(), filter)
	if err != nil {
		serverError(w, h.log, "failed to load posts", err)
		return
	}

	refs := h.authorRefs(r, posts)
	views := make([]postView, 0, len(posts))
	for _, p := range posts {
		views = append(views, postView{Post: p, User: refs[p.User]})
	}

	totalPages := (total + int64(limit) - 1) / int64(limit)
	respondJSON(w, http.StatusOK, postListResponse{
		Posts:       views,
		HasMore:     int64(page)*int64(limit) < total,
		TotalPosts:  total,
		TotalPages:  totalPages,
		CurrentPage: page,
	})
}

// CountVisit bumps the visit counter before the slug read it fronts.
func (h *PostsHandler) CountVisit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s := chi.URLParam(r, "slug"); s != "" {
			if err := h.store.IncrementVisit(r.Context(), s); err != nil {
				h.log.WithError(err).WithField("slug", s).Warn("failed to count visit")
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *PostsHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	post, err := h.store.GetPostBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		serverError(w, h.log, "failed to load post", err)
		return
	}
	if post == nil {
		respondError(w, http.StatusNotFound, "post not found")
		return
	}

	view := postView{Post: *post}
	refs := h.authorRefs(r, []models.Post{*post})
	view.User = refs[post.User]

	if post.Series != nil {
		series, err := h.store.GetSeriesByID(r.Context(), *post.Series)
		if err != nil {
			serverError(w, h.log, "failed to load series", err)
			return
		}
		// A dangling back-reference reads as "no series".
		if series != nil {
			view.Series = &seriesRef{ID: series.ID, Name: series.Name, Slug: series.Slug}
		}
	}

	respondJSON(w, http.StatusOK, view)
}

type postRequest struct {
	Title    string   `json:"title"`
	Desc     string   `json:"desc"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
	Content  string   `json:"content"`
	Img      string   `json:"img"`
}

func (h *PostsHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := requireAdmin(w, r, h.store, h.roles, h.log, "only admins can create posts")
	if !ok {
		return
	}

	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Title == "" || req.Content == "" {
		respondError(w, http.StatusBadRequest, "title and content are required")
		return
	}
	if req.Category == "" {
		req.Category = models.DefaultCategory
	}

	base := slug.Derive(req.Title, "post")

	// The slug probe is check-then-act; the unique index catches the
	// losing side of a race and we re-probe with backoff.
	var created *models.Post
	insert := func() error {
		candidate, err := slug.Unique(r.Context(), base, h.store.PostSlugExists)
		if err != nil {
			return backoff.Permanent(err)
		}
		created, err = h.store.CreatePost(r.Context(), models.Post{
			User:     user.ID,
			Title:    req.Title,
			Slug:     candidate,
			Desc:     req.Desc,
			Category: req.Category,
			Tags:     req.Tags,
			Content:  req.Content,
			Img:      req.Img,
		})
		if err != nil {
			if db.IsDuplicateKey(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), r.Context())
	if err := backoff.Retry(insert, policy); err != nil {
		if db.IsDuplicateKey(err) {
			respondError(w, http.StatusConflict, "a post with this slug already exists")
			return
		}
		serverError(w, h.log, "failed to create post", err)
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

func (h *PostsHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, role, ok := requireUserWithRole(w, r, h.store, h.roles, h.log)
	if !ok {
		return
	}
	id, ok := parseObjectID(w, chi.URLParam(r, "id"), "post id")
	if !ok {
		return
	}

	post, err := h.store.GetPostByID(r.Context(), id)
	if err != nil {
		serverError(w, h.log, "failed to load post", err)
		return
	}
	if post == nil {
		respondError(w, http.StatusNotFound, "post not found")
		return
	}
	if role != auth.RoleAdmin && post.User != user.ID {
		respondError(w, http.StatusForbidden, "you can edit only your posts")
		return
	}

	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Title == "" || req.Content == "" {
		respondError(w, http.StatusBadRequest, "title and content are required")
		return
	}
	if req.Category == "" {
		req.Category = models.DefaultCategory
	}

	updated, err := h.store.UpdatePost(r.Context(), id, db.PostUpdate{
		Title:    req.Title,
		Desc:     req.Desc,
		Category: req.Category,
		Tags:     req.Tags,
		Content:  req.Content,
		Img:      req.Img,
	})
	if err != nil {
		serverError(w, h.log, "failed to update post", err)
		return
	}
	if updated == nil {
		respondError(w, http.StatusNotFound, "post not found")
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *PostsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, role, ok := requireUserWithRole(w, r, h.store, h.roles, h.log)
	if !ok {
		return
	}
	id, ok := parseObjectID(w, chi.URLParam(r, "id"), "post id")
	if !ok {
		return
	}

	var deleted *models.Post
	var err error
	if role == auth.RoleAdmin {
		deleted, err = h.store.DeletePostByID(r.Context(), id)
		if err != nil {
			serverError(w, h.log, "failed to delete post", err)
			return
		}
		if deleted == nil {
			respondError(w, http.StatusNotFound, "post not found")
			return
		}
	} else {
		deleted, err = h.store.DeletePostOwned(r.Context(), id, user.ID)
		if err != nil {
			serverError(w, h.log, "failed to delete post", err)
			return
		}
		if deleted == nil {
			respondError(w, http.StatusForbidden, "you can delete only your posts")
			return
		}
	}

	// Detach the post from any series still listing it.
	if err := h.store.PullPostFromSeries(r.Context(), id); err != nil {
		serverError(w, h.log, "post deleted but series detach failed", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "post has been deleted"})
}

type featureRequest struct {
	PostID string `json:"postId"`
}

func (h *PostsHandler) Feature(w http.ResponseWriter, r *http.Request) {
	_, ok := requireAdmin(w, r, h.store, h.roles, h.log, "you cannot feature posts")
	if !ok {
		return
	}

	var req featureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	id, ok := parseObjectID(w, req.PostID, "post id")
	if !ok {
		return
	}

	post, err := h.store.GetPostByID(r.Context(), id)
	if err != nil {
		serverError(w, h.log, "failed to load post", err)
		return
	}
	if post == nil {
		respondError(w, http.StatusNotFound, "post not found")
		return
	}

	updated, err := h.store.SetPostFeatured(r.Context(), id, !post.IsFeatured)
	if err != nil {
		serverError(w, h.log, "failed to feature post", err)
		return
	}
	if updated == nil {
		respondError(w, http.StatusNotFound, "post not found")
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

type clapResponse struct {
	Claps     []primitive.ObjectID `json:"claps"`
	ClapCount int                  `json:"clapCount"`
	Clapped   bool                 `json:"clapped"`
}

// Clap toggles the caller's membership in the post's clap list. The
// read and the write are separate operations; two concurrent toggles
// from the same user can land in either state, which is acceptable for
// an appreciation counter.
func (h *PostsHandler) Clap(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.store, h.log)
	if !ok {
		return
	}
	id, ok := parseObjectID(w, chi.URLParam(r, "id"), "post id")
	if !ok {
		return
	}

	post, err := h.store.GetPostByID(r.Context(), id)
	if err != nil {
		serverError(w, h.log, "failed to load post", err)
		return
	}
	if post == nil {
		respondError(w, http.StatusNotFound, "post not found")
		return
	}

	var updated *models.Post
	if post.HasClap(user.ID) {
		updated, err = h.store.RemoveClap(r.Context(), id, user.ID)
	} else {
		updated, err = h.store.AddClap(r.Context(), id, user.ID)
	}
	if err != nil {
		serverError(w, h.log, "failed to toggle clap", err)
		return
	}
	if updated == nil {
		respondError(w, http.StatusNotFound, "post not found")
		return
	}

	respondJSON(w, http.StatusOK, clapResponse{
		Claps:     updated.Claps,
		ClapCount: len(updated.Claps),
		Clapped:   updated.HasClap(user.ID),
	})
}
