package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/inkwell-blog/inkwell-api/internal/auth"
	"github.com/inkwell-blog/inkwell-api/internal/db"
	"github.com/inkwell-blog/inkwell-api/internal/models"
	"github.com/inkwell-blog/inkwell-api/internal/slug"
)

type SeriesHandler struct {
	store SeriesStore
	roles auth.RoleResolver
	log   *logrus.Logger
}

func NewSeriesHandler(store SeriesStore, roles auth.RoleResolver, log *logrus.Logger) *SeriesHandler {
	return &SeriesHandler{store: store, roles: roles, log: log}
}

type seriesListItem struct {
	models.Series
	User      models.UserRef `json:"user"`
	PostCount int            `json:"postCount"`
}

type seriesListResponse struct {
	Series      []seriesListItem `json:"series"`
	HasMore     bool             `json:"hasMore"`
	TotalSeries int64            `json:"totalSeries"`
	TotalPages  int64            `json:"totalPages"`
	CurrentPage int              `json:"currentPage"`
}

func (h *SeriesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit := pageParams(q)

	series, total, err := h.store.ListSeries(r.Context(), db.SeriesFilter{
		Category: q.Get("cat"),
		Tag:      q.Get("tag"),
		Search:   q.Get("search"),
		Sort:     q.Get("sort"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		serverError(w, h.log, "failed to load series", err)
		return
	}

	ownerIDs := make([]primitive.ObjectID, 0, len(series))
	seen := make(map[primitive.ObjectID]struct{}, len(series))
	for _, s := range series {
		if _, ok := seen[s.User]; !ok {
			seen[s.User] = struct{}{}
			ownerIDs = append(ownerIDs, s.User)
		}
	}
	refs := make(map[primitive.ObjectID]models.UserRef, len(ownerIDs))
	if owners, err := h.store.GetUsersByIDs(r.Context(), ownerIDs); err != nil {
		h.log.WithError(err).Warn("failed to load series owners")
	} else {
		for i := range owners {
			refs[owners[i].ID] = owners[i].Ref()
		}
	}

	items := make([]seriesListItem, 0, len(series))
	for _, s := range series {
		items = append(items, seriesListItem{Series: s, User: refs[s.User], PostCount: len(s.Posts)})
	}

	totalPages := (total + int64(limit) - 1) / int64(limit)
	respondJSON(w, http.StatusOK, seriesListResponse{
		Series:      items,
		HasMore:     int64(page)*int64(limit) < total,
		TotalSeries: total,
		TotalPages:  totalPages,
		CurrentPage: page,
	})
}

type seriesPostEntry struct {
	Post  postSummary `json:"post"`
	Order int         `json:"order"`
}

type postSummary struct {
	ID        primitive.ObjectID `json:"_id"`
	Title     string             `json:"title"`
	Slug      string             `json:"slug"`
	Desc      string             `json:"desc,omitempty"`
	Img       string             `json:"img,omitempty"`
	Category  string             `json:"category"`
	Tags      []string           `json:"tags"`
	Visit     int64              `json:"visit"`
	CreatedAt time.Time          `json:"createdAt"`
	User      models.UserRef     `json:"user"`
}

type seriesDetail struct {
	models.Series
	User      models.UserRef    `json:"user"`
	Posts     []seriesPostEntry `json:"posts"`
	PostCount int               `json:"postCount"`
}

// detail resolves the ordered post list. Entries whose post no longer
// exists are dropped rather than surfaced: the series/post writes are
// not atomic, so a stale reference must read as absence.
func (h *SeriesHandler) detail(w http.ResponseWriter, r *http.Request, series *models.Series) {
	posts, err := h.store.GetPostsByIDs(r.Context(), series.PostIDs())
	if err != nil {
		serverError(w, h.log, "failed to load series posts", err)
		return
	}
	byID := make(map[primitive.ObjectID]models.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}

	userIDs := []primitive.ObjectID{series.User}
	seen := map[primitive.ObjectID]struct{}{series.User: {}}
	for _, p := range posts {
		if _, ok := seen[p.User]; !ok {
			seen[p.User] = struct{}{}
			userIDs = append(userIDs, p.User)
		}
	}
	refs := make(map[primitive.ObjectID]models.UserRef, len(userIDs))
	if users, err := h.store.GetUsersByIDs(r.Context(), userIDs); err != nil {
		h.log.WithError(err).Warn("failed to load series users")
	} else {
		for i := range users {
			refs[users[i].ID] = users[i].Ref()
		}
	}

	entries := make([]seriesPostEntry, 0, len(series.Posts))
	for _, sp := range series.Posts {
		p, ok := byID[sp.Post]
		if !ok {
			continue
		}
		entries = append(entries, seriesPostEntry{
			Order: sp.Order,
			Post: postSummary{
				ID:        p.ID,
				Title:     p.Title,
				Slug:      p.Slug,
				Desc:      p.Desc,
				Img:       p.Img,
				Category:  p.Category,
				Tags:      p.Tags,
				Visit:     p.Visit,
				CreatedAt: p.CreatedAt,
				User:      refs[p.User],
			},
		})
	}
	// Order numbers define the sequence; ties keep assignment order.
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Order < entries[j].Order })

	respondJSON(w, http.StatusOK, seriesDetail{
		Series:    *series,
		User:      refs[series.User],
		Posts:     entries,
		PostCount: len(entries),
	})
}

func (h *SeriesHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	series, err := h.store.GetSeriesBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		serverError(w, h.log, "failed to load series", err)
		return
	}
	if series == nil {
		respondError(w, http.StatusNotFound, "series not found")
		return
	}
	h.detail(w, r, series)
}

func (h *SeriesHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseObjectID(w, chi.URLParam(r, "id"), "series id")
	if !ok {
		return
	}
	series, err := h.store.GetSeriesByID(r.Context(), id)
	if err != nil {
		serverError(w, h.log, "failed to load series", err)
		return
	}
	if series == nil {
		respondError(w, http.StatusNotFound, "series not found")
		return
	}
	h.detail(w, r, series)
}

type seriesPostRequest struct {
	Post  string `json:"post"`
	Order int    `json:"order"`
}

type seriesRequest struct {
	Name     string              `json:"name"`
	Desc     string              `json:"desc"`
	Img      string              `json:"img"`
	Category string              `json:"category"`
	Tags     []string            `json:"tags"`
	Posts    []seriesPostRequest `json:"posts"`
}

func (h *SeriesHandler) parsePostRefs(w http.ResponseWriter, refs []seriesPostRequest) ([]models.SeriesPost, bool) {
	posts := make([]models.SeriesPost, 0, len(refs))
	for _, ref := range refs {
		id, err := primitive.ObjectIDFromHex(ref.Post)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid post id in series")
			return nil, false
		}
		// Order numbers are taken verbatim; no re-derivation.
		posts = append(posts, models.SeriesPost{Post: id, Order: ref.Order})
	}
	return posts, true
}

func (h *SeriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := requireAdmin(w, r, h.store, h.roles, h.log, "only admins can create series")
	if !ok {
		return
	}

	var req seriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Category == "" {
		req.Category = models.DefaultCategory
	}
	posts, ok := h.parsePostRefs(w, req.Posts)
	if !ok {
		return
	}

	base := slug.Derive(req.Name, "series")

	var created *models.Series
	insert := func() error {
		candidate, err := slug.Unique(r.Context(), base, h.store.SeriesSlugExists)
		if err != nil {
			return backoff.Permanent(err)
		}
		created, err = h.store.CreateSeries(r.Context(), models.Series{
			User:     user.ID,
			Name:     req.Name,
			Slug:     candidate,
			Desc:     strings.TrimSpace(req.Desc),
			Img:      req.Img,
			Category: req.Category,
			Tags:     models.NormalizeTags(req.Tags),
			Posts:    posts,
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
			respondError(w, http.StatusConflict, "a series with this slug already exists")
			return
		}
		serverError(w, h.log, "failed to create series", err)
		return
	}

	// Second write of the non-atomic pair: point the listed posts back
	// at the new series.
	if err := h.store.SetPostSeries(r.Context(), created.PostIDs(), created.ID); err != nil {
		serverError(w, h.log, "series created but posts not linked", err)
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

func (h *SeriesHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, role, ok := requireUserWithRole(w, r, h.store, h.roles, h.log)
	if !ok {
		return
	}
	id, ok := parseObjectID(w, chi.URLParam(r, "id"), "series id")
	if !ok {
		return
	}

	series, err := h.store.GetSeriesByID(r.Context(), id)
	if err != nil {
		serverError(w, h.log, "failed to load series", err)
		return
	}
	if series == nil {
		respondError(w, http.StatusNotFound, "series not found")
		return
	}
	if role != auth.RoleAdmin && series.User != user.ID {
		respondError(w, http.StatusForbidden, "you can edit only your own series")
		return
	}

	var req seriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Category == "" {
		req.Category = models.DefaultCategory
	}
	posts, ok := h.parsePostRefs(w, req.Posts)
	if !ok {
		return
	}

	updated, err := h.store.UpdateSeries(r.Context(), id, db.SeriesUpdate{
		Name:     req.Name,
		Desc:     strings.TrimSpace(req.Desc),
		Img:      req.Img,
		Category: req.Category,
		Tags:     models.NormalizeTags(req.Tags),
		Posts:    posts,
	})
	if err != nil {
		serverError(w, h.log, "failed to update series", err)
		return
	}
	if updated == nil {
		respondError(w, http.StatusNotFound, "series not found")
		return
	}

	// Reconcile back-references from the membership diff: removed posts
	// lose their pointer, added posts gain one.
	oldIDs := make(map[primitive.ObjectID]struct{}, len(series.Posts))
	for _, sp := range series.Posts {
		oldIDs[sp.Post] = struct{}{}
	}
	newIDs := make(map[primitive.ObjectID]struct{}, len(updated.Posts))
	for _, sp := range updated.Posts {
		newIDs[sp.Post] = struct{}{}
	}
	var removed, added []primitive.ObjectID
	for id := range oldIDs {
		if _, ok := newIDs[id]; !ok {
			removed = append(removed, id)
		}
	}
	for id := range newIDs {
		if _, ok := oldIDs[id]; !ok {
			added = append(added, id)
		}
	}
	if err := h.store.ClearPostSeries(r.Context(), removed); err != nil {
		serverError(w, h.log, "series updated but removed posts not unlinked", err)
		return
	}
	if err := h.store.SetPostSeries(r.Context(), added, updated.ID); err != nil {
		serverError(w, h.log, "series updated but added posts not linked", err)
		return
	}

	respondJSON(w, http.StatusOK, updated)
}

func (h *SeriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, role, ok := requireUserWithRole(w, r, h.store, h.roles, h.log)
	if !ok {
		return
	}
	id, ok := parseObjectID(w, chi.URLParam(r, "id"), "series id")
	if !ok {
		return
	}

	series, err := h.store.GetSeriesByID(r.Context(), id)
	if err != nil {
		serverError(w, h.log, "failed to load series", err)
		return
	}
	if series == nil {
		respondError(w, http.StatusNotFound, "series not found")
		return
	}
	if role != auth.RoleAdmin && series.User != user.ID {
		respondError(w, http.StatusForbidden, "you can delete only your series")
		return
	}

	// Clear back-references before the series document disappears.
	if err := h.store.ClearPostSeries(r.Context(), series.PostIDs()); err != nil {
		serverError(w, h.log, "failed to unlink series posts", err)
		return
	}
	if _, err := h.store.DeleteSeriesByID(r.Context(), id); err != nil {
		serverError(w, h.log, "failed to delete series", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "series has been deleted"})
}
