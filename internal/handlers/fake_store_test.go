package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/inkwell-blog/inkwell-api/internal/auth"
	"github.com/inkwell-blog/inkwell-api/internal/db"
	"github.com/inkwell-blog/inkwell-api/internal/models"
)

// fakeStore is an in-memory stand-in for *db.Store with the same
// conventions: nil results for missing documents, duplicate-key errors
// on unique slug/externalId collisions. Reads return copies so handler
// mutations never alias stored state.
type fakeStore struct {
	users    map[primitive.ObjectID]*models.User
	posts    map[primitive.ObjectID]*models.Post
	series   map[primitive.ObjectID]*models.Series
	comments map[primitive.ObjectID]*models.Comment
	drafts   map[primitive.ObjectID]*models.Draft
	seq      int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[primitive.ObjectID]*models.User),
		posts:    make(map[primitive.ObjectID]*models.Post),
		series:   make(map[primitive.ObjectID]*models.Series),
		comments: make(map[primitive.ObjectID]*models.Comment),
		drafts:   make(map[primitive.ObjectID]*models.Draft),
	}
}

var testEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func (f *fakeStore) now() time.Time {
	f.seq++
	return testEpoch.Add(time.Duration(f.seq) * time.Second)
}

func dupKeyErr() error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
}

func copyUser(u *models.User) *models.User {
	c := *u
	c.SavedPosts = append([]string(nil), u.SavedPosts...)
	return &c
}

func copyPost(p *models.Post) *models.Post {
	c := *p
	c.Tags = append([]string(nil), p.Tags...)
	c.Claps = append([]primitive.ObjectID(nil), p.Claps...)
	if p.Series != nil {
		s := *p.Series
		c.Series = &s
	}
	return &c
}

func copySeries(s *models.Series) *models.Series {
	c := *s
	c.Tags = append([]string(nil), s.Tags...)
	c.Posts = append([]models.SeriesPost(nil), s.Posts...)
	return &c
}

func copyComment(cm *models.Comment) *models.Comment {
	c := *cm
	c.Reactions = append([]models.Reaction(nil), cm.Reactions...)
	if cm.ParentComment != nil {
		p := *cm.ParentComment
		c.ParentComment = &p
	}
	return &c
}

// --- users ---

func (f *fakeStore) GetUserByExternalID(_ context.Context, externalID string) (*models.User, error) {
	for _, u := range f.users {
		if u.ExternalID == externalID {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetUsersByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, *copyUser(u))
		}
	}
	return out, nil
}

func (f *fakeStore) CreateUser(_ context.Context, user models.User) (*models.User, error) {
	for _, u := range f.users {
		if u.ExternalID == user.ExternalID || u.Username == user.Username || u.Email == user.Email {
			return nil, dupKeyErr()
		}
	}
	user.ID = primitive.NewObjectID()
	now := f.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.SavedPosts == nil {
		user.SavedPosts = []string{}
	}
	f.users[user.ID] = copyUser(&user)
	return &user, nil
}

func (f *fakeStore) DeleteUserByExternalID(_ context.Context, externalID string) (*models.User, error) {
	for id, u := range f.users {
		if u.ExternalID == externalID {
			delete(f.users, id)
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (f *fakeStore) AddSavedPost(_ context.Context, userID primitive.ObjectID, postID string) error {
	u := f.users[userID]
	for _, p := range u.SavedPosts {
		if p == postID {
			return nil
		}
	}
	u.SavedPosts = append(u.SavedPosts, postID)
	return nil
}

func (f *fakeStore) RemoveSavedPost(_ context.Context, userID primitive.ObjectID, postID string) error {
	u := f.users[userID]
	kept := u.SavedPosts[:0]
	for _, p := range u.SavedPosts {
		if p != postID {
			kept = append(kept, p)
		}
	}
	u.SavedPosts = kept
	return nil
}

func (f *fakeStore) SetSavedPosts(_ context.Context, userID primitive.ObjectID, postIDs []string) error {
	f.users[userID].SavedPosts = append([]string{}, postIDs...)
	return nil
}

// --- posts ---

func (f *fakeStore) ListPosts(_ context.Context, filter db.PostFilter) ([]models.Post, int64, error) {
	var matched []models.Post
	for _, p := range f.posts {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.Author != nil && p.User != *filter.Author {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.Featured && !p.IsFeatured {
			continue
		}
		matched = append(matched, *copyPost(p))
	}
	switch filter.Sort {
	case "oldest":
		sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })
	case "popular", "trending":
		sort.Slice(matched, func(i, j int) bool { return matched[i].Visit > matched[j].Visit })
	default:
		sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	}
	total := int64(len(matched))
	start := (filter.Page - 1) * filter.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (f *fakeStore) GetPostByID(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	if p, ok := f.posts[id]; ok {
		return copyPost(p), nil
	}
	return nil, nil
}

func (f *fakeStore) GetPostBySlug(_ context.Context, slug string) (*models.Post, error) {
	for _, p := range f.posts {
		if p.Slug == slug {
			return copyPost(p), nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetPostsByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Post, error) {
	var out []models.Post
	for _, id := range ids {
		if p, ok := f.posts[id]; ok {
			out = append(out, *copyPost(p))
		}
	}
	return out, nil
}

func (f *fakeStore) PostSlugExists(_ context.Context, slug string) (bool, error) {
	for _, p := range f.posts {
		if p.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreatePost(_ context.Context, post models.Post) (*models.Post, error) {
	for _, p := range f.posts {
		if p.Slug == post.Slug {
			return nil, dupKeyErr()
		}
	}
	post.ID = primitive.NewObjectID()
	now := f.now()
	post.CreatedAt = now
	post.UpdatedAt = now
	if post.Tags == nil {
		post.Tags = []string{}
	}
	if post.Claps == nil {
		post.Claps = []primitive.ObjectID{}
	}
	f.posts[post.ID] = copyPost(&post)
	return &post, nil
}

func (f *fakeStore) UpdatePost(_ context.Context, id primitive.ObjectID, u db.PostUpdate) (*models.Post, error) {
	p, ok := f.posts[id]
	if !ok {
		return nil, nil
	}
	p.Title = u.Title
	p.Desc = u.Desc
	p.Category = u.Category
	p.Tags = append([]string{}, u.Tags...)
	p.Content = u.Content
	p.Img = u.Img
	p.UpdatedAt = f.now()
	return copyPost(p), nil
}

func (f *fakeStore) SetPostFeatured(_ context.Context, id primitive.ObjectID, featured bool) (*models.Post, error) {
	p, ok := f.posts[id]
	if !ok {
		return nil, nil
	}
	p.IsFeatured = featured
	return copyPost(p), nil
}

func (f *fakeStore) IncrementVisit(_ context.Context, slug string) error {
	for _, p := range f.posts {
		if p.Slug == slug {
			p.Visit++
		}
	}
	return nil
}

func (f *fakeStore) AddClap(_ context.Context, postID, userID primitive.ObjectID) (*models.Post, error) {
	p, ok := f.posts[postID]
	if !ok {
		return nil, nil
	}
	if !p.HasClap(userID) {
		p.Claps = append(p.Claps, userID)
	}
	return copyPost(p), nil
}

func (f *fakeStore) RemoveClap(_ context.Context, postID, userID primitive.ObjectID) (*models.Post, error) {
	p, ok := f.posts[postID]
	if !ok {
		return nil, nil
	}
	kept := p.Claps[:0]
	for _, id := range p.Claps {
		if id != userID {
			kept = append(kept, id)
		}
	}
	p.Claps = kept
	return copyPost(p), nil
}

func (f *fakeStore) DeletePostByID(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	p, ok := f.posts[id]
	if !ok {
		return nil, nil
	}
	delete(f.posts, id)
	return copyPost(p), nil
}

func (f *fakeStore) DeletePostOwned(_ context.Context, id, userID primitive.ObjectID) (*models.Post, error) {
	p, ok := f.posts[id]
	if !ok || p.User != userID {
		return nil, nil
	}
	delete(f.posts, id)
	return copyPost(p), nil
}

func (f *fakeStore) DeletePostsByUser(_ context.Context, userID primitive.ObjectID) (int64, error) {
	var n int64
	for id, p := range f.posts {
		if p.User == userID {
			delete(f.posts, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) SetPostSeries(_ context.Context, postIDs []primitive.ObjectID, seriesID primitive.ObjectID) error {
	for _, id := range postIDs {
		if p, ok := f.posts[id]; ok {
			s := seriesID
			p.Series = &s
		}
	}
	return nil
}

func (f *fakeStore) ClearPostSeries(_ context.Context, postIDs []primitive.ObjectID) error {
	for _, id := range postIDs {
		if p, ok := f.posts[id]; ok {
			p.Series = nil
		}
	}
	return nil
}

// --- series ---

func (f *fakeStore) ListSeries(_ context.Context, filter db.SeriesFilter) ([]models.Series, int64, error) {
	var matched []models.Series
	for _, s := range f.series {
		if filter.Category != "" && s.Category != filter.Category {
			continue
		}
		if filter.Tag != "" {
			found := false
			for _, t := range s.Tags {
				if t == filter.Tag {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(s.Name), strings.ToLower(filter.Search)) {
			continue
		}
		matched = append(matched, *copySeries(s))
	}
	if filter.Sort == "oldest" {
		sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })
	} else {
		sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	}
	total := int64(len(matched))
	start := (filter.Page - 1) * filter.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (f *fakeStore) GetSeriesByID(_ context.Context, id primitive.ObjectID) (*models.Series, error) {
	if s, ok := f.series[id]; ok {
		return copySeries(s), nil
	}
	return nil, nil
}

func (f *fakeStore) GetSeriesBySlug(_ context.Context, slug string) (*models.Series, error) {
	for _, s := range f.series {
		if s.Slug == slug {
			return copySeries(s), nil
		}
	}
	return nil, nil
}

func (f *fakeStore) SeriesSlugExists(_ context.Context, slug string) (bool, error) {
	for _, s := range f.series {
		if s.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateSeries(_ context.Context, series models.Series) (*models.Series, error) {
	for _, s := range f.series {
		if s.Slug == series.Slug {
			return nil, dupKeyErr()
		}
	}
	series.ID = primitive.NewObjectID()
	now := f.now()
	series.CreatedAt = now
	series.UpdatedAt = now
	if series.Tags == nil {
		series.Tags = []string{}
	}
	if series.Posts == nil {
		series.Posts = []models.SeriesPost{}
	}
	f.series[series.ID] = copySeries(&series)
	return &series, nil
}

func (f *fakeStore) UpdateSeries(_ context.Context, id primitive.ObjectID, u db.SeriesUpdate) (*models.Series, error) {
	s, ok := f.series[id]
	if !ok {
		return nil, nil
	}
	s.Name = u.Name
	s.Desc = u.Desc
	s.Img = u.Img
	s.Category = u.Category
	s.Tags = append([]string{}, u.Tags...)
	s.Posts = append([]models.SeriesPost{}, u.Posts...)
	s.UpdatedAt = f.now()
	return copySeries(s), nil
}

func (f *fakeStore) DeleteSeriesByID(_ context.Context, id primitive.ObjectID) (*models.Series, error) {
	s, ok := f.series[id]
	if !ok {
		return nil, nil
	}
	delete(f.series, id)
	return copySeries(s), nil
}

func (f *fakeStore) PullPostFromSeries(_ context.Context, postID primitive.ObjectID) error {
	for _, s := range f.series {
		kept := s.Posts[:0]
		for _, sp := range s.Posts {
			if sp.Post != postID {
				kept = append(kept, sp)
			}
		}
		s.Posts = kept
	}
	return nil
}

// --- comments ---

func (f *fakeStore) CreateComment(_ context.Context, comment models.Comment) (*models.Comment, error) {
	comment.ID = primitive.NewObjectID()
	now := f.now()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	if comment.Reactions == nil {
		comment.Reactions = []models.Reaction{}
	}
	f.comments[comment.ID] = copyComment(&comment)
	return &comment, nil
}

func (f *fakeStore) GetCommentByID(_ context.Context, id primitive.ObjectID) (*models.Comment, error) {
	if c, ok := f.comments[id]; ok {
		return copyComment(c), nil
	}
	return nil, nil
}

func (f *fakeStore) ListCommentsByPost(_ context.Context, postID primitive.ObjectID) ([]models.Comment, error) {
	var out []models.Comment
	for _, c := range f.comments {
		if c.Post == postID {
			out = append(out, *copyComment(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) DeleteCommentByID(_ context.Context, id primitive.ObjectID) (*models.Comment, error) {
	c, ok := f.comments[id]
	if !ok {
		return nil, nil
	}
	delete(f.comments, id)
	return copyComment(c), nil
}

func (f *fakeStore) DeleteReplies(_ context.Context, parentID primitive.ObjectID) (int64, error) {
	var n int64
	for id, c := range f.comments {
		if c.ParentComment != nil && *c.ParentComment == parentID {
			delete(f.comments, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) DeleteCommentsByUser(_ context.Context, userID primitive.ObjectID) (int64, error) {
	var n int64
	for id, c := range f.comments {
		if c.User == userID {
			delete(f.comments, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) AddReaction(_ context.Context, commentID primitive.ObjectID, r models.Reaction) error {
	c := f.comments[commentID]
	c.Reactions = append(c.Reactions, r)
	return nil
}

func (f *fakeStore) RemoveReaction(_ context.Context, commentID, userID primitive.ObjectID) error {
	c := f.comments[commentID]
	kept := c.Reactions[:0]
	for _, rx := range c.Reactions {
		if rx.User != userID {
			kept = append(kept, rx)
		}
	}
	c.Reactions = kept
	return nil
}

func (f *fakeStore) ReplaceReaction(_ context.Context, commentID, userID primitive.ObjectID, t models.ReactionType) error {
	c := f.comments[commentID]
	for i := range c.Reactions {
		if c.Reactions[i].User == userID {
			c.Reactions[i].Type = t
		}
	}
	return nil
}

// --- drafts ---

func copyDraft(d *models.Draft) *models.Draft {
	c := *d
	c.Tags = append([]string(nil), d.Tags...)
	return &c
}

func (f *fakeStore) CreateDraft(_ context.Context, draft models.Draft) (*models.Draft, error) {
	draft.ID = primitive.NewObjectID()
	now := f.now()
	draft.CreatedAt = now
	draft.UpdatedAt = now
	if draft.Tags == nil {
		draft.Tags = []string{}
	}
	f.drafts[draft.ID] = copyDraft(&draft)
	return &draft, nil
}

func (f *fakeStore) ListDraftsByUser(_ context.Context, userID primitive.ObjectID) ([]models.Draft, error) {
	var out []models.Draft
	for _, d := range f.drafts {
		if d.User == userID {
			out = append(out, *copyDraft(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *fakeStore) GetDraftOwned(_ context.Context, id, userID primitive.ObjectID) (*models.Draft, error) {
	d, ok := f.drafts[id]
	if !ok || d.User != userID {
		return nil, nil
	}
	return copyDraft(d), nil
}

func (f *fakeStore) UpdateDraftOwned(_ context.Context, id, userID primitive.ObjectID, u db.DraftUpdate) (*models.Draft, error) {
	d, ok := f.drafts[id]
	if !ok || d.User != userID {
		return nil, nil
	}
	d.Title = u.Title
	d.Category = u.Category
	d.Tags = append([]string{}, u.Tags...)
	d.Desc = u.Desc
	d.Content = u.Content
	d.Img = u.Img
	d.UpdatedAt = f.now()
	return copyDraft(d), nil
}

func (f *fakeStore) DeleteDraftOwned(_ context.Context, id, userID primitive.ObjectID) (*models.Draft, error) {
	d, ok := f.drafts[id]
	if !ok || d.User != userID {
		return nil, nil
	}
	delete(f.drafts, id)
	return copyDraft(d), nil
}

func (f *fakeStore) DeleteDraftsByUser(_ context.Context, userID primitive.ObjectID) (int64, error) {
	var n int64
	for id, d := range f.drafts {
		if d.User == userID {
			delete(f.drafts, id)
			n++
		}
	}
	return n, nil
}

// --- test plumbing ---

type fakeRoles map[string]auth.Role

func (f fakeRoles) Resolve(_ context.Context, externalID string) (auth.Role, error) {
	if r, ok := f[externalID]; ok {
		return r, nil
	}
	return auth.RoleUser, nil
}

type testEnv struct {
	store  *fakeStore
	roles  fakeRoles
	router *chi.Mux
}

func newTestEnv() *testEnv {
	store := newFakeStore()
	roles := fakeRoles{}
	log := logrus.New()
	log.SetOutput(io.Discard)

	posts := NewPostsHandler(store, roles, log)
	comments := NewCommentsHandler(store, roles, log)
	series := NewSeriesHandler(store, roles, log)
	drafts := NewDraftsHandler(store, roles, log)
	users := NewUsersHandler(store, log)

	r := chi.NewRouter()
	r.Route("/posts", func(r chi.Router) {
		r.Get("/", posts.List)
		r.Post("/", posts.Create)
		r.Patch("/feature", posts.Feature)
		r.Patch("/clap/{id}", posts.Clap)
		r.Put("/{id}", posts.Update)
		r.Delete("/{id}", posts.Delete)
		r.With(posts.CountVisit).Get("/{slug}", posts.GetBySlug)
	})
	r.Route("/comments", func(r chi.Router) {
		r.Get("/{postId}", comments.List)
		r.Post("/{postId}", comments.Add)
		r.Delete("/{id}", comments.Delete)
		r.Patch("/{id}/react", comments.React)
	})
	r.Route("/series", func(r chi.Router) {
		r.Get("/", series.List)
		r.Post("/", series.Create)
		r.Put("/{id}", series.Update)
		r.Delete("/{id}", series.Delete)
		r.Get("/id/{id}", series.GetByID)
		r.Get("/{slug}", series.GetBySlug)
	})
	r.Route("/drafts", func(r chi.Router) {
		r.Get("/", drafts.List)
		r.Post("/", drafts.Create)
		r.Get("/{id}", drafts.Get)
		r.Put("/{id}", drafts.Update)
		r.Delete("/{id}", drafts.Delete)
	})
	r.Route("/users", func(r chi.Router) {
		r.Get("/saved", users.SavedPosts)
		r.Patch("/save", users.Save)
	})

	return &testEnv{store: store, roles: roles, router: r}
}

// addUser seeds a local user record and returns it.
func (e *testEnv) addUser(externalID, username string, role auth.Role) *models.User {
	user, err := e.store.CreateUser(context.Background(), models.User{
		ExternalID: externalID,
		Username:   username,
		Email:      username + "@example.com",
	})
	if err != nil {
		panic(err)
	}
	e.roles[externalID] = role
	return user
}

// do runs a request through the router, optionally authenticated as
// the given external identity.
func (e *testEnv) do(method, target, identity string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if identity != "" {
		req = req.WithContext(auth.WithIdentity(req.Context(), identity))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func jsonBody(s string) io.Reader { return strings.NewReader(s) }

func decode[T any](t interface{ Fatalf(string, ...interface{}) }, rec *httptest.ResponseRecorder) T {
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

var _ http.Handler = (*chi.Mux)(nil)
