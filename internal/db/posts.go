package db

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/inkwell-blog/inkwell-api/internal/models"
)

// PostFilter selects and orders a page of posts.
type PostFilter struct {
	Category string
	Author   *primitive.ObjectID
	Search   string
	Sort     string
	Featured bool
	Page     int
	Limit    int
}

func (f PostFilter) query() bson.M {
	q := bson.M{}
	if f.Category != "" {
		q["category"] = f.Category
	}
	if f.Author != nil {
		q["user"] = *f.Author
	}
	if f.Search != "" {
		// Literal substring match; user input never becomes a pattern.
		q["title"] = bson.M{"$regex": regexp.QuoteMeta(f.Search), "$options": "i"}
	}
	if f.Featured {
		q["isFeatured"] = true
	}
	if f.Sort == "trending" {
		q["createdAt"] = bson.M{"$gte": time.Now().UTC().Add(-7 * 24 * time.Hour)}
	}
	return q
}

func (f PostFilter) sort() bson.D {
	switch f.Sort {
	case "oldest":
		return bson.D{{Key: "createdAt", Value: 1}}
	case "popular", "trending":
		return bson.D{{Key: "visit", Value: -1}}
	default: // newest
		return bson.D{{Key: "createdAt", Value: -1}}
	}
}

func (s *Store) ListPosts(ctx context.Context, f PostFilter) ([]models.Post, int64, error) {
	query := f.query()

	opts := options.Find().
		SetSort(f.sort()).
		SetLimit(int64(f.Limit)).
		SetSkip(int64(f.Page-1) * int64(f.Limit))

	cur, err := s.posts().Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	posts := []models.Post{}
	if err := cur.All(ctx, &posts); err != nil {
		return nil, 0, fmt.Errorf("decode posts: %w", err)
	}

	total, err := s.posts().CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}
	return posts, total, nil
}

func (s *Store) GetPostByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	var post models.Post
	err := s.posts().FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &post, nil
}

func (s *Store) GetPostBySlug(ctx context.Context, slug string) (*models.Post, error) {
	var post models.Post
	err := s.posts().FindOne(ctx, bson.M{"slug": slug}).Decode(&post)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post by slug: %w", err)
	}
	return &post, nil
}

func (s *Store) GetPostsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.posts().Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("get posts by ids: %w", err)
	}
	var posts []models.Post
	if err := cur.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	return posts, nil
}

func (s *Store) PostSlugExists(ctx context.Context, slug string) (bool, error) {
	err := s.posts().FindOne(ctx, bson.M{"slug": slug},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probe post slug: %w", err)
	}
	return true, nil
}

func (s *Store) CreatePost(ctx context.Context, post models.Post) (*models.Post, error) {
	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now
	if post.Tags == nil {
		post.Tags = []string{}
	}
	if post.Claps == nil {
		post.Claps = []primitive.ObjectID{}
	}
	res, err := s.posts().InsertOne(ctx, post)
	if err != nil {
		// Duplicate slug errors surface unwrapped so the caller can
		// re-probe and retry.
		return nil, err
	}
	post.ID = res.InsertedID.(primitive.ObjectID)
	return &post, nil
}

// PostUpdate carries the mutable fields of a post; the slug is fixed at
// creation.
type PostUpdate struct {
	Title    string
	Desc     string
	Category string
	Tags     []string
	Content  string
	Img      string
}

func (s *Store) UpdatePost(ctx context.Context, id primitive.ObjectID, u PostUpdate) (*models.Post, error) {
	tags := u.Tags
	if tags == nil {
		tags = []string{}
	}
	set := bson.M{
		"title":     u.Title,
		"desc":      u.Desc,
		"category":  u.Category,
		"tags":      tags,
		"content":   u.Content,
		"img":       u.Img,
		"updatedAt": time.Now().UTC(),
	}
	var post models.Post
	err := s.posts().FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&post)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	return &post, nil
}

func (s *Store) SetPostFeatured(ctx context.Context, id primitive.ObjectID, featured bool) (*models.Post, error) {
	var post models.Post
	err := s.posts().FindOneAndUpdate(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"isFeatured": featured, "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&post)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("set post featured: %w", err)
	}
	return &post, nil
}

// IncrementVisit bumps the visit counter of the post with this slug.
// Missing slugs are ignored; the read that follows will 404.
func (s *Store) IncrementVisit(ctx context.Context, slug string) error {
	_, err := s.posts().UpdateOne(ctx, bson.M{"slug": slug}, bson.M{"$inc": bson.M{"visit": 1}})
	if err != nil {
		return fmt.Errorf("increment visit: %w", err)
	}
	return nil
}

func (s *Store) AddClap(ctx context.Context, postID, userID primitive.ObjectID) (*models.Post, error) {
	var post models.Post
	err := s.posts().FindOneAndUpdate(ctx, bson.M{"_id": postID},
		bson.M{"$addToSet": bson.M{"claps": userID}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&post)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("add clap: %w", err)
	}
	return &post, nil
}

func (s *Store) RemoveClap(ctx context.Context, postID, userID primitive.ObjectID) (*models.Post, error) {
	var post models.Post
	err := s.posts().FindOneAndUpdate(ctx, bson.M{"_id": postID},
		bson.M{"$pull": bson.M{"claps": userID}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&post)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("remove clap: %w", err)
	}
	return &post, nil
}

func (s *Store) DeletePostByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	var post models.Post
	err := s.posts().FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&post)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete post: %w", err)
	}
	return &post, nil
}

// DeletePostOwned deletes the post only if userID owns it; returns nil
// when the post does not exist or belongs to someone else.
func (s *Store) DeletePostOwned(ctx context.Context, id, userID primitive.ObjectID) (*models.Post, error) {
	var post models.Post
	err := s.posts().FindOneAndDelete(ctx, bson.M{"_id": id, "user": userID}).Decode(&post)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete owned post: %w", err)
	}
	return &post, nil
}

func (s *Store) DeletePostsByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := s.posts().DeleteMany(ctx, bson.M{"user": userID})
	if err != nil {
		return 0, fmt.Errorf("delete posts by user: %w", err)
	}
	return res.DeletedCount, nil
}

// SetPostSeries points each listed post at the series; used after a
// series create/update. The series insert and this write are separate
// operations, a crash in between leaves the posts unlinked.
func (s *Store) SetPostSeries(ctx context.Context, postIDs []primitive.ObjectID, seriesID primitive.ObjectID) error {
	if len(postIDs) == 0 {
		return nil
	}
	_, err := s.posts().UpdateMany(ctx, bson.M{"_id": bson.M{"$in": postIDs}},
		bson.M{"$set": bson.M{"series": seriesID}})
	if err != nil {
		return fmt.Errorf("set post series: %w", err)
	}
	return nil
}

func (s *Store) ClearPostSeries(ctx context.Context, postIDs []primitive.ObjectID) error {
	if len(postIDs) == 0 {
		return nil
	}
	_, err := s.posts().UpdateMany(ctx, bson.M{"_id": bson.M{"$in": postIDs}},
		bson.M{"$unset": bson.M{"series": ""}})
	if err != nil {
		return fmt.Errorf("clear post series: %w", err)
	}
	return nil
}
