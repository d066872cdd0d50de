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

// SeriesFilter selects and orders a page of series.
type SeriesFilter struct {
	Category string
	Tag      string
	Search   string
	Sort     string
	Page     int
	Limit    int
}

func (f SeriesFilter) query() bson.M {
	q := bson.M{}
	if f.Category != "" {
		q["category"] = f.Category
	}
	if f.Tag != "" {
		q["tags"] = f.Tag
	}
	if f.Search != "" {
		// Literal substring match; user input never becomes a pattern.
		q["name"] = bson.M{"$regex": regexp.QuoteMeta(f.Search), "$options": "i"}
	}
	return q
}

func (f SeriesFilter) sort() bson.D {
	if f.Sort == "oldest" {
		return bson.D{{Key: "createdAt", Value: 1}}
	}
	return bson.D{{Key: "createdAt", Value: -1}}
}

func (s *Store) ListSeries(ctx context.Context, f SeriesFilter) ([]models.Series, int64, error) {
	query := f.query()

	opts := options.Find().
		SetSort(f.sort()).
		SetLimit(int64(f.Limit)).
		SetSkip(int64(f.Page-1) * int64(f.Limit))

	cur, err := s.series().Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list series: %w", err)
	}
	series := []models.Series{}
	if err := cur.All(ctx, &series); err != nil {
		return nil, 0, fmt.Errorf("decode series: %w", err)
	}

	total, err := s.series().CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count series: %w", err)
	}
	return series, total, nil
}

func (s *Store) GetSeriesByID(ctx context.Context, id primitive.ObjectID) (*models.Series, error) {
	var series models.Series
	err := s.series().FindOne(ctx, bson.M{"_id": id}).Decode(&series)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get series: %w", err)
	}
	return &series, nil
}

func (s *Store) GetSeriesBySlug(ctx context.Context, slug string) (*models.Series, error) {
	var series models.Series
	err := s.series().FindOne(ctx, bson.M{"slug": slug}).Decode(&series)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get series by slug: %w", err)
	}
	return &series, nil
}

func (s *Store) SeriesSlugExists(ctx context.Context, slug string) (bool, error) {
	err := s.series().FindOne(ctx, bson.M{"slug": slug},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probe series slug: %w", err)
	}
	return true, nil
}

func (s *Store) CreateSeries(ctx context.Context, series models.Series) (*models.Series, error) {
	now := time.Now().UTC()
	series.CreatedAt = now
	series.UpdatedAt = now
	if series.Tags == nil {
		series.Tags = []string{}
	}
	if series.Posts == nil {
		series.Posts = []models.SeriesPost{}
	}
	res, err := s.series().InsertOne(ctx, series)
	if err != nil {
		// Duplicate slug errors surface unwrapped so the caller can
		// re-probe and retry.
		return nil, err
	}
	series.ID = res.InsertedID.(primitive.ObjectID)
	return &series, nil
}

// SeriesUpdate carries the mutable fields of a series, including the
// full replacement post list.
type SeriesUpdate struct {
	Name     string
	Desc     string
	Img      string
	Category string
	Tags     []string
	Posts    []models.SeriesPost
}

func (s *Store) UpdateSeries(ctx context.Context, id primitive.ObjectID, u SeriesUpdate) (*models.Series, error) {
	tags := u.Tags
	if tags == nil {
		tags = []string{}
	}
	posts := u.Posts
	if posts == nil {
		posts = []models.SeriesPost{}
	}
	set := bson.M{
		"name":      u.Name,
		"desc":      u.Desc,
		"img":       u.Img,
		"category":  u.Category,
		"tags":      tags,
		"posts":     posts,
		"updatedAt": time.Now().UTC(),
	}
	var series models.Series
	err := s.series().FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&series)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update series: %w", err)
	}
	return &series, nil
}

func (s *Store) DeleteSeriesByID(ctx context.Context, id primitive.ObjectID) (*models.Series, error) {
	var series models.Series
	err := s.series().FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&series)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete series: %w", err)
	}
	return &series, nil
}

// PullPostFromSeries drops the post from every series list that still
// carries it; run when a post is deleted.
func (s *Store) PullPostFromSeries(ctx context.Context, postID primitive.ObjectID) error {
	_, err := s.series().UpdateMany(ctx,
		bson.M{"posts.post": postID},
		bson.M{"$pull": bson.M{"posts": bson.M{"post": postID}}})
	if err != nil {
		return fmt.Errorf("pull post from series: %w", err)
	}
	return nil
}
