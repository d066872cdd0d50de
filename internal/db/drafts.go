package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/inkwell-blog/inkwell-api/internal/models"
)

// Drafts are strictly owner-scoped: every query below filters by the
// owning user, so a draft id belonging to someone else behaves like a
// missing draft.

func (s *Store) CreateDraft(ctx context.Context, draft models.Draft) (*models.Draft, error) {
	now := time.Now().UTC()
	draft.CreatedAt = now
	draft.UpdatedAt = now
	if draft.Tags == nil {
		draft.Tags = []string{}
	}
	res, err := s.drafts().InsertOne(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("create draft: %w", err)
	}
	draft.ID = res.InsertedID.(primitive.ObjectID)
	return &draft, nil
}

func (s *Store) ListDraftsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Draft, error) {
	cur, err := s.drafts().Find(ctx, bson.M{"user": userID},
		options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	drafts := []models.Draft{}
	if err := cur.All(ctx, &drafts); err != nil {
		return nil, fmt.Errorf("decode drafts: %w", err)
	}
	return drafts, nil
}

func (s *Store) GetDraftOwned(ctx context.Context, id, userID primitive.ObjectID) (*models.Draft, error) {
	var draft models.Draft
	err := s.drafts().FindOne(ctx, bson.M{"_id": id, "user": userID}).Decode(&draft)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}
	return &draft, nil
}

// DraftUpdate carries the autosaved fields of a draft.
type DraftUpdate struct {
	Title    string
	Category string
	Tags     []string
	Desc     string
	Content  string
	Img      string
}

func (s *Store) UpdateDraftOwned(ctx context.Context, id, userID primitive.ObjectID, u DraftUpdate) (*models.Draft, error) {
	tags := u.Tags
	if tags == nil {
		tags = []string{}
	}
	set := bson.M{
		"title":     u.Title,
		"category":  u.Category,
		"tags":      tags,
		"desc":      u.Desc,
		"content":   u.Content,
		"img":       u.Img,
		"updatedAt": time.Now().UTC(),
	}
	var draft models.Draft
	err := s.drafts().FindOneAndUpdate(ctx, bson.M{"_id": id, "user": userID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&draft)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update draft: %w", err)
	}
	return &draft, nil
}

func (s *Store) DeleteDraftOwned(ctx context.Context, id, userID primitive.ObjectID) (*models.Draft, error) {
	var draft models.Draft
	err := s.drafts().FindOneAndDelete(ctx, bson.M{"_id": id, "user": userID}).Decode(&draft)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete draft: %w", err)
	}
	return &draft, nil
}

func (s *Store) DeleteDraftsByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := s.drafts().DeleteMany(ctx, bson.M{"user": userID})
	if err != nil {
		return 0, fmt.Errorf("delete drafts by user: %w", err)
	}
	return res.DeletedCount, nil
}
