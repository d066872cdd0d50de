package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/inkwell-blog/inkwell-api/internal/models"
)

func (s *Store) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.SavedPosts == nil {
		user.SavedPosts = []string{}
	}
	res, err := s.users().InsertOne(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	user.ID = res.InsertedID.(primitive.ObjectID)
	return &user, nil
}

func (s *Store) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var user models.User
	err := s.users().FindOne(ctx, bson.M{"externalId": externalID}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by external id: %w", err)
	}
	return &user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.users().FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return &user, nil
}

func (s *Store) GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.users().Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("get users by ids: %w", err)
	}
	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

// DeleteUserByExternalID removes the user record and returns it, or nil
// if no such user existed. Used by the account-deletion webhook, which
// may be replayed; a second run finds nothing and is a no-op.
func (s *Store) DeleteUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var user models.User
	err := s.users().FindOneAndDelete(ctx, bson.M{"externalId": externalID}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete user: %w", err)
	}
	return &user, nil
}

// AddSavedPost adds postID to the user's saved list if absent, so a
// doubled submission cannot produce duplicate entries.
func (s *Store) AddSavedPost(ctx context.Context, userID primitive.ObjectID, postID string) error {
	_, err := s.users().UpdateByID(ctx, userID, bson.M{
		"$addToSet": bson.M{"savedPosts": postID},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("add saved post: %w", err)
	}
	return nil
}

func (s *Store) RemoveSavedPost(ctx context.Context, userID primitive.ObjectID, postID string) error {
	_, err := s.users().UpdateByID(ctx, userID, bson.M{
		"$pull": bson.M{"savedPosts": postID},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("remove saved post: %w", err)
	}
	return nil
}

// SetSavedPosts rewrites the whole saved list; used by the lazy cleanup
// of dangling entries on read.
func (s *Store) SetSavedPosts(ctx context.Context, userID primitive.ObjectID, postIDs []string) error {
	if postIDs == nil {
		postIDs = []string{}
	}
	_, err := s.users().UpdateByID(ctx, userID, bson.M{
		"$set": bson.M{"savedPosts": postIDs, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("set saved posts: %w", err)
	}
	return nil
}
