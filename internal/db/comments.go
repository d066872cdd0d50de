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

func (s *Store) CreateComment(ctx context.Context, comment models.Comment) (*models.Comment, error) {
	now := time.Now().UTC()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	if comment.Reactions == nil {
		comment.Reactions = []models.Reaction{}
	}
	res, err := s.comments().InsertOne(ctx, comment)
	if err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	comment.ID = res.InsertedID.(primitive.ObjectID)
	return &comment, nil
}

func (s *Store) GetCommentByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error) {
	var comment models.Comment
	err := s.comments().FindOne(ctx, bson.M{"_id": id}).Decode(&comment)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return &comment, nil
}

// ListCommentsByPost returns the post's comments newest-first as one
// flat list; clients partition top-level comments from replies.
func (s *Store) ListCommentsByPost(ctx context.Context, postID primitive.ObjectID) ([]models.Comment, error) {
	cur, err := s.comments().Find(ctx, bson.M{"post": postID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	comments := []models.Comment{}
	if err := cur.All(ctx, &comments); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}
	return comments, nil
}

func (s *Store) DeleteCommentByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error) {
	var comment models.Comment
	err := s.comments().FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&comment)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete comment: %w", err)
	}
	return &comment, nil
}

// DeleteReplies removes every direct reply of the given comment. One
// level is all there is: replies cannot have replies of their own.
func (s *Store) DeleteReplies(ctx context.Context, parentID primitive.ObjectID) (int64, error) {
	res, err := s.comments().DeleteMany(ctx, bson.M{"parentComment": parentID})
	if err != nil {
		return 0, fmt.Errorf("delete replies: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *Store) DeleteCommentsByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := s.comments().DeleteMany(ctx, bson.M{"user": userID})
	if err != nil {
		return 0, fmt.Errorf("delete comments by user: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *Store) AddReaction(ctx context.Context, commentID primitive.ObjectID, r models.Reaction) error {
	_, err := s.comments().UpdateByID(ctx, commentID, bson.M{
		"$push": bson.M{"reactions": r},
	})
	if err != nil {
		return fmt.Errorf("add reaction: %w", err)
	}
	return nil
}

func (s *Store) RemoveReaction(ctx context.Context, commentID, userID primitive.ObjectID) error {
	_, err := s.comments().UpdateByID(ctx, commentID, bson.M{
		"$pull": bson.M{"reactions": bson.M{"user": userID}},
	})
	if err != nil {
		return fmt.Errorf("remove reaction: %w", err)
	}
	return nil
}

// ReplaceReaction switches the type of the user's existing reaction in
// place via the positional operator.
func (s *Store) ReplaceReaction(ctx context.Context, commentID, userID primitive.ObjectID, t models.ReactionType) error {
	_, err := s.comments().UpdateOne(ctx,
		bson.M{"_id": commentID, "reactions.user": userID},
		bson.M{"$set": bson.M{"reactions.$.type": t}})
	if err != nil {
		return fmt.Errorf("replace reaction: %w", err)
	}
	return nil
}
