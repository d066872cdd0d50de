package handlers

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/inkwell-blog/inkwell-api/internal/db"
	"github.com/inkwell-blog/inkwell-api/internal/models"
)

// The handlers consume the store through narrow interfaces so tests can
// substitute in-memory fakes; *db.Store satisfies all of them.

// UserDirectory resolves the caller's local user record from the
// identity the auth middleware extracted.
type UserDirectory interface {
	GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error)
}

type PostsStore interface {
	UserDirectory
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)

	ListPosts(ctx context.Context, f db.PostFilter) ([]models.Post, int64, error)
	GetPostByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	GetPostBySlug(ctx context.Context, slug string) (*models.Post, error)
	PostSlugExists(ctx context.Context, slug string) (bool, error)
	CreatePost(ctx context.Context, post models.Post) (*models.Post, error)
	UpdatePost(ctx context.Context, id primitive.ObjectID, u db.PostUpdate) (*models.Post, error)
	SetPostFeatured(ctx context.Context, id primitive.ObjectID, featured bool) (*models.Post, error)
	AddClap(ctx context.Context, postID, userID primitive.ObjectID) (*models.Post, error)
	RemoveClap(ctx context.Context, postID, userID primitive.ObjectID) (*models.Post, error)
	IncrementVisit(ctx context.Context, slug string) error
	DeletePostByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	DeletePostOwned(ctx context.Context, id, userID primitive.ObjectID) (*models.Post, error)

	GetSeriesByID(ctx context.Context, id primitive.ObjectID) (*models.Series, error)
	PullPostFromSeries(ctx context.Context, postID primitive.ObjectID) error
}

type CommentsStore interface {
	UserDirectory
	GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)

	CreateComment(ctx context.Context, comment models.Comment) (*models.Comment, error)
	GetCommentByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error)
	ListCommentsByPost(ctx context.Context, postID primitive.ObjectID) ([]models.Comment, error)
	DeleteCommentByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error)
	DeleteReplies(ctx context.Context, parentID primitive.ObjectID) (int64, error)
	AddReaction(ctx context.Context, commentID primitive.ObjectID, r models.Reaction) error
	RemoveReaction(ctx context.Context, commentID, userID primitive.ObjectID) error
	ReplaceReaction(ctx context.Context, commentID, userID primitive.ObjectID, t models.ReactionType) error
}

type SeriesStore interface {
	UserDirectory
	GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	GetPostsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Post, error)

	ListSeries(ctx context.Context, f db.SeriesFilter) ([]models.Series, int64, error)
	GetSeriesByID(ctx context.Context, id primitive.ObjectID) (*models.Series, error)
	GetSeriesBySlug(ctx context.Context, slug string) (*models.Series, error)
	SeriesSlugExists(ctx context.Context, slug string) (bool, error)
	CreateSeries(ctx context.Context, series models.Series) (*models.Series, error)
	UpdateSeries(ctx context.Context, id primitive.ObjectID, u db.SeriesUpdate) (*models.Series, error)
	DeleteSeriesByID(ctx context.Context, id primitive.ObjectID) (*models.Series, error)

	SetPostSeries(ctx context.Context, postIDs []primitive.ObjectID, seriesID primitive.ObjectID) error
	ClearPostSeries(ctx context.Context, postIDs []primitive.ObjectID) error
}

type DraftsStore interface {
	UserDirectory
	CreateDraft(ctx context.Context, draft models.Draft) (*models.Draft, error)
	ListDraftsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Draft, error)
	GetDraftOwned(ctx context.Context, id, userID primitive.ObjectID) (*models.Draft, error)
	UpdateDraftOwned(ctx context.Context, id, userID primitive.ObjectID, u db.DraftUpdate) (*models.Draft, error)
	DeleteDraftOwned(ctx context.Context, id, userID primitive.ObjectID) (*models.Draft, error)
}

type UsersStore interface {
	UserDirectory
	GetPostsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Post, error)
	AddSavedPost(ctx context.Context, userID primitive.ObjectID, postID string) error
	RemoveSavedPost(ctx context.Context, userID primitive.ObjectID, postID string) error
	SetSavedPosts(ctx context.Context, userID primitive.ObjectID, postIDs []string) error
}

type WebhooksStore interface {
	UserDirectory
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	DeleteUserByExternalID(ctx context.Context, externalID string) (*models.User, error)
	DeletePostsByUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
	DeleteCommentsByUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
	DeleteDraftsByUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
}
