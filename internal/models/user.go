package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is the local record for an identity-provider account. It is
// created by the user.created webhook and removed (with its posts and
// comments) by user.deleted.
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	ExternalID string             `bson:"externalId" json:"externalId"`
	Username   string             `bson:"username" json:"username"`
	Email      string             `bson:"email" json:"email"`
	Img        string             `bson:"img,omitempty" json:"img,omitempty"`
	// SavedPosts holds post ids as strings; entries may go stale when
	// posts are deleted and are lazily cleaned on read.
	SavedPosts []string  `bson:"savedPosts" json:"savedPosts"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt" json:"updatedAt"`
}

// UserRef is the author summary embedded in post, series and comment
// responses.
type UserRef struct {
	ID       primitive.ObjectID `json:"_id"`
	Username string             `json:"username"`
	Img      string             `json:"img,omitempty"`
}

func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Username: u.Username, Img: u.Img}
}
