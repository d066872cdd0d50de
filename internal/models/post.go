package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post is a published article. Content is the serialized rich-text
// block tree (or a legacy HTML string for old posts); the server treats
// it as opaque.
type Post struct {
	ID         primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	User       primitive.ObjectID   `bson:"user" json:"user"`
	Img        string               `bson:"img,omitempty" json:"img,omitempty"`
	Title      string               `bson:"title" json:"title"`
	Slug       string               `bson:"slug" json:"slug"`
	Desc       string               `bson:"desc,omitempty" json:"desc,omitempty"`
	Category   string               `bson:"category" json:"category"`
	Tags       []string             `bson:"tags" json:"tags"`
	Content    string               `bson:"content" json:"content"`
	IsFeatured bool                 `bson:"isFeatured" json:"isFeatured"`
	Visit      int64                `bson:"visit" json:"visit"`
	Claps      []primitive.ObjectID `bson:"claps" json:"claps"`
	// Series is the back-reference to the containing series. It is
	// maintained by the series handlers and may briefly (or, after a
	// partial failure, permanently) disagree with the series' own post
	// list; readers treat a dangling value as "no series".
	Series    *primitive.ObjectID `bson:"series,omitempty" json:"series,omitempty"`
	CreatedAt time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// HasClap reports whether the given user is in the clap list.
func (p *Post) HasClap(userID primitive.ObjectID) bool {
	for _, id := range p.Claps {
		if id == userID {
			return true
		}
	}
	return false
}

const DefaultCategory = "general"
