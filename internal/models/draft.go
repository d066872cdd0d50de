package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Draft is an admin's unpublished working copy, written by the client's
// periodic autosave. Every field except the owner may be empty.
type Draft struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	Title     string             `bson:"title" json:"title"`
	Category  string             `bson:"category" json:"category"`
	Tags      []string           `bson:"tags" json:"tags"`
	Desc      string             `bson:"desc" json:"desc"`
	Content   string             `bson:"content" json:"content"`
	Img       string             `bson:"img" json:"img"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
