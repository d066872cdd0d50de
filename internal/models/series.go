package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxSeriesTags caps how many tags a series may carry.
const MaxSeriesTags = 5

// SeriesPost is one entry of a series' ordered post list. Order numbers
// come verbatim from the caller and are not required to be contiguous
// or unique; ties keep assignment order.
type SeriesPost struct {
	Post  primitive.ObjectID `bson:"post" json:"post"`
	Order int                `bson:"order" json:"order"`
}

// Series is an ordered, curated collection of posts.
type Series struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	Name      string             `bson:"name" json:"name"`
	Slug      string             `bson:"slug" json:"slug"`
	Desc      string             `bson:"desc,omitempty" json:"desc,omitempty"`
	Img       string             `bson:"img,omitempty" json:"img,omitempty"`
	Category  string             `bson:"category" json:"category"`
	Tags      []string           `bson:"tags" json:"tags"`
	Posts     []SeriesPost       `bson:"posts" json:"posts"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// PostIDs returns the ids of the listed posts, in list order.
func (s *Series) PostIDs() []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(s.Posts))
	for _, p := range s.Posts {
		ids = append(ids, p.Post)
	}
	return ids
}

// NormalizeTags trims, drops empties, de-duplicates preserving first
// occurrence, and caps the result at MaxSeriesTags.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, MaxSeriesTags)
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
		if len(out) == MaxSeriesTags {
			break
		}
	}
	return out
}
