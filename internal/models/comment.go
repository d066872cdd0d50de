package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReactionType is one of the fixed reaction kinds a user can place on
// a comment.
type ReactionType string

const (
	ReactionLike       ReactionType = "like"
	ReactionLove       ReactionType = "love"
	ReactionLaugh      ReactionType = "laugh"
	ReactionCelebrate  ReactionType = "celebrate"
	ReactionCare       ReactionType = "care"
	ReactionInsightful ReactionType = "insightful"
)

// ReactionTypes lists every valid kind, in the order responses report
// their counts.
var ReactionTypes = []ReactionType{
	ReactionLike,
	ReactionLove,
	ReactionLaugh,
	ReactionCelebrate,
	ReactionCare,
	ReactionInsightful,
}

func ValidReactionType(t ReactionType) bool {
	for _, rt := range ReactionTypes {
		if t == rt {
			return true
		}
	}
	return false
}

// Reaction is one user's reaction on a comment. The application keeps
// at most one per user per comment; the store does not enforce it.
type Reaction struct {
	User primitive.ObjectID `bson:"user" json:"user"`
	Type ReactionType       `bson:"type" json:"type"`
}

// Comment is a remark on a post, or a reply to a top-level comment.
// Nesting depth is limited to one: a comment with a non-nil
// ParentComment can never itself be a parent.
type Comment struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	User          primitive.ObjectID  `bson:"user" json:"user"`
	Post          primitive.ObjectID  `bson:"post" json:"post"`
	Desc          string              `bson:"desc" json:"desc"`
	ParentComment *primitive.ObjectID `bson:"parentComment,omitempty" json:"parentComment,omitempty"`
	Reactions     []Reaction          `bson:"reactions" json:"-"`
	CreatedAt     time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// FindReaction returns the user's reaction on this comment, or nil.
func (c *Comment) FindReaction(userID primitive.ObjectID) *Reaction {
	for i := range c.Reactions {
		if c.Reactions[i].User == userID {
			return &c.Reactions[i]
		}
	}
	return nil
}

// ReactionSummary is the derived view of a comment's reactions: the
// per-type counts (every kind present, zero-defaulted) and the viewer's
// own reaction, nil when the viewer has none or is anonymous.
type ReactionSummary struct {
	Counts     map[ReactionType]int `json:"counts"`
	MyReaction *ReactionType        `json:"myReaction"`
}

// TallyReactions computes the summary for one comment. Pass
// primitive.NilObjectID as viewer for anonymous reads.
func TallyReactions(reactions []Reaction, viewer primitive.ObjectID) ReactionSummary {
	counts := make(map[ReactionType]int, len(ReactionTypes))
	for _, rt := range ReactionTypes {
		counts[rt] = 0
	}
	var mine *ReactionType
	for _, r := range reactions {
		if !ValidReactionType(r.Type) {
			continue
		}
		counts[r.Type]++
		if !viewer.IsZero() && r.User == viewer {
			t := r.Type
			mine = &t
		}
	}
	return ReactionSummary{Counts: counts, MyReaction: mine}
}
