package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/inkwell-blog/inkwell-api/internal/auth"
	"github.com/inkwell-blog/inkwell-api/internal/models"
)

type CommentsHandler struct {
	store CommentsStore
	roles auth.RoleResolver
	log   *logrus.Logger
}

func NewCommentsHandler(store CommentsStore, roles auth.RoleResolver, log *logrus.Logger) *CommentsHandler {
	return &CommentsHandler{store: store, roles: roles, log: log}
}

// commentView annotates a comment with its author summary, the per-type
// reaction counts (every kind present, zero-defaulted) and the viewer's
// own reaction. The list stays flat; the client partitions top-level
// comments from replies.
type commentView struct {
	models.Comment
	User       models.UserRef              `json:"user"`
	Counts     map[models.ReactionType]int `json:"counts"`
	MyReaction *models.ReactionType        `json:"myReaction"`
}

func (h *CommentsHandler) viewer(r *http.Request) primitive.ObjectID {
	externalID, ok := auth.Identity(r.Context())
	if !ok {
		return primitive.NilObjectID
	}
	user, err := h.store.GetUserByExternalID(r.Context(), externalID)
	if err != nil || user == nil {
		return primitive.NilObjectID
	}
	return user.ID
}

func (h *CommentsHandler) List(w http.ResponseWriter, r *http.Request) {
	postID, ok := parseObjectID(w, chi.URLParam(r, "postId"), "post id")
	if !ok {
		return
	}

	comments, err := h.store.ListCommentsByPost(r.Context(), postID)
	if err != nil {
		serverError(w, h.log, "failed to load comments", err)
		return
	}

	authorIDs := make([]primitive.ObjectID, 0, len(comments))
	seen := make(map[primitive.ObjectID]struct{}, len(comments))
	for _, c := range comments {
		if _, ok := seen[c.User]; !ok {
			seen[c.User] = struct{}{}
			authorIDs = append(authorIDs, c.User)
		}
	}
	refs := make(map[primitive.ObjectID]models.UserRef, len(authorIDs))
	if authors, err := h.store.GetUsersByIDs(r.Context(), authorIDs); err != nil {
		h.log.WithError(err).Warn("failed to load comment authors")
	} else {
		for i := range authors {
			refs[authors[i].ID] = authors[i].Ref()
		}
	}

	viewerID := h.viewer(r)
	views := make([]commentView, 0, len(comments))
	for _, c := range comments {
		summary := models.TallyReactions(c.Reactions, viewerID)
		views = append(views, commentView{
			Comment:    c,
			User:       refs[c.User],
			Counts:     summary.Counts,
			MyReaction: summary.MyReaction,
		})
	}
	respondJSON(w, http.StatusOK, views)
}

type addCommentRequest struct {
	Desc          string `json:"desc"`
	ParentComment string `json:"parentComment"`
}

func (h *CommentsHandler) Add(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.store, h.log)
	if !ok {
		return
	}
	postID, ok := parseObjectID(w, chi.URLParam(r, "postId"), "post id")
	if !ok {
		return
	}

	var req addCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Desc == "" {
		respondError(w, http.StatusBadRequest, "desc is required")
		return
	}

	comment := models.Comment{
		User: user.ID,
		Post: postID,
		Desc: req.Desc,
	}

	if req.ParentComment != "" {
		parentID, ok := parseObjectID(w, req.ParentComment, "parent comment id")
		if !ok {
			return
		}
		parent, err := h.store.GetCommentByID(r.Context(), parentID)
		if err != nil {
			serverError(w, h.log, "failed to load parent comment", err)
			return
		}
		if parent == nil {
			respondError(w, http.StatusNotFound, "parent comment not found")
			return
		}
		// One level only: a reply can never be replied to.
		if parent.ParentComment != nil {
			respondError(w, http.StatusBadRequest, "replies cannot be nested")
			return
		}
		comment.ParentComment = &parentID
	}

	created, err := h.store.CreateComment(r.Context(), comment)
	if err != nil {
		serverError(w, h.log, "failed to create comment", err)
		return
	}

	summary := models.TallyReactions(created.Reactions, user.ID)
	respondJSON(w, http.StatusCreated, commentView{
		Comment:    *created,
		User:       user.Ref(),
		Counts:     summary.Counts,
		MyReaction: summary.MyReaction,
	})
}

func (h *CommentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, role, ok := requireUserWithRole(w, r, h.store, h.roles, h.log)
	if !ok {
		return
	}
	id, ok := parseObjectID(w, chi.URLParam(r, "id"), "comment id")
	if !ok {
		return
	}

	comment, err := h.store.GetCommentByID(r.Context(), id)
	if err != nil {
		serverError(w, h.log, "failed to load comment", err)
		return
	}
	if comment == nil {
		respondError(w, http.StatusNotFound, "comment not found")
		return
	}
	if role != auth.RoleAdmin && comment.User != user.ID {
		respondError(w, http.StatusForbidden, "you can delete only your comment")
		return
	}

	if _, err := h.store.DeleteCommentByID(r.Context(), id); err != nil {
		serverError(w, h.log, "failed to delete comment", err)
		return
	}
	if comment.ParentComment == nil {
		replies, err := h.store.DeleteReplies(r.Context(), id)
		if err != nil {
			serverError(w, h.log, "comment deleted but replies remain", err)
			return
		}
		if replies > 0 {
			h.log.WithFields(logrus.Fields{"comment": id.Hex(), "replies": replies}).
				Info("deleted comment replies")
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "comment has been deleted"})
}

type reactRequest struct {
	Type models.ReactionType `json:"type"`
}

// React applies the single-choice policy: no existing reaction adds
// one, the same type toggles it off, a different type switches it in
// place. At most one reaction per user per comment is enforced here,
// not by the store.
func (h *CommentsHandler) React(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.store, h.log)
	if !ok {
		return
	}
	id, ok := parseObjectID(w, chi.URLParam(r, "id"), "comment id")
	if !ok {
		return
	}

	var req reactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if !models.ValidReactionType(req.Type) {
		respondError(w, http.StatusBadRequest, "invalid reaction type")
		return
	}

	comment, err := h.store.GetCommentByID(r.Context(), id)
	if err != nil {
		serverError(w, h.log, "failed to load comment", err)
		return
	}
	if comment == nil {
		respondError(w, http.StatusNotFound, "comment not found")
		return
	}

	existing := comment.FindReaction(user.ID)
	switch {
	case existing == nil:
		err = h.store.AddReaction(r.Context(), id, models.Reaction{User: user.ID, Type: req.Type})
		comment.Reactions = append(comment.Reactions, models.Reaction{User: user.ID, Type: req.Type})
	case existing.Type == req.Type:
		err = h.store.RemoveReaction(r.Context(), id, user.ID)
		kept := comment.Reactions[:0]
		for _, rx := range comment.Reactions {
			if rx.User != user.ID {
				kept = append(kept, rx)
			}
		}
		comment.Reactions = kept
	default:
		err = h.store.ReplaceReaction(r.Context(), id, user.ID, req.Type)
		existing.Type = req.Type
	}
	if err != nil {
		serverError(w, h.log, "failed to update reaction", err)
		return
	}

	summary := models.TallyReactions(comment.Reactions, user.ID)
	respondJSON(w, http.StatusOK, summary)
}
