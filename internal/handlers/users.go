package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UsersHandler struct {
	store UsersStore
	log   *logrus.Logger
}

func NewUsersHandler(store UsersStore, log *logrus.Logger) *UsersHandler {
	return &UsersHandler{store: store, log: log}
}

// SavedPosts returns the caller's saved post ids. Entries that are
// malformed or no longer resolve to a post are dropped, and when
// anything was dropped the stored list is rewritten to the cleaned set.
// Lazy self-healing instead of an eager cascade on post deletion.
func (h *UsersHandler) SavedPosts(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.store, h.log)
	if !ok {
		return
	}

	ids := make([]primitive.ObjectID, 0, len(user.SavedPosts))
	wellFormed := make([]string, 0, len(user.SavedPosts))
	for _, raw := range user.SavedPosts {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			continue
		}
		ids = append(ids, id)
		wellFormed = append(wellFormed, raw)
	}

	posts, err := h.store.GetPostsByIDs(r.Context(), ids)
	if err != nil {
		serverError(w, h.log, "failed to load saved posts", err)
		return
	}
	exists := make(map[string]struct{}, len(posts))
	for _, p := range posts {
		exists[p.ID.Hex()] = struct{}{}
	}

	cleaned := make([]string, 0, len(wellFormed))
	for _, raw := range wellFormed {
		if _, ok := exists[raw]; ok {
			cleaned = append(cleaned, raw)
		}
	}

	if len(cleaned) != len(user.SavedPosts) {
		if err := h.store.SetSavedPosts(r.Context(), user.ID, cleaned); err != nil {
			// The cleaned view is still correct; try again next read.
			h.log.WithError(err).Warn("failed to rewrite saved posts")
		}
	}

	respondJSON(w, http.StatusOK, cleaned)
}

type saveRequest struct {
	PostID string `json:"postId"`
}

type saveResponse struct {
	Saved   bool   `json:"saved"`
	Message string `json:"message"`
}

// Save toggles the post on the caller's saved list. The add side is an
// add-if-absent set operation, so a doubled submission cannot produce a
// duplicate entry.
func (h *UsersHandler) Save(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.store, h.log)
	if !ok {
		return
	}

	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.PostID == "" {
		respondError(w, http.StatusBadRequest, "postId is required")
		return
	}

	saved := false
	for _, p := range user.SavedPosts {
		if p == req.PostID {
			saved = true
			break
		}
	}

	var err error
	if saved {
		err = h.store.RemoveSavedPost(r.Context(), user.ID, req.PostID)
	} else {
		err = h.store.AddSavedPost(r.Context(), user.ID, req.PostID)
	}
	if err != nil {
		serverError(w, h.log, "failed to toggle saved post", err)
		return
	}

	if saved {
		respondJSON(w, http.StatusOK, saveResponse{Saved: false, Message: "post unsaved"})
		return
	}
	respondJSON(w, http.StatusOK, saveResponse{Saved: true, Message: "post saved"})
}
