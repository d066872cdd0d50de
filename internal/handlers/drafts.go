package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/inkwell-blog/inkwell-api/internal/auth"
	"github.com/inkwell-blog/inkwell-api/internal/db"
	"github.com/inkwell-blog/inkwell-api/internal/models"
)

// Drafts are admin-only and strictly owner-scoped: list, get, update
// and delete all filter by the owning user, so one admin never sees
// another's autosaves.
type DraftsHandler struct {
	store DraftsStore
	roles auth.RoleResolver
	log   *logrus.Logger
}

func NewDraftsHandler(store DraftsStore, roles auth.RoleResolver, log *logrus.Logger) *DraftsHandler {
	return &DraftsHandler{store: store, roles: roles, log: log}
}

type draftRequest struct {
	Title    string   `json:"title"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
	Desc     string   `json:"desc"`
	Content  string   `json:"content"`
	Img      string   `json:"img"`
}

func (h *DraftsHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := requireAdmin(w, r, h.store, h.roles, h.log, "only admins can access drafts")
	if !ok {
		return
	}
	drafts, err := h.store.ListDraftsByUser(r.Context(), user.ID)
	if err != nil {
		serverError(w, h.log, "failed to load drafts", err)
		return
	}
	respondJSON(w, http.StatusOK, drafts)
}

func (h *DraftsHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := requireAdmin(w, r, h.store, h.roles, h.log, "only admins can access drafts")
	if !ok {
		return
	}
	id, ok := parseObjectID(w, chi.URLParam(r, "id"), "draft id")
	if !ok {
		return
	}
	draft, err := h.store.GetDraftOwned(r.Context(), id, user.ID)
	if err != nil {
		serverError(w, h.log, "failed to load draft", err)
		return
	}
	if draft == nil {
		respondError(w, http.StatusNotFound, "draft not found")
		return
	}
	respondJSON(w, http.StatusOK, draft)
}

func (h *DraftsHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := requireAdmin(w, r, h.store, h.roles, h.log, "only admins can create drafts")
	if !ok {
		return
	}
	var req draftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Category == "" {
		req.Category = models.DefaultCategory
	}
	draft, err := h.store.CreateDraft(r.Context(), models.Draft{
		User:     user.ID,
		Title:    req.Title,
		Category: req.Category,
		Tags:     req.Tags,
		Desc:     req.Desc,
		Content:  req.Content,
		Img:      req.Img,
	})
	if err != nil {
		serverError(w, h.log, "failed to create draft", err)
		return
	}
	respondJSON(w, http.StatusCreated, draft)
}

func (h *DraftsHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := requireAdmin(w, r, h.store, h.roles, h.log, "only admins can update drafts")
	if !ok {
		return
	}
	id, ok := parseObjectID(w, chi.URLParam(r, "id"), "draft id")
	if !ok {
		return
	}
	var req draftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Category == "" {
		req.Category = models.DefaultCategory
	}
	draft, err := h.store.UpdateDraftOwned(r.Context(), id, user.ID, db.DraftUpdate{
		Title:    req.Title,
		Category: req.Category,
		Tags:     req.Tags,
		Desc:     req.Desc,
		Content:  req.Content,
		Img:      req.Img,
	})
	if err != nil {
		serverError(w, h.log, "failed to update draft", err)
		return
	}
	if draft == nil {
		respondError(w, http.StatusNotFound, "draft not found")
		return
	}
	respondJSON(w, http.StatusOK, draft)
}

func (h *DraftsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := requireAdmin(w, r, h.store, h.roles, h.log, "only admins can delete drafts")
	if !ok {
		return
	}
	id, ok := parseObjectID(w, chi.URLParam(r, "id"), "draft id")
	if !ok {
		return
	}
	deleted, err := h.store.DeleteDraftOwned(r.Context(), id, user.ID)
	if err != nil {
		serverError(w, h.log, "failed to delete draft", err)
		return
	}
	if deleted == nil {
		respondError(w, http.StatusNotFound, "draft not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "draft deleted"})
}
