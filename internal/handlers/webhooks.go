package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/inkwell-blog/inkwell-api/internal/db"
	"github.com/inkwell-blog/inkwell-api/internal/models"
)

// WebhookVerifier checks the identity provider's signature over the raw
// request body. *svix.Webhook satisfies it; tests substitute a stub.
type WebhookVerifier interface {
	Verify(payload []byte, headers http.Header) error
}

type WebhooksHandler struct {
	store    WebhooksStore
	verifier WebhookVerifier
	log      *logrus.Logger
}

func NewWebhooksHandler(store WebhooksStore, verifier WebhookVerifier, log *logrus.Logger) *WebhooksHandler {
	return &WebhooksHandler{store: store, verifier: verifier, log: log}
}

type lifecycleEvent struct {
	Type string `json:"type"`
	Data struct {
		ID             string `json:"id"`
		Username       string `json:"username"`
		EmailAddresses []struct {
			EmailAddress string `json:"email_address"`
		} `json:"email_addresses"`
		ImageURL        string `json:"image_url"`
		ProfileImageURL string `json:"profile_image_url"`
	} `json:"data"`
}

// Handle processes identity-provider account lifecycle events.
// user.created inserts the local user record; user.deleted runs the
// ordered cleanup cascade. Providers replay undelivered webhooks, so
// both paths are idempotent.
func (h *WebhooksHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if err := h.verifier.Verify(payload, r.Header); err != nil {
		respondError(w, http.StatusBadRequest, "webhook verification failed")
		return
	}

	var evt lifecycleEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		respondError(w, http.StatusBadRequest, "invalid event payload")
		return
	}

	switch evt.Type {
	case "user.created":
		if !h.createUser(w, r, evt) {
			return
		}
	case "user.deleted":
		if !h.deleteUser(w, r, evt) {
			return
		}
	default:
		h.log.WithField("type", evt.Type).Debug("ignoring webhook event")
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "webhook received"})
}

func (h *WebhooksHandler) createUser(w http.ResponseWriter, r *http.Request, evt lifecycleEvent) bool {
	if len(evt.Data.EmailAddresses) == 0 {
		respondError(w, http.StatusBadRequest, "event has no email address")
		return false
	}
	email := evt.Data.EmailAddresses[0].EmailAddress
	username := evt.Data.Username
	if username == "" {
		username = email
	}
	img := evt.Data.ImageURL
	if img == "" {
		img = evt.Data.ProfileImageURL
	}

	user, err := h.store.CreateUser(r.Context(), models.User{
		ExternalID: evt.Data.ID,
		Username:   username,
		Email:      email,
		Img:        img,
	})
	if err != nil {
		if db.IsDuplicateKey(err) {
			h.log.WithField("externalId", evt.Data.ID).Info("user already exists, webhook replay")
			return true
		}
		serverError(w, h.log, "failed to create user", err)
		return false
	}
	h.log.WithFields(logrus.Fields{"externalId": user.ExternalID, "email": user.Email}).
		Info("user created from webhook")
	return true
}

func (h *WebhooksHandler) deleteUser(w http.ResponseWriter, r *http.Request, evt lifecycleEvent) bool {
	user, err := h.store.GetUserByExternalID(r.Context(), evt.Data.ID)
	if err != nil {
		serverError(w, h.log, "failed to load user", err)
		return false
	}
	if user == nil {
		// Already gone; replayed delivery.
		return true
	}

	// Content first, the user record last. The record doubles as the
	// replay marker: a failure at any step answers 500 with the record
	// still in place, so the provider's retry re-runs the cascade from
	// the top. Each step is delete-if-exists and safe to repeat.
	posts, err := h.store.DeletePostsByUser(r.Context(), user.ID)
	if err != nil {
		serverError(w, h.log, "failed to delete user posts", err)
		return false
	}
	comments, err := h.store.DeleteCommentsByUser(r.Context(), user.ID)
	if err != nil {
		serverError(w, h.log, "failed to delete user comments", err)
		return false
	}
	drafts, err := h.store.DeleteDraftsByUser(r.Context(), user.ID)
	if err != nil {
		serverError(w, h.log, "failed to delete user drafts", err)
		return false
	}
	if _, err := h.store.DeleteUserByExternalID(r.Context(), evt.Data.ID); err != nil {
		serverError(w, h.log, "failed to delete user", err)
		return false
	}

	h.log.WithFields(logrus.Fields{
		"externalId": evt.Data.ID,
		"posts":      posts,
		"comments":   comments,
		"drafts":     drafts,
	}).Info("user deleted from webhook")
	return true
}
