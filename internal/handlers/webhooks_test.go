package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/inkwell-blog/inkwell-api/internal/models"
)

type stubVerifier struct {
	err error
}

func (s stubVerifier) Verify([]byte, http.Header) error { return s.err }

func webhookPost(t *testing.T, h *WebhooksHandler, payload string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks", jsonBody(payload))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func newWebhooksHandler(store WebhooksStore, verr error) *WebhooksHandler {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewWebhooksHandler(store, stubVerifier{err: verr}, log)
}

const userCreatedPayload = `{
	"type": "user.created",
	"data": {
		"id": "ext-42",
		"username": "dana",
		"email_addresses": [{"email_address": "dana@example.com"}],
		"image_url": "https://img.example.com/dana.png"
	}
}`

func TestWebhookRejectsBadSignature(t *testing.T) {
	store := newFakeStore()
	h := newWebhooksHandler(store, errors.New("signature mismatch"))

	rec := webhookPost(t, h, userCreatedPayload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.users)
}

func TestWebhookUserCreated(t *testing.T) {
	store := newFakeStore()
	h := newWebhooksHandler(store, nil)

	rec := webhookPost(t, h, userCreatedPayload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	user, err := store.GetUserByExternalID(context.Background(), "ext-42")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "dana", user.Username)
	assert.Equal(t, "dana@example.com", user.Email)
	assert.Equal(t, "https://img.example.com/dana.png", user.Img)

	// Replayed delivery is acknowledged without a second insert.
	rec = webhookPost(t, h, userCreatedPayload)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, store.users, 1)
}

func TestWebhookUserCreatedDefaults(t *testing.T) {
	store := newFakeStore()
	h := newWebhooksHandler(store, nil)

	// No username: the email stands in. Legacy image field honored.
	rec := webhookPost(t, h, `{
		"type": "user.created",
		"data": {
			"id": "ext-7",
			"email_addresses": [{"email_address": "eve@example.com"}],
			"profile_image_url": "https://img.example.com/eve.png"
		}
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	user, err := store.GetUserByExternalID(context.Background(), "ext-7")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "eve@example.com", user.Username)
	assert.Equal(t, "https://img.example.com/eve.png", user.Img)
}

func TestWebhookUserCreatedWithoutEmail(t *testing.T) {
	store := newFakeStore()
	h := newWebhooksHandler(store, nil)

	rec := webhookPost(t, h, `{"type":"user.created","data":{"id":"ext-9"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookUserDeletedCascade(t *testing.T) {
	store := newFakeStore()
	h := newWebhooksHandler(store, nil)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, models.User{
		ExternalID: "ext-42", Username: "dana", Email: "dana@example.com",
	})
	require.NoError(t, err)
	_, err = store.CreatePost(ctx, models.Post{User: user.ID, Title: "T", Slug: "t", Content: "c"})
	require.NoError(t, err)
	_, err = store.CreateComment(ctx, models.Comment{User: user.ID, Desc: "hi"})
	require.NoError(t, err)
	_, err = store.CreateDraft(ctx, models.Draft{User: user.ID, Title: "wip"})
	require.NoError(t, err)

	payload := `{"type":"user.deleted","data":{"id":"ext-42"}}`
	rec := webhookPost(t, h, payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Empty(t, store.users)
	assert.Empty(t, store.posts)
	assert.Empty(t, store.comments)
	assert.Empty(t, store.drafts)

	// Deleting an already-deleted account is a no-op acknowledgement.
	rec = webhookPost(t, h, payload)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// unreliableStore fails a bounded number of post deletions, simulating
// a store outage mid-cascade.
type unreliableStore struct {
	*fakeStore
	postDeleteFailures int
}

func (s *unreliableStore) DeletePostsByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	if s.postDeleteFailures > 0 {
		s.postDeleteFailures--
		return 0, errors.New("connection reset")
	}
	return s.fakeStore.DeletePostsByUser(ctx, userID)
}

func TestWebhookUserDeletedPartialFailureIsRetryable(t *testing.T) {
	store := &unreliableStore{fakeStore: newFakeStore(), postDeleteFailures: 1}
	h := newWebhooksHandler(store, nil)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, models.User{
		ExternalID: "ext-42", Username: "dana", Email: "dana@example.com",
	})
	require.NoError(t, err)
	_, err = store.CreatePost(ctx, models.Post{User: user.ID, Title: "T", Slug: "t", Content: "c"})
	require.NoError(t, err)
	_, err = store.CreateComment(ctx, models.Comment{User: user.ID, Desc: "hi"})
	require.NoError(t, err)

	payload := `{"type":"user.deleted","data":{"id":"ext-42"}}`

	// The failed delivery must leave the user record in place so the
	// provider's retry re-runs the whole cascade.
	rec := webhookPost(t, h, payload)
	require.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())
	assert.Len(t, store.users, 1)
	assert.Len(t, store.posts, 1)

	rec = webhookPost(t, h, payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, store.users)
	assert.Empty(t, store.posts)
	assert.Empty(t, store.comments)
}

func TestWebhookIgnoresUnknownEvents(t *testing.T) {
	store := newFakeStore()
	h := newWebhooksHandler(store, nil)

	rec := webhookPost(t, h, `{"type":"session.created","data":{"id":"sess-1"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	ack := decode[map[string]string](t, rec)
	assert.Equal(t, "webhook received", ack["message"])
}
