package handlers

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	svix "github.com/svix/svix-webhooks/go"

	"gymBuddyFunctions/internal/types/user"
	"gymBuddyFunctions/services"
)

var testSigningSecret = "whsec_" + base64.StdEncoding.EncodeToString([]byte("gym-buddy-webhook-signing-key"))

const userCreatedBody = `{
	"type": "user.created",
	"object": "event",
	"data": {
		"id": "user_123",
		"object": "user",
		"username": "liftqueen",
		"first_name": "Ada",
		"last_name": "Lift",
		"image_url": "https://img.clerk.com/ada.png",
		"primary_email_address_id": "idn_2",
		"email_addresses": [
			{"id": "idn_1", "object": "email_address", "email_address": "old@example.com"},
			{"id": "idn_2", "object": "email_address", "email_address": "Ada@Example.com"}
		]
	}
}`

type stubLifecycle struct {
	created []user.CreateProfileRequest
	deleted []string
}

func (s *stubLifecycle) CreateProfile(_ context.Context, req user.CreateProfileRequest) (services.Outcome, error) {
	s.created = append(s.created, req)
	return services.Applied, nil
}

func (s *stubLifecycle) DeleteProfile(_ context.Context, uid string) error {
	s.deleted = append(s.deleted, uid)
	return nil
}

func signedRequest(t *testing.T, body string) *http.Request {
	t.Helper()
	wh, err := svix.NewWebhook(testSigningSecret)
	require.NoError(t, err)

	ts := time.Now()
	sig, err := wh.Sign("msg_1", ts, []byte(body))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", strings.NewReader(body))
	req.Header.Set("svix-id", "msg_1")
	req.Header.Set("svix-timestamp", strconv.FormatInt(ts.Unix(), 10))
	req.Header.Set("svix-signature", sig)
	return req
}

func TestClerkUserCreated(t *testing.T) {
	users := &stubLifecycle{}
	h, err := NewWebhookHandler(users, testSigningSecret)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.HandleClerkWebhook(rec, signedRequest(t, userCreatedBody))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, users.created, 1)
	assert.Equal(t, user.CreateProfileRequest{
		UID:         "user_123",
		Email:       "Ada@Example.com",
		DisplayName: "Ada Lift",
		PhotoURL:    "https://img.clerk.com/ada.png",
		Username:    "liftqueen",
	}, users.created[0])
}

func TestClerkUserDeleted(t *testing.T) {
	users := &stubLifecycle{}
	h, err := NewWebhookHandler(users, testSigningSecret)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.HandleClerkWebhook(rec, signedRequest(t, `{"type":"user.deleted","data":{"id":"user_123","object":"user","deleted":true}}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"user_123"}, users.deleted)
}

func TestClerkWebhookRejectsBadSignature(t *testing.T) {
	users := &stubLifecycle{}
	h, err := NewWebhookHandler(users, testSigningSecret)
	require.NoError(t, err)

	req := signedRequest(t, userCreatedBody)
	req.Header.Set("svix-signature", "v1,"+base64.StdEncoding.EncodeToString([]byte("forged")))
	rec := httptest.NewRecorder()
	h.HandleClerkWebhook(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, users.created)
}

func TestClerkWebhookWithoutSecret(t *testing.T) {
	users := &stubLifecycle{}
	h, err := NewWebhookHandler(users, "")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.HandleClerkWebhook(rec, httptest.NewRequest(http.MethodPost, "/webhooks/clerk", strings.NewReader(`{"type":"session.created","data":{"id":"sess_1"}}`)))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleClerkWebhook(rec, httptest.NewRequest(http.MethodPost, "/webhooks/clerk", strings.NewReader(`{"type":"user.created","data":{}}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, users.created)
}
