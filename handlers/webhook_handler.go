package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	log "github.com/sirupsen/logrus"
	svix "github.com/svix/svix-webhooks/go"

	"gymBuddyFunctions/internal/types/user"
	"gymBuddyFunctions/services"
)

const maxWebhookBytes = int64(65536)

type ProfileLifecycle interface {
	CreateProfile(ctx context.Context, req user.CreateProfileRequest) (services.Outcome, error)
	DeleteProfile(ctx context.Context, uid string) error
}

type clerkWebhookEvent struct {
	Type   string          `json:"type"`
	Object string          `json:"object"`
	Data   json.RawMessage `json:"data"`
}

type WebhookHandler struct {
	users    ProfileLifecycle
	verifier *svix.Webhook
}

// NewWebhookHandler verifies deliveries with the Clerk signing secret. An empty secret
// disables verification, which is only meant for local development.
func NewWebhookHandler(users ProfileLifecycle, signingSecret string) (*WebhookHandler, error) {
	h := &WebhookHandler{users: users}
	if signingSecret == "" {
		log.Warn("CLERK_WEBHOOK_SECRET not set, skipping signature verification")
		return h, nil
	}
	wh, err := svix.NewWebhook(signingSecret)
	if err != nil {
		return nil, fmt.Errorf("invalid clerk webhook secret: %w", err)
	}
	h.verifier = wh
	return h, nil
}

func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Error reading body")
		return
	}

	if h.verifier != nil {
		if err := h.verifier.Verify(body, r.Header); err != nil {
			log.WithError(err).Warn("Invalid webhook signature")
			respondWithError(w, http.StatusUnauthorized, "Invalid signature")
			return
		}
	}

	var evt clerkWebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		respondWithError(w, http.StatusBadRequest, "Error parsing webhook")
		return
	}

	var userData clerk.User
	if err := json.Unmarshal(evt.Data, &userData); err != nil || userData.ID == "" {
		respondWithError(w, http.StatusBadRequest, "Webhook without user data")
		return
	}

	log.WithFields(log.Fields{"type": evt.Type, "uid": userData.ID}).Info("Received webhook event")

	ctx := r.Context()
	switch evt.Type {
	case "user.created":
		if _, err := h.users.CreateProfile(ctx, createProfileRequest(&userData)); err != nil {
			log.WithError(err).Error("Error handling user.created")
			respondWithError(w, http.StatusInternalServerError, "Error processing webhook")
			return
		}

	case "user.deleted":
		if err := h.users.DeleteProfile(ctx, userData.ID); err != nil {
			log.WithError(err).Error("Error handling user.deleted")
			respondWithError(w, http.StatusInternalServerError, "Error processing webhook")
			return
		}

	default:
		log.WithField("type", evt.Type).Debug("Unhandled webhook event type")
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func createProfileRequest(u *clerk.User) user.CreateProfileRequest {
	req := user.CreateProfileRequest{
		UID:      u.ID,
		Email:    primaryEmail(u),
		PhotoURL: deref(u.ImageURL),
		Username: deref(u.Username),
	}
	req.DisplayName = strings.TrimSpace(deref(u.FirstName) + " " + deref(u.LastName))
	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}
	return req
}

func primaryEmail(u *clerk.User) string {
	for _, e := range u.EmailAddresses {
		if e != nil && u.PrimaryEmailAddressID != nil && e.ID == *u.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	if len(u.EmailAddresses) > 0 && u.EmailAddresses[0] != nil {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
