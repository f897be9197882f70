package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"gymBuddyFunctions/internal/types/event"
	"gymBuddyFunctions/services"
)

const maxEventBytes = 1 << 20

type EventDispatcher interface {
	Dispatch(ctx context.Context, env event.Envelope) error
}

type ClaimSweeper interface {
	SweepExpiredClaims(ctx context.Context, now time.Time) (*services.SweepReport, error)
}

// EventHandler is the HTTP ingress for document and auth events, and the trigger for
// externally scheduled sweeps.
type EventHandler struct {
	dispatcher   EventDispatcher
	sweeper      ClaimSweeper
	sweepTimeout time.Duration
	now          func() time.Time
}

func NewEventHandler(dispatcher EventDispatcher, sweeper ClaimSweeper, sweepTimeout time.Duration) *EventHandler {
	return &EventHandler{
		dispatcher:   dispatcher,
		sweeper:      sweeper,
		sweepTimeout: sweepTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// HandleEvent answers 400 for envelopes that can never be processed and 500 for
// failures worth redelivering.
func (h *EventHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxEventBytes)

	var env event.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid event body")
		return
	}
	if env.Time.IsZero() {
		env.Time = h.now()
	}

	err := h.dispatcher.Dispatch(r.Context(), env)
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok", "id": env.ID})
	case errors.Is(err, event.ErrInvalidPayload):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		log.WithFields(log.Fields{"eventId": env.ID, "type": env.Type}).WithError(err).Error("Event processing failed")
		respondWithError(w, http.StatusInternalServerError, "Event processing failed")
	}
}

// SweepRecordClaims runs one deadline sweep.
func (h *EventHandler) SweepRecordClaims(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sweepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.sweepTimeout)
		defer cancel()
	}

	report, err := h.sweeper.SweepExpiredClaims(ctx, h.now())
	if err != nil {
		log.WithError(err).Error("Record claim sweep failed")
		respondWithError(w, http.StatusInternalServerError, "Sweep failed")
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}
