package app

import (
	"context"
	"net/http"
	"time"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"gymBuddyFunctions/handlers"
	"gymBuddyFunctions/middleware"
)

// Handler builds the HTTP surface: event ingress, sweep trigger, Clerk webhook, health
// and metrics.
func (a *App) Handler(limiter *middleware.RateLimiter) (http.Handler, error) {
	eventHandler := handlers.NewEventHandler(a.Router, a.Claims, a.Config.SweepTimeout)
	webhookHandler, err := handlers.NewWebhookHandler(a.Users, a.Config.ClerkWebhookSecret)
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter()
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(a.Config.MetricsUser, a.Config.MetricsPass)(promhttp.Handler())).Methods("GET")
	r.HandleFunc("/health", a.health).Methods("GET")

	r.Handle("/webhooks/clerk", limiter.Middleware(http.HandlerFunc(webhookHandler.HandleClerkWebhook))).Methods("POST")

	withSecret := middleware.EventSecretMiddleware(a.Config.EventsSecret)
	r.Handle("/events", withSecret(http.HandlerFunc(eventHandler.HandleEvent))).Methods("POST")
	r.Handle("/tasks/sweep-record-claims", withSecret(http.HandlerFunc(eventHandler.SweepRecordClaims))).Methods("POST")

	recovery := gorillaHandlers.RecoveryHandler(
		gorillaHandlers.RecoveryLogger(log.StandardLogger()),
		gorillaHandlers.PrintRecoveryStack(true),
	)
	return recovery(r), nil
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if _, err := a.Store.GetProfile(ctx, "__health__"); err != nil && !isNotFound(err) {
		log.WithError(err).Warn("Health check failed")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status": "unhealthy", "error": "store unavailable"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "healthy", "service": "gym-buddy-functions"}`))
}
