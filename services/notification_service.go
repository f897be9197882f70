package services

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"gymBuddyFunctions/internal/metrics"
	"gymBuddyFunctions/internal/store"
	"gymBuddyFunctions/internal/types/notification"
)

// NotificationService creates notifications outside of a transaction, after the write
// they describe has committed. Failures are logged and counted but never undo that write.
type NotificationService struct {
	store store.Store
}

func NewNotificationService(st store.Store) *NotificationService {
	return &NotificationService{store: st}
}

// Deliver creates every notification for uid and returns the joined failures.
func (s *NotificationService) Deliver(ctx context.Context, uid string, notifs ...*notification.Notification) error {
	var errs []error
	for _, n := range notifs {
		if n == nil {
			continue
		}
		if err := s.store.AddNotification(ctx, uid, n); err != nil {
			log.WithFields(log.Fields{
				"userId":         uid,
				"notificationId": n.ID,
				"type":           n.Type,
				"error":          err,
			}).Error("Failed to create notification")
			metrics.RecordNotificationFailure(string(n.Type))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
