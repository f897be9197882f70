package services

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"gymBuddyFunctions/internal/blob"
	"gymBuddyFunctions/internal/types/event"
)

// MediaService removes the stored media of deleted posts.
type MediaService struct {
	blobs blob.Store
}

func NewMediaService(blobs blob.Store) *MediaService {
	return &MediaService{blobs: blobs}
}

// HandlePostDeleted deletes every media object of the post. Each object is attempted
// even when an earlier one fails; deleting is idempotent so a redelivery retries only
// what is left.
func (s *MediaService) HandlePostDeleted(ctx context.Context, evt *event.PostDeleted) (Outcome, error) {
	if len(evt.Post.MediaPaths) == 0 {
		return Skipped, nil
	}

	var errs []error
	for _, path := range evt.Post.MediaPaths {
		if path == "" {
			continue
		}
		if err := s.blobs.Delete(ctx, path); err != nil {
			log.WithFields(log.Fields{"postId": evt.PostID, "path": path, "error": err}).Error("Failed to delete post media")
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return "", fmt.Errorf("failed to delete media of post %s: %w", evt.PostID, err)
	}

	log.WithFields(log.Fields{"postId": evt.PostID, "objects": len(evt.Post.MediaPaths)}).Info("Post media deleted")
	return Applied, nil
}
