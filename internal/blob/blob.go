// Package blob deletes media objects referenced by posts.
package blob

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
)

type Store interface {
	// Delete removes the object at path. Deleting a missing object is not an error.
	Delete(ctx context.Context, path string) error
}

type FirebaseStore struct {
	bucket *gcs.BucketHandle
}

// NewFirebaseStore opens bucketName, or the app's default bucket when empty.
func NewFirebaseStore(ctx context.Context, app *firebase.App, bucketName string) (*FirebaseStore, error) {
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting storage client: %w", err)
	}

	var bucket *gcs.BucketHandle
	if bucketName == "" {
		bucket, err = client.DefaultBucket()
	} else {
		bucket, err = client.Bucket(bucketName)
	}
	if err != nil {
		return nil, fmt.Errorf("error opening storage bucket: %w", err)
	}
	return &FirebaseStore{bucket: bucket}, nil
}

func (s *FirebaseStore) Delete(ctx context.Context, path string) error {
	err := s.bucket.Object(path).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// MemoryStore keeps objects in a map.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]struct{}
	fail    map[string]error
}

func NewMemoryStore(paths ...string) *MemoryStore {
	m := &MemoryStore{objects: make(map[string]struct{}), fail: make(map[string]error)}
	for _, p := range paths {
		m.objects[p] = struct{}{}
	}
	return m
}

func (m *MemoryStore) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.fail[path]; ok {
		return err
	}
	delete(m.objects, path)
	return nil
}

// FailOn makes Delete of path return err.
func (m *MemoryStore) FailOn(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[path] = err
}

func (m *MemoryStore) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[path]
	return ok
}
