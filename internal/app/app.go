// Package app wires configuration, storage and services into a runnable process.
package app

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	log "github.com/sirupsen/logrus"

	"gymBuddyFunctions/internal/blob"
	"gymBuddyFunctions/internal/config"
	"gymBuddyFunctions/internal/firebaseapp"
	"gymBuddyFunctions/internal/store"
	firestorestore "gymBuddyFunctions/internal/store/firestore"
	"gymBuddyFunctions/internal/store/memory"
	"gymBuddyFunctions/internal/store/postgres"
	"gymBuddyFunctions/services"
)

type App struct {
	Config *config.Config
	Store  store.Store
	Blobs  blob.Store

	Users         *services.UserService
	Workouts      *services.WorkoutService
	Claims        *services.RecordClaimService
	Social        *services.SocialService
	Media         *services.MediaService
	Notifications *services.NotificationService
	Router        *services.EventRouter
}

// New connects the configured backends and builds the services on top of them.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	var fb *firebase.App
	if cfg.UsesFirebase() {
		var err error
		fb, err = firebaseapp.Init(ctx, firebaseapp.Options{
			ProjectID:             cfg.FirebaseProjectID,
			StorageBucket:         cfg.FirebaseStorageBucket,
			CredentialsJSONBase64: cfg.FirebaseServiceAccountJSON,
			CredentialsFile:       cfg.FirebaseCredentialsFile,
		})
		if err != nil {
			return nil, err
		}
	}

	st, err := openStore(ctx, cfg, fb)
	if err != nil {
		return nil, err
	}

	blobs, err := openBlobs(ctx, cfg, fb)
	if err != nil {
		st.Close()
		return nil, err
	}

	return Assemble(cfg, st, blobs), nil
}

// Assemble builds the services over already opened backends.
func Assemble(cfg *config.Config, st store.Store, blobs blob.Store) *App {
	a := &App{Config: cfg, Store: st, Blobs: blobs}
	a.Notifications = services.NewNotificationService(st)
	a.Users = services.NewUserService(st)
	a.Workouts = services.NewWorkoutService(st)
	a.Claims = services.NewRecordClaimService(st, a.Notifications).
		WithSweepLimits(cfg.SweepPageSize, cfg.SweepConcurrency)
	a.Social = services.NewSocialService(st)
	a.Media = services.NewMediaService(blobs)
	a.Router = services.NewEventRouter(a.Users, a.Workouts, a.Claims, a.Social, a.Media)
	return a
}

func openStore(ctx context.Context, cfg *config.Config, fb *firebase.App) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendFirestore:
		st, err := firestorestore.NewFromApp(ctx, fb)
		if err != nil {
			return nil, err
		}
		log.WithField("project", cfg.FirebaseProjectID).Info("Using Firestore store")
		return st, nil

	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		st := postgres.New(pool)
		if err := st.EnsureSchema(ctx); err != nil {
			st.Close()
			return nil, err
		}
		log.Info("Using Postgres store")
		return st, nil

	case config.BackendMemory:
		log.Warn("Using in-memory store, data is lost on restart")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func openBlobs(ctx context.Context, cfg *config.Config, fb *firebase.App) (blob.Store, error) {
	if cfg.FirebaseStorageBucket == "" {
		log.Warn("FIREBASE_STORAGE_BUCKET not set, post media is not deleted from storage")
		return blob.NewMemoryStore(), nil
	}
	return blob.NewFirebaseStore(ctx, fb, cfg.FirebaseStorageBucket)
}

func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
