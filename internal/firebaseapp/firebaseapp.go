// Package firebaseapp owns the process-wide Firebase Admin app.
package firebaseapp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"sync"

	firebase "firebase.google.com/go/v4"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

type Options struct {
	ProjectID     string
	StorageBucket string
	// CredentialsJSONBase64 is a base64 encoded service account key.
	CredentialsJSONBase64 string
	CredentialsFile       string
}

var (
	once    sync.Once
	app     *firebase.App
	initErr error
)

var ErrNotInitialized = errors.New("firebase app not initialized")

// Init creates the app on first call. Later calls return the same app and ignore opts.
// Without explicit credentials the application default credentials are used.
func Init(ctx context.Context, opts Options) (*firebase.App, error) {
	once.Do(func() {
		app, initErr = newApp(ctx, opts)
	})
	return app, initErr
}

// App returns the app created by Init.
func App() (*firebase.App, error) {
	if app == nil && initErr == nil {
		return nil, ErrNotInitialized
	}
	return app, initErr
}

func newApp(ctx context.Context, opts Options) (*firebase.App, error) {
	var clientOpts []option.ClientOption

	switch {
	case opts.CredentialsJSONBase64 != "":
		decoded, err := base64.StdEncoding.DecodeString(opts.CredentialsJSONBase64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 firebase credentials: %w", err)
		}
		clientOpts = append(clientOpts, option.WithCredentialsJSON(decoded))
		log.Info("Firebase: initializing from FIREBASE_SERVICE_ACCOUNT_JSON")
	case opts.CredentialsFile != "":
		if _, err := os.Stat(opts.CredentialsFile); err != nil {
			return nil, fmt.Errorf("firebase credentials file %s: %w", opts.CredentialsFile, err)
		}
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
		log.WithField("file", opts.CredentialsFile).Info("Firebase: initializing from credentials file")
	default:
		log.Info("Firebase: initializing with application default credentials")
	}

	cfg := &firebase.Config{
		ProjectID:     opts.ProjectID,
		StorageBucket: opts.StorageBucket,
	}
	a, err := firebase.NewApp(ctx, cfg, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	return a, nil
}
