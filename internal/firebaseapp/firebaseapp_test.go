package firebaseapp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAppRejectsBadCredentials(t *testing.T) {
	_, err := newApp(context.Background(), Options{CredentialsJSONBase64: "%%%not-base64"})
	assert.ErrorContains(t, err, "base64")

	_, err = newApp(context.Background(), Options{CredentialsFile: "/does/not/exist.json"})
	assert.Error(t, err)
}
