package audit

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogSecretOperationErrorRedactsPublicAndInternal(t *testing.T) {
	var public, internal, security bytes.Buffer
	h := New(&public, &internal, &security)

	id := h.LogSecretOperationError("get_secret", "User_Local_Store", "db.password", errors.New("hmac mismatch"))

	assert.NotEmpty(t, id)
	assert.Contains(t, public.String(), id)
	assert.NotContains(t, public.String(), "db.password")
	assert.NotContains(t, internal.String(), "db.password")
	assert.Contains(t, security.String(), "db.password")
	assert.Contains(t, security.String(), "hmac mismatch")
}

func TestLogFileOperationErrorHashesPath(t *testing.T) {
	var public, internal, security bytes.Buffer
	h := New(&public, &internal, &security)

	id := h.LogFileOperationError("atomic_write", "/home/user/.secrets/keystore", errors.New("disk full"))

	assert.NotContains(t, internal.String(), "/home/user/.secrets/keystore")
	assert.Contains(t, security.String(), "/home/user/.secrets/keystore")
	assert.Contains(t, public.String(), id)
}

func TestWrapReturnsSanitizedError(t *testing.T) {
	var public, internal, security bytes.Buffer
	h := New(&public, &internal, &security)

	err := h.Wrap("set_secret", "App_Local_Store", "api.key", func() error {
		return errors.New("underlying disk error with sensitive path /etc/shadow")
	})

	assert.Error(t, err)
	assert.False(t, strings.Contains(err.Error(), "/etc/shadow"))
	assert.Contains(t, err.Error(), "Error ID:")
}

func TestWrapPassesThroughSuccess(t *testing.T) {
	h := NewStderr()
	err := h.Wrap("get_secret", "User_Local_Store", "k", func() error { return nil })
	assert.NoError(t, err)
}
