package keystore

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	apperrors "github.com/aegis-run/aegis/internal/errors"
)

// DefaultLockTimeout matches the framework default; overridable per-open
// call. See internal/config.New, which is where the KEYSTORE_LOCK_TIMEOUT
// environment variable is actually read and turned into that per-open
// value.
const DefaultLockTimeout = 30 * time.Second

func acquireLock(path string, timeout time.Duration) (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	fl := flock.New(path + ".lock")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		return nil, &apperrors.LockTimeoutError{Path: path, Timeout: timeout.String()}
	}
	return fl, nil
}
