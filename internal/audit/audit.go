// Package audit implements the three-sink correlated error trail: a public
// sink safe for user display, an internal sink with non-sensitive
// diagnostic detail, and a security sink with full detail for incident
// investigation. Every entry across the three sinks for one failure shares
// an 8-byte hex correlation id.
package audit

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"os/user"
)

// Handler owns the three log sinks and mints correlation ids.
type Handler struct {
	public   *log.Logger
	internal *log.Logger
	security *log.Logger
}

// New builds a Handler writing each sink to the given writer. Passing the
// same writer for all three is valid for development; production
// deployments should route security to a restricted-permission file.
func New(publicW, internalW, securityW io.Writer) *Handler {
	flags := log.LstdFlags | log.LUTC
	return &Handler{
		public:   log.New(publicW, "PUBLIC   ", flags),
		internal: log.New(internalW, "INTERNAL ", flags),
		security: log.New(securityW, "SECURITY ", flags),
	}
}

// NewStderr is a convenience constructor writing all three sinks to
// stderr, appropriate for a development or sample deployment.
func NewStderr() *Handler {
	return New(os.Stderr, os.Stderr, os.Stderr)
}

func newCorrelationID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is effectively unrecoverable, but the audit
		// trail itself must never panic a caller's operation.
		return "00000000"
	}
	return hex.EncodeToString(buf)
}

func keyHash(key string) string {
	if key == "" {
		return "unknown"
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:16]
}

// LogSecretOperationError records a failed secret-store operation across
// all three sinks and returns the correlation id.
func (h *Handler) LogSecretOperationError(operation, storeName, key string, err error) string {
	id := newCorrelationID()

	if key != "" {
		h.public.Printf("secret operation %q failed (Error ID: %s)", operation, id)
	} else {
		h.public.Printf("secret store operation failed (Error ID: %s)", id)
	}

	h.internal.Printf("ErrorID: %s | Operation: %s | Store: %s | KeyHash: %s | ErrorType: %T",
		id, operation, orUnknown(storeName), keyHash(key), err)

	h.security.Printf("ErrorID: %s | Operation: %s | Store: %s | Key: %s | Error: %v | PID: %d | User: %s",
		id, operation, orUnknown(storeName), key, err, os.Getpid(), currentUser())

	return id
}

// LogAuthenticationError records a failed authentication attempt against a
// cloud store or other external target.
func (h *Handler) LogAuthenticationError(operation, target string, err error) string {
	id := newCorrelationID()

	h.public.Printf("authentication failed for %s (Error ID: %s)", operation, id)
	h.internal.Printf("ErrorID: %s | Operation: %s | Target: %s | ErrorType: %T", id, operation, target, err)
	h.security.Printf("ErrorID: %s | Operation: %s | Target: %s | Error: %v | PID: %d | User: %s",
		id, operation, target, err, os.Getpid(), currentUser())

	return id
}

// LogFileOperationError records a failed filesystem operation without
// leaking the literal path to the public/internal sinks.
func (h *Handler) LogFileOperationError(operation, filePath string, err error) string {
	id := newCorrelationID()

	h.public.Printf("file operation %q failed (Error ID: %s)", operation, id)
	h.internal.Printf("ErrorID: %s | Operation: %s | PathHash: %s | ErrorType: %T", id, operation, keyHash(filePath), err)
	h.security.Printf("ErrorID: %s | Operation: %s | FilePath: %s | Error: %v | PID: %d | User: %s",
		id, operation, filePath, err, os.Getpid(), currentUser())

	return id
}

// Wrap runs fn and, on error, logs it as a secret operation error and
// returns a sanitized error carrying only the operation name and the
// correlation id — the Go
// equivalent of the @secure_error_handling decorator.
func (h *Handler) Wrap(operation, storeName, key string, fn func() error) error {
	if err := fn(); err != nil {
		id := h.LogSecretOperationError(operation, storeName, key, err)
		return fmt.Errorf("%s failed (Error ID: %s)", operation, id)
	}
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}
