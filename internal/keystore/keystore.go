// Package keystore implements the encrypted, HMAC-authenticated key/value
// file format that backs every local secret store: a random salt, a
// Fernet-encrypted JSON map, and an outer HMAC tag, written atomically and
// guarded by a sibling .lock file for cross-process safety.
package keystore

import (
	"crypto/hmac"
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aegis-run/aegis/internal/audit"
	apperrors "github.com/aegis-run/aegis/internal/errors"
	"github.com/aegis-run/aegis/internal/secure"
)

// ErrInvalidToken is returned by the Fernet layer for any malformed or
// tampered token; Keystore wraps it as an IntegrityError.
var ErrInvalidToken = errors.New("invalid fernet token")

const (
	saltLen     = 16
	tagLen      = 32
	minFileSize = saltLen + tagLen // at least an empty cipher in between
	hmacFloor   = 10 * time.Millisecond
)

// Keystore is a handle onto one encrypted file. It is stateless between
// operations: every call re-reads, re-decrypts, mutates, and re-writes
// under the file lock. Concurrent handles across processes are safe;
// concurrent handles across goroutines in the same process must still
// serialise through the file lock since Keystore itself holds no mutex.
type Keystore struct {
	path        string
	password    *secure.Passphrase
	lockTimeout time.Duration
}

// Open returns a handle for path. The file need not exist yet; it is
// created lazily on first Set. lockTimeout of zero uses DefaultLockTimeout.
// password is sealed into a secure.Passphrase immediately so the plaintext
// only exists on the heap for the instant each load/save derives a key
// from it.
func Open(path, password string, lockTimeout time.Duration) *Keystore {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Keystore{path: path, password: secure.NewPassphrase(password), lockTimeout: lockTimeout}
}

// Close releases the sealed passphrase. After Close, further calls on this
// Keystore derive from an empty password and will fail HMAC verification.
func (ks *Keystore) Close() {
	ks.password.Destroy()
}

// deriveKeyFromPassphrase opens the sealed passphrase just long enough to
// run pbkdf2 over it.
func (ks *Keystore) deriveKeyFromPassphrase(salt []byte) ([]byte, error) {
	var key []byte
	err := ks.password.Use(func(plaintext string) error {
		key = deriveKey(plaintext, salt)
		return nil
	})
	return key, err
}

// Get returns the value for k, or "", false if absent.
func (ks *Keystore) Get(k string) (string, bool, error) {
	fl, err := acquireLock(ks.path, ks.lockTimeout)
	if err != nil {
		return "", false, err
	}
	defer fl.Unlock()

	data, err := ks.load()
	if err != nil {
		return "", false, err
	}
	v, ok := data[k]
	return v, ok, nil
}

// Set writes k=v, creating the file if it does not yet exist.
func (ks *Keystore) Set(k, v string) error {
	fl, err := acquireLock(ks.path, ks.lockTimeout)
	if err != nil {
		return err
	}
	defer fl.Unlock()

	data, err := ks.load()
	if err != nil {
		return err
	}
	data[k] = v
	return ks.save(data)
}

// Delete removes k if present; deleting an absent key is not an error.
func (ks *Keystore) Delete(k string) error {
	fl, err := acquireLock(ks.path, ks.lockTimeout)
	if err != nil {
		return err
	}
	defer fl.Unlock()

	data, err := ks.load()
	if err != nil {
		return err
	}
	delete(data, k)
	return ks.save(data)
}

// GetAll returns a copy of the entire map.
func (ks *Keystore) GetAll() (map[string]string, error) {
	fl, err := acquireLock(ks.path, ks.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer fl.Unlock()
	return ks.load()
}

// load reads, verifies, and decrypts the file without taking the lock
// itself — callers hold it already. A missing file is an empty map.
func (ks *Keystore) load() (map[string]string, error) {
	raw, err := os.ReadFile(ks.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, &apperrors.FileSystemError{Op: "read keystore", Err: err}
	}

	if len(raw) < minFileSize {
		return nil, &apperrors.IntegrityError{Path: ks.path, Reason: "file too short to be a valid keystore"}
	}

	salt := raw[:saltLen]
	cipherAndTag := raw[saltLen:]
	tag := cipherAndTag[len(cipherAndTag)-tagLen:]
	cipherBytes := cipherAndTag[:len(cipherAndTag)-tagLen]

	key, err := ks.deriveKeyFromPassphrase(salt)
	if err != nil {
		return nil, &apperrors.IntegrityError{Path: ks.path, Reason: "deriving key: " + err.Error()}
	}

	var verifyErr error
	audit.MinimumElapsedTime(hmacFloor, func() error {
		mac := hmac.New(sha256.New, key)
		mac.Write(salt)
		mac.Write(cipherBytes)
		expected := mac.Sum(nil)
		if !audit.ConstantTimeCompare(expected, tag) {
			verifyErr = &apperrors.IntegrityError{Path: ks.path, Reason: "hmac verification failed"}
		}
		return nil
	})
	if verifyErr != nil {
		return nil, verifyErr
	}

	fernetKey, err := NewFernetKey(key)
	if err != nil {
		return nil, &apperrors.IntegrityError{Path: ks.path, Reason: err.Error()}
	}
	plaintext, err := fernetKey.Decrypt(cipherBytes)
	if err != nil {
		return nil, &apperrors.IntegrityError{Path: ks.path, Reason: "fernet decryption failed"}
	}

	data := make(map[string]string)
	if len(plaintext) > 0 {
		if err := json.Unmarshal(plaintext, &data); err != nil {
			return nil, &apperrors.IntegrityError{Path: ks.path, Reason: "decrypted payload is not valid JSON"}
		}
	}
	return data, nil
}

// save encrypts data and atomically replaces the target file. It never
// leaves a half-written target: the write lands in a temp file in the same
// directory first, and only a successful rename touches the real path.
func (ks *Keystore) save(data map[string]string) error {
	salt := make([]byte, saltLen)
	if _, err := crand.Read(salt); err != nil {
		return &apperrors.FileSystemError{Op: "generate salt", Err: err}
	}

	key, err := ks.deriveKeyFromPassphrase(salt)
	if err != nil {
		return &apperrors.FileSystemError{Op: "derive key from passphrase", Err: err}
	}
	fernetKey, err := NewFernetKey(key)
	if err != nil {
		return &apperrors.FileSystemError{Op: "derive fernet key", Err: err}
	}

	plaintext, err := json.Marshal(data)
	if err != nil {
		return &apperrors.FileSystemError{Op: "marshal keystore contents", Err: err}
	}

	cipherBytes, err := fernetKey.Encrypt(plaintext, time.Now())
	if err != nil {
		return &apperrors.FileSystemError{Op: "encrypt keystore contents", Err: err}
	}

	mac := hmac.New(sha256.New, key)
	mac.Write(salt)
	mac.Write(cipherBytes)
	tag := mac.Sum(nil)

	out := make([]byte, 0, len(salt)+len(cipherBytes)+len(tag))
	out = append(out, salt...)
	out = append(out, cipherBytes...)
	out = append(out, tag...)

	return ks.atomicWrite(out)
}

func (ks *Keystore) atomicWrite(data []byte) error {
	dir := filepath.Dir(ks.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return &apperrors.FileSystemError{Op: "create keystore directory", Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".keystore-tmp-*")
	if err != nil {
		return &apperrors.FileSystemError{Op: "create temp keystore file", Err: err}
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if err := os.Chmod(tmpPath, 0o600); err != nil {
		cleanup()
		return &apperrors.FileSystemError{Op: "chmod temp keystore file", Err: err}
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return &apperrors.FileSystemError{Op: "write temp keystore file", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return &apperrors.FileSystemError{Op: "fsync temp keystore file", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &apperrors.FileSystemError{Op: "close temp keystore file", Err: err}
	}

	if err := os.Rename(tmpPath, ks.path); err != nil {
		os.Remove(tmpPath)
		return &apperrors.FileSystemError{Op: "rename temp keystore into place", Err: fmt.Errorf("%w", err)}
	}
	return nil
}
