// Package localstore wraps the keystore engine with version selection,
// v2-to-v3 migration, index maintenance, and the secrets.yaml auto-import
// flow. A Store owns exactly one keystore file at a time.
package localstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aegis-run/aegis/internal/audit"
	apperrors "github.com/aegis-run/aegis/internal/errors"
	"github.com/aegis-run/aegis/internal/fingerprint"
	"github.com/aegis-run/aegis/internal/keystore"
	"github.com/aegis-run/aegis/internal/logging"
	"github.com/aegis-run/aegis/internal/secvalidate"
)

// Store is one local secret store backed by a single keystore file
// (User_Local_Store or App_Local_Store, in the framework's terms).
type Store struct {
	Name     string
	Priority int

	rootPath    string
	appName     string
	ks          *keystore.Keystore
	path        string
	version     string
	available   bool
	readOnly    bool
	lockTimeout time.Duration

	log   *logging.Logger
	audit *audit.Handler
}

// Open selects the v2 or v3 keystore under rootPath per the decision
// table, migrating v2 to v3 when only v2 exists, then runs the
// writability probe and the secrets.yaml auto-import. lockTimeout bounds
// how long the underlying keystore waits for its file lock; zero uses
// keystore.DefaultLockTimeout.
func Open(name string, priority int, rootPath, appName, customPassword string, lockTimeout time.Duration, log *logging.Logger, aud *audit.Handler) (*Store, error) {
	s := &Store{
		Name:        name,
		Priority:    priority,
		rootPath:    rootPath,
		appName:     appName,
		lockTimeout: lockTimeout,
		log:         log,
		audit:       aud,
	}

	deprecatedPath := filepath.Join(rootPath, appName+".keystore")
	if _, err := os.Stat(deprecatedPath); err == nil {
		log.Warn("old keystore file %q is no longer supported", deprecatedPath)
	}

	v2Path := filepath.Join(rootPath, appName+".v2keystore")
	v3Path := filepath.Join(rootPath, appName+".v3keystore")

	path, password, version, err := s.selectKeystore(v2Path, v3Path, customPassword)
	if err != nil {
		id := aud.LogSecretOperationError("keystore_initialization", name, "", err)
		return nil, fmt.Errorf("failed to open secrets store (Error ID: %s)", id)
	}

	s.path = path
	s.version = version
	s.ks = keystore.Open(path, password, s.lockTimeout)
	s.available = true
	s.readOnly = !s.isWriteable()

	log.Info("successfully opened %s secrets store: %s", version, path)

	s.checkAutoImport(rootPath)

	return s, nil
}

// selectKeystore implements the decision table: v3 present wins outright,
// v2-only triggers migration, neither present creates a fresh v3 file.
func (s *Store) selectKeystore(v2Path, v3Path, customPassword string) (string, string, string, error) {
	gen := &fingerprint.Generator{AppName: s.appName}
	containerMode := isContainerMode()

	_, v3Err := os.Stat(v3Path)
	v3Exists := v3Err == nil
	_, v2Err := os.Stat(v2Path)
	v2Exists := v2Err == nil

	if v3Exists {
		pw, err := gen.DerivePassword(v3Path, customPassword, containerMode)
		if err != nil {
			return "", "", "", err
		}
		return v3Path, pw, "v3", nil
	}

	if v2Exists {
		return s.migrateV2ToV3(v2Path, v3Path, customPassword)
	}

	pw, err := gen.DerivePassword(v3Path, customPassword, containerMode)
	if err != nil {
		return "", "", "", err
	}
	return v3Path, pw, "v3", nil
}

func (s *Store) migrateV2ToV3(v2Path, v3Path, customPassword string) (string, string, string, error) {
	s.log.Info("found v2 keystore, performing migration to v3: %s", v2Path)

	v2Password, err := fingerprint.DeriveLegacyV2Password(v2Path)
	if err != nil {
		s.log.Error("failed to migrate v2 keystore: %v", err)
		return s.fallbackToV2(v2Path)
	}
	v2Store := keystore.Open(v2Path, v2Password, s.lockTimeout)
	defer v2Store.Close()

	gen := &fingerprint.Generator{AppName: s.appName}
	v3Password, err := gen.DerivePassword(v3Path, customPassword, isContainerMode())
	if err != nil {
		s.log.Error("failed to migrate v2 keystore: %v", err)
		return s.fallbackToV2(v2Path)
	}
	v3Store := keystore.Open(v3Path, v3Password, s.lockTimeout)
	defer v3Store.Close()

	v2Secrets, err := v2Store.GetAll()
	if err != nil {
		s.log.Error("failed to migrate v2 keystore: %v", err)
		return s.fallbackToV2(v2Path)
	}

	for key, value := range v2Secrets {
		if err := secvalidate.ValidateSecretKey(key); err != nil {
			s.log.Warn("skipping invalid secret key during migration: %s", key)
			continue
		}
		if value == "" {
			continue
		}
		if err := v3Store.Set(key, value); err != nil {
			s.log.Warn("failed to copy key %q during migration: %v", key, err)
		}
	}

	backupPath := v2Path + "_old"
	if err := os.Rename(v2Path, backupPath); err != nil {
		s.log.Error("failed to migrate v2 keystore: %v", err)
		return s.fallbackToV2(v2Path)
	}

	s.log.Info("successfully migrated v2 keystore to v3, backup saved as %s", backupPath)
	return v3Path, v3Password, "v3", nil
}

func (s *Store) fallbackToV2(v2Path string) (string, string, string, error) {
	s.log.Info("falling back to v2 keystore, migration will retry next time")
	v2Password, err := fingerprint.DeriveLegacyV2Password(v2Path)
	if err != nil {
		return "", "", "", err
	}
	return v2Path, v2Password, "v2", nil
}

func isContainerMode() bool {
	v := os.Getenv("CONTAINER_MODE")
	if v != "" {
		return true
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return os.Getenv("KUBERNETES_SERVICE_HOST") != ""
}

// Close releases the store's sealed keystore passphrase.
func (s *Store) Close() {
	if s.ks != nil {
		s.ks.Close()
	}
}

// Available reports whether this store was successfully opened.
func (s *Store) Available() bool { return s.available }

// ReadOnly reports whether writes to this store are expected to fail.
func (s *Store) ReadOnly() bool { return s.readOnly }

func (s *Store) isWriteable() bool {
	if err := s.ks.Set("sstore_save", "true"); err != nil {
		s.log.Warn("secrets store %s appears read-only: %v", s.Name, err)
		return false
	}
	if err := s.ks.Delete("sstore_save"); err != nil {
		s.log.Warn("secrets store %s appears read-only: %v", s.Name, err)
		return false
	}
	return true
}

// GetSecret validates the key and returns its value, or defaultValue if
// absent or empty.
func (s *Store) GetSecret(key, defaultValue string) (string, error) {
	if err := secvalidate.ValidateSecretKey(key); err != nil {
		return "", err
	}
	v, ok, err := s.ks.Get(key)
	if err != nil {
		id := s.audit.LogSecretOperationError("get_secret", s.Name, key, err)
		return "", fmt.Errorf("get_secret failed (Error ID: %s)", id)
	}
	if !ok || v == "" {
		return defaultValue, nil
	}
	return v, nil
}

// SetSecret validates key and value, replaces any existing entry, then
// appends the key to the store's index.
func (s *Store) SetSecret(key, value string) error {
	if err := secvalidate.ValidateSecretKey(key); err != nil {
		return err
	}
	if err := secvalidate.ValidateSecretValue(value); err != nil {
		return err
	}

	if existing, _, _ := s.ks.Get(key); existing != "" {
		if err := s.ks.Delete(key); err != nil {
			id := s.audit.LogSecretOperationError("set_secret", s.Name, key, err)
			return fmt.Errorf("set_secret failed (Error ID: %s)", id)
		}
	}

	if err := s.ks.Set(key, value); err != nil {
		id := s.audit.LogSecretOperationError("set_secret", s.Name, key, err)
		return fmt.Errorf("set_secret failed (Error ID: %s)", id)
	}

	return s.appendIndex(key)
}

// SetPersistentSetting is the entry point for the override-a-YAML-setting
// use case. It removes any existing value for key through DeleteSecret
// (which also drops key from the index), then writes the new value straight
// to the keystore: the value is not validated and key is not added to the
// index.
func (s *Store) SetPersistentSetting(key, value string) error {
	if existing, _ := s.GetSecret(key, ""); existing != "" {
		if err := s.DeleteSecret(key); err != nil {
			return err
		}
	}
	return s.ks.Set(key, value)
}

// DeleteSecret removes key and scrubs it from the index.
func (s *Store) DeleteSecret(key string) error {
	if err := secvalidate.ValidateSecretKey(key); err != nil {
		return err
	}
	if err := s.ks.Delete(key); err != nil {
		id := s.audit.LogSecretOperationError("delete_secret", s.Name, key, err)
		return fmt.Errorf("delete_secret failed (Error ID: %s)", id)
	}
	return s.removeFromIndex(key)
}

func (s *Store) indexKey() string { return s.Name + ".INDEX" }

// GetIndex returns the keys currently recorded in the store's index (added
// by SetSecret, removed by DeleteSecret), initialising an empty index if
// none exists yet.
func (s *Store) GetIndex() ([]string, error) {
	raw, ok, err := s.ks.Get(s.indexKey())
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		if err := s.setIndex(nil); err != nil {
			return nil, err
		}
		return []string{}, nil
	}
	var index []string
	if err := json.Unmarshal([]byte(raw), &index); err != nil {
		return nil, &apperrors.IntegrityError{Path: s.path, Reason: "index is not valid JSON"}
	}
	return index, nil
}

func (s *Store) setIndex(index []string) error {
	if index == nil {
		index = []string{}
	}
	encoded, err := json.Marshal(index)
	if err != nil {
		return err
	}
	return s.ks.Set(s.indexKey(), string(encoded))
}

func (s *Store) appendIndex(key string) error {
	index, err := s.GetIndex()
	if err != nil {
		return err
	}
	for _, k := range index {
		if k == key {
			return nil
		}
	}
	return s.setIndex(append(index, key))
}

func (s *Store) removeFromIndex(key string) error {
	index, err := s.GetIndex()
	if err != nil {
		return err
	}
	filtered := index[:0]
	for _, k := range index {
		if k != key {
			filtered = append(filtered, k)
		}
	}
	return s.setIndex(filtered)
}
