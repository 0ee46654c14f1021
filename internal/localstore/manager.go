package localstore

import (
	"strings"
	"time"

	"github.com/aegis-run/aegis/internal/audit"
	"github.com/aegis-run/aegis/internal/logging"
)

// Manager composes User_Local_Store (always present) and App_Local_Store
// (best-effort — its absence only degrades, never aborts startup).
type Manager struct {
	stores []*Store
	log    *logging.Logger
}

// NewManager opens both local stores under usrDataPath/appDataPath.
// lockTimeout bounds how long each store's keystore waits for its file
// lock; zero uses keystore.DefaultLockTimeout.
func NewManager(usrDataPath, appDataPath, appName, customPassword string, lockTimeout time.Duration, log *logging.Logger, aud *audit.Handler) (*Manager, error) {
	m := &Manager{log: log}

	userStore, err := Open("User_Local_Store", 0, usrDataPath, appName, customPassword, lockTimeout, log, aud)
	if err != nil {
		return nil, err
	}
	m.stores = append(m.stores, userStore)

	appStore, err := Open("App_Local_Store", 1, appDataPath, appName, customPassword, lockTimeout, log, aud)
	if err != nil {
		log.Warn("skipping App_Local_Store: %v", err)
	} else {
		m.stores = append(m.stores, appStore)
	}

	return m, nil
}

func (m *Manager) storeByName(name string) *Store {
	for _, s := range m.stores {
		if s.Name == name {
			return s
		}
	}
	return nil
}

func (m *Manager) storeNames() []string {
	names := make([]string, len(m.stores))
	for i, s := range m.stores {
		names[i] = s.Name
	}
	return names
}

// parseStoreQualifiedKey splits "StoreName.rest" into (rest, StoreName)
// when StoreName names a known store, else returns (key, storeName)
// unchanged.
func (m *Manager) parseStoreQualifiedKey(key, storeName string) (string, string) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) == 2 {
		for _, name := range m.storeNames() {
			if parts[0] == name {
				return parts[1], parts[0]
			}
		}
	}
	return key, storeName
}

// GetSecret walks User_Local_Store then App_Local_Store by priority unless
// storeName restricts the lookup to one specific store.
func (m *Manager) GetSecret(key, defaultValue, storeName string) string {
	if strings.TrimSpace(key) == "" {
		return defaultValue
	}

	key, storeName = m.parseStoreQualifiedKey(key, storeName)

	if storeName != "" {
		store := m.storeByName(storeName)
		if store == nil || !store.Available() {
			m.log.Error("store %s is not available to retrieve secret", storeName)
			return defaultValue
		}
		v, err := store.GetSecret(key, "")
		if err != nil || v == "" {
			return defaultValue
		}
		return v
	}

	for _, s := range m.stores {
		if !s.Available() {
			continue
		}
		v, err := s.GetSecret(key, "")
		if err == nil && v != "" {
			return v
		}
	}
	return defaultValue
}

// SetSecret writes to the named store (default User_Local_Store) if it is
// available and writable.
func (m *Manager) SetSecret(key, value, storeName string) error {
	if storeName == "" {
		storeName = "User_Local_Store"
	}
	store := m.storeByName(storeName)
	if store == nil {
		m.log.Warn("secrets store %s is either not available or is read only", storeName)
		return nil
	}
	if !store.Available() || store.ReadOnly() {
		m.log.Warn("secrets store %s is either not available or is read only", storeName)
		return nil
	}
	return store.SetSecret(key, value)
}

// SetPersistentSetting always targets User_Local_Store.
func (m *Manager) SetPersistentSetting(key, value string) error {
	store := m.storeByName("User_Local_Store")
	if store == nil || !store.Available() || store.ReadOnly() {
		m.log.Warn("secrets store User_Local_Store is either not available or is read only")
		return nil
	}
	return store.SetPersistentSetting(key, value)
}

// DeleteSecret removes key from the named store (default User_Local_Store).
func (m *Manager) DeleteSecret(key, storeName string) error {
	if storeName == "" {
		storeName = "User_Local_Store"
	}
	store := m.storeByName(storeName)
	if store == nil {
		return nil
	}
	return store.DeleteSecret(key)
}

// StoreAvailable reports whether the named store opened successfully.
func (m *Manager) StoreAvailable(storeName string) bool {
	store := m.storeByName(storeName)
	return store != nil && store.Available()
}

// StoreReadOnly reports whether writes to the named store are refused.
func (m *Manager) StoreReadOnly(storeName string) bool {
	store := m.storeByName(storeName)
	if store == nil {
		return true
	}
	return store.ReadOnly()
}

// Index returns the named store's key index.
func (m *Manager) Index(storeName string) ([]string, error) {
	store := m.storeByName(storeName)
	if store == nil {
		return []string{}, nil
	}
	return store.GetIndex()
}

// Close releases every local store's sealed keystore passphrase.
func (m *Manager) Close() {
	for _, s := range m.stores {
		s.Close()
	}
}
