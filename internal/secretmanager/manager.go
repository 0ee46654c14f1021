// Package secretmanager composes the mandatory local keystores with any
// number of optional cloud stores behind one get_secret-style resolution
// policy: local stores are always tried first, cloud stores only when
// nothing local answered.
package secretmanager

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aegis-run/aegis/internal/localstore"
	"github.com/aegis-run/aegis/internal/logging"
	"github.com/aegis-run/aegis/internal/metrics"
	"github.com/aegis-run/aegis/pkg/secretstore"
)

const maxConcurrentCloudQueries = 10

var localStoreNames = map[string]bool{"User_Local_Store": true, "App_Local_Store": true}

// Manager is the single entry point an embedding application uses to read
// and write secrets, regardless of which tier ultimately serves them.
type Manager struct {
	local   *localstore.Manager
	clouds  []secretstore.CloudStore
	log     *logging.Logger
	metrics *metrics.Recorder
}

// New composes an already-open local manager with zero or more cloud
// stores. Stores are sorted ascending by Priority once, at construction.
func New(local *localstore.Manager, clouds []secretstore.CloudStore, log *logging.Logger) *Manager {
	sorted := make([]secretstore.CloudStore, len(clouds))
	copy(sorted, clouds)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Priority() < sorted[j].Priority() })
	return &Manager{local: local, clouds: sorted, log: log, metrics: metrics.NewRecorder()}
}

func (m *Manager) storeByName(name string) secretstore.CloudStore {
	for _, c := range m.clouds {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// parseStoreQualifiedKey splits "StoreName.rest" into (rest, StoreName) when
// StoreName names a known cloud store; local-store qualification is handled
// by localstore.Manager itself.
func (m *Manager) parseStoreQualifiedKey(key, storeName string) (string, string) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) == 2 {
		if m.storeByName(parts[0]) != nil {
			return parts[1], parts[0]
		}
	}
	return key, storeName
}

// GetSecret implements the five-step resolution policy: empty key short
// circuits, a store-qualified key is split off, local stores are tried
// first (unless storeName names a cloud store), then cloud stores, and
// finally defaultValue.
func (m *Manager) GetSecret(ctx context.Context, key, defaultValue, storeName string) string {
	start := time.Now()
	if strings.TrimSpace(key) == "" {
		m.metrics.RecordSecretLookup("", "default", time.Since(start).Seconds())
		return defaultValue
	}

	key, storeName = m.parseStoreQualifiedKey(key, storeName)

	if storeName == "" || localStoreNames[storeName] {
		if v := m.local.GetSecret(key, "", storeName); v != "" {
			m.metrics.RecordSecretLookup(storeName, "hit", time.Since(start).Seconds())
			return v
		}
	}

	if storeName != "" && !localStoreNames[storeName] {
		if v := m.getFromNamedCloudStore(ctx, key, storeName); v != "" {
			m.metrics.RecordSecretLookup(storeName, "hit", time.Since(start).Seconds())
			return v
		}
		m.metrics.RecordSecretLookup(storeName, "miss", time.Since(start).Seconds())
		return defaultValue
	}

	if storeName == "" {
		if v := m.getFromCloudStoresConcurrently(ctx, key); v != "" {
			m.metrics.RecordSecretLookup("", "hit", time.Since(start).Seconds())
			return v
		}
	}

	m.metrics.RecordSecretLookup("", "default", time.Since(start).Seconds())
	return defaultValue
}

func (m *Manager) getFromNamedCloudStore(ctx context.Context, key, storeName string) string {
	store := m.storeByName(storeName)
	if store == nil {
		m.log.Error("store %s is not available to retrieve secret", storeName)
		return ""
	}
	if !store.Available(ctx) {
		m.log.Error("store %s is not available to retrieve secret", storeName)
		return ""
	}
	v, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return ""
	}
	return v
}

// getFromCloudStoresConcurrently races every available cloud store for key,
// bounding in-flight requests the same way the teacher's resolver bounds
// concurrent provider calls, then returns the highest-priority non-empty
// result so concurrency never changes which store wins a tie.
func (m *Manager) getFromCloudStoresConcurrently(ctx context.Context, key string) string {
	var wg sync.WaitGroup
	results := make([]string, len(m.clouds))
	semaphore := make(chan struct{}, maxConcurrentCloudQueries)

	for i, store := range m.clouds {
		if !store.Available(ctx) {
			continue
		}
		wg.Add(1)
		go func(idx int, s secretstore.CloudStore) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			v, ok, err := s.Get(ctx, key)
			if err != nil || !ok || v == "" {
				return
			}
			results[idx] = v
		}(i, store)
	}
	wg.Wait()

	for _, v := range results {
		if v != "" {
			return v
		}
	}
	return ""
}

// SetSecret writes to the named store. A local-store name (or none) routes
// through localstore.Manager (default User_Local_Store); any other name
// must match an available, writable cloud store.
func (m *Manager) SetSecret(ctx context.Context, key, value, storeName string) error {
	if storeName == "" || localStoreNames[storeName] {
		return m.local.SetSecret(key, value, storeName)
	}

	store := m.storeByName(storeName)
	if store == nil || !store.Available(ctx) || store.ReadOnly() {
		m.log.Warn("secrets store %s is either not available or is read only", storeName)
		return nil
	}
	return store.Set(ctx, key, value)
}

// SetPersistentSetting always targets User_Local_Store, ignoring any store
// name an application might pass — matching the original's ignored
// store_name argument on this one path.
func (m *Manager) SetPersistentSetting(key, value string) error {
	return m.local.SetPersistentSetting(key, value)
}

// DeleteSecret removes key from the named store (default User_Local_Store).
func (m *Manager) DeleteSecret(ctx context.Context, key, storeName string) error {
	if storeName == "" || localStoreNames[storeName] {
		return m.local.DeleteSecret(key, storeName)
	}
	store := m.storeByName(storeName)
	if store == nil {
		return nil
	}
	return store.Delete(ctx, key)
}

// Close releases the local stores' sealed keystore passphrases.
func (m *Manager) Close() {
	m.local.Close()
}
